package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"example.com/plclog/internal/common"
	"example.com/plclog/internal/report"
)

const defaultMaxUploadBytes = 512 << 20

// Options configures server creation.
type Options struct {
	StorageDir     string
	MaxUploadBytes int64
	Compress       bool
	Mmap           bool
	Lang           string
	AccessLog      bool
	Registry       *prometheus.Registry
}

func (o Options) withDefaults() Options {
	if o.StorageDir == "" {
		o.StorageDir = os.TempDir()
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = defaultMaxUploadBytes
	}
	return o
}

// Config is the daemon's YAML configuration file.
type Config struct {
	Port        int              `yaml:"port"`
	StorageDir  string           `yaml:"storageDir"`
	MaxUploadMB int              `yaml:"maxUploadMB"`
	Compress    bool             `yaml:"compress"`
	Mmap        bool             `yaml:"mmap"`
	Lang        string           `yaml:"lang"`
	AccessLog   bool             `yaml:"accessLog"`
	Logs        common.LogConfig `yaml:"logs"`
}

// LoadConfig reads path and fills defaults. Relative directories are
// resolved against the file's directory.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) == "" {
		return cfg, errors.New("config path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	baseDir := filepath.Dir(path)
	resolve := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "data"
	}
	cfg.StorageDir = resolve(cfg.StorageDir)
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = defaultMaxUploadBytes >> 20
	}
	if _, err := report.ParseLanguage(cfg.Lang); err != nil {
		return cfg, err
	}
	if cfg.Logs.Directory == "" {
		cfg.Logs.Directory = filepath.Join(cfg.StorageDir, "logs")
	} else {
		cfg.Logs.Directory = resolve(cfg.Logs.Directory)
	}
	cfg.Logs = cfg.Logs.WithDefaults()
	return cfg, nil
}

// ServerOptions maps the configuration onto server options.
func (c Config) ServerOptions() Options {
	return Options{
		StorageDir:     c.StorageDir,
		MaxUploadBytes: int64(c.MaxUploadMB) << 20,
		Compress:       c.Compress,
		Mmap:           c.Mmap,
		Lang:           c.Lang,
		AccessLog:      c.AccessLog,
	}
}
