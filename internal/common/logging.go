package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = log.New(os.Stderr, "[plclog] ", log.LstdFlags|log.Lmicroseconds)

// LogConfig controls the rotating log file.
type LogConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

// WithDefaults fills unset limits.
func (c LogConfig) WithDefaults() LogConfig {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 25
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 7
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	return c
}

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	logger.Printf("warning: "+format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// SetLogOutput redirects the package logger.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetupLogFile tees the package logger and the standard logger into
// <dir>/<name>.log, rotated by lumberjack. console may be nil.
func SetupLogFile(cfg LogConfig, name string, console io.Writer) (io.Closer, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("log directory not set")
	}
	cfg = cfg.WithDefaults()
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, name+".log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	var out io.Writer = rotator
	if console != nil {
		out = io.MultiWriter(console, rotator)
	}
	SetLogOutput(out)
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return rotator, nil
}
