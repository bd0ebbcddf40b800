package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/plclog/internal/common"
)

type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

type Manifest struct {
	CreatedAt time.Time  `json:"createdAt"`
	ShaAlgo   string     `json:"shaAlgo"`
	Items     []Item     `json:"items"`
	Signature *Signature `json:"signature,omitempty"`
}

// ErrMismatch is returned by Verify when a file no longer matches its item.
var ErrMismatch = errors.New("manifest mismatch")

func Build(paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
	for _, p := range paths {
		hex, sz, err := common.Sha256OfFile(p)
		if err != nil {
			return m, err
		}
		m.Items = append(m.Items, Item{Path: p, Size: sz, Sha256: hex, Type: ItemType(p)})
	}
	return m, nil
}

// ItemType classifies a path by extension. Compressed outputs are "zst"
// whatever they hold.
func ItemType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin":
		return "bin"
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".pdf":
		return "pdf"
	case ".zst":
		return "zst"
	default:
		return "other"
	}
}

func Save(m Manifest, out string) error {
	b, err := Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

// Marshal is the exact byte form written by Save and covered by Sign.
func Marshal(m Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// Verify re-hashes every item. Relative paths are resolved against root.
func Verify(m Manifest, root string) error {
	if m.ShaAlgo != "sha256" {
		return fmt.Errorf("unsupported manifest algorithm %q", m.ShaAlgo)
	}
	for _, item := range m.Items {
		if strings.TrimSpace(item.Path) == "" {
			return errors.New("manifest item missing path")
		}
		path := item.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		hash, size, err := common.Sha256OfFile(path)
		if err != nil {
			return fmt.Errorf("hash %q: %w", item.Path, err)
		}
		if hash != item.Sha256 || size != item.Size {
			return fmt.Errorf("%w for %s", ErrMismatch, item.Path)
		}
	}
	return nil
}
