// Package source opens log files for sequential or random access.
package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ZstdExt marks compressed inputs and outputs.
const ZstdExt = ".zst"

// Source is an opened log. Read consumes it from the start; ReadAt does not
// move the Read position.
type Source interface {
	io.Reader
	io.ReaderAt
	io.Closer
	Size() int64
	Name() string
}

// Options tunes how Open accesses the file.
type Options struct {
	// Mmap maps plain files into memory instead of reading through the
	// file descriptor. Ignored where mapping is unsupported.
	Mmap bool
}

// IsCompressed reports whether name carries the zstd extension.
func IsCompressed(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ZstdExt)
}

// Open opens path. Files ending in .zst are decompressed into memory.
func Open(path string, opts Options) (Source, error) {
	if IsCompressed(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return FromReader(path, f)
	}
	if opts.Mmap {
		return openMapped(path)
	}
	return openFile(path)
}

// FromReader buffers r entirely, decompressing it when name ends in .zst.
func FromReader(name string, r io.Reader) (Source, error) {
	if IsCompressed(name) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		defer dec.Close()
		r = dec
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return FromBytes(name, data), nil
}

// FromBytes wraps an in-memory log.
func FromBytes(name string, data []byte) Source {
	return &memSource{Reader: bytes.NewReader(data), name: name, size: int64(len(data))}
}

type memSource struct {
	*bytes.Reader
	name    string
	size    int64
	release func() error
}

func (m *memSource) Size() int64  { return m.size }
func (m *memSource) Name() string { return m.name }

func (m *memSource) Close() error {
	if m.release == nil {
		return nil
	}
	release := m.release
	m.release = nil
	return release()
}

type fileSource struct {
	*os.File
	size int64
}

func openFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSource{File: f, size: st.Size()}, nil
}

func (f *fileSource) Size() int64 { return f.size }
