package source

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func checkSource(t *testing.T, src Source, name string, want []byte) {
	t.Helper()
	assert.Equal(t, name, src.Name())
	assert.Equal(t, int64(len(want)), src.Size())

	tail := make([]byte, 3)
	n, err := src.ReadAt(tail, int64(len(want)-3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, want[len(want)-3:], tail)

	all, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, want, all)
}

func TestOpenModes(t *testing.T) {
	data := bytes.Repeat([]byte{0x61, 0x0B, 0xE7, 0xEC, 0x00, 0xFF}, 100)
	plain := writeFile(t, "a.bin", data)
	packed := writeFile(t, "a.bin.zst", compress(t, data))

	tests := []struct {
		name string
		path string
		opts Options
	}{
		{name: "file", path: plain},
		{name: "mmap", path: plain, opts: Options{Mmap: true}},
		{name: "zstd", path: packed},
		{name: "zstd ignores mmap", path: packed, opts: Options{Mmap: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src, err := Open(tc.path, tc.opts)
			require.NoError(t, err)
			checkSource(t, src, tc.path, data)
			require.NoError(t, src.Close())
		})
	}
}

func TestOpenEmptyMapped(t *testing.T) {
	path := writeFile(t, "empty.bin", nil)
	src, err := Open(path, Options{Mmap: true})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, int64(0), src.Size())
	n, err := src.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.bin"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromReader(t *testing.T) {
	data := []byte("plc log payload")
	src, err := FromReader("upload.bin.ZST", bytes.NewReader(compress(t, data)))
	require.NoError(t, err)
	checkSource(t, src, "upload.bin.ZST", data)

	_, err = FromReader("broken.zst", bytes.NewReader([]byte("not zstd")))
	assert.Error(t, err)
}
