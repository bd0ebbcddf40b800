//go:build unix

package source

import (
	"bytes"
	"os"

	"golang.org/x/sys/unix"
)

func openMapped(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		return FromBytes(path, nil), nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &memSource{
		Reader:  bytes.NewReader(data),
		name:    path,
		size:    int64(len(data)),
		release: func() error { return unix.Munmap(data) },
	}, nil
}
