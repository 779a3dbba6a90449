//go:build linux || darwin

package vfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// MMap maps f's full contents read-only. The table cache loader uses this
// to avoid a read syscall per block on the hot path (§4.3: "opens the file
// via memory-mapped access").
func MMap(f *os.File) ([]byte, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return nil, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// MUnmap releases a mapping returned by MMap.
func MUnmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}
