//go:build !linux && !darwin

package vfs

import (
	"io"
	"os"
)

// MMap falls back to a full read on platforms without a wired mmap
// syscall. The TableCache treats the result identically either way: a
// read-only byte slice backing the Table.
func MMap(f *os.File) ([]byte, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

// MUnmap is a no-op for the read-all fallback; the slice is garbage
// collected normally.
func MUnmap(data []byte) error { return nil }
