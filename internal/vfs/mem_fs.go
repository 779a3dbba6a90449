// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// MemFS is an in-memory FS for tests, grounded in pebble's own vfs.MemFS
// and dialtr-pebble's storage.Storage abstraction: merge-worker tests
// never need to touch the real disk.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memFile
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string]*memFile)}
}

type memFile struct {
	mu      sync.Mutex
	name    string
	data    []byte
	modTime time.Time
}

// Read is only meaningful through memFileReader's independent cursor;
// a *memFile obtained from Create/OpenReadWrite is write-side only.
func (f *memFile) Read(p []byte) (int, error) {
	return 0, errors.New("vfs: Read unsupported on a write handle, open for reading instead")
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if off >= int64(len(f.data)) {
		return 0, errors.New("vfs: EOF")
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, errors.New("vfs: short read")
	}
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append(f.data, p...)
	f.modTime = time.Now()
	return len(p), nil
}

func (f *memFile) Close() error { return nil }
func (f *memFile) Sync() error  { return nil }

func (f *memFile) Stat() (os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return memFileInfo{name: f.name, size: int64(len(f.data)), modTime: f.modTime}, nil
}

type memFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi memFileInfo) Name() string       { return fi.name }
func (fi memFileInfo) Size() int64        { return fi.size }
func (fi memFileInfo) Mode() os.FileMode  { return 0644 }
func (fi memFileInfo) ModTime() time.Time { return fi.modTime }
func (fi memFileInfo) IsDir() bool        { return false }
func (fi memFileInfo) Sys() interface{}   { return nil }

func (fs *MemFS) Create(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := &memFile{name: name, modTime: time.Now()}
	fs.files[name] = f
	return f, nil
}

func (fs *MemFS) Open(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		return nil, errors.Newf("vfs: %s: no such file", name)
	}
	return &memFileReader{memFile: f}, nil
}

func (fs *MemFS) OpenReadWrite(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		f = &memFile{name: name, modTime: time.Now()}
		fs.files[name] = f
	}
	return f, nil
}

func (fs *MemFS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.files, name)
	return nil
}

func (fs *MemFS) Rename(oldname, newname string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[oldname]
	if !ok {
		return errors.Newf("vfs: %s: no such file", oldname)
	}
	f.name = newname
	fs.files[newname] = f
	delete(fs.files, oldname)
	return nil
}

func (fs *MemFS) MkdirAll(dir string) error { return nil }

func (fs *MemFS) Exists(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.files[name]
	return ok
}

// memFileReader gives Open() callers an independent read cursor over the
// same backing bytes, so concurrent readers of one file don't race on a
// shared offset the way a single *memFile would.
type memFileReader struct {
	*memFile
	off int64
}

func (r *memFileReader) Read(p []byte) (int, error) {
	n, err := r.memFile.ReadAt(p, r.off)
	r.off += int64(n)
	if err != nil && n > 0 {
		err = nil
	}
	return n, err
}
