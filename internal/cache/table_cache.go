// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package cache implements the merge core's TableCache: a bounded LRU
// mapping a file path to an open sstable.Table, with deferred close so a
// reader holding an iterator never has its table yanked out from under it
// (§4.3, §9).
//
// Grounded in aalhour-rockyardkv/internal/table/table_cache.go's
// refcounted cachedReader + intrusive LRU list shape.
package cache

import (
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"

	"github.com/tgraphdb/propstore/internal/vfs"
	"github.com/tgraphdb/propstore/sstable"
)

// DefaultCapacity is the maximum number of open tables kept resident.
const DefaultCapacity = 500

// entry wraps one open Table with LRU and refcount bookkeeping.
type entry struct {
	path   string
	table  *sstable.Table
	data   []byte // the mmap'd (or read-all) region backing table
	mapped bool   // true iff data came from a real mmap() and must be munmap'd
	refs   int    // iterators + 1 for the cache's own pin while resident
	closed bool

	prev, next *entry
}

// Cache is a bounded, thread-safe LRU of open sorted tables.
type Cache struct {
	mu       sync.Mutex
	fs       vfs.FS
	opts     sstable.Options
	capacity int

	byPath map[string]*entry
	head   *entry // most recently used
	tail   *entry // least recently used

	loadGroup singleflight.Group

	closeCh   chan *entry
	closeOnce sync.Once
	closeWG   sync.WaitGroup

	metrics Metrics
}

// New returns a Cache that opens files through fs using opts, bounded to
// capacity resident tables (DefaultCapacity if capacity <= 0).
func New(fs vfs.FS, opts sstable.Options, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		fs:       fs,
		opts:     opts,
		capacity: capacity,
		byPath:   make(map[string]*entry),
		closeCh:  make(chan *entry, 64),
	}
	c.closeWG.Add(1)
	go c.closeLoop()
	return c
}

// Handle is a checked-out reference to a cached Table. Callers must call
// Release exactly once when done iterating.
type Handle struct {
	c *Cache
	e *entry
}

// Table returns the underlying table. Valid only until Release.
func (h *Handle) Table() *sstable.Table { return h.e.table }

// Release drops this handle's reference. If the entry has been evicted
// and this was the last outstanding reference, the table is physically
// closed.
func (h *Handle) Release() {
	h.c.release(h.e)
}

// Get returns a Handle for path, opening it on miss. Concurrent misses on
// the same path are coalesced into a single load (§5: "concurrent misses
// on the same key deduplicate to one load").
func (c *Cache) Get(path string) (*Handle, error) {
	c.mu.Lock()
	if e, ok := c.byPath[path]; ok && !e.closed {
		e.refs++
		c.moveToFront(e)
		c.mu.Unlock()
		c.metrics.Hits.Add(1)
		return &Handle{c: c, e: e}, nil
	}
	c.mu.Unlock()

	c.metrics.Misses.Add(1)
	v, err, _ := c.loadGroup.Do(path, func() (interface{}, error) {
		return c.load(path)
	})
	if err != nil {
		return nil, err
	}
	e := v.(*entry)

	c.mu.Lock()
	e.refs++
	c.mu.Unlock()
	return &Handle{c: c, e: e}, nil
}

func (c *Cache) load(path string) (*entry, error) {
	// Double-checked: another goroutine may have installed this entry
	// between our miss check and acquiring the singleflight key.
	c.mu.Lock()
	if e, ok := c.byPath[path]; ok && !e.closed {
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "propstore: opening table %s", path)
	}
	data, mapped, err := mmapFile(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "propstore: mapping table %s", path)
	}

	table, err := sstable.NewReader(data, c.opts)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "propstore: reading table %s", path)
	}

	e := &entry{path: path, table: table, data: data, mapped: mapped, refs: 1}

	c.mu.Lock()
	c.byPath[path] = e
	c.pushFront(e)
	c.evictIfOverCapacity()
	c.mu.Unlock()

	c.metrics.OpenTables.Add(1)
	return e, nil
}

func (c *Cache) release(e *entry) {
	c.mu.Lock()
	e.refs--
	shouldClose := e.closed && e.refs <= 0
	c.mu.Unlock()
	if shouldClose {
		c.closeCh <- e
	}
}

// Evict removes path from the cache and schedules its Table for deferred
// close: physical close happens only once every outstanding Handle has
// been Released, matching §4.3/§9's refcount-plus-finalizer-queue design.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	e, ok := c.byPath[path]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.byPath, path)
	c.unlink(e)
	e.closed = true
	e.refs-- // drop the cache's own resident pin
	shouldClose := e.refs <= 0
	c.mu.Unlock()

	c.metrics.Evictions.Add(1)
	if shouldClose {
		c.closeCh <- e
	}
}

func (c *Cache) evictIfOverCapacity() {
	for len(c.byPath) > c.capacity && c.tail != nil {
		victim := c.tail
		delete(c.byPath, victim.path)
		c.unlink(victim)
		victim.closed = true
		victim.refs-- // drop the cache's own resident pin
		c.metrics.Evictions.Add(1)
		if victim.refs <= 0 {
			c.closeCh <- victim
		}
	}
}

// Close invalidates every entry and waits for the finalizer queue to
// drain.
func (c *Cache) Close() {
	c.mu.Lock()
	paths := make([]string, 0, len(c.byPath))
	for p := range c.byPath {
		paths = append(paths, p)
	}
	c.mu.Unlock()
	for _, p := range paths {
		c.Evict(p)
	}
	c.closeOnce.Do(func() { close(c.closeCh) })
	c.closeWG.Wait()
}

func (c *Cache) closeLoop() {
	defer c.closeWG.Done()
	for e := range c.closeCh {
		if e.mapped {
			_ = munmapFile(e.data)
		}
		c.metrics.OpenTables.Add(-1)
	}
}

// --- intrusive LRU list, guarded by c.mu ---

func (c *Cache) pushFront(e *entry) {
	e.prev, e.next = nil, c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) moveToFront(e *entry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if c.head == e {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if c.tail == e {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

// mmapFile maps f if it is backed by a real *os.File (the disk-backed
// vfs.FS), falling back to a plain read for other vfs.FS implementations
// (e.g. the in-memory FS used by tests). The returned bool reports whether
// data is a genuine mmap() region: only that case may ever be passed to
// munmapFile, since unix.Munmap on an ordinary Go-heap slice is undefined
// behavior.
func mmapFile(f vfs.File) ([]byte, bool, error) {
	if osFile, ok := f.(*os.File); ok {
		data, err := vfs.MMap(osFile)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	buf := make([]byte, fi.Size())
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, false, err
	}
	return buf, false, nil
}

func munmapFile(data []byte) error {
	return vfs.MUnmap(data)
}
