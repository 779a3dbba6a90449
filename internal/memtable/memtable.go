// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package memtable holds the write path's output buffer: an ordered
// in-memory map that the merge worker takes ownership of, partitions by
// property, and folds into on-disk sorted tables. Everything upstream of
// offer() (how entries get appended) is out of scope (§1); this package
// only needs to support append, emptiness, and sorted iteration.
package memtable

import (
	"sort"

	"github.com/tgraphdb/propstore/internal/base"
)

type entry struct {
	key   base.InternalKey
	value []byte
}

// MemTable is an ordered in-memory key->value map. It is built once by
// appending (the write path's job, out of scope here) and is read-only
// once handed to the merge worker.
type MemTable struct {
	entries []entry
	sorted  bool
}

// New returns an empty MemTable.
func New() *MemTable { return &MemTable{} }

// Append adds one (key, value) pair. Append after the first read (Len,
// Empty, NewIter) still works, but re-sorts lazily on next read; callers
// should finish appending before handing a MemTable to the worker.
func (m *MemTable) Append(key base.InternalKey, value []byte) {
	m.entries = append(m.entries, entry{key: key, value: value})
	m.sorted = false
}

// Empty reports whether the table has no entries.
func (m *MemTable) Empty() bool { return len(m.entries) == 0 }

// Len returns the number of entries.
func (m *MemTable) Len() int { return len(m.entries) }

func (m *MemTable) ensureSorted() {
	if m.sorted {
		return
	}
	// sort.SliceStable so entries appended in source order for equal keys
	// (a legitimate duplicate startTime overwrite, see §4.4) keep that
	// relative order, matching "append order is safe because the source
	// is already sorted and stable partitioning preserves per-key order"
	// (§4.6 step 3).
	sort.SliceStable(m.entries, func(i, j int) bool {
		return base.Less(m.entries[i].key, m.entries[j].key)
	})
	m.sorted = true
}

// NewIter returns a forward iterator in base.Compare order, already
// positioned at the first entry (or invalid, if m is empty) — the same
// "ready to read" convention as sstable.Table.NewIter.
func (m *MemTable) NewIter() base.KVIterator {
	m.ensureSorted()
	return &iter{m: m, pos: 0}
}

// Partition splits m's entries by InternalKey.PropertyID, preserving
// per-property relative order (§4.6 step 3). Empty sub-tables are never
// produced: a propertyId only appears in the result if it had at least
// one entry.
func (m *MemTable) Partition() map[uint32]*MemTable {
	out := make(map[uint32]*MemTable)
	for _, e := range m.entries {
		sub, ok := out[e.key.PropertyID]
		if !ok {
			sub = New()
			out[e.key.PropertyID] = sub
		}
		sub.entries = append(sub.entries, e)
	}
	for _, sub := range out {
		sub.sorted = false
	}
	return out
}

type iter struct {
	m   *MemTable
	pos int
}

func (it *iter) Valid() bool { return it.pos >= 0 && it.pos < len(it.m.entries) }

func (it *iter) Key() base.InternalKey { return it.m.entries[it.pos].key }

func (it *iter) Value() []byte { return it.m.entries[it.pos].value }

func (it *iter) Next() bool {
	it.pos++
	return it.Valid()
}

func (it *iter) Close() error { return nil }
