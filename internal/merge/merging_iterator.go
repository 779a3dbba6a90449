// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package merge implements the N-way ordered merge over sorted iterators
// that feeds every MergeTask's output TableBuilder (§4.4).
package merge

import "github.com/tgraphdb/propstore/internal/base"

// MergingIterator merges N sorted base.KVIterators into one sorted
// stream using base.Compare. It does not deduplicate: the temporal model
// tolerates identical-key duplicates, since startTime is part of the key
// and a collision indicates a legitimate overwrite (§4.4) — downstream
// readers resolve the winner by iterator order.
//
// Ties are broken by iterator list order: the earlier iterator in the
// list wins. Callers (MergeTask) are responsible for ordering the list
// newest-to-oldest: memTable, then the latest-stable overlay (promotion
// only), then unstable files in ascending file number.
type MergingIterator struct {
	children []base.KVIterator
	// heap-free linear scan: the participant count is always small (at
	// most memtable + 1 overlay + 5 unstable files), so an O(n) min-scan
	// per Next beats the constant overhead of a heap.
	current int
	valid   bool
}

// NewMergingIterator returns a MergingIterator over children, in the
// iterator-order described above. Each child must already be positioned
// (its first Valid()/Key() must reflect its first entry).
func NewMergingIterator(children ...base.KVIterator) *MergingIterator {
	m := &MergingIterator{children: children}
	m.findMin()
	return m
}

func (m *MergingIterator) findMin() {
	m.valid = false
	best := -1
	for i, c := range m.children {
		if c == nil || !c.Valid() {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		cmp := base.Compare(c.Key(), m.children[best].Key())
		// Strictly less only: on a tie, the earlier iterator in the list
		// (already `best`, since we scan in list order) wins.
		if cmp < 0 {
			best = i
		}
	}
	if best == -1 {
		return
	}
	m.current = best
	m.valid = true
}

// Valid reports whether Key/Value may be called.
func (m *MergingIterator) Valid() bool { return m.valid }

// Key returns the current minimum key across all non-exhausted children.
func (m *MergingIterator) Key() base.InternalKey { return m.children[m.current].Key() }

// Value returns the value paired with Key.
func (m *MergingIterator) Value() []byte { return m.children[m.current].Value() }

// Next advances the winning child and recomputes the minimum.
func (m *MergingIterator) Next() bool {
	if !m.valid {
		return false
	}
	m.children[m.current].Next()
	m.findMin()
	return m.valid
}

// Close closes every child iterator, returning the first error (if any).
func (m *MergingIterator) Close() error {
	var firstErr error
	for _, c := range m.children {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
