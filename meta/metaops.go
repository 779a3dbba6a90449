// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package meta

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

// RemoveUnstable deletes slot's FileMetaData and overlay-buffer
// registration (if any) from p. Called once per participant inside
// updateMetaInfo, under the exclusive lock (§4.5 step 1).
func (p *PropertyMetaData) RemoveUnstable(slot int) {
	delete(p.Unstable, slot)
	delete(p.UnstableBuffers, slot)
}

// ContiguousUnstablePrefix scans slots {0,1,2,3,4} in order and returns
// the contiguous prefix that exists, per §4.5's participant-selection
// rule. It also reports whether the slot set was a clean prefix: a
// present slot after an absent one is non-contiguous, which conforming
// metadata must never produce (§9's first Open Question) — the caller
// must treat that as MetaCorruption.
func (p *PropertyMetaData) ContiguousUnstablePrefix() (slots []int, contiguous bool) {
	for i := 0; i < MaxUnstableSlots; i++ {
		if _, ok := p.Unstable[i]; ok {
			slots = append(slots, i)
			continue
		}
		break
	}
	// Anything present beyond the break point means a gap: slot i was
	// absent but some slot > i (still < MaxUnstableSlots) is present.
	for i := len(slots); i < MaxUnstableSlots; i++ {
		if _, ok := p.Unstable[i]; ok {
			return slots, false
		}
	}
	return slots, true
}

// RegisterUnstable installs fm as unstable slot k, replacing whatever was
// there (§4.5 step 3, same-level rewrite).
func (p *PropertyMetaData) RegisterUnstable(slot int, fm *FileMetaData) {
	p.Unstable[slot] = fm
}

// StableContaining returns the stable file whose [SmallestTime,
// LargestTime] range contains t, or nil if none does. Invariant 2
// (strictly increasing StartTime chaining) makes Stable binary-searchable
// rather than requiring a linear scan for a point-in-time lookup.
func (p *PropertyMetaData) StableContaining(t int32) *FileMetaData {
	i, found := slices.BinarySearchFunc(p.Stable, t, func(fm *FileMetaData, target int32) int {
		switch {
		case target < fm.SmallestTime:
			return 1
		case target > fm.LargestTime:
			return -1
		default:
			return 0
		}
	})
	if !found {
		return nil
	}
	return p.Stable[i]
}

// RegisterStable appends fm as a new stable file with the given id
// (§4.5 step 2, promotion). Callers must have obtained id from
// NextStableID and computed fm.SmallestTime as described in §4.5.
func (p *PropertyMetaData) RegisterStable(fm *FileMetaData) {
	p.AppendStable(fm)
}

// ClearAllUnstable checks that no unstable slot remains and resets the
// unstable overlay buffer registrations. It does not remove slots itself:
// if any slot is still present it returns an error and changes nothing.
// Called once per promoting property, after its four participant slots
// have each been removed individually via RemoveUnstable, as a defensive
// final assertion that no slot survived (§4.5: "all unstable slots are
// cleared on promotion").
func (p *PropertyMetaData) ClearAllUnstable() error {
	if len(p.Unstable) != 0 {
		return errors.Newf("propstore: %d unstable slot(s) survived a promotion", len(p.Unstable))
	}
	p.UnstableBuffers = make(map[int]string)
	return nil
}
