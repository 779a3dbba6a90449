// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package meta holds the on-disk file inventory for every property store:
// FileMetaData, PropertyMetaData, and the SystemMeta handle that guards
// them with a shared/exclusive lock (§3, §5).
package meta

// MaxUnstableSlots bounds the unstable slot numbering space {0,...,4}
// (invariant 1).
const MaxUnstableSlots = 5

// PromotionThreshold is the number of already-populated unstable slots at
// which the NEXT offer promotes instead of appending a new slot: with four
// slots filled, the incoming memtable would be the fifth, so it is merged
// with all four straight into a new stable file rather than first
// occupying a literal slot 4 (invariant 1: k = 5 counting the incoming
// memtable triggers promotion).
const PromotionThreshold = MaxUnstableSlots - 1

// FileMetaData identifies one on-disk sorted table.
type FileMetaData struct {
	FileNumber   uint64
	ByteSize     uint64
	SmallestTime int32
	LargestTime  int32
}

// PropertyMetaData is the per-property file inventory.
//
// Unstable holds slot id (0..4) -> FileMetaData; the slot set must always
// be a contiguous prefix {0,...,k-1} (invariant 1). Stable is ordered by
// strictly increasing StartTime (invariant 2). UnstableBuffers and
// StableBuffers record, by FileNumber (for stable) or slot id (for
// unstable), the path of an optional overlay buffer — absence means no
// buffer.
type PropertyMetaData struct {
	Unstable map[int]*FileMetaData
	Stable   []*FileMetaData

	UnstableBuffers map[int]string
	StableBuffers   map[uint64]string

	NextStableIDValue uint64
}

// NewPropertyMetaData returns an empty per-property inventory.
func NewPropertyMetaData() *PropertyMetaData {
	return &PropertyMetaData{
		Unstable:        make(map[int]*FileMetaData),
		UnstableBuffers: make(map[int]string),
		StableBuffers:   make(map[uint64]string),
	}
}

// UnstableCount returns the size of the contiguous unstable prefix. A
// conforming metadata store always has UnstableCount() == len(Unstable);
// callers that observe otherwise have detected MetaCorruption (§9).
func (p *PropertyMetaData) UnstableCount() int {
	slots, _ := p.ContiguousUnstablePrefix()
	return len(slots)
}

// NextStableID returns the next monotone stable-file id and advances the
// generator.
func (p *PropertyMetaData) NextStableID() uint64 {
	id := p.NextStableIDValue
	p.NextStableIDValue++
	return id
}

// LastStableID reports the highest id ever handed out by NextStableID,
// even after Stable has been trimmed; used only for diagnostics.
func (p *PropertyMetaData) LastStableID() uint64 {
	if p.NextStableIDValue == 0 {
		return 0
	}
	return p.NextStableIDValue - 1
}

// LatestStable returns the stable file with the largest StartTime (the
// tail of the stable sequence), or nil if there is none.
func (p *PropertyMetaData) LatestStable() *FileMetaData {
	if len(p.Stable) == 0 {
		return nil
	}
	return p.Stable[len(p.Stable)-1]
}

// AppendStable appends a new stable FileMetaData, which the caller must
// guarantee has StartTime == prior tail's LargestTime+1 (or 0 if this is
// the first), preserving invariant 2.
func (p *PropertyMetaData) AppendStable(fm *FileMetaData) {
	p.Stable = append(p.Stable, fm)
}
