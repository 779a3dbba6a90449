// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/tgraphdb/propstore/internal/base"
)

// DefaultRestartInterval is the number of entries between restart points,
// matching the teacher's (and LevelDB's) historical default.
const DefaultRestartInterval = 16

// BlockBuilder appends (key, value) pairs into a growable, length-prefixed
// block. Every restartInterval entries it records the current buffer
// offset as a restart point, enabling binary search on lookup.
//
// Keys here are fixed-width InternalKeys that get patched in place by
// later operations (see base.InternalKey), so BlockBuilder never computes a
// shared prefix: sharedPrefixLen is always 0, unlike a general LSM block
// builder. The restart-interval bookkeeping is kept anyway because it
// still bounds the scan distance for a point lookup.
type BlockBuilder struct {
	restartInterval int
	buf             []byte
	restarts        []uint32
	nEntries        int
	finished        bool

	tmp [binary.MaxVarintLen64 * 3]byte
}

// NewBlockBuilder returns a builder with the given restart interval. A
// restartInterval <= 0 uses DefaultRestartInterval.
func NewBlockBuilder(restartInterval int) *BlockBuilder {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	b := &BlockBuilder{restartInterval: restartInterval}
	b.reset()
	return b
}

// Add appends one (key, value) pair. Keys must arrive in non-decreasing
// base.Compare order; Add after Finish panics.
func (b *BlockBuilder) Add(key base.InternalKey, value []byte) {
	if b.finished {
		panic(errors.AssertionFailedWithDepthf(1, "propstore: Add called after Finish"))
	}
	if b.nEntries%b.restartInterval == 0 {
		b.restarts = append(b.restarts, uint32(len(b.buf)))
	}

	keyBytes := key.Encode()
	n := binary.PutUvarint(b.tmp[0:], 0) // sharedPrefixLen, always 0.
	n += binary.PutUvarint(b.tmp[n:], uint64(len(keyBytes)))
	n += binary.PutUvarint(b.tmp[n:], uint64(len(value)))

	b.buf = append(b.buf, b.tmp[:n]...)
	b.buf = append(b.buf, keyBytes...)
	b.buf = append(b.buf, value...)
	b.nEntries++
}

// EstimatedSize returns the current size of the block, including the
// restart array and count that Finish will append, so TableBuilder can
// decide when to cut a new block.
func (b *BlockBuilder) EstimatedSize() int {
	return len(b.buf) + 4*len(b.restarts) + 4
}

// Empty reports whether any entries have been added.
func (b *BlockBuilder) Empty() bool { return b.nEntries == 0 }

// Finish appends the restart-offset vector, its count, and a checksum
// trailer, and returns the finalized block. No further Add is permitted.
func (b *BlockBuilder) Finish() []byte {
	if b.finished {
		panic(errors.AssertionFailedWithDepthf(1, "propstore: Finish called twice"))
	}
	for _, r := range b.restarts {
		b.buf = append(b.buf, 0, 0, 0, 0)
		binary.LittleEndian.PutUint32(b.buf[len(b.buf)-4:], r)
	}
	countOff := len(b.buf)
	b.buf = append(b.buf, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(b.buf[countOff:], uint32(len(b.restarts)))

	sum := xxhash.Sum64(b.buf)
	var sumBuf [8]byte
	binary.LittleEndian.PutUint64(sumBuf[:], sum)
	b.buf = append(b.buf, sumBuf[:]...)

	b.finished = true
	return b.buf
}

// Reset clears all state and re-seeds restart point 0 for reuse.
func (b *BlockBuilder) Reset() { b.reset() }

func (b *BlockBuilder) reset() {
	b.buf = b.buf[:0]
	b.restarts = b.restarts[:0]
	b.nEntries = 0
	b.finished = false
}

// verifyBlockChecksum checks the trailer xxhash appended by Finish.
func verifyBlockChecksum(block []byte) ([]byte, error) {
	if len(block) < 8 {
		return nil, errors.New("propstore: block too short for checksum trailer")
	}
	body, trailer := block[:len(block)-8], block[len(block)-8:]
	want := binary.LittleEndian.Uint64(trailer)
	got := xxhash.Sum64(body)
	if got != want {
		return nil, errors.Newf("propstore: block checksum mismatch: got %x want %x", got, want)
	}
	return body, nil
}
