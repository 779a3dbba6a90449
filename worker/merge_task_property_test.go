// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package worker

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tgraphdb/propstore/internal/base"
	"github.com/tgraphdb/propstore/internal/memtable"
	"github.com/tgraphdb/propstore/meta"
)

// TestMergeTaskEmptyOfferIsIdempotent covers §8's idempotence law: offering
// an empty memtable, in any amount and at any point in a property's
// lifecycle, never changes its metadata. Randomized over how many
// non-empty offers precede/follow the empty ones, teacher-style
// (rand-seeded table test, not a fuzzing framework).
func TestMergeTaskEmptyOfferIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	fs, c, opts, dir := newHarness(t)
	require.NoError(t, fs.MkdirAll(dir))
	propMeta := meta.NewPropertyMetaData()

	applyOffer := func(mem *memtable.MemTable) {
		task, err := NewMergeTask(dir, 1, mem, propMeta, c, fs, opts)
		require.NoError(t, err)
		if task == nil {
			return
		}
		require.NoError(t, task.BuildNewFile())
		require.NoError(t, task.UpdateMetaInfo())
		task.DeleteObsoleteFiles()
	}

	var nextEntity uint64
	for round := 0; round < 20; round++ {
		// An empty offer before any real data, and interspersed between
		// every real offer, must be a no-op either way.
		for i := 0; i < rng.Intn(3); i++ {
			before := snapshotMeta(propMeta)
			applyOffer(memtable.New())
			require.Equal(t, before, snapshotMeta(propMeta), "empty offer round %d must not mutate metadata", round)
		}

		mem := memWith(k(1, nextEntity, int32(nextEntity)+1), []byte(fmt.Sprintf("v%d", nextEntity)))
		nextEntity++
		applyOffer(mem)
	}
}

// snapshotMeta captures just enough of a PropertyMetaData to detect any
// mutation: slot occupancy and stable chain length/identity.
func snapshotMeta(p *meta.PropertyMetaData) string {
	s := fmt.Sprintf("unstable=%d stable=%d next=%d", len(p.Unstable), len(p.Stable), p.NextStableIDValue)
	for slot := 0; slot < meta.MaxUnstableSlots; slot++ {
		if fm, ok := p.Unstable[slot]; ok {
			s += fmt.Sprintf(" u%d=%d", slot, fm.FileNumber)
		}
	}
	for _, fm := range p.Stable {
		s += fmt.Sprintf(" s=%d", fm.FileNumber)
	}
	return s
}

// TestMergeTaskPreservesKeyMultisetAcrossPromotion covers §8's "exact
// multiset preservation of keys across overlay/unstable/stable" invariant
// and the "merge does not deduplicate" rule (§4.4): randomized entity ids
// and values across the four append offers plus the promoting fifth
// offer, checked against the promoted stable file's full contents.
func TestMergeTaskPreservesKeyMultisetAcrossPromotion(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	fs, c, opts, dir := newHarness(t)
	require.NoError(t, fs.MkdirAll(dir))
	propMeta := meta.NewPropertyMetaData()

	var wantValues []string
	var nextEntity uint64
	offer := func() {
		mem := memtable.New()
		n := 1 + rng.Intn(3)
		for i := 0; i < n; i++ {
			// Each pair of consecutive writes shares one key, so identical
			// keys land in the same or in different offers.
			v := fmt.Sprintf("e%d", nextEntity)
			mem.Append(k(1, nextEntity/2, int32(nextEntity/2%1000)+1), []byte(v))
			wantValues = append(wantValues, v)
			nextEntity++
		}
		task, err := NewMergeTask(dir, 1, mem, propMeta, c, fs, opts)
		require.NoError(t, err)
		require.NotNil(t, task)
		require.NoError(t, task.BuildNewFile())
		require.NoError(t, task.UpdateMetaInfo())
		task.DeleteObsoleteFiles()
	}

	for i := 0; i < 5; i++ {
		offer()
	}

	require.Empty(t, propMeta.Unstable)
	require.Len(t, propMeta.Stable, 1)
	stable := propMeta.Stable[0]

	h, err := c.Get(meta.StableTablePath(dir, stable.FileNumber))
	require.NoError(t, err)
	defer h.Release()
	it, err := h.Table().NewIter()
	require.NoError(t, err)

	var gotValues []string
	var lastEntity uint64
	haveLast := false
	for it.Valid() {
		gotValues = append(gotValues, string(it.Value()))
		key := it.Key()
		if haveLast {
			require.GreaterOrEqualf(t, key.EntityID, lastEntity,
				"merge output must follow the key total order (propertyId, entityId asc)")
		}
		lastEntity, haveLast = key.EntityID, true
		it.Next()
	}

	require.ElementsMatch(t, wantValues, gotValues,
		"promotion must preserve the exact multiset of offered keys/values, duplicates included")
}
