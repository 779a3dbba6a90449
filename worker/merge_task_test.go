// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package worker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tgraphdb/propstore/internal/base"
	"github.com/tgraphdb/propstore/internal/cache"
	"github.com/tgraphdb/propstore/internal/memtable"
	"github.com/tgraphdb/propstore/internal/vfs"
	"github.com/tgraphdb/propstore/meta"
)

func k(prop uint32, entity uint64, t int32) base.InternalKey {
	return base.InternalKey{PropertyID: prop, EntityID: entity, StartTime: t, Kind: base.KindValue}
}

func newHarness(t *testing.T) (vfs.FS, *cache.Cache, Options, string) {
	t.Helper()
	fs := vfs.NewMemFS()
	opts := Options{}.EnsureDefaults()
	c := cache.New(fs, opts.Table, opts.CacheCapacity)
	t.Cleanup(c.Close)
	return fs, c, opts, "property-1"
}

func memWith(pairs ...interface{}) *memtable.MemTable {
	m := memtable.New()
	for i := 0; i < len(pairs); i += 2 {
		m.Append(pairs[i].(base.InternalKey), pairs[i+1].([]byte))
	}
	return m
}

func readAll(t *testing.T, it base.KVIterator) [][]byte {
	t.Helper()
	var out [][]byte
	for it.Valid() {
		out = append(out, it.Value())
		it.Next()
	}
	return out
}

// TestMergeTaskSimpleFlush covers §8's first scenario: an empty property
// receiving its first memtable becomes unstable slot 0.
func TestMergeTaskSimpleFlush(t *testing.T) {
	fs, c, opts, dir := newHarness(t)
	require.NoError(t, fs.MkdirAll(dir))

	propMeta := meta.NewPropertyMetaData()
	mem := memWith(k(1, 1, 10), []byte("v1"))

	task, err := NewMergeTask(dir, 1, mem, propMeta, c, fs, opts)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.False(t, task.promotion)
	require.Equal(t, 0, task.outputSlot)

	require.NoError(t, task.BuildNewFile())
	require.Equal(t, 1, task.entryCount)

	require.NoError(t, task.UpdateMetaInfo())
	require.Len(t, propMeta.Unstable, 1)
	fm := propMeta.Unstable[0]
	require.Equal(t, uint64(0), fm.FileNumber)
	require.Equal(t, int32(10), fm.SmallestTime)
	require.Equal(t, int32(10), fm.LargestTime)

	task.DeleteObsoleteFiles() // no-op: nothing obsoleted on a simple flush
	require.Empty(t, task.obsolete)
}

// TestMergeTaskFillsToFourSlots exercises offering four memtables in a row:
// each becomes its own unstable slot, same-level with no participants.
func TestMergeTaskFillsToFourSlots(t *testing.T) {
	fs, c, opts, dir := newHarness(t)
	require.NoError(t, fs.MkdirAll(dir))
	propMeta := meta.NewPropertyMetaData()

	for i := 0; i < 4; i++ {
		mem := memWith(k(1, 1, int32(10*(i+1))), []byte("v"))
		task, err := NewMergeTask(dir, 1, mem, propMeta, c, fs, opts)
		require.NoError(t, err)
		require.NotNil(t, task)
		require.Equal(t, i, task.outputSlot)
		require.NoError(t, task.BuildNewFile())
		require.NoError(t, task.UpdateMetaInfo())
		task.DeleteObsoleteFiles()
	}
	require.Len(t, propMeta.Unstable, 4)
}

// TestMergeTaskPromotesOnFifthOffer covers invariant 1 and §8 scenario 3:
// once four unstable slots exist, the fifth offer merges them with the new
// memtable directly into a single stable file rather than ever populating
// a literal slot 4, clearing the unstable set.
func TestMergeTaskPromotesOnFifthOffer(t *testing.T) {
	fs, c, opts, dir := newHarness(t)
	require.NoError(t, fs.MkdirAll(dir))
	propMeta := meta.NewPropertyMetaData()

	// Scenario 2: fill slots 0..3, one distinct entity per slot so entries
	// never collide.
	for i := 0; i < 4; i++ {
		mem := memWith(k(1, uint64(i), int32(10*(i+1))), []byte("v"))
		task, err := NewMergeTask(dir, 1, mem, propMeta, c, fs, opts)
		require.NoError(t, err)
		require.NotNil(t, task)
		require.Equal(t, i, task.outputSlot)
		require.NoError(t, task.BuildNewFile())
		require.NoError(t, task.UpdateMetaInfo())
		task.DeleteObsoleteFiles()
	}
	require.Len(t, propMeta.Unstable, 4)

	// Scenario 3: the fifth offer promotes.
	mem := memWith(k(1, 7, 50), []byte("e"))
	task, err := NewMergeTask(dir, 1, mem, propMeta, c, fs, opts)
	require.NoError(t, err)
	require.True(t, task.promotion)
	require.Equal(t, []int{0, 1, 2, 3}, task.participants)

	require.NoError(t, task.BuildNewFile())
	require.Equal(t, 5, task.entryCount)
	require.NoError(t, task.UpdateMetaInfo())
	require.Len(t, task.obsolete, 4)
	task.DeleteObsoleteFiles()

	require.Empty(t, propMeta.Unstable)
	require.Len(t, propMeta.Stable, 1)
	stable := propMeta.Stable[0]
	require.Equal(t, uint64(0), stable.FileNumber)
	require.Equal(t, int32(0), stable.SmallestTime)
	require.Equal(t, int32(50), stable.LargestTime)

	for slot := 0; slot < 4; slot++ {
		require.False(t, fs.Exists(meta.UnstableTablePath(dir, slot)))
	}

	h, err := c.Get(meta.StableTablePath(dir, stable.FileNumber))
	require.NoError(t, err)
	defer h.Release()
	it, err := h.Table().NewIter()
	require.NoError(t, err)
	// Output order follows the key's total order (entityId ascending,
	// propertyId fixed here), not offer order: entities 0..3 (the four
	// participants) sort before entity 7 (the incoming memtable).
	require.Equal(t, [][]byte{
		[]byte("v"), []byte("v"), []byte("v"), []byte("v"), []byte("e"),
	}, readAll(t, it))
}

// TestMergeTaskMultiPropertyPartition exercises a single memtable spanning
// two properties getting partitioned into two independent tasks.
func TestMergeTaskMultiPropertyPartition(t *testing.T) {
	mem := memWith(
		k(1, 1, 10), []byte("p1"),
		k(2, 1, 5), []byte("p2"),
	)
	parts := mem.Partition()
	require.Len(t, parts, 2)
	require.Equal(t, 1, parts[1].Len())
	require.Equal(t, 1, parts[2].Len())

	fs, c, opts, dir := newHarness(t)
	require.NoError(t, fs.MkdirAll(dir))
	for propertyID, sub := range parts {
		task, err := NewMergeTask(meta.PropertyDir(dir, propertyID), propertyID, sub,
			meta.NewPropertyMetaData(), c, fs, opts)
		require.NoError(t, err)
		require.NotNil(t, task)
		require.NoError(t, task.BuildNewFile())
		require.Equal(t, 1, task.entryCount)
	}
}

// TestMergeTaskReaderCoexistsWithEviction exercises §4.3/§9: an iterator
// checked out before a merge obsoletes its file stays valid through Evict,
// and the table is only physically closed once the handle is Released.
func TestMergeTaskReaderCoexistsWithEviction(t *testing.T) {
	fs, c, opts, dir := newHarness(t)
	require.NoError(t, fs.MkdirAll(dir))
	propMeta := meta.NewPropertyMetaData()

	// Fill slots 0..3 so that the next offer promotes and obsoletes them.
	for i := 0; i < 4; i++ {
		fill := memWith(k(1, uint64(i+1), int32(10*(i+1))), []byte("v"+string(rune('1'+i))))
		fillTask, err := NewMergeTask(dir, 1, fill, propMeta, c, fs, opts)
		require.NoError(t, err)
		require.NoError(t, fillTask.BuildNewFile())
		require.NoError(t, fillTask.UpdateMetaInfo())
		fillTask.DeleteObsoleteFiles()
	}

	mem := memWith(k(1, 9, 50), []byte("v9"))
	task, err := NewMergeTask(dir, 1, mem, propMeta, c, fs, opts)
	require.NoError(t, err)
	require.True(t, task.promotion)
	require.NoError(t, task.BuildNewFile())
	require.NoError(t, task.UpdateMetaInfo())

	// A reader checks out the about-to-be-obsoleted slot 0 file before
	// DeleteObsoleteFiles runs.
	readerHandle, err := c.Get(meta.UnstableTablePath(dir, 0))
	require.NoError(t, err)
	readerIt, err := readerHandle.Table().NewIter()
	require.NoError(t, err)
	require.True(t, readerIt.Valid())

	task.DeleteObsoleteFiles()
	require.False(t, fs.Exists(meta.UnstableTablePath(dir, 0)))

	// The checked-out iterator still reads valid data after eviction.
	require.Equal(t, []byte("v1"), readerIt.Value())
	readerHandle.Release()
}

// TestNewMergeTaskReturnsNilForEmptyMemtable covers §4.6 step 4's "null iff
// sub-buffer was empty" contract.
func TestNewMergeTaskReturnsNilForEmptyMemtable(t *testing.T) {
	fs, c, opts, dir := newHarness(t)
	propMeta := meta.NewPropertyMetaData()
	task, err := NewMergeTask(dir, 1, memtable.New(), propMeta, c, fs, opts)
	require.NoError(t, err)
	require.Nil(t, task)
}
