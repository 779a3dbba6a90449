// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package worker

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tgraphdb/propstore/internal/base"
	"github.com/tgraphdb/propstore/internal/cache"
	"github.com/tgraphdb/propstore/internal/memtable"
	"github.com/tgraphdb/propstore/internal/merge"
	"github.com/tgraphdb/propstore/meta"
	"github.com/tgraphdb/propstore/sstable"
	"github.com/tgraphdb/propstore/internal/vfs"
)

// MergeTask is the per-property unit of work (§4.5): pick participants,
// build the new file, atomically swap metadata, release old resources.
//
// Grounded in aalhour-rockyardkv/internal/compaction/job.go's
// CompactionJob field layout (compaction spec, dbPath, fs, tableCache,
// nextFileNum generator, output bookkeeping), generalized from one
// arbitrary compaction to this store's fixed 5-slot-then-promote shape.
type MergeTask struct {
	dir        string
	propertyID uint32
	mem        *memtable.MemTable
	propMeta   *meta.PropertyMetaData
	cache      *cache.Cache
	fs         vfs.FS
	opts       Options
	cycleID    string

	// plan, computed by newMergeTask.
	participants []int // consumed unstable slot ids; only non-empty on promotion
	promotion    bool
	outputSlot   int    // valid when !promotion
	stableID     uint64 // valid when promotion

	// filled in by BuildNewFile.
	outputPath         string
	entryCount         int
	minTime            int32
	maxTime            int32
	byteSize           int64
	participantHandles []*cache.Handle

	// filled in by UpdateMetaInfo.
	obsolete           []obsoleteFile
	discrepancyFlagged bool
}

// NewMergeTask selects this property's merge participants and decides the
// outcome (§4.5 "Participant selection"). It returns nil if mem is empty
// (§4.6 step 4: "returns a MergeTask or null (null iff sub-buffer was
// empty)").
//
// Below the promotion threshold, a merge cycle is a pure append: the
// incoming memtable becomes its own new unstable slot and the existing
// slots are left untouched, so a property accumulates slots 0..3 one at a
// time (invariant 1, §8 scenarios 1-2). Once four slots already exist, this
// memtable would be the fifth, so instead of creating a slot 4 the task
// promotes: it merges the memtable with all four existing slots straight
// into a new stable file and clears the unstable set. Participants are
// only ever populated in that promoting case: a same-level rewrite that
// actually consumed existing unstable files would leave a gap at the head
// of the prefix once those files were removed, conflicting with invariant
// 1's "slot set is always a prefix {0,...,k-1}" — see DESIGN.md for the
// full resolution of this tension.
func NewMergeTask(
	dir string, propertyID uint32, mem *memtable.MemTable, propMeta *meta.PropertyMetaData,
	c *cache.Cache, fs vfs.FS, opts Options,
) (*MergeTask, error) {
	if mem == nil || mem.Empty() {
		return nil, nil
	}
	slots, contiguous := propMeta.ContiguousUnstablePrefix()
	if !contiguous {
		return nil, errors.AssertionFailedWithDepthf(1,
			"propstore: property %d has a non-contiguous unstable slot set: MetaCorruption", propertyID)
	}

	t := &MergeTask{
		dir:        dir,
		propertyID: propertyID,
		mem:        mem,
		propMeta:   propMeta,
		cache:      c,
		fs:         fs,
		opts:       opts.EnsureDefaults(),
		cycleID:    uuid.NewString(),
	}
	if len(slots) == meta.PromotionThreshold {
		t.promotion = true
		t.participants = slots
	} else {
		t.outputSlot = len(slots)
	}
	return t, nil
}

// BuildNewFile streams the merged participant data into a fresh output
// file, outside any global lock (§4.5, §9). The output is fully written
// and fsyncable but not yet referenced by metadata.
func (t *MergeTask) BuildNewFile() error {
	if t.promotion {
		t.outputPath = meta.StableTablePath(t.dir, t.nextStableIDPreview())
	} else {
		t.outputPath = meta.UnstableTablePath(t.dir, t.outputSlot)
	}

	// mergeInit: delete any stale name collision (a prior, abandoned
	// attempt at this same deterministic file name), then create empty.
	if err := t.fs.Remove(t.outputPath); err != nil {
		return errors.Wrapf(err, "propstore: clearing stale output %s", t.outputPath)
	}
	out, err := t.fs.Create(t.outputPath)
	if err != nil {
		return errors.Wrapf(err, "propstore: creating output file %s", t.outputPath)
	}

	children, err := t.composeIterator()
	if err != nil {
		_ = out.Close()
		return err
	}
	defer func() {
		for _, h := range t.participantHandles {
			h.Release()
		}
	}()

	tb := sstable.NewTableBuilder(out, t.opts.Table)
	t.minTime, t.maxTime = math.MaxInt32, math.MinInt32
	for children.Valid() {
		key := children.Key()
		if err := tb.Add(key, children.Value()); err != nil {
			_ = out.Close()
			return errors.Wrapf(err, "propstore: writing merged entry")
		}
		if key.StartTime < t.minTime {
			t.minTime = key.StartTime
		}
		if key.StartTime > t.maxTime {
			t.maxTime = key.StartTime
		}
		children.Next()
	}
	if err := tb.Finish(); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "propstore: finishing output table")
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "propstore: fsyncing output table")
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "propstore: closing output table")
	}

	t.entryCount = tb.EntryCount()
	t.byteSize = tb.FileSize()
	if t.entryCount == 0 {
		// Nothing to merge other than bookkeeping; keep min/max sane.
		t.minTime, t.maxTime = 0, 0
	}
	return nil
}

// outputFileNumber returns the file number of this task's output: the
// new stable id on promotion, the output slot id otherwise. Valid after
// UpdateMetaInfo has run.
func (t *MergeTask) outputFileNumber() uint64 {
	if t.promotion {
		return t.stableID
	}
	return uint64(t.outputSlot)
}

// nextStableIDPreview returns the id BuildNewFile uses for the output
// path, without consuming the generator: the generator is only advanced
// inside UpdateMetaInfo, under the exclusive lock, so two properties
// merging concurrently in the same worker cycle never race on it. Since
// this store has exactly one merge task in flight per property per
// cycle, and fileNumber = k or nextStableId() is deterministic given
// current metadata (§4.5 "Failure semantics"), previewing here and
// consuming later is safe: a re-attempt after a BuildNewFile failure
// recomputes the same path and the delete-if-exists step above
// overwrites it.
func (t *MergeTask) nextStableIDPreview() uint64 {
	return t.propMeta.NextStableIDValue
}

// composeIterator builds the merge input list in the order §4.4/§4.5
// specify: memtable, then (promotion + existing stable tail) the latest-
// stable overlay, then each participant file ascending.
func (t *MergeTask) composeIterator() (base.KVIterator, error) {
	children := []base.KVIterator{t.mem.NewIter()}

	if t.promotion {
		if latest := t.propMeta.LatestStable(); latest != nil {
			stableIter, err := t.openParticipant(meta.StableTablePath(t.dir, latest.FileNumber))
			if err != nil {
				return nil, err
			}
			var src base.KVIterator = stableIter
			if bufPath, ok := t.propMeta.StableBuffers[latest.FileNumber]; ok {
				bufIter, err := t.openBufferIterator(bufPath)
				if err != nil {
					return nil, err
				}
				src = merge.NewBufferFileAndTableIterator(bufIter, stableIter)
			}
			children = append(children, merge.NewTableLatestValueIterator(src))
		}
	}

	for _, slot := range t.participants {
		tableIter, err := t.openParticipant(meta.UnstableTablePath(t.dir, slot))
		if err != nil {
			return nil, err
		}
		if bufPath, ok := t.propMeta.UnstableBuffers[slot]; ok {
			bufIter, err := t.openBufferIterator(bufPath)
			if err != nil {
				return nil, err
			}
			children = append(children, merge.NewBufferFileAndTableIterator(bufIter, tableIter))
		} else {
			children = append(children, tableIter)
		}
	}

	return merge.NewMergingIterator(children...), nil
}

func (t *MergeTask) openParticipant(path string) (base.KVIterator, error) {
	h, err := t.cache.Get(path)
	if err != nil {
		return nil, errors.Wrapf(err, "propstore: opening participant %s", path)
	}
	t.participantHandles = append(t.participantHandles, h)
	it, err := h.Table().NewIter()
	if err != nil {
		return nil, errors.Wrapf(err, "propstore: iterating participant %s", path)
	}
	return it, nil
}

// openBufferIterator reads an overlay buffer file as its own small sorted
// table, the same format as a regular table (§6: ".buf" files share the
// sorted-table file format).
func (t *MergeTask) openBufferIterator(path string) (base.KVIterator, error) {
	h, err := t.cache.Get(path)
	if err != nil {
		return nil, errors.Wrapf(err, "propstore: opening overlay buffer %s", path)
	}
	t.participantHandles = append(t.participantHandles, h)
	it, err := h.Table().NewIter()
	if err != nil {
		return nil, errors.Wrapf(err, "propstore: iterating overlay buffer %s", path)
	}
	return it, nil
}
