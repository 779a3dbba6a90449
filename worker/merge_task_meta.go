// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package worker

import (
	"github.com/cockroachdb/errors"
	"github.com/tgraphdb/propstore/meta"
)

// obsoleteFile is one participant's bookkeeping, captured by
// UpdateMetaInfo (while the old metadata is still visible) for
// DeleteObsoleteFiles to act on after the lock is released.
type obsoleteFile struct {
	path       string
	bufferPath string
	hasBuffer  bool
	fileNumber uint64
}

// UpdateMetaInfo applies this task's outcome to propMeta. Must be called
// under the SystemMeta exclusive lock (§4.5 "updateMetaInfo").
func (t *MergeTask) UpdateMetaInfo() error {
	var participantMinSmallest int32
	haveParticipantSmallest := false

	for _, slot := range t.participants {
		fm, ok := t.propMeta.Unstable[slot]
		if !ok {
			return errors.AssertionFailedWithDepthf(1,
				"propstore: participant slot %d vanished before UpdateMetaInfo: MetaCorruption", slot)
		}
		if !haveParticipantSmallest || fm.SmallestTime < participantMinSmallest {
			participantMinSmallest = fm.SmallestTime
			haveParticipantSmallest = true
		}

		of := obsoleteFile{path: meta.UnstableTablePath(t.dir, slot), fileNumber: uint64(slot)}
		if bufPath, ok := t.propMeta.UnstableBuffers[slot]; ok {
			of.bufferPath, of.hasBuffer = bufPath, true
		}
		t.obsolete = append(t.obsolete, of)

		t.propMeta.RemoveUnstable(slot)
	}

	if t.promotion {
		startTime := int32(0)
		if latest := t.propMeta.LatestStable(); latest != nil {
			startTime = latest.LargestTime + 1
		}
		id := t.propMeta.NextStableID()
		fm := &meta.FileMetaData{
			FileNumber:   id,
			ByteSize:     uint64(t.byteSize),
			SmallestTime: startTime,
			LargestTime:  t.maxTime,
		}
		t.propMeta.RegisterStable(fm)
		t.stableID = id

		if err := t.propMeta.ClearAllUnstable(); err != nil {
			return err
		}
	} else {
		// §9 Open Question (b), resolved via option (a): take the
		// defensive minimum of the participants' smallestTime and the
		// memtable-only minimum observed while building the file, rather
		// than asserting participants always dominate. Under ordinary
		// growth (see NewMergeTask) a same-level rewrite never actually
		// has participants, so haveParticipantSmallest is false here and
		// startTime reduces to t.minTime; the branch stays in place for
		// any future caller that does populate t.participants below the
		// promotion threshold.
		startTime := participantMinSmallest
		if !haveParticipantSmallest || t.minTime < participantMinSmallest {
			// A memtable-only key sorted below every participant's
			// smallestTime: the reference implementation asserts this
			// can't happen; this module flags it and takes the smaller
			// bound defensively instead of panicking.
			if haveParticipantSmallest {
				t.discrepancyFlagged = true
			}
			startTime = t.minTime
		}
		fm := &meta.FileMetaData{
			FileNumber:   uint64(t.outputSlot),
			ByteSize:     uint64(t.byteSize),
			SmallestTime: startTime,
			LargestTime:  t.maxTime,
		}
		t.propMeta.RegisterUnstable(t.outputSlot, fm)
	}

	return nil
}
