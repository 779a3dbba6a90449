// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package worker

import "github.com/cockroachdb/errors"

// DeleteObsoleteFiles evicts each participant's table from the cache
// (scheduling a deferred close) and deletes both its data file and any
// overlay buffer file, outside the metadata lock, after metadata has
// already been force-persisted (§4.5). Errors here are logged, never
// fatal: obsolete files are orphans, reclaimable by a garbage sweep.
func (t *MergeTask) DeleteObsoleteFiles() {
	for _, of := range t.obsolete {
		t.cache.Evict(of.path)
		err := errors.CombineErrors(t.archiveIfConfigured(of.path), t.fs.Remove(of.path))
		t.logAndReportDelete(of.path, of.fileNumber, err)

		if of.hasBuffer {
			t.cache.Evict(of.bufferPath)
			if err := t.archiveIfConfigured(of.bufferPath); err != nil {
				t.opts.Logger.Errorf("propstore: archiving overlay buffer %s: %v", of.bufferPath, err)
			}
			if err := t.fs.Remove(of.bufferPath); err != nil {
				t.opts.Logger.Errorf("propstore: deleting overlay buffer %s: %v", of.bufferPath, err)
			}
		}
	}
}

func (t *MergeTask) archiveIfConfigured(path string) error {
	if t.opts.ColdStorage == nil {
		return nil
	}
	return t.opts.ColdStorage.Archive(path)
}

// logAndReportDelete fires TableDeleted for one obsoleted file. Every
// obsolete file is an unstable participant's table: stable files are
// never deleted (invariant 2), so Stable is always false here.
func (t *MergeTask) logAndReportDelete(path string, fileNumber uint64, err error) {
	if err != nil {
		t.opts.Logger.Errorf("propstore: deleting obsolete file %s: %v", path, err)
	}
	if t.opts.EventListener.TableDeleted != nil {
		t.opts.EventListener.TableDeleted(TableDeleteInfo{
			PropertyID: t.propertyID,
			FileNumber: fileNumber,
			Path:       path,
			Stable:     false,
			ArchiveErr: err,
		})
	}
}
