// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package worker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tgraphdb/propstore/meta"
)

// TestRunCycleRecoveredPanicsOnMetaCorruption covers §7: a non-contiguous
// unstable slot set is MetaCorruption, and the worker goroutine panics
// (after logging) rather than silently skipping the property.
func TestRunCycleRecoveredPanicsOnMetaCorruption(t *testing.T) {
	fs, _, opts, dir := newHarness(t)
	require.NoError(t, fs.MkdirAll(dir))
	sysMeta := meta.NewSystemMeta(fs, dir)

	sysMeta.Lock()
	propMeta := sysMeta.Property(1)
	// A gap at slot 0 with slot 1 present is non-contiguous.
	propMeta.Unstable[1] = &meta.FileMetaData{FileNumber: 1}
	sysMeta.Unlock()

	w := NewMergeWorker(dir, fs, sysMeta, opts)
	mem := memWith(k(1, 1, 10), []byte("v1"))

	require.Panics(t, func() { w.runCycleRecovered(mem) })
}
