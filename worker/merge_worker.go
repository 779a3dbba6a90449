// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package worker

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/google/uuid"

	"github.com/tgraphdb/propstore/internal/cache"
	"github.com/tgraphdb/propstore/internal/memtable"
	"github.com/tgraphdb/propstore/internal/vfs"
	"github.com/tgraphdb/propstore/meta"
)

// MergeWorker is the single background goroutine that drains offered
// MemTables and folds each into the on-disk file inventory, one property
// at a time (§4.6). There is exactly one MergeWorker per property store;
// it is the sole mutator of the store's SystemMeta.
type MergeWorker struct {
	dir     string
	fs      vfs.FS
	sysMeta *meta.SystemMeta
	cache   *cache.Cache
	opts    Options

	queue   *memTableQueue
	metrics *workerMetrics

	mu      sync.Mutex
	merging bool
}

// NewMergeWorker returns a worker rooted at dir, guarding sysMeta and
// sharing one table cache across every property it merges.
func NewMergeWorker(dir string, fs vfs.FS, sysMeta *meta.SystemMeta, opts Options) *MergeWorker {
	opts = opts.EnsureDefaults()
	return &MergeWorker{
		dir:     dir,
		fs:      fs,
		sysMeta: sysMeta,
		opts:    opts,
		cache:   cache.New(fs, opts.Table, opts.CacheCapacity),
		queue:   newMemTableQueue(),
		metrics: newWorkerMetrics(),
	}
}

// Offer enqueues mem for merging. Never blocks (§4.6).
func (w *MergeWorker) Offer(mem *memtable.MemTable) { w.queue.Offer(mem) }

// IsMerging reports whether a cycle is in flight or one is queued to run
// (§4.6: "isMerging() returns true iff a cycle is in flight or the queue
// is non-empty").
func (w *MergeWorker) IsMerging() bool {
	w.mu.Lock()
	inFlight := w.merging
	w.mu.Unlock()
	return inFlight || w.queue.Len() > 0
}

// Start launches the worker's single draining goroutine. Start must be
// called at most once per MergeWorker.
func (w *MergeWorker) Start() {
	go w.run()
}

// Interrupt stops the worker's goroutine once the queue is empty: the
// cycle in flight and any MemTables already queued are still merged
// before the goroutine exits (§5 "Cancellation").
func (w *MergeWorker) Interrupt() {
	w.queue.Interrupt()
}

// Cache exposes the shared table cache, e.g. for a reader path to serve
// point lookups through the same resident tables the worker maintains.
func (w *MergeWorker) Cache() *cache.Cache { return w.cache }

func (w *MergeWorker) run() {
	for {
		mem, ok := w.queue.Take()
		if !ok {
			return
		}
		w.mu.Lock()
		w.merging = true
		w.mu.Unlock()

		start := time.Now()
		w.runCycleRecovered(mem)
		w.metrics.record(time.Since(start))

		w.mu.Lock()
		w.merging = false
		w.mu.Unlock()
	}
}

// runCycleRecovered runs one cycle and, on a MetaCorruption or fatal
// persistence failure, logs a redacted error report before re-panicking
// (§7: "panic the worker; the process must restart" — the repanic
// propagates out of this goroutine, which an embedding service or
// cmd/propstore-bench is expected to treat as fatal, since this module
// owns no process supervisor of its own).
func (w *MergeWorker) runCycleRecovered(mem *memtable.MemTable) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = errors.Newf("%v", r)
			}
			w.opts.Logger.Errorf("propstore: fatal merge worker error: %s", redact.Sprint(err))
			panic(r)
		}
	}()
	w.runCycle(mem)
}

// panicOnCorruption turns an invariant-violation error (MetaCorruption)
// into a panic: per §7, corruption is not a condition this worker
// continues past, unlike TransientIO which is logged and retried next
// cycle.
func panicOnCorruption(err error) {
	if err != nil && errors.HasAssertionFailure(err) {
		panic(err)
	}
}

// runCycle implements §4.6's seven steps for one offered MemTable: take,
// partition, build-per-property, lock-and-apply-metadata, force, unlock,
// then clean up obsolete files and fire notifications.
func (w *MergeWorker) runCycle(mem *memtable.MemTable) {
	cycleID := uuid.NewString()
	if w.opts.EventListener.MergeBegin != nil {
		w.opts.EventListener.MergeBegin(MergeBeginInfo{CycleID: cycleID, EntryCount: mem.Len()})
	}

	partitions := mem.Partition()
	tasks := make([]*MergeTask, 0, len(partitions))

	for propertyID, sub := range partitions {
		propDir := meta.PropertyDir(w.dir, propertyID)
		if err := w.fs.MkdirAll(propDir); err != nil {
			w.opts.Logger.Errorf("propstore: creating property directory %s: %v", propDir, err)
			continue
		}

		// Property() may insert a fresh PropertyMetaData on first use,
		// which mutates SystemMeta's map: take the exclusive lock for
		// that lookup (§4.6 step 2), then release it for the unlocked
		// build phase that follows. This worker is SystemMeta's only
		// mutator, so the *meta.PropertyMetaData read here stays valid
		// until this same goroutine locks again for UpdateMetaInfo.
		w.sysMeta.Lock()
		propMeta := w.sysMeta.Property(propertyID)
		w.sysMeta.Unlock()

		task, err := NewMergeTask(propDir, propertyID, sub, propMeta, w.cache, w.fs, w.opts)
		if err != nil {
			panicOnCorruption(err)
			w.opts.Logger.Errorf("propstore: selecting merge participants for property %d: %v", propertyID, err)
			continue
		}
		if task == nil {
			continue
		}
		if err := task.BuildNewFile(); err != nil {
			w.opts.Logger.Errorf("propstore: building merged file for property %d: %v", propertyID, err)
			continue
		}
		tasks = append(tasks, task)
	}

	// Step 5: batch every task's metadata update under one exclusive
	// lock, then force-persist once (§4.5, §4.6 step 5).
	w.sysMeta.Lock()
	var firstErr error
	applied := tasks[:0]
	for _, t := range tasks {
		if err := t.UpdateMetaInfo(); err != nil {
			panicOnCorruption(err)
			w.opts.Logger.Errorf("propstore: applying merge result for property %d: %v", t.propertyID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		applied = append(applied, t)
	}
	if len(applied) > 0 {
		if err := w.sysMeta.Force(); err != nil {
			// §7: force failure is the one condition always surfaced as
			// fatal, to avoid the on-disk and in-memory metadata
			// diverging silently.
			w.sysMeta.Unlock()
			panic(errors.Wrapf(err, "propstore: forcing metadata"))
		} else if w.opts.EventListener.MetaFlushed != nil {
			w.opts.EventListener.MetaFlushed(len(applied))
		}
	}
	w.sysMeta.Unlock()

	// Step 6: release old resources outside the lock (§4.5, §4.6 step 6).
	for _, t := range applied {
		t.DeleteObsoleteFiles()
		if w.opts.EventListener.TableCreated != nil {
			w.opts.EventListener.TableCreated(TableCreateInfo{
				PropertyID: t.propertyID,
				FileNumber: t.outputFileNumber(),
				Stable:     t.promotion,
				Path:       t.outputPath,
			})
		}
	}

	if w.opts.EventListener.MergeEnd != nil {
		w.opts.EventListener.MergeEnd(MergeEndInfo{
			CycleID:       cycleID,
			PropertyCount: len(applied),
			Err:           firstErr,
		})
	}
}
