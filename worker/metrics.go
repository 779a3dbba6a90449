// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package worker

import (
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// MetricsSnapshot is a point-in-time read of a MergeWorker's own counters,
// independent of the caller-supplied EventListener: EventListener fires
// per-event callbacks for an embedder that wants to react; MetricsSnapshot
// is for periodic scraping (e.g. by internal/metrics's prometheus
// collector).
type MetricsSnapshot struct {
	QueueDepth             int
	Merging                bool
	CyclesCompleted        int64
	CycleDurationP50Micros int64
	CycleDurationP99Micros int64
}

// workerMetrics accumulates merge-cycle wall time in a histogram, the way
// real pebble's internal metrics track compaction duration distributions
// rather than just a running total.
type workerMetrics struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newWorkerMetrics() *workerMetrics {
	return &workerMetrics{
		// 1 microsecond to 10 minutes, 3 significant digits.
		hist: hdrhistogram.New(1, (10 * time.Minute).Microseconds(), 3),
	}
}

func (m *workerMetrics) record(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.hist.RecordValue(d.Microseconds())
}

func (m *workerMetrics) snapshot() (cycles, p50, p99 int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hist.TotalCount(), m.hist.ValueAtQuantile(50), m.hist.ValueAtQuantile(99)
}

// Metrics returns a snapshot of this worker's queue depth, merging state,
// and cycle-duration distribution.
func (w *MergeWorker) Metrics() MetricsSnapshot {
	w.mu.Lock()
	merging := w.merging
	w.mu.Unlock()

	cycles, p50, p99 := w.metrics.snapshot()
	return MetricsSnapshot{
		QueueDepth:             w.queue.Len(),
		Merging:                merging,
		CyclesCompleted:        cycles,
		CycleDurationP50Micros: p50,
		CycleDurationP99Micros: p99,
	}
}
