// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package metrics adapts a MergeWorker and its table cache's internal
// counters into a single prometheus.Collector, for an embedder to
// register once against its own registry (mirroring how real pebble
// leaves Prometheus wiring to the embedding application rather than
// publishing its own global registry).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tgraphdb/propstore/internal/cache"
	"github.com/tgraphdb/propstore/worker"
)

// Collector implements prometheus.Collector over a single property
// store's table cache and merge worker.
type Collector struct {
	w *worker.MergeWorker
	c *cache.Cache

	cacheHits, cacheMisses, cacheEvictions, openTables *prometheus.Desc
	queueDepth, merging, cyclesCompleted               *prometheus.Desc
	cycleDurationP50, cycleDurationP99                 *prometheus.Desc
}

// New returns a Collector reading from w's metrics and c's counters.
func New(w *worker.MergeWorker, c *cache.Cache) *Collector {
	const ns = "propstore"
	return &Collector{
		w: w,
		c: c,
		cacheHits:        prometheus.NewDesc(ns+"_cache_hits_total", "Table cache hits.", nil, nil),
		cacheMisses:      prometheus.NewDesc(ns+"_cache_misses_total", "Table cache misses.", nil, nil),
		cacheEvictions:   prometheus.NewDesc(ns+"_cache_evictions_total", "Table cache evictions.", nil, nil),
		openTables:       prometheus.NewDesc(ns+"_cache_open_tables", "Tables currently resident in the cache.", nil, nil),
		queueDepth:       prometheus.NewDesc(ns+"_merge_queue_depth", "MemTables waiting to be merged.", nil, nil),
		merging:          prometheus.NewDesc(ns+"_merge_in_progress", "1 if a merge cycle is running, 0 otherwise.", nil, nil),
		cyclesCompleted:  prometheus.NewDesc(ns+"_merge_cycles_total", "Merge cycles completed.", nil, nil),
		cycleDurationP50: prometheus.NewDesc(ns+"_merge_cycle_duration_p50_microseconds", "Merge cycle duration, p50.", nil, nil),
		cycleDurationP99: prometheus.NewDesc(ns+"_merge_cycle_duration_p99_microseconds", "Merge cycle duration, p99.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (col *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- col.cacheHits
	ch <- col.cacheMisses
	ch <- col.cacheEvictions
	ch <- col.openTables
	ch <- col.queueDepth
	ch <- col.merging
	ch <- col.cyclesCompleted
	ch <- col.cycleDurationP50
	ch <- col.cycleDurationP99
}

// Collect implements prometheus.Collector.
func (col *Collector) Collect(ch chan<- prometheus.Metric) {
	cm := col.c.Snapshot()
	ch <- prometheus.MustNewConstMetric(col.cacheHits, prometheus.CounterValue, float64(cm.Hits.Load()))
	ch <- prometheus.MustNewConstMetric(col.cacheMisses, prometheus.CounterValue, float64(cm.Misses.Load()))
	ch <- prometheus.MustNewConstMetric(col.cacheEvictions, prometheus.CounterValue, float64(cm.Evictions.Load()))
	ch <- prometheus.MustNewConstMetric(col.openTables, prometheus.GaugeValue, float64(cm.OpenTables.Load()))

	wm := col.w.Metrics()
	ch <- prometheus.MustNewConstMetric(col.queueDepth, prometheus.GaugeValue, float64(wm.QueueDepth))
	mergingVal := 0.0
	if wm.Merging {
		mergingVal = 1
	}
	ch <- prometheus.MustNewConstMetric(col.merging, prometheus.GaugeValue, mergingVal)
	ch <- prometheus.MustNewConstMetric(col.cyclesCompleted, prometheus.CounterValue, float64(wm.CyclesCompleted))
	ch <- prometheus.MustNewConstMetric(col.cycleDurationP50, prometheus.GaugeValue, float64(wm.CycleDurationP50Micros))
	ch <- prometheus.MustNewConstMetric(col.cycleDurationP99, prometheus.GaugeValue, float64(wm.CycleDurationP99Micros))
}
