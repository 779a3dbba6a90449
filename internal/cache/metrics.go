package cache

import "sync/atomic"

// Metrics holds the plain counters this package exposes; Collect adapts
// them into prometheus.Collector for the owning MergeWorker/store to
// register once, the way real pebble's internal metrics structs are
// wrapped by a single top-level prometheus collector.
type Metrics struct {
	Hits       atomicCounter
	Misses     atomicCounter
	Evictions  atomicCounter
	OpenTables atomicCounter
}

type atomicCounter struct{ v int64 }

func (c *atomicCounter) Add(delta int64) { atomic.AddInt64(&c.v, delta) }
func (c *atomicCounter) Load() int64     { return atomic.LoadInt64(&c.v) }

// Snapshot returns the current counter values. Used by the Prometheus
// collector in internal/metrics and by tests.
func (c *Cache) Snapshot() Metrics {
	return Metrics{
		Hits:       atomicCounter{c.metrics.Hits.Load()},
		Misses:     atomicCounter{c.metrics.Misses.Load()},
		Evictions:  atomicCounter{c.metrics.Evictions.Load()},
		OpenTables: atomicCounter{c.metrics.OpenTables.Load()},
	}
}
