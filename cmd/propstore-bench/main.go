// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command propstore-bench drives a synthetic multi-property write load
// against a MergeWorker and ascii-graphs queue depth over time, the way
// the teacher's own pebble ships benchmark/tool commands under its
// tool/ tree.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/tgraphdb/propstore/internal/base"
	"github.com/tgraphdb/propstore/internal/memtable"
	"github.com/tgraphdb/propstore/internal/vfs"
	"github.com/tgraphdb/propstore/meta"
	"github.com/tgraphdb/propstore/worker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		properties int
		entities   int
		offers     int
		interval   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "propstore-bench",
		Short: "Drives a synthetic write load against a property store and graphs the merge worker's queue depth.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(properties, entities, offers, interval)
		},
	}
	cmd.Flags().IntVar(&properties, "properties", 4, "number of distinct properties to write across")
	cmd.Flags().IntVar(&entities, "entities", 100, "number of distinct entities written per offer, per property")
	cmd.Flags().IntVar(&offers, "offers", 40, "number of memtables to offer")
	cmd.Flags().DurationVar(&interval, "interval", 25*time.Millisecond, "delay between successive offers")
	return cmd
}

func run(properties, entities, offers int, interval time.Duration) error {
	fs := vfs.NewMemFS()
	const dir = "bench"
	if err := fs.MkdirAll(dir); err != nil {
		return err
	}

	sysMeta := meta.NewSystemMeta(fs, dir)
	opts := worker.Options{}.EnsureDefaults()
	w := worker.NewMergeWorker(dir, fs, sysMeta, opts)
	w.Start()
	defer w.Interrupt()

	rng := rand.New(rand.NewSource(1))
	queueDepths := make([]float64, 0, offers)

	for i := 0; i < offers; i++ {
		mem := memtable.New()
		startTime := int32(i)
		for p := 0; p < properties; p++ {
			for e := 0; e < entities; e++ {
				key := base.InternalKey{
					PropertyID: uint32(p + 1),
					EntityID:   uint64(e + 1),
					StartTime:  startTime,
					Kind:       base.KindValue,
				}
				mem.Append(key, []byte(fmt.Sprintf("v%d", rng.Intn(1000))))
			}
		}
		w.Offer(mem)
		queueDepths = append(queueDepths, float64(w.Metrics().QueueDepth))
		time.Sleep(interval)
	}

	for w.IsMerging() {
		time.Sleep(interval)
	}

	graph := asciigraph.Plot(queueDepths,
		asciigraph.Height(10),
		asciigraph.Caption("merge queue depth, sampled after each offer"))
	fmt.Println(graph)

	snap := w.Metrics()
	fmt.Printf("merge cycles completed: %d, cycle duration p50=%dus p99=%dus\n",
		snap.CyclesCompleted, snap.CycleDurationP50Micros, snap.CycleDurationP99Micros)
	return nil
}
