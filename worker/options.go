// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package worker implements the merge core's hard middle: MergeTask (the
// per-property unit of work) and MergeWorker (the single background
// goroutine that drains the write path's queue of MemTables).
package worker

import (
	"log"
	"os"

	"github.com/tgraphdb/propstore/sstable"
)

// Logger is the teacher's own logging seam (ingest.go calls
// opts.Logger.Infof, opts.EventListener.TableCreated); this module reuses
// that shape instead of reaching for a new one.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// defaultLogger writes to stderr via the standard logger, matching real
// pebble's base.DefaultLogger behavior when no Logger is configured.
type defaultLogger struct{ l *log.Logger }

func (d defaultLogger) Infof(format string, args ...interface{})  { d.l.Printf("[INFO] "+format, args...) }
func (d defaultLogger) Errorf(format string, args ...interface{}) { d.l.Printf("[ERROR] "+format, args...) }

// DefaultLogger is the logger used when Options.Logger is nil.
var DefaultLogger Logger = defaultLogger{l: log.New(os.Stderr, "propstore: ", log.LstdFlags)}

// MergeBeginInfo is passed to EventListener.MergeBegin at the start of a
// worker cycle (§4.6 step 1).
type MergeBeginInfo struct {
	CycleID    string
	EntryCount int
}

// MergeEndInfo is passed to EventListener.MergeEnd at the end of a worker
// cycle (§4.6 step 7).
type MergeEndInfo struct {
	CycleID       string
	PropertyCount int
	Err           error
}

// TableCreateInfo mirrors the teacher's own TableCreateInfo
// (ingest.go: opts.EventListener.TableCreated), extended with the
// property/slot identity a merge-created file carries.
type TableCreateInfo struct {
	PropertyID uint32
	FileNumber uint64
	Stable     bool
	Path       string
}

// TableDeleteInfo is fired from deleteObsoleteFiles for every participant
// removed (§4.5).
type TableDeleteInfo struct {
	PropertyID uint32
	FileNumber uint64
	Stable     bool
	Path       string
	ArchiveErr error
}

// EventListener is the merge core's full set of observability hooks. Any
// field left nil is simply not called, the way real pebble's
// EventListener works.
type EventListener struct {
	MergeBegin   func(MergeBeginInfo)
	MergeEnd     func(MergeEndInfo)
	TableCreated func(TableCreateInfo)
	TableDeleted func(TableDeleteInfo)
	MetaFlushed  func(propertyCount int)
}

// ColdStorage archives a retired participant file's bytes to an external
// store before DeleteObsoleteFiles unlinks the local copy. Only unstable
// tables and overlay buffers are ever obsoleted (stable files accumulate
// disjoint time ranges forever, invariant 2), so archival applies to
// those alone. Satisfied by cloud/aws.Store (SPEC_FULL.md §D). Nil means
// archival is disabled.
type ColdStorage interface {
	Archive(path string) error
}

// Options configures a property store's MergeWorker/MergeTask, mirroring
// the teacher's db.Options.EnsureDefaults pattern.
type Options struct {
	Table         sstable.Options
	CacheCapacity int

	Logger        Logger
	EventListener EventListener
	ColdStorage   ColdStorage
}

// EnsureDefaults fills zero-valued fields with this module's defaults.
func (o Options) EnsureDefaults() Options {
	o.Table = o.Table.EnsureDefaults()
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = 500
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger
	}
	return o
}
