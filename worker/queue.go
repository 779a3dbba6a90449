// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package worker

import (
	"sync"

	"github.com/tgraphdb/propstore/internal/memtable"
)

// memTableQueue is the unbounded, thread-safe FIFO of offered MemTables
// (§2, §5, §6). It is a condition-variable-backed queue rather than a Go
// channel so that isMerging() can inspect the queue length under the
// same lock that guards Take/Offer (§4.6: "isMerging() returns true iff
// ... the queue is non-empty").
type memTableQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []*memtable.MemTable
	interrupt bool
}

func newMemTableQueue() *memTableQueue {
	q := &memTableQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Offer enqueues mem. Back-pressure is the write path's responsibility
// (§4.6): Offer never blocks.
func (q *memTableQueue) Offer(mem *memtable.MemTable) {
	q.mu.Lock()
	q.items = append(q.items, mem)
	q.mu.Unlock()
	q.cond.Signal()
}

// Take blocks until an item is available or Interrupt is called. ok is
// false only when interrupted with an empty queue, signaling clean
// worker exit (§5 "Cancellation").
func (q *memTableQueue) Take() (mem *memtable.MemTable, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.interrupt {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	mem = q.items[0]
	q.items = q.items[1:]
	return mem, true
}

// Len returns the current queue depth under lock.
func (q *memTableQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Interrupt wakes any blocked Take and causes future Takes on an empty
// queue to return ok=false.
func (q *memTableQueue) Interrupt() {
	q.mu.Lock()
	q.interrupt = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
