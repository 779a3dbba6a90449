package merge

import "github.com/tgraphdb/propstore/internal/base"

// TableLatestValueIterator wraps a sorted child iterator (whose keys are
// already ordered propertyId asc, entityId asc, startTime desc — the
// base.Compare order) and filters it down to exactly one entry per
// (propertyId, entityId): the first one seen, which is the newest
// startTime for that entity because of the descending-time ordering.
//
// This is the "dedupe" case §4.4 calls out explicitly: every other merge
// input is left with duplicates, but during promotion the latest-stable
// overlay must carry forward only each entity's single most-recent
// value, so the promoted file doesn't resurrect a stale version that a
// newer unstable record already superseded.
type TableLatestValueIterator struct {
	child base.KVIterator

	havePrev   bool
	prevProp   uint32
	prevEntity uint64

	valid bool
}

// NewTableLatestValueIterator wraps child, which must already be
// positioned (First called, or freshly returned from NewIter).
func NewTableLatestValueIterator(child base.KVIterator) *TableLatestValueIterator {
	it := &TableLatestValueIterator{child: child}
	it.skipDuplicates()
	return it
}

func (it *TableLatestValueIterator) skipDuplicates() {
	for it.child.Valid() {
		k := it.child.Key()
		if it.havePrev && k.PropertyID == it.prevProp && k.EntityID == it.prevEntity {
			it.child.Next()
			continue
		}
		it.valid = true
		return
	}
	it.valid = false
}

// Valid reports whether Key/Value may be called.
func (it *TableLatestValueIterator) Valid() bool { return it.valid }

// Key returns the current (propertyId, entityId)'s newest entry.
func (it *TableLatestValueIterator) Key() base.InternalKey { return it.child.Key() }

// Value returns the value paired with Key.
func (it *TableLatestValueIterator) Value() []byte { return it.child.Value() }

// Next advances to the next distinct (propertyId, entityId) pair.
func (it *TableLatestValueIterator) Next() bool {
	if !it.valid {
		return false
	}
	k := it.child.Key()
	it.prevProp, it.prevEntity, it.havePrev = k.PropertyID, k.EntityID, true
	it.child.Next()
	it.skipDuplicates()
	return it.valid
}

// Close closes the wrapped child iterator.
func (it *TableLatestValueIterator) Close() error { return it.child.Close() }
