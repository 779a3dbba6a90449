package base

// KVIterator is the minimal forward-iteration contract every merge input
// satisfies: a MemTable iterator, a sstable.Iterator, and the composed
// MergingIterator itself. Modeled on real pebble's internal.InternalIterator,
// trimmed to the forward-only scan this module's merge core needs.
type KVIterator interface {
	// Valid reports whether Key/Value may be called.
	Valid() bool
	// Key returns the current entry's key. Valid must be true.
	Key() InternalKey
	// Value returns the current entry's value. Valid must be true.
	Value() []byte
	// Next advances to the next entry and reports whether one exists.
	Next() bool
	// Close releases any iterator-local resources (not the underlying
	// Table, which the TableCache owns).
	Close() error
}
