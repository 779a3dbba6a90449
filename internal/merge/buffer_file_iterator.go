package merge

import "github.com/tgraphdb/propstore/internal/base"

// BufferFileAndTableIterator merges one file's overlay buffer (late-
// arriving edits) with the file's own table iterator. The buffer is
// newer than the file it overlays, so it is given first in the child
// list: on a tied key, MergingIterator's list-order tiebreak lets the
// buffer's entry win.
//
// This is a thin, named wrapper around MergingIterator rather than a
// distinct algorithm, matching §4.5's composition rule: "a
// BufferFileAndTableIterator(bufferIter, tableIter) if the file has an
// overlay buffer, else the table iterator alone."
type BufferFileAndTableIterator struct {
	*MergingIterator
}

// NewBufferFileAndTableIterator returns the composed iterator for one
// participant file that has an overlay buffer.
func NewBufferFileAndTableIterator(bufferIter, tableIter base.KVIterator) *BufferFileAndTableIterator {
	return &BufferFileAndTableIterator{MergingIterator: NewMergingIterator(bufferIter, tableIter)}
}
