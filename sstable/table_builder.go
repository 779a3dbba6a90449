// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/tgraphdb/propstore/internal/base"
	"github.com/tgraphdb/propstore/internal/vfs"
)

// DefaultBlockSize is the target size a data block is flushed at.
const DefaultBlockSize = 4 << 10 // 4 KiB

// magic identifies a finished sorted table; read back by NewReader to catch a
// truncated or unrelated file before trusting the footer.
const magic = uint64(0x70726f7073746f72) // "propstor"

// footerSize is the fixed-size trailer: indexOffset, indexLength, magic.
const footerSize = 8 + 8 + 8

// Options configures a TableBuilder (and, symmetrically, a Reader).
type Options struct {
	BlockSize       int
	RestartInterval int
	Compression     Compression
}

// EnsureDefaults fills zero-valued fields with this module's defaults, the
// way the teacher's db.Options.EnsureDefaults does.
func (o Options) EnsureDefaults() Options {
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.RestartInterval <= 0 {
		o.RestartInterval = DefaultRestartInterval
	}
	if o.Compression == CompressionUnset {
		o.Compression = CompressionSnappy
	}
	return o
}

// TableBuilder drives a sequence of BlockBuilders into one complete sorted
// file: a data-block stream, an index block, and a fixed footer.
type TableBuilder struct {
	opts Options
	w    vfs.File

	offset      int64
	dataBlock   *BlockBuilder
	indexBlock  *BlockBuilder
	lastKey     base.InternalKey
	haveLastKey bool

	entryCount int
	smallest   base.InternalKey
	largest    base.InternalKey
	haveBounds bool

	closed bool
}

// NewTableBuilder returns a builder that writes through w.
func NewTableBuilder(w vfs.File, opts Options) *TableBuilder {
	opts = opts.EnsureDefaults()
	return &TableBuilder{
		opts:       opts,
		w:          w,
		dataBlock:  NewBlockBuilder(opts.RestartInterval),
		indexBlock: NewBlockBuilder(opts.RestartInterval),
	}
}

// Add appends one (key, value) pair. Keys passed in must be globally
// sorted per base.Compare; violating this corrupts the resulting index.
func (tb *TableBuilder) Add(key base.InternalKey, value []byte) error {
	if tb.closed {
		return errors.New("propstore: Add after Finish")
	}
	if tb.haveLastKey && base.Compare(tb.lastKey, key) > 0 {
		return errors.Newf("propstore: keys out of order: %+v then %+v", tb.lastKey, key)
	}
	tb.dataBlock.Add(key, value)
	tb.lastKey = key
	tb.haveLastKey = true

	if !tb.haveBounds {
		tb.smallest = key
		tb.haveBounds = true
	}
	tb.largest = key
	tb.entryCount++

	if tb.dataBlock.EstimatedSize() >= tb.opts.BlockSize {
		if err := tb.flushDataBlock(); err != nil {
			return err
		}
	}
	return nil
}

func (tb *TableBuilder) flushDataBlock() error {
	if tb.dataBlock.Empty() {
		return nil
	}
	raw := tb.dataBlock.Finish()
	compressed, err := compressBlock(tb.opts.Compression, raw)
	if err != nil {
		return err
	}
	if _, err := tb.w.Write(compressed); err != nil {
		return err
	}

	handle := blockHandle{offset: uint64(tb.offset), length: uint64(len(compressed))}
	tb.indexBlock.Add(tb.lastKey, encodeBlockHandle(handle))

	tb.offset += int64(len(compressed))
	tb.dataBlock.Reset()
	return nil
}

// blockHandle is the file offset and length of a block.
type blockHandle struct {
	offset, length uint64
}

func encodeBlockHandle(h blockHandle) []byte {
	buf := make([]byte, 2*binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, h.offset)
	n += binary.PutUvarint(buf[n:], h.length)
	return buf[:n]
}

func decodeBlockHandle(buf []byte) (blockHandle, error) {
	offset, n := binary.Uvarint(buf)
	if n <= 0 {
		return blockHandle{}, errors.New("propstore: corrupt block handle")
	}
	length, m := binary.Uvarint(buf[n:])
	if m <= 0 {
		return blockHandle{}, errors.New("propstore: corrupt block handle")
	}
	return blockHandle{offset: offset, length: length}, nil
}

// Finish flushes any pending data block, writes the index block, and
// appends the fixed footer. Finish may only be called once.
func (tb *TableBuilder) Finish() error {
	if tb.closed {
		return errors.New("propstore: Finish called twice")
	}
	if err := tb.flushDataBlock(); err != nil {
		return err
	}

	indexRaw := tb.indexBlock.Finish()
	indexCompressed, err := compressBlock(tb.opts.Compression, indexRaw)
	if err != nil {
		return err
	}
	indexOffset := uint64(tb.offset)
	if _, err := tb.w.Write(indexCompressed); err != nil {
		return err
	}
	tb.offset += int64(len(indexCompressed))

	var footer [footerSize]byte
	binary.LittleEndian.PutUint64(footer[0:8], indexOffset)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(len(indexCompressed)))
	binary.LittleEndian.PutUint64(footer[16:24], magic)
	if _, err := tb.w.Write(footer[:]); err != nil {
		return err
	}

	tb.closed = true
	return nil
}

// EntryCount, Smallest, and Largest expose the bookkeeping MergeTask needs
// to populate FileMetaData once Finish has run.
func (tb *TableBuilder) EntryCount() int           { return tb.entryCount }
func (tb *TableBuilder) Smallest() base.InternalKey { return tb.smallest }
func (tb *TableBuilder) Largest() base.InternalKey  { return tb.largest }
func (tb *TableBuilder) FileSize() int64            { return tb.offset + footerSize }
