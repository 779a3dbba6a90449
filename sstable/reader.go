// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/tgraphdb/propstore/internal/base"
)

// Table is an opened, read-only sorted file. It is immutable once
// constructed; multiple Iterators may read it concurrently, matching
// §4.3/§5's "open Table instances: immutable after load, multiple
// iterators may coexist."
//
// Grounded in backwardn-pebble/sstable/reader.go's two-level index-then-
// block iterator shape, trimmed to the forward-only scan the merge core
// needs: MergeTask never seeks, it always drains a participant file in
// full.
type Table struct {
	data       []byte
	opts       Options
	indexBlock []blockIndexEntry
}

type blockIndexEntry struct {
	lastKey base.InternalKey
	handle  blockHandle
}

// NewReader parses a finished table's footer and index block. data is the
// table's full byte contents, typically an mmap'd region owned by the
// TableCache.
func NewReader(data []byte, opts Options) (*Table, error) {
	opts = opts.EnsureDefaults()
	if len(data) < footerSize {
		return nil, errors.New("propstore: table too short to contain a footer")
	}
	footer := data[len(data)-footerSize:]
	indexOffset := binary.LittleEndian.Uint64(footer[0:8])
	indexLength := binary.LittleEndian.Uint64(footer[8:16])
	gotMagic := binary.LittleEndian.Uint64(footer[16:24])
	if gotMagic != magic {
		return nil, errors.New("propstore: bad table magic, file is not a sorted table")
	}
	if indexOffset+indexLength > uint64(len(data)-footerSize) {
		return nil, errors.New("propstore: corrupt footer: index block out of range")
	}

	indexCompressed := data[indexOffset : indexOffset+indexLength]
	indexRaw, err := decompressBlock(opts.Compression, indexCompressed)
	if err != nil {
		return nil, errors.Wrapf(err, "propstore: decompressing index block")
	}
	indexBody, err := verifyBlockChecksum(indexRaw)
	if err != nil {
		return nil, err
	}
	indexEntries, err := decodeBlockEntries(indexBody)
	if err != nil {
		return nil, err
	}

	t := &Table{data: data, opts: opts}
	for _, e := range indexEntries {
		h, err := decodeBlockHandle(e.value)
		if err != nil {
			return nil, err
		}
		t.indexBlock = append(t.indexBlock, blockIndexEntry{lastKey: e.key, handle: h})
	}
	return t, nil
}

// blockEntry is one decoded (key, value) record from a data or index
// block.
type blockEntry struct {
	key   base.InternalKey
	value []byte
}

// decodeBlockEntries walks a finished block's entry stream (checksum
// trailer already stripped by the caller; the restart array and count are
// stripped here) and returns every record in order. BlockBuilder always writes sharedPrefixLen=0, so this never
// needs to reconstruct a shared prefix.
func decodeBlockEntries(body []byte) ([]blockEntry, error) {
	if len(body) < 4 {
		return nil, errors.New("propstore: block missing restart count")
	}
	restartCount := binary.LittleEndian.Uint32(body[len(body)-4:])
	restartArrayOff := len(body) - 4 - int(restartCount)*4
	if restartArrayOff < 0 {
		return nil, errors.New("propstore: corrupt restart array")
	}
	entries := body[:restartArrayOff]

	var out []blockEntry
	off := 0
	for off < len(entries) {
		shared, n := binary.Uvarint(entries[off:])
		off += n
		nonShared, n := binary.Uvarint(entries[off:])
		off += n
		valueLen, n := binary.Uvarint(entries[off:])
		off += n
		if shared != 0 {
			return nil, errors.New("propstore: unexpected shared-prefix encoding")
		}
		keyBytes := entries[off : off+int(nonShared)]
		off += int(nonShared)
		value := entries[off : off+int(valueLen)]
		off += int(valueLen)

		key := base.DecodeInternalKey(keyBytes)
		if key.Kind == base.KindInvalid {
			return nil, errors.New("propstore: corrupt key in block")
		}
		out = append(out, blockEntry{key: key, value: value})
	}
	return out, nil
}

// NewIter returns a forward iterator over every (key, value) pair in the
// table, in file order (which is base.Compare order, per invariant 4).
func (t *Table) NewIter() (*Iterator, error) {
	it := &Iterator{table: t, blockIdx: -1}
	if err := it.advanceBlock(); err != nil {
		return nil, err
	}
	return it, nil
}

// Iterator is a two-level (index, then block) forward iterator over one
// Table.
type Iterator struct {
	table    *Table
	blockIdx int
	entries  []blockEntry
	pos      int
	done     bool
}

func (it *Iterator) advanceBlock() error {
	it.blockIdx++
	for it.blockIdx < len(it.table.indexBlock) {
		h := it.table.indexBlock[it.blockIdx].handle
		raw := it.table.data[h.offset : h.offset+h.length]
		decompressed, err := decompressBlock(it.table.opts.Compression, raw)
		if err != nil {
			return errors.Wrapf(err, "propstore: decompressing data block %d", it.blockIdx)
		}
		body, err := verifyBlockChecksum(decompressed)
		if err != nil {
			return err
		}
		entries, err := decodeBlockEntries(body)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			it.blockIdx++
			continue
		}
		it.entries = entries
		it.pos = 0
		return nil
	}
	it.done = true
	return nil
}

// First positions the iterator at the first entry and reports whether one
// exists.
func (it *Iterator) First() bool {
	it.blockIdx = -1
	it.done = false
	if err := it.advanceBlock(); err != nil {
		it.done = true
		return false
	}
	return !it.done
}

// Next advances the iterator and reports whether a valid entry remains.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	it.pos++
	if it.pos < len(it.entries) {
		return true
	}
	if err := it.advanceBlock(); err != nil {
		it.done = true
		return false
	}
	return !it.done
}

// Valid reports whether Key/Value may be called.
func (it *Iterator) Valid() bool { return !it.done && it.pos < len(it.entries) }

// Key returns the current entry's key. Valid must be true.
func (it *Iterator) Key() base.InternalKey { return it.entries[it.pos].key }

// Value returns the current entry's value. Valid must be true.
func (it *Iterator) Value() []byte { return it.entries[it.pos].value }

// Close releases iterator-local state. It does not close the underlying
// Table; the TableCache owns that lifecycle (§4.3, §9).
func (it *Iterator) Close() error { return nil }
