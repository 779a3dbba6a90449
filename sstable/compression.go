// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"github.com/DataDog/zstd"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
)

// Compression selects the codec applied to a finished data block before it
// is written to disk, mirroring real pebble's sstable.Compression enum.
type Compression uint8

const (
	// CompressionUnset is the zero value: "not configured by the caller".
	// Options.EnsureDefaults resolves it to CompressionSnappy. Kept
	// distinct from CompressionNone so a caller can still explicitly ask
	// for no compression without EnsureDefaults silently overriding it.
	CompressionUnset Compression = iota
	// CompressionNone stores blocks uncompressed.
	CompressionNone
	// CompressionSnappy is the default codec: fast, modest ratio.
	CompressionSnappy
	// CompressionZstd trades CPU for a higher ratio, useful for stable
	// files that are rewritten far less often than unstable ones.
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionUnset:
		return "unset"
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

func compressBlock(c Compression, block []byte) ([]byte, error) {
	switch c {
	case CompressionUnset, CompressionNone:
		return block, nil
	case CompressionSnappy:
		return snappy.Encode(nil, block), nil
	case CompressionZstd:
		return zstd.Compress(nil, block)
	default:
		return nil, errors.Newf("propstore: unknown compression codec %d", c)
	}
}

func decompressBlock(c Compression, block []byte) ([]byte, error) {
	switch c {
	case CompressionUnset, CompressionNone:
		return block, nil
	case CompressionSnappy:
		return snappy.Decode(nil, block)
	case CompressionZstd:
		return zstd.Decompress(nil, block)
	default:
		return nil, errors.Newf("propstore: unknown compression codec %d", c)
	}
}
