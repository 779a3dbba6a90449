// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base holds the key encoding shared by every package in this
// module: sstable, the table cache, the merging iterator and the merge
// worker all order keys through Compare.
package base

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Kind distinguishes a live value from a key that could not be decoded.
// Unlike a general-purpose LSM, this store has
// no tombstones: a property value is never deleted, only overwritten by a
// newer startTime, so KindInvalid only ever arises from a corrupted or
// truncated record.
type Kind uint8

const (
	// KindValue marks a live, decodable property payload.
	KindValue Kind = 0
	// KindInvalid marks a key that failed to decode or was truncated.
	KindInvalid Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "VALUE"
	case KindInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// internalKeySize is the fixed-width encoding of an InternalKey:
// 4 (propertyId) + 8 (entityId) + 4 (startTime) + 1 (kind).
const internalKeySize = 4 + 8 + 4 + 1

// InternalKey is a byte sequence decoding to (propertyId, entityId,
// startTime, kind). It is fixed-width so that in-place patches (see
// sstable.BlockBuilder's no-prefix-compression contract) never change a
// record's length.
type InternalKey struct {
	PropertyID uint32
	EntityID   uint64
	StartTime  int32
	Kind       Kind
}

// Encode serializes k into its fixed-width wire form.
func (k InternalKey) Encode() []byte {
	buf := make([]byte, internalKeySize)
	k.EncodeTo(buf)
	return buf
}

// EncodeTo writes k's wire form into buf, which must be at least
// internalKeySize bytes.
func (k InternalKey) EncodeTo(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], k.PropertyID)
	binary.BigEndian.PutUint64(buf[4:12], k.EntityID)
	// startTime sorts descending within an entity, so its bits are flipped
	// before the big-endian encode: a byte-wise compare of the encoded form
	// then agrees with Compare's descending-startTime rule when both
	// startTimes have the same sign. The sign bit is not adjusted, so a
	// negative startTime compares byte-wise before a non-negative one.
	binary.BigEndian.PutUint32(buf[12:16], ^uint32(k.StartTime))
	buf[16] = byte(k.Kind)
}

// Size returns the encoded length of k.
func (k InternalKey) Size() int { return internalKeySize }

// DecodeInternalKey decodes an InternalKey from its wire form. It returns
// KindInvalid (never an error) for a short or malformed buffer, per the
// "InvalidKey" contract in §3 — callers that must treat this as a hard
// failure should check Kind == KindInvalid themselves.
func DecodeInternalKey(buf []byte) InternalKey {
	if len(buf) < internalKeySize {
		return InternalKey{Kind: KindInvalid}
	}
	propertyID := binary.BigEndian.Uint32(buf[0:4])
	entityID := binary.BigEndian.Uint64(buf[4:12])
	startTime := int32(^binary.BigEndian.Uint32(buf[12:16]))
	kind := Kind(buf[16])
	if kind != KindValue && kind != KindInvalid {
		return InternalKey{Kind: KindInvalid}
	}
	return InternalKey{
		PropertyID: propertyID,
		EntityID:   entityID,
		StartTime:  startTime,
		Kind:       kind,
	}
}

// MustDecodeInternalKey decodes buf and panics if the result is invalid.
// Reserved for merge-internal code paths where a decode failure indicates
// MetaCorruption rather than ordinary malformed external input.
func MustDecodeInternalKey(buf []byte) InternalKey {
	k := DecodeInternalKey(buf)
	if k.Kind == KindInvalid {
		panic(errors.AssertionFailedWithDepthf(1, "propstore: corrupt internal key (%d bytes)", len(buf)))
	}
	return k
}

// Compare is the fixed total order used everywhere in this module:
// propertyId ascending, entityId ascending, startTime descending (newer
// versions sort first within an entity).
func Compare(a, b InternalKey) int {
	if a.PropertyID != b.PropertyID {
		if a.PropertyID < b.PropertyID {
			return -1
		}
		return +1
	}
	if a.EntityID != b.EntityID {
		if a.EntityID < b.EntityID {
			return -1
		}
		return +1
	}
	if a.StartTime != b.StartTime {
		// Descending: the larger startTime compares smaller.
		if a.StartTime > b.StartTime {
			return -1
		}
		return +1
	}
	return 0
}

// Less reports whether a sorts strictly before b under Compare.
func Less(a, b InternalKey) bool { return Compare(a, b) < 0 }
