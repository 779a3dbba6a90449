package sstable

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tgraphdb/propstore/internal/base"
)

func TestBlockBuilderRoundTrip(t *testing.T) {
	b := NewBlockBuilder(2) // small restart interval to exercise multiple restarts
	keys := []base.InternalKey{
		{PropertyID: 1, EntityID: 1, StartTime: 30},
		{PropertyID: 1, EntityID: 1, StartTime: 20},
		{PropertyID: 1, EntityID: 1, StartTime: 10},
		{PropertyID: 1, EntityID: 2, StartTime: 5},
	}
	for i, k := range keys {
		b.Add(k, []byte{byte(i)})
	}
	block := b.Finish()

	body, err := verifyBlockChecksum(block)
	require.NoError(t, err)
	entries, err := decodeBlockEntries(body)
	require.NoError(t, err)
	require.Len(t, entries, len(keys))
	for i, e := range entries {
		require.Equal(t, keys[i], e.key)
		require.Equal(t, []byte{byte(i)}, e.value)
	}
}

func TestBlockBuilderChecksumCatchesCorruption(t *testing.T) {
	b := NewBlockBuilder(16)
	b.Add(base.InternalKey{PropertyID: 1, EntityID: 1, StartTime: 1}, []byte("v"))
	block := b.Finish()
	block[0] ^= 0xff

	_, err := verifyBlockChecksum(block)
	require.Error(t, err)
}

func TestBlockBuilderPanicsAfterFinish(t *testing.T) {
	b := NewBlockBuilder(16)
	b.Add(base.InternalKey{PropertyID: 1, EntityID: 1, StartTime: 1}, []byte("v"))
	b.Finish()
	require.Panics(t, func() {
		b.Add(base.InternalKey{PropertyID: 1, EntityID: 1, StartTime: 2}, []byte("v2"))
	})
}
