package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternalKeyRoundTrip(t *testing.T) {
	keys := []InternalKey{
		{PropertyID: 1, EntityID: 7, StartTime: 10, Kind: KindValue},
		{PropertyID: 1, EntityID: 7, StartTime: -5, Kind: KindValue},
		{PropertyID: 0, EntityID: 0, StartTime: 0, Kind: KindValue},
	}
	for _, k := range keys {
		got := DecodeInternalKey(k.Encode())
		require.Equal(t, k, got)
	}
}

func TestCompareOrdering(t *testing.T) {
	// propertyId ascending.
	require.True(t, Less(
		InternalKey{PropertyID: 1, EntityID: 9, StartTime: 9},
		InternalKey{PropertyID: 2, EntityID: 0, StartTime: 0},
	))
	// entityId ascending within a property.
	require.True(t, Less(
		InternalKey{PropertyID: 1, EntityID: 1, StartTime: 0},
		InternalKey{PropertyID: 1, EntityID: 2, StartTime: 100},
	))
	// startTime descending within an entity.
	require.True(t, Less(
		InternalKey{PropertyID: 1, EntityID: 1, StartTime: 50},
		InternalKey{PropertyID: 1, EntityID: 1, StartTime: 10},
	))
}

func TestDecodeInvalid(t *testing.T) {
	require.Equal(t, KindInvalid, DecodeInternalKey(nil).Kind)
	require.Equal(t, KindInvalid, DecodeInternalKey([]byte{1, 2, 3}).Kind)
}
