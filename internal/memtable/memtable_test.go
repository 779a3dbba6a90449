package memtable

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tgraphdb/propstore/internal/base"
)

func TestMemTableSortedIteration(t *testing.T) {
	m := New()
	m.Append(base.InternalKey{PropertyID: 1, EntityID: 1, StartTime: 10}, []byte("a"))
	m.Append(base.InternalKey{PropertyID: 1, EntityID: 1, StartTime: 30}, []byte("b"))
	m.Append(base.InternalKey{PropertyID: 1, EntityID: 2, StartTime: 5}, []byte("c"))

	it := m.NewIter()
	var got []base.InternalKey
	for it.Valid() {
		got = append(got, it.Key())
		it.Next()
	}
	require.Equal(t, []base.InternalKey{
		{PropertyID: 1, EntityID: 1, StartTime: 30},
		{PropertyID: 1, EntityID: 1, StartTime: 10},
		{PropertyID: 1, EntityID: 2, StartTime: 5},
	}, got)
}

func TestMemTablePartitionByProperty(t *testing.T) {
	m := New()
	m.Append(base.InternalKey{PropertyID: 1, EntityID: 7, StartTime: 10}, []byte("a"))
	m.Append(base.InternalKey{PropertyID: 2, EntityID: 1, StartTime: 1}, []byte("b"))
	m.Append(base.InternalKey{PropertyID: 1, EntityID: 8, StartTime: 20}, []byte("c"))

	parts := m.Partition()
	require.Len(t, parts, 2)
	require.Equal(t, 2, parts[1].Len())
	require.Equal(t, 1, parts[2].Len())
}

func TestMemTableEmpty(t *testing.T) {
	m := New()
	require.True(t, m.Empty())
	require.Empty(t, m.Partition())
}
