package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tgraphdb/propstore/internal/base"
	"github.com/tgraphdb/propstore/internal/vfs"
	"github.com/tgraphdb/propstore/sstable"
)

func writeTestTable(t *testing.T, fs vfs.FS, path string) {
	t.Helper()
	f, err := fs.Create(path)
	require.NoError(t, err)
	tb := sstable.NewTableBuilder(f, sstable.Options{})
	require.NoError(t, tb.Add(base.InternalKey{PropertyID: 1, EntityID: 1, StartTime: 1}, []byte("v")))
	require.NoError(t, tb.Finish())
}

func TestCacheGetReleaseHitsAndMisses(t *testing.T) {
	fs := vfs.NewMemFS()
	path := filepath.Join("p1", "unstable-0.prop")
	writeTestTable(t, fs, path)

	c := New(fs, sstable.Options{}, DefaultCapacity)
	defer c.Close()

	h1, err := c.Get(path)
	require.NoError(t, err)
	it, err := h1.Table().NewIter()
	require.NoError(t, err)
	require.True(t, it.Valid())

	h2, err := c.Get(path)
	require.NoError(t, err)

	require.Equal(t, int64(1), c.Snapshot().Misses.Load())
	require.Equal(t, int64(1), c.Snapshot().Hits.Load())

	h1.Release()
	h2.Release()
}

func TestCacheEvictIsDeferredUntilRelease(t *testing.T) {
	fs := vfs.NewMemFS()
	path := filepath.Join("p1", "unstable-0.prop")
	writeTestTable(t, fs, path)

	c := New(fs, sstable.Options{}, DefaultCapacity)
	defer c.Close()

	h, err := c.Get(path)
	require.NoError(t, err)

	// A reader holds h's table across the eviction: the evict must not
	// invalidate keys already read through it (§5 ordering guarantee).
	c.Evict(path)
	it, err := h.Table().NewIter()
	require.NoError(t, err)
	require.True(t, it.Valid())
	require.Equal(t, uint32(1), it.Key().PropertyID)

	// A fresh Get after eviction reopens rather than reusing the evicted
	// entry.
	h2, err := c.Get(path)
	require.NoError(t, err)
	h2.Release()

	h.Release()
}

func TestCacheCapacityEviction(t *testing.T) {
	fs := vfs.NewMemFS()
	for i := 0; i < 3; i++ {
		writeTestTable(t, fs, filepath.Join("p1", string(rune('a'+i))))
	}

	c := New(fs, sstable.Options{}, 2)
	defer c.Close()

	for i := 0; i < 3; i++ {
		h, err := c.Get(filepath.Join("p1", string(rune('a'+i))))
		require.NoError(t, err)
		h.Release()
	}
	require.LessOrEqual(t, len(c.byPath), 2)
}
