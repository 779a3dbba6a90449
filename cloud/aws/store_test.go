package aws

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tgraphdb/propstore/internal/vfs"
)

func TestSkipArchive(t *testing.T) {
	require.True(t, skipArchive("property-1/000123.log"))
	require.True(t, skipArchive("property-1/000123.dbtmp"))
	require.False(t, skipArchive("property-1/000123.sst"))
}

// TestStoreArchiveSkipsWithoutNetworkCall confirms Archive short-circuits
// the skip-listed suffixes before ever touching the filesystem or S3 —
// a Store built with a zero-value uploader/client is otherwise unsafe to
// call in a unit test.
func TestStoreArchiveSkipsWithoutNetworkCall(t *testing.T) {
	s := &Store{fs: vfs.NewMemFS(), bucket: "unused", prefix: "unused"}
	require.NoError(t, s.Archive("property-1/000123.log"))
}
