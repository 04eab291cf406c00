package imagecache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, err := New(t.TempDir())
	require.NoError(t, err)

	data := []byte{0xFF, 0xD8, 0xFF}
	require.NoError(t, cache.Write(ctx, "abcd1234", data))

	got, err := cache.Read(ctx, "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ok, err := cache.Has(ctx, "abcd1234")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteIsOnceWins(t *testing.T) {
	ctx := context.Background()
	cache, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Write(ctx, "iid1", []byte("first")))
	require.NoError(t, cache.Write(ctx, "iid1", []byte("second")))

	got, err := cache.Read(ctx, "iid1")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got, "a duplicate write must not clobber the original")
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	cache, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Write(ctx, "aa11", make([]byte, 100)))
	require.NoError(t, cache.Write(ctx, "bb22", make([]byte, 50)))

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ItemCount)
	assert.Equal(t, int64(150), stats.BytesUsed)
}
