package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/wikipack/internal/cache"
	"github.com/hupe1980/wikipack/internal/resource"
)

type countingStore struct {
	*MemoryStore
	reads int
}

type countingBlob struct {
	Blob
	store *countingStore
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, store: s}, nil
}

func (b *countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.store.reads++
	return b.Blob.ReadAt(ctx, p, off)
}

func TestCachingStore_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, inner.Put(ctx, "images/00000000.cdi", data))

	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	store := NewCachingStore(inner, cache.NewShardedBlockCache(1<<20, nil), 16, rc)

	blob, err := store.Open(ctx, "images/00000000.cdi")
	require.NoError(t, err)
	defer blob.Close()

	buf := make([]byte, 40)
	n, err := blob.ReadAt(ctx, buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, data[10:50], buf)
	assert.Equal(t, 1, inner.reads, "one contiguous run is one backend read")

	n, err = blob.ReadAt(ctx, buf, 20)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, data[20:60], buf)
	assert.Equal(t, 1, inner.reads, "blocks 1-3 are cached")

	n, err = blob.ReadAt(ctx, buf, 50)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, data[50:90], buf)
	assert.Equal(t, 2, inner.reads, "blocks 4-5 are fetched in one run")

	n, err = blob.ReadAt(ctx, buf, 90)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 10, n)
	assert.Equal(t, data[90:], buf[:10])

	rr, err := blob.ReadRange(ctx, 0, 1000)
	require.NoError(t, err)
	all, err := io.ReadAll(rr)
	require.NoError(t, err)
	assert.Equal(t, data, all)
}

func TestCachingStore_PutInvalidates(t *testing.T) {
	ctx := context.Background()
	store := NewCachingStore(NewMemoryStore(), cache.NewShardedBlockCache(1<<20, nil), 4, nil)
	require.NoError(t, store.Put(ctx, "x", []byte("aaaa")))

	got, err := ReadAll(ctx, store, "x")
	require.NoError(t, err)
	assert.Equal(t, "aaaa", string(got))

	require.NoError(t, store.Put(ctx, "x", []byte("bbbb")))
	got, err = ReadAll(ctx, store, "x")
	require.NoError(t, err)
	assert.Equal(t, "bbbb", string(got))
}
