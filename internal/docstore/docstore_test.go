package docstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/codec"
	"github.com/hupe1980/wikipack/internal/compress"
	"github.com/hupe1980/wikipack/model"
)

func makeEntries(n int) []model.DocumentEntry {
	entries := make([]model.DocumentEntry, n)
	for i := range entries {
		entries[i] = model.DocumentEntry{
			Link:  fmt.Sprintf("a/r/t/Article_%d", i),
			Title: fmt.Sprintf("Article %d", i),
			Score: i,
		}
	}
	return entries
}

func TestShardCount(t *testing.T) {
	tests := []struct {
		estimated, target, want int
	}{
		{0, 100, 1},
		{40, 100, 1},
		{149, 100, 1},
		{150, 100, 2},
		{1000, 100, 10},
		{1000, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShardCount(tt.estimated, tt.target), "%d/%d", tt.estimated, tt.target)
	}
}

func TestBuildAndGet(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	entries := makeEntries(100)

	res, err := Build(ctx, mem, entries, WithTargetShardSize(1024))
	require.NoError(t, err)
	require.Greater(t, res.ShardCount, 1)
	assert.Len(t, res.Files, res.ShardCount)

	names, err := mem.List(ctx, "compindex-")
	require.NoError(t, err)
	assert.Len(t, names, res.ShardCount)
	assert.Equal(t, "compindex-00.ids.zst", names[0])

	s, err := Open(mem, res.Layout)
	require.NoError(t, err)

	got, err := s.Get(ctx, []model.DocID{42, 3, 99, 1000})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, entries[42], got[0])
	assert.Equal(t, entries[3], got[1])
	assert.Equal(t, entries[99], got[2])

	e, ok, err := s.Entry(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, entries[7], e)

	seen := 0
	for id, e := range s.All(ctx) {
		assert.Equal(t, entries[id], e)
		seen++
	}
	assert.Equal(t, 100, seen)
}

func TestCodecsAndCompression(t *testing.T) {
	ctx := context.Background()
	entries := makeEntries(10)

	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		for _, ct := range []compress.Type{compress.None, compress.LZ4, compress.Zstd} {
			t.Run(c.Name()+"/"+ct.String(), func(t *testing.T) {
				mem := blobstore.NewMemoryStore()
				res, err := Build(ctx, mem, entries, WithCodec(c), WithCompression(ct))
				require.NoError(t, err)
				assert.Equal(t, 1, res.ShardCount)

				s, err := Open(mem, res.Layout)
				require.NoError(t, err)
				got, err := s.Get(ctx, []model.DocID{0, 9})
				require.NoError(t, err)
				assert.Equal(t, []model.DocumentEntry{entries[0], entries[9]}, got)
			})
		}
	}
}

func TestCorruptShardReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	entries := makeEntries(40)

	res, err := Build(ctx, mem, entries, WithTargetShardSize(512))
	require.NoError(t, err)
	require.Greater(t, res.ShardCount, 1)

	mem.Corrupt(res.ShardName(0), func(b []byte) []byte { return b[:len(b)/2] })

	s, err := Open(mem, res.Layout)
	require.NoError(t, err)

	got, err := s.Get(ctx, []model.DocID{0, 1})
	require.NoError(t, err)
	assert.Equal(t, []model.DocumentEntry{entries[1]}, got)
}

func TestVerifyHook(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()

	res, err := Build(ctx, mem, makeEntries(3))
	require.NoError(t, err)

	s, err := Open(mem, res.Layout, WithVerify(func(string, []byte) error {
		return fmt.Errorf("bad checksum")
	}))
	require.NoError(t, err)

	got, err := s.Get(ctx, []model.DocID{0})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// gatedStore holds the first Open of name until release is closed.
type gatedStore struct {
	blobstore.BlobStore
	name    string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == g.name {
		g.once.Do(func() { close(g.entered) })
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.BlobStore.Open(ctx, name)
}

func TestCancelledReaderDoesNotEmptyShard(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	entries := makeEntries(4)

	res, err := Build(ctx, mem, entries)
	require.NoError(t, err)
	require.Equal(t, 1, res.ShardCount)

	gate := &gatedStore{BlobStore: mem, name: res.ShardName(0), entered: make(chan struct{}), release: make(chan struct{})}
	s, err := Open(gate, res.Layout)
	require.NoError(t, err)

	first, cancel := context.WithCancel(ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Get(first, []model.DocID{0})
		firstErr <- err
	}()
	<-gate.entered

	type result struct {
		entries []model.DocumentEntry
		err     error
	}
	second := make(chan result, 1)
	go func() {
		got, err := s.Get(ctx, []model.DocID{1, 2})
		second <- result{got, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(gate.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, []model.DocumentEntry{entries[1], entries[2]}, got.entries)
}

func TestCacheReusesShards(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()

	res, err := Build(ctx, mem, makeEntries(10))
	require.NoError(t, err)
	s, err := Open(mem, res.Layout, WithCacheShards(2))
	require.NoError(t, err)

	for range 3 {
		_, err := s.Get(ctx, []model.DocID{1, 2, 3})
		require.NoError(t, err)
	}
	hits, misses := s.Stats()
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(2), hits)
}

func TestRandomReachesEveryDocument(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	entries := makeEntries(12)

	res, err := Build(ctx, mem, entries, WithTargetShardSize(256))
	require.NoError(t, err)
	s, err := Open(mem, res.Layout)
	require.NoError(t, err)

	seen := make(map[model.DocID]bool)
	for i := 0; i < 5000 && len(seen) < len(entries); i++ {
		id, e, ok, err := s.Random(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, entries[id], e)
		seen[id] = true
	}
	assert.Len(t, seen, len(entries))
}

func TestRandomEmpty(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()

	res, err := Build(ctx, mem, nil)
	require.NoError(t, err)
	s, err := Open(mem, res.Layout)
	require.NoError(t, err)

	_, _, ok, err := s.Random(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenValidates(t *testing.T) {
	_, err := Open(blobstore.NewMemoryStore(), Layout{ShardCount: 0, Codec: codec.Default})
	assert.Error(t, err)
	_, err = Open(blobstore.NewMemoryStore(), Layout{ShardCount: 1})
	assert.Error(t, err)
}
