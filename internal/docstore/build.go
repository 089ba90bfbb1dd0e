package docstore

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/codec"
	"github.com/hupe1980/wikipack/internal/compress"
	"github.com/hupe1980/wikipack/model"
)

// DefaultTargetShardSize is the approximate encoded size of one shard.
const DefaultTargetShardSize = 1 << 20

// entryOverhead approximates the per-entry cost of field names and numbers.
const entryOverhead = 48

// Layout describes how a document store was written.
type Layout struct {
	ShardCount  int
	Codec       codec.Codec
	Compression compress.Type
}

// ShardName returns the file name of shard i.
func (l Layout) ShardName(i int) string {
	return fmt.Sprintf("compindex-%02d.ids%s", i, l.Compression.Ext())
}

// Shard returns the shard holding id.
func (l Layout) Shard(id model.DocID) int {
	return int(uint64(id) % uint64(l.ShardCount))
}

// BuildOptions configures Build.
type BuildOptions struct {
	TargetShardSize int
	Codec           codec.Codec
	Compression     compress.Type
	// Concurrency bounds parallel shard writes.
	Concurrency int
}

// BuildOption mutates BuildOptions.
type BuildOption func(*BuildOptions)

// WithTargetShardSize sets the approximate encoded shard size in bytes.
func WithTargetShardSize(n int) BuildOption {
	return func(o *BuildOptions) { o.TargetShardSize = n }
}

// WithCodec sets the shard payload codec.
func WithCodec(c codec.Codec) BuildOption {
	return func(o *BuildOptions) { o.Codec = c }
}

// WithCompression sets the shard compression.
func WithCompression(t compress.Type) BuildOption {
	return func(o *BuildOptions) { o.Compression = t }
}

// WithConcurrency bounds parallel shard writes.
func WithConcurrency(n int) BuildOption {
	return func(o *BuildOptions) { o.Concurrency = n }
}

// Result is returned by Build.
type Result struct {
	Layout
	// Files maps every written shard name to its content as stored.
	Files map[string][]byte
}

// ShardCount returns max(1, round(estimatedBytes / target)).
func ShardCount(estimatedBytes, target int) int {
	if target <= 0 {
		target = DefaultTargetShardSize
	}
	n := int(math.Round(float64(estimatedBytes) / float64(target)))
	return max(1, n)
}

// EstimateSize approximates the encoded size of e.
func EstimateSize(e model.DocumentEntry) int {
	return len(e.Link) + len(e.Title) + len(e.Subtitle) + len(e.Description) + entryOverhead
}

// Build writes entries to store. entries[i] gets document id i.
func Build(ctx context.Context, store blobstore.BlobStore, entries []model.DocumentEntry, opts ...BuildOption) (*Result, error) {
	o := BuildOptions{
		TargetShardSize: DefaultTargetShardSize,
		Codec:           codec.Default,
		Compression:     compress.Zstd,
		Concurrency:     4,
	}
	for _, fn := range opts {
		fn(&o)
	}

	estimated := 0
	for _, e := range entries {
		estimated += EstimateSize(e)
	}

	layout := Layout{
		ShardCount:  ShardCount(estimated, o.TargetShardSize),
		Codec:       o.Codec,
		Compression: o.Compression,
	}

	shards := make([]map[model.DocID]model.DocumentEntry, layout.ShardCount)
	for i := range shards {
		shards[i] = make(map[model.DocID]model.DocumentEntry)
	}
	for i, e := range entries {
		id := model.DocID(i)
		shards[layout.Shard(id)][id] = e
	}

	files := make([][]byte, layout.ShardCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, o.Concurrency))
	for i, shard := range shards {
		g.Go(func() error {
			payload, err := layout.Codec.Marshal(shard)
			if err != nil {
				return fmt.Errorf("docstore: encode shard %d: %w", i, err)
			}
			data, err := compress.Compress(payload, layout.Compression)
			if err != nil {
				return fmt.Errorf("docstore: compress shard %d: %w", i, err)
			}
			if err := store.Put(gctx, layout.ShardName(i), data); err != nil {
				return fmt.Errorf("docstore: write shard %d: %w", i, err)
			}
			files[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Layout: layout, Files: make(map[string][]byte, len(files))}
	for i, data := range files {
		res.Files[layout.ShardName(i)] = data
	}
	return res, nil
}
