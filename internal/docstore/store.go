package docstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/internal/cache"
	"github.com/hupe1980/wikipack/internal/compress"
	"github.com/hupe1980/wikipack/internal/resource"
	"github.com/hupe1980/wikipack/model"
)

// DefaultCacheShards is the number of decoded shards kept in memory.
const DefaultCacheShards = 20

// Options configures Open.
type Options struct {
	CacheShards int
	Logger      *slog.Logger
	Resource    *resource.Controller
	// Verify, if set, checks a shard file before it is decoded.
	Verify func(name string, data []byte) error
}

// Option mutates Options.
type Option func(*Options)

// WithCacheShards sets how many decoded shards are cached.
func WithCacheShards(n int) Option {
	return func(o *Options) { o.CacheShards = n }
}

// WithLogger sets the logger for degraded reads.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithResource charges decoded shards against rc's memory budget.
func WithResource(rc *resource.Controller) Option {
	return func(o *Options) { o.Resource = rc }
}

// WithVerify installs a checksum hook.
func WithVerify(fn func(name string, data []byte) error) Option {
	return func(o *Options) { o.Verify = fn }
}

type shard struct {
	ids     []model.DocID
	entries map[model.DocID]model.DocumentEntry
	size    int64
}

func shardCost(s *shard) int64 { return s.size }

// Store reads document entries. It is safe for concurrent use.
type Store struct {
	layout Layout
	store  blobstore.BlobStore
	opts   Options
	cache  *cache.LRU[int, *shard]
	group  singleflight.Group
}

// Open returns a Store over the shards described by layout.
func Open(store blobstore.BlobStore, layout Layout, opts ...Option) (*Store, error) {
	if layout.ShardCount < 1 {
		return nil, fmt.Errorf("docstore: invalid shard count %d", layout.ShardCount)
	}
	if layout.Codec == nil {
		return nil, fmt.Errorf("docstore: missing codec")
	}

	o := Options{CacheShards: DefaultCacheShards}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.CacheShards < 1 {
		o.CacheShards = 1
	}

	var cacheOpts []cache.Option[int, *shard]
	if o.Resource != nil {
		cacheOpts = append(cacheOpts, cache.WithResource[int](o.Resource, shardCost))
	}

	return &Store{
		layout: layout,
		store:  store,
		opts:   o,
		cache:  cache.NewLRU(o.CacheShards, cacheOpts...),
	}, nil
}

// Layout returns the shard layout.
func (s *Store) Layout() Layout { return s.layout }

// Stats returns shard cache hits and misses.
func (s *Store) Stats() (hits, misses int64) { return s.cache.Stats() }

// Get returns the entries for ids in the order given. Unknown ids and ids
// in unreadable shards are skipped. The error is non-nil only when ctx ends.
func (s *Store) Get(ctx context.Context, ids []model.DocID) ([]model.DocumentEntry, error) {
	byShard := make(map[int][]int)
	for pos, id := range ids {
		n := s.layout.Shard(id)
		byShard[n] = append(byShard[n], pos)
	}

	found := make([]bool, len(ids))
	out := make([]model.DocumentEntry, len(ids))
	for n, positions := range byShard {
		sh, err := s.load(ctx, n)
		if err != nil {
			return nil, err
		}
		for _, pos := range positions {
			if e, ok := sh.entries[ids[pos]]; ok {
				out[pos] = e
				found[pos] = true
			}
		}
	}

	res := out[:0]
	for pos, e := range out {
		if found[pos] {
			res = append(res, e)
		}
	}
	return res, nil
}

// Entry returns a single entry.
func (s *Store) Entry(ctx context.Context, id model.DocID) (model.DocumentEntry, bool, error) {
	sh, err := s.load(ctx, s.layout.Shard(id))
	if err != nil {
		return model.DocumentEntry{}, false, err
	}
	e, ok := sh.entries[id]
	return e, ok, nil
}

// Random picks a random shard and a random entry within it. Empty shards are
// skipped in order. Documents in small shards are picked more often than
// documents in large ones.
func (s *Store) Random(ctx context.Context) (model.DocID, model.DocumentEntry, bool, error) {
	start := rand.IntN(s.layout.ShardCount)
	for i := range s.layout.ShardCount {
		sh, err := s.load(ctx, (start+i)%s.layout.ShardCount)
		if err != nil {
			return 0, model.DocumentEntry{}, false, err
		}
		if len(sh.ids) == 0 {
			continue
		}
		id := sh.ids[rand.IntN(len(sh.ids))]
		return id, sh.entries[id], true, nil
	}
	return 0, model.DocumentEntry{}, false, nil
}

// All yields every readable entry, shard by shard in ascending id order.
func (s *Store) All(ctx context.Context) iter.Seq2[model.DocID, model.DocumentEntry] {
	return func(yield func(model.DocID, model.DocumentEntry) bool) {
		for n := range s.layout.ShardCount {
			sh, err := s.load(ctx, n)
			if err != nil {
				return
			}
			for _, id := range sh.ids {
				if !yield(id, sh.entries[id]) {
					return
				}
			}
		}
	}
}

var emptyShard = &shard{entries: map[model.DocID]model.DocumentEntry{}}

// load returns shard n. Unreadable shards are logged and read as empty;
// only context errors are returned.
func (s *Store) load(ctx context.Context, n int) (*shard, error) {
	if sh, ok := s.cache.Get(n); ok {
		return sh, nil
	}

	// The shared read must outlive the caller that started it; every caller
	// waits on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strconv.Itoa(n), func() (any, error) {
		if sh, ok := s.cache.Peek(n); ok {
			return sh, nil
		}
		sh, err := s.read(shared, n)
		if err != nil {
			return nil, err
		}
		s.cache.Add(n, sh)
		return sh, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v, err := res.Val, res.Err
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.opts.Logger.Error("docstore: shard unreadable", "shard", s.layout.ShardName(n), "error", err)
		return emptyShard, nil
	}
	return v.(*shard), nil
}

func (s *Store) read(ctx context.Context, n int) (*shard, error) {
	name := s.layout.ShardName(n)
	data, err := blobstore.ReadAll(ctx, s.store, name)
	if err != nil {
		return nil, err
	}
	if s.opts.Verify != nil {
		if err := s.opts.Verify(name, data); err != nil {
			return nil, err
		}
	}
	payload, err := compress.Decompress(data, s.layout.Compression)
	if err != nil {
		return nil, err
	}

	entries := make(map[model.DocID]model.DocumentEntry)
	if err := s.layout.Codec.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("docstore: decode %s: %w", name, err)
	}

	ids := make([]model.DocID, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return &shard{ids: ids, entries: entries, size: int64(len(payload))}, nil
}
