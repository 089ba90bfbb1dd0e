package index

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/codec"
	"github.com/hupe1980/wikipack/internal/compress"
	"github.com/hupe1980/wikipack/internal/delta"
	"github.com/hupe1980/wikipack/internal/docstore"
	"github.com/hupe1980/wikipack/internal/resource"
	"github.com/hupe1980/wikipack/internal/textnorm"
	"github.com/hupe1980/wikipack/manifest"
	"github.com/hupe1980/wikipack/model"
)

// MissingTermPolicy decides what Search does with words absent from the
// dictionary.
type MissingTermPolicy int

const (
	// Lenient drops absent words from the intersection.
	Lenient MissingTermPolicy = iota
	// Strict fails the search with ErrMissingTerm.
	Strict
)

func (p MissingTermPolicy) String() string {
	if p == Strict {
		return "strict"
	}
	return "lenient"
}

// Options configures Open.
type Options struct {
	Policy          MissingTermPolicy
	Logger          *slog.Logger
	CacheShards     int
	Resource        *resource.Controller
	VerifyChecksums bool
}

// Option mutates Options.
type Option func(*Options)

// WithPolicy sets the missing-term policy.
func WithPolicy(p MissingTermPolicy) Option {
	return func(o *Options) { o.Policy = p }
}

// WithLogger sets the logger used for degraded reads.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithCacheShards sets the number of cached document shards.
func WithCacheShards(n int) Option {
	return func(o *Options) { o.CacheShards = n }
}

// WithResource charges cached shards against rc.
func WithResource(rc *resource.Controller) Option {
	return func(o *Options) { o.Resource = rc }
}

// WithVerifyChecksums toggles CRC checks of artifact files. Default: true.
func WithVerifyChecksums(v bool) Option {
	return func(o *Options) { o.VerifyChecksums = v }
}

// Index is a read-only inverted index. It is safe for concurrent use.
type Index struct {
	manifest *manifest.Manifest
	keys     *keyFile
	docs     *docstore.Store
	opts     Options
	closed   atomic.Bool
}

// Open loads the index stored in store.
func Open(ctx context.Context, store blobstore.BlobStore, opts ...Option) (*Index, error) {
	o := Options{CacheShards: docstore.DefaultCacheShards, VerifyChecksums: true}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	m, err := manifest.Load(ctx, store, manifest.KindIndex)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	comp, err := compress.ParseType(m.Compression)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	c, err := codec.Parse(m.Codec)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	name := KeyFileName(comp)
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("index: read %s: %w", name, err)
	}
	if o.VerifyChecksums {
		if err := m.Verify(name, data); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	raw, err := compress.Decompress(data, comp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	keys, err := decodeKeyFile(raw)
	if err != nil {
		return nil, err
	}
	if keys.matrix.Len() != m.Terms {
		return nil, fmt.Errorf("%w: %d terms, manifest says %d", ErrCorrupt, keys.matrix.Len(), m.Terms)
	}

	docOpts := []docstore.Option{
		docstore.WithCacheShards(o.CacheShards),
		docstore.WithLogger(o.Logger),
		docstore.WithResource(o.Resource),
	}
	if o.VerifyChecksums {
		docOpts = append(docOpts, docstore.WithVerify(m.Verify))
	}
	docs, err := docstore.Open(store, docstore.Layout{
		ShardCount:  m.ShardCount,
		Codec:       c,
		Compression: comp,
	}, docOpts...)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	return &Index{manifest: m, keys: keys, docs: docs, opts: o}, nil
}

// Manifest returns the index manifest.
func (x *Index) Manifest() *manifest.Manifest { return x.manifest }

// Language returns the corpus language recorded at build time.
func (x *Index) Language() string { return x.manifest.Language }

// Len returns the number of documents.
func (x *Index) Len() int { return x.manifest.Documents }

// Terms returns the number of dictionary terms.
func (x *Index) Terms() int { return x.keys.matrix.Len() }

// CacheStats returns document shard cache hits and misses.
func (x *Index) CacheStats() (hits, misses int64) { return x.docs.Stats() }

// Close releases the index. Further queries fail with ErrClosed.
func (x *Index) Close() error {
	x.closed.Store(true)
	return nil
}

// Contains reports whether the normalized word is a dictionary term.
func (x *Index) Contains(word string) bool {
	return x.keys.matrix.Contains(textnorm.Normalize(word))
}

// Keys yields the dictionary terms in sorted order.
func (x *Index) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, t := range x.keys.matrix.Terms().All() {
			if !yield(string(t)) {
				return
			}
		}
	}
}

// Values yields every document entry.
func (x *Index) Values(ctx context.Context) iter.Seq[model.DocumentEntry] {
	return func(yield func(model.DocumentEntry) bool) {
		for _, e := range x.docs.All(ctx) {
			if !yield(e) {
				return
			}
		}
	}
}

// Items yields every term with the entries it maps to.
func (x *Index) Items(ctx context.Context) iter.Seq2[string, []model.DocumentEntry] {
	return func(yield func(string, []model.DocumentEntry) bool) {
		for i, t := range x.keys.matrix.Terms().All() {
			entries, err := x.Resolve(ctx, x.posting(i))
			if err != nil {
				return
			}
			if !yield(string(t), entries) {
				return
			}
		}
	}
}

// posting decodes the posting list of term i. Corrupt lists are logged and
// read as empty.
func (x *Index) posting(i int) *roaring.Bitmap {
	enc, err := x.keys.postings.Get(i)
	if err == nil {
		var ids []uint32
		if ids, err = delta.DecodeUint32(enc); err == nil {
			return roaring.BitmapOf(ids...)
		}
	}
	term, _ := x.keys.matrix.Term(i)
	x.opts.Logger.Error("index: posting list unreadable", "term", term, "error", err)
	return roaring.New()
}

// Lookup returns the ids of documents matching all words. Words are split
// and normalized like textnorm.Unique, so "conejo negro" is two words.
func (x *Index) Lookup(words []string) (*roaring.Bitmap, error) {
	if x.closed.Load() {
		return nil, ErrClosed
	}

	var result *roaring.Bitmap
	for _, term := range textnorm.Unique(words) {
		i, ok := x.keys.matrix.Lookup(term)
		if !ok {
			if x.opts.Policy == Strict {
				return nil, fmt.Errorf("%w: %q", ErrMissingTerm, term)
			}
			continue
		}
		if result == nil {
			result = x.posting(i)
		} else {
			result.And(x.posting(i))
		}
	}
	if result == nil {
		return roaring.New(), nil
	}
	return result, nil
}

// PartialLookup returns the ids of documents where every word is contained
// in at least one of the document's terms.
func (x *Index) PartialLookup(words []string) (*roaring.Bitmap, error) {
	if x.closed.Load() {
		return nil, ErrClosed
	}

	var result *roaring.Bitmap
	for _, term := range textnorm.Unique(words) {
		similar, err := x.keys.matrix.SimilarTerms(term)
		if err != nil {
			x.opts.Logger.Error("index: similarity row unreadable", "word", term, "error", err)
			similar = nil
		}
		union := roaring.New()
		for _, i := range similar {
			union.Or(x.posting(i))
		}
		if result == nil {
			result = union
		} else {
			result.And(union)
		}
	}
	if result == nil {
		return roaring.New(), nil
	}
	return result, nil
}

// Resolve returns the entries of ids ordered by descending score.
func (x *Index) Resolve(ctx context.Context, ids *roaring.Bitmap) ([]model.DocumentEntry, error) {
	if ids.IsEmpty() {
		return nil, nil
	}
	docIDs := make([]model.DocID, 0, ids.GetCardinality())
	it := ids.Iterator()
	for it.HasNext() {
		docIDs = append(docIDs, model.DocID(it.Next()))
	}
	entries, err := x.docs.Get(ctx, docIDs)
	if err != nil {
		return nil, err
	}
	SortByScore(entries)
	return entries, nil
}

// SortByScore orders entries by descending score, keeping the relative order
// of equal scores.
func SortByScore(entries []model.DocumentEntry) {
	slices.SortStableFunc(entries, func(a, b model.DocumentEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// Search returns the entries matching all words.
func (x *Index) Search(ctx context.Context, words []string) ([]model.DocumentEntry, error) {
	ids, err := x.Lookup(words)
	if err != nil {
		return nil, err
	}
	return x.Resolve(ctx, ids)
}

// PartialSearch returns the entries partially matching all words.
func (x *Index) PartialSearch(ctx context.Context, words []string) ([]model.DocumentEntry, error) {
	ids, err := x.PartialLookup(words)
	if err != nil {
		return nil, err
	}
	return x.Resolve(ctx, ids)
}

// Random returns a random entry. ok is false for an index without entries.
func (x *Index) Random(ctx context.Context) (e model.DocumentEntry, ok bool, err error) {
	if x.closed.Load() {
		return model.DocumentEntry{}, false, ErrClosed
	}
	_, e, ok, err = x.docs.Random(ctx)
	return e, ok, err
}
