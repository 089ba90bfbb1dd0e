package wikipack

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/content"
	"github.com/hupe1980/wikipack/index"
	"github.com/hupe1980/wikipack/internal/cache"
	"github.com/hupe1980/wikipack/manifest"
	"github.com/hupe1980/wikipack/model"
	"github.com/hupe1980/wikipack/searcher"
)

// Artifact directories of a library below its root.
const (
	IndexDir    = "index"
	ArticlesDir = "articles"
	ImagesDir   = "images"
)

// Library is an opened encyclopedia: the search index, the article store,
// the optional image store and the search session tracker. It is immutable
// after Open and safe for concurrent use.
type Library struct {
	index    *index.Index
	articles *content.Store
	images   *content.Store
	searcher *searcher.Searcher
	blocks   *cache.ShardedBlockCache

	metrics MetricsCollector
	logger  *Logger
	closed  atomic.Bool
}

// OpenLocal opens the library stored in dir.
func OpenLocal(ctx context.Context, dir string, opts ...Option) (*Library, error) {
	return Open(ctx, blobstore.NewLocalStore(dir), opts...)
}

// Open opens the library rooted in store. The image store is optional.
func Open(ctx context.Context, store blobstore.BlobStore, optFns ...Option) (*Library, error) {
	opts := applyOptions(optFns)
	slogger := opts.logger.Logger

	lib := &Library{
		metrics: opts.metricsCollector,
		logger:  opts.logger,
	}
	if opts.blockCacheBytes > 0 {
		lib.blocks = cache.NewShardedBlockCache(opts.blockCacheBytes, opts.resource)
		store = blobstore.NewCachingStore(store, lib.blocks, opts.blockSize, opts.resource)
	}

	idx, err := index.Open(ctx, blobstore.Sub(store, IndexDir),
		index.WithPolicy(opts.policy),
		index.WithCacheShards(opts.shardCache),
		index.WithResource(opts.resource),
		index.WithVerifyChecksums(opts.verifyChecksums),
		index.WithLogger(slogger.With("component", "index")),
	)
	if err != nil {
		return nil, translateError(err)
	}
	lib.index = idx

	contentOpts := func(cacheBlocks int, component string) []content.Option {
		return []content.Option{
			content.WithCacheBlocks(cacheBlocks),
			content.WithMaxHops(opts.maxHops),
			content.WithResource(opts.resource),
			content.WithVerifyChecksums(opts.verifyChecksums),
			content.WithLogger(slogger.With("component", component)),
		}
	}

	lib.articles, err = content.Open(ctx, blobstore.Sub(store, ArticlesDir), manifest.KindArticles,
		contentOpts(opts.articleCache, "articles")...)
	if err != nil {
		_ = idx.Close()
		return nil, translateError(err)
	}

	lib.images, err = content.Open(ctx, blobstore.Sub(store, ImagesDir), manifest.KindImages,
		contentOpts(opts.imageCache, "images")...)
	if errors.Is(err, manifest.ErrNotFound) {
		lib.images, err = nil, nil
	}
	if err != nil {
		_ = lib.articles.Close()
		_ = idx.Close()
		return nil, translateError(err)
	}

	lib.searcher = searcher.New(idx,
		searcher.WithCacheSize(opts.sessionCache),
		searcher.WithMaxResults(opts.maxResults),
		searcher.WithResource(opts.resource),
		searcher.WithLogger(slogger.With("component", "searcher")),
	)

	lib.logger.LogOpen(ctx, idx.Language(), idx.Len(), lib.images != nil)
	return lib, nil
}

// Language returns the language recorded at build time.
func (l *Library) Language() string { return l.index.Language() }

// Documents returns the number of indexed documents.
func (l *Library) Documents() int { return l.index.Len() }

// HasImages reports whether the library was built with images.
func (l *Library) HasImages() bool { return l.images != nil }

// Index returns the underlying search index.
func (l *Library) Index() *index.Index { return l.index }

func (l *Library) check() error {
	if l.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Search returns the documents matching all words, highest score first.
func (l *Library) Search(ctx context.Context, words []string) ([]model.DocumentEntry, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := l.index.Search(ctx, words)
	l.metrics.RecordSearch(len(res), time.Since(start), err)
	l.logger.LogSearch(ctx, "exact", words, len(res), err)
	return res, translateError(err)
}

// PartialSearch returns the documents where every word is part of one of
// their terms, highest score first.
func (l *Library) PartialSearch(ctx context.Context, words []string) ([]model.DocumentEntry, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := l.index.PartialSearch(ctx, words)
	l.metrics.RecordPartialSearch(len(res), time.Since(start), err)
	l.logger.LogSearch(ctx, "partial", words, len(res), err)
	return res, translateError(err)
}

// Random returns a random document entry.
func (l *Library) Random(ctx context.Context) (model.DocumentEntry, error) {
	if err := l.check(); err != nil {
		return model.DocumentEntry{}, err
	}
	e, ok, err := l.index.Random(ctx)
	if err != nil {
		return model.DocumentEntry{}, translateError(err)
	}
	if !ok {
		return model.DocumentEntry{}, fmt.Errorf("%w: library has no documents", ErrNotFound)
	}
	return e, nil
}

// RandomArticle returns the link and title of a random document.
func (l *Library) RandomArticle(ctx context.Context) (link, title string, err error) {
	e, err := l.Random(ctx)
	if err != nil {
		return "", "", err
	}
	return e.Link, e.Title, nil
}

// GetItem returns the article stored for link, following redirects. link
// may be a sharded link ("C/o/n/Conejo") or a bare file name.
func (l *Library) GetItem(ctx context.Context, link string) ([]byte, error) {
	return l.get(ctx, l.articles, "article", itemKey(link))
}

// GetImage returns the image stored under path.
func (l *Library) GetImage(ctx context.Context, path string) ([]byte, error) {
	if l.images == nil {
		if err := l.check(); err != nil {
			return nil, err
		}
		return nil, ErrNoImages
	}
	return l.get(ctx, l.images, "image", path)
}

func (l *Library) get(ctx context.Context, store *content.Store, kind, name string) ([]byte, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	data, err := store.Get(ctx, name)
	l.metrics.RecordGetItem(kind, err == nil, time.Since(start))
	l.logger.LogGetItem(ctx, kind, name, len(data), err)
	return data, translateError(err)
}

// Resolve returns the name of the article that holds the data of link
// after following redirects.
func (l *Library) Resolve(ctx context.Context, link string) (string, error) {
	if err := l.check(); err != nil {
		return "", err
	}
	name, err := l.articles.Resolve(ctx, itemKey(link))
	return name, translateError(err)
}

// StartSearch starts (or joins) the background search for words and
// returns its session id.
func (l *Library) StartSearch(words []string) (string, error) {
	if err := l.check(); err != nil {
		return "", err
	}
	id, err := l.searcher.StartSearch(words)
	return id, translateError(err)
}

// GetResults returns up to count results of search id starting at start,
// waiting until they are available or the search is done.
func (l *Library) GetResults(ctx context.Context, id string, start, count int) ([]model.DocumentEntry, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	res, err := l.searcher.GetResults(ctx, id, start, count)
	return res, translateError(err)
}

// GetGrouped returns the results window of search id grouped by link.
func (l *Library) GetGrouped(ctx context.Context, id string, start, count int) ([]searcher.Group, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	res, err := l.searcher.GetGrouped(ctx, id, start, count)
	return res, translateError(err)
}

// SearchStatus reports the progress of search id.
func (l *Library) SearchStatus(id string) (searcher.Status, error) {
	if err := l.check(); err != nil {
		return searcher.Status{}, err
	}
	st, err := l.searcher.Status(id)
	return st, translateError(err)
}

// CacheStats holds hit and miss counts of one cache.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// Stats describes an opened library.
type Stats struct {
	Language   string
	Documents  int
	Terms      int
	Articles   int
	Images     int
	Sessions   int
	DocStore   CacheStats
	ArticleBlk CacheStats
	ImageBlk   CacheStats
	BlobBlocks CacheStats
}

// Stats returns sizes and cache counters and reports the counters to the
// metrics collector.
func (l *Library) Stats() Stats {
	s := Stats{
		Language:  l.index.Language(),
		Documents: l.index.Len(),
		Terms:     l.index.Terms(),
		Articles:  l.articles.Manifest().Items,
		Sessions:  l.searcher.Len(),
	}
	s.DocStore.Hits, s.DocStore.Misses = l.index.CacheStats()
	s.ArticleBlk.Hits, s.ArticleBlk.Misses = l.articles.CacheStats()
	if l.images != nil {
		s.Images = l.images.Manifest().Items
		s.ImageBlk.Hits, s.ImageBlk.Misses = l.images.CacheStats()
	}
	if l.blocks != nil {
		s.BlobBlocks.Hits, s.BlobBlocks.Misses = l.blocks.Stats()
	}

	l.metrics.RecordCache("docstore", s.DocStore.Hits, s.DocStore.Misses)
	l.metrics.RecordCache("articles", s.ArticleBlk.Hits, s.ArticleBlk.Misses)
	if l.images != nil {
		l.metrics.RecordCache("images", s.ImageBlk.Hits, s.ImageBlk.Misses)
	}
	if l.blocks != nil {
		l.metrics.RecordCache("blob", s.BlobBlocks.Hits, s.BlobBlocks.Misses)
	}
	return s
}

// Close stops running searches and releases caches and open blocks.
func (l *Library) Close() error {
	if l == nil || !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	errs := []error{l.searcher.Close(), l.articles.Close(), l.index.Close()}
	if l.images != nil {
		errs = append(errs, l.images.Close())
	}
	return errors.Join(errs...)
}
