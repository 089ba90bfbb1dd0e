package blobstore

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/wikipack/internal/cache"
	"github.com/hupe1980/wikipack/internal/resource"
)

// CachingStore wraps a remote BlobStore with a block cache, so repeated
// range reads of image blocks or index shards do not hit the backend.
// Backend reads are throttled through the optional resource controller.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
	rc        *resource.Controller
}

// NewCachingStore creates a new CachingStore.
// blockSize defaults to 64KiB if <= 0. rc may be nil.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64, rc *resource.Controller) *CachingStore {
	if blockSize <= 0 {
		blockSize = 64 * 1024
	}
	return &CachingStore{inner: inner, cache: c, blockSize: blockSize, rc: rc}
}

// Open opens a cached view of the blob.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CachingBlob{inner: b, store: s, name: name}, nil
}

// Create passes through; writes are not cached.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.invalidate(name)
	return s.inner.Create(ctx, name)
}

// Put writes through and drops cached blocks of name.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete removes the blob and its cached blocks.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List passes through.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(key cache.BlockKey) bool { return key.Path == name })
}

// CachingBlob reads through the block cache.
type CachingBlob struct {
	inner Blob
	store *CachingStore
	name  string
}

// Close closes the backend blob. Cached blocks stay cached.
func (b *CachingBlob) Close() error {
	return b.inner.Close()
}

// Size returns the blob size.
func (b *CachingBlob) Size() int64 {
	return b.inner.Size()
}

func (b *CachingBlob) key(blk int64) cache.BlockKey {
	return cache.BlockKey{Path: b.name, Block: blk}
}

// ReadAt serves p from cached blocks, fetching missing runs first.
func (b *CachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if off >= b.Size() {
		return 0, io.EOF
	}

	bs := b.store.blockSize
	end := min(off+int64(len(p)), b.Size())
	startBlock := off / bs
	endBlock := (end - 1) / bs

	if err := b.fillCache(ctx, startBlock, endBlock); err != nil {
		return 0, err
	}

	total := 0
	for blk := startBlock; blk <= endBlock; blk++ {
		data, err := b.fetchBlock(ctx, blk)
		if err != nil {
			return total, err
		}
		blkStart := blk * bs
		from := max(off, blkStart) - blkStart
		to := min(end, blkStart+int64(len(data))) - blkStart
		if to <= from {
			break
		}
		total += copy(p[blkStart+from-off:], data[from:to])
	}

	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fillCache loads the missing blocks of [startBlock, endBlock], reading
// each contiguous run of misses with a single backend request.
func (b *CachingBlob) fillCache(ctx context.Context, startBlock, endBlock int64) error {
	type run struct{ start, count int64 }
	var missing []run

	for blk := startBlock; blk <= endBlock; blk++ {
		if _, ok := b.store.cache.Get(ctx, b.key(blk)); ok {
			continue
		}
		if n := len(missing); n > 0 && missing[n-1].start+missing[n-1].count == blk {
			missing[n-1].count++
		} else {
			missing = append(missing, run{start: blk, count: 1})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	bs := b.store.blockSize
	for _, r := range missing {
		g.Go(func() error {
			byteStart := r.start * bs
			byteSize := min(r.count*bs, b.Size()-byteStart)
			if byteSize <= 0 {
				return nil
			}
			if err := b.store.rc.WaitIO(gctx, int(byteSize)); err != nil {
				return err
			}

			buf := make([]byte, byteSize)
			n, err := b.inner.ReadAt(gctx, buf, byteStart)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]

			for i := int64(0); i < r.count; i++ {
				lo := i * bs
				if lo >= int64(len(buf)) {
					break
				}
				hi := min(lo+bs, int64(len(buf)))
				// Copy so a cached block does not pin the whole run.
				blk := make([]byte, hi-lo)
				copy(blk, buf[lo:hi])
				b.store.cache.Set(gctx, b.key(r.start+i), blk)
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *CachingBlob) fetchBlock(ctx context.Context, blk int64) ([]byte, error) {
	if data, ok := b.store.cache.Get(ctx, b.key(blk)); ok {
		return data, nil
	}

	// The block was not admitted (or already evicted); read it directly.
	bs := b.store.blockSize
	buf := make([]byte, bs)
	n, err := b.inner.ReadAt(ctx, buf, blk*bs)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	data := buf[:n]
	if n > 0 {
		b.store.cache.Set(ctx, b.key(blk), data)
	}
	return data, nil
}

// ReadRange returns a reader that pulls through ReadAt.
func (b *CachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return io.NopCloser(&contextSectionReader{blob: b, ctx: ctx, off: off, limit: min(off+length, b.Size())}), nil
}

type contextSectionReader struct {
	blob  *CachingBlob
	ctx   context.Context
	off   int64
	limit int64
}

func (r *contextSectionReader) Read(p []byte) (int, error) {
	if r.off >= r.limit {
		return 0, io.EOF
	}
	if remaining := r.limit - r.off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if errors.Is(err, io.EOF) && n > 0 {
		err = nil
	}
	return n, err
}
