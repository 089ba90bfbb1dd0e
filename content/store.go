package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/codec"
	"github.com/hupe1980/wikipack/internal/cache"
	"github.com/hupe1980/wikipack/internal/compress"
	"github.com/hupe1980/wikipack/internal/hash"
	"github.com/hupe1980/wikipack/internal/resource"
	"github.com/hupe1980/wikipack/manifest"
)

const (
	// DefaultCacheBlocks is the number of blocks kept open.
	DefaultCacheBlocks = 100
	// DefaultMaxHops bounds redirect chains.
	DefaultMaxHops = 16
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("content: closed")

// Options configures Open.
type Options struct {
	CacheBlocks     int
	MaxHops         int
	Logger          *slog.Logger
	Resource        *resource.Controller
	VerifyChecksums bool
}

// Option mutates Options.
type Option func(*Options)

// WithCacheBlocks sets how many decoded blocks are cached.
func WithCacheBlocks(n int) Option {
	return func(o *Options) { o.CacheBlocks = n }
}

// WithMaxHops sets the redirect hop limit.
func WithMaxHops(n int) Option {
	return func(o *Options) { o.MaxHops = n }
}

// WithLogger sets the logger for degraded reads.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithResource charges cached blocks against rc.
func WithResource(rc *resource.Controller) Option {
	return func(o *Options) { o.Resource = rc }
}

// WithVerifyChecksums toggles CRC checks of fully read blocks. Default: true.
func WithVerifyChecksums(v bool) Option {
	return func(o *Options) { o.VerifyChecksums = v }
}

// block is a decoded block. For LayoutCompressed the payload is in memory;
// for LayoutHeaderCompressed items are read from blob on demand.
type block struct {
	header header

	mu         sync.RWMutex
	closed     bool
	payload    []byte
	blob       blobstore.Blob
	payloadOff int64
	cost       int64
}

func blockCost(b *block) int64 { return b.cost }

// readRange returns a copy of r. ok is false if the block was evicted.
func (b *block) readRange(ctx context.Context, r Range) (data []byte, ok bool, err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, false, nil
	}

	if b.blob == nil {
		return bytes.Clone(b.payload[r.Offset : r.Offset+r.Size]), true, nil
	}
	buf := make([]byte, r.Size)
	n, err := b.blob.ReadAt(ctx, buf, b.payloadOff+r.Offset)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return nil, true, err
	}
	return buf, true, nil
}

func (b *block) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.payload = nil
	if b.blob != nil {
		_ = b.blob.Close()
	}
}

// Store serves items from blocks. It is safe for concurrent use.
type Store struct {
	store    blobstore.BlobStore
	manifest *manifest.Manifest
	layout   Layout
	comp     compress.Type
	codec    codec.Codec
	opts     Options

	cache  *cache.LRU[int, *block]
	group  singleflight.Group
	closed atomic.Bool
}

// Open opens the content store of the given kind.
func Open(ctx context.Context, store blobstore.BlobStore, kind manifest.Kind, opts ...Option) (*Store, error) {
	o := Options{
		CacheBlocks:     DefaultCacheBlocks,
		MaxHops:         DefaultMaxHops,
		VerifyChecksums: true,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	m, err := manifest.Load(ctx, store, kind)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	if m.BlockCount < 1 {
		return nil, fmt.Errorf("content: invalid block count %d", m.BlockCount)
	}
	layout, err := ParseLayout(m.Layout)
	if err != nil {
		return nil, err
	}
	comp, err := compress.ParseType(m.Compression)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	c, err := codec.Parse(m.Codec)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	cacheOpts := []cache.Option[int, *block]{
		cache.WithOnEvict(func(_ int, b *block) { b.close() }),
	}
	if o.Resource != nil {
		cacheOpts = append(cacheOpts, cache.WithResource[int](o.Resource, blockCost))
	}

	return &Store{
		store:    store,
		manifest: m,
		layout:   layout,
		comp:     comp,
		codec:    c,
		opts:     o,
		cache:    cache.NewLRU(max(1, o.CacheBlocks), cacheOpts...),
	}, nil
}

// Language returns the language recorded at build time.
func (s *Store) Language() string { return s.manifest.Language }

// BlockCount returns the number of blocks.
func (s *Store) BlockCount() int { return s.manifest.BlockCount }

// Layout returns the block layout.
func (s *Store) Layout() Layout { return s.layout }

// Manifest returns the store manifest.
func (s *Store) Manifest() *manifest.Manifest { return s.manifest }

// CacheStats returns block cache hits and misses.
func (s *Store) CacheStats() (hits, misses int64) { return s.cache.Stats() }

// Close drops all cached blocks.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cache.Purge()
	return nil
}

func (s *Store) blockOf(name string) int {
	return hash.Bucket(name, s.manifest.BlockCount)
}

// Entry returns the header entry of name without following redirects.
func (s *Store) Entry(ctx context.Context, name string) (Entry, error) {
	e, _, release, err := s.entry(ctx, name)
	if err != nil {
		return nil, err
	}
	release()
	return e, nil
}

func (s *Store) entry(ctx context.Context, name string) (Entry, *block, func(), error) {
	if s.closed.Load() {
		return nil, nil, nil, ErrClosed
	}
	blk, release, err := s.load(ctx, s.blockOf(name))
	if err != nil {
		return nil, nil, nil, err
	}
	e, ok := blk.header[name]
	if !ok {
		release()
		return nil, nil, nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e, blk, release, nil
}

// Resolve follows redirects from name and returns the name of the item
// holding the data.
func (s *Store) Resolve(ctx context.Context, name string) (string, error) {
	current, _, _, release, err := s.resolve(ctx, name)
	if err != nil {
		return "", err
	}
	release()
	return current, nil
}

// resolve follows redirects and returns the final range with its block.
// The caller must call release.
func (s *Store) resolve(ctx context.Context, name string) (string, Range, *block, func(), error) {
	current := name
	for range s.opts.MaxHops + 1 {
		e, blk, release, err := s.entry(ctx, current)
		if err != nil {
			return "", Range{}, nil, nil, err
		}
		switch e := e.(type) {
		case Range:
			return current, e, blk, release, nil
		case Alias:
			release()
			current = stripFragment(e.Target)
		}
	}
	return "", Range{}, nil, nil, fmt.Errorf("%w: %q", ErrRedirectLoop, name)
}

// Get returns the bytes of name, following redirects. Unknown names,
// unreadable blocks and over-long redirect chains yield ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	current, r, blk, release, err := s.resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		data, ok, err := blk.readRange(ctx, r)
		release()
		switch {
		case !ok && attempt == 0:
			// Evicted between lookup and read.
			if blk, release, err = s.load(ctx, s.blockOf(current)); err != nil {
				return nil, err
			}
			continue
		case !ok:
			// Still racing the cache: read a private copy.
			if blk, err = s.read(ctx, s.blockOf(current)); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
			}
			release = blk.close
			continue
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.opts.Logger.Error("content: item unreadable", "name", current,
				"block", BlockName(s.blockOf(current), s.layout), "error", err)
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return data, nil
	}
}

var emptyBlock = &block{header: header{}}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func noop() {}

// load returns block i and a release func for it. Blocks the cache did not
// admit are closed on release. Unreadable blocks are logged and read as
// empty; only context errors are returned.
func (s *Store) load(ctx context.Context, i int) (*block, func(), error) {
	if blk, ok := s.cache.Get(i); ok {
		return blk, noop, nil
	}

	// The shared read must outlive the caller that started it; every caller
	// waits on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strconv.Itoa(i), func() (any, error) {
		if blk, ok := s.cache.Peek(i); ok {
			return blk, nil
		}
		blk, err := s.read(shared, i)
		if err != nil {
			return nil, err
		}
		if !s.cache.Add(i, blk) {
			blk.close()
			return (*block)(nil), nil
		}
		return blk, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	v, err := res.Val, res.Err
	if err == nil {
		if blk := v.(*block); blk != nil {
			return blk, noop, nil
		}
		// Not admitted by the cache: every caller reads a private copy.
		var blk *block
		if blk, err = s.read(ctx, i); err == nil {
			return blk, blk.close, nil
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}
	if isContextErr(err) {
		return nil, nil, err
	}
	s.opts.Logger.Error("content: block unreadable", "block", BlockName(i, s.layout), "error", err)
	return emptyBlock, noop, nil
}

func (s *Store) read(ctx context.Context, i int) (*block, error) {
	name := BlockName(i, s.layout)
	switch s.layout {
	case LayoutCompressed:
		return s.readCompressed(ctx, name)
	case LayoutHeaderCompressed:
		return s.readHeaderCompressed(ctx, name)
	default:
		return nil, fmt.Errorf("content: unknown layout %v", s.layout)
	}
}

func (s *Store) readCompressed(ctx context.Context, name string) (*block, error) {
	data, err := blobstore.ReadAll(ctx, s.store, name)
	if err != nil {
		return nil, err
	}
	if s.opts.VerifyChecksums {
		if err := s.manifest.Verify(name, data); err != nil {
			return nil, err
		}
	}
	unit, err := compress.Decompress(data, s.comp)
	if err != nil {
		return nil, err
	}

	hlen, err := readLength(unit)
	if err != nil {
		return nil, err
	}
	end := lengthPrefix + hlen
	if end > int64(len(unit)) {
		return nil, fmt.Errorf("%w: header length %d exceeds block size %d", ErrCorrupt, hlen, len(unit))
	}
	h, err := decodeHeader(s.codec, unit[lengthPrefix:end], int64(len(unit))-end)
	if err != nil {
		return nil, err
	}
	return &block{header: h, payload: unit[end:], cost: int64(len(unit))}, nil
}

func (s *Store) readHeaderCompressed(ctx context.Context, name string) (blk *block, err error) {
	b, err := s.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	var prefix [lengthPrefix]byte
	if _, err := b.ReadAt(ctx, prefix[:], 0); err != nil {
		return nil, fmt.Errorf("%w: length prefix: %w", ErrCorrupt, err)
	}
	hlen, err := readLength(prefix[:])
	if err != nil {
		return nil, err
	}
	end := lengthPrefix + hlen
	if end > b.Size() {
		return nil, fmt.Errorf("%w: header length %d exceeds block size %d", ErrCorrupt, hlen, b.Size())
	}

	chdr := make([]byte, hlen)
	if n, err := b.ReadAt(ctx, chdr, lengthPrefix); err != nil && !(errors.Is(err, io.EOF) && int64(n) == hlen) {
		return nil, err
	}
	hdr, err := compress.Decompress(chdr, s.comp)
	if err != nil {
		return nil, err
	}
	h, err := decodeHeader(s.codec, hdr, b.Size()-end)
	if err != nil {
		return nil, err
	}
	return &block{header: h, blob: b, payloadOff: end, cost: int64(len(hdr))}, nil
}
