package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hupe1980/wikipack/internal/cache"
	"github.com/hupe1980/wikipack/internal/resource"
	"github.com/hupe1980/wikipack/internal/textnorm"
	"github.com/hupe1980/wikipack/model"
)

// DefaultCacheSize is the number of tracked search sessions.
const DefaultCacheSize = 100

var (
	// ErrUnknownSearch is returned for ids that were never issued or whose
	// session was evicted.
	ErrUnknownSearch = errors.New("searcher: unknown search id")
	// ErrEmptyQuery is returned when no word survives normalization.
	ErrEmptyQuery = errors.New("searcher: empty query")
	// ErrInvalidWindow is returned for negative start or count.
	ErrInvalidWindow = errors.New("searcher: invalid result window")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("searcher: closed")
	// ErrSearchFailed is returned with the results gathered before the
	// producer of a session failed or was discarded.
	ErrSearchFailed = errors.New("searcher: search failed")
)

// Index is the query surface the searcher drives.
type Index interface {
	Search(ctx context.Context, words []string) ([]model.DocumentEntry, error)
	PartialSearch(ctx context.Context, words []string) ([]model.DocumentEntry, error)
}

// Status describes a tracked session.
type Status struct {
	ID      string
	Words   []string
	State   State
	Results int
	// Err is the error that ended the producer, if any.
	Err error
}

// Options configures a Searcher.
type Options struct {
	CacheSize int
	// MaxResults caps the results kept per session; 0 keeps all.
	MaxResults int
	Logger     *slog.Logger
	Resource   *resource.Controller
}

// Option mutates Options.
type Option func(*Options)

// WithCacheSize sets the number of tracked sessions.
func WithCacheSize(n int) Option {
	return func(o *Options) { o.CacheSize = n }
}

// WithMaxResults caps the results kept per session.
func WithMaxResults(n int) Option {
	return func(o *Options) { o.MaxResults = n }
}

// WithLogger sets the logger for producer failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithResource makes producers hold a worker slot of rc while they run.
func WithResource(rc *resource.Controller) Option {
	return func(o *Options) { o.Resource = rc }
}

// Searcher tracks search sessions. It is safe for concurrent use.
type Searcher struct {
	index Index
	opts  Options

	mu   sync.Mutex
	keys map[string]*session

	sessions *cache.LRU[string, *session]
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// New returns a Searcher over idx.
func New(idx Index, opts ...Option) *Searcher {
	o := Options{CacheSize: DefaultCacheSize}
	for _, fn := range opts {
		fn(&o)
	}
	if o.CacheSize < 1 {
		o.CacheSize = 1
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Searcher{
		index: idx,
		opts:  o,
		keys:  make(map[string]*session),
	}
	s.sessions = cache.NewLRU(o.CacheSize, cache.WithOnEvict(func(_ string, sess *session) {
		s.forget(sess)
	}))
	return s
}

// QueryKey returns the session key of words: the normalized, deduplicated
// words in sorted order. Two queries with the same key have the same results.
func QueryKey(words []string) ([]string, string) {
	norm := textnorm.Unique(words)
	slices.Sort(norm)
	return norm, strings.Join(norm, "\x00")
}

func (s *Searcher) forget(sess *session) {
	s.mu.Lock()
	if s.keys[sess.key] == sess {
		delete(s.keys, sess.key)
	}
	s.mu.Unlock()
	sess.discard()
}

// StartSearch returns the id of the session for words, starting a producer
// unless an equivalent session is tracked.
func (s *Searcher) StartSearch(words []string) (string, error) {
	norm, key := QueryKey(words)
	if len(norm) == 0 {
		return "", ErrEmptyQuery
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if sess, ok := s.keys[key]; ok {
		s.mu.Unlock()
		s.sessions.Get(sess.id)
		return sess.id, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	sess := newSession(uuid.NewString(), key, norm, s.opts.MaxResults, cancel)
	s.keys[key] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	s.sessions.Add(sess.id, sess)
	go s.produce(ctx, sess)
	if s.closed.Load() {
		// Close purged the cache before this session was added.
		sess.discard()
	}
	return sess.id, nil
}

func (s *Searcher) produce(ctx context.Context, sess *session) {
	defer s.wg.Done()
	defer sess.cancel()

	err := s.run(ctx, sess)
	if err != nil && ctx.Err() == nil {
		s.opts.Logger.Error("searcher: search failed", "id", sess.id, "words", sess.words, "error", err)
	}
	sess.finish(err)
}

func (s *Searcher) run(ctx context.Context, sess *session) error {
	if err := s.opts.Resource.AcquireWorker(ctx); err != nil {
		return err
	}
	defer s.opts.Resource.ReleaseWorker()

	full, err := s.index.Search(ctx, sess.words)
	if err != nil {
		return fmt.Errorf("exact search: %w", err)
	}
	if !sess.push(full) || ctx.Err() != nil {
		return ctx.Err()
	}

	partial, err := s.index.PartialSearch(ctx, sess.words)
	if err != nil {
		return fmt.Errorf("partial search: %w", err)
	}
	sess.push(partial)
	return ctx.Err()
}

func (s *Searcher) session(id string) (*session, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSearch, id)
	}
	return sess, nil
}

// GetResults returns up to count results of session id starting at start.
// It blocks until the window is materialized, the session is done, or ctx
// ends. Fewer than count results mean the session is done; if its producer
// failed, the partial window comes with an error wrapping ErrSearchFailed.
func (s *Searcher) GetResults(ctx context.Context, id string, start, count int) ([]model.DocumentEntry, error) {
	if start < 0 || count < 0 {
		return nil, fmt.Errorf("%w: start=%d count=%d", ErrInvalidWindow, start, count)
	}
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return sess.window(ctx, start, count)
}

// Status reports the progress of session id without blocking.
func (s *Searcher) Status(id string) (Status, error) {
	sess, err := s.session(id)
	if err != nil {
		return Status{}, err
	}
	return sess.status(), nil
}

// Len returns the number of tracked sessions.
func (s *Searcher) Len() int { return s.sessions.Len() }

// Close discards every session and waits for running producers.
func (s *Searcher) Close() error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil
	}
	s.closed.Store(true)
	s.mu.Unlock()

	s.sessions.Purge()
	s.wg.Wait()
	return nil
}
