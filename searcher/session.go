package searcher

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/wikipack/model"
)

// State is the lifecycle phase of a search session.
type State int

const (
	// Pending means the producer has not published anything yet.
	Pending State = iota
	// Streaming means results are being appended.
	Streaming
	// Done means no more results will be appended.
	Done
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type session struct {
	id    string
	key   string
	words []string

	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	results []model.DocumentEntry
	seen    map[model.DocumentEntry]struct{}
	limit   int
	err     error
	changed chan struct{}
}

func newSession(id, key string, words []string, limit int, cancel context.CancelFunc) *session {
	return &session{
		id:      id,
		key:     key,
		words:   words,
		cancel:  cancel,
		seen:    make(map[model.DocumentEntry]struct{}),
		limit:   limit,
		changed: make(chan struct{}),
	}
}

// notifyLocked wakes every waiter. Requires s.mu.
func (s *session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// push appends the entries not already published. It reports false once the
// result limit is reached.
func (s *session) push(entries []model.DocumentEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Done {
		return false
	}
	s.state = Streaming
	for _, e := range entries {
		if s.limit > 0 && len(s.results) >= s.limit {
			break
		}
		if _, dup := s.seen[e]; dup {
			continue
		}
		s.seen[e] = struct{}{}
		s.results = append(s.results, e)
	}
	s.notifyLocked()
	return s.limit <= 0 || len(s.results) < s.limit
}

func (s *session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Done {
		return
	}
	s.state = Done
	s.err = err
	s.seen = nil
	s.notifyLocked()
}

func (s *session) discard() {
	s.cancel()
	s.finish(context.Canceled)
}

// window blocks until [start, start+count) is available or the session is
// done, then returns a copy of the available part. A window cut short by a
// failed producer also returns its error.
func (s *session) window(ctx context.Context, start, count int) ([]model.DocumentEntry, error) {
	end := start + count
	for {
		s.mu.Lock()
		if len(s.results) >= end || s.state == Done {
			out := s.slice(start, end)
			var err error
			if len(s.results) < end && s.err != nil {
				err = fmt.Errorf("%w: %w", ErrSearchFailed, s.err)
			}
			s.mu.Unlock()
			return out, err
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// slice requires s.mu.
func (s *session) slice(start, end int) []model.DocumentEntry {
	end = min(end, len(s.results))
	if start >= end {
		return []model.DocumentEntry{}
	}
	return slices.Clone(s.results[start:end])
}

func (s *session) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{ID: s.id, Words: slices.Clone(s.words), State: s.state, Results: len(s.results), Err: s.err}
}
