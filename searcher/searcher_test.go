package searcher

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/index"
	"github.com/hupe1980/wikipack/internal/resource"
	"github.com/hupe1980/wikipack/internal/textnorm"
	"github.com/hupe1980/wikipack/model"
)

type fakeIndex struct {
	ready   chan struct{}
	full    []model.DocumentEntry
	partial []model.DocumentEntry
	err     error
	// partialErr fails PartialSearch.
	partialErr error

	calls     atomic.Int32
	cancelled atomic.Int32
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{ready: make(chan struct{})}
}

func (f *fakeIndex) wait(ctx context.Context) error {
	f.calls.Add(1)
	select {
	case <-f.ready:
		return nil
	case <-ctx.Done():
		f.cancelled.Add(1)
		return ctx.Err()
	}
}

func (f *fakeIndex) Search(ctx context.Context, _ []string) ([]model.DocumentEntry, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.full, f.err
}

func (f *fakeIndex) PartialSearch(ctx context.Context, _ []string) ([]model.DocumentEntry, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.partial, f.partialErr
}

func entries(ids ...int) []model.DocumentEntry {
	out := make([]model.DocumentEntry, len(ids))
	for i, id := range ids {
		out[i] = model.DocumentEntry{Link: "l/" + strconv.Itoa(id), Title: strconv.Itoa(id), Score: id}
	}
	return out
}

func ids(es []model.DocumentEntry) []int {
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = e.Score
	}
	return out
}

func newSearcher(t *testing.T, idx Index, opts ...Option) *Searcher {
	t.Helper()
	s := New(idx, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStartSearch_ReturnsUUID(t *testing.T) {
	f := newFakeIndex()
	s := newSearcher(t, f)

	id, err := s.StartSearch([]string{"words"})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	st, err := s.Status(id)
	require.NoError(t, err)
	assert.Equal(t, Pending, st.State)
	assert.Zero(t, st.Results)
	close(f.ready)
}

func TestStartSearch_SameQuerySameSession(t *testing.T) {
	f := newFakeIndex()
	close(f.ready)
	s := newSearcher(t, f)

	id1, err := s.StartSearch([]string{"Conejo", "negro"})
	require.NoError(t, err)
	id2, err := s.StartSearch([]string{"negro", "CONEJO", "negro"})
	require.NoError(t, err)
	id3, err := s.StartSearch([]string{"other"})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.Equal(t, 2, s.Len())
}

func TestStartSearch_Empty(t *testing.T) {
	s := newSearcher(t, newFakeIndex())
	_, err := s.StartSearch([]string{" ", "¿?"})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestQueryKey(t *testing.T) {
	words, key := QueryKey([]string{"Negro", "conejo", "negro"})
	assert.Equal(t, []string{"conejo", "negro"}, words)
	assert.Equal(t, "conejo\x00negro", key)
}

func TestEvictionDiscardsSession(t *testing.T) {
	f := newFakeIndex()
	s := newSearcher(t, f, WithCacheSize(3))

	first, err := s.StartSearch([]string{"1"})
	require.NoError(t, err)
	for _, w := range []string{"2", "3", "4"} {
		_, err := s.StartSearch([]string{w})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, s.Len())

	_, err = s.GetResults(context.Background(), first, 0, 10)
	assert.ErrorIs(t, err, ErrUnknownSearch)

	assert.Eventually(t, func() bool { return f.cancelled.Load() >= 1 }, time.Second, 5*time.Millisecond)

	again, err := s.StartSearch([]string{"1"})
	require.NoError(t, err)
	assert.NotEqual(t, first, again)
	close(f.ready)
}

func TestStartSearch_RefreshesRecency(t *testing.T) {
	f := newFakeIndex()
	close(f.ready)
	s := newSearcher(t, f, WithCacheSize(2))

	a, _ := s.StartSearch([]string{"a"})
	b, _ := s.StartSearch([]string{"b"})
	again, _ := s.StartSearch([]string{"a"})
	require.Equal(t, a, again)
	_, _ = s.StartSearch([]string{"c"})

	_, err := s.Status(a)
	assert.NoError(t, err)
	_, err = s.Status(b)
	assert.ErrorIs(t, err, ErrUnknownSearch)
}

func TestGetResults_Waits(t *testing.T) {
	f := newFakeIndex()
	f.full = entries(1, 2, 3)
	s := newSearcher(t, f)

	id, err := s.StartSearch([]string{"a"})
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(f.ready)
	}()
	begin := time.Now()
	got, err := s.GetResults(context.Background(), id, 0, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, ids(got))
}

func TestGetResults_ContextEnds(t *testing.T) {
	f := newFakeIndex()
	s := newSearcher(t, f)

	id, err := s.StartSearch([]string{"a"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.GetResults(ctx, id, 0, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(f.ready)
}

func TestGetResults_Windows(t *testing.T) {
	ctx := context.Background()
	f := newFakeIndex()
	f.full = entries(1, 2, 3, 4)
	f.partial = entries(5, 6, 7, 8)
	close(f.ready)
	s := newSearcher(t, f)

	id, err := s.StartSearch([]string{"a"})
	require.NoError(t, err)

	tests := []struct {
		start, count int
		want         []int
	}{
		{0, 3, []int{1, 2, 3}},
		{3, 3, []int{4, 5, 6}},
		{6, 3, []int{7, 8}},
		{2, 5, []int{3, 4, 5, 6, 7}},
		{4, 10, []int{5, 6, 7, 8}},
		{8, 10, []int{}},
		{20, 1, []int{}},
		{0, 0, []int{}},
	}
	for _, tt := range tests {
		got, err := s.GetResults(ctx, id, tt.start, tt.count)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ids(got), "start=%d count=%d", tt.start, tt.count)
	}

	_, err = s.GetResults(ctx, id, -1, 3)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	st, err := s.Status(id)
	require.NoError(t, err)
	assert.Equal(t, Done, st.State)
	assert.Equal(t, 8, st.Results)
	assert.NoError(t, st.Err)
}

func TestGetResults_RepeatedReadsDoNotHang(t *testing.T) {
	f := newFakeIndex()
	close(f.ready)
	s := newSearcher(t, f)

	id, err := s.StartSearch([]string{"words"})
	require.NoError(t, err)
	for range 3 {
		got, err := s.GetResults(context.Background(), id, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestPartialHitsAreNotRepeated(t *testing.T) {
	f := newFakeIndex()
	f.full = entries(1, 2)
	f.partial = entries(2, 1, 3)
	close(f.ready)
	s := newSearcher(t, f)

	id, err := s.StartSearch([]string{"a"})
	require.NoError(t, err)
	got, err := s.GetResults(context.Background(), id, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids(got))
}

func TestMaxResults(t *testing.T) {
	f := newFakeIndex()
	f.full = entries(1, 2, 3)
	f.partial = entries(4, 5)
	close(f.ready)
	s := newSearcher(t, f, WithMaxResults(2))

	id, err := s.StartSearch([]string{"a"})
	require.NoError(t, err)
	got, err := s.GetResults(context.Background(), id, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids(got))
	assert.Equal(t, int32(1), f.calls.Load(), "partial search skipped once full")
}

func TestProducerErrorEndsSession(t *testing.T) {
	f := newFakeIndex()
	f.full = entries(1)
	f.err = errors.New("boom")
	close(f.ready)
	s := newSearcher(t, f)

	id, err := s.StartSearch([]string{"a"})
	require.NoError(t, err)
	got, err := s.GetResults(context.Background(), id, 0, 10)
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.ErrorContains(t, err, "boom")
	assert.Empty(t, got)

	st, err := s.Status(id)
	require.NoError(t, err)
	assert.Equal(t, Done, st.State)
	assert.ErrorContains(t, st.Err, "boom")
}

func TestPartialErrorKeepsExactHits(t *testing.T) {
	f := newFakeIndex()
	f.full = entries(2, 1)
	f.partialErr = errors.New("partial boom")
	close(f.ready)
	s := newSearcher(t, f)

	id, err := s.StartSearch([]string{"a"})
	require.NoError(t, err)

	got, err := s.GetResults(context.Background(), id, 0, 10)
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Equal(t, []int{2, 1}, ids(got))

	// A window that is fully materialized is served without error.
	got, err = s.GetResults(context.Background(), id, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, ids(got))

	groups, err := s.GetGrouped(context.Background(), id, 0, 10)
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Len(t, groups, 2)
}

func TestWorkerSlotsBoundProducers(t *testing.T) {
	f := newFakeIndex()
	rc := resource.NewController(resource.Config{MaxWorkers: 1})
	s := newSearcher(t, f, WithResource(rc))

	for _, w := range []string{"a", "b", "c"} {
		_, err := s.StartSearch([]string{w})
		require.NoError(t, err)
	}
	assert.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), f.calls.Load())

	close(f.ready)
	assert.Eventually(t, func() bool { return f.calls.Load() == 6 }, time.Second, 5*time.Millisecond)
}

func TestConcurrentStartSearch(t *testing.T) {
	f := newFakeIndex()
	f.full = entries(1, 2)
	close(f.ready)
	s := newSearcher(t, f)

	var wg sync.WaitGroup
	got := make([]string, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.StartSearch([]string{"same", "query"})
			assert.NoError(t, err)
			got[i] = id
		}()
	}
	wg.Wait()
	assert.Len(t, slices.Compact(got), 1)
}

func TestClose(t *testing.T) {
	f := newFakeIndex()
	s := New(f)

	id, err := s.StartSearch([]string{"a"})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, int32(1), f.cancelled.Load())

	_, err = s.StartSearch([]string{"a"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.GetResults(context.Background(), id, 0, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseWaitsForConcurrentStarts(t *testing.T) {
	for range 20 {
		f := newFakeIndex()
		s := New(f)

		var started atomic.Int32
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.StartSearch([]string{strconv.Itoa(i)}); err == nil {
					started.Add(1)
				} else {
					assert.ErrorIs(t, err, ErrClosed)
				}
			}()
		}
		require.NoError(t, s.Close())
		wg.Wait()

		// Every accepted search was cancelled and its producer finished.
		assert.Equal(t, started.Load(), f.calls.Load())
		assert.Equal(t, started.Load(), f.cancelled.Load())
		_, err := s.StartSearch([]string{"late"})
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestWithRealIndex(t *testing.T) {
	ctx := context.Background()
	doc := func(title string, score int) model.Document {
		return model.Document{
			Tokens: textnorm.Words(title),
			Entry:  model.DocumentEntry{Link: "x/x/x/" + title, Title: title, Score: score},
		}
	}
	mem := blobstore.NewMemoryStore()
	_, err := index.Build(ctx, mem, slices.Values([]model.Document{
		doc("ala blanca", 3),
		doc("conejo blanco", 5),
		doc("conejo negro", 6),
		doc("blanquear", 1),
	}))
	require.NoError(t, err)
	idx, err := index.Open(ctx, mem)
	require.NoError(t, err)
	defer idx.Close()

	s := newSearcher(t, idx)
	id, err := s.StartSearch([]string{"Blanco"})
	require.NoError(t, err)
	got, err := s.GetResults(ctx, id, 0, 10)
	require.NoError(t, err)

	titles := make([]string, len(got))
	for i, e := range got {
		titles[i] = e.Title
	}
	assert.Equal(t, "conejo blanco", titles[0])
	assert.Len(t, titles, 1)

	id, err = s.StartSearch([]string{"blanc"})
	require.NoError(t, err)
	got, err = s.GetResults(ctx, id, 0, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
