package wikipack

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTextHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
}

func TestLogger(t *testing.T) {
	ctx := context.Background()
	var buf syncBuffer
	l := NewLogger(newTextHandler(&buf)).WithComponent("test")

	l.LogSearch(ctx, "exact", []string{"a"}, 3, nil)
	l.LogSearch(ctx, "partial", []string{"a"}, 0, errors.New("boom"))
	l.LogGetItem(ctx, "article", "x", 0, ErrNotFound)
	l.LogGetItem(ctx, "article", "y", 0, errors.New("disk"))
	l.LogBuild(ctx, "index", 3, nil)

	out := buf.String()
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "search completed")
	assert.Contains(t, out, "search failed")
	assert.Contains(t, out, "item not found")
	assert.Contains(t, out, "item lookup failed")
	assert.Contains(t, out, "build stage completed")
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	err := translateError(errors.New("other"))
	assert.EqualError(t, err, "other")
	assert.False(t, errors.Is(err, ErrNotFound))
}
