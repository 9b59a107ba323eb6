package defunc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type lineBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *lineBuffer) WriteLine(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	return nil
}

func (b *lineBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEngine(t *testing.T, config Config, opts ...Option) (*Engine, *lineBuffer) {
	t.Helper()
	buf := &lineBuffer{}
	e, err := New(config, append([]Option{WithSink(buf)}, opts...)...)
	require.NoError(t, err)
	return e, buf
}

func constOp(v any) Op {
	return func(_ context.Context, _ any, _ ...any) (any, error) {
		return v, nil
	}
}
