package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryGuardWindow(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	g := NewMemoryGuard(0).WithClock(c.now)

	assert.False(t, g.Seen(ctx, "SM1"), "first delivery")
	assert.True(t, g.Seen(ctx, "SM1"), "redelivery")
	assert.False(t, g.Seen(ctx, "SM2"))

	c.advance(Window - time.Second)
	assert.True(t, g.Seen(ctx, "SM1"), "still inside the window")

	c.advance(time.Second)
	assert.False(t, g.Seen(ctx, "SM1"), "window elapsed")
	assert.True(t, g.Seen(ctx, "SM1"))
}

func TestMemoryGuardSweepsOnLookup(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	g := NewMemoryGuard(time.Minute).WithClock(c.now)

	for _, id := range []string{"a", "b", "c"} {
		g.Seen(ctx, id)
	}
	assert.Equal(t, 3, g.Len())

	c.advance(2 * time.Minute)
	g.Seen(ctx, "d")
	assert.Equal(t, 1, g.Len())
}

func TestMemoryGuardEmptyID(t *testing.T) {
	g := NewMemoryGuard(0)
	assert.False(t, g.Seen(context.Background(), ""))
	assert.False(t, g.Seen(context.Background(), ""))
	assert.Equal(t, 0, g.Len())
}

func TestMemoryGuardConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(0)

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !g.Seen(ctx, "SMdup") {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fresh.Load())
}
