package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(limit, window)
	l.now = clock.now
	l.lastSweep = clock.t
	return l, clock
}

func TestAllowExhaustsAndRefills(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(3, time.Second)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("a"), "request %d", i)
	}
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	clock.advance(time.Second / 2)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	clock.advance(10 * time.Second)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("a"), "refill is capped at the limit, request %d", i)
	}
	assert.False(t, l.Allow("a"))
}

func TestSweepDropsIdleKeys(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(5, time.Second)
	l.Allow("idle")
	l.Allow("busy")
	assert.Equal(t, 2, l.Len())

	clock.advance(1500 * time.Millisecond)
	l.Allow("busy")
	clock.advance(1500 * time.Millisecond)
	l.Allow("busy")
	assert.Equal(t, 1, l.Len())
}

func TestDefaultsAndReset(t *testing.T) {
	t.Parallel()

	l := New(0, 0)
	assert.Equal(t, time.Second, l.RetryAfter())
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
	l.Reset("k")
	assert.True(t, l.Allow("k"))
}
