package dedup_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/birthday-sync/internal/dedup"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemory_ConcurrentClaimsOneWinner(t *testing.T) {
	m := dedup.NewMemory(nil)
	var wins atomic.Int32
	var wg sync.WaitGroup

	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.Claim(context.Background(), "birthday:sent:1:2:20261019", 48*time.Hour)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemory_TTL(t *testing.T) {
	c := &stepClock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	m := dedup.NewMemory(c)
	ctx := context.Background()

	ok, err := m.Claim(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	exists, _ := m.Exists(ctx, "k")
	assert.True(t, exists)

	ok, _ = m.Claim(ctx, "k", time.Hour)
	assert.False(t, ok, "second claim before expiry loses")

	c.Advance(time.Hour)
	exists, _ = m.Exists(ctx, "k")
	assert.False(t, exists)

	ok, _ = m.Claim(ctx, "k", time.Hour)
	assert.True(t, ok, "expired keys can be claimed again")
}

func TestMemory_CancelledContext(t *testing.T) {
	m := dedup.NewMemory(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Claim(ctx, "k", time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
