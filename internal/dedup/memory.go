// Package dedup provides an in-process Dedup Store. It is only correct for a
// single process; multi-instance deployments use the SQLite store.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/tartampluch/birthday-sync/internal/clock"
)

// Memory is a TTL set guarded by a mutex. Expired keys are purged lazily.
type Memory struct {
	Clock clock.Clock

	mu   sync.Mutex
	keys map[string]time.Time
}

func NewMemory(c clock.Clock) *Memory {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Memory{Clock: c, keys: make(map[string]time.Time)}
}

// Claim sets key when absent or expired. Exactly one concurrent caller wins.
func (m *Memory) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	now := m.Clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.keys[key] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	now := m.Clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.keys[key]
	if ok && !now.Before(exp) {
		delete(m.keys, key)
		return false, nil
	}
	return ok, nil
}
