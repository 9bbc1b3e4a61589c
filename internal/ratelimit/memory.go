package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process memory. Use it for development or
// tests only: counters are not shared between instances.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	calls   int
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, win time.Duration, max int) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.calls++
	if m.calls%1024 == 0 {
		m.sweep(now)
	}

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		m.windows[key] = w
	}
	w.count++
	return decide(w.count, w.resetAt.Sub(now), max), nil
}

// sweep drops expired windows. Caller holds m.mu.
func (m *MemoryLimiter) sweep(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
}
