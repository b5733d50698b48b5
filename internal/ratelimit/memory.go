package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// Memory is an in-process fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemory creates the limiter and starts its cleanup goroutine.
func NewMemory() *Memory {
	m := &Memory{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go m.cleanup(5 * time.Minute)
	return m
}

// Close stops the cleanup goroutine. Call it on shutdown.
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Check counts one request for key. An empty key is a valid bucket of its own.
func (m *Memory) Check(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	limit, window = normalize(limit, window)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		m.buckets[key] = b
	}

	if b.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: b.resetAt}, nil
	}

	b.count++
	return Result{Allowed: true, Remaining: limit - b.count, ResetAt: b.resetAt}, nil
}

func (m *Memory) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, key)
		}
	}
}
