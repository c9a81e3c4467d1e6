// Package ratelimit implements the per (user, route) fixed-window request
// counter described in §4.8: an in-memory backend and a Redis-backed
// cluster-wide backend, both with identical semantics.
package ratelimit

import (
	"sync"
	"time"
)

// Config configures a fixed-window limiter.
type Config struct {
	Enabled     bool          `yaml:"enabled"`
	WindowMs    int           `yaml:"windowMs"`
	MaxRequests int           `yaml:"maxRequests"`
}

// DefaultConfig returns a disabled limiter; callers enable it explicitly.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		WindowMs:    60_000,
		MaxRequests: 60,
	}
}

func (c Config) window() time.Duration {
	if c.WindowMs <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowMs) * time.Millisecond
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Store is implemented by the in-memory and Redis-backed counters.
type Store interface {
	// Increment bumps the counter for key within the current window and
	// returns the count after incrementing plus the time remaining in
	// that window.
	Increment(key string, window time.Duration) (count int, remaining time.Duration, err error)
}

// Limiter enforces a fixed-window limit per (user, route) key, backed by a
// pluggable Store. Different users and different routes never share a
// counter because CompositeKey folds both into the key.
type Limiter struct {
	cfg   Config
	store Store
}

// NewLimiter builds a Limiter over the given store.
func NewLimiter(cfg Config, store Store) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{cfg: cfg, store: store}
}

// Allow increments the counter for key and reports whether the request
// stays within maxRequests for the current window. A disabled limiter
// always allows.
func (l *Limiter) Allow(key string) (Decision, error) {
	if !l.cfg.Enabled {
		return Decision{Allowed: true}, nil
	}

	count, remaining, err := l.store.Increment(key, l.cfg.window())
	if err != nil {
		return Decision{}, err
	}

	max := l.cfg.MaxRequests
	if max <= 0 {
		max = 1
	}
	if count > max {
		return Decision{Allowed: false, RetryAfter: remaining}, nil
	}
	return Decision{Allowed: true}, nil
}

// CompositeKey builds a rate-limit key from (user, route) parts.
func CompositeKey(parts ...string) string {
	key := ""
	for i, part := range parts {
		if i > 0 {
			key += "|"
		}
		key += part
	}
	return key
}

// MemoryStore is an in-process fixed-window counter keyed by
// "key|windowStart", matching §4.8's in-process fallback.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*windowState
}

type windowState struct {
	count       int
	windowStart time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*windowState)}
}

// Increment implements Store.
func (m *MemoryStore) Increment(key string, window time.Duration) (int, time.Duration, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.windows[key]
	if !ok || now.Sub(state.windowStart) >= window {
		state = &windowState{count: 0, windowStart: now}
		m.windows[key] = state
	}
	state.count++

	remaining := window - now.Sub(state.windowStart)
	if remaining < 0 {
		remaining = 0
	}
	return state.count, remaining, nil
}

// Prune removes windows that have fully elapsed, bounding memory growth
// under many distinct keys.
func (m *MemoryStore) Prune(window time.Duration) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, state := range m.windows {
		if now.Sub(state.windowStart) >= window {
			delete(m.windows, key)
		}
	}
}
