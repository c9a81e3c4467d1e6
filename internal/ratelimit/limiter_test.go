package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterDisabledAlwaysAllows(t *testing.T) {
	l := NewLimiter(Config{Enabled: false}, NewMemoryStore())

	for i := 0; i < 10; i++ {
		decision, err := l.Allow("u1|/agent-api/chat")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("expected disabled limiter to always allow")
		}
	}
}

func TestLimiterEnforcesMaxRequestsWithinWindow(t *testing.T) {
	l := NewLimiter(Config{Enabled: true, WindowMs: 60_000, MaxRequests: 2}, NewMemoryStore())
	key := CompositeKey("u1", "/agent-api/chat")

	for i := 0; i < 2; i++ {
		decision, err := l.Allow(key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	decision, err := l.Allow(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("third request should be rate limited")
	}
	if decision.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", decision.RetryAfter)
	}
}

func TestLimiterCountersAreIndependentPerKey(t *testing.T) {
	l := NewLimiter(Config{Enabled: true, WindowMs: 60_000, MaxRequests: 1}, NewMemoryStore())

	u1Route1, _ := l.Allow(CompositeKey("u1", "/a"))
	u1Route2, _ := l.Allow(CompositeKey("u1", "/b"))
	u2Route1, _ := l.Allow(CompositeKey("u2", "/a"))

	if !u1Route1.Allowed || !u1Route2.Allowed || !u2Route1.Allowed {
		t.Fatalf("expected independent counters to each allow their first request")
	}

	blocked, _ := l.Allow(CompositeKey("u1", "/a"))
	if blocked.Allowed {
		t.Fatalf("expected second request on the same (user,route) to be blocked")
	}
}

func TestMemoryStoreRollsOverWindow(t *testing.T) {
	store := NewMemoryStore()

	count, _, err := store.Increment("k", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	time.Sleep(15 * time.Millisecond)

	count, _, err = store.Increment("k", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected window rollover to reset count to 1, got %d", count)
	}
}
