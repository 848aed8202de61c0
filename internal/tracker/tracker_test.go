package tracker

import (
	"sync"
	"testing"
	"time"
)

// fixedClock lets tests advance time deterministically.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestTracker(ttl time.Duration) (*Tracker, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tr := New(ttl)
	tr.now = clock.now
	return tr, clock
}

func TestLookupExactMatch(t *testing.T) {
	tr, _ := newTestTracker(time.Minute)
	tr.Bind("gen-1", 42)

	id, ok := tr.Lookup("gen-1")
	if !ok || id != 42 {
		t.Fatalf("Lookup = (%d, %v), want (42, true)", id, ok)
	}
}

func TestLookupFallsBackToMostRecent(t *testing.T) {
	tr, clock := newTestTracker(time.Minute)
	tr.Bind("gen-1", 10)
	clock.advance(time.Second)
	tr.Bind("gen-2", 20)

	// Unknown id resolves to the newest live binding.
	id, ok := tr.Lookup("gen-unknown")
	if !ok || id != 20 {
		t.Fatalf("fallback Lookup = (%d, %v), want (20, true)", id, ok)
	}
}

func TestLookupExpiry(t *testing.T) {
	tr, clock := newTestTracker(time.Minute)
	tr.Bind("gen-1", 10)

	clock.advance(2 * time.Minute)
	if id, ok := tr.Lookup("gen-1"); ok {
		t.Fatalf("expired binding still resolvable: %d", id)
	}
	// Lazy expiry dropped it.
	if n := tr.Len(); n != 0 {
		t.Errorf("Len = %d after expiry, want 0", n)
	}
}

func TestFallbackSkipsExpired(t *testing.T) {
	tr, clock := newTestTracker(time.Minute)
	tr.Bind("old", 10)
	clock.advance(2 * time.Minute)
	tr.Bind("fresh", 20)

	id, ok := tr.Lookup("unknown")
	if !ok || id != 20 {
		t.Fatalf("fallback = (%d, %v), want fresh binding (20, true)", id, ok)
	}
}

func TestRebindReplacesAndRefreshes(t *testing.T) {
	tr, clock := newTestTracker(time.Minute)
	tr.Bind("gen-1", 10)
	clock.advance(50 * time.Second)
	tr.Bind("gen-1", 11)
	clock.advance(50 * time.Second)

	// 100s after the first bind but only 50s after the rebind.
	id, ok := tr.Lookup("gen-1")
	if !ok || id != 11 {
		t.Fatalf("Lookup = (%d, %v), want (11, true)", id, ok)
	}
}

func TestRelease(t *testing.T) {
	tr, _ := newTestTracker(time.Minute)
	tr.Bind("gen-1", 10)
	tr.Release("gen-1")

	if id, ok := tr.Lookup("gen-1"); ok {
		t.Fatalf("released binding still resolvable: %d", id)
	}
	// Releasing an unknown id is a no-op, not a panic.
	tr.Release("never-bound")
}

func TestSweep(t *testing.T) {
	tr, clock := newTestTracker(time.Minute)
	tr.Bind("a", 1)
	tr.Bind("b", 2)
	clock.advance(2 * time.Minute)
	tr.Bind("c", 3)

	if dropped := tr.Sweep(); dropped != 2 {
		t.Errorf("Sweep dropped %d, want 2", dropped)
	}
	if n := tr.Len(); n != 1 {
		t.Errorf("Len after sweep = %d, want 1", n)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Bind("gen", n)
				tr.Lookup("gen")
				tr.Sweep()
			}
		}(int64(i))
	}
	wg.Wait()

	if _, ok := tr.Lookup("gen"); !ok {
		t.Error("binding lost after concurrent churn")
	}
}
