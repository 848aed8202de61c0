// Package tracker correlates in-flight generation requests with the prompt
// that produced them.
//
// The image pipeline reports finished files keyed by a correlation id the
// caller chose when it queued the generation. Bindings are short-lived:
// once the generation finishes or the TTL passes, the binding is garbage.
// Expiry is lazy (checked on read) plus an explicit Sweep for long-running
// processes.
package tracker

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long a binding stays resolvable. Generations
// longer than this are treated as abandoned.
const DefaultTTL = 10 * time.Minute

type binding struct {
	promptID int64
	boundAt  time.Time
}

// Tracker is a mutex-guarded correlation-id → prompt-id map with TTL.
// Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	bindings map[string]binding
	ttl      time.Duration
	now      func() time.Time // test seam
}

// New creates a Tracker. ttl <= 0 selects DefaultTTL.
func New(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		bindings: make(map[string]binding),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Bind records that correlationID belongs to promptID, replacing any
// existing binding for the same id.
func (t *Tracker) Bind(correlationID string, promptID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bindings[correlationID] = binding{promptID: promptID, boundAt: t.now()}
}

// Lookup resolves a correlation id to its prompt. When the exact id is
// unknown or expired it falls back to the most recently bound unexpired
// prompt: the pipeline sometimes reports files under a fresh id while only
// one generation is in flight. Expired entries seen on the way are dropped.
func (t *Tracker) Lookup(correlationID string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if b, ok := t.bindings[correlationID]; ok {
		if now.Sub(b.boundAt) <= t.ttl {
			return b.promptID, true
		}
		delete(t.bindings, correlationID)
	}

	var best binding
	found := false
	for id, b := range t.bindings {
		if now.Sub(b.boundAt) > t.ttl {
			delete(t.bindings, id)
			continue
		}
		if !found || b.boundAt.After(best.boundAt) {
			best = b
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return best.promptID, true
}

// Release drops a binding once its generation has been fully reported.
func (t *Tracker) Release(correlationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.bindings, correlationID)
}

// Sweep removes every expired binding and returns how many were dropped.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	dropped := 0
	for id, b := range t.bindings {
		if now.Sub(b.boundAt) > t.ttl {
			delete(t.bindings, id)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of live bindings, expired or not.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bindings)
}
