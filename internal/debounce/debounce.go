// Package debounce suppresses repeated recognitions of the same plate
// within a configurable window.
package debounce

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds the tracker when no explicit size is given.
const DefaultMaxEntries = 1024

// Tracker records the last acted-on time per key and decides whether a new
// action is allowed. The key space is bounded by an LRU so long uptimes
// cannot grow the map without limit.
type Tracker struct {
	window  time.Duration
	entries *lru.Cache[string, time.Time]
	mu      sync.Mutex
}

// New creates a tracker with the given suppression window and entry bound.
func New(window time.Duration, maxEntries int) (*Tracker, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, time.Time](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Tracker{window: window, entries: entries}, nil
}

// ShouldAct reports whether an action for key is allowed at now. When it
// returns true it records now as the new last-action time; a false return
// has no side effect.
func (t *Tracker) ShouldAct(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.entries.Get(key); ok {
		if now.Sub(last) < t.window {
			return false
		}
	}
	t.entries.Add(key, now)
	return true
}

// Forget drops the record for key, re-arming it immediately.
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries.Remove(key)
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Len()
}
