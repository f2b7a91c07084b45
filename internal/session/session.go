// Package session keeps one quiz state per client (browser or chat) in
// memory, with idle expiry and a size cap.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type entry[V any] struct {
	mu       sync.Mutex
	value    V
	lastSeen time.Time
}

// Registry maps client keys to values built by a factory. Each value is
// guarded by its own mutex, so events for one client never overlap.
type Registry[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
	factory func() V
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// NewRegistry creates a registry. Entries idle for longer than ttl are
// dropped by Sweep (ttl <= 0 keeps them). When max > 0, creating an entry
// beyond max evicts the least recently used one.
func NewRegistry[K comparable, V any](factory func() V, ttl time.Duration, max int) *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]*entry[V]),
		factory: factory,
		ttl:     ttl,
		max:     max,
		now:     time.Now,
	}
}

// Get returns the locked value for an existing key.
func (reg *Registry[K, V]) Get(key K) (v V, release func(), ok bool) {
	reg.mu.Lock()
	e, ok := reg.entries[key]
	if ok {
		e.lastSeen = reg.now()
	}
	reg.mu.Unlock()
	if !ok {
		return v, nil, false
	}
	e.mu.Lock()
	return e.value, e.mu.Unlock, true
}

// Acquire returns the locked value for key, creating it when missing.
func (reg *Registry[K, V]) Acquire(key K) (v V, release func()) {
	reg.mu.Lock()
	e, ok := reg.entries[key]
	if !ok {
		if reg.max > 0 && len(reg.entries) >= reg.max {
			reg.evictOldest()
		}
		e = &entry[V]{value: reg.factory()}
		reg.entries[key] = e
	}
	e.lastSeen = reg.now()
	reg.mu.Unlock()

	e.mu.Lock()
	return e.value, e.mu.Unlock
}

// evictOldest drops the least recently seen entry. reg.mu must be held.
func (reg *Registry[K, V]) evictOldest() {
	var (
		oldestKey K
		oldest    time.Time
		found     bool
	)
	for k, e := range reg.entries {
		if !found || e.lastSeen.Before(oldest) {
			oldestKey, oldest, found = k, e.lastSeen, true
		}
	}
	if found {
		delete(reg.entries, oldestKey)
		slog.Debug("evicted quiz session at capacity", "max", reg.max)
	}
}

// Len returns the number of live entries.
func (reg *Registry[K, V]) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.entries)
}

// Sweep drops entries idle for longer than the TTL and reports how many
// were removed.
func (reg *Registry[K, V]) Sweep() int {
	if reg.ttl <= 0 {
		return 0
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	cutoff := reg.now().Add(-reg.ttl)
	n := 0
	for k, e := range reg.entries {
		if e.lastSeen.Before(cutoff) {
			delete(reg.entries, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (reg *Registry[K, V]) Run(ctx context.Context, interval time.Duration) {
	if reg.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reg.Sweep(); n > 0 {
				slog.Info("dropped idle quiz sessions", "count", n, "remaining", reg.Len())
			}
		}
	}
}
