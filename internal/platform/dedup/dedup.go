// Package dedup tracks which webhook deliveries have already been
// processed, with TTL-based expiry. Two interchangeable backends share
// the contract: an in-memory map and a statefile-backed durable store
package dedup

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTTL bounds how long a delivery key is remembered
const DefaultTTL = 24 * time.Hour

// Store is the idempotency contract
type Store interface {
	// Seen reports whether key was added and has not yet expired
	Seen(key string) bool
	// Add records key with the store's TTL
	Add(key string)
}

// Key builds the composite delivery-level dedup key
func Key(deliveryID, action string, repoID int64, prNumber int) string {
	return fmt.Sprintf("%s:%s:%d:%d", deliveryID, action, repoID, prNumber)
}

// Memory is a process-local TTL store. Entries are garbage-collected
// lazily on every read and write, so no sweep goroutine is needed
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time // key -> expiry instant
	now     func() time.Time
}

// NewMemory creates a Memory store; ttl <= 0 uses DefaultTTL
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Seen implements Store
func (m *Memory) Seen(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gc()
	_, ok := m.entries[key]
	return ok
}

// Add implements Store
func (m *Memory) Add(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gc()
	m.entries[key] = m.now().Add(m.ttl)
}

// Len reports live (non-expired) entries; used by tests and metrics
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gc()
	return len(m.entries)
}

// gc drops expired entries; callers hold the lock
func (m *Memory) gc() {
	now := m.now()
	for k, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, k)
		}
	}
}
