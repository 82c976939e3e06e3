// Package cache provides a generic in-memory key-value store with
// per-entry TTL. An expired entry behaves exactly like a missing one
// and is removed lazily on the next access, or in bulk by
// CleanupExpired.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

// Stats summarizes the current contents of a Store.
type Stats struct {
	Total   int `json:"total"`
	Expired int `json:"expired"`
	Active  int `json:"active"`
}

// Store holds cached values keyed by string. Safe for concurrent use,
// though the scheduler is the only writer in normal operation.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New initializes an empty Store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock initializes an empty Store with an injectable clock.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Set stores value under key with the given TTL, replacing any
// previous entry and resetting its age.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, storedAt: s.now(), ttl: ttl}
}

// Get returns the live value for key. An expired entry is deleted
// first and reported as missing.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.expired(e) {
		delete(s.entries, key)
		return nil, false
	}
	return e.value, true
}

// StoredAt returns when the live entry for key was stored. Freshness
// checks compare this against the source's modification time.
func (s *Store) StoredAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.expired(e) {
		return time.Time{}, false
	}
	return e.storedAt, true
}

// Delete removes the entry for key, if any.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
}

// CleanupExpired sweeps all currently expired entries and returns how
// many were removed. Correctness does not depend on it; it only bounds
// memory between accesses.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Stats counts total, expired, and active entries without mutating
// the store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Total: len(s.entries)}
	for _, e := range s.entries {
		if s.expired(e) {
			st.Expired++
		}
	}
	st.Active = st.Total - st.Expired
	return st
}

// expired reports whether e is past its TTL. Strictly greater: an
// entry aged exactly TTL is still live.
func (s *Store) expired(e entry) bool {
	return s.now().Sub(e.storedAt) > e.ttl
}
