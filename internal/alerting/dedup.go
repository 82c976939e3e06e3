package alerting

import (
	"sync"
	"time"
)

// DedupStore is the set of alert identities that have already fired.
// It grows monotonically between resets and is cleared wholesale on a
// periodic cadence, never per entry. Process-memory only: a restart
// begins empty and may legitimately re-fire alerts from a prior
// lifetime.
type DedupStore struct {
	mu          sync.Mutex
	seen        map[string]struct{}
	lastCleanup time.Time
}

// NewDedupStore initializes an empty store. now becomes the first
// cleanup epoch's start.
func NewDedupStore(now time.Time) *DedupStore {
	return &DedupStore{
		seen:        make(map[string]struct{}),
		lastCleanup: now,
	}
}

// Seen reports whether id has fired in the current epoch.
func (d *DedupStore) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

// Mark records id as fired.
func (d *DedupStore) Mark(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = struct{}{}
}

// Len returns the number of identities tracked in the current epoch.
func (d *DedupStore) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// LastCleanup returns when the store was last reset.
func (d *DedupStore) LastCleanup() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCleanup
}

// CleanupIfDue clears the whole store once per interval and records
// the reset time. It returns how many identities were dropped and
// whether a reset happened. A true re-occurrence of an identical
// identity inside one interval will not re-alert; that bounds memory
// to one interval's worth of fired identities.
func (d *DedupStore) CleanupIfDue(now time.Time, interval time.Duration) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if now.Sub(d.lastCleanup) < interval {
		return 0, false
	}

	cleared := len(d.seen)
	d.seen = make(map[string]struct{})
	d.lastCleanup = now
	return cleared, true
}
