package alerting

import (
	"testing"
	"time"

	"github.com/linnemanlabs/newswatch/internal/calendar"
)

func TestIdentity_StableAcrossCalls(t *testing.T) {
	t.Parallel()

	ev := calendar.Event{Date: "14/07/2026", Time: "8:30am", Currency: "USD", Impact: "red", Title: "Non-Farm Payrolls"}
	if Identity(ev, KindPreEvent) != Identity(ev, KindPreEvent) {
		t.Error("identity must be deterministic")
	}
}

func TestIdentity_KindSeparates(t *testing.T) {
	t.Parallel()

	ev := calendar.Event{Date: "14/07/2026", Time: "8:30am", Currency: "USD", Title: "Non-Farm Payrolls"}
	if Identity(ev, KindPreEvent) == Identity(ev, KindRelease) {
		t.Error("distinct kinds must yield distinct identities")
	}
}

func TestIdentity_FieldsSeparate(t *testing.T) {
	t.Parallel()

	base := calendar.Event{Date: "14/07/2026", Time: "8:30am", Currency: "USD", Title: "Non-Farm Payrolls"}

	other := base
	other.Title = "Retail Sales"
	if Identity(base, KindRelease) == Identity(other, KindRelease) {
		t.Error("different titles must yield distinct identities")
	}

	other = base
	other.Time = "9:30am"
	if Identity(base, KindRelease) == Identity(other, KindRelease) {
		t.Error("different times must yield distinct identities")
	}
}

func TestIdentity_ImpactExcluded(t *testing.T) {
	t.Parallel()

	a := calendar.Event{Date: "14/07/2026", Time: "8:30am", Currency: "USD", Impact: "red", Title: "Non-Farm Payrolls"}
	b := a
	b.Impact = "orange"
	if Identity(a, KindRelease) != Identity(b, KindRelease) {
		t.Error("a severity reclassification must not change the identity")
	}
}

func TestDedupStore_SeenAndMark(t *testing.T) {
	t.Parallel()

	d := NewDedupStore(time.Now())
	if d.Seen("id-1") {
		t.Error("fresh store should see nothing")
	}

	d.Mark("id-1")
	if !d.Seen("id-1") {
		t.Error("marked identity should be seen")
	}
	if d.Seen("id-2") {
		t.Error("unmarked identity should not be seen")
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}

func TestDedupStore_CleanupNotDue(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	d := NewDedupStore(start)
	d.Mark("id-1")

	cleared, done := d.CleanupIfDue(start.Add(23*time.Hour), 24*time.Hour)
	if done {
		t.Error("cleanup should not run before the interval elapses")
	}
	if cleared != 0 {
		t.Errorf("cleared = %d, want 0", cleared)
	}
	if !d.Seen("id-1") {
		t.Error("identity must survive a not-due cleanup check")
	}
}

func TestDedupStore_CleanupDue(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	d := NewDedupStore(start)
	d.Mark("id-1")
	d.Mark("id-2")

	at := start.Add(24 * time.Hour)
	cleared, done := d.CleanupIfDue(at, 24*time.Hour)
	if !done {
		t.Fatal("cleanup should run once the interval elapses")
	}
	if cleared != 2 {
		t.Errorf("cleared = %d, want 2", cleared)
	}
	if d.Len() != 0 {
		t.Errorf("Len = %d after reset, want 0", d.Len())
	}
	if !d.LastCleanup().Equal(at) {
		t.Errorf("LastCleanup = %v, want %v", d.LastCleanup(), at)
	}

	// the wholesale clear makes previously fired identities eligible again
	if d.Seen("id-1") {
		t.Error("identity should be forgotten after reset")
	}
}
