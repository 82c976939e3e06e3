package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/newswatch/internal/calendar"
	"github.com/linnemanlabs/newswatch/internal/settings"
)

// recordingNotifier collects every delivery; err, when set, is
// returned from each Notify call.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []Kind
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, _ calendar.Event, kind Kind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, kind)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func testSnapshot() *settings.Snapshot {
	return &settings.Snapshot{
		AlertCurrencies:      []string{"USD"},
		AlertLeadSeconds:     300,
		ReleaseWindowSeconds: 30,
		CleanupIntervalHours: 24,
		Timezone:             "UTC",
	}
}

func newTestEvaluator(notifier Notifier) (*Evaluator, *DedupStore) {
	dedup := NewDedupStore(time.Now())
	m := NewMetrics(prometheus.NewRegistry())
	return NewEvaluator(dedup, notifier, log.Nop(), m), dedup
}

// eventAt returns a USD red event at 14:30 on 14 July 2026 UTC.
func eventAt1430() calendar.Event {
	return calendar.Event{
		Date:     "14/07/2026",
		Time:     "14:30",
		Currency: "USD",
		Impact:   "red",
		Title:    "FOMC Statement",
	}
}

func at(hh, mm, ss int) time.Time {
	return time.Date(2026, 7, 14, hh, mm, ss, 0, time.UTC)
}

func TestEvaluate_PreEventFiresInsideBand(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	e, _ := newTestEvaluator(n)
	events := []calendar.Event{eventAt1430()}

	// exactly lead seconds before the event
	e.Evaluate(context.Background(), events, at(14, 25, 0), testSnapshot(), time.UTC)

	if n.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", n.count())
	}
	if n.calls[0] != KindPreEvent {
		t.Errorf("kind = %q, want %q", n.calls[0], KindPreEvent)
	}
}

func TestEvaluate_PreEventOutsideBandDoesNotFire(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	e, _ := newTestEvaluator(n)
	events := []calendar.Event{eventAt1430()}

	// 250s before the event: outside [299,301]
	e.Evaluate(context.Background(), events, at(14, 25, 50), testSnapshot(), time.UTC)

	if n.count() != 0 {
		t.Errorf("deliveries = %d, want 0", n.count())
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	e, _ := newTestEvaluator(n)
	events := []calendar.Event{eventAt1430()}
	now := at(14, 25, 0)

	e.Evaluate(context.Background(), events, now, testSnapshot(), time.UTC)
	e.Evaluate(context.Background(), events, now, testSnapshot(), time.UTC)

	if n.count() != 1 {
		t.Errorf("deliveries = %d after two evaluations, want 1", n.count())
	}
}

func TestEvaluate_ReleaseInsideWindow(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	e, _ := newTestEvaluator(n)
	events := []calendar.Event{eventAt1430()}

	e.Evaluate(context.Background(), events, at(14, 30, 15), testSnapshot(), time.UTC)

	if n.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", n.count())
	}
	if n.calls[0] != KindRelease {
		t.Errorf("kind = %q, want %q", n.calls[0], KindRelease)
	}
}

func TestEvaluate_ReleaseWindowClosed(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	e, _ := newTestEvaluator(n)
	events := []calendar.Event{eventAt1430()}

	// fires inside the window...
	e.Evaluate(context.Background(), events, at(14, 30, 15), testSnapshot(), time.UTC)
	// ...then 65s after the event nothing new fires and nothing re-fires
	e.Evaluate(context.Background(), events, at(14, 31, 5), testSnapshot(), time.UTC)

	if n.count() != 1 {
		t.Errorf("deliveries = %d, want 1", n.count())
	}
}

func TestEvaluate_ReleaseBeforeInstantDoesNotFire(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	e, _ := newTestEvaluator(n)
	events := []calendar.Event{eventAt1430()}

	e.Evaluate(context.Background(), events, at(14, 29, 59), testSnapshot(), time.UTC)

	if n.count() != 0 {
		t.Errorf("deliveries = %d, want 0 before the event instant", n.count())
	}
}

func TestEvaluate_SentinelTimeNeverAlerts(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	e, _ := newTestEvaluator(n)
	ev := eventAt1430()
	ev.Time = "All Day"

	for _, now := range []time.Time{at(14, 25, 0), at(14, 30, 15)} {
		e.Evaluate(context.Background(), []calendar.Event{ev}, now, testSnapshot(), time.UTC)
	}

	if n.count() != 0 {
		t.Errorf("deliveries = %d, want 0 for sentinel time", n.count())
	}
}

func TestEvaluate_DispatchFailureDoesNotUnmark(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{err: errors.New("webhook down")}
	e, dedup := newTestEvaluator(n)
	events := []calendar.Event{eventAt1430()}
	now := at(14, 25, 0)

	e.Evaluate(context.Background(), events, now, testSnapshot(), time.UTC)

	if !dedup.Seen(Identity(events[0], KindPreEvent)) {
		t.Error("identity must stay marked after a failed dispatch")
	}

	// no retry on the next tick
	e.Evaluate(context.Background(), events, now, testSnapshot(), time.UTC)
	if n.count() != 1 {
		t.Errorf("deliveries = %d, want 1 (no retry after failure)", n.count())
	}
}

func TestEvaluate_RefiresAfterDedupReset(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	e, dedup := newTestEvaluator(n)
	events := []calendar.Event{eventAt1430()}
	now := at(14, 25, 0)

	e.Evaluate(context.Background(), events, now, testSnapshot(), time.UTC)

	if _, done := dedup.CleanupIfDue(now.Add(25*time.Hour), 24*time.Hour); !done {
		t.Fatal("expected cleanup to run")
	}

	e.Evaluate(context.Background(), events, now, testSnapshot(), time.UTC)
	if n.count() != 2 {
		t.Errorf("deliveries = %d, want 2 after a dedup reset", n.count())
	}
}

func TestEvaluate_BothKindsIndependent(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	e, _ := newTestEvaluator(n)
	events := []calendar.Event{eventAt1430()}

	e.Evaluate(context.Background(), events, at(14, 25, 0), testSnapshot(), time.UTC)
	e.Evaluate(context.Background(), events, at(14, 30, 10), testSnapshot(), time.UTC)

	if n.count() != 2 {
		t.Fatalf("deliveries = %d, want one of each kind", n.count())
	}
	if n.calls[0] != KindPreEvent || n.calls[1] != KindRelease {
		t.Errorf("kinds = %v, want [pre_event release]", n.calls)
	}
}

func TestEvaluate_UnparseableRowDoesNotAbortTick(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	e, _ := newTestEvaluator(n)

	bad := eventAt1430()
	bad.Time = "half past nonsense"
	good := eventAt1430()
	good.Title = "CPI y/y"

	e.Evaluate(context.Background(), []calendar.Event{bad, good}, at(14, 25, 0), testSnapshot(), time.UTC)

	if n.count() != 1 {
		t.Errorf("deliveries = %d, want 1 (bad row skipped, good row fired)", n.count())
	}
}
