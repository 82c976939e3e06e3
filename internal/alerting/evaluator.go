package alerting

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/newswatch/internal/calendar"
	"github.com/linnemanlabs/newswatch/internal/eventtime"
	"github.com/linnemanlabs/newswatch/internal/settings"
)

const (
	// preEventTolerance widens the pre-event band to [lead-1s, lead+1s].
	// The dense tick interval is 1s, so the band cannot be stepped over.
	preEventTolerance = time.Second

	// dispatchTimeout bounds a single delivery so a slow sink cannot
	// stall the loop indefinitely.
	dispatchTimeout = 5 * time.Second
)

// Evaluator decides, per tick, which alert kinds are due for each
// event and dispatches each at most once per dedup epoch.
type Evaluator struct {
	dedup    *DedupStore
	notifier Notifier
	logger   log.Logger
	metrics  *Metrics
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(dedup *DedupStore, notifier Notifier, logger log.Logger, m *Metrics) *Evaluator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Evaluator{
		dedup:    dedup,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
	}
}

// Evaluate checks every event against now. Events whose time cannot be
// resolved never alert; a failure evaluating one event is contained
// and the rest of the batch still runs.
func (e *Evaluator) Evaluate(ctx context.Context, events []calendar.Event, now time.Time, snap *settings.Snapshot, loc *time.Location) {
	for _, ev := range events {
		e.evaluateOne(ctx, ev, now, snap, loc)
	}
}

func (e *Evaluator) evaluateOne(ctx context.Context, ev calendar.Event, now time.Time, snap *settings.Snapshot, loc *time.Location) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.EvaluateErrors.Inc()
			e.logger.Warn(ctx, "recovered evaluating event",
				"panic", r,
				"title", ev.Title,
				"currency", ev.Currency,
			)
		}
	}()

	e.metrics.EventsEvaluated.Inc()

	instant, ok := eventtime.Resolve(ev.Date, ev.Time, loc)
	if !ok {
		e.metrics.EventsUnresolved.Inc()
		return
	}

	// pre-event: due when the gap to the event sits inside the
	// tolerance band centered on the lead time
	lead := snap.Lead()
	until := instant.Sub(now)
	if until >= lead-preEventTolerance && until <= lead+preEventTolerance {
		e.fireOnce(ctx, ev, KindPreEvent, now)
	}

	// release: due from the instant itself until the window closes
	since := now.Sub(instant)
	if since >= 0 && since <= snap.ReleaseWindow() {
		e.fireOnce(ctx, ev, KindRelease, now)
	}
}

// fireOnce dispatches (ev, kind) unless its identity already fired in
// this epoch. The identity is marked before delivery: a dispatch
// failure is logged but never un-marks it or triggers a retry.
func (e *Evaluator) fireOnce(ctx context.Context, ev calendar.Event, kind Kind, now time.Time) {
	id := Identity(ev, kind)
	if e.dedup.Seen(id) {
		e.metrics.AlertsSuppressed.WithLabelValues(string(kind)).Inc()
		return
	}
	e.dedup.Mark(id)

	dispatchID := ulid.Make().String()
	L := e.logger.With(
		"dispatch_id", dispatchID,
		"kind", string(kind),
		"currency", ev.Currency,
		"title", ev.Title,
		"event_time", ev.Time,
	)
	L.Info(ctx, "alert due", "at", now)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()

	start := time.Now()
	err := e.notifier.Notify(dctx, ev, kind)
	e.metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		e.metrics.DispatchFailures.Inc()
		L.Error(ctx, err, "alert dispatch failed")
		return
	}

	e.metrics.AlertsFired.WithLabelValues(string(kind)).Inc()
	L.Info(ctx, "alert dispatched")
}
