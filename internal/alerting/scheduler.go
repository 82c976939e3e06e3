package alerting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/newswatch/internal/calendar"
	"github.com/linnemanlabs/newswatch/internal/eventtime"
	"github.com/linnemanlabs/newswatch/internal/settings"
)

// Mode is the scheduler's polling cadence, recomputed fresh on every
// tick from proximity to the nearest event. No hysteresis.
type Mode string

const (
	// ModeDense polls every second for precise alert timing near an
	// event.
	ModeDense Mode = "dense"

	// ModeSparse polls every five minutes to minimize source re-reads
	// when nothing is close.
	ModeSparse Mode = "sparse"
)

const (
	// proximityHorizon is how close (past or future) the nearest event
	// must be for dense polling.
	proximityHorizon = 10 * time.Minute

	denseInterval  = time.Second
	sparseInterval = 5 * time.Minute
)

// NextInterval maps a polling mode to the wait before the next tick.
func NextInterval(m Mode) time.Duration {
	if m == ModeDense {
		return denseInterval
	}
	return sparseInterval
}

// EventSource answers the day's filtered event query.
type EventSource interface {
	HighImpactEventsFor(ctx context.Context, ref time.Time, currencies []string) ([]calendar.Event, error)
}

// SettingsLoader supplies the per-tick configuration snapshot.
type SettingsLoader interface {
	Load(ctx context.Context) (*settings.Snapshot, error)
}

// Status is a point-in-time view of the scheduler for the status API.
type Status struct {
	Mode          Mode      `json:"mode"`
	LastTickAt    time.Time `json:"last_tick_at"`
	EventsToday   int       `json:"events_today"`
	TrackedAlerts int       `json:"tracked_alerts"`
	LastCleanupAt time.Time `json:"last_cleanup_at"`
	SettingsOK    bool      `json:"settings_ok"`
	DataAvailable bool      `json:"data_available"`
}

// Scheduler drives the alert loop: one cooperative timeline, strictly
// sequential ticks, cancellation honored between ticks.
type Scheduler struct {
	source  EventSource
	loader  SettingsLoader
	eval    *Evaluator
	dedup   *DedupStore
	logger  log.Logger
	metrics *Metrics
	now     func() time.Time

	mu     sync.Mutex
	status Status
}

// NewScheduler wires the loop. The dedup store must be the same one
// the evaluator writes to.
func NewScheduler(source EventSource, loader SettingsLoader, eval *Evaluator, dedup *DedupStore, logger log.Logger, m *Metrics) *Scheduler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Scheduler{
		source:  source,
		loader:  loader,
		eval:    eval,
		dedup:   dedup,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		status:  Status{Mode: ModeSparse},
	}
}

// Status returns a snapshot of the loop's current state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run executes ticks until ctx is cancelled. Nothing that happens
// inside a tick terminates the loop: a panic escaping all handlers is
// recovered, logged, and the loop sleeps and retries.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info(ctx, "alert monitoring started")

	for {
		mode := s.safeTick(ctx)
		s.metrics.TicksTotal.WithLabelValues(string(mode)).Inc()

		select {
		case <-ctx.Done():
			s.logger.Info(context.Background(), "alert monitoring stopped", "reason", ctx.Err())
			return
		case <-time.After(NextInterval(mode)):
		}
	}
}

func (s *Scheduler) safeTick(ctx context.Context) (mode Mode) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, errors.New("tick panicked"), "recovered in alert loop", "panic", r)
			mode = ModeSparse
		}
	}()
	return s.tick(ctx)
}

// tick performs one fetch-evaluate cycle and returns the mode chosen
// for the wait that follows. Every failure class here is non-fatal:
// the tick's alerting is skipped and the loop continues.
func (s *Scheduler) tick(ctx context.Context) Mode {
	now := s.now()

	snap, err := s.loader.Load(ctx)
	if err != nil {
		s.metrics.SettingsUnusable.Inc()
		if errors.Is(err, settings.ErrNotConfigured) {
			s.logger.Warn(ctx, "settings missing, alerting paused")
		} else {
			s.logger.Error(ctx, err, "settings unusable, alerting paused")
		}
		s.updateStatus(ModeSparse, now, 0, false, false)
		return ModeSparse
	}

	loc, err := snap.Location()
	if err != nil {
		s.metrics.SettingsUnusable.Inc()
		s.logger.Error(ctx, err, "settings unusable, alerting paused")
		s.updateStatus(ModeSparse, now, 0, false, false)
		return ModeSparse
	}

	if len(snap.AlertCurrencies) == 0 {
		// valid settings, nothing subscribed: skip alerting until
		// currencies are configured
		s.updateStatus(ModeSparse, now, 0, true, true)
		return ModeSparse
	}

	events, err := s.source.HighImpactEventsFor(ctx, now.In(loc), snap.AlertCurrencies)
	if err != nil {
		if errors.Is(err, calendar.ErrDataUnavailable) {
			s.metrics.DataUnavailable.Inc()
			s.logger.Warn(ctx, "event data unavailable, skipping tick")
		} else {
			s.logger.Error(ctx, err, "event fetch failed, skipping tick")
		}
		s.updateStatus(ModeSparse, now, 0, true, false)
		return ModeSparse
	}

	mode := s.computeMode(events, now, loc)

	s.eval.Evaluate(ctx, events, now, snap, loc)

	if mode == ModeSparse {
		if cleared, done := s.dedup.CleanupIfDue(now, snap.CleanupInterval()); done {
			s.metrics.DedupCleanups.Inc()
			s.logger.Info(ctx, "cleared fired-alert identities", "count", cleared)
		}
	}
	s.metrics.DedupStoreSize.Set(float64(s.dedup.Len()))

	s.updateStatus(mode, now, len(events), true, true)
	return mode
}

// computeMode returns ModeDense when any resolvable event lies within
// the proximity horizon of now, past or future.
func (s *Scheduler) computeMode(events []calendar.Event, now time.Time, loc *time.Location) Mode {
	for _, ev := range events {
		if eventtime.IsSentinel(ev.Time) {
			continue
		}
		instant, ok := eventtime.Resolve(ev.Date, ev.Time, loc)
		if !ok {
			continue
		}
		diff := instant.Sub(now)
		if diff < 0 {
			diff = -diff
		}
		if diff <= proximityHorizon {
			return ModeDense
		}
	}
	return ModeSparse
}

func (s *Scheduler) updateStatus(mode Mode, now time.Time, events int, settingsOK, dataAvailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{
		Mode:          mode,
		LastTickAt:    now,
		EventsToday:   events,
		TrackedAlerts: s.dedup.Len(),
		LastCleanupAt: s.dedup.LastCleanup(),
		SettingsOK:    settingsOK,
		DataAvailable: dataAvailable,
	}
}
