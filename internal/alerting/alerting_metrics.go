package alerting

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the alerting subsystem.
type Metrics struct {
	TicksTotal       *prometheus.CounterVec
	AlertsFired      *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec
	EventsEvaluated  prometheus.Counter
	EventsUnresolved prometheus.Counter
	EvaluateErrors   prometheus.Counter
	DispatchFailures prometheus.Counter
	DispatchDuration prometheus.Histogram
	DataUnavailable  prometheus.Counter
	DedupCleanups    prometheus.Counter
	DedupStoreSize   prometheus.Gauge
	SettingsUnusable prometheus.Counter
}

// NewMetrics registers and returns alerting metrics on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newswatch_ticks_total",
			Help: "Total scheduler ticks by polling mode.",
		}, []string{"mode"}),
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newswatch_alerts_fired_total",
			Help: "Total alerts dispatched by kind.",
		}, []string{"kind"}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newswatch_alerts_suppressed_total",
			Help: "Total due alerts suppressed because their identity already fired.",
		}, []string{"kind"}),
		EventsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newswatch_events_evaluated_total",
			Help: "Total events checked for due alerts.",
		}),
		EventsUnresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newswatch_events_unresolved_total",
			Help: "Total events skipped because their time could not be resolved.",
		}),
		EvaluateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newswatch_evaluate_errors_total",
			Help: "Total per-event evaluation failures recovered without aborting the tick.",
		}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newswatch_dispatch_failures_total",
			Help: "Total notifier deliveries that returned an error.",
		}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newswatch_dispatch_duration_seconds",
			Help:    "Duration of notifier deliveries in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms .. ~5s
		}),
		DataUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newswatch_data_unavailable_total",
			Help: "Total ticks skipped because no usable event table existed.",
		}),
		DedupCleanups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newswatch_dedup_cleanups_total",
			Help: "Total wholesale clears of the dedup store.",
		}),
		DedupStoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newswatch_dedup_store_size",
			Help: "Alert identities tracked in the current dedup epoch.",
		}),
		SettingsUnusable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newswatch_settings_unusable_total",
			Help: "Total ticks skipped because runtime settings were missing or invalid.",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.AlertsFired,
		m.AlertsSuppressed,
		m.EventsEvaluated,
		m.EventsUnresolved,
		m.EvaluateErrors,
		m.DispatchFailures,
		m.DispatchDuration,
		m.DataUnavailable,
		m.DedupCleanups,
		m.DedupStoreSize,
		m.SettingsUnusable,
	)

	return m
}
