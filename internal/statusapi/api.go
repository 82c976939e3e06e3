// Package statusapi exposes a read-only view of the alert loop over
// HTTP. Configuration and data problems surface here, never through
// the loop itself.
package statusapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/newswatch/internal/alerting"
	"github.com/linnemanlabs/newswatch/internal/cache"
)

// SchedulerStatus is the read side of the alert scheduler.
type SchedulerStatus interface {
	Status() alerting.Status
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	sched  SchedulerStatus
	cache  *cache.Store
}

// StatusResponse is the GET /api/v1/status payload.
type StatusResponse struct {
	alerting.Status
	Cache cache.Stats `json:"cache"`
}

// New creates a new API handler.
func New(logger log.Logger, sched SchedulerStatus, c *cache.Store) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if sched == nil {
		panic(xerrors.New("scheduler status source is required"))
	}
	return &API{
		logger: logger,
		sched:  sched,
		cache:  c,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", a.handleGetStatus)
	})
}

func (a *API) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	st := a.sched.Status()

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("newswatch.mode", string(st.Mode)))

	resp := StatusResponse{Status: st}
	if a.cache != nil {
		resp.Cache = a.cache.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		a.logger.Error(r.Context(), err, "failed to encode status response")
	}
}
