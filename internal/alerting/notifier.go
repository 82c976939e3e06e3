package alerting

import (
	"context"

	"github.com/linnemanlabs/newswatch/internal/calendar"
)

// Notifier delivers one due alert. Implementations own rendering,
// transport, and their own failure handling; a returned error is
// logged here and never retried. Delivery is at-most-once: the
// identity is recorded as fired before Notify runs.
type Notifier interface {
	Notify(ctx context.Context, ev calendar.Event, kind Kind) error
}
