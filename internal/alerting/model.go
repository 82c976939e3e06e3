// Package alerting decides when and whether each calendar event's
// alerts fire, tracks what has already fired, and drives the adaptive
// polling loop.
package alerting

import (
	"crypto/md5" //nolint:gosec // G501: dedup key, not a credential
	"encoding/hex"
	"strings"

	"github.com/linnemanlabs/newswatch/internal/calendar"
)

// Kind names the two alerts fired per event.
type Kind string

const (
	// KindPreEvent fires a configured lead time before the event.
	KindPreEvent Kind = "pre_event"

	// KindRelease fires at or just after the event's instant.
	KindRelease Kind = "release"
)

// Identity returns the dedup key for one (event, kind) pair. It hashes
// the raw source fields, so an identical logical event yields the same
// key across ticks and restarts as long as the table is unchanged.
// Impact is deliberately excluded: a table edit that only reclassifies
// severity must not re-fire the alert.
func Identity(ev calendar.Event, kind Kind) string {
	raw := strings.Join([]string{ev.Date, ev.Time, ev.Currency, ev.Title, string(kind)}, "_")
	sum := md5.Sum([]byte(raw)) //nolint:gosec // G401: dedup key, not a credential
	return hex.EncodeToString(sum[:])
}
