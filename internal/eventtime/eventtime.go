// Package eventtime reconstructs an absolute instant from the
// date and time strings a calendar table carries.
package eventtime

import (
	"strings"
	"time"
)

// Layout order matters: the 12-hour layouts run first so "1:04" in a
// string carrying an AM/PM marker is never read as 24-hour time.
var layouts = []string{
	"02/01/2006 3:04PM",
	"02/01/2006 3:04pm",
	"02/01/2006 15:04",
}

// Sentinel time strings that mean "no fixed clock time". Rows carrying
// one never alert.
var sentinels = map[string]struct{}{
	"":          {},
	"All Day":   {},
	"Tentative": {},
	"nan":       {},
}

// IsSentinel reports whether timeStr is a placeholder rather than a
// clock time. "Day 1", "Day 2", etc. are matched by prefix.
func IsSentinel(timeStr string) bool {
	ts := strings.TrimSpace(timeStr)
	if _, ok := sentinels[ts]; ok {
		return true
	}
	return strings.HasPrefix(ts, "Day ")
}

// Resolve parses dateStr+timeStr into an instant localized directly in
// loc. It returns false for sentinel time strings and for anything no
// supported layout can parse; it never returns an error.
func Resolve(dateStr, timeStr string, loc *time.Location) (time.Time, bool) {
	ts := strings.TrimSpace(timeStr)
	ds := strings.TrimSpace(dateStr)
	if ds == "" || ds == "nan" || IsSentinel(ts) {
		return time.Time{}, false
	}

	stamp := ds + " " + ts
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, stamp, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
