package calendar

import "strings"

// Event is one row of an economic-calendar table. Fields carry the raw
// table strings; Time may be a placeholder like "All Day" meaning the
// event has no fixed clock time.
type Event struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Currency string `json:"currency"`
	Impact   string `json:"impact"`
	Title    string `json:"title"`
}

// ImpactRank orders impact levels: red > orange > yellow > gray.
// Unknown levels rank with gray.
func ImpactRank(impact string) int {
	switch strings.ToLower(strings.TrimSpace(impact)) {
	case "red":
		return 3
	case "orange":
		return 2
	case "yellow":
		return 1
	default:
		return 0
	}
}
