// Package calendar reads scheduled-event tables and answers filtered
// queries against them through a read-through cache.
package calendar

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/newswatch/internal/cache"
)

// ErrDataUnavailable reports that no usable event table exists. It is
// non-fatal: callers skip the current tick's alerting and keep looping.
var ErrDataUnavailable = errors.New("calendar: data unavailable")

const (
	tableTTL   = 10 * time.Minute
	dateLayout = "02/01/2006"
)

// Every table must carry these columns; a table missing any is
// rejected wholesale, never partially processed.
var requiredColumns = []string{"date", "time", "currency", "impact", "event"}

// Source answers event queries backed by the monthly CSV tables in a
// directory.
type Source struct {
	dir    string
	cache  *cache.Store
	logger log.Logger
}

// NewSource creates a Source reading tables from dir and caching
// parsed rows in c.
func NewSource(dir string, c *cache.Store, logger log.Logger) *Source {
	if logger == nil {
		logger = log.Nop()
	}
	return &Source{dir: dir, cache: c, logger: logger}
}

// EventsFor returns the events on ref's calendar day, filtered by
// impact and currency. ref's location decides what "today" means.
// Empty filter slices match everything. Impact matching is
// case-insensitive; currency matching ignores case and surrounding
// whitespace.
func (s *Source) EventsFor(ctx context.Context, ref time.Time, impacts, currencies []string) ([]Event, error) {
	path, mtime, err := s.latestTable(ref)
	if err != nil {
		return nil, err
	}

	rows, err := s.loadTable(ctx, path, mtime)
	if err != nil {
		return nil, err
	}

	impactSet := lowerSet(impacts)
	currencySet := upperSet(currencies)
	today := ref.Format(dateLayout)

	var out []Event
	for _, ev := range rows {
		if strings.TrimSpace(ev.Date) != today {
			continue
		}
		if len(impactSet) > 0 {
			if _, ok := impactSet[strings.ToLower(strings.TrimSpace(ev.Impact))]; !ok {
				continue
			}
		}
		if len(currencySet) > 0 {
			if _, ok := currencySet[strings.ToUpper(strings.TrimSpace(ev.Currency))]; !ok {
				continue
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// HighImpactEventsFor returns today's red and orange events for the
// given currencies.
func (s *Source) HighImpactEventsFor(ctx context.Context, ref time.Time, currencies []string) ([]Event, error) {
	return s.EventsFor(ctx, ref, []string{"red", "orange"}, currencies)
}

// latestTable picks the table to read: a file named for ref's month if
// one exists, else the most recently modified table.
func (s *Source) latestTable(ref time.Time) (string, time.Time, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: reading %s: %v", ErrDataUnavailable, s.dir, err)
	}

	month := strings.ToLower(ref.Month().String())

	var newest string
	var newestMtime time.Time
	for _, de := range dirents {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".csv") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(de.Name()), month) {
			return filepath.Join(s.dir, de.Name()), info.ModTime(), nil
		}
		if newest == "" || info.ModTime().After(newestMtime) {
			newest = de.Name()
			newestMtime = info.ModTime()
		}
	}

	if newest == "" {
		return "", time.Time{}, fmt.Errorf("%w: no tables in %s", ErrDataUnavailable, s.dir)
	}
	return filepath.Join(s.dir, newest), newestMtime, nil
}

// loadTable returns the parsed rows for path, re-reading the file when
// the cache entry has expired or the file was modified after it was
// cached. Cache validity is min(TTL, source freshness).
func (s *Source) loadTable(ctx context.Context, path string, mtime time.Time) ([]Event, error) {
	key := "csv:" + path

	if v, ok := s.cache.Get(key); ok {
		if storedAt, live := s.cache.StoredAt(key); live && !mtime.After(storedAt) {
			return v.([]Event), nil
		}
		// table written since we cached it
		s.cache.Delete(key)
		s.logger.Info(ctx, "event table modified, refreshing cache", "table", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrDataUnavailable, path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := parseTable(f)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, rows, tableTTL)
	s.logger.Info(ctx, "loaded event table", "table", path, "rows", len(rows))
	return rows, nil
}

// parseTable reads a CSV event table. A header missing any required
// column rejects the whole table.
func parseTable(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrDataUnavailable, err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: table missing column %q", ErrDataUnavailable, col)
		}
	}

	var rows []Event
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading rows: %v", ErrDataUnavailable, err)
		}

		field := func(col string) string {
			i := idx[col]
			if i >= len(record) {
				return ""
			}
			return record[i]
		}
		rows = append(rows, Event{
			Date:     field("date"),
			Time:     field("time"),
			Currency: field("currency"),
			Impact:   field("impact"),
			Title:    field("event"),
		})
	}
	return rows, nil
}

func lowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[strings.ToLower(strings.TrimSpace(it))] = struct{}{}
	}
	return set
}

func upperSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[strings.ToUpper(strings.TrimSpace(it))] = struct{}{}
	}
	return set
}
