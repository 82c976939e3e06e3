// Package settings loads the runtime alerting configuration. The
// scheduler pulls a fresh snapshot once per tick; there is no
// subscription mechanism.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/newswatch/internal/cache"
)

// ErrNotConfigured reports that no settings file exists yet. Alerting
// is skipped until one appears; the loop keeps running.
var ErrNotConfigured = errors.New("settings: not configured")

// Defaults applied to zero or negative fields in the file.
const (
	DefaultTimezone             = "US/Eastern"
	DefaultLeadSeconds          = 300
	DefaultReleaseWindowSeconds = 30
	DefaultCleanupIntervalHours = 24

	fileTTL = 5 * time.Minute
)

// Snapshot is one read-only view of the runtime configuration.
type Snapshot struct {
	AlertCurrencies      []string `yaml:"alert_currencies"`
	AlertLeadSeconds     int      `yaml:"alert_lead_seconds"`
	ReleaseWindowSeconds int      `yaml:"release_window_seconds"`
	CleanupIntervalHours int      `yaml:"cleanup_interval_hours"`
	Timezone             string   `yaml:"timezone"`
}

// Location resolves the snapshot's IANA timezone name.
func (s *Snapshot) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("settings: timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Lead is how long before an event's instant the pre-event alert fires.
func (s *Snapshot) Lead() time.Duration {
	return time.Duration(s.AlertLeadSeconds) * time.Second
}

// ReleaseWindow is how long after an event's instant a release alert
// may still fire.
func (s *Snapshot) ReleaseWindow() time.Duration {
	return time.Duration(s.ReleaseWindowSeconds) * time.Second
}

// CleanupInterval is how often the dedup store is cleared wholesale.
func (s *Snapshot) CleanupInterval() time.Duration {
	return time.Duration(s.CleanupIntervalHours) * time.Hour
}

// Loader reads snapshots from a YAML file through the shared cache,
// re-reading when the file is modified or the cache entry ages out.
type Loader struct {
	path   string
	cache  *cache.Store
	logger log.Logger
}

// NewLoader creates a Loader for the settings file at path.
func NewLoader(path string, c *cache.Store, logger log.Logger) *Loader {
	if logger == nil {
		logger = log.Nop()
	}
	return &Loader{path: path, cache: c, logger: logger}
}

// Load returns the current snapshot. Each caller gets its own copy.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, l.path)
		}
		return nil, fmt.Errorf("settings: stat %s: %w", l.path, err)
	}

	key := "settings:" + l.path
	if v, ok := l.cache.Get(key); ok {
		if storedAt, live := l.cache.StoredAt(key); live && !info.ModTime().After(storedAt) {
			snap := *(v.(*Snapshot))
			return &snap, nil
		}
		l.cache.Delete(key)
		l.logger.Info(ctx, "settings file modified, refreshing cache", "path", l.path)
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", l.path, err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", l.path, err)
	}
	snap.applyDefaults()

	l.cache.Set(key, &snap, fileTTL)

	cp := snap
	return &cp, nil
}

func (s *Snapshot) applyDefaults() {
	if s.AlertLeadSeconds <= 0 {
		s.AlertLeadSeconds = DefaultLeadSeconds
	}
	if s.ReleaseWindowSeconds <= 0 {
		s.ReleaseWindowSeconds = DefaultReleaseWindowSeconds
	}
	if s.CleanupIntervalHours <= 0 {
		s.CleanupIntervalHours = DefaultCleanupIntervalHours
	}
	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}
}
