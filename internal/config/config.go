// Package config loads and validates the ingestion engine's runtime
// configuration from the environment, with typed defaults for every
// knob enumerated in the specification.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/t288matt/vatpac-stats-sub002/internal/xerrors"
)

// Config is the complete, validated runtime configuration.
type Config struct {
	Database   DatabaseConfig
	Upstream   UpstreamConfig
	Filters    FilterConfig
	Completion CompletionConfig
	Interaction InteractionConfig
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	URL                 string
	PoolSize            int
	MaxOverflow         int
	PoolRecycleSeconds  int
	PoolTimeoutSeconds  int
	ConnectTimeoutSeconds int
}

// UpstreamConfig contains the upstream feed endpoints and fetch behavior.
type UpstreamConfig struct {
	DataURL             string
	TransceiversURL     string
	StatusURL           string
	TimeoutSeconds      int
	RetryAttempts       int
	UserAgent           string
	PollIntervalSeconds int
}

// FilterConfig contains the filter pipeline's configuration.
type FilterConfig struct {
	ExcludedFrequenciesMHz []float64
	BoundaryPolygonFile    string
	CallsignPatterns       []string
	IncludeObservers       bool
}

// CompletionConfig contains the completion & summarization engine's
// thresholds and retention windows.
type CompletionConfig struct {
	FlightCompletionMinutes     int
	ControllerCompletionMinutes int
	FlightRetentionHours        int
	ControllerRetentionHours    int
	SummaryPassIntervalMinutes  int
}

// InteractionConfig contains the interaction detector's match tolerances.
type InteractionConfig struct {
	FrequencyToleranceMHz float64
	TimeWindowSeconds     int
	ProximityNM           float64
}

// Load reads configuration exclusively from the environment. Every
// recognized key has a typed default; invalid values fail with a
// *xerrors.ConfigError naming the offending key.
func Load() (*Config, error) {
	cfg := Default()

	if err := cfg.Database.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Upstream.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Filters.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Completion.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Interaction.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with sensible defaults, matching the
// values enumerated in the specification.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:                   "postgres://localhost:5432/vatpac_stats?sslmode=disable",
			PoolSize:              10,
			MaxOverflow:           5,
			PoolRecycleSeconds:    3600,
			PoolTimeoutSeconds:    30,
			ConnectTimeoutSeconds: 5,
		},
		Upstream: UpstreamConfig{
			DataURL:             "https://data.vatsim.net/v3/vatsim-data.json",
			TransceiversURL:     "https://data.vatsim.net/v3/transceivers-data.json",
			StatusURL:           "https://status.vatsim.net/status.json",
			TimeoutSeconds:      10,
			RetryAttempts:       3,
			UserAgent:           "vatpac-stats-ingest/1.0",
			PollIntervalSeconds: 60,
		},
		Filters: FilterConfig{
			ExcludedFrequenciesMHz: []float64{122.800, 121.500},
			BoundaryPolygonFile:    "",
			CallsignPatterns:       nil,
			IncludeObservers:       false,
		},
		Completion: CompletionConfig{
			FlightCompletionMinutes:     14,
			ControllerCompletionMinutes: 30,
			FlightRetentionHours:        168,
			ControllerRetentionHours:    168,
			SummaryPassIntervalMinutes:  1,
		},
		Interaction: InteractionConfig{
			FrequencyToleranceMHz: 0.005,
			TimeWindowSeconds:     180,
			ProximityNM:           300,
		},
	}
}

func (c *Config) validate() error {
	if c.Database.PoolSize < 1 {
		return xerrors.NewConfigError("DB_POOL_SIZE", "must be >= 1, got %d", c.Database.PoolSize)
	}
	if c.Upstream.RetryAttempts < 0 {
		return xerrors.NewConfigError("UPSTREAM_RETRY_ATTEMPTS", "must be >= 0, got %d", c.Upstream.RetryAttempts)
	}
	if c.Upstream.PollIntervalSeconds < 1 {
		return xerrors.NewConfigError("UPSTREAM_POLL_INTERVAL_SECONDS", "must be >= 1, got %d", c.Upstream.PollIntervalSeconds)
	}
	for _, f := range c.Filters.ExcludedFrequenciesMHz {
		if f < 118.0 || f > 137.0 {
			return xerrors.NewConfigError("EXCLUDED_FREQUENCIES_MHZ", "frequency %.3f outside valid aviation range (118.0-137.0)", f)
		}
	}
	return nil
}

func (d *DatabaseConfig) applyEnv() error {
	if v, ok := lookup("DB_URL"); ok {
		d.URL = v
	}
	var err error
	if d.PoolSize, err = intEnv("DB_POOL_SIZE", d.PoolSize); err != nil {
		return err
	}
	if d.MaxOverflow, err = intEnv("DB_MAX_OVERFLOW", d.MaxOverflow); err != nil {
		return err
	}
	if d.PoolRecycleSeconds, err = intEnv("DB_POOL_RECYCLE_SECONDS", d.PoolRecycleSeconds); err != nil {
		return err
	}
	if d.PoolTimeoutSeconds, err = intEnv("DB_POOL_TIMEOUT_SECONDS", d.PoolTimeoutSeconds); err != nil {
		return err
	}
	if d.ConnectTimeoutSeconds, err = intEnv("DB_CONNECT_TIMEOUT_SECONDS", d.ConnectTimeoutSeconds); err != nil {
		return err
	}
	return nil
}

func (u *UpstreamConfig) applyEnv() error {
	if v, ok := lookup("UPSTREAM_DATA_URL"); ok {
		u.DataURL = v
	}
	if v, ok := lookup("UPSTREAM_TRANSCEIVERS_URL"); ok {
		u.TransceiversURL = v
	}
	if v, ok := lookup("UPSTREAM_STATUS_URL"); ok {
		u.StatusURL = v
	}
	if v, ok := lookup("UPSTREAM_USER_AGENT"); ok {
		u.UserAgent = v
	}
	var err error
	if u.TimeoutSeconds, err = intEnv("UPSTREAM_TIMEOUT_SECONDS", u.TimeoutSeconds); err != nil {
		return err
	}
	if u.RetryAttempts, err = intEnv("UPSTREAM_RETRY_ATTEMPTS", u.RetryAttempts); err != nil {
		return err
	}
	if u.PollIntervalSeconds, err = intEnv("UPSTREAM_POLL_INTERVAL_SECONDS", u.PollIntervalSeconds); err != nil {
		return err
	}
	return nil
}

func (f *FilterConfig) applyEnv() error {
	if v, ok := lookup("EXCLUDED_FREQUENCIES_MHZ"); ok {
		var freqs []float64
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			val, err := strconv.ParseFloat(part, 64)
			if err != nil {
				// Matches the original filter's partial-failure tolerance:
				// one bad entry is skipped, not a hard config failure.
				continue
			}
			if val < 118.0 || val > 137.0 {
				continue
			}
			freqs = append(freqs, val)
		}
		f.ExcludedFrequenciesMHz = freqs
	}
	if v, ok := lookup("BOUNDARY_POLYGON_FILE"); ok {
		f.BoundaryPolygonFile = v
	}
	if v, ok := lookup("CALLSIGN_PATTERNS"); ok {
		var patterns []string
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				patterns = append(patterns, part)
			}
		}
		f.CallsignPatterns = patterns
	}
	if v, ok := lookup("INCLUDE_OBSERVERS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return xerrors.NewConfigError("INCLUDE_OBSERVERS", "invalid boolean %q", v)
		}
		f.IncludeObservers = b
	}
	return nil
}

func (c *CompletionConfig) applyEnv() error {
	var err error
	if c.FlightCompletionMinutes, err = intEnv("FLIGHT_COMPLETION_MINUTES", c.FlightCompletionMinutes); err != nil {
		return err
	}
	if c.ControllerCompletionMinutes, err = intEnv("CONTROLLER_COMPLETION_MINUTES", c.ControllerCompletionMinutes); err != nil {
		return err
	}
	if c.FlightRetentionHours, err = intEnv("FLIGHT_RETENTION_HOURS", c.FlightRetentionHours); err != nil {
		return err
	}
	if c.ControllerRetentionHours, err = intEnv("CONTROLLER_RETENTION_HOURS", c.ControllerRetentionHours); err != nil {
		return err
	}
	if c.SummaryPassIntervalMinutes, err = intEnv("SUMMARY_PASS_INTERVAL_MINUTES", c.SummaryPassIntervalMinutes); err != nil {
		return err
	}
	return nil
}

func (i *InteractionConfig) applyEnv() error {
	if v, ok := lookup("FREQUENCY_TOLERANCE_MHZ"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return xerrors.NewConfigError("FREQUENCY_TOLERANCE_MHZ", "invalid float %q", v)
		}
		i.FrequencyToleranceMHz = f
	}
	var err error
	if i.TimeWindowSeconds, err = intEnv("TIME_WINDOW_SECONDS", i.TimeWindowSeconds); err != nil {
		return err
	}
	if v, ok := lookup("PROXIMITY_NM"); ok {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return xerrors.NewConfigError("PROXIMITY_NM", "invalid float %q", v)
		}
		i.ProximityNM = f
	}
	return nil
}

func lookup(key string) (string, bool) {
	v := os.Getenv(key)
	if v == "" {
		return "", false
	}
	return v, true
}

func intEnv(key string, fallback int) (int, error) {
	v, ok := lookup(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, xerrors.NewConfigError(key, "invalid integer %q", v)
	}
	return n, nil
}
