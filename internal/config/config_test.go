package config

import (
	"os"
	"testing"

	"github.com/t288matt/vatpac-stats-sub002/internal/xerrors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Database.PoolSize != 10 {
		t.Errorf("Expected default pool size 10, got %d", cfg.Database.PoolSize)
	}
	if cfg.Upstream.PollIntervalSeconds != 60 {
		t.Errorf("Expected default poll interval 60s, got %d", cfg.Upstream.PollIntervalSeconds)
	}
	if cfg.Upstream.RetryAttempts != 3 {
		t.Errorf("Expected default retry attempts 3, got %d", cfg.Upstream.RetryAttempts)
	}
	if cfg.Completion.FlightCompletionMinutes != 14 {
		t.Errorf("Expected default flight completion threshold 14m, got %d", cfg.Completion.FlightCompletionMinutes)
	}
	if cfg.Completion.ControllerCompletionMinutes != 30 {
		t.Errorf("Expected default controller completion threshold 30m, got %d", cfg.Completion.ControllerCompletionMinutes)
	}
	if cfg.Completion.FlightRetentionHours != 168 {
		t.Errorf("Expected default retention 168h, got %d", cfg.Completion.FlightRetentionHours)
	}
	if cfg.Interaction.FrequencyToleranceMHz != 0.005 {
		t.Errorf("Expected default frequency tolerance 0.005, got %v", cfg.Interaction.FrequencyToleranceMHz)
	}
	if cfg.Interaction.TimeWindowSeconds != 180 {
		t.Errorf("Expected default time window 180s, got %d", cfg.Interaction.TimeWindowSeconds)
	}
	if cfg.Interaction.ProximityNM != 300 {
		t.Errorf("Expected default proximity 300nm, got %v", cfg.Interaction.ProximityNM)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Run("pool size override", func(t *testing.T) {
		os.Setenv("DB_POOL_SIZE", "42")
		defer os.Unsetenv("DB_POOL_SIZE")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Database.PoolSize != 42 {
			t.Errorf("Expected pool size 42, got %d", cfg.Database.PoolSize)
		}
	})

	t.Run("invalid integer fails with ConfigError naming the key", func(t *testing.T) {
		os.Setenv("DB_POOL_SIZE", "not-a-number")
		defer os.Unsetenv("DB_POOL_SIZE")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for invalid DB_POOL_SIZE")
		}
		if ce, ok := err.(*xerrors.ConfigError); ok {
			if ce.Key != "DB_POOL_SIZE" {
				t.Errorf("Expected error to name DB_POOL_SIZE, got %q", ce.Key)
			}
		} else {
			t.Errorf("Expected *xerrors.ConfigError, got %T", err)
		}
	})

	t.Run("pool size below minimum fails validation", func(t *testing.T) {
		os.Setenv("DB_POOL_SIZE", "0")
		defer os.Unsetenv("DB_POOL_SIZE")

		_, err := Load()
		if err == nil {
			t.Fatal("expected validation error for pool size 0")
		}
	})

	t.Run("excluded frequencies parse and validate range", func(t *testing.T) {
		os.Setenv("EXCLUDED_FREQUENCIES_MHZ", "122.800, 121.500, 99.999")
		defer os.Unsetenv("EXCLUDED_FREQUENCIES_MHZ")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 99.999 is outside the 118.0-137.0 aviation band and silently dropped.
		if len(cfg.Filters.ExcludedFrequenciesMHz) != 2 {
			t.Errorf("Expected 2 valid excluded frequencies, got %d: %v",
				len(cfg.Filters.ExcludedFrequenciesMHz), cfg.Filters.ExcludedFrequenciesMHz)
		}
	})

	t.Run("callsign patterns split on comma", func(t *testing.T) {
		os.Setenv("CALLSIGN_PATTERNS", "QFA,JST,VOZ")
		defer os.Unsetenv("CALLSIGN_PATTERNS")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Filters.CallsignPatterns) != 3 {
			t.Errorf("Expected 3 callsign patterns, got %d", len(cfg.Filters.CallsignPatterns))
		}
	})

	t.Run("include observers boolean", func(t *testing.T) {
		os.Setenv("INCLUDE_OBSERVERS", "true")
		defer os.Unsetenv("INCLUDE_OBSERVERS")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.Filters.IncludeObservers {
			t.Error("Expected IncludeObservers to be true")
		}
	})
}
