// Package filter implements the four-stage filter pipeline applied to
// every polled flight, controller, and transceiver record: a
// geographic boundary test, a callsign pattern test, a controller
// facility test, and a frequency exclusion test.
package filter

import (
	"sync"
	"time"
)

const statsWindowDays = 7

// dailyCounts holds one calendar day's processed/included/excluded
// tallies for a single filter stage.
type dailyCounts struct {
	Processed int
	Included  int
	Excluded  int
}

// rollingStats tracks a filter's processed/included/excluded counts
// over a rolling 7-day window, keyed by calendar date. Safe for
// concurrent use: the scheduler's ingest track is the only writer, but
// status/diagnostics endpoints may read concurrently.
type rollingStats struct {
	mu    sync.Mutex
	byDay map[string]*dailyCounts
	now   func() time.Time
}

func newRollingStats() *rollingStats {
	return &rollingStats{
		byDay: make(map[string]*dailyCounts),
		now:   time.Now,
	}
}

// record adds one batch's tallies to today's bucket and prunes any day
// older than the rolling window.
func (s *rollingStats) record(processed, included, excluded int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.now().UTC().Format("2006-01-02")
	d, ok := s.byDay[today]
	if !ok {
		d = &dailyCounts{}
		s.byDay[today] = d
	}
	d.Processed += processed
	d.Included += included
	d.Excluded += excluded

	cutoff := s.now().UTC().AddDate(0, 0, -statsWindowDays).Format("2006-01-02")
	for day := range s.byDay {
		if day < cutoff {
			delete(s.byDay, day)
		}
	}
}

// Totals sums the rolling window's daily buckets.
type Totals struct {
	Processed int
	Included  int
	Excluded  int
}

func (s *rollingStats) totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t Totals
	for _, d := range s.byDay {
		t.Processed += d.Processed
		t.Included += d.Included
		t.Excluded += d.Excluded
	}
	return t
}
