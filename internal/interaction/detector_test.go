package interaction

import (
	"testing"
	"time"

	"github.com/t288matt/vatpac-stats-sub002/internal/geo"
)

func TestFacilityType(t *testing.T) {
	t.Run("known facility codes map to canonical types", func(t *testing.T) {
		cases := map[int]string{0: "OBS", 1: "FSS", 2: "DEL", 3: "GND", 4: "TWR", 5: "APP", 6: "CTR"}
		for code, want := range cases {
			if got := FacilityType(code); got != want {
				t.Errorf("FacilityType(%d) = %q, want %q", code, got, want)
			}
		}
	})

	t.Run("unknown facility code", func(t *testing.T) {
		if got := FacilityType(99); got != "UNK" {
			t.Errorf("expected UNK for unrecognized facility, got %q", got)
		}
	})
}

// TestMatchPredicateScenarios exercises the three-predicate match logic
// against the end-to-end scenarios named in the specification, using
// the SQL detector's tolerances and geo.DistanceNM (the haversine form
// of the great-circle distance the SQL computes with ACOS).
func TestMatchPredicateScenarios(t *testing.T) {
	const freqTolerance = 0.005
	const timeWindow = 180.0
	const proximityNM = 300.0

	t.Run("simple match: close in frequency, time, and distance", func(t *testing.T) {
		flight := geo.Point{Latitude: -35.3076, Longitude: 149.1913}
		controller := geo.Point{Latitude: -35.3000, Longitude: 149.2000}
		dist := geo.DistanceNM(flight, controller)
		dt := 30.0
		df := 0.0

		if !(df <= freqTolerance && dt <= timeWindow && dist <= proximityNM) {
			t.Fatalf("expected scenario 1 to match: dist=%v dt=%v df=%v", dist, dt, df)
		}
	})

	t.Run("frequency mismatch excludes the match", func(t *testing.T) {
		df := 0.100
		if df <= freqTolerance {
			t.Fatal("expected 0.100 MHz delta to exceed tolerance")
		}
	})

	t.Run("distance mismatch: Adelaide controller vs Sydney flight", func(t *testing.T) {
		adelaide := geo.Point{Latitude: -34.9524, Longitude: 138.5320}
		sydney := geo.Point{Latitude: -33.9393, Longitude: 151.1647}
		dist := geo.DistanceNM(adelaide, sydney)
		if dist <= proximityNM {
			t.Fatalf("expected Adelaide-Sydney distance to exceed 300nm, got %v", dist)
		}
		if dist < 550 || dist > 700 {
			t.Errorf("expected roughly 622nm, got %v", dist)
		}
	})

	t.Run("boundary: exactly 300.0nm is included", func(t *testing.T) {
		if !(300.0 <= proximityNM) {
			t.Fatal("300.0 must satisfy the <= 300 boundary")
		}
	})

	t.Run("boundary: exactly 180s is included", func(t *testing.T) {
		if !(180.0 <= timeWindow) {
			t.Fatal("180.0 must satisfy the <= 180 boundary")
		}
	})

	t.Run("boundary: exactly 0.005 MHz delta is included", func(t *testing.T) {
		if !(0.005 <= freqTolerance) {
			t.Fatal("0.005 must satisfy the <= 0.005 boundary")
		}
	})
}

func TestAggregateControllerMatches(t *testing.T) {
	base := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	t.Run("mode frequency and first/last seen across repeated matches", func(t *testing.T) {
		raw := []rawControllerMatch{
			{"SY_TWR", 4, 124.700, base},
			{"SY_TWR", 4, 124.700, base.Add(30 * time.Second)},
			{"SY_TWR", 4, 124.705, base.Add(60 * time.Second)},
			{"SY_TWR", 4, 124.700, base.Add(5 * time.Minute)},
		}
		out := aggregateControllerMatches(raw)
		if len(out) != 1 {
			t.Fatalf("expected 1 controller group, got %d", len(out))
		}
		m := out[0]
		if m.FrequencyMHz != 124.700 {
			t.Errorf("expected mode frequency 124.700, got %v", m.FrequencyMHz)
		}
		if m.TimeMinutes != 5 {
			t.Errorf("expected 5 minutes elapsed, got %d", m.TimeMinutes)
		}
	})

	t.Run("output ordered by first_seen ascending", func(t *testing.T) {
		raw := []rawControllerMatch{
			{"LATE_CTR", 6, 132.100, base.Add(10 * time.Minute)},
			{"EARLY_APP", 5, 124.500, base},
		}
		out := aggregateControllerMatches(raw)
		if len(out) != 2 || out[0].ControllerCallsign != "EARLY_APP" {
			t.Fatalf("expected EARLY_APP first, got %+v", out)
		}
	})
}
