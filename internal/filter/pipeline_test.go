package filter

import (
	"testing"

	"github.com/t288matt/vatpac-stats-sub002/internal/geo"
	"github.com/t288matt/vatpac-stats-sub002/internal/upstream"
)

func TestFilterFlights(t *testing.T) {
	square := &geo.Polygon{Ring: [][2]float64{
		{150.0, -27.0}, {155.0, -27.0}, {155.0, -30.0}, {150.0, -30.0},
	}}

	t.Run("boundary disabled passes everything through", func(t *testing.T) {
		p := New(Config{BoundaryEnabled: false})
		pilots := []upstream.PilotRecord{{Callsign: "QFA1", Latitude: 0, Longitude: 0}}
		out := p.FilterFlights(pilots)
		if len(out) != 1 {
			t.Fatalf("expected 1 record, got %d", len(out))
		}
	})

	t.Run("boundary excludes outside points and missing coordinates", func(t *testing.T) {
		p := New(Config{BoundaryEnabled: true, BoundaryPolygon: square})
		pilots := []upstream.PilotRecord{
			{Callsign: "IN1", Latitude: -28.0, Longitude: 152.0},
			{Callsign: "OUT1", Latitude: -40.0, Longitude: 152.0},
			{Callsign: "NOCOORD", Latitude: 0, Longitude: 0},
		}
		out := p.FilterFlights(pilots)
		if len(out) != 1 || out[0].Callsign != "IN1" {
			t.Fatalf("expected only IN1 to survive, got %+v", out)
		}
		totals := p.Stats().Boundary
		if totals.Processed != 3 || totals.Included != 1 || totals.Excluded != 2 {
			t.Errorf("unexpected boundary totals: %+v", totals)
		}
	})

	t.Run("callsign pattern filters by prefix", func(t *testing.T) {
		p := New(Config{
			BoundaryEnabled: false,
			CallsignEnabled: true,
			CallsignPatterns: []string{"QFA", "JST"},
		})
		pilots := []upstream.PilotRecord{
			{Callsign: "QFA123"},
			{Callsign: "JST456"},
			{Callsign: "VOZ789"},
		}
		out := p.FilterFlights(pilots)
		if len(out) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(out))
		}
	})

	t.Run("empty pattern list passes through", func(t *testing.T) {
		p := New(Config{CallsignEnabled: true, CallsignPatterns: nil})
		pilots := []upstream.PilotRecord{{Callsign: "QFA1"}}
		out := p.FilterFlights(pilots)
		if len(out) != 1 {
			t.Fatalf("expected pass-through, got %d", len(out))
		}
	})
}

func TestFilterControllers(t *testing.T) {
	t.Run("drops observers by default", func(t *testing.T) {
		p := New(Config{ControllerTypeEnabled: true, IncludeObservers: false})
		ctrls := []upstream.ControllerRecord{
			{Callsign: "SY_TWR", Facility: 4},
			{Callsign: "OBS1", Facility: 0},
		}
		out := p.FilterControllers(ctrls)
		if len(out) != 1 || out[0].Callsign != "SY_TWR" {
			t.Fatalf("expected only SY_TWR to survive, got %+v", out)
		}
	})

	t.Run("includes observers when configured", func(t *testing.T) {
		p := New(Config{ControllerTypeEnabled: true, IncludeObservers: true})
		ctrls := []upstream.ControllerRecord{{Callsign: "OBS1", Facility: 0}}
		out := p.FilterControllers(ctrls)
		if len(out) != 1 {
			t.Fatalf("expected observer to survive, got %d", len(out))
		}
	})
}

func TestFilterTransceiverGroups(t *testing.T) {
	t.Run("excludes configured frequencies, passes zero frequency unchanged", func(t *testing.T) {
		p := New(Config{
			FrequencyEnabled:       true,
			ExcludedFrequenciesMHz: []float64{122.800, 121.500},
		})
		groups := []upstream.TransceiverGroup{
			{Callsign: "QFA1", Transceivers: []upstream.Transceiver{
				{ID: 0, FrequencyHz: 122_800_000},
				{ID: 1, FrequencyHz: 128_550_000},
				{ID: 2, FrequencyHz: 0},
			}},
		}
		out := p.FilterTransceiverGroups(groups)
		if len(out) != 1 {
			t.Fatalf("expected 1 group, got %d", len(out))
		}
		if len(out[0].Transceivers) != 2 {
			t.Fatalf("expected 2 surviving transceivers, got %d", len(out[0].Transceivers))
		}
	})
}
