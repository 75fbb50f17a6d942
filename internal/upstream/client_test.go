package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchNetworkSnapshot(t *testing.T) {
	t.Run("parses pilots and controllers, drops malformed records", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"general": {"update_timestamp": "2026-07-31T12:00:00Z"},
				"pilots": [
					{"callsign": "QFA1", "cid": 100, "logon_time": "2026-07-31T10:00:00Z", "last_updated": "2026-07-31T11:59:00Z", "latitude": -33.9, "longitude": 151.1},
					{"callsign": "", "cid": 101, "logon_time": "2026-07-31T10:00:00Z", "last_updated": "2026-07-31T11:59:00Z"}
				],
				"controllers": [
					{"callsign": "SY_TWR", "cid": 200, "facility": 4, "logon_time": "2026-07-31T09:00:00Z", "last_updated": "2026-07-31T11:58:00Z"}
				]
			}`))
		}))
		defer srv.Close()

		c := New(srv.URL, srv.URL+"/transceivers", srv.URL+"/status", "test-agent", 2*time.Second, time.Millisecond)
		snap, err := c.FetchNetworkSnapshot(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(snap.Pilots) != 1 {
			t.Errorf("Expected 1 valid pilot, got %d", len(snap.Pilots))
		}
		if len(snap.Controllers) != 1 {
			t.Errorf("Expected 1 controller, got %d", len(snap.Controllers))
		}
		if snap.DroppedRecords != 1 {
			t.Errorf("Expected 1 dropped record, got %d", snap.DroppedRecords)
		}
	})

	t.Run("4xx fails immediately without retrying", func(t *testing.T) {
		attempts := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c := New(srv.URL, srv.URL, srv.URL, "test-agent", 2*time.Second, time.Millisecond)
		_, err := c.FetchNetworkSnapshot(context.Background())
		if err == nil {
			t.Fatal("expected an error for a 404 response")
		}
		if attempts != 1 {
			t.Errorf("Expected exactly 1 attempt for a 4xx response, got %d", attempts)
		}
	})

	t.Run("5xx retries up to the configured attempt count", func(t *testing.T) {
		attempts := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := New(srv.URL, srv.URL, srv.URL, "test-agent", 2*time.Second, time.Millisecond)
		c.retry = RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
		_, err := c.FetchNetworkSnapshot(context.Background())
		if err == nil {
			t.Fatal("expected an error after exhausting retries")
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})
}

func TestFetchTransceivers(t *testing.T) {
	t.Run("drops groups with empty callsign and transceivers with zero frequency", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				{"callsign": "QFA1", "transceivers": [{"id": 0, "frequency": 128550000, "latDeg": -33.9, "lonDeg": 151.1}]},
				{"callsign": "", "transceivers": []},
				{"callsign": "VOZ2", "transceivers": [{"id": 0, "frequency": 0}]}
			]`))
		}))
		defer srv.Close()

		c := New(srv.URL, srv.URL, srv.URL, "test-agent", 2*time.Second, time.Millisecond)
		snap, err := c.FetchTransceivers(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(snap.Groups) != 2 {
			t.Errorf("Expected 2 groups (1 dropped for empty callsign), got %d", len(snap.Groups))
		}
		if snap.DroppedRecords != 2 {
			t.Errorf("Expected 2 dropped records, got %d", snap.DroppedRecords)
		}
	})
}
