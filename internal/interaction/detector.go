// Package interaction implements the flight<->controller match: for a
// completed session on one side, it finds every session on the other
// side whose transceiver timeline overlaps under a three-predicate
// rule (frequency proximity, time proximity, great-circle distance).
//
// The match is pre-scoped before the join: candidate sessions are
// narrowed by time-window overlap first, and transceiver rows are
// narrowed to that session's window and entity kind second. Only then
// are the two candidate sets joined on the three predicates. Joining
// the full transceivers table against itself is a correctness and
// performance trap this package deliberately avoids.
package interaction

import (
	"context"
	"database/sql"
	"time"
)

// Detector runs the pre-scoped interaction queries against db.
type Detector struct {
	db                    *sql.DB
	frequencyToleranceMHz float64
	timeWindowSeconds     int
	proximityNM           float64
}

// New builds a Detector with the configured match tolerances.
func New(db *sql.DB, frequencyToleranceMHz float64, timeWindowSeconds int, proximityNM float64) *Detector {
	return &Detector{
		db:                    db,
		frequencyToleranceMHz: frequencyToleranceMHz,
		timeWindowSeconds:     timeWindowSeconds,
		proximityNM:           proximityNM,
	}
}

// facilityType maps a controller's facility code to its canonical
// controller-type abbreviation, per the engine's facility table.
var facilityType = map[int]string{
	0: "OBS",
	1: "FSS",
	2: "DEL",
	3: "GND",
	4: "TWR",
	5: "APP",
	6: "CTR",
}

// FacilityType returns the canonical type string for a facility code,
// or "UNK" if the code is not recognized.
func FacilityType(facility int) string {
	if t, ok := facilityType[facility]; ok {
		return t
	}
	return "UNK"
}

// ControllerMatch is one controller's aggregated interaction window
// against the target flight.
type ControllerMatch struct {
	ControllerCallsign string
	Facility           int
	FrequencyMHz       float64
	FirstSeen          time.Time
	LastSeen           time.Time
	TimeMinutes        int
}

// FlightMatch is one flight's aggregated interaction window against
// the target controller.
type FlightMatch struct {
	FlightCallsign string
	FrequencyMHz   float64
	FirstSeen      time.Time
	LastSeen       time.Time
	TimeMinutes    int
}

// rawControllerMatch is one raw (callsign, facility, frequency,
// timestamp) row returned by ControllersForFlight's join, before
// aggregation.
type rawControllerMatch struct {
	callsign  string
	facility  int
	frequency float64
	ts        time.Time
}

// rawFlightMatch is the flight-side mirror of rawControllerMatch,
// returned by FlightsForController's join.
type rawFlightMatch struct {
	callsign  string
	frequency float64
	ts        time.Time
}

// ControllersForFlight finds every controller that interacted with the
// flight (callsign, logonTime) during [sessionStart, sessionEnd],
// ordered by first_seen ascending.
func (d *Detector) ControllersForFlight(ctx context.Context, flightCallsign string, sessionStart, sessionEnd time.Time) ([]ControllerMatch, error) {
	rows, err := d.db.QueryContext(ctx, `
		WITH candidate_controllers AS (
			SELECT callsign, facility
			FROM controllers
			WHERE logon_time <= $3
			  AND last_updated >= $2
			  AND facility != 0
		),
		controller_transceivers AS (
			SELECT t.callsign, t.frequency / 1000000.0 AS frequency_mhz,
			       t.timestamp, t.position_lat, t.position_lon
			FROM transceivers t
			JOIN candidate_controllers cc ON cc.callsign = t.callsign
			WHERE t.entity_type = 'atc'
			  AND t.timestamp BETWEEN $2 AND $3
		),
		flight_transceivers AS (
			SELECT t.frequency / 1000000.0 AS frequency_mhz, t.timestamp,
			       t.position_lat, t.position_lon
			FROM transceivers t
			WHERE t.entity_type = 'flight'
			  AND t.callsign = $1
			  AND t.timestamp BETWEEN $2 AND $3
		),
		frequency_matches AS (
			SELECT ct.callsign AS controller_callsign, ct.frequency_mhz,
			       ft.timestamp AS flight_time
			FROM controller_transceivers ct
			JOIN flight_transceivers ft
			  ON ABS(ct.frequency_mhz - ft.frequency_mhz) <= $4
			 AND ABS(EXTRACT(EPOCH FROM (ct.timestamp - ft.timestamp))) <= $5
			 AND (3440.065 * ACOS(
			       LEAST(1, GREATEST(-1,
			         SIN(RADIANS(ct.position_lat)) * SIN(RADIANS(ft.position_lat)) +
			         COS(RADIANS(ct.position_lat)) * COS(RADIANS(ft.position_lat)) *
			         COS(RADIANS(ct.position_lon - ft.position_lon))
			       ))
			     )) <= $6
		)
		SELECT fm.controller_callsign, cc.facility,
		       fm.frequency_mhz, fm.flight_time
		FROM frequency_matches fm
		JOIN candidate_controllers cc ON cc.callsign = fm.controller_callsign
		ORDER BY fm.flight_time
	`, flightCallsign, sessionStart, sessionEnd,
		d.frequencyToleranceMHz, d.timeWindowSeconds, d.proximityNM)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var raw []rawControllerMatch
	for rows.Next() {
		var m rawControllerMatch
		if err := rows.Scan(&m.callsign, &m.facility, &m.frequency, &m.ts); err != nil {
			return nil, err
		}
		raw = append(raw, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return aggregateControllerMatches(raw), nil
}

func aggregateControllerMatches(raw []rawControllerMatch) []ControllerMatch {
	type group struct {
		facility   int
		freqCounts map[float64]int
		first      time.Time
		last       time.Time
		order      int
	}
	groups := map[string]*group{}
	order := 0
	for _, m := range raw {
		g, ok := groups[m.callsign]
		if !ok {
			g = &group{facility: m.facility, freqCounts: map[float64]int{}, first: m.ts, last: m.ts, order: order}
			order++
			groups[m.callsign] = g
		}
		g.freqCounts[roundMHz(m.frequency)]++
		if m.ts.Before(g.first) {
			g.first = m.ts
		}
		if m.ts.After(g.last) {
			g.last = m.ts
		}
	}

	out := make([]ControllerMatch, 0, len(groups))
	for callsign, g := range groups {
		out = append(out, ControllerMatch{
			ControllerCallsign: callsign,
			Facility:           g.facility,
			FrequencyMHz:       modeFrequency(g.freqCounts),
			FirstSeen:          g.first,
			LastSeen:           g.last,
			TimeMinutes:        int(g.last.Sub(g.first).Minutes()),
		})
	}
	sortByFirstSeen(out)
	return out
}

func roundMHz(mhz float64) float64 {
	return float64(int(mhz*1000+0.5)) / 1000
}

func modeFrequency(counts map[float64]int) float64 {
	var best float64
	bestCount := -1
	for f, c := range counts {
		if c > bestCount || (c == bestCount && f < best) {
			best = f
			bestCount = c
		}
	}
	return best
}

func sortByFirstSeen(matches []ControllerMatch) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].FirstSeen.Before(matches[j-1].FirstSeen); j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}
