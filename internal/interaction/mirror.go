package interaction

import (
	"context"
	"time"
)

// FlightsForController finds every flight that interacted with the
// controller (callsign, sessionStart) during [sessionStart, sessionEnd],
// the mirror of ControllersForFlight. Output is ordered by first_seen
// ascending.
func (d *Detector) FlightsForController(ctx context.Context, controllerCallsign string, sessionStart, sessionEnd time.Time) ([]FlightMatch, error) {
	rows, err := d.db.QueryContext(ctx, `
		WITH candidate_flights AS (
			SELECT DISTINCT callsign
			FROM flights
			WHERE logon_time <= $3
			  AND last_updated >= $2
		),
		controller_transceivers AS (
			SELECT t.frequency / 1000000.0 AS frequency_mhz, t.timestamp,
			       t.position_lat, t.position_lon
			FROM transceivers t
			WHERE t.entity_type = 'atc'
			  AND t.callsign = $1
			  AND t.timestamp BETWEEN $2 AND $3
		),
		flight_transceivers AS (
			SELECT t.callsign, t.frequency / 1000000.0 AS frequency_mhz,
			       t.timestamp, t.position_lat, t.position_lon
			FROM transceivers t
			JOIN candidate_flights cf ON cf.callsign = t.callsign
			WHERE t.entity_type = 'flight'
			  AND t.timestamp BETWEEN $2 AND $3
		),
		frequency_matches AS (
			SELECT ft.callsign AS flight_callsign, ct.frequency_mhz,
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
		SELECT flight_callsign, frequency_mhz, flight_time
		FROM frequency_matches
		ORDER BY flight_time
	`, controllerCallsign, sessionStart, sessionEnd,
		d.frequencyToleranceMHz, d.timeWindowSeconds, d.proximityNM)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var raw []rawFlightMatch
	for rows.Next() {
		var m rawFlightMatch
		if err := rows.Scan(&m.callsign, &m.frequency, &m.ts); err != nil {
			return nil, err
		}
		raw = append(raw, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return aggregateFlightMatches(raw), nil
}

func aggregateFlightMatches(raw []rawFlightMatch) []FlightMatch {
	type group struct {
		freqCounts map[float64]int
		first      time.Time
		last       time.Time
	}
	groups := map[string]*group{}
	for _, m := range raw {
		g, ok := groups[m.callsign]
		if !ok {
			g = &group{freqCounts: map[float64]int{}, first: m.ts, last: m.ts}
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

	out := make([]FlightMatch, 0, len(groups))
	for callsign, g := range groups {
		out = append(out, FlightMatch{
			FlightCallsign: callsign,
			FrequencyMHz:   modeFrequency(g.freqCounts),
			FirstSeen:      g.first,
			LastSeen:       g.last,
			TimeMinutes:    int(g.last.Sub(g.first).Minutes()),
		})
	}
	sortFlightsByFirstSeen(out)
	return out
}

func sortFlightsByFirstSeen(matches []FlightMatch) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].FirstSeen.Before(matches[j-1].FirstSeen); j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}
