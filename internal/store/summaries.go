package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ControllerInteraction is one controller's matched interaction window
// against a single flight, as produced by the interaction detector and
// stored in flight_summaries.controller_callsigns.
type ControllerInteraction struct {
	ControllerCallsign string    `json:"controller_callsign"`
	Type               string    `json:"type"`
	FrequencyMHz       float64   `json:"frequency_mhz"`
	FirstSeen          time.Time `json:"first_seen"`
	LastSeen           time.Time `json:"last_seen"`
	TimeMinutes        int       `json:"time_minutes"`
}

// AircraftInteraction is one flight's matched interaction window
// against a single controller, stored in
// controller_summaries.aircraft_details.
type AircraftInteraction struct {
	FlightCallsign string    `json:"callsign"`
	FrequencyMHz   float64   `json:"frequency_mhz"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	TimeMinutes    int       `json:"time_minutes"`
}

// FlightSummary is one completed flight's durable session record.
type FlightSummary struct {
	Callsign                  string
	LogonTime                 time.Time
	AircraftType              string
	Departure                 string
	Arrival                   string
	Route                     string
	CompletionTime            time.Time
	SessionDurationMinutes    int
	TotalUpdates              int
	ControllerCallsigns       []ControllerInteraction
	ControllerTimePercentage  float64
}

// InsertFlightSummary writes s within tx, ignoring a conflicting key
// (idempotent re-runs never duplicate a summary).
func InsertFlightSummary(tx *sql.Tx, s FlightSummary) error {
	payload, err := json.Marshal(s.ControllerCallsigns)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO flight_summaries (
			callsign, logon_time, aircraft_type, departure, arrival, route,
			completion_time, session_duration_minutes, total_updates,
			controller_callsigns, controller_time_percentage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (callsign, logon_time) DO NOTHING
	`,
		s.Callsign, s.LogonTime, s.AircraftType, s.Departure, s.Arrival, s.Route,
		s.CompletionTime, s.SessionDurationMinutes, s.TotalUpdates,
		payload, s.ControllerTimePercentage,
	)
	return err
}

// ControllerSummary is one completed controller session's durable record.
type ControllerSummary struct {
	Callsign               string
	SessionStartTime        time.Time
	SessionEndTime          time.Time
	SessionDurationMinutes  int
	CID                     int
	Name                    string
	Rating                  int
	Facility                int
	Server                  string
	TotalAircraftHandled    int
	PeakAircraftCount       int
	FrequenciesUsed         []float64
	AircraftDetails         []AircraftInteraction
}

// InsertControllerSummary writes s within tx, ignoring a conflicting key.
func InsertControllerSummary(tx *sql.Tx, s ControllerSummary) error {
	details, err := json.Marshal(s.AircraftDetails)
	if err != nil {
		return err
	}
	freqs, err := json.Marshal(s.FrequenciesUsed)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO controller_summaries (
			callsign, session_start_time, session_end_time, session_duration_minutes,
			cid, name, rating, facility, server, total_aircraft_handled,
			peak_aircraft_count, frequencies_used, aircraft_details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (callsign, session_start_time) DO NOTHING
	`,
		s.Callsign, s.SessionStartTime, s.SessionEndTime, s.SessionDurationMinutes,
		s.CID, s.Name, s.Rating, s.Facility, s.Server, s.TotalAircraftHandled,
		s.PeakAircraftCount, freqs, details,
	)
	return err
}
