package store

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/t288matt/vatpac-stats-sub002/internal/upstream"
)

const defaultBatchSize = 1000

// FlightRepository persists flight (pilot session) records.
type FlightRepository struct {
	db        *DB
	batchSize int
}

// NewFlightRepository builds a FlightRepository over db.
func NewFlightRepository(db *DB) *FlightRepository {
	return &FlightRepository{db: db, batchSize: defaultBatchSize}
}

// UpsertBatch writes pilots keyed on (callsign, logon_time). A failure
// upserting one record is logged and counted; the rest of the batch
// continues.
func (r *FlightRepository) UpsertBatch(ctx context.Context, pilots []upstream.PilotRecord, now time.Time) (written, failed int) {
	for start := 0; start < len(pilots); start += r.batchSize {
		end := start + r.batchSize
		if end > len(pilots) {
			end = len(pilots)
		}
		for _, p := range pilots[start:end] {
			if err := r.upsert(ctx, p, now); err != nil {
				log.Printf("store: flight upsert failed for %s: %v", p.Callsign, err)
				failed++
				continue
			}
			written++
		}
	}
	return written, failed
}

func (r *FlightRepository) upsert(ctx context.Context, p upstream.PilotRecord, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO flights (
			callsign, cid, name, aircraft_type, departure, arrival, route,
			cruise_tas, altitude, heading, groundspeed, transponder, deptime,
			latitude, longitude, logon_time, last_updated, last_updated_api,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19
		)
		ON CONFLICT (callsign, logon_time) DO UPDATE SET
			name = EXCLUDED.name,
			aircraft_type = EXCLUDED.aircraft_type,
			departure = EXCLUDED.departure,
			arrival = EXCLUDED.arrival,
			route = EXCLUDED.route,
			cruise_tas = EXCLUDED.cruise_tas,
			altitude = EXCLUDED.altitude,
			heading = EXCLUDED.heading,
			groundspeed = EXCLUDED.groundspeed,
			transponder = EXCLUDED.transponder,
			deptime = EXCLUDED.deptime,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			last_updated = EXCLUDED.last_updated,
			last_updated_api = EXCLUDED.last_updated_api,
			update_count = flights.update_count + 1,
			updated_at = EXCLUDED.updated_at
	`,
		p.Callsign, p.CID, p.Name, p.AircraftType, p.Departure, p.Arrival, p.Route,
		p.CruiseAltitude, p.Altitude, p.Heading, p.GroundSpeed, p.Transponder, p.PlannedDepTime,
		p.Latitude, p.Longitude, p.LogonTime, now, p.LastUpdatedAPI, now,
	)
	return err
}

// CompletedFlight identifies one flight ready for the completion pass.
type CompletedFlight struct {
	Callsign      string
	LogonTime     time.Time
	LastUpdated   time.Time
	CID           int
	Name          string
	AircraftType  string
	Departure     string
	Arrival       string
	Route         string
	TotalUpdates  int
}

// CompletedFlights returns live flights whose last_updated is older
// than threshold and that have no existing flight_summaries row.
func (r *FlightRepository) CompletedFlights(ctx context.Context, olderThan time.Time) ([]CompletedFlight, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT f.callsign, f.logon_time, f.last_updated, f.cid, f.name,
		       f.aircraft_type, f.departure, f.arrival, f.route, f.update_count
		FROM flights f
		WHERE f.last_updated < $1
		  AND NOT EXISTS (
		        SELECT 1 FROM flight_summaries s
		        WHERE s.callsign = f.callsign AND s.logon_time = f.logon_time
		  )
		  AND NOT EXISTS (
		        SELECT 1 FROM flights_archive a
		        WHERE a.callsign = f.callsign AND a.logon_time = f.logon_time
		  )
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompletedFlight
	for rows.Next() {
		var c CompletedFlight
		if err := rows.Scan(&c.Callsign, &c.LogonTime, &c.LastUpdated, &c.CID, &c.Name,
			&c.AircraftType, &c.Departure, &c.Arrival, &c.Route, &c.TotalUpdates); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Archive copies the live row for (callsign, logonTime) into
// flights_archive, but only if its last_updated has not advanced past
// staleSince since the caller read it — the recheck that protects
// against a concurrent ingest observation landing mid-pass. Returns
// false (no error) when the recheck fails, signaling the caller to
// skip this key for the current pass.
func (r *FlightRepository) Archive(ctx context.Context, tx *sql.Tx, callsign string, logonTime, staleSince time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO flights_archive (
			id, callsign, cid, name, server, aircraft_type, departure, arrival,
			route, cruise_tas, altitude, heading, groundspeed, transponder,
			deptime, latitude, longitude, logon_time, last_updated,
			last_updated_api, update_count, created_at, updated_at, archived_at
		)
		SELECT id, callsign, cid, name, server, aircraft_type, departure, arrival,
		       route, cruise_tas, altitude, heading, groundspeed, transponder,
		       deptime, latitude, longitude, logon_time, last_updated,
		       last_updated_api, update_count, created_at, updated_at, now()
		FROM flights
		WHERE callsign = $1 AND logon_time = $2 AND last_updated <= $3
		ON CONFLICT DO NOTHING
	`, callsign, logonTime, staleSince)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BeginTx starts a transaction for one flight's summarize-and-archive
// step.
func (r *FlightRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

// DeleteRetained removes live flight rows that have already been
// archived (regardless of whether a summary was created — an
// incomplete flight plan still archives and eventually retires) and
// whose last_updated has passed the retention cutoff. This is
// deliberately separate from Archive: a row can sit archived-but-
// still-live for the entire retention window.
func (r *FlightRepository) DeleteRetained(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM flights f
		WHERE f.last_updated < $1
		  AND EXISTS (
		        SELECT 1 FROM flights_archive a
		        WHERE a.callsign = f.callsign AND a.logon_time = f.logon_time
		  )
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
