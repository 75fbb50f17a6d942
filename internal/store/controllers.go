package store

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/t288matt/vatpac-stats-sub002/internal/upstream"
)

// ControllerRepository persists controller session records.
type ControllerRepository struct {
	db        *DB
	batchSize int
}

// NewControllerRepository builds a ControllerRepository over db.
func NewControllerRepository(db *DB) *ControllerRepository {
	return &ControllerRepository{db: db, batchSize: defaultBatchSize}
}

// UpsertBatch writes controllers keyed on (callsign, logon_time).
func (r *ControllerRepository) UpsertBatch(ctx context.Context, ctrls []upstream.ControllerRecord, now time.Time) (written, failed int) {
	for start := 0; start < len(ctrls); start += r.batchSize {
		end := start + r.batchSize
		if end > len(ctrls) {
			end = len(ctrls)
		}
		for _, c := range ctrls[start:end] {
			if err := r.upsert(ctx, c, now); err != nil {
				log.Printf("store: controller upsert failed for %s: %v", c.Callsign, err)
				failed++
				continue
			}
			written++
		}
	}
	return written, failed
}

func (r *ControllerRepository) upsert(ctx context.Context, c upstream.ControllerRecord, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO controllers (
			callsign, cid, name, rating, facility, frequency, server,
			logon_time, last_updated, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (callsign, logon_time) DO UPDATE SET
			name = EXCLUDED.name,
			rating = EXCLUDED.rating,
			facility = EXCLUDED.facility,
			frequency = EXCLUDED.frequency,
			server = EXCLUDED.server,
			last_updated = EXCLUDED.last_updated,
			updated_at = EXCLUDED.updated_at
	`,
		c.Callsign, c.CID, c.Name, c.Rating, c.Facility, c.FrequencyMHz, c.Server,
		c.LogonTime, now, now,
	)
	return err
}

// CompletedController identifies one controller session ready for the
// completion pass.
type CompletedController struct {
	Callsign    string
	LogonTime   time.Time
	LastUpdated time.Time
	CID         int
	Name        string
	Rating      int
	Facility    int
	Server      string
}

// CompletedControllers returns live controller sessions whose
// last_updated is older than threshold and that have no existing
// controller_summaries row.
func (r *ControllerRepository) CompletedControllers(ctx context.Context, olderThan time.Time) ([]CompletedController, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.callsign, c.logon_time, c.last_updated, c.cid, c.name, c.rating, c.facility, c.server
		FROM controllers c
		WHERE c.last_updated < $1
		  AND NOT EXISTS (
		        SELECT 1 FROM controller_summaries s
		        WHERE s.callsign = c.callsign AND s.session_start_time = c.logon_time
		  )
		  AND NOT EXISTS (
		        SELECT 1 FROM controllers_archive a
		        WHERE a.callsign = c.callsign AND a.logon_time = c.logon_time
		  )
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompletedController
	for rows.Next() {
		var c CompletedController
		if err := rows.Scan(&c.Callsign, &c.LogonTime, &c.LastUpdated, &c.CID, &c.Name, &c.Rating, &c.Facility, &c.Server); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// BeginTx starts a transaction for one controller's summarize-and-archive step.
func (r *ControllerRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

// Archive copies the live row for (callsign, logonTime) into
// controllers_archive, subject to the same staleSince recheck as
// FlightRepository.Archive.
func (r *ControllerRepository) Archive(ctx context.Context, tx *sql.Tx, callsign string, logonTime, staleSince time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO controllers_archive (
			id, callsign, cid, name, rating, facility, frequency, server,
			visual_range, text_atis, logon_time, last_updated, created_at,
			updated_at, archived_at
		)
		SELECT id, callsign, cid, name, rating, facility, frequency, server,
		       visual_range, text_atis, logon_time, last_updated, created_at,
		       updated_at, now()
		FROM controllers
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

// DeleteRetained removes live controller rows already archived
// (regardless of summary status) and past the retention cutoff.
func (r *ControllerRepository) DeleteRetained(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM controllers c
		WHERE c.last_updated < $1
		  AND EXISTS (
		        SELECT 1 FROM controllers_archive a
		        WHERE a.callsign = c.callsign AND a.logon_time = c.logon_time
		  )
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
