package store

import (
	"context"
	"log"
	"time"

	"github.com/t288matt/vatpac-stats-sub002/internal/upstream"
)

// TransceiverRepository appends transceiver observations. Transceiver
// rows are never updated in place — each poll inserts a new timestamped
// record per (entity, frequency).
type TransceiverRepository struct {
	db        *DB
	batchSize int
}

// NewTransceiverRepository builds a TransceiverRepository over db.
func NewTransceiverRepository(db *DB) *TransceiverRepository {
	return &TransceiverRepository{db: db, batchSize: defaultBatchSize}
}

// Observation is one transceiver record tagged with its owning
// entity's kind ("flight" or "atc"), ready for insertion.
type Observation struct {
	Callsign      string
	EntityType    string
	Transceiver   upstream.Transceiver
	Timestamp     time.Time
}

// InsertBatch appends observations. A failure inserting one record is
// logged and counted; the rest of the batch continues.
func (r *TransceiverRepository) InsertBatch(ctx context.Context, obs []Observation) (written, failed int) {
	for start := 0; start < len(obs); start += r.batchSize {
		end := start + r.batchSize
		if end > len(obs) {
			end = len(obs)
		}
		for _, o := range obs[start:end] {
			if err := r.insert(ctx, o); err != nil {
				log.Printf("store: transceiver insert failed for %s: %v", o.Callsign, err)
				failed++
				continue
			}
			written++
		}
	}
	return written, failed
}

func (r *TransceiverRepository) insert(ctx context.Context, o Observation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transceivers (
			callsign, transceiver_id, frequency, position_lat, position_lon,
			height_msl, height_agl, entity_type, timestamp, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`,
		o.Callsign, o.Transceiver.ID, o.Transceiver.FrequencyHz,
		o.Transceiver.LatDeg, o.Transceiver.LonDeg,
		o.Transceiver.HeightMSLM, o.Transceiver.HeightAGLM,
		o.EntityType, o.Timestamp,
	)
	return err
}
