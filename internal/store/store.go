// Package store persists the live, archived, and summarized views of
// flights, controllers, and transceivers in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/t288matt/vatpac-stats-sub002/internal/config"
	"github.com/t288matt/vatpac-stats-sub002/internal/xerrors"
)

//go:embed schema.sql
var schemaSQL embed.FS

// requiredTables lists every table and the columns it must carry for
// the engine to operate; checked once at startup.
var requiredTables = map[string][]string{
	"controllers": {
		"id", "callsign", "cid", "name", "rating", "facility", "frequency",
		"server", "logon_time", "last_updated", "created_at", "updated_at",
	},
	"flights": {
		"id", "callsign", "cid", "name", "aircraft_type", "departure",
		"arrival", "route", "altitude", "heading", "groundspeed",
		"transponder", "latitude", "longitude", "logon_time",
		"last_updated", "last_updated_api", "created_at", "updated_at",
	},
	"transceivers": {
		"id", "callsign", "transceiver_id", "frequency", "position_lat",
		"position_lon", "height_msl", "height_agl", "entity_type",
		"entity_id", "timestamp", "updated_at",
	},
	"flights_archive":      {"id", "callsign", "logon_time", "last_updated", "archived_at"},
	"controllers_archive":  {"id", "callsign", "logon_time", "last_updated", "archived_at"},
	"flight_summaries":     {"id", "callsign", "logon_time", "controller_callsigns", "created_at"},
	"controller_summaries": {"id", "callsign", "session_start_time", "aircraft_details", "created_at"},
}

// DB wraps a connection pool with the engine's schema-validation and
// transaction helpers.
type DB struct {
	*sql.DB
	cfg config.DatabaseConfig
}

// Connect opens the connection pool described by cfg and verifies
// reachability with a bounded ping.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, &xerrors.DatabaseFatal{Message: "failed to open database", Cause: err}
	}

	sqlDB.SetMaxOpenConns(cfg.PoolSize + cfg.MaxOverflow)
	sqlDB.SetMaxIdleConns(cfg.PoolSize)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.PoolRecycleSeconds) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ConnectTimeoutSeconds)*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, &xerrors.DatabaseFatal{Message: "failed to ping database", Cause: err}
	}

	return &DB{DB: sqlDB, cfg: cfg}, nil
}

// ValidateSchema inspects every required table's columns. On mismatch
// it attempts the bundled initialization script once; if the mismatch
// persists afterward, it returns a DatabaseFatal so the caller refuses
// to serve writes.
func (db *DB) ValidateSchema(ctx context.Context) error {
	missing, err := db.missingTablesOrColumns(ctx)
	if err != nil {
		return &xerrors.DatabaseFatal{Message: "failed to inspect schema", Cause: err}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := db.initSchema(ctx); err != nil {
		return &xerrors.DatabaseFatal{Message: "failed to apply bundled schema init script", Cause: err}
	}

	missing, err = db.missingTablesOrColumns(ctx)
	if err != nil {
		return &xerrors.DatabaseFatal{Message: "failed to re-inspect schema after init", Cause: err}
	}
	if len(missing) > 0 {
		return &xerrors.DatabaseFatal{Message: fmt.Sprintf("schema still invalid after init: %v", missing)}
	}
	return nil
}

func (db *DB) missingTablesOrColumns(ctx context.Context) ([]string, error) {
	var problems []string

	for table, cols := range requiredTables {
		existing := map[string]bool{}
		rows, err := db.QueryContext(ctx,
			`SELECT column_name FROM information_schema.columns WHERE table_name = $1`, table)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var col string
			if err := rows.Scan(&col); err != nil {
				rows.Close()
				return nil, err
			}
			existing[col] = true
		}
		rows.Close()

		if len(existing) == 0 {
			problems = append(problems, fmt.Sprintf("table %q missing", table))
			continue
		}
		for _, c := range cols {
			if !existing[c] {
				problems = append(problems, fmt.Sprintf("table %q missing column %q", table, c))
			}
		}
	}

	return problems, nil
}

func (db *DB) initSchema(ctx context.Context) error {
	b, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(b))
	return err
}
