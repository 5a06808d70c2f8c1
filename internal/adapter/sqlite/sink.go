// Package sqlite persists outcomes to a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	row       INTEGER PRIMARY KEY,
	fips      TEXT,
	latitude  TEXT NOT NULL,
	longitude TEXT NOT NULL,
	status    TEXT NOT NULL,
	response  TEXT
);`

// Sink writes outcomes to an "outcomes" table. Each dest is its own database
// file, so checkpoints and the final output never share a table.
// It implements domain.Sink.
type Sink struct {
	includeResponse bool
}

// NewSink creates a SQLite sink. includeResponse stores the raw provider body.
func NewSink(includeResponse bool) *Sink {
	return &Sink{includeResponse: includeResponse}
}

// Write replaces the contents of the outcomes table in dest within one transaction.
func (s *Sink) Write(ctx context.Context, dest string, outcomes []domain.Outcome) error {
	db, err := sql.Open("sqlite", dest)
	if err != nil {
		return fmt.Errorf("sqlite: open %s: %w", dest, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: prepare database: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM outcomes"); err != nil {
		return fmt.Errorf("sqlite: clear outcomes: %w", err)
	}

	ins, err := tx.PrepareContext(ctx,
		"INSERT INTO outcomes (row, fips, latitude, longitude, status, response) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer ins.Close()

	for i := range outcomes {
		o := &outcomes[i]
		var fips, response sql.NullString
		if o.FIPS != nil {
			fips = sql.NullString{String: *o.FIPS, Valid: true}
		}
		if s.includeResponse && len(o.RawResponse) > 0 {
			response = sql.NullString{String: string(o.RawResponse), Valid: true}
		}
		if _, err := ins.ExecContext(ctx, i+1, fips, o.Latitude, o.Longitude, string(o.Status), response); err != nil {
			return fmt.Errorf("sqlite: insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}
