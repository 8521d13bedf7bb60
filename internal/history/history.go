// Package history keeps a SQLite record of each scrape so consecutive runs
// can be compared.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sud-bedwatch/bedwatch/internal/agency"
)

// Run describes one completed scrape
type Run struct {
	ID           string
	StartedAt    time.Time
	URL          string
	Agencies     int
	AgenciesFile string
}

// Store handles database operations
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at_unix INTEGER NOT NULL,
			url TEXT NOT NULL,
			agencies INTEGER NOT NULL,
			agencies_file TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at_unix)`,
		`CREATE TABLE IF NOT EXISTS agency_snapshots (
			run_id TEXT NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			agency_key TEXT NOT NULL,
			name TEXT NOT NULL,
			address TEXT NOT NULL,
			available_beds TEXT NOT NULL,
			intake_open_appointments TEXT NOT NULL,
			last_updated TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record stores run and its agency snapshot in one transaction
func (s *Store) Record(ctx context.Context, run Run, agencies []agency.Record) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at_unix, url, agencies, agencies_file) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Unix(), run.URL, run.Agencies, run.AgenciesFile)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO agency_snapshots
		(run_id, position, agency_key, name, address, available_beds, intake_open_appointments, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i := range agencies {
		a := &agencies[i]
		if _, err := stmt.ExecContext(ctx, run.ID, i, a.Key(), a.Name, a.Address,
			a.AvailableBeds, a.IntakeOpenAppointments, a.LastUpdated); err != nil {
			return fmt.Errorf("insert snapshot %q: %w", a.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Latest returns the most recent run and its snapshot. Run is nil when
// nothing has been recorded yet.
func (s *Store) Latest(ctx context.Context) (*Run, []agency.Record, error) {
	var run Run
	var startedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at_unix, url, agencies, agencies_file FROM runs
		 ORDER BY started_at_unix DESC, rowid DESC LIMIT 1`).
		Scan(&run.ID, &startedAt, &run.URL, &run.Agencies, &run.AgenciesFile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query latest run: %w", err)
	}
	run.StartedAt = time.Unix(startedAt, 0).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, address, available_beds, intake_open_appointments, last_updated
		 FROM agency_snapshots WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("query snapshot %s: %w", run.ID, err)
	}
	defer rows.Close()

	agencies := make([]agency.Record, 0, run.Agencies)
	for rows.Next() {
		var a agency.Record
		if err := rows.Scan(&a.Name, &a.Address, &a.AvailableBeds, &a.IntakeOpenAppointments, &a.LastUpdated); err != nil {
			return nil, nil, fmt.Errorf("scan snapshot: %w", err)
		}
		agencies = append(agencies, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}

	return &run, agencies, nil
}

// Runs returns up to limit runs, newest first
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at_unix, url, agencies, agencies_file FROM runs
		 ORDER BY started_at_unix DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt int64
		if err := rows.Scan(&r.ID, &startedAt, &r.URL, &r.Agencies, &r.AgenciesFile); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(startedAt, 0).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
