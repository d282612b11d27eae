// Package history persists one record per server launch attempt, so a failed
// or slow startup can be diagnosed after the window has come and gone.
package history

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Launch outcomes.
const (
	// OutcomeLaunching is the initial state of a recorded launch.
	OutcomeLaunching = "launching"
	// OutcomeRunning means the bootstrap sequence completed and the window
	// was redirected. The server may still have come up late; the Ready
	// flag records what the probe actually observed.
	OutcomeRunning = "running"
	// OutcomeFailed means a terminal launch error occurred.
	OutcomeFailed = "failed"
)

// LaunchRecord is one launch attempt as stored in the database.
type LaunchRecord struct {
	ID            string `db:"id"`
	StartedAt     int64  `db:"started_at"`
	EntryPoint    string `db:"entry_point"`
	PID           int    `db:"pid"`
	ProbeAttempts int    `db:"probe_attempts"`
	Ready         bool   `db:"ready"`
	Outcome       string `db:"outcome"`
	Detail        string `db:"detail"`
}

// Store records launch attempts in a SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the launch history database at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := dbInit(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// dbInit initializes the launches table.
func dbInit(db *sqlx.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS launches (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		entry_point TEXT NOT NULL,
		pid INTEGER NOT NULL DEFAULT 0,
		probe_attempts INTEGER NOT NULL DEFAULT 0,
		ready INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT ''
	)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_launches_started_at ON launches(started_at)`)
	return err
}

// RecordLaunch inserts a new launch attempt in the launching state.
func (s *Store) RecordLaunch(launchID, entryPoint string) error {
	_, err := s.db.Exec(`
		INSERT INTO launches (id, started_at, entry_point, outcome)
		VALUES ($1, $2, $3, $4)`,
		launchID, time.Now().UTC().UnixNano(), entryPoint, OutcomeLaunching,
	)
	return err
}

// RecordSpawn stores the PID of the spawned server process.
func (s *Store) RecordSpawn(launchID string, pid int) error {
	return s.update(launchID, "UPDATE launches SET pid = $1 WHERE id = $2", pid, launchID)
}

// RecordProbe stores the readiness probe outcome for a launch.
func (s *Store) RecordProbe(launchID string, attempts int, ready bool) error {
	return s.update(launchID, "UPDATE launches SET probe_attempts = $1, ready = $2 WHERE id = $3",
		attempts, ready, launchID)
}

// RecordOutcome stores the final outcome of a launch attempt.
func (s *Store) RecordOutcome(launchID, outcome, detail string) error {
	return s.update(launchID, "UPDATE launches SET outcome = $1, detail = $2 WHERE id = $3",
		outcome, detail, launchID)
}

func (s *Store) update(launchID, query string, args ...interface{}) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no launch record with ID %s", launchID)
	}
	return nil
}

// RecentLaunches returns the most recent launch records, newest first.
func (s *Store) RecentLaunches(limit int) ([]LaunchRecord, error) {
	var records []LaunchRecord
	err := s.db.Select(&records,
		"SELECT * FROM launches ORDER BY started_at DESC, rowid DESC LIMIT $1", limit)
	return records, err
}

// GetLaunch returns a single launch record by ID.
func (s *Store) GetLaunch(launchID string) (*LaunchRecord, error) {
	var record LaunchRecord
	if err := s.db.Get(&record, "SELECT * FROM launches WHERE id = $1", launchID); err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteOldLaunches deletes launch records older than the given duration.
func (s *Store) DeleteOldLaunches(olderThan time.Duration) (int64, error) {
	threshold := time.Now().UTC().Add(-olderThan).UnixNano()
	result, err := s.db.Exec("DELETE FROM launches WHERE started_at < $1", threshold)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
