package tracker

import (
	"database/sql"
	"fmt"

	"github.com/samuelfneumann/vtrace/vtrace"
)

const isStatsSchema = `
CREATE TABLE IF NOT EXISTS is_stats (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id  TEXT NOT NULL,
    step    INTEGER NOT NULL,
    name    TEXT NOT NULL,
    value   REAL NOT NULL
);
`

const isStatsIndex = `
CREATE INDEX IF NOT EXISTS idx_is_stats_run
ON is_stats(run_id, step);
`

// SQLite tracks the importance sampling diagnostics of a run in a
// SQLite database. Each call to Log inserts one row per diagnostic
// scalar, keyed by the run ID and the index of the call.
//
// Log cannot report errors, so the first error encountered is kept and
// returned by Save. Rows are written immediately; Save performs no
// further writes.
type SQLite struct {
	db    *sql.DB
	runID string
	step  int
	err   error
}

// NewSQLite initializes the is_stats table and returns a new SQLite
// Tracker recording diagnostics under runID
func NewSQLite(db *sql.DB, runID string) (*SQLite, error) {
	if _, err := db.Exec(isStatsSchema); err != nil {
		return nil, fmt.Errorf("newSQLite: %v", err)
	}
	if _, err := db.Exec(isStatsIndex); err != nil {
		return nil, fmt.Errorf("newSQLite: %v", err)
	}
	return &SQLite{db: db, runID: runID}, nil
}

// Log inserts the diagnostics of a single V-trace computation
func (s *SQLite) Log(d vtrace.Diagnostics) {
	if s.err != nil {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.err = fmt.Errorf("log: %v", err)
		return
	}
	for _, scalar := range d.Scalars() {
		_, err := tx.Exec(`
			INSERT INTO is_stats (run_id, step, name, value)
			VALUES (?, ?, ?, ?)`,
			s.runID, s.step, scalar.Name, float64(scalar.Value),
		)
		if err != nil {
			tx.Rollback()
			s.err = fmt.Errorf("log: step %v: %v", s.step, err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		s.err = fmt.Errorf("log: step %v: %v", s.step, err)
		return
	}
	s.step++
}

// Save returns the first error encountered while logging, if any
func (s *SQLite) Save() error {
	return s.err
}

// Load returns the diagnostics recorded for runID, ordered by step
func Load(db *sql.DB, runID string) ([]vtrace.Diagnostics, error) {
	rows, err := db.Query(`
		SELECT step, name, value FROM is_stats
		WHERE run_id = ?
		ORDER BY step, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	defer rows.Close()

	var data []vtrace.Diagnostics
	for rows.Next() {
		var step int
		var name string
		var value float64
		if err := rows.Scan(&step, &name, &value); err != nil {
			return nil, fmt.Errorf("load: %v", err)
		}
		for len(data) <= step {
			data = append(data, vtrace.Diagnostics{})
		}

		d := &data[step]
		switch name {
		case vtrace.MaxRhoName:
			d.MaxRho = float32(value)
		case vtrace.MaxClippedRhoName:
			d.MaxClippedRho = float32(value)
		case vtrace.MinRhoName:
			d.MinRho = float32(value)
		case vtrace.MeanClippedRhoName:
			d.MeanClippedRho = float32(value)
		case vtrace.MeanCName:
			d.MeanC = float32(value)
		default:
			return nil, fmt.Errorf("load: unknown diagnostic %v", name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	return data, nil
}
