package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrDisabled is returned when the recorder is used without being opened.
var ErrDisabled = errors.New("history: recorder disabled")

// Record is one persisted state transition.
type Record struct {
	ID       int64     `json:"id"`
	EntityID string    `json:"entity_id"`
	OldState string    `json:"old_state"`
	NewState string    `json:"new_state"`
	At       time.Time `json:"at"`
}

// Recorder persists entity state transitions to a local sqlite file and
// serves them newest-first to the local API. The table is bounded:
// rows past maxRows are pruned oldest-first on insert.
type Recorder struct {
	db      *sql.DB
	maxRows int
}

// Open creates or opens the history database at path.
func Open(path string, maxRows int) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS state_changes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id  TEXT NOT NULL,
			old_state  TEXT NOT NULL,
			new_state  TEXT NOT NULL,
			at         TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_state_changes_entity
			ON state_changes(entity_id, at DESC);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	if maxRows <= 0 {
		maxRows = 10000
	}
	return &Recorder{db: db, maxRows: maxRows}, nil
}

// Record persists one transition and prunes the table if it has grown
// past the row bound.
func (r *Recorder) Record(entityID, oldState, newState string, at time.Time) error {
	if r == nil || r.db == nil {
		return ErrDisabled
	}
	_, err := r.db.Exec(
		`INSERT INTO state_changes (entity_id, old_state, new_state, at) VALUES (?, ?, ?, ?)`,
		entityID, oldState, newState, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording state change: %w", err)
	}

	_, err = r.db.Exec(
		`DELETE FROM state_changes WHERE id <= (
			SELECT id FROM state_changes ORDER BY id DESC LIMIT 1 OFFSET ?
		)`,
		r.maxRows,
	)
	if err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}
	return nil
}

// Recent returns up to limit transitions for an entity, newest first.
func (r *Recorder) Recent(entityID string, limit int) ([]Record, error) {
	if r == nil || r.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, entity_id, old_state, new_state, at
		 FROM state_changes WHERE entity_id = ?
		 ORDER BY at DESC, id DESC LIMIT ?`,
		entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EntityID, &rec.OldState, &rec.NewState, &rec.At); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// HealthCheck verifies the database is reachable.
func (r *Recorder) HealthCheck() error {
	if r == nil || r.db == nil {
		return ErrDisabled
	}
	return r.db.Ping()
}

// Close closes the database.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
