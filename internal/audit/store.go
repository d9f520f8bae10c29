package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fabworks/cell-core/internal/infrastructure/database"
)

// Category classifies audit events.
type Category string

const (
	CategoryJob      Category = "job"
	CategoryMotion   Category = "motion"
	CategoryActuator Category = "actuator"
	CategoryCamera   Category = "camera"
)

// Event is one audited operation on the cell.
type Event struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Category Category  `json:"category"`
	Subject  string    `json:"subject"` // machine name, camera key, job id
	Action   string    `json:"action"`  // what was done
	Detail   string    `json:"detail"`  // free-form outcome or parameters
}

// Store is the append-only audit trail backed by SQLite.
//
// Recording is best effort from the caller's point of view: a failed
// insert is an error for the caller to log, never a reason to fail the
// operation being audited.
type Store struct {
	db *database.DB
}

// NewStore creates an audit store over the given database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Init creates the events table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS events (
    id       TEXT PRIMARY KEY,
    ts       INTEGER NOT NULL,
    category TEXT NOT NULL,
    subject  TEXT NOT NULL,
    action   TEXT NOT NULL,
    detail   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_category ON events(category, ts);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating audit schema: %w", err)
	}
	return nil
}

// Record appends one event. A zero Time is stamped now; the id is always
// assigned by the store.
func (s *Store) Record(ctx context.Context, e Event) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.ID = uuid.NewString()

	const insert = `INSERT INTO events (id, ts, category, subject, action, detail) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, insert,
		e.ID, e.Time.UnixMilli(), string(e.Category), e.Subject, e.Action, e.Detail,
	); err != nil {
		return fmt.Errorf("recording audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `SELECT id, ts, category, subject, action, detail FROM events ORDER BY ts DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		var category string
		if err := rows.Scan(&e.ID, &ts, &category, &e.Subject, &e.Action, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		e.Time = time.UnixMilli(ts)
		e.Category = Category(category)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit events: %w", err)
	}
	return events, nil
}
