// SPDX-License-Identifier: MIT

// Package journal keeps a durable record of every automated action the
// orchestrator took (dial, join, disconnect, preempt, abandon) so operators
// can answer "why did the room do that?" after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vtjoeh/auto-connect-booking/internal/log"
)

// DefaultListLimit and MaxListLimit bound List.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Entry is one recorded decision.
type Entry struct {
	ID            string    `json:"id"`
	Time          time.Time `json:"time"`
	BookingID     string    `json:"booking_id,omitempty"`
	Decision      string    `json:"decision"`
	Outcome       string    `json:"outcome"`
	Detail        string    `json:"detail,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS journal (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	ts             TEXT NOT NULL,
	booking_id     TEXT NOT NULL DEFAULT '',
	decision       TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	detail         TEXT NOT NULL DEFAULT '',
	correlation_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS journal_booking_idx ON journal (booking_id);
`

// Store is a SQLite-backed journal.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// Open opens (and if needed creates) the journal database at path.
func Open(path string, cfg Config) (*Store, error) {
	db, err := openDB(path, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Store{
		db:     db,
		logger: log.WithComponent("journal"),
		now:    time.Now,
	}, nil
}

// Record appends an entry, filling in ID and Time when empty.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	if e.CorrelationID == "" {
		e.CorrelationID = log.CorrelationIDFromContext(ctx)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal (id, ts, booking_id, decision, outcome, detail, correlation_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UTC().Format(time.RFC3339Nano), e.BookingID, e.Decision, e.Outcome, e.Detail, e.CorrelationID)
	if err != nil {
		return fmt.Errorf("journal: record %s/%s: %w", e.Decision, e.Outcome, err)
	}

	s.logger.Debug().
		Str(log.FieldEvent, "journal.recorded").
		Str(log.FieldBookingID, e.BookingID).
		Str(log.FieldDecision, e.Decision).
		Str(log.FieldOutcome, e.Outcome).
		Msg("journal entry recorded")
	return nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, booking_id, decision, outcome, detail, correlation_id FROM journal ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e  Entry
			ts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.BookingID, &e.Decision, &e.Outcome, &e.Detail, &e.CorrelationID); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Time, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("journal: entry %s has bad time %q: %w", e.ID, ts, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	return out, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
