// Package audit records who changed the knowledge base and when. Every
// gardener decision and ingestion run leaves an entry so curation stays
// reviewable after the fact.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hragd/hragd/internal/db"
)

// ActorType distinguishes human reviewers from automated actions.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Entry is one audit record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ActorType ActorType `json:"actor_type"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail"`
}

// Store persists audit entries in SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates an audit store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Log appends one entry. Audit logging must never break the operation it
// describes, so callers typically ignore the returned error after logging it.
func (s *Store) Log(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.ActorType == "" {
		e.ActorType = ActorSystem
	}
	if e.ActorID == "" {
		e.ActorID = "hragd"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, timestamp, actor_type, actor_id, action, subject, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, e.ActorType, e.ActorID, e.Action, e.Subject, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Query returns entries newest first, optionally filtered by action or
// subject. Empty filters match everything.
func (s *Store) Query(ctx context.Context, action, subject string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, timestamp, actor_type, actor_id, action, subject, detail
	          FROM audit_entries WHERE 1=1`
	var args []any
	if action != "" {
		query += ` AND action = ?`
		args = append(args, action)
	}
	if subject != "" {
		query += ` AND subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY timestamp DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorType, &e.ActorID, &e.Action, &e.Subject, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
