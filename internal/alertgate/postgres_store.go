package alertgate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore keeps session records in the alert_sessions table.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewPostgresStore creates a PostgreSQL-backed session store. Records older
// than ttl read as missing until purged; ttl <= 0 disables expiry.
func NewPostgresStore(db *sql.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl, now: time.Now}
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_sessions (session_id, user_id, created_at, shown_at)
		VALUES ($1, $2, $3, NULL)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			created_at = EXCLUDED.created_at,
			shown_at = NULL
	`, rec.SessionID, rec.UserID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	var rec Record
	var shownAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, created_at, shown_at
		FROM alert_sessions
		WHERE session_id = $1
	`, sessionID).Scan(&rec.SessionID, &rec.UserID, &rec.CreatedAt, &shownAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert session: %w", err)
	}
	if s.ttl > 0 && s.now().Sub(rec.CreatedAt) > s.ttl {
		return nil, ErrNotFound
	}
	if shownAt.Valid {
		t := shownAt.Time
		rec.Shown = true
		rec.ShownAt = &t
	}
	return &rec, nil
}

// MarkShown relies on INSERT ... ON CONFLICT taking a row lock: concurrent
// callers serialize on the row and only the first sees shown_at IS NULL. A row
// past its TTL counts as missing, so it starts over with created_at = at.
func (s *PostgresStore) MarkShown(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	var cutoff sql.NullTime
	if s.ttl > 0 {
		cutoff = sql.NullTime{Time: at.Add(-s.ttl), Valid: true}
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO alert_sessions (session_id, user_id, created_at, shown_at)
		VALUES ($1, '', $2, $2)
		ON CONFLICT (session_id) DO UPDATE SET
			shown_at = EXCLUDED.shown_at,
			created_at = CASE WHEN alert_sessions.created_at < $3
				THEN EXCLUDED.created_at ELSE alert_sessions.created_at END
		WHERE alert_sessions.shown_at IS NULL OR alert_sessions.created_at < $3
		RETURNING session_id
	`, sessionID, at, cutoff).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to mark alert session: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alert_sessions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete alert session: %w", err)
	}
	return nil
}

// Purge removes records created before cutoff.
func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_sessions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge alert sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
