package diary

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mbd888/moodguard/internal/emotion"
)

// PostgresStore reads diary entries from PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a PostgreSQL-backed diary store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// WithClock overrides the clock used to compute "today".
func (s *PostgresStore) WithClock(now func() time.Time) *PostgresStore {
	s.now = now
	return s
}

func (s *PostgresStore) Upsert(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diary_entries (user_id, entry_date, emotion, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, entry_date)
		DO UPDATE SET emotion = EXCLUDED.emotion, updated_at = NOW(), deleted_at = NULL
	`, e.UserID, Day(e.Date), string(e.Emotion))
	if err != nil {
		return fmt.Errorf("failed to upsert diary entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentEntries(ctx context.Context, userID string, days int) ([]Entry, error) {
	if days <= 0 {
		return nil, ErrInvalidDays
	}
	today := Day(s.now())
	start := WindowStart(today, days)

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, entry_date, emotion
		FROM diary_entries
		WHERE user_id = $1
		  AND entry_date BETWEEN $2 AND $3
		  AND deleted_at IS NULL
		ORDER BY entry_date DESC
	`, userID, start, today)
	if err != nil {
		return nil, fmt.Errorf("failed to query diary entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Entry
	for rows.Next() {
		var e Entry
		var raw string
		if err := rows.Scan(&e.UserID, &e.Date, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan diary entry: %w", err)
		}
		// Unrecognised labels pass through untouched; scoring decides what to do with them.
		if parsed, perr := emotion.Parse(raw); perr == nil {
			e.Emotion = parsed
		} else {
			e.Emotion = emotion.Emotion(raw)
		}
		e.Date = Day(e.Date)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read diary entries: %w", err)
	}
	return result, nil
}
