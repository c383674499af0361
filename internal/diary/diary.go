// Package diary holds the read model of diary entries consumed by risk
// analysis: one emotion per user per calendar date.
package diary

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/moodguard/internal/emotion"
)

var (
	ErrInvalidEntry = errors.New("diary: invalid entry")
	ErrInvalidDays  = errors.New("diary: days must be positive")
)

// Entry is a single day's recorded emotion.
type Entry struct {
	UserID  string          `json:"userId"`
	Date    time.Time       `json:"date"` // truncated to UTC midnight
	Emotion emotion.Emotion `json:"emotion"`
}

// Store reads and writes diary entries.
type Store interface {
	// Upsert records e, replacing any existing entry for the same user and date.
	Upsert(ctx context.Context, e *Entry) error
	// RecentEntries returns the user's entries dated within the last days
	// calendar days (today included), most recent first.
	RecentEntries(ctx context.Context, userID string, days int) ([]Entry, error)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WindowStart returns the first date included in a window of days ending on today.
func WindowStart(today time.Time, days int) time.Time {
	return Day(today).AddDate(0, 0, -(days - 1))
}

// Validate checks that the entry can be stored.
func (e *Entry) Validate() error {
	if e.UserID == "" {
		return errors.Join(ErrInvalidEntry, errors.New("userId is required"))
	}
	if e.Date.IsZero() {
		return errors.Join(ErrInvalidEntry, errors.New("date is required"))
	}
	if !e.Emotion.Valid() {
		return errors.Join(ErrInvalidEntry, emotion.ErrUnknownEmotion)
	}
	return nil
}
