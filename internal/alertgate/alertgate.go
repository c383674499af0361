// Package alertgate guarantees a risk alert is surfaced at most once per
// login session.
//
// Each session owns one record that starts NotShown and moves to Shown exactly
// once, through an atomic compare-and-set in the backing store. Logout deletes
// the record; the next login starts fresh. A missing record reads as NotShown
// so the alert errs toward being shown.
package alertgate

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("alertgate: session record not found")
	ErrMissingSessionID = errors.New("alertgate: session id is required")
)

// Record is the per-session alert state.
type Record struct {
	SessionID string     `json:"sessionId"`
	UserID    string     `json:"userId,omitempty"`
	Shown     bool       `json:"shown"`
	CreatedAt time.Time  `json:"createdAt"`
	ShownAt   *time.Time `json:"shownAt,omitempty"`
}

// Store persists session records. MarkShown must be a single atomic
// compare-and-set: of any number of concurrent calls for one session, exactly
// one returns true.
type Store interface {
	// Create writes a fresh NotShown record, replacing any existing one.
	Create(ctx context.Context, rec *Record) error
	// Get returns ErrNotFound if the record is missing or expired.
	Get(ctx context.Context, sessionID string) (*Record, error)
	// MarkShown transitions NotShown → Shown and reports whether this call did
	// it. A missing record is created directly in the Shown state.
	MarkShown(ctx context.Context, sessionID string, at time.Time) (bool, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// Purger is implemented by stores without native expiry.
type Purger interface {
	// Purge deletes records created before cutoff and returns how many were removed.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}
