package alertgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/moodguard/internal/logging"
	"github.com/mbd888/moodguard/internal/traces"
)

// Gate is the per-session NotShown → Shown state machine.
type Gate struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a gate over store.
func New(store Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the clock used for record timestamps.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Store returns the underlying store.
func (g *Gate) Store() Store {
	return g.store
}

// Open starts a session in the NotShown state. Called at login.
func (g *Gate) Open(ctx context.Context, sessionID, userID string) error {
	if sessionID == "" {
		return ErrMissingSessionID
	}
	ctx, span := traces.StartSpan(ctx, "alertgate.Open", traces.SessionID(sessionID), traces.UserID(userID))
	defer span.End()

	if err := g.store.Create(ctx, &Record{SessionID: sessionID, UserID: userID, CreatedAt: g.now()}); err != nil {
		traces.Fail(span, err, "open")
		return fmt.Errorf("failed to open alert session: %w", err)
	}
	gateSessions.WithLabelValues("opened").Inc()
	return nil
}

// CheckShown reports whether the alert was already shown in this session.
// It never transitions state. Missing records and store failures read as
// not shown.
func (g *Gate) CheckShown(ctx context.Context, sessionID string) bool {
	if sessionID == "" {
		return false
	}
	ctx, span := traces.StartSpan(ctx, "alertgate.CheckShown", traces.SessionID(sessionID))
	defer span.End()

	rec, err := g.store.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		traces.Fail(span, err, "check")
		gateStoreErrors.WithLabelValues("check").Inc()
		logging.L(ctx).Warn("alert session lookup failed, treating as not shown",
			"session_id", sessionID, "error", err)
		return false
	}
	return rec.Shown
}

// MarkShown records that the alert has been shown. It returns true only for
// the single call that performed the NotShown → Shown transition.
func (g *Gate) MarkShown(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, ErrMissingSessionID
	}
	ctx, span := traces.StartSpan(ctx, "alertgate.MarkShown", traces.SessionID(sessionID))
	defer span.End()

	transitioned, err := g.store.MarkShown(ctx, sessionID, g.now())
	if err != nil {
		traces.Fail(span, err, "mark")
		gateStoreErrors.WithLabelValues("mark").Inc()
		return false, fmt.Errorf("failed to mark alert shown: %w", err)
	}
	span.SetAttributes(traces.Transitioned(transitioned))
	if transitioned {
		gateMarks.WithLabelValues("transitioned").Inc()
	} else {
		gateMarks.WithLabelValues("already_shown").Inc()
	}
	return transitioned, nil
}

// Close deletes the session record. Called at logout.
func (g *Gate) Close(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrMissingSessionID
	}
	if err := g.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to close alert session: %w", err)
	}
	gateSessions.WithLabelValues("closed").Inc()
	return nil
}

// StartJanitor purges expired records every interval until ctx is done. It is
// a no-op for stores that expire records natively.
func (g *Gate) StartJanitor(ctx context.Context, ttl, interval time.Duration) {
	p, ok := g.store.(Purger)
	if !ok || ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx, g.now().Add(-ttl))
			if err != nil {
				g.logger.Error("alert session purge failed", "error", err)
				continue
			}
			if n > 0 {
				g.logger.Info("purged expired alert sessions", "count", n)
			}
		}
	}
}
