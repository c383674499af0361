package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/moodguard/internal/circuitbreaker"
	"github.com/mbd888/moodguard/internal/diary"
	"github.com/mbd888/moodguard/internal/idgen"
	"github.com/mbd888/moodguard/internal/logging"
	"github.com/mbd888/moodguard/internal/traces"
	"github.com/prometheus/client_golang/prometheus"
)

// EntryStore supplies the diary window for a user.
type EntryStore interface {
	RecentEntries(ctx context.Context, userID string, days int) ([]diary.Entry, error)
}

// Service runs risk analysis. It holds no mutable state; every call re-reads
// the current thresholds and entries.
type Service struct {
	configs     ConfigStore
	entries     EntryStore
	contacts    UrgentContactStore
	assessments AssessmentStore
	breaker     *circuitbreaker.Breaker
	logger      *slog.Logger
	now         func() time.Time
}

// Breaker keys for the collaborator reads guarded during analysis.
const (
	breakerDiary    = "diary"
	breakerContacts = "contacts"
)

// NewService creates a risk analysis service.
func NewService(configs ConfigStore, entries EntryStore, contacts UrgentContactStore, assessments AssessmentStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		configs:     configs,
		entries:     entries,
		contacts:    contacts,
		assessments: assessments,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the clock used for AnalyzedAt and assessment timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithBreaker guards the diary and urgent-contact reads with b. While a
// circuit is open, Analyze fails fast with ErrDataUnavailable.
func (s *Service) WithBreaker(b *circuitbreaker.Breaker) *Service {
	s.breaker = b
	return s
}

func (s *Service) guard(ctx context.Context, key string, fn func(context.Context) error) error {
	if s.breaker == nil {
		return fn(ctx)
	}
	return s.breaker.Do(ctx, key, fn)
}

// Analyze classifies the user's recent emotion history. On any store failure
// it returns an error wrapping ErrDataUnavailable and no result; on a malformed
// configuration it returns an error wrapping ErrConfiguration.
func (s *Service) Analyze(ctx context.Context, userID string) (*Analysis, error) {
	ctx, span := traces.StartSpan(ctx, "risk.Analyze", traces.UserID(userID))
	defer span.End()
	timer := prometheus.NewTimer(riskAnalysisLatency)
	defer timer.ObserveDuration()

	result, err := s.analyze(ctx, userID)
	if err != nil {
		reason := "data_unavailable"
		if errors.Is(err, ErrConfiguration) {
			reason = "configuration"
		}
		riskAnalysisFailures.WithLabelValues(reason).Inc()
		traces.Fail(span, err, reason)
		logging.L(ctx).Error("risk analysis failed", "user_id", userID, "reason", reason, "error", err)
		return nil, err
	}

	riskAnalyses.WithLabelValues(string(result.RiskLevel)).Inc()
	span.SetAttributes(traces.RiskLevel(string(result.RiskLevel)))
	return result, nil
}

func (s *Service) analyze(ctx context.Context, userID string) (*Analysis, error) {
	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	var entries []diary.Entry
	err = s.guard(ctx, breakerDiary, func(ctx context.Context) error {
		var err error
		entries, err = s.entries.RecentEntries(ctx, userID, cfg.MonitoringPeriodDays)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading diary entries: %w", ErrDataUnavailable, err)
	}

	scores := Aggregate(entries)
	for _, e := range scores.Unknown {
		riskUnknownEmotions.Inc()
		logging.L(ctx).Warn("unrecognised emotion scored as 0",
			"user_id", e.UserID,
			"date", e.Date.Format(time.DateOnly),
			"emotion", string(e.Emotion),
		)
	}

	level, reasons, err := Classify(scores.ConsecutiveScore, scores.ScoreInPeriod, cfg)
	if err != nil {
		return nil, err
	}

	contacts := []string{}
	if level == LevelHigh {
		var phones []string
		err := s.guard(ctx, breakerContacts, func(ctx context.Context) error {
			var err error
			phones, err = s.contacts.ListUrgentPhones(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: loading urgent contacts: %w", ErrDataUnavailable, err)
		}
		contacts = append(contacts, phones...)
	}

	return &Analysis{
		RiskLevel:            level,
		ConsecutiveScore:     scores.ConsecutiveScore,
		ScoreInPeriod:        scores.ScoreInPeriod,
		Reasons:              reasons,
		UrgentContacts:       contacts,
		MonitoringPeriodDays: cfg.MonitoringPeriodDays,
		LastNegativeDate:     scores.LastNegativeDate,
		Message:              Message(level),
		AnalyzedAt:           s.now(),
	}, nil
}

// loadConfig reads the stored thresholds, falling back to DefaultConfig when
// none have been saved yet.
func (s *Service) loadConfig(ctx context.Context) (*Config, error) {
	cfg, err := s.configs.Get(ctx)
	switch {
	case errors.Is(err, ErrConfigNotFound):
		return DefaultConfig(), nil
	case errors.Is(err, ErrConfiguration):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%w: loading thresholds: %w", ErrDataUnavailable, err)
	}
	return cfg, nil
}

// RecordShown writes the audit row for an alert that was just shown.
func (s *Service) RecordShown(ctx context.Context, userID, sessionID string, a *Analysis) error {
	ctx, span := traces.StartSpan(ctx, "risk.RecordShown",
		traces.UserID(userID),
		traces.SessionID(sessionID),
		traces.RiskLevel(string(a.RiskLevel)),
	)
	defer span.End()

	err := s.assessments.Record(ctx, &Assessment{
		ID:               idgen.WithPrefix(idgen.PrefixAssessment),
		UserID:           userID,
		SessionID:        sessionID,
		RiskLevel:        a.RiskLevel,
		ConsecutiveScore: a.ConsecutiveScore,
		ScoreInPeriod:    a.ScoreInPeriod,
		ShownAt:          s.now(),
	})
	if err != nil {
		traces.Fail(span, err, "audit_write")
		return fmt.Errorf("failed to record assessment: %w", err)
	}
	return nil
}

// GetConfig returns the current thresholds, saving the defaults on first use.
func (s *Service) GetConfig(ctx context.Context) (*Config, error) {
	cfg, err := s.configs.Get(ctx)
	if errors.Is(err, ErrConfigNotFound) {
		cfg = DefaultConfig()
		cfg.UpdatedAt = s.now()
		if err := s.configs.Save(ctx, cfg); err != nil {
			return nil, fmt.Errorf("%w: saving default thresholds: %w", ErrDataUnavailable, err)
		}
		s.logger.Info("created default risk thresholds")
		return cfg, nil
	}
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: loading thresholds: %w", ErrDataUnavailable, err)
	}
	return cfg, nil
}

// UpdateConfig validates and replaces the thresholds.
func (s *Service) UpdateConfig(ctx context.Context, cfg *Config, adminID string) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	updated := *cfg
	updated.UpdatedAt = s.now()
	updated.UpdatedBy = adminID
	if err := s.configs.Save(ctx, &updated); err != nil {
		return nil, fmt.Errorf("%w: saving thresholds: %w", ErrDataUnavailable, err)
	}
	s.logger.Info("risk thresholds updated", "admin_id", adminID, "monitoring_period", updated.MonitoringPeriodDays)
	return &updated, nil
}

// Distribution reports users by the level of their latest assessment in [from, to).
func (s *Service) Distribution(ctx context.Context, from, to time.Time) (*Distribution, error) {
	d, err := s.assessments.Distribution(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: loading distribution: %w", ErrDataUnavailable, err)
	}
	return d, nil
}

// History returns the user's most recent assessments.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*Assessment, error) {
	list, err := s.assessments.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: loading assessments: %w", ErrDataUnavailable, err)
	}
	return list, nil
}
