package risk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresConfigStore persists the threshold configuration as a single row.
type PostgresConfigStore struct {
	db *sql.DB
}

// NewPostgresConfigStore creates a PostgreSQL-backed config store.
func NewPostgresConfigStore(db *sql.DB) *PostgresConfigStore {
	return &PostgresConfigStore{db: db}
}

func (s *PostgresConfigStore) Get(ctx context.Context) (*Config, error) {
	var (
		period                               sql.NullInt64
		highC, highP, medC, medP, lowC, lowP sql.NullInt64
		updatedAt                            time.Time
		updatedBy                            sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT monitoring_period,
		       high_consecutive_score, high_score_in_period,
		       medium_consecutive_score, medium_score_in_period,
		       low_consecutive_score, low_score_in_period,
		       updated_at, updated_by
		FROM risk_detection_settings
		WHERE id = 1
	`).Scan(&period, &highC, &highP, &medC, &medP, &lowC, &lowP, &updatedAt, &updatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load risk settings: %w", err)
	}

	cfg := &Config{
		MonitoringPeriodDays: int(period.Int64),
		High:                 thresholdsFrom(highC, highP),
		Medium:               thresholdsFrom(medC, medP),
		Low:                  thresholdsFrom(lowC, lowP),
		UpdatedAt:            updatedAt,
		UpdatedBy:            updatedBy.String,
	}
	if !period.Valid {
		return nil, fmt.Errorf("%w: monitoring period not set", ErrConfiguration)
	}
	return cfg, nil
}

// thresholdsFrom returns nil when either column is NULL so Classify reports
// the level as missing.
func thresholdsFrom(consecutive, inPeriod sql.NullInt64) *Thresholds {
	if !consecutive.Valid || !inPeriod.Valid {
		return nil
	}
	return &Thresholds{ConsecutiveScore: int(consecutive.Int64), ScoreInPeriod: int(inPeriod.Int64)}
}

func (s *PostgresConfigStore) Save(ctx context.Context, cfg *Config) error {
	if err := cfg.check(); err != nil {
		return err
	}
	var updatedBy sql.NullString
	if cfg.UpdatedBy != "" {
		updatedBy = sql.NullString{String: cfg.UpdatedBy, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_detection_settings (
			id, monitoring_period,
			high_consecutive_score, high_score_in_period,
			medium_consecutive_score, medium_score_in_period,
			low_consecutive_score, low_score_in_period,
			updated_at, updated_by
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			monitoring_period = EXCLUDED.monitoring_period,
			high_consecutive_score = EXCLUDED.high_consecutive_score,
			high_score_in_period = EXCLUDED.high_score_in_period,
			medium_consecutive_score = EXCLUDED.medium_consecutive_score,
			medium_score_in_period = EXCLUDED.medium_score_in_period,
			low_consecutive_score = EXCLUDED.low_consecutive_score,
			low_score_in_period = EXCLUDED.low_score_in_period,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`,
		cfg.MonitoringPeriodDays,
		cfg.High.ConsecutiveScore, cfg.High.ScoreInPeriod,
		cfg.Medium.ConsecutiveScore, cfg.Medium.ScoreInPeriod,
		cfg.Low.ConsecutiveScore, cfg.Low.ScoreInPeriod,
		cfg.UpdatedAt, updatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save risk settings: %w", err)
	}
	return nil
}

// PostgresAssessmentStore persists shown-alert assessments in PostgreSQL.
type PostgresAssessmentStore struct {
	db *sql.DB
}

// NewPostgresAssessmentStore creates a PostgreSQL-backed assessment store.
func NewPostgresAssessmentStore(db *sql.DB) *PostgresAssessmentStore {
	return &PostgresAssessmentStore{db: db}
}

func (s *PostgresAssessmentStore) Record(ctx context.Context, a *Assessment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_assessments (id, user_id, session_id, risk_level, consecutive_score, score_in_period, shown_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		a.ID,
		a.UserID,
		a.SessionID,
		string(a.RiskLevel),
		a.ConsecutiveScore,
		a.ScoreInPeriod,
		a.ShownAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record risk assessment: %w", err)
	}
	return nil
}

func (s *PostgresAssessmentStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, risk_level, consecutive_score, score_in_period, shown_at
		FROM risk_assessments
		WHERE user_id = $1
		ORDER BY shown_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		if err := rows.Scan(&a.ID, &a.UserID, &a.SessionID, &a.RiskLevel, &a.ConsecutiveScore, &a.ScoreInPeriod, &a.ShownAt); err != nil {
			return nil, fmt.Errorf("failed to scan risk assessment: %w", err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read risk assessments: %w", err)
	}
	return result, nil
}

func (s *PostgresAssessmentStore) Distribution(ctx context.Context, from, to time.Time) (*Distribution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT risk_level, COUNT(*)
		FROM (
			SELECT DISTINCT ON (user_id) user_id, risk_level
			FROM risk_assessments
			WHERE shown_at >= $1 AND shown_at < $2
			ORDER BY user_id, shown_at DESC
		) latest
		GROUP BY risk_level
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk distribution: %w", err)
	}
	defer func() { _ = rows.Close() }()

	d := newDistribution(from, to)
	for rows.Next() {
		var level Level
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan risk distribution: %w", err)
		}
		d.ByLevel[level] = count
		d.TotalUsers += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read risk distribution: %w", err)
	}
	d.computePercentages()
	return d, nil
}
