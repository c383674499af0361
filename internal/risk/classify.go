package risk

import (
	"fmt"
)

// Default thresholds, applied until an administrator saves a configuration.
const (
	DefaultMonitoringPeriodDays = 14
	MaxMonitoringPeriodDays     = 365
)

// DefaultConfig returns the thresholds used before any are configured.
func DefaultConfig() *Config {
	return &Config{
		MonitoringPeriodDays: DefaultMonitoringPeriodDays,
		High:                 &Thresholds{ConsecutiveScore: 8, ScoreInPeriod: 12},
		Medium:               &Thresholds{ConsecutiveScore: 5, ScoreInPeriod: 8},
		Low:                  &Thresholds{ConsecutiveScore: 2, ScoreInPeriod: 4},
	}
}

// Thresholds returns the thresholds for level, or nil for LevelNone.
func (c *Config) Thresholds(level Level) *Thresholds {
	switch level {
	case LevelHigh:
		return c.High
	case LevelMedium:
		return c.Medium
	case LevelLow:
		return c.Low
	default:
		return nil
	}
}

// check verifies the config is usable for classification. Ordering across
// levels is not enforced here; Validate does that on write.
func (c *Config) check() error {
	if c == nil {
		return fmt.Errorf("%w: missing", ErrConfiguration)
	}
	if c.MonitoringPeriodDays <= 0 {
		return fmt.Errorf("%w: monitoring period must be positive, got %d", ErrConfiguration, c.MonitoringPeriodDays)
	}
	for _, level := range []Level{LevelHigh, LevelMedium, LevelLow} {
		t := c.Thresholds(level)
		if t == nil {
			return fmt.Errorf("%w: %s thresholds missing", ErrConfiguration, level)
		}
		if t.ConsecutiveScore < 0 || t.ScoreInPeriod < 0 {
			return fmt.Errorf("%w: %s thresholds must be non-negative", ErrConfiguration, level)
		}
	}
	return nil
}

// Validate is the write-path check: everything check() requires, a period of
// at most MaxMonitoringPeriodDays, and strictly descending thresholds
// high > medium > low on both fields.
func (c *Config) Validate() error {
	if err := c.check(); err != nil {
		return err
	}
	if c.MonitoringPeriodDays > MaxMonitoringPeriodDays {
		return fmt.Errorf("%w: monitoring period must be at most %d days", ErrConfiguration, MaxMonitoringPeriodDays)
	}
	if c.High.ConsecutiveScore <= c.Medium.ConsecutiveScore {
		return fmt.Errorf("%w: high consecutive score must exceed medium", ErrConfiguration)
	}
	if c.Medium.ConsecutiveScore <= c.Low.ConsecutiveScore {
		return fmt.Errorf("%w: medium consecutive score must exceed low", ErrConfiguration)
	}
	if c.High.ScoreInPeriod <= c.Medium.ScoreInPeriod {
		return fmt.Errorf("%w: high period score must exceed medium", ErrConfiguration)
	}
	if c.Medium.ScoreInPeriod <= c.Low.ScoreInPeriod {
		return fmt.Errorf("%w: medium period score must exceed low", ErrConfiguration)
	}
	return nil
}

// Classify maps the two signals to a level and the reasons it was chosen.
func Classify(consecutive, inPeriod int, cfg *Config) (Level, []string, error) {
	if err := cfg.check(); err != nil {
		return LevelNone, nil, err
	}

	level := LevelNone
	for _, l := range []Level{LevelHigh, LevelMedium, LevelLow} {
		t := cfg.Thresholds(l)
		if consecutive >= t.ConsecutiveScore || inPeriod >= t.ScoreInPeriod {
			level = l
			break
		}
	}
	if level == LevelNone {
		return LevelNone, []string{}, nil
	}

	t := cfg.Thresholds(level)
	reasons := make([]string, 0, 2)
	if consecutive >= t.ConsecutiveScore {
		reasons = append(reasons, fmt.Sprintf(
			"Negative emotions were recorded on consecutive days up to your latest entry (%d points).", consecutive))
	}
	if inPeriod >= t.ScoreInPeriod {
		reasons = append(reasons, fmt.Sprintf(
			"Negative emotions recurred over the last %d days (%d points).", cfg.MonitoringPeriodDays, inPeriod))
	}
	return level, reasons, nil
}

// Message returns the notification copy shown with an alert of the given level.
func Message(level Level) string {
	switch level {
	case LevelHigh:
		return "A serious risk signal was detected in your recent emotion pattern. We recommend reaching out to a professional."
	case LevelMedium:
		return "Negative emotions have persisted recently. Take time to reflect on how you feel and consider talking to a counselor."
	case LevelLow:
		return "Negative emotions have been recurring lately. Take a moment to look after yourself."
	default:
		return ""
	}
}
