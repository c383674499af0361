// Package risk detects risk signals in a user's recent diary emotions.
//
// Two scalar signals are derived from the monitoring window: the consecutive
// score (weights of the unbroken run of negative days ending at the most
// recent entry) and the period score (weights of every entry in the window).
// Either signal independently escalates the level; levels are evaluated
// strictly high, then medium, then low, and the first match wins.
package risk

import (
	"context"
	"errors"
	"math"
	"time"
)

// Level is the outcome of classification.
type Level string

const (
	LevelNone   Level = "none"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Ord orders levels none < low < medium < high. Unknown levels are -1.
func (l Level) Ord() int {
	switch l {
	case LevelNone:
		return 0
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	default:
		return -1
	}
}

// Levels lists every level in ascending order.
func Levels() []Level {
	return []Level{LevelNone, LevelLow, LevelMedium, LevelHigh}
}

var (
	// ErrConfiguration means the threshold configuration is missing or malformed.
	ErrConfiguration = errors.New("risk: invalid threshold configuration")
	// ErrDataUnavailable means a backing store could not be read.
	ErrDataUnavailable = errors.New("risk: data unavailable")
	// ErrConfigNotFound is returned by ConfigStore.Get before any config is saved.
	ErrConfigNotFound = errors.New("risk: threshold configuration not found")
)

// Thresholds are the two trigger points for a single level.
type Thresholds struct {
	ConsecutiveScore int `json:"consecutiveScore"`
	ScoreInPeriod    int `json:"scoreInPeriod"`
}

// Config is the administrator-owned threshold configuration.
type Config struct {
	MonitoringPeriodDays int         `json:"monitoringPeriod"`
	High                 *Thresholds `json:"high"`
	Medium               *Thresholds `json:"medium"`
	Low                  *Thresholds `json:"low"`
	UpdatedAt            time.Time   `json:"updatedAt,omitempty"`
	UpdatedBy            string      `json:"updatedBy,omitempty"`
}

// Analysis is the result of a single Analyze call. It is never persisted.
type Analysis struct {
	RiskLevel            Level      `json:"riskLevel"`
	ConsecutiveScore     int        `json:"consecutiveScore"`
	ScoreInPeriod        int        `json:"scoreInPeriod"`
	Reasons              []string   `json:"reasons"`
	UrgentContacts       []string   `json:"urgentCounselingPhones"`
	MonitoringPeriodDays int        `json:"monitoringPeriod"`
	LastNegativeDate     *time.Time `json:"lastNegativeDate,omitempty"`
	Message              string     `json:"message,omitempty"`
	AnalyzedAt           time.Time  `json:"analyzedAt"`
}

// Assessment is the audit record written when an alert is shown.
type Assessment struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	SessionID        string    `json:"sessionId"`
	RiskLevel        Level     `json:"riskLevel"`
	ConsecutiveScore int       `json:"consecutiveScore"`
	ScoreInPeriod    int       `json:"scoreInPeriod"`
	ShownAt          time.Time `json:"shownAt"`
}

// Distribution counts users by the level of their latest assessment.
type Distribution struct {
	From        time.Time         `json:"from"`
	To          time.Time         `json:"to"`
	TotalUsers  int               `json:"totalUsers"`
	ByLevel     map[Level]int     `json:"byLevel"`
	Percentages map[Level]float64 `json:"percentages"`
}

// computePercentages fills Percentages from ByLevel, rounded to one decimal.
// Every level is 0 when there are no users.
func (d *Distribution) computePercentages() {
	d.Percentages = make(map[Level]float64, len(d.ByLevel))
	for _, l := range Levels() {
		if d.TotalUsers == 0 {
			d.Percentages[l] = 0
			continue
		}
		d.Percentages[l] = math.Round(float64(d.ByLevel[l])*1000/float64(d.TotalUsers)) / 10
	}
}

// ConfigStore persists the single threshold configuration.
type ConfigStore interface {
	Get(ctx context.Context) (*Config, error)
	Save(ctx context.Context, cfg *Config) error
}

// UrgentContactStore lists phone numbers of urgent counseling resources.
type UrgentContactStore interface {
	ListUrgentPhones(ctx context.Context) ([]string, error)
}

// AssessmentStore persists shown-alert assessments for the admin dashboard.
type AssessmentStore interface {
	Record(ctx context.Context, a *Assessment) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error)
	Distribution(ctx context.Context, from, to time.Time) (*Distribution, error)
}
