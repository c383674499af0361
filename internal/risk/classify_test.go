package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tightConfig() *Config {
	return &Config{
		MonitoringPeriodDays: 14,
		High:                 &Thresholds{ConsecutiveScore: 6, ScoreInPeriod: 10},
		Medium:               &Thresholds{ConsecutiveScore: 4, ScoreInPeriod: 6},
		Low:                  &Thresholds{ConsecutiveScore: 2, ScoreInPeriod: 3},
	}
}

func TestClassify_ConsecutiveTriggersHigh(t *testing.T) {
	level, reasons, err := Classify(6, 6, tightConfig())
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, level)
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "consecutive days")
}

func TestClassify_BothSignals(t *testing.T) {
	level, reasons, err := Classify(8, 12, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, level)
	assert.Len(t, reasons, 2)
	assert.Contains(t, reasons[1], "last 14 days")
}

func TestClassify_Tiers(t *testing.T) {
	tests := []struct {
		name        string
		consecutive int
		inPeriod    int
		want        Level
		reasons     int
	}{
		{"nothing", 0, 0, LevelNone, 0},
		{"below low", 1, 3, LevelNone, 0},
		{"low by streak", 2, 2, LevelLow, 1},
		{"low by period", 0, 4, LevelLow, 1},
		{"medium by period", 0, 8, LevelMedium, 1},
		{"medium by streak", 5, 5, LevelMedium, 1},
		{"high by period only", 0, 12, LevelHigh, 1},
		{"high wins over medium", 8, 8, LevelHigh, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, reasons, err := Classify(tt.consecutive, tt.inPeriod, DefaultConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
			assert.Len(t, reasons, tt.reasons)
			assert.NotNil(t, reasons)
		})
	}
}

func TestClassify_Monotonic(t *testing.T) {
	cfg := DefaultConfig()
	for c := 0; c <= 20; c++ {
		for p := c; p <= 30; p++ {
			base, _, err := Classify(c, p, cfg)
			require.NoError(t, err)
			up1, _, _ := Classify(c+1, p, cfg)
			up2, _, _ := Classify(c, p+1, cfg)
			assert.GreaterOrEqual(t, up1.Ord(), base.Ord(), "consecutive %d→%d", c, c+1)
			assert.GreaterOrEqual(t, up2.Ord(), base.Ord(), "period %d→%d", p, p+1)
		}
	}
}

func TestClassify_MalformedConfig(t *testing.T) {
	missingMedium := DefaultConfig()
	missingMedium.Medium = nil
	negative := DefaultConfig()
	negative.Low.ScoreInPeriod = -1
	zeroPeriod := DefaultConfig()
	zeroPeriod.MonitoringPeriodDays = 0

	for name, cfg := range map[string]*Config{
		"nil":           nil,
		"missing level": missingMedium,
		"negative":      negative,
		"zero period":   zeroPeriod,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := Classify(10, 10, cfg)
			assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
		})
	}
}

func TestClassify_UnorderedConfigStillEvaluatesHighFirst(t *testing.T) {
	cfg := &Config{
		MonitoringPeriodDays: 7,
		High:                 &Thresholds{ConsecutiveScore: 1, ScoreInPeriod: 1},
		Medium:               &Thresholds{ConsecutiveScore: 5, ScoreInPeriod: 5},
		Low:                  &Thresholds{ConsecutiveScore: 9, ScoreInPeriod: 9},
	}
	level, _, err := Classify(2, 2, cfg)
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, level)
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tooLong := DefaultConfig()
	tooLong.MonitoringPeriodDays = 366
	assert.ErrorIs(t, tooLong.Validate(), ErrConfiguration)

	equalTiers := DefaultConfig()
	equalTiers.Medium.ConsecutiveScore = equalTiers.High.ConsecutiveScore
	assert.ErrorIs(t, equalTiers.Validate(), ErrConfiguration)

	periodInverted := DefaultConfig()
	periodInverted.Low.ScoreInPeriod = 9
	assert.ErrorIs(t, periodInverted.Validate(), ErrConfiguration)

	yearly := DefaultConfig()
	yearly.MonitoringPeriodDays = 365
	assert.NoError(t, yearly.Validate())
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(LevelNone))
	for _, l := range []Level{LevelLow, LevelMedium, LevelHigh} {
		assert.NotEmpty(t, Message(l))
	}
	assert.NotEqual(t, Message(LevelLow), Message(LevelHigh))
}

func TestLevelOrd(t *testing.T) {
	for i, l := range Levels() {
		assert.Equal(t, i, l.Ord())
	}
	assert.Equal(t, -1, Level("critical").Ord())
}
