package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/moodguard/internal/circuitbreaker"
	"github.com/mbd888/moodguard/internal/diary"
	"github.com/mbd888/moodguard/internal/emotion"
)

var errDown = errors.New("connection refused")

type stubEntries struct {
	entries []diary.Entry
	err     error
	gotDays int
}

func (s *stubEntries) RecentEntries(ctx context.Context, _ string, days int) ([]diary.Entry, error) {
	s.gotDays = days
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.entries, s.err
}

type stubContacts struct {
	phones []string
	err    error
	calls  int
}

func (s *stubContacts) ListUrgentPhones(context.Context) ([]string, error) {
	s.calls++
	return s.phones, s.err
}

type stubConfigs struct {
	cfg *Config
	err error
}

func (s *stubConfigs) Get(context.Context) (*Config, error) { return s.cfg, s.err }
func (s *stubConfigs) Save(_ context.Context, c *Config) error {
	if s.err != nil && !errors.Is(s.err, ErrConfigNotFound) {
		return s.err
	}
	s.cfg, s.err = c, nil
	return nil
}

type fixture struct {
	svc         *Service
	configs     *MemoryConfigStore
	entries     *stubEntries
	contacts    *stubContacts
	assessments *MemoryAssessmentStore
}

func newFixture(emotions ...emotion.Emotion) *fixture {
	f := &fixture{
		configs:     NewMemoryConfigStore(),
		entries:     &stubEntries{entries: series(emotions...)},
		contacts:    &stubContacts{phones: []string{"109", "1577-0199"}},
		assessments: NewMemoryAssessmentStore(),
	}
	f.svc = NewService(f.configs, f.entries, f.contacts, f.assessments, nil).
		WithClock(func() time.Time { return today.Add(9 * time.Hour) })
	return f
}

func TestAnalyze_HighAttachesUrgentContacts(t *testing.T) {
	f := newFixture(emotion.Sad, emotion.Sad, emotion.Angry, emotion.Sad)

	a, err := f.svc.Analyze(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, a.RiskLevel)
	assert.Equal(t, 8, a.ConsecutiveScore)
	assert.Equal(t, 8, a.ScoreInPeriod)
	assert.Equal(t, []string{"109", "1577-0199"}, a.UrgentContacts)
	assert.Equal(t, DefaultMonitoringPeriodDays, a.MonitoringPeriodDays)
	assert.Equal(t, DefaultMonitoringPeriodDays, f.entries.gotDays, "window follows config")
	assert.Equal(t, Message(LevelHigh), a.Message)
	require.NotNil(t, a.LastNegativeDate)
	assert.Equal(t, today, *a.LastNegativeDate)
	assert.Equal(t, today.Add(9*time.Hour), a.AnalyzedAt)
}

func TestAnalyze_NonHighHasNoContacts(t *testing.T) {
	f := newFixture(emotion.Anxious, emotion.Sad, emotion.Happy)

	a, err := f.svc.Analyze(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, LevelLow, a.RiskLevel)
	assert.NotNil(t, a.UrgentContacts)
	assert.Empty(t, a.UrgentContacts)
	assert.Zero(t, f.contacts.calls, "contacts are only looked up for high risk")
}

func TestAnalyze_NoEntriesIsNone(t *testing.T) {
	f := newFixture()

	a, err := f.svc.Analyze(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, LevelNone, a.RiskLevel)
	assert.Empty(t, a.Reasons)
	assert.Nil(t, a.LastNegativeDate)
	assert.Empty(t, a.Message)
}

func TestAnalyze_UsesStoredConfig(t *testing.T) {
	f := newFixture(emotion.Anxious)
	cfg := &Config{
		MonitoringPeriodDays: 7,
		High:                 &Thresholds{ConsecutiveScore: 3, ScoreInPeriod: 3},
		Medium:               &Thresholds{ConsecutiveScore: 2, ScoreInPeriod: 2},
		Low:                  &Thresholds{ConsecutiveScore: 1, ScoreInPeriod: 1},
	}
	require.NoError(t, f.configs.Save(context.Background(), cfg))

	a, err := f.svc.Analyze(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, LevelLow, a.RiskLevel)
	assert.Equal(t, 7, a.MonitoringPeriodDays)
	assert.Equal(t, 7, f.entries.gotDays)
}

func TestAnalyze_UnknownEmotionDoesNotAbort(t *testing.T) {
	f := newFixture(emotion.Sad, "confused", emotion.Sad)

	a, err := f.svc.Analyze(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.ConsecutiveScore)
	assert.Equal(t, 4, a.ScoreInPeriod)
}

func TestAnalyze_ConfigStoreUnavailable(t *testing.T) {
	f := newFixture(emotion.Sad)
	f.svc.configs = &stubConfigs{err: errDown}

	a, err := f.svc.Analyze(context.Background(), "u1")
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, errDown)
}

func TestAnalyze_MalformedConfig(t *testing.T) {
	f := newFixture(emotion.Sad)
	broken := DefaultConfig()
	broken.High = nil
	f.svc.configs = &stubConfigs{cfg: broken}

	a, err := f.svc.Analyze(context.Background(), "u1")
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NotErrorIs(t, err, ErrDataUnavailable)
}

func TestAnalyze_ConfigStoreReportsConfigurationError(t *testing.T) {
	f := newFixture(emotion.Sad)
	f.svc.configs = &stubConfigs{err: ErrConfiguration}

	_, err := f.svc.Analyze(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAnalyze_EntriesUnavailable(t *testing.T) {
	f := newFixture()
	f.entries.err = errDown

	a, err := f.svc.Analyze(context.Background(), "u1")
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestAnalyze_ContactsUnavailable(t *testing.T) {
	f := newFixture(emotion.Sad, emotion.Sad, emotion.Sad, emotion.Sad)
	f.contacts.err = errDown

	a, err := f.svc.Analyze(context.Background(), "u1")
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestAnalyze_RereadsEveryCall(t *testing.T) {
	f := newFixture(emotion.Happy)
	ctx := context.Background()

	a, err := f.svc.Analyze(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, LevelNone, a.RiskLevel)

	f.entries.entries = series(emotion.Sad, emotion.Sad, emotion.Angry)
	a, err = f.svc.Analyze(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, LevelMedium, a.RiskLevel)
}

func TestRecordShownAndHistory(t *testing.T) {
	f := newFixture(emotion.Sad, emotion.Sad, emotion.Sad)
	ctx := context.Background()

	a, err := f.svc.Analyze(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordShown(ctx, "u1", "sess_1", a))

	hist, err := f.svc.History(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "sess_1", hist[0].SessionID)
	assert.Equal(t, a.RiskLevel, hist[0].RiskLevel)
	assert.Contains(t, hist[0].ID, "ra_")
}

func TestGetConfig_CreatesDefaultOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cfg, err := f.svc.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultMonitoringPeriodDays, cfg.MonitoringPeriodDays)

	stored, err := f.configs.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, stored.High.ConsecutiveScore)
}

func TestUpdateConfig(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.MonitoringPeriodDays = 30
	updated, err := f.svc.UpdateConfig(ctx, cfg, "admin_1")
	require.NoError(t, err)
	assert.Equal(t, "admin_1", updated.UpdatedBy)
	assert.Equal(t, today.Add(9*time.Hour), updated.UpdatedAt)

	stored, err := f.svc.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, stored.MonitoringPeriodDays)

	bad := DefaultConfig()
	bad.Low.ConsecutiveScore = 100
	_, err = f.svc.UpdateConfig(ctx, bad, "admin_1")
	assert.ErrorIs(t, err, ErrConfiguration)

	stored, err = f.svc.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, stored.MonitoringPeriodDays, "rejected update leaves config untouched")
}

func TestDistribution(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	at := func(h int) time.Time { return today.Add(time.Duration(h) * time.Hour) }

	for _, a := range []*Assessment{
		{ID: "1", UserID: "u1", RiskLevel: LevelLow, ShownAt: at(1)},
		{ID: "2", UserID: "u1", RiskLevel: LevelHigh, ShownAt: at(5)},
		{ID: "3", UserID: "u2", RiskLevel: LevelMedium, ShownAt: at(2)},
		{ID: "4", UserID: "u3", RiskLevel: LevelHigh, ShownAt: at(-48)},
	} {
		require.NoError(t, f.assessments.Record(ctx, a))
	}

	d, err := f.svc.Distribution(ctx, today, today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalUsers)
	assert.Equal(t, 1, d.ByLevel[LevelHigh], "u1 counted once at latest level")
	assert.Equal(t, 1, d.ByLevel[LevelMedium])
	assert.Equal(t, 0, d.ByLevel[LevelLow])
	assert.Contains(t, d.ByLevel, LevelNone)
	assert.Equal(t, 50.0, d.Percentages[LevelHigh])
	assert.Equal(t, 50.0, d.Percentages[LevelMedium])
	assert.Equal(t, 0.0, d.Percentages[LevelNone])
}

func TestDistribution_PercentagesRoundToOneDecimal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i, l := range []Level{LevelHigh, LevelNone, LevelNone} {
		id := string(rune('a' + i))
		require.NoError(t, f.assessments.Record(ctx, &Assessment{ID: id, UserID: "u" + id, RiskLevel: l, ShownAt: today.Add(time.Hour)}))
	}

	d, err := f.svc.Distribution(ctx, today, today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 33.3, d.Percentages[LevelHigh])
	assert.Equal(t, 66.7, d.Percentages[LevelNone])
	assert.Len(t, d.Percentages, 4)

	empty, err := f.svc.Distribution(ctx, today.AddDate(0, 0, -7), today.AddDate(0, 0, -6))
	require.NoError(t, err)
	for _, l := range Levels() {
		assert.Zero(t, empty.Percentages[l])
	}
}

func TestMemoryConfigStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryConfigStore()
	ctx := context.Background()

	_, err := s.Get(ctx)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	require.NoError(t, s.Save(ctx, DefaultConfig()))
	got, err := s.Get(ctx)
	require.NoError(t, err)
	got.High.ConsecutiveScore = 99

	again, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, again.High.ConsecutiveScore)
}

func TestMemoryAssessmentStore_ListByUserNewestFirst(t *testing.T) {
	s := NewMemoryAssessmentStore()
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Record(ctx, &Assessment{ID: id, UserID: "u1", ShownAt: today.Add(time.Duration(i) * time.Hour)}))
	}

	list, err := s.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	none, err := s.ListByUser(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAnalyze_BreakerFailsFastAfterRepeatedStoreErrors(t *testing.T) {
	f := newFixture(emotion.Sad)
	f.svc.WithBreaker(circuitbreaker.New(2, time.Minute))
	f.entries.err = errDown

	for i := 0; i < 2; i++ {
		_, err := f.svc.Analyze(context.Background(), "u1")
		require.ErrorIs(t, err, errDown)
	}

	f.entries.err = nil
	f.entries.gotDays = 0
	_, err := f.svc.Analyze(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Zero(t, f.entries.gotDays, "open circuit skips the diary read")
}

func TestAnalyze_CancelledRequestsDoNotTripBreaker(t *testing.T) {
	f := newFixture(emotion.Sad, emotion.Sad, emotion.Angry, emotion.Sad)
	f.svc.WithBreaker(circuitbreaker.New(5, time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 10; i++ {
		_, err := f.svc.Analyze(ctx, "impatient_user")
		require.ErrorIs(t, err, context.Canceled)
	}

	a, err := f.svc.Analyze(context.Background(), "other_user")
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, a.RiskLevel)
	assert.Equal(t, 1, f.contacts.calls)
}

func TestAnalyze_TimedOutDiaryReadDoesNotTripBreaker(t *testing.T) {
	f := newFixture(emotion.Sad)
	f.svc.WithBreaker(circuitbreaker.New(1, time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	_, err := f.svc.Analyze(ctx, "u1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = f.svc.Analyze(context.Background(), "u1")
	assert.NoError(t, err)
}
