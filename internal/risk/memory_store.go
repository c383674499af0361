package risk

import (
	"context"
	"sync"
	"time"
)

// MemoryConfigStore is an in-memory ConfigStore for demo/test use.
type MemoryConfigStore struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewMemoryConfigStore creates an empty in-memory config store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{}
}

func (s *MemoryConfigStore) Get(ctx context.Context) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cloneConfig(s.cfg), nil
}

func (s *MemoryConfigStore) Save(ctx context.Context, cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cloneConfig(cfg)
	return nil
}

func cloneConfig(c *Config) *Config {
	out := *c
	for _, p := range []**Thresholds{&out.High, &out.Medium, &out.Low} {
		if *p != nil {
			t := **p
			*p = &t
		}
	}
	return &out
}

// MemoryAssessmentStore is an in-memory AssessmentStore for demo/test use.
type MemoryAssessmentStore struct {
	mu          sync.RWMutex
	assessments map[string][]*Assessment // userID → assessments, oldest first
}

// NewMemoryAssessmentStore creates an in-memory assessment store.
func NewMemoryAssessmentStore() *MemoryAssessmentStore {
	return &MemoryAssessmentStore{
		assessments: make(map[string][]*Assessment),
	}
}

func (s *MemoryAssessmentStore) Record(ctx context.Context, a *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.assessments[a.UserID] = append(s.assessments[a.UserID], &cp)
	return nil
}

func (s *MemoryAssessmentStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.assessments[userID]
	if len(all) == 0 {
		return nil, nil
	}

	// Return most recent first, up to limit
	start := len(all) - limit
	if start < 0 {
		start = 0
	}
	result := make([]*Assessment, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		a := *all[i]
		result = append(result, &a)
	}
	return result, nil
}

func (s *MemoryAssessmentStore) Distribution(ctx context.Context, from, to time.Time) (*Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := newDistribution(from, to)
	for _, list := range s.assessments {
		var latest *Assessment
		for _, a := range list {
			if a.ShownAt.Before(from) || !a.ShownAt.Before(to) {
				continue
			}
			if latest == nil || !a.ShownAt.Before(latest.ShownAt) {
				latest = a
			}
		}
		if latest != nil {
			d.ByLevel[latest.RiskLevel]++
			d.TotalUsers++
		}
	}
	d.computePercentages()
	return d, nil
}

func newDistribution(from, to time.Time) *Distribution {
	d := &Distribution{From: from, To: to, ByLevel: make(map[Level]int, 4)}
	for _, l := range Levels() {
		d.ByLevel[l] = 0
	}
	return d
}
