package diary

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[time.Time]Entry // userID → date → entry
	now     func() time.Time
}

// NewMemoryStore creates an in-memory diary store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]map[time.Time]Entry),
		now:     time.Now,
	}
}

// WithClock overrides the clock used to compute "today".
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Upsert(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate, ok := s.entries[e.UserID]
	if !ok {
		byDate = make(map[time.Time]Entry)
		s.entries[e.UserID] = byDate
	}
	stored := *e
	stored.Date = Day(e.Date)
	byDate[stored.Date] = stored
	return nil
}

func (s *MemoryStore) RecentEntries(ctx context.Context, userID string, days int) ([]Entry, error) {
	if days <= 0 {
		return nil, ErrInvalidDays
	}
	today := Day(s.now())
	start := WindowStart(today, days)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Entry
	for date, e := range s.entries[userID] {
		if date.Before(start) || date.After(today) {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}
