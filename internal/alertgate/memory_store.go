package alertgate

import (
	"context"
	"sync"
	"time"

	"github.com/mbd888/moodguard/internal/syncutil"
)

// MemoryStore keeps session records in process memory. Writes for one session
// are serialized through a sharded lock, so MarkShown is a compare-and-set.
type MemoryStore struct {
	records sync.Map // sessionID → *Record (replaced, never mutated)
	locks   *syncutil.KeyedMutex
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory session store. Records older than ttl
// read as missing; ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		locks: syncutil.NewKeyedMutex(0),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	unlock, err := s.locks.Lock(ctx, rec.SessionID)
	if err != nil {
		return err
	}
	defer unlock()

	fresh := &Record{SessionID: rec.SessionID, UserID: rec.UserID, CreatedAt: rec.CreatedAt}
	s.records.Store(rec.SessionID, fresh)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	rec, ok := s.load(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) MarkShown(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return false, err
	}
	defer unlock()

	shownAt := at
	rec, ok := s.load(sessionID)
	if !ok {
		s.records.Store(sessionID, &Record{SessionID: sessionID, Shown: true, CreatedAt: at, ShownAt: &shownAt})
		return true, nil
	}
	if rec.Shown {
		return false, nil
	}
	next := *rec
	next.Shown = true
	next.ShownAt = &shownAt
	s.records.Store(sessionID, &next)
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	s.records.Delete(sessionID)
	return nil
}

// Purge removes records created before cutoff.
func (s *MemoryStore) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	s.records.Range(func(key, value any) bool {
		if s.purgeEntry(key, value, cutoff) {
			n++
		}
		return true
	})
	return n, nil
}

// purgeEntry deletes key only while it still holds the value Range saw. A
// record replaced in between (a fresh MarkShown on an expired session) stays.
func (s *MemoryStore) purgeEntry(key, seen any, cutoff time.Time) bool {
	if !seen.(*Record).CreatedAt.Before(cutoff) {
		return false
	}
	return s.records.CompareAndDelete(key, seen)
}

// load returns the live record, treating expired ones as missing.
func (s *MemoryStore) load(sessionID string) (*Record, bool) {
	v, ok := s.records.Load(sessionID)
	if !ok {
		return nil, false
	}
	rec := v.(*Record)
	if s.ttl > 0 && s.now().Sub(rec.CreatedAt) > s.ttl {
		return nil, false
	}
	return rec, true
}
