package counseling

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory resource store for demo/development mode.
type MemoryStore struct {
	resources map[string]*Resource
	mu        sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{resources: make(map[string]*Resource)}
}

func (m *MemoryStore) Create(_ context.Context, r *Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.resources[r.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[id]
	if !ok || r.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Resource
	for _, r := range m.resources {
		if r.DeletedAt != nil || (opts.AvailableOnly && !r.Available) {
			continue
		}
		if !opts.After.After(r.CreatedAt, r.ID) {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	sortByCreated(result)

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *MemoryStore) Update(_ context.Context, r *Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.resources[r.ID]
	if !ok || cur.DeletedAt != nil {
		return ErrNotFound
	}
	cp := *r
	cp.CreatedAt = cur.CreatedAt
	m.resources[r.ID] = &cp
	return nil
}

func (m *MemoryStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	if !ok || r.DeletedAt != nil {
		return ErrNotFound
	}
	cp := *r
	cp.DeletedAt = &at
	cp.UpdatedAt = at
	m.resources[id] = &cp
	return nil
}

func (m *MemoryStore) ListUrgentPhones(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var urgent []*Resource
	for _, r := range m.resources {
		if r.Urgent && r.DeletedAt == nil && r.Phone != "" {
			urgent = append(urgent, r)
		}
	}
	sortByCreated(urgent)

	phones := make([]string, 0, len(urgent))
	for _, r := range urgent {
		phones = append(phones, r.Phone)
	}
	return phones, nil
}

func sortByCreated(rs []*Resource) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
