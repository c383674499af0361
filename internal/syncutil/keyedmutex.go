// Package syncutil provides key-scoped locking.
package syncutil

import (
	"context"
	"hash/fnv"
)

// DefaultShards is the shard count used when NewKeyedMutex gets n <= 0.
const DefaultShards = 256

// KeyedMutex serializes work per key over a fixed pool of channel-backed
// locks. Distinct keys may share a shard; the same key always does. Waiting
// callers can give up when their context ends.
type KeyedMutex struct {
	shards []chan struct{}
}

// NewKeyedMutex creates a KeyedMutex with n shards.
func NewKeyedMutex(n int) *KeyedMutex {
	if n <= 0 {
		n = DefaultShards
	}
	m := &KeyedMutex{shards: make([]chan struct{}, n)}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
		m.shards[i] <- struct{}{}
	}
	return m
}

// Lock acquires the lock for key. On success the returned func releases it
// and must be called exactly once.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	shard := m.shards[m.index(key)]
	select {
	case <-shard:
		return func() { shard <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.shards))) //nolint:gosec // shard count is small and positive
}
