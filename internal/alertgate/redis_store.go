package alertgate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// markShownScript sets shown=1 unless it already is. A missing key is created
// in the shown state with the session TTL. Returns 1 if this call transitioned.
var markShownScript = redis.NewScript(`
local shown = redis.call('HGET', KEYS[1], 'shown')
if shown == '1' then
	return 0
end
redis.call('HSET', KEYS[1], 'shown', '1', 'shown_at', ARGV[1])
if not shown then
	redis.call('HSET', KEYS[1], 'created_at', ARGV[1])
	if tonumber(ARGV[2]) > 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
end
return 1
`)

// RedisStore keeps session records as Redis hashes that expire with the session.
// Keys are namespaced as "{prefix}:{sessionID}".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "alertgate"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	key := s.key(rec.SessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"user_id", rec.UserID,
			"shown", "0",
			"created_at", strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10),
		)
		if s.ttl > 0 {
			pipe.PExpire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create alert session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get alert session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec := &Record{
		SessionID: sessionID,
		UserID:    fields["user_id"],
		Shown:     fields["shown"] == "1",
		CreatedAt: parseMillis(fields["created_at"]),
	}
	if v, ok := fields["shown_at"]; ok {
		t := parseMillis(v)
		rec.ShownAt = &t
	}
	return rec, nil
}

func (s *RedisStore) MarkShown(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	n, err := markShownScript.Run(ctx, s.client,
		[]string{s.key(sessionID)},
		strconv.FormatInt(at.UnixMilli(), 10),
		strconv.FormatInt(s.ttl.Milliseconds(), 10),
	).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to mark alert session: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete alert session: %w", err)
	}
	return nil
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
