// Package storage opens the PostgreSQL and Redis connections shared by the
// stores, retrying while the backing services come up.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/mbd888/moodguard/internal/retry"
)

// Pool settings for the PostgreSQL connection pool.
const (
	MaxOpenConns    = 25
	MaxIdleConns    = 5
	ConnMaxLifetime = 5 * time.Minute
)

// OpenPostgres opens and pings a PostgreSQL pool.
func OpenPostgres(ctx context.Context, dsn string, policy retry.Policy, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(MaxOpenConns)
	db.SetMaxIdleConns(MaxIdleConns)
	db.SetConnMaxLifetime(ConnMaxLifetime)

	err = policy.Do(ctx, db.PingContext, func(attempt int, err error) {
		logger.Warn("database not reachable, retrying", "attempt", attempt, "url", MaskDSN(dsn), "error", err)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("using PostgreSQL storage", "url", MaskDSN(dsn))
	return db, nil
}

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, rawURL string, policy retry.Policy, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	err = policy.Do(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, func(attempt int, err error) {
		logger.Warn("redis not reachable, retrying", "attempt", attempt, "addr", opts.Addr, "error", err)
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("using Redis for alert sessions and rate limiting", "addr", opts.Addr)
	return client, nil
}

// MaskDSN hides the password in a connection string for logging.
func MaskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
