package redislock

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// Locker serializes recommendation generation per (user, window) across
// processes. The database unique constraints stay authoritative; the lock
// only avoids duplicate provider calls racing each other.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type redisLocker struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewFromEnv builds a redis-backed locker when REDIS_ADDR is set.
// Returns (nil, nil) when unset; callers treat a nil Locker as no-op.
func NewFromEnv(log *logger.Logger) (Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		log.Info("Generation lock disabled; REDIS_ADDR not set")
		return nil, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	serviceLog := log.With("service", "GenerationLock")
	serviceLog.Info("Generation lock enabled", "addr", addr)

	return &redisLocker{log: serviceLog, rdb: rdb}, nil
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if l == nil || l.rdb == nil {
		return func() {}, true, nil
	}
	key = "lock:" + strings.TrimSpace(key)
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	ok, err := l.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.rdb.Del(relCtx, key).Err(); err != nil {
			l.log.Warn("Failed to release generation lock", "key", key, "error", err.Error())
		}
	}
	return release, true, nil
}

// Acquire is a nil-safe helper so services can hold an optional Locker.
func Acquire(ctx context.Context, l Locker, key string, ttl time.Duration) (func(), bool, error) {
	if l == nil {
		return func() {}, true, nil
	}
	return l.Acquire(ctx, key, ttl)
}
