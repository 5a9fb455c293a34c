// Package throttle rate-limits password reset e-mails per address.
package throttle

import (
	"context"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/logging"
	"github.com/redis/go-redis/v9"
)

// Limiter reports whether an action keyed by key may run now. Release
// hands back a claim whose action did not happen.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Noop allows everything.
type Noop struct{}

func (Noop) Allow(context.Context, string) (bool, error) { return true, nil }

func (Noop) Release(context.Context, string) error { return nil }

const keyPrefix = "trackkeeper:reset:"

// RedisCooldown allows one action per key per cooldown window. The first
// caller claims the key with SET NX; later callers are refused until it
// expires. Redis failures allow the action so an outage never blocks resets.
type RedisCooldown struct {
	client   redis.UniversalClient
	cooldown time.Duration
	logger   logging.Logger
}

func NewRedisCooldown(client redis.UniversalClient, cooldown time.Duration, logger logging.Logger) *RedisCooldown {
	return &RedisCooldown{client: client, cooldown: cooldown, logger: logger.With("module", "throttle")}
}

func (r *RedisCooldown) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+key, 1, r.cooldown).Result()
	if err != nil {
		r.logger.Warn(ctx, "redis unavailable, allowing", "error", err)
		return true, err
	}
	return ok, nil
}

func (r *RedisCooldown) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

// New returns a Redis limiter when addr is set and Noop otherwise, plus a
// close func for the underlying client.
func New(addr string, cooldown time.Duration, logger logging.Logger) (Limiter, func() error) {
	if addr == "" || cooldown <= 0 {
		return Noop{}, func() error { return nil }
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return NewRedisCooldown(client, cooldown, logger), client.Close
}
