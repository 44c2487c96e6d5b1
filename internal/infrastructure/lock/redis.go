package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmaflow/internal/core/id"
	corelock "pharmaflow/internal/core/lock"
	"pharmaflow/pkg/logger"
)

const redisKeyPrefix = "pharmaflow:lock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// RedisConfig tunes the distributed lock.
type RedisConfig struct {
	// TTL expires a lock whose holder died. A live holder renews it every
	// TTL/3 until release, so slow transactions keep exclusion.
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

// DefaultRedisConfig returns 10s TTL, 50 retries every 100ms.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{TTL: 10 * time.Second, Retries: 50, RetryDelay: 100 * time.Millisecond}
}

// Redis is a SET NX PX lock shared by every server instance.
type Redis struct {
	client redis.UniversalClient
	cfg    RedisConfig
}

// NewRedis creates a Redis locker. Zero config fields take defaults.
func NewRedis(client redis.UniversalClient, cfg RedisConfig) *Redis {
	def := DefaultRedisConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Retries <= 0 {
		cfg.Retries = def.Retries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	return &Redis{client: client, cfg: cfg}
}

// Acquire implements lock.Locker.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := id.New().String()

	for attempt := 0; ; attempt++ {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if attempt >= r.cfg.Retries {
			return nil, busy(key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.cfg.RetryDelay):
		}
	}

	// the request context may be cancelled before release
	base := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	renewed := make(chan struct{})
	go r.renew(base, key, token, stop, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed
			relCtx, cancel := context.WithTimeout(base, time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				logger.Warn(ctx, "lock release failed", "key", key, "error", err)
			}
		})
	}, nil
}

// renew extends the TTL until stop is closed or the token is gone.
func (r *Redis) renew(ctx context.Context, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(max(r.cfg.TTL/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		extCtx, cancel := context.WithTimeout(ctx, time.Second)
		n, err := extendScript.Run(extCtx, r.client, []string{redisKeyPrefix + key}, token, r.cfg.TTL.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			logger.Warn(ctx, "lock renewal failed", "key", key, "error", err)
		case n == 0:
			logger.Warn(ctx, "lock lost before release", "key", key)
			return
		}
	}
}

var _ corelock.Locker = (*Redis)(nil)
