package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
)

func redisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedis_AcquireRelease(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	l := NewRedis(client, RedisConfig{TTL: time.Second, Retries: 2, RetryDelay: 10 * time.Millisecond})
	key := "test:" + id.New().String()

	release, err := l.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	release()
	exists, err := client.Exists(ctx, redisKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestRedis_ReleaseKeepsForeignToken(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	l := NewRedis(client, RedisConfig{TTL: 50 * time.Millisecond, Retries: 1, RetryDelay: 10 * time.Millisecond})
	key := "test:" + id.New().String()

	release, err := l.Acquire(ctx, key)
	require.NoError(t, err)

	// someone else overwrites the key; renewal must not touch it
	require.NoError(t, client.Set(ctx, redisKeyPrefix+key, "other", time.Second).Err())
	time.Sleep(80 * time.Millisecond)

	release()
	val, err := client.Get(ctx, redisKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, "other", val)
}

func TestRedis_RenewsWhileHeld(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	l := NewRedis(client, RedisConfig{TTL: 90 * time.Millisecond, Retries: 1, RetryDelay: 10 * time.Millisecond})
	key := "test:" + id.New().String()

	release, err := l.Acquire(ctx, key)
	require.NoError(t, err)

	// several TTLs pass while the holder is still working
	time.Sleep(400 * time.Millisecond)
	_, err = l.Acquire(ctx, key)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	release()
	release()
	exists, err := client.Exists(ctx, redisKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
