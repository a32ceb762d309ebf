package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// setupRedis connects to REDIS_URL or skips the test
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping redis lock tests")
	}
	opt, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLocker_LockAndRelease(t *testing.T) {
	client := setupRedis(t)
	cfg := DefaultRedisLockConfig()
	cfg.Prefix = "smilepay:test:" + t.Name() + ":"
	locker := NewRedisLocker(client, cfg, zaptest.NewLogger(t))

	unlock, err := locker.Lock(context.Background(), "SO1001")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "SO1001")
	assert.Error(t, err, "second holder must wait")

	unlock()

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	unlock2, err := locker.Lock(ctx2, "SO1001")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ReleaseDoesNotStealForeignLock(t *testing.T) {
	client := setupRedis(t)
	cfg := DefaultRedisLockConfig()
	cfg.Prefix = "smilepay:test:" + t.Name() + ":"
	cfg.TTL = 100 * time.Millisecond
	locker := NewRedisLocker(client, cfg, zaptest.NewLogger(t))

	unlock, err := locker.Lock(context.Background(), "SO1001")
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, client.Set(context.Background(), cfg.Prefix+"SO1001", "other-owner", time.Minute).Err())

	unlock()

	val, err := client.Get(context.Background(), cfg.Prefix+"SO1001").Result()
	require.NoError(t, err)
	assert.Equal(t, "other-owner", val)
	client.Del(context.Background(), cfg.Prefix+"SO1001")
}
