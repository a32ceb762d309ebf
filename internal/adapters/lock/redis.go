package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/domain/ports"
	"github.com/kevin07696/smilepay-service/pkg/resilience"
)

// releaseScript deletes the key only if it still holds our token, so an expired
// lock re-acquired by another instance is never released by us
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLockConfig configures the distributed locker
type RedisLockConfig struct {
	// Prefix namespaces lock keys
	Prefix string
	// TTL bounds how long a crashed holder can block others
	TTL time.Duration
	// Backoff paces acquisition attempts while the key is held
	Backoff resilience.BackoffStrategy
}

// DefaultRedisLockConfig returns defaults sized for a notification round-trip
func DefaultRedisLockConfig() RedisLockConfig {
	return RedisLockConfig{
		Prefix:  "smilepay:lock:",
		TTL:     30 * time.Second,
		Backoff: resilience.LockBackoff(),
	}
}

// RedisLocker serialises callers across instances with SET NX PX
type RedisLocker struct {
	client redis.UniversalClient
	config RedisLockConfig
	logger *zap.Logger
}

// NewRedisLocker creates a distributed locker on client
func NewRedisLocker(client redis.UniversalClient, config RedisLockConfig, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		config: config,
		logger: logger,
	}
}

// Lock polls until the key is acquired or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (ports.Unlock, error) {
	redisKey := l.config.Prefix + key
	token := uuid.NewString()

	backoff := l.config.Backoff
	if backoff == nil {
		backoff = resilience.LockBackoff()
	}

	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.config.TTL).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.ErrorCodeLockError, "redis lock failed", err).
				WithDetail("key", key)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}

		timer := time.NewTimer(backoff.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, domain.WrapError(domain.ErrorCodeLockError, "lock wait cancelled", ctx.Err()).
				WithDetail("key", key)
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) unlockFunc(redisKey, token string) ports.Unlock {
	return func() {
		// Release even when the caller's context is already cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		released, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
		if err != nil {
			l.logger.Error("Failed to release redis lock",
				zap.String("key", redisKey),
				zap.Error(err),
			)
			return
		}
		if released == 0 {
			l.logger.Warn("Redis lock expired before release",
				zap.String("key", redisKey),
				zap.Duration("ttl", l.config.TTL),
			)
		}
	}
}

var _ ports.Locker = (*RedisLocker)(nil)
