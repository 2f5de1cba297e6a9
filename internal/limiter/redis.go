package limiter

import (
	"context"
	"time"

	"voiceagent-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter coordinates limits across any number of scheduler instances.
// Both bounds are enforced with atomic Lua scripts; no leader required.
type RedisLimiter struct {
	rdb     *redis.Client
	resolve LimitsResolver

	// capTTL bounds how long a leaked concurrency slot survives a crash.
	capTTL time.Duration
	window time.Duration
	clock  func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, resolve LimitsResolver) *RedisLimiter {
	return &RedisLimiter{
		rdb:     rdb,
		resolve: resolve,
		capTTL:  30 * time.Minute,
		window:  time.Minute,
		clock:   time.Now,
	}
}

func capKey(orgID string) string  { return "limiter:concurrent:" + orgID }
func rateKey(orgID string) string { return "limiter:rate:" + orgID }

func (l *RedisLimiter) TryAcquire(ctx context.Context, orgID string) (bool, error) {
	limits := l.resolve(orgID)

	ok, err := utils.AcquireConcurrencyCap(ctx, l.rdb, capKey(orgID), limits.MaxConcurrent, l.capTTL)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	ok, err = utils.AcquireRateWindow(ctx, l.rdb, rateKey(orgID), limits.PerMinute, l.window, l.clock().UTC(), uuid.NewString())
	if err != nil || !ok {
		// Hand the concurrency slot back; the origination never happened.
		_ = utils.ReleaseConcurrencyCap(ctx, l.rdb, capKey(orgID))
		return false, err
	}
	return true, nil
}

func (l *RedisLimiter) Release(ctx context.Context, orgID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, capKey(orgID))
}
