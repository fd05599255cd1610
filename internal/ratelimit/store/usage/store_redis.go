package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cortex/internal/ratelimit/models"
	"cortex/pkg/requestcontext"
)

// allowScript prunes, counts, and conditionally appends in one atomic script
// evaluation. Returns {allowed, count_after, oldest_score}.
//
// KEYS[1] = zset key
// ARGV[1] = window start (unix nanos); events at exactly the window start
//           still count, so the prune bound is exclusive
// ARGV[2] = now (unix nanos)
// ARGV[3] = limit
// ARGV[4] = member (unique per event)
// ARGV[5] = ttl millis
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '0', '(' .. ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
local allowed = 0
if count < tonumber(ARGV[3]) then
  redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
  redis.call('PEXPIRE', KEYS[1], ARGV[5])
  allowed = 1
  count = count + 1
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local oldestScore = '0'
if oldest[2] then
  oldestScore = oldest[2]
end
return {allowed, count, oldestScore}
`)

// RedisStore implements the usage store on sorted sets with event timestamps
// as scores. State is shared across instances; the Lua script keeps the
// check-then-append atomic server-side.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) redisKey(key string) string {
	return "cortex:ratelimit:" + key
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	if key == "" {
		return nil, fmt.Errorf("usage key is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("usage limit and window must be positive")
	}

	now := requestcontext.Now(ctx)
	windowStart := now.Add(-window)
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

	raw, err := allowScript.Run(ctx, s.client,
		[]string{s.redisKey(key)},
		windowStart.UnixNano(),
		now.UnixNano(),
		limit,
		member,
		window.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("run usage script: %w", err)
	}

	values, ok := raw.([]any)
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected usage script reply: %v", raw)
	}
	allowed := toInt64(values[0]) == 1
	count := int(toInt64(values[1]))
	oldestNano := parseScore(values[2])

	resetAt := now.Add(window)
	if oldestNano > 0 {
		resetAt = time.Unix(0, oldestNano).Add(window)
	}

	result := &models.Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		result.RetryAfter = retryAfterSeconds(resetAt, now)
	}
	return result, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("reset usage key: %w", err)
	}
	return nil
}

func (s *RedisStore) CurrentCount(ctx context.Context, key string) (int, error) {
	count, err := s.client.ZCard(ctx, s.redisKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("count usage events: %w", err)
	}
	return int(count), nil
}

// DeleteOlderThan is a no-op for Redis: per-key TTLs already bound retention.
func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}

func parseScore(v any) int64 {
	switch s := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(s, 64)
		return int64(f)
	case int64:
		return s
	default:
		return 0
	}
}
