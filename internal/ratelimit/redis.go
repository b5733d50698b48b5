package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow increments the counter and sets its expiry on the first hit.
// Returns {count, ttl_ms}.
var fixedWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Redis is a fixed-window limiter shared by every instance of the service.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a limiter storing counters under prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Check counts one request for key.
func (r *Redis) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	limit, window = normalize(limit, window)

	res, err := fixedWindow.Run(ctx, r.client, []string{r.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %q: %w", key, err)
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("rate limit %q: unexpected reply %v", key, res)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	resetAt := time.Now().Add(ttl)
	if count > limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Result{Allowed: true, Remaining: limit - count, ResetAt: resetAt}, nil
}
