package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter int
}

// Limiter is a fixed-window counter shared by every instance through Redis.
type Limiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func New(client redis.UniversalClient, prefix string, limit int, window time.Duration) *Limiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "donations:rate_limit"
	}
	return &Limiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow counts one hit for subject within scope. A nil limiter, a
// non-positive limit or an empty subject always allows.
func (l *Limiter) Allow(ctx context.Context, scope, subject string) (Decision, error) {
	if l == nil || l.client == nil || l.limit <= 0 || l.window <= 0 {
		return Decision{Allowed: true}, nil
	}
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return Decision{Allowed: true}, nil
	}

	windowMs := l.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", l.prefix, scope, subject)
	raw, err := fixedWindowScript.Run(ctx, l.client, []string{key}, windowMs).Result()
	if err != nil {
		return Decision{Allowed: true}, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Decision{Allowed: true}, fmt.Errorf("unexpected limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return Decision{Allowed: true}, fmt.Errorf("unexpected limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return Decision{Allowed: int(count) <= l.limit, Count: int(count), RetryAfter: retryAfter}, nil
}
