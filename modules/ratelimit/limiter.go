// Package ratelimit throttles message ingest per client using a Redis
// sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerWindow is the maximum number of requests allowed in the window.
	RequestsPerWindow int
	// WindowSize is the duration of the sliding window.
	WindowSize time.Duration
	// KeyPrefix is prepended to every Redis key.
	KeyPrefix string
}

// DefaultConfig allows 30 messages per 10 seconds.
func DefaultConfig() Config {
	return Config{
		RequestsPerWindow: 30,
		WindowSize:        10 * time.Second,
		KeyPrefix:         "chat:ratelimit:",
	}
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// RetryAfter is only set when the request was denied.
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// slidingWindowScript trims the window, counts it, and records the request
// when under the limit, all in one round trip.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_size_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)

	if count < limit then
		local counter = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. counter)
		redis.call('PEXPIRE', key, window_size_ms)
		redis.call('PEXPIRE', counter_key, window_size_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_after = 0
	if #oldest >= 2 then
		retry_after = oldest[2] + window_size_ms - now
	end
	return {0, 0, retry_after}
`)

// SlidingWindowLimiter implements Limiter with a Redis sorted set of
// request timestamps per key.
type SlidingWindowLimiter struct {
	client redis.Scripter
	config Config
}

// Compile-time interface check
var _ Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(client redis.Scripter, config Config) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		config: config,
	}
}

// Allow records a request for key if the window has room.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	redisKey := l.config.KeyPrefix + key

	raw, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey, redisKey + ":counter"},
		now.UnixMilli(),
		now.Add(-l.config.WindowSize).UnixMilli(),
		l.config.RequestsPerWindow,
		l.config.WindowSize.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run rate limit script: %w", err)
	}

	if len(raw) < 3 {
		return nil, fmt.Errorf("unexpected result length: %d", len(raw))
	}
	values := make([]int64, 3)
	for i := range values {
		v, ok := raw[i].(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected type at index %d: %T", i, raw[i])
		}
		values[i] = v
	}

	res := &Result{
		Allowed:   values[0] == 1,
		Remaining: int(values[1]),
		ResetAt:   now.Add(l.config.WindowSize),
	}
	if !res.Allowed && values[2] > 0 {
		res.RetryAfter = time.Duration(values[2]) * time.Millisecond
	}
	return res, nil
}

// Config returns the limiter's configuration.
func (l *SlidingWindowLimiter) Config() Config {
	return l.config
}
