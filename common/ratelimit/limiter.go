// Package ratelimit throttles write traffic with Redis-backed
// fixed-window counters. The counter update runs as a Lua script so
// check and increment are one atomic round trip.
package ratelimit

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Result contains the outcome of a rate limit check
type Result struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the window resets (0 if allowed)
}

// RateLimiter provides Redis-backed rate limiting
type RateLimiter struct {
	redis  *redis.Client
	script *redis.Script
	logger Logger
}

// NewRateLimiter creates a new rate limiter with the embedded Lua script
func NewRateLimiter(redisClient *redis.Client, logger Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		logger: logger,
	}
}

// CheckGlobalLimit checks the service-wide write limit
func (r *RateLimiter) CheckGlobalLimit(ctx context.Context, limit int64) (*Result, error) {
	return r.checkLimit(ctx, "scorecard:rate:global", limit, 60)
}

// CheckRoundLimit checks the per-round write limit, so one hot round
// cannot starve the others
func (r *RateLimiter) CheckRoundLimit(ctx context.Context, roundID string, limit int64) (*Result, error) {
	key := fmt.Sprintf("scorecard:rate:round:%s", roundID)
	return r.checkLimit(ctx, key, limit, 60)
}

// checkLimit executes the rate limit Lua script
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	raw, err := r.script.Run(ctx, r.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		r.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	// Script returns {allowed, current_count, limit, retry_after}
	arr, ok := raw.([]interface{})
	if !ok || len(arr) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}

	result := &Result{
		Allowed:           arr[0].(int64) == 1,
		CurrentCount:      arr[1].(int64),
		Limit:             arr[2].(int64),
		RetryAfterSeconds: arr[3].(int64),
	}

	if !result.Allowed {
		r.logger.Warn("rate limit exceeded",
			"key", key,
			"current", result.CurrentCount,
			"limit", limit,
			"retry_after", result.RetryAfterSeconds)
	}

	return result, nil
}

// CurrentCount returns the counter without incrementing (for monitoring)
func (r *RateLimiter) CurrentCount(ctx context.Context, key string) (int64, error) {
	count, err := r.redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

// Reset clears a rate limit counter (for testing/admin)
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.redis.Del(ctx, key).Err()
}
