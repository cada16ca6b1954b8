// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormun

import (
	"context"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitEngine provides the rate limiting strategy used by the public API.
// Limits are counted per API token (or per client IP for anonymous requests)
// in Redis with a sliding window.
type RateLimitEngine struct {
	Limit   redis_rate.Limit
	limiter *redis_rate.Limiter
}

// NewRateLimitEngine initializes a RateLimitEngine on the given Redis connection.
func NewRateLimitEngine(rc *redis.Client, limit redis_rate.Limit) *RateLimitEngine {
	return &RateLimitEngine{Limit: limit, limiter: redis_rate.NewLimiter(rc)}
}

// RateLimitAllows checks whether the given rate limit key (token or client IP)
// may perform another dispatch right now.
func (e *RateLimitEngine) RateLimitAllows(ctx context.Context, key string) (*redis_rate.Result, error) {
	return e.limiter.Allow(ctx, "ratelimit:"+key, e.Limit)
}
