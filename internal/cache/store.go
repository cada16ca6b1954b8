// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package cache provides the shared key-value cache used in front of backend
// status calls and authentication lookups. The cache is strictly an
// accelerator: every caller must treat a cache error as a miss and recompute.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a key-value store with per-entry TTL. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the value for key, with ok = false on a miss.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// RedisStore implements Store on a Redis connection. All keys share a common
// prefix naming the logical namespace.
type RedisStore struct {
	rc     *redis.Client
	prefix string
}

// NewRedisStore wraps a Redis connection into a Store.
func NewRedisStore(rc *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rc: rc, prefix: prefix + ":"}
}

// Get implements the Store interface.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.rc.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set implements the Store interface.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rc.Set(ctx, s.prefix+key, value, ttl).Err()
}

// Delete implements the Store interface.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rc.Del(ctx, s.prefix+key).Err()
}
