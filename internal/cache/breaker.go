// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sapcc/go-bits/logg"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned by BreakerStore while the circuit breaker is
// open. Callers treat it like any other cache error, i.e. as a miss.
var ErrCircuitOpen = errors.New("cache circuit breaker is open")

type breakerResult struct {
	value string
	ok    bool
}

// BreakerStore wraps any Store with a circuit breaker so that a failing cache
// backend cannot stall request serving. After failMax consecutive errors the
// breaker opens and every call fails fast without touching the inner store;
// after resetTimeout one trial call is let through to check for recovery.
//
// One breaker guards all operations collectively, since they all talk to the
// same backend connection.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[breakerResult]
}

// NewBreakerStore wraps the given Store with a circuit breaker.
func NewBreakerStore(inner Store, failMax uint32, resetTimeout time.Duration) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker[breakerResult](gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 1,
		Timeout:     resetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failMax
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logg.Info("cache circuit breaker %q: %s -> %s", name, from.String(), to.String())
		},
	})
	return &BreakerStore{inner: inner, cb: cb}
}

func mapBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// Get implements the Store interface.
func (s *BreakerStore) Get(ctx context.Context, key string) (string, bool, error) {
	result, err := s.cb.Execute(func() (breakerResult, error) {
		value, ok, err := s.inner.Get(ctx, key)
		return breakerResult{value, ok}, err
	})
	return result.value, result.ok, mapBreakerError(err)
}

// Set implements the Store interface.
func (s *BreakerStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (breakerResult, error) {
		return breakerResult{}, s.inner.Set(ctx, key, value, ttl)
	})
	return mapBreakerError(err)
}

// Delete implements the Store interface.
func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.cb.Execute(func() (breakerResult, error) {
		return breakerResult{}, s.inner.Delete(ctx, key)
	})
	return mapBreakerError(err)
}
