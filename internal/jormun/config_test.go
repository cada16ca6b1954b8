// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormun

import (
	"testing"
	"time"
)

func TestParseConfigurationDefaults(t *testing.T) {
	cfg := ParseConfiguration()
	if cfg.ListenAddress != ":8080" {
		t.Errorf("unexpected default listen address %q", cfg.ListenAddress)
	}
	if cfg.MaxSocketsPerInstance != 8 {
		t.Errorf("unexpected default socket bound %d", cfg.MaxSocketsPerInstance)
	}
	if cfg.RateLimitPerMinute != 0 {
		t.Errorf("expected rate limiting to default to disabled, got %d", cfg.RateLimitPerMinute)
	}
}

func TestParseConfigurationEnvOverrides(t *testing.T) {
	t.Setenv("JORMUN_API_LISTEN_ADDRESS", ":9090")
	t.Setenv("JORMUN_REQUEST_TIMEOUT", "2s")
	t.Setenv("JORMUN_MAX_SOCKETS_PER_INSTANCE", "3")
	t.Setenv("JORMUN_BREAKER_FAIL_MAX", "2")
	t.Setenv("JORMUN_RATE_LIMIT_PER_MINUTE", "600")

	cfg := ParseConfiguration()
	if cfg.ListenAddress != ":9090" {
		t.Errorf("unexpected listen address %q", cfg.ListenAddress)
	}
	if cfg.RequestTimeout != 2*time.Second {
		t.Errorf("unexpected request timeout %s", cfg.RequestTimeout)
	}
	if cfg.MaxSocketsPerInstance != 3 {
		t.Errorf("unexpected socket bound %d", cfg.MaxSocketsPerInstance)
	}
	if cfg.BreakerFailMax != 2 {
		t.Errorf("unexpected breaker threshold %d", cfg.BreakerFailMax)
	}
	if cfg.RateLimitPerMinute != 600 {
		t.Errorf("unexpected rate limit %d", cfg.RateLimitPerMinute)
	}
}
