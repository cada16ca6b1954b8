// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormun

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
	"gopkg.in/yaml.v3"
)

// Configuration contains all configuration values for the jormun-api process.
// Values are read from the YAML file named by JORMUN_CONFIG_FILE (if set),
// then overridden by environment variables.
type Configuration struct {
	ListenAddress string `yaml:"listen_address"`
	// IsPublic disables all authentication checks. Only sensible for fully
	// open-data deployments.
	IsPublic bool `yaml:"is_public"`
	// AdminToken guards the /admin/v0 API. If empty, the admin API is disabled.
	AdminToken string `yaml:"admin_token"`

	// RefreshInterval is how often the instance registry is reconciled with the
	// instances table.
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gt=0"`
	// RequestTimeout is the default deadline for one backend round-trip.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	// MaxSocketsPerInstance bounds each instance's REQ socket pool.
	MaxSocketsPerInstance int `yaml:"max_sockets_per_instance" validate:"gt=0"`
	// SocketTTL is how long a pooled socket may be reused before it is recycled.
	SocketTTL time.Duration `yaml:"socket_ttl" validate:"gt=0"`

	// AuthCacheTTL applies to cached token and authorization lookups.
	AuthCacheTTL time.Duration `yaml:"auth_cache_ttl" validate:"gt=0"`
	// StatusCacheTTL applies to cached backend status responses.
	StatusCacheTTL time.Duration `yaml:"status_cache_ttl" validate:"gt=0"`

	// BreakerFailMax is how many consecutive cache errors trip the circuit
	// breaker in front of Redis.
	BreakerFailMax uint32 `yaml:"breaker_fail_max" validate:"gt=0"`
	// BreakerResetTimeout is how long the breaker stays open before allowing a
	// trial call.
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout" validate:"gt=0"`

	// RateLimitPerMinute applies per API token (or per client IP for anonymous
	// requests) on all dispatching endpoints. Zero disables rate limiting.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" validate:"gte=0"`
}

func defaultConfiguration() Configuration {
	return Configuration{
		ListenAddress:         ":8080",
		RefreshInterval:       60 * time.Second,
		RequestTimeout:        10 * time.Second,
		MaxSocketsPerInstance: 8,
		SocketTTL:             10 * time.Minute,
		AuthCacheTTL:          300 * time.Second,
		StatusCacheTTL:        60 * time.Second,
		BreakerFailMax:        5,
		BreakerResetTimeout:   60 * time.Second,
	}
}

// ParseConfiguration obtains a Configuration instance for the current process.
// Aborts on error.
func ParseConfiguration() Configuration {
	logg.Debug("parsing configuration...")
	cfg := defaultConfiguration()

	if path := os.Getenv("JORMUN_CONFIG_FILE"); path != "" {
		buf := must.Return(os.ReadFile(path))
		must.Succeed(yaml.Unmarshal(buf, &cfg))
	}

	cfg.ListenAddress = osext.GetenvOrDefault("JORMUN_API_LISTEN_ADDRESS", cfg.ListenAddress)
	cfg.IsPublic = cfg.IsPublic || osext.GetenvBool("JORMUN_IS_PUBLIC")
	if token := os.Getenv("JORMUN_ADMIN_TOKEN"); token != "" {
		cfg.AdminToken = token
	}
	overrideDuration := func(target *time.Duration, key string) {
		if val := os.Getenv(key); val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				logg.Fatal("malformed %s: %s", key, err.Error())
			}
			*target = d
		}
	}
	overrideDuration(&cfg.RefreshInterval, "JORMUN_REFRESH_INTERVAL")
	overrideDuration(&cfg.RequestTimeout, "JORMUN_REQUEST_TIMEOUT")
	overrideDuration(&cfg.SocketTTL, "JORMUN_SOCKET_TTL")
	overrideDuration(&cfg.AuthCacheTTL, "JORMUN_AUTH_CACHE_TTL")
	overrideDuration(&cfg.StatusCacheTTL, "JORMUN_STATUS_CACHE_TTL")
	overrideDuration(&cfg.BreakerResetTimeout, "JORMUN_BREAKER_RESET_TIMEOUT")
	overrideInt := func(target *int, key string) {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				logg.Fatal("malformed %s: %s", key, err.Error())
			}
			*target = i
		}
	}
	overrideInt(&cfg.MaxSocketsPerInstance, "JORMUN_MAX_SOCKETS_PER_INSTANCE")
	overrideInt(&cfg.RateLimitPerMinute, "JORMUN_RATE_LIMIT_PER_MINUTE")
	if val := os.Getenv("JORMUN_BREAKER_FAIL_MAX"); val != "" {
		i, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			logg.Fatal("malformed JORMUN_BREAKER_FAIL_MAX: %s", err.Error())
		}
		cfg.BreakerFailMax = uint32(i)
	}

	err := validator.New().Struct(cfg)
	if err != nil {
		logg.Fatal("invalid configuration: %s", err.Error())
	}
	return cfg
}

// GetDatabaseURLFromEnvironment reads the JORMUN_DB_* environment variables.
func GetDatabaseURLFromEnvironment() (dbURL url.URL, dbName string) {
	dbName = osext.GetenvOrDefault("JORMUN_DB_NAME", "jormun")
	return must.Return(easypg.URLFrom(easypg.URLParts{
		HostName:          osext.GetenvOrDefault("JORMUN_DB_HOSTNAME", "localhost"),
		Port:              osext.GetenvOrDefault("JORMUN_DB_PORT", "5432"),
		UserName:          osext.GetenvOrDefault("JORMUN_DB_USERNAME", "postgres"),
		Password:          os.Getenv("JORMUN_DB_PASSWORD"),
		ConnectionOptions: os.Getenv("JORMUN_DB_CONNECTION_OPTIONS"),
		DatabaseName:      dbName,
	})), dbName
}
