// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormun

import (
	"fmt"
	"net"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/osext"
)

// GetRedisOptions generates a redis.Options instance for the Redis connection
// described by the JORMUN_REDIS_* environment variables with the given prefix.
func GetRedisOptions(prefix string) (*redis.Options, error) {
	pass := osext.GetenvOrDefault(prefix+"_REDIS_PASSWORD", "")
	host := osext.GetenvOrDefault(prefix+"_REDIS_HOSTNAME", "localhost")
	port := osext.GetenvOrDefault(prefix+"_REDIS_PORT", "6379")
	dbNum := osext.GetenvOrDefault(prefix+"_REDIS_DB_NUM", "0")
	db, err := strconv.Atoi(dbNum)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %q", prefix+"_REDIS_DB_NUM", dbNum)
	}

	return &redis.Options{
		Network:    "tcp",
		Password:   pass,
		Addr:       net.JoinHostPort(host, port),
		ClientName: bininfo.Component(),
		DB:         db,
	}, nil
}
