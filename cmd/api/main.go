// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package apicmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dlmiddlecote/sqlstats"
	"github.com/go-redis/redis_rate/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/httpapi/pprofapi"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	adminapi "github.com/sapcc/jormun/internal/api/admin"
	jormunv1 "github.com/sapcc/jormun/internal/api/jormun"
	"github.com/sapcc/jormun/internal/auth"
	"github.com/sapcc/jormun/internal/cache"
	"github.com/sapcc/jormun/internal/dispatch"
	"github.com/sapcc/jormun/internal/jormun"
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the jormun-api server component.",
		Long:  "Run the jormun-api server component. Configuration is read from environment variables as described in README.md.",
		Args:  cobra.NoArgs,
		Run:   run,
	}
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	_, _ = cmd, args

	bininfo.SetTaskName("api")
	logg.Info("starting %s %s", bininfo.Component(), bininfo.VersionOr("rolling"))

	cfg := jormun.ParseConfiguration()
	ctx := httpext.ContextWithSIGINT(cmd.Context(), 10*time.Second)
	auditor := initAuditor()

	dbURL, dbName := jormun.GetDatabaseURLFromEnvironment()
	dbConn := must.Return(easypg.Connect(dbURL, jormun.DBConfiguration()))
	prometheus.MustRegister(sqlstats.NewStatsCollector(dbName, dbConn))
	db := jormun.InitORM(dbConn)

	rc := must.Return(initRedis())
	var store cache.Store
	if rc != nil {
		// the breaker keeps a flaky Redis from slowing down every request
		store = cache.NewBreakerStore(
			cache.NewRedisStore(rc, "jormun"),
			cfg.BreakerFailMax, cfg.BreakerResetTimeout)
	}

	checker := auth.NewChecker(db, store, cfg)
	mgr := dispatch.NewManager(db, store, cfg)
	defer mgr.Close()

	rle := (*jormun.RateLimitEngine)(nil)
	if rc != nil && cfg.RateLimitPerMinute > 0 {
		rle = jormun.NewRateLimitEngine(rc, redis_rate.PerMinute(cfg.RateLimitPerMinute))
	}

	// start background goroutines
	go mgr.RunRefresh(ctx)

	// wire up HTTP handlers
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"HEAD", "GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "User-Agent", "Authorization", "X-Admin-Token"},
	})
	handler := httpapi.Compose(
		jormunv1.NewAPI(mgr, checker, rle),
		adminapi.NewAPI(cfg, db, auditor),
		httpapi.HealthCheckAPI{
			SkipRequestLog: true,
			Check: func() error {
				return db.Db.PingContext(ctx)
			},
		},
		httpapi.WithGlobalMiddleware(corsMiddleware.Handler),
		pprofapi.API{IsAuthorized: pprofapi.IsRequestFromLocalhost},
	)
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	// start HTTP server
	must.Succeed(httpext.ListenAndServeContext(ctx, cfg.ListenAddress, mux))
}

// Note that, since Redis is optional, this may return (nil, nil).
func initRedis() (*redis.Client, error) {
	if !osext.GetenvBool("JORMUN_REDIS_ENABLE") {
		return nil, nil
	}
	logg.Debug("initializing Redis connection...")

	opts, err := jormun.GetRedisOptions("JORMUN")
	if err != nil {
		return nil, fmt.Errorf("cannot parse Redis URL: %s", err.Error())
	}
	return redis.NewClient(opts), nil
}
