// Business-model dev server: an in-memory plan API with a push channel for
// environment changes.
package main

import (
	"context"
	"os"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/cache"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/config"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/logging"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/server"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting business-model server",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)
	logger.Info("configuration loaded",
		"env", cfg.Env,
		"spelling", cfg.Spelling,
		"seed_tenant", cfg.TenantID,
	)

	ctx := context.Background()

	shutdownTraces, err := traces.Init(ctx, "business-model-server", cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTraces(context.Background()); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	opts := []server.Option{server.WithLogger(logger)}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisFromURL(ctx, cfg.RedisURL, "bm:")
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		opts = append(opts, server.WithCacheCheck("redis", rc))
	}

	// Create and run server
	srv, err := server.New(cfg, opts...)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
