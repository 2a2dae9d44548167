package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/adeilh/go-livescore/apicache"
	"github.com/adeilh/go-livescore/auth"
	"github.com/adeilh/go-livescore/cache/redis"
	"github.com/adeilh/go-livescore/db/sql/postgres"
	"github.com/adeilh/go-livescore/football"
	"github.com/adeilh/go-livescore/httpx"
	"github.com/adeilh/go-livescore/internal/api"
	"github.com/adeilh/go-livescore/internal/config"
	"github.com/adeilh/go-livescore/internal/logging"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.address")
	return cmd
}

func loadConfig(root *rootOptions) (config.Config, error) {
	if err := config.LoadDotEnv(root.envFiles...); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(root.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if root.logLevel != "" {
		cfg.Log.Level = root.logLevel
	}
	return cfg, nil
}

// serve wires the process together and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	manager := apicache.New(
		apicache.WithMaxEntries(cfg.Cache.MaxEntries),
		apicache.WithLimits(cfg.Limits()),
		apicache.WithCacheSweepInterval(cfg.Cache.SweepInterval),
		apicache.WithCleanupHorizon(cfg.Cache.CleanupHorizon),
		apicache.WithCounterSweepInterval(cfg.RateLimit.SweepInterval),
		apicache.WithLogger(logger),
	)
	manager.Start(ctx)
	defer manager.Close()

	if cfg.API.Key == "" {
		logger.Warn().Msg("api.key is empty; upstream requests will be rejected")
	}
	fopts := []football.Option{
		football.WithBaseURL(cfg.API.BaseURL),
		football.WithAPIKey(cfg.API.Key),
		football.WithTimeout(cfg.API.Timeout),
		football.WithRetry(1, 500*time.Millisecond),
		football.WithLogger(logger),
	}
	if store := openRedis(ctx, cfg.Redis, logger); store != nil {
		defer store.Close()
		fopts = append(fopts, football.WithSharedCache(store))
	}
	client := football.New(manager, fopts...)

	apiOpts := []api.Option{api.WithLogger(logger)}
	if cfg.Postgres.DSN != "" {
		db, err := postgres.Connect(ctx, postgres.WithDSN(cfg.Postgres.DSN))
		if err != nil {
			return err
		}
		defer closeDB(db, logger)
		apiOpts = append(apiOpts, api.WithFavorites(postgres.NewFavoritesRepository(db)))
		logger.Info().Msg("favorites enabled")
	}
	if cfg.Admin.KeyHash != "" {
		verifier, err := auth.NewAdminKeyVerifier(cfg.Admin.KeyHash)
		if err != nil {
			return err
		}
		mw, err := auth.NewMiddleware(verifier)
		if err != nil {
			return err
		}
		apiOpts = append(apiOpts, api.WithAdmin(mw))
		logger.Info().Msg("admin endpoints enabled")
	}
	handler := api.New(client, manager, apiOpts...)

	cors := httpx.DefaultCORSConfig
	if len(cfg.Server.AllowOrigins) > 0 {
		cors.AllowOrigins = cfg.Server.AllowOrigins
	}
	server := httpx.NewServer(
		httpx.WithAddress(cfg.Server.Address),
		httpx.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		httpx.WithLogger(logger),
		httpx.WithCORS(&cors),
		httpx.WithInboundRateLimit(cfg.RateLimit.InboundRPS, 0),
	)
	server.RegisterRoutes(handler.Register)

	logger.Info().
		Str("addr", cfg.Server.Address).
		Interface("limits", cfg.Limits()).
		Int("max_entries", cfg.Cache.MaxEntries).
		Msg("livescore listening")

	err := server.Start(ctx, httpx.WithShutdownTimeout(cfg.Server.ShutdownTimeout))
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("shutting down")
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// openRedis returns nil when Redis is not configured or unreachable; the
// service then runs on the in-process cache alone.
func openRedis(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) *redis.Store {
	if cfg.Addr == "" {
		return nil
	}
	store := redis.NewStore(redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, continuing without shared cache")
		_ = store.Close()
		return nil
	}
	logger.Info().Str("addr", cfg.Addr).Msg("shared cache enabled")
	return store
}

func closeDB(db *sql.DB, logger zerolog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn().Err(err).Msg("closing postgres")
	}
}
