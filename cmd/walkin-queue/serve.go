package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"qms/walkin-queue/internal/config"
	"qms/walkin-queue/internal/database"
	"qms/walkin-queue/internal/eta"
	"qms/walkin-queue/internal/httpapi"
	"qms/walkin-queue/internal/service"
	"qms/walkin-queue/internal/store"
	"qms/walkin-queue/internal/store/memory"
	"qms/walkin-queue/internal/store/postgres"
	"qms/walkin-queue/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "walkin-queue"

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before serving (postgres only)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, serviceName)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	cache, closeCache := openStatsCache(ctx, cfg, logger)
	defer closeCache()

	svc := service.New(st, service.Options{
		DefaultServiceSeconds: cfg.DefaultServiceSeconds,
		StatsCache:            cache,
		StatsCacheTTL:         cfg.StatsCacheTTL,
		Location:              loc,
		Logger:                logger,
	})
	handler := httpapi.NewHandler(svc)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		PerMinute: cfg.RateLimitPerMinute,
		Burst:     cfg.RateLimitBurst,
	})
	if cfg.StaffAPIToken == "" {
		logger.Warn("STAFF_API_TOKEN is empty; staff endpoints are unauthenticated")
	}

	routes := httpapi.StaffAuth(cfg.StaffAPIToken, handler.Routes())
	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(logger, limiter.Middleware(routes)), serviceName)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("walkin-queue listening", "addr", server.Addr, "backend", cfg.StoreBackend, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("walkin-queue stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.Open(memory.Options{}), nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateOnStart {
		db := stdlib.OpenDBFromPool(pool)
		err := database.MigrateDB(ctx, db, "up")
		_ = db.Close()
		if err != nil {
			pool.Close()
			return nil, err
		}
	}
	return postgres.NewStore(pool), nil
}

// openStatsCache connects the redis stats cache when REDIS_ADDR is set. Serving continues without
// a cache when redis cannot be reached.
func openStatsCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (eta.StatsCache, func()) {
	noop := func() {}
	if cfg.RedisAddr == "" || cfg.StatsCacheTTL <= 0 {
		return nil, noop
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable; stats cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil, noop
	}
	logger.Info("stats cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.StatsCacheTTL)
	return eta.NewRedisStatsCache(client), func() { _ = client.Close() }
}
