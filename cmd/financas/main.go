package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"financas/internal/amqp"
	"financas/internal/backend"
	"financas/internal/cache"
	"financas/internal/cli"
	"financas/internal/config"
	"financas/internal/core"
	apphttp "financas/internal/http"
	"financas/internal/metrics"
	"financas/internal/services"
	"financas/internal/session"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting financas server", "port", cfg.Port, "backend", cfg.DataBackend)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	stores, err := backend.Open(startCtx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize record store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	m := metrics.New()
	opts := []services.Option{services.WithMetrics(m)}
	checks := map[string]apphttp.CheckFunc{}

	cacheManager := cache.NewManager(func(removed int) {
		logger.Debug("Expired summary cache entries", "removed", removed)
	})
	summaries, closeCache := setupSummaryCache(startCtx, cfg, logger, cacheManager, checks)
	opts = append(opts, services.WithSummaryCache(summaries))

	var publisher *amqp.Client
	if cfg.AMQPURL != "" {
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Writes must not depend on the broker; events are dropped until restart.
			logger.Warn("AMQP unavailable, ledger events disabled", "error", err)
		} else {
			opts = append(opts, services.WithPublisher(publisher))
			logger.Info("Publishing finance events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewFinanceService(stores.Gateway, opts...)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Service:            svc,
		Verifier:           session.NewVerifier(cfg.AuthJWTSecret, cfg.AuthJWTAudience),
		Metrics:            m,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReadyChecks:        checks,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		closeCache()
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
		if err := stores.Cleanup(); err != nil {
			logger.Warn("Failed to close record store", "error", err)
		}
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// setupSummaryCache prefers Redis when REDIS_ADDR is set so several
// instances share invalidations, falling back to the in-process LRU.
func setupSummaryCache(ctx context.Context, cfg *config.Config, logger *slog.Logger, mgr *cache.Manager, checks map[string]apphttp.CheckFunc) (cache.Cache[core.PeriodSummary], func()) {
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
			logger.Info("Using Redis summary cache", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
			return cache.NewRedisCache[core.PeriodSummary](client, "financas:summary", cfg.CacheTTL), func() { _ = client.Close() }
		}
		logger.Warn("Redis unavailable, using in-process cache", "error", err, "addr", cfg.RedisAddr)
	}

	lru := cache.NewLRUCache[core.PeriodSummary](cfg.CacheSize, cfg.CacheTTL)
	mgr.Register(lru)
	mgr.StartCleanup(time.Minute)
	logger.Info("Using in-process summary cache", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	return lru, mgr.Stop
}
