package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihttp "podsearch/internal/api/http"
	"podsearch/internal/cache"
	"podsearch/internal/config"
	"podsearch/internal/metrics"
	"podsearch/internal/publisher"
	"podsearch/internal/scheduler"
	"podsearch/internal/service"
	"podsearch/internal/source/itunes"
	"podsearch/internal/storage/postgres"
	"podsearch/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate", false, "apply pending migrations and exit")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *migrateOnly, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, migrateOnly bool, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, "podsearch", logger)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(shutdownCtx)
		}()
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdle)

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	if migrateOnly || cfg.ShouldMigrate() {
		migrator, err := postgres.NewMigrator(db, logger)
		if err != nil {
			return err
		}
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "count", applied)
		if migrateOnly {
			return nil
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
		logger.Info("publishing item events", "exchange", cfg.RabbitMQ.Exchange)
	}

	responseCache, closeCache, err := setupCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	catalog := itunes.New(itunes.Config{
		BaseURL:  cfg.Catalog.BaseURL,
		Limit:    cfg.Catalog.Limit,
		Timeout:  cfg.Catalog.Timeout,
		CacheTTL: cfg.Cache.CatalogTTL,
	}, logger, itunes.WithCache(responseCache))

	itemStore := postgres.NewItemStore(db)
	txManager := postgres.NewTransactionManager(db)

	reconciler := service.NewReconciler(itemStore, txManager, pub, logger)
	queryService := service.NewQueryService(catalog, reconciler, itemStore, cfg.Catalog.Retry, logger)

	if cfg.Refresh.Interval > 0 {
		sched := scheduler.NewScheduler(queryService, cfg.Refresh.Interval, cfg.Refresh.Timeout, logger)
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	server := apihttp.NewServer(queryService,
		apihttp.WithLogger(logger),
		apihttp.WithEnvironment(cfg.Environment),
		apihttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		apihttp.WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		apihttp.WithHealthTimeout(cfg.Server.HealthTimeout),
		apihttp.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting podsearch server",
			"addr", httpServer.Addr,
			"environment", cfg.Environment,
			"catalog", catalog.ID(),
			"refresh_interval", cfg.Refresh.Interval,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// setupCache prefers Redis when configured and falls back to process memory.
func setupCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(), func() {}, nil
	}

	rc, err := cache.NewRedisFromURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, err
	}
	logger.Info("using redis response cache")

	return rc, func() { _ = rc.Close() }, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
