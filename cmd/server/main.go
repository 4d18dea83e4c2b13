package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"screener/internal/platform/config"
	"screener/internal/platform/httpserver"
	"screener/internal/platform/kafka"
	"screener/internal/platform/logger"
	platformmetrics "screener/internal/platform/metrics"
	"screener/internal/platform/mongo"
	"screener/internal/platform/postgres"
	"screener/internal/platform/redis"
	"screener/internal/screening/cache"
	"screener/internal/screening/handler"
	screeningmetrics "screener/internal/screening/metrics"
	"screener/internal/screening/provider/ofac"
	"screener/internal/screening/publisher"
	"screener/internal/screening/service"
	"screener/internal/screening/store"
)

const shutdownGrace = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "screener: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat, "screener")
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.HealthChecker{}

	verdicts, closeCache, err := buildCache(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeCache()

	people, closeStore, err := buildStore(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	screeningMetrics := screeningmetrics.New()
	opts := []service.Option{
		service.WithLogger(log.Named("screening")),
		service.WithMetrics(screeningMetrics),
		service.WithCacheTTL(cfg.CacheTTL),
	}

	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := kafka.EnsureTopic(ctx, producer, cfg.Kafka.Topic); err != nil {
			return err
		}
		checks["kafka"] = kafka.HealthCheck{Client: producer}
		opts = append(opts, service.WithPublisher(publisher.NewKafkaPublisher(producer, cfg.Kafka.Topic)))
		log.Info("publishing screening events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	client := ofac.New(ofac.Config{
		URL:      cfg.Provider.URL,
		APIKey:   cfg.Provider.APIKey,
		Timeout:  cfg.Provider.Timeout,
		MinScore: cfg.Provider.MinScore,
		Sources:  cfg.Provider.Sources,
		Types:    cfg.Provider.Types,
	}, log.Named("ofac"))

	svc, err := service.New(client, verdicts, people, opts...)
	if err != nil {
		return err
	}

	router := newRouter(log.Named("http"), platformmetrics.New(), platformmetrics.Handler(),
		handler.New(svc, log.Named("handler"), cfg.Server.MaxBatchSize, checks))

	return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, router), shutdownGrace, log)
}

func buildCache(ctx context.Context, cfg config.Config, log *zap.Logger, checks map[string]handler.HealthChecker) (service.VerdictCache, func(), error) {
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rc == nil {
		log.Warn("REDIS_URL not set, using in-memory verdict cache")
		mem := cache.NewInMemoryCache()
		checks["cache"] = mem
		return mem, func() {}, nil
	}
	checks["cache"] = rc
	return cache.NewRedisCache(rc.Client), func() { _ = rc.Close() }, nil
}

func buildStore(ctx context.Context, cfg config.Config, log *zap.Logger, checks map[string]handler.HealthChecker) (service.PersonStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Store.Postgres, store.PostgresSchema)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewPostgresStore(db)
		checks["store"] = s
		return s, closeDB(db), nil
	case config.BackendMemory:
		log.Warn("using in-memory person store")
		s := store.NewInMemoryStore()
		checks["store"] = s
		return s, func() {}, nil
	default:
		mc, err := mongo.New(ctx, cfg.Store.Mongo)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewMongoStore(mc.DB)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = mc.Close(context.Background())
			return nil, nil, err
		}
		checks["store"] = s
		return s, func() { _ = mc.Close(context.Background()) }, nil
	}
}

func closeDB(db *sql.DB) func() {
	return func() { _ = db.Close() }
}
