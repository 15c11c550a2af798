package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/LinkPulse/config"
	"github.com/sifan077/LinkPulse/internal/app/cache"
	"github.com/sifan077/LinkPulse/internal/app/idgen"
	apprepository "github.com/sifan077/LinkPulse/internal/app/repository"
	appserver "github.com/sifan077/LinkPulse/internal/app/server"
	appservice "github.com/sifan077/LinkPulse/internal/app/service"
	"github.com/sifan077/LinkPulse/internal/infra/logger"
	infraNATS "github.com/sifan077/LinkPulse/internal/infra/nats"
	infraPostgres "github.com/sifan077/LinkPulse/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/LinkPulse/internal/infra/prometheus"
	infraRedis "github.com/sifan077/LinkPulse/internal/infra/redis"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet; fall back to a development one.
		bootLog, _ := logger.New(logger.Config{Development: true, Encoding: "console"})
		bootLog.Fatal("Failed to load config", zap.Error(err))
	}

	log, err := logger.Init(logger.FromApp(cfg.App, cfg.Log))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	log.Info("Configuration loaded successfully",
		zap.String("env", cfg.App.Env),
		zap.String("postgres_user", cfg.Postgres.User),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.Bool("clicks_async", cfg.Clicks.Async),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.Migrate(ctx, sqlDB, log); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infraPrometheus.NewMetrics(registry)

	linkRepo := apprepository.NewLinkRepository(gormDB)

	ids := idgen.New()
	existing, err := linkRepo.ListIDs(ctx)
	if err != nil {
		log.Fatal("Failed to load existing link ids", zap.Error(err))
	}
	ids.Seed(existing...)
	log.Info("Identifier guard seeded", zap.Int("ids", len(existing)))

	links := appservice.NewLinkStore(appservice.LinkStoreDeps{
		Repo:            linkRepo,
		Cache:           cache.New(cache.WithObserver(metrics)),
		IDs:             ids,
		Logger:          log.Named("links"),
		AdminPermission: cfg.Auth.AdminPermission,
	})

	recorder := appservice.NewClickRecorder(appservice.ClickRecorderDeps{
		Repo:    apprepository.NewClickEventRepository(gormDB),
		Logger:  log.Named("clicks"),
		Metrics: metrics,
		Timeout: cfg.Clicks.RecordTimeout,
	})
	defer recorder.Wait()

	var clicks appservice.ClickSink = recorder
	if cfg.Clicks.Async {
		natsConn, js, err := infraNATS.Connect(cfg.NATS)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()

		if err := infraNATS.EnsureClickStream(js); err != nil {
			log.Fatal("Failed to prepare click stream", zap.Error(err))
		}
		consumer := appservice.NewClickConsumer(js, recorder, log.Named("click-consumer"))
		if err := consumer.Start(ctx); err != nil {
			log.Fatal("Failed to start click consumer", zap.Error(err))
		}

		publisher := appservice.NewClickPublisher(js, recorder, log.Named("click-publisher"))
		defer publisher.Wait()
		clicks = publisher
		log.Info("Connected to NATS successfully", zap.String("url", infraNATS.URL(cfg.NATS)))
	}

	aggregator := appservice.NewAggregator(appservice.AggregatorDeps{
		Repo:         apprepository.NewAnalyticsRepository(pool),
		Logger:       log.Named("analytics"),
		Metrics:      metrics,
		QueryTimeout: cfg.Analytics.QueryTimeout,
	})

	var rdb redis.Cmdable
	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, API rate limiting disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		rdb = redisClient
		log.Info("Connected to Redis successfully")
	}

	if cfg.App.Production() {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, registry)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	server := appserver.New(appserver.Dependencies{
		Config:    cfg,
		Logger:    log,
		Redis:     rdb,
		Links:     links,
		Clicks:    clicks,
		Analytics: aggregator,
	})

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Fiber shutdown incomplete", zap.Error(err))
		}
	}()

	if err := server.Listen(cfg.App.Addr); err != nil {
		log.Error("Fiber server exited", zap.Error(err))
	}
}
