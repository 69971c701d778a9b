package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/LinkPulse/config"
	appcache "github.com/sifan077/LinkPulse/internal/app/cache"
	appmetrics "github.com/sifan077/LinkPulse/internal/app/metrics"
	apprepository "github.com/sifan077/LinkPulse/internal/app/repository"
	appserver "github.com/sifan077/LinkPulse/internal/app/server"
	appservice "github.com/sifan077/LinkPulse/internal/app/service"
	"github.com/sifan077/LinkPulse/internal/app/shortcode"
	inthttp "github.com/sifan077/LinkPulse/internal/http/handler"
	"github.com/sifan077/LinkPulse/internal/http/middleware"
	httpUtil "github.com/sifan077/LinkPulse/internal/http/util"
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

	log := logger.MustInit(logger.Config{
		Development: os.Getenv("APP_ENV") != "production",
		Service:     "linkpulse",
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	if cfg.App.LogLevel != "" {
		log, err = logger.Init(logger.Config{
			Development: cfg.App.IsDevelopment(),
			Level:       cfg.App.LogLevel,
			Service:     "linkpulse",
		})
		if err != nil {
			logger.L().Fatal("Invalid log level", zap.Error(err))
		}
	}

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatal("Invalid timezone", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("env", cfg.App.Env),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Bool("prometheus_enabled", cfg.Prometheus.Enabled),
		zap.Int("code_length", cfg.Shortener.CodeLength),
	)

	var recorder appmetrics.Recorder = appmetrics.NewNoop()
	if cfg.Prometheus.Enabled {
		reg := infraPrometheus.NewRegistry()
		promRecorder, err := appmetrics.NewPrometheus(reg)
		if err != nil {
			log.Fatal("Failed to register metrics", zap.Error(err))
		}
		recorder = promRecorder

		promServer := infraPrometheus.NewServer(cfg.Prometheus, reg)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.String("addr", promServer.Addr))
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
		log.Info("Prometheus metrics server disabled")
	}

	checks := map[string]inthttp.Pinger{}

	var linkRepo apprepository.LinkRepository
	switch cfg.Store.Driver {
	case "memory":
		linkRepo = apprepository.NewMemoryLinkRepository()
		log.Warn("Using in-memory store; links are lost on restart")
	default:
		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pool.Close()
		checks["postgres"] = pool

		gormDB, err := infraPostgres.NewGorm(pool, log)
		if err != nil {
			log.Fatal("Failed to open GORM connection", zap.Error(err))
		}
		if err := infraPostgres.Migrate(ctx, gormDB); err != nil {
			log.Fatal("Failed to run database migrations", zap.Error(err))
		}
		linkRepo = apprepository.NewLinkRepository(gormDB)
		log.Info("Connected to Postgres successfully")
	}

	generator := shortcode.NewGenerator(shortcode.Deps{
		Lookup:  linkRepo,
		Config:  cfg.Shortener.GeneratorConfig(),
		Logger:  log,
		Metrics: recorder,
		Filter:  shortcode.NewFilter(cfg.Shortener.BloomCapacity, cfg.Shortener.BloomFPRate),
	})

	refresher := appservice.NewCodeFilterRefresher(log, linkRepo, generator, cfg.App.CodeFilterRefresh)
	if cfg.App.CodeFilterRefresh > 0 {
		if err := refresher.Start(ctx); err != nil {
			log.Fatal("Failed to load known codes", zap.Error(err))
		}
		defer refresher.Stop()
	} else if _, err := refresher.Refresh(ctx); err != nil {
		log.Fatal("Failed to load known codes", zap.Error(err))
	}

	svcDeps := appservice.Deps{
		Links:     linkRepo,
		Generator: generator,
		Metrics:   recorder,
		Logger:    log,
		Config: appservice.Config{
			MaxURLLength: cfg.Shortener.MaxURLLength,
			TopN:         cfg.Shortener.TopN,
			Location:     loc,
		},
	}

	var rateLimiter middleware.Counter
	if cfg.Redis.Enabled {
		redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		checks["redis"] = inthttp.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})

		svcDeps.Cache = appcache.NewLinkCache(redisClient, appcache.DefaultLinkTTL)
		rateLimiter = middleware.NewRedisCounter(redisClient)
		log.Info("Connected to Redis successfully")
	}

	var consumerDone <-chan struct{}
	if cfg.NATS.Enabled {
		natsConn, js, err := infraNATS.Connect(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()
		checks["nats"] = inthttp.PingFunc(func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		})

		tracker := appservice.NewClickTracker(linkRepo, recorder, log)
		consumer := appservice.NewClickConsumer(js, log, tracker)
		if err := consumer.Start(ctx); err != nil {
			log.Fatal("Failed to start click consumer", zap.Error(err))
		}
		consumerDone = consumer.Done()
		svcDeps.Clicks = appservice.NewClickPublisher(js)
		log.Info("Connected to NATS successfully; clicks are recorded asynchronously")
	}

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		LinkService: appservice.NewLinkService(svcDeps),
		Tokens:      httpUtil.NewTokenSigner([]byte(cfg.App.Secret), cfg.App.TokenTTL),
		BaseURL:     cfg.App.BaseURL,
		CORSOrigins: cfg.App.CORSOrigins,
		Checks:      checks,
		RateLimiter: rateLimiter,
		RateLimit: middleware.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		},
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.App.ListenAddr))
		errCh <- server.Listen(cfg.App.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Fiber server exited", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shut down HTTP server", zap.Error(err))
		}
		if consumerDone != nil {
			select {
			case <-consumerDone:
			case <-shutdownCtx.Done():
				log.Warn("Click consumer did not stop before the shutdown deadline")
			}
		}
	}
}
