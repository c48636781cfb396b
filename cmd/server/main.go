package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/obeyhq/backend/api/handler"
	"github.com/obeyhq/backend/internal/config"
	"github.com/obeyhq/backend/internal/estimator"
	"github.com/obeyhq/backend/internal/infrastructure/monitor"
	pgInfra "github.com/obeyhq/backend/internal/infrastructure/postgres"
	redisInfra "github.com/obeyhq/backend/internal/infrastructure/redis"
	"github.com/obeyhq/backend/internal/router"
	"github.com/obeyhq/backend/internal/services"
	"github.com/obeyhq/backend/internal/services/shutdown"
	"github.com/obeyhq/backend/pkg/clock"
	"github.com/obeyhq/backend/pkg/httpcontext"
	"github.com/obeyhq/backend/pkg/logger"
	"github.com/obeyhq/backend/repository"
	boltRepo "github.com/obeyhq/backend/repository/bolt"
	memoryRepo "github.com/obeyhq/backend/repository/memory"
	postgresRepo "github.com/obeyhq/backend/repository/postgres"
	lifecycleUC "github.com/obeyhq/backend/usecase/lifecycle"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Name:     cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := shutdown.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	store, pool := openStore(appCtx, cfg, zapLogger, manager)

	var redisClient *goRedis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisInfra.NewClient(cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	est := buildEstimator(cfg, redisClient, zapLogger)
	svc := lifecycleUC.New(store, est, clock.System(), cfg.Estimator.Timeout, zapLogger)

	if cfg.Sweep.Enabled {
		sweeper := services.NewSweeper(svc, cfg.Sweep.Schedule, zapLogger)
		if err := sweeper.Start(); err != nil {
			zapLogger.Fatal("sweeper failed to start", zap.Error(err))
		}
		manager.Register("sweeper", sweeper.Stop)
	}

	mon := monitor.New(cfg.Storage.Driver, pool, redisClient, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Task:   apiHandler.NewTaskHandler(svc, ctxAdapter, zapLogger),
		Status: apiHandler.NewStatusHandler(svc, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	r := router.New(handlers)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger, manager *shutdown.Manager) (repository.Store, *pgxpool.Pool) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		return postgresRepo.New(pool), pool
	case config.DriverBolt:
		boltStore, err := boltRepo.Open(cfg.Storage.BoltPath)
		if err != nil {
			zapLogger.Fatal("bolt store failed to open", zap.Error(err))
		}
		manager.Register("bolt", func(ctx context.Context) error {
			return boltStore.Close()
		})
		return boltStore, nil
	default:
		zapLogger.Info("using in-memory storage, state is not durable")
		return memoryRepo.New(), nil
	}
}

func buildEstimator(cfg *config.Config, redisClient *goRedis.Client, zapLogger *zap.Logger) estimator.Estimator {
	if cfg.Estimator.APIKey == "" {
		zapLogger.Warn("no estimator API key configured, estimates are rule-based only")
		return estimator.NewRuleBased()
	}

	var est estimator.Estimator = estimator.NewOpenAI(estimator.OpenAIConfig{
		APIKey:        cfg.Estimator.APIKey,
		BaseURL:       cfg.Estimator.BaseURL,
		ValidateModel: cfg.Estimator.ValidateModel,
		EstimateModel: cfg.Estimator.EstimateModel,
		CommentModel:  cfg.Estimator.CommentModel,
	}, zapLogger)

	if redisClient != nil {
		est = estimator.NewCached(est, redisClient, cfg.Redis.CacheTTL, zapLogger)
	}
	return est
}
