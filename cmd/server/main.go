package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/page-builder/internal/config"
	"github.com/iliyamo/page-builder/internal/database"
	"github.com/iliyamo/page-builder/internal/handler"
	"github.com/iliyamo/page-builder/internal/logging"
	"github.com/iliyamo/page-builder/internal/middleware"
	"github.com/iliyamo/page-builder/internal/queue"
	"github.com/iliyamo/page-builder/internal/repository"
	"github.com/iliyamo/page-builder/internal/router"
	"github.com/iliyamo/page-builder/internal/service"
	"github.com/iliyamo/page-builder/internal/storage"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Accounts (MySQL).
	sqlDB, err := database.OpenMySQL(ctx, database.MySQLDSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		logger.Fatal("mysql", zap.Error(err))
	}
	defer sqlDB.Close()

	// Pages, globals and block metadata (MongoDB).
	mongoClient, mdb, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Fatal("mongo", zap.Error(err))
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	if err := repository.EnsureIndexes(ctx, mdb); err != nil {
		logger.Fatal("mongo indexes", zap.Error(err))
	}

	users := repository.NewUserRepo(sqlDB)

	var (
		events    service.EventPublisher = queue.Nop{}
		publisher *queue.Publisher
	)
	if cfg.RabbitURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitURL, logger)
		events = publisher
		if cfg.RunConsumer {
			go queue.StartActivityConsumer(ctx, cfg.RabbitURL, cfg.ActivityLogDir, logger)
		}
	} else {
		logger.Info("RABBITMQ_URL not set; activity events disabled")
	}

	svc := service.New(service.Deps{
		Pages:    repository.NewPageRepo(mdb),
		Globals:  repository.NewGlobalRepo(mdb),
		Metadata: repository.NewMetadataRepo(mdb),
		Users:    users,
		Events:   events,
		Log:      logger,
	})

	deps := router.Deps{
		Service:        svc,
		Users:          users,
		MaxUploadBytes: cfg.Media.MaxFileBytes,
		JWTSecret:      cfg.JWTSecret,
		Timeout:        cfg.RequestTimeout,
		Checks: map[string]handler.Pinger{
			"mysql": handler.PingFunc(sqlDB.PingContext),
			"mongo": handler.PingFunc(func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }),
		},
	}

	// Redis backs rate limiting and the page cache; both are skipped
	// when it is unreachable.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
		cacheCfg := config.LoadCacheConfig()
		deps.RateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
		deps.PageCache = middleware.NewPageCache(cacheCfg, rdb, logger)
		deps.BumpCache = middleware.BumpOnWrite(cacheCfg, rdb, logger)
		deps.Checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		logger.Warn("redis unavailable; rate limiting and page cache disabled")
	}

	if cfg.Media.Endpoint != "" {
		store, err := storage.NewMinioStore(ctx, cfg.Media)
		if err != nil {
			logger.Fatal("media store", zap.Error(err))
		}
		deps.Media = store
	} else {
		logger.Info("MINIO_ENDPOINT not set; uploads disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)
	e.Use(middleware.RequestLogger(logger))
	router.Register(e, deps)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	if publisher != nil {
		if err := publisher.Close(shutdownCtx); err != nil {
			logger.Warn("activity events not flushed", zap.Error(err))
		}
	}
}
