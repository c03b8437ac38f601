// Package main runs the event management HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-events/backend/config"
	"github.com/aura-events/backend/internal/auth"
	"github.com/aura-events/backend/internal/events"
	"github.com/aura-events/backend/internal/notify"
	"github.com/aura-events/backend/internal/realtime"
	"github.com/aura-events/backend/internal/registrations"
	"github.com/aura-events/backend/internal/server"
	"github.com/aura-events/backend/internal/store"
	"github.com/aura-events/backend/internal/store/memory"
	"github.com/aura-events/backend/internal/store/postgres"
	"github.com/aura-events/backend/pkg/database"
	"github.com/aura-events/backend/pkg/queue"
	"github.com/aura-events/backend/pkg/redis"
	"github.com/aura-events/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	gin.SetMode(cfg.Server.GinMode)

	ctx := context.Background()

	var st store.Store
	switch cfg.Database.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		st = memory.New()
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolConfig{
			MaxConns:       cfg.Database.MaxConns,
			ConnectRetries: cfg.Database.ConnectRetries,
		}, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		st = postgres.New(pool, logger.Named("store"))
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	var liveBus realtime.Bus
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, redis.Options{
			Addr:           cfg.Redis.Addr,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			ConnectRetries: cfg.Redis.ConnectRetries,
		}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		notifier = queue.NewQueue(rdb.Client, logger)
		liveBus = realtime.NewRedisBus(rdb.Client, logger.Named("live"))
	} else {
		logger.Info("REDIS_ADDR not set; notifications are logged only and live updates stay on this instance")
	}

	var media events.Presigner
	if cfg.AWS.MediaBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			media = s3Client
		}
	}

	deps := server.Deps{
		Store:    st,
		Notifier: notifier,
		Media:    media,
		Live:     realtime.NewHub(liveBus, logger.Named("live")),
		JWT:      auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours),
		Paging: registrations.Paging{
			DefaultLimit: cfg.Registration.DefaultPageSize,
			MaxLimit:     cfg.Registration.MaxPageSize,
		},
		CORS:   cfg.Server.CORSAllowedOrigins,
		Logger: logger,
	}
	router := server.NewRouter(deps, server.NewServices(deps))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Database.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
