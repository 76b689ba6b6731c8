// Package main runs the background job worker (transcript export to S3, recording finalization).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/coordinator/config"
	"github.com/aura-webinar/coordinator/internal/recordings"
	"github.com/aura-webinar/coordinator/internal/sessions"
	"github.com/aura-webinar/coordinator/internal/transcripts"
	"github.com/aura-webinar/coordinator/internal/worker"
	"github.com/aura-webinar/coordinator/pkg/database"
	"github.com/aura-webinar/coordinator/pkg/queue"
	"github.com/aura-webinar/coordinator/pkg/redis"
	"github.com/aura-webinar/coordinator/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	jobQueue.SetMaxRetries(cfg.Worker.MaxRetries)
	processor := worker.NewProcessor(
		jobQueue,
		recordings.NewRepository(pool),
		sessions.NewRepository(pool),
		transcripts.NewRepository(pool),
		s3Client,
		logger,
	)
	processor.SetTiming(cfg.Worker.PollTimeout, cfg.Worker.RetryBackoff)

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-done
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
