// Package main runs the live session coordinator HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/coordinator/config"
	"github.com/aura-webinar/coordinator/internal/archive"
	"github.com/aura-webinar/coordinator/internal/auth"
	"github.com/aura-webinar/coordinator/internal/classroom"
	"github.com/aura-webinar/coordinator/internal/middleware"
	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/internal/realtime"
	"github.com/aura-webinar/coordinator/internal/recordings"
	"github.com/aura-webinar/coordinator/internal/sessionlog"
	"github.com/aura-webinar/coordinator/internal/sessions"
	"github.com/aura-webinar/coordinator/internal/transcripts"
	"github.com/aura-webinar/coordinator/internal/worker"
	"github.com/aura-webinar/coordinator/pkg/database"
	"github.com/aura-webinar/coordinator/pkg/queue"
	"github.com/aura-webinar/coordinator/pkg/redis"
	"github.com/aura-webinar/coordinator/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub, cfg.Classroom.SubscriberBuffer)
	defer hub.Close()

	// Persistence
	sessionRepo := sessions.NewRepository(pool)
	sessionLogRepo := sessionlog.NewRepository(pool)
	recordingRepo := recordings.NewRepository(pool)
	transcriptRepo := transcripts.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	jobQueue.SetMaxRetries(cfg.Worker.MaxRetries)

	archiver := archive.NewArchiver(hub, archive.Stores{
		Sessions:    sessionRepo,
		Attendance:  sessionLogRepo,
		Recordings:  recordingRepo,
		Transcripts: transcriptRepo,
		Jobs:        jobQueue,
	}, 0, logger)
	hub.SetObserverChangeHandler(archiver.ObserverChanged)

	// Sessions
	coordinator := classroom.NewCoordinator(classroom.Config{
		ReactionTTL:      cfg.Classroom.ReactionTTL,
		MaxMessageLength: cfg.Classroom.MaxChatMessageLength,
		RecentChatLimit:  cfg.Classroom.RecentChatLimit,
		EndedRetention:   cfg.Classroom.EndedSessionRetention,
	}, hub, logger)
	coordinator.OnSessionCreated(archiver.Watch)

	classroomHandler := classroom.NewHandler(coordinator, logger)
	sessionLogHandler := sessionlog.NewHandler(sessionLogRepo, logger)
	recordingHandler := recordings.NewHandler(recordingRepo, logger)

	identityValidate := func(token string) (models.Identity, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return models.Identity{}, err
		}
		return claims.Identity(), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if !rdb.Healthy(c.Request.Context()) {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok", "sessions": coordinator.Len()})
	})

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/sessions", middleware.RequireRole(models.RoleModerator), classroomHandler.Create)
		api.GET("/sessions/:id", classroomHandler.Get)
		api.POST("/sessions/:id/commands", classroomHandler.Submit)
		api.GET("/sessions/:id/chat", classroomHandler.ChatSince)

		// Archive
		api.GET("/sessions/:id/attendance", middleware.RequireRole(models.RoleModerator), sessionLogHandler.GetAttendance)
		api.GET("/sessions/:id/recordings", middleware.RequireRole(models.RoleModerator), recordingHandler.ListBySession)
		if s3Client != nil {
			transcriptHandler := transcripts.NewHandler(sessionRepo, s3Client, logger)
			api.GET("/sessions/:id/transcript", middleware.RequireRole(models.RoleModerator), transcriptHandler.GetTranscript)
		}
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, coordinator, logger, identityValidate, realtime.NewUpgrader(cfg.Server.WSAllowedOrigins)))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (transcript export to S3, recording finalization)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Worker.InProcess {
		var uploader worker.TranscriptUploader
		if s3Client != nil {
			uploader = s3Client
		}
		processor := worker.NewProcessor(jobQueue, recordingRepo, sessionRepo, transcriptRepo, uploader, logger)
		processor.SetTiming(cfg.Worker.PollTimeout, cfg.Worker.RetryBackoff)
		go processor.Run(workerCtx)
		logger.Info("in-process worker started", zap.Bool("transcript_export", uploader != nil))
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	coordinator.Close()
	archiver.Close()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
