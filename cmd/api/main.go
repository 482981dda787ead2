package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillup-api/internal/config"
	"github.com/noah-isme/skillup-api/internal/database"
	"github.com/noah-isme/skillup-api/internal/handler"
	"github.com/noah-isme/skillup-api/internal/middleware"
	"github.com/noah-isme/skillup-api/internal/models"
	"github.com/noah-isme/skillup-api/internal/observability"
	"github.com/noah-isme/skillup-api/internal/repository"
	"github.com/noah-isme/skillup-api/internal/router"
	"github.com/noah-isme/skillup-api/internal/service"
	cloud "github.com/noah-isme/skillup-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Exam{},
		&models.ExamQuestion{},
		&models.Assignment{},
		&models.Submission{},
		&models.SubmissionGradeHistory{},
		&models.Conversation{},
		&models.Message{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured; gradebook cache and redis chat fan-out disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	examRepo := repository.NewExamRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	gradebookService := service.NewGradebookService(courseRepo, submissionRepo, redisClient, cfg.GradebookCacheTTL, logger)
	contentService := service.NewCourseContentService(courseRepo, examRepo, assignmentRepo, validate, logger)
	submissionService := service.NewSubmissionService(examRepo, assignmentRepo, submissionRepo, gradebookService, validate, logger)
	gradingService := service.NewGradingService(submissionRepo, gradebookService, validate, logger)
	conversationService := service.NewConversationService(conversationRepo, messageRepo, userRepo, courseRepo, validate, logger)

	frames, err := service.NewChatFrameValidator()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to compile chat frame schema")
	}
	chatService := service.NewChatService(conversationService, frames, redisClient, natsConn, cfg.RealtimeChannel, service.ChatLimits{
		RatePerSecond: cfg.ChatRatePerSecond,
		Burst:         cfg.ChatBurst,
	}, validate, logger)
	chatService.Start(rootCtx)

	var uploadHandler *handler.UploadHandler
	if cfg.CloudinaryEnabled() {
		storage, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		uploadService := service.NewUploadService(storage, assignmentRepo, submissionRepo, submissionService, cfg.UploadMaxSizeMB, logger)
		uploadHandler = handler.NewUploadHandler(uploadService, logger)
	} else {
		logger.Warn().Msg("cloudinary credentials not configured; assignment uploads disabled")
	}

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ExamHandler:         handler.NewExamHandler(contentService, submissionService, logger),
		AssignmentHandler:   handler.NewAssignmentHandler(contentService, submissionService, logger),
		UploadHandler:       uploadHandler,
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, gradingService, logger),
		GradesHandler:       handler.NewGradesHandler(gradebookService, logger),
		ConversationHandler: handler.NewConversationHandler(conversationService, logger),
		ChatHandler:         handler.NewChatHandler(chatService, logger),
		HealthProbes:        probes,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cancelRoot, logger)
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
