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

	"github.com/examind/examind-api/internal/config"
	"github.com/examind/examind-api/internal/database"
	"github.com/examind/examind-api/internal/handler"
	"github.com/examind/examind-api/internal/middleware"
	"github.com/examind/examind-api/internal/models"
	"github.com/examind/examind-api/internal/repository"
	"github.com/examind/examind-api/internal/router"
	"github.com/examind/examind-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Test{}, &models.Question{}, &models.Option{},
		&models.TestAssignment{}, &models.AssignmentStudent{},
		&models.Attempt{}, &models.AttemptAnswer{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, cross-node notification relay disabled")
		} else {
			defer natsConn.Close()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	testRepo := repository.NewTestRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	registry := service.NewSessionRegistry(cfg.AutoSaveInterval, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.EventChannelBase, natsConn, validate, logger)
	testService := service.NewTestService(testRepo, validate, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, testRepo, attemptRepo, notificationService, validate, logger)
	examService := service.NewExamService(testRepo, assignmentRepo, attemptRepo, registry, notificationService, redisClient, cfg.QuestionCacheTTL, cfg.JWTSecret, validate, logger)
	registry.SetAutoSubmitFunc(examService.AutoSubmit)

	serviceCtx, cancelServices := context.WithCancel(context.Background())
	defer cancelServices()
	notificationService.Start(serviceCtx)

	examHandler := handler.NewExamHandler(examService, logger)
	sessionHandler := handler.NewSessionHandler(registry, validate, logger)
	testHandler := handler.NewTestHandler(testService, logger)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAliveTimeout)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		ExamHandler:         examHandler,
		SessionHandler:      sessionHandler,
		TestHandler:         testHandler,
		AssignmentHandler:   assignmentHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		SubmitRateLimit:     cfg.SubmitRateLimit,
		SubmitRateWindow:    cfg.SubmitRateWindow,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, registry)
}

func waitForShutdown(app *fiber.App, registry *service.SessionRegistry) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	// Flush running timers before closing the listener so in-flight sessions
	// get their final state persisted.
	registry.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
