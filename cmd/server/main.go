package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/examind/examind-backend/internal/config"
	"github.com/examind/examind-backend/internal/database"
	"github.com/examind/examind-backend/internal/handler"
	"github.com/examind/examind-backend/internal/logger"
	"github.com/examind/examind-backend/internal/mailer"
	"github.com/examind/examind-backend/internal/repository"
	"github.com/examind/examind-backend/internal/router"
	"github.com/examind/examind-backend/internal/service"
	"github.com/examind/examind-backend/internal/validator"
	"github.com/examind/examind-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Examind Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	proctoringRepo := repository.NewProctoringRepository(pool)
	analyticsRepo := repository.NewAnalyticsRepository(pool)

	// ─── Initialize Mail Queue ─────────────────────────────────────────
	mailQueue := mailer.NewQueue(rdb, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	userService := service.NewUserService(userRepo, authService, mailQueue, log)
	questionService := service.NewQuestionService(questionRepo, log)
	examService := service.NewExamService(examRepo, questionRepo, enrollmentRepo, userRepo, mailQueue, log)
	attemptService := service.NewAttemptService(attemptRepo, examRepo, questionRepo, enrollmentRepo, proctoringRepo, userRepo, mailQueue, log)
	gradingService := service.NewGradingService(attemptRepo, examRepo, questionRepo, log)
	proctoringService := service.NewProctoringService(proctoringRepo, attemptRepo, log)
	analyticsService := service.NewAnalyticsService(analyticsRepo, examRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(userService),
		AdminUser:  handler.NewAdminUserHandler(userService),
		Question:   handler.NewQuestionHandler(questionService),
		Exam:       handler.NewExamHandler(examService),
		Attempt:    handler.NewAttemptHandler(attemptService),
		Grading:    handler.NewGradingHandler(gradingService),
		Proctoring: handler.NewProctoringHandler(proctoringService),
		Analytics:  handler.NewAnalyticsHandler(analyticsService),
		WS:         handler.NewWSHandler(rdb, attemptService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	proctorEventWorker := worker.NewProctorEventWorker(proctoringRepo, rdb, log)
	mailWorker := worker.NewMailWorker(mailer.NewSender(cfg), rdb, log)

	go proctorEventWorker.Start(workerCtx)
	go mailWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
