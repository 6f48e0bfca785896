package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/event-teams/config"
	"github.com/Dosada05/event-teams/db"
	"github.com/Dosada05/event-teams/handlers"
	"github.com/Dosada05/event-teams/notify"
	"github.com/Dosada05/event-teams/repositories"
	"github.com/Dosada05/event-teams/routes"
	"github.com/Dosada05/event-teams/scheduler"
	"github.com/Dosada05/event-teams/services"
)

const (
	dbConnectTimeout = 10 * time.Second
	shutdownTimeout  = 15 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	database, err := db.Connect(cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("database connection established")

	// Репозитории
	userRepo := repositories.NewPostgresUserRepository(database)
	eventRepo := repositories.NewPostgresEventRepository(database)
	registrationRepo := repositories.NewPostgresRegistrationRepository(database)
	teamRepo := repositories.NewPostgresTeamRepository(database)
	requestRepo := repositories.NewPostgresTeamRequestRepository(database)
	txManager := repositories.NewTxManager(database)

	// Общие зависимости сервисов
	caches := services.NewRegistrationCaches(cfg.CacheSize)
	vocabulary := services.NewStaticVocabulary(cfg.EventTypes)
	hub := notify.NewHub(logger)

	// Сервисы
	authService := services.NewAuthService(userRepo)
	eventService := services.NewEventService(eventRepo, userRepo, vocabulary, hub, logger)
	enrollmentService := services.NewEnrollmentService(
		registrationRepo, eventRepo, userRepo, teamRepo, requestRepo, vocabulary, caches, hub, logger)
	requestService := services.NewTeamRequestService(
		requestRepo, registrationRepo, teamRepo, eventRepo, userRepo, txManager, caches, hub, logger)

	sched := scheduler.New(eventService, enrollmentService, logger)

	// Обработчики
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	eventHandler := handlers.NewEventHandler(eventService, enrollmentService, sched)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentService)
	requestHandler := handlers.NewTeamRequestHandler(requestService)
	wsHandler := handlers.NewWebSocketHandler(hub, cfg.JWTSecretKey)

	router := routes.SetupRoutes(
		authHandler, eventHandler, enrollmentHandler, requestHandler, wsHandler, cfg.JWTSecretKey)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.Int("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return hub.Run(gCtx)
	})

	g.Go(func() error {
		return sched.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}
