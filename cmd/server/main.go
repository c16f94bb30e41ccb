package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edulearn/quiz-service/internal/cache"
	"github.com/edulearn/quiz-service/internal/config"
	"github.com/edulearn/quiz-service/internal/handlers"
	"github.com/edulearn/quiz-service/internal/middleware"
	"github.com/edulearn/quiz-service/internal/repositories/postgres"
	"github.com/edulearn/quiz-service/internal/services"
	"github.com/edulearn/quiz-service/internal/utils"
	"github.com/edulearn/quiz-service/internal/validator"
	"github.com/edulearn/quiz-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "development" {
		logger = utils.NewDevelopmentLogger()
	} else {
		logger = utils.NewDefaultLogger()
	}

	logger.Info("Starting quiz service", "environment", cfg.Environment, "port", cfg.Port)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := pkg.Migrate(db); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	var cacheService cache.CacheService = cache.NoopCache{}
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without cache", "error", err)
	} else {
		cacheService = cache.NewRedisCache(redisClient, logger)
		defer redisClient.Close()
	}

	publisher, err := cfg.Events.CreateEventPublisher(utils.ToSlogLogger(logger))
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	repo := postgres.NewRepository(db)
	authz := services.NewAuthorizer(repo)
	v := validator.New()

	attemptService := services.NewAttemptService(repo, authz, publisher, cacheService, logger, v)
	exportService := services.NewExportService(repo, authz, logger)
	serviceManager := services.NewServiceManager(attemptService, exportService)

	var authMiddleware gin.HandlerFunc
	if cfg.Casdoor.ClientID != "" {
		middleware.InitAuth(cfg.Casdoor)
		authMiddleware = middleware.Auth(logger)
	} else {
		logger.Warn("Casdoor not configured, using static header auth")
		authMiddleware = middleware.StaticAuth()
	}

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager := handlers.NewHandlerManager(serviceManager, logger)
	handlerManager.SetupRoutes(router, authMiddleware)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("Server listening", "addr", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
	logger.Info("Server stopped")
}
