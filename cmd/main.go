package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/graph"
	"github.com/adpulse/go-expiry-service/internal/handler"
	"github.com/adpulse/go-expiry-service/internal/middleware"
	"github.com/adpulse/go-expiry-service/internal/repository"
	"github.com/adpulse/go-expiry-service/internal/scheduler"
	"github.com/adpulse/go-expiry-service/internal/service"
	"github.com/adpulse/go-expiry-service/internal/shared/config"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
	"github.com/adpulse/go-expiry-service/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	// Initialize logger (console + <data>/logs/system.log)
	log := logger.NewFileLogger(cfg.Data.Root + "/logs")
	defer log.Sync()

	log.Info("Starting Password Expiry Service...")

	// Initialize the JSON file store
	st, err := store.NewStore(cfg.Data.Root, log)
	if err != nil {
		log.Fatal("Failed to initialize data store", "error", err)
	}

	// Initialize repositories
	envRepo := repository.NewEnvironmentRepository(st, log)
	profileRepo := repository.NewProfileRepository(st, log)
	historyRepo := repository.NewHistoryRepository(st, log)
	queueRepo := repository.NewQueueRepository(st, log)

	// Credentials from the environment take priority over the stored
	// profile, matching containerized deployments.
	newGraphClient := func(gc domain.GraphConfig) *graph.Client {
		if cfg.Azure.TenantID != "" {
			gc.TenantID = cfg.Azure.TenantID
		}
		if cfg.Azure.ClientID != "" {
			gc.ClientID = cfg.Azure.ClientID
		}
		if cfg.Azure.ClientSecret != "" {
			gc.ClientSecret = cfg.Azure.ClientSecret
		}
		return graph.NewClient(gc, log)
	}

	// Initialize services
	expiryService := service.NewExpiryService(log)
	cadenceService := service.NewCadenceService(service.MatchExact, log)
	scopeService := service.NewScopeService(log)
	emailService := service.NewEmailService(log)
	jobService := service.NewJobService(
		profileRepo, envRepo, historyRepo, queueRepo,
		expiryService, cadenceService, scopeService, emailService,
		func(gc domain.GraphConfig) service.DirectoryClient { return newGraphClient(gc) },
		func(sc domain.SMTPConfig) service.Mailer { return service.NewSMTPMailer(sc, log) },
		cfg.Job.InterMessageDelay,
		log,
	)

	// Initialize the cadence sweeper
	sweeper := scheduler.NewExpirySweeper(cfg.Job.SweepSchedule, profileRepo, queueRepo, jobService, log)
	if err := sweeper.Start(); err != nil {
		log.Error("Failed to start sweeper", "error", err)
	}
	defer sweeper.Stop()

	// Initialize HTTP handlers
	configHandler := handler.NewConfigHandler(
		envRepo,
		func(gc domain.GraphConfig) handler.GraphClient { return newGraphClient(gc) },
		func(sc domain.SMTPConfig) handler.SMTPVerifier { return service.NewSMTPMailer(sc, log) },
		log,
	)
	directoryHandler := handler.NewDirectoryHandler(
		envRepo,
		func(gc domain.GraphConfig) handler.GraphClient { return newGraphClient(gc) },
		expiryService,
		log,
	)
	profileHandler := handler.NewProfileHandler(profileRepo, log)
	jobHandler := handler.NewJobHandler(jobService, historyRepo, log)
	queueHandler := handler.NewQueueHandler(queueRepo, log)
	logHandler := handler.NewLogHandler(log)

	// Initialize rate limiter
	rateLimiter := middleware.NewClientRateLimiter(cfg.Limits.RequestsPerSecond, cfg.Limits.Burst)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes with rate limiting
	api := router.Group("/api")
	api.Use(middleware.RateLimitMiddleware(rateLimiter))
	{
		api.GET("/config", configHandler.GetConfig)
		api.GET("/environments", configHandler.GetEnvironments)
		api.POST("/environments", configHandler.MutateEnvironments)
		api.POST("/validate-permissions", configHandler.ValidatePermissions)
		api.POST("/test-smtp", configHandler.TestSMTP)

		api.GET("/users", directoryHandler.GetUsers)
		api.POST("/verify-group", directoryHandler.VerifyGroup)
		api.POST("/verify-group-detailed", directoryHandler.VerifyGroupDetailed)

		api.GET("/profiles", profileHandler.GetProfiles)
		api.POST("/profiles", profileHandler.SaveProfile)
		api.DELETE("/profiles/:id", profileHandler.DeleteProfile)

		api.POST("/run-job", jobHandler.RunJob)
		api.GET("/history", jobHandler.GetHistory)

		api.GET("/queue", queueHandler.GetQueue)
		api.POST("/queue/toggle", queueHandler.TogglePause)
		api.POST("/queue/cancel", queueHandler.CancelItem)
		api.POST("/queue/clear", queueHandler.ClearQueue)

		api.GET("/logs", logHandler.GetLogs)
	}

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Password Expiry Service started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Password Expiry Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Password Expiry Service stopped")
}
