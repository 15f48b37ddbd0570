package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"bulk-order-service/apperrors"
	"bulk-order-service/config"
	"bulk-order-service/controllers"
	"bulk-order-service/database"
	"bulk-order-service/kafka"
	"bulk-order-service/logger"
	"bulk-order-service/middleware"
	"bulk-order-service/routes"
	"bulk-order-service/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	logger.Initialize(cfg.Env)
	defer zap.L().Sync()

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Redis: job store + async queue
	redisClient := database.NewRedisClient(cfg.RedisURL)
	jobStore := database.NewRedisJobStore(redisClient)
	database.StartSweeper(ctx, jobStore, time.Hour)

	// Postgres run history is optional; the service runs without it.
	var runs *database.RunRepository
	if cfg.PostgresDSN != "" {
		db, err := database.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("failed to connect postgres: %v", err)
		}
		runs = database.NewRunRepository(db)
	} else {
		zap.L().Warn("POSTGRES_DSN not set, run history disabled")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	// Collaborator clients
	catalog := services.NewCatalogClient(cfg.CatalogURL, cfg.RequestTimeout)
	cart := services.NewCartClient(cfg.CartURL, cfg.RequestTimeout)

	// Similarity engine, weighted per customer segment
	simCfg := services.DefaultSimilarityConfig()
	if cfg.CustomerSegment == "business" {
		simCfg.Weights = services.BusinessWeights()
	}
	engine := services.NewSimilarityEngine(simCfg)
	alternatives := services.NewAlternativesService(catalog, engine)

	// One breaker per downstream dependency
	catalogBreaker := services.NewCircuitBreaker("catalog", cfg.BreakerThreshold, cfg.BreakerTimeout)
	cartBreaker := services.NewCircuitBreaker("cart", cfg.BreakerThreshold, cfg.BreakerTimeout)

	processor := services.NewBulkOrderProcessor(catalog, cart, alternatives, services.ProcessorConfig{
		BatchSize:         cfg.BatchSize,
		MaxConcurrent:     cfg.MaxConcurrent,
		EnableSuggestions: true,
		MaxSuggestions:    cfg.MaxSuggestions,
		MinSimilarity:     cfg.MinSimilarity,
		Retry: services.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialDelay:      cfg.RetryInitialDelay,
			BackoffMultiplier: 2,
			MaxDelay:          cfg.RetryMaxDelay,
		},
	}, catalogBreaker, cartBreaker)

	var runSaver services.RunSaver
	if runs != nil {
		runSaver = runs
	}
	svc := services.NewBulkOrderService(processor, catalog.ValidateSKU,
		services.ParseOptions{MaxRows: cfg.MaxRows}, runSaver, producer)

	services.StartBulkOrderWorker(ctx, jobStore, jobStore, svc, cfg.StorageDir)

	// HTTP surface
	validator := controllers.NewRequestValidator(cfg.MaxUploadBytes)
	var runReader controllers.RunReader
	if runs != nil {
		runReader = runs
	}
	controller := controllers.NewBulkOrderController(svc, jobStore, jobStore, runReader, validator, cfg.StorageDir)

	limiterStore := middleware.NewMemoryLimiterStore(10 * time.Minute)
	middleware.StartLimiterSweeper(ctx, limiterStore, 10*time.Minute)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(logger.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(apperrors.ErrorMiddleware())

	routes.RegisterBulkOrderRoutes(router, routes.RouterDeps{
		Controller:   controller,
		LimiterStore: limiterStore,
		RatePerSec:   cfg.RateLimitPerSecond,
		RateBurst:    cfg.RateLimitBurst,
		JWTSecret:    cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zap.L().Info("Bulk Order Service is running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zap.L().Info("Shutting down gracefully...")
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	zap.L().Info("Server shutdown complete")
}
