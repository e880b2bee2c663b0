package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HassanDastagir/SpotCancerAI/internal/artifact"
	"github.com/HassanDastagir/SpotCancerAI/internal/cache"
	"github.com/HassanDastagir/SpotCancerAI/internal/config"
	"github.com/HassanDastagir/SpotCancerAI/internal/database"
	"github.com/HassanDastagir/SpotCancerAI/internal/database/migration"
	handlers "github.com/HassanDastagir/SpotCancerAI/internal/http/handler"
	"github.com/HassanDastagir/SpotCancerAI/internal/http/middleware"
	"github.com/HassanDastagir/SpotCancerAI/internal/inference"
	"github.com/HassanDastagir/SpotCancerAI/internal/logging"
	apptrace "github.com/HassanDastagir/SpotCancerAI/internal/otel"
	"github.com/HassanDastagir/SpotCancerAI/internal/repository/postgres"
	"github.com/HassanDastagir/SpotCancerAI/internal/service"
	"github.com/HassanDastagir/SpotCancerAI/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	logger, err := logging.New()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracing, err := apptrace.Init(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logger); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		logger.Fatal("failed to initialize object storage", zap.Error(err))
	}

	// A statistics cache is optional; an empty Redis address disables it.
	var statsCache cache.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		statsCache = cache.NewRedisCache(rdb)
		defer rdb.Close()
	}

	artifacts := artifact.NewStore(objStore, cfg.Upload)
	predictor := inference.NewClient(cfg.Inference, logger)
	scanRepo := postgres.NewScanPostgres(db)
	scanSvc := service.NewScanService(artifacts, predictor, scanRepo, statsCache, cfg.Redis.StatsTTL, logger)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Upload.MaxScanBytes) + 1024*1024,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMiddleware, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(otelfiber.Middleware())
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(app, db, scanSvc, cfg.Auth.JWTSecret)

	addr := ":" + cfg.Port
	logger.Info("server starting", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
