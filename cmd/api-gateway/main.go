package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/curriculum-api/api/swagger"
	"github.com/noah-isme/curriculum-api/internal/curriculum"
	"github.com/noah-isme/curriculum-api/internal/handler"
	"github.com/noah-isme/curriculum-api/internal/middleware"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/internal/repository"
	"github.com/noah-isme/curriculum-api/internal/service"
	"github.com/noah-isme/curriculum-api/pkg/ai"
	"github.com/noah-isme/curriculum-api/pkg/cache"
	"github.com/noah-isme/curriculum-api/pkg/config"
	"github.com/noah-isme/curriculum-api/pkg/export"
	"github.com/noah-isme/curriculum-api/pkg/i18n"
	"github.com/noah-isme/curriculum-api/pkg/jobs"
	"github.com/noah-isme/curriculum-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/curriculum-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/curriculum-api/pkg/middleware/requestid"
	"github.com/noah-isme/curriculum-api/pkg/response"
	"github.com/noah-isme/curriculum-api/pkg/storage"
)

// @title Curriculum Governance API
// @version 1.0.0
// @description Curriculum catalogue with audited administration, import reconciliation and teacher reports
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opened, err := repository.OpenCollectionStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open collection store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer opened.Close() //nolint:errcheck

	data := repository.NewDataContext(opened.Store, logr)
	if err := data.Load(ctx); err != nil {
		logr.Fatal("failed to load curriculum collections", zap.Error(err))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(repository.NewUserRepository(opened.Store), validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	seeded, err := authSvc.EnsureAdmin(ctx, service.AdminSeed{
		Email:    cfg.Seed.AdminEmail,
		Password: cfg.Seed.AdminPassword,
		FullName: cfg.Seed.AdminName,
	})
	if err != nil {
		logr.Fatal("failed to seed administrator", zap.Error(err))
	}
	if seeded {
		logr.Info("seeded administrator account", zap.String("email", cfg.Seed.AdminEmail))
	}

	curriculumOpts := []service.CurriculumServiceOption{service.WithCurriculumMetrics(metricsSvc)}
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, curriculum cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metricsSvc, cfg.Cache.TTL, logr, true)
			curriculumOpts = append(curriculumOpts, service.WithCurriculumCache(cacheSvc, cfg.Redis.KeyPrefix, cfg.Cache.TTL))
		}
	}

	curriculumSvc := service.NewCurriculumService(data, validate, logr, curriculumOpts...)
	reportSvc := service.NewReportService(data, nil, metricsSvc, validate, logr)
	auditSvc := service.NewAuditService(data)
	exportSvc := service.NewExportService(data, logr, export.NewCSVExporter(true), export.NewPDFExporter())
	snapshot := data.Snapshot()
	metricsSvc.SetCollectionSizes(len(snapshot.Items), len(curriculum.FilterReports(snapshot.Reports, models.ReportStatusPending)))

	handlers := handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Curriculum: handler.NewCurriculumHandler(curriculumSvc, exportSvc),
		Import:     handler.NewImportHandler(curriculumSvc),
		Reports:    handler.NewReportHandler(reportSvc),
		Audit:      handler.NewAuditHandler(auditSvc),
	}

	if cfg.Extraction.Enabled {
		queue, extraction, err := startExtraction(ctx, cfg, logr, metricsSvc, curriculumSvc)
		if err != nil {
			logr.Fatal("failed to start extraction", zap.Error(err))
		}
		defer queue.Stop()
		handlers.Extraction = handler.NewExtractionHandler(extraction, cfg.Extraction.MaxImageSize)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(response.Localize(i18n.New(cfg.Locale.Default)))
	r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))

	ops := handler.NewMetricsHandler(metricsSvc, data)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handlers, middleware.JWT(authSvc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func startExtraction(ctx context.Context, cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, planner *service.CurriculumService) (*jobs.Queue, *service.ExtractionService, error) {
	client, err := ai.NewClient(cfg.Extraction, logr)
	if err != nil {
		return nil, nil, err
	}
	uploads, err := storage.NewLocalStorage(cfg.Storage.Dir)
	if err != nil {
		return nil, nil, err
	}

	var extraction *service.ExtractionService
	queue := jobs.NewQueue("extraction", func(jobCtx context.Context, job jobs.Job) error {
		return extraction.Process(jobCtx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Extraction.Workers,
		MaxRetries: cfg.Extraction.MaxRetries,
		RetryDelay: 5 * time.Second,
		OnGiveUp: func(job jobs.Job, err error) {
			extraction.Fail(job, err)
		},
		Logger: logr,
	})
	extraction = service.NewExtractionService(client, queue, uploads, planner, metrics, logr, service.ExtractionConfig{
		MaxImageSize: cfg.Extraction.MaxImageSize,
		JobTTL:       cfg.Extraction.JobTTL,
	})

	queue.Start(ctx)
	extraction.StartCleanup(ctx)
	return queue, extraction, nil
}
