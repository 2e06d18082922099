package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/gradebook/api/swagger"
	"github.com/noah-isme/gradebook/internal/handler"
	internalmiddleware "github.com/noah-isme/gradebook/internal/middleware"
	"github.com/noah-isme/gradebook/internal/repository"
	"github.com/noah-isme/gradebook/internal/router"
	"github.com/noah-isme/gradebook/internal/service"
	"github.com/noah-isme/gradebook/pkg/cache"
	"github.com/noah-isme/gradebook/pkg/config"
	"github.com/noah-isme/gradebook/pkg/database"
	"github.com/noah-isme/gradebook/pkg/logger"
	corsmiddleware "github.com/noah-isme/gradebook/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gradebook/pkg/middleware/requestid"
)

// @title Gradebook API
// @version 1.0.0
// @description Subjects, students, grade records and attendance with per subject reports
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openSnapshotRepository(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open snapshot storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeRepo()

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	gateway := service.NewSyncGateway(repo, service.SyncGatewayConfig{
		Backend:     cfg.Storage.Driver,
		SaveTimeout: cfg.Storage.SaveTimeout,
		MaxRetries:  3,
		RetryDelay:  2 * time.Second,
	}, metrics, logr)
	// the save worker outlives the signal context; Close drains it
	gateway.Start(context.Background())

	validate := service.NewDomainValidator(validator.New())
	store := service.OpenGradebook(ctx, gateway, validate, metrics, logr)
	importer := service.NewImportService(service.NewImportResolver(nil, logr), store, cfg.Import.MaxFileSizeBytes, logr)
	exporter := service.NewExportService(store, metrics, logr, nil, nil, nil)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	if cfg.Import.MaxFileSizeBytes > 0 {
		r.MaxMultipartMemory = cfg.Import.MaxFileSizeBytes
	}

	router.Register(r, cfg.APIPrefix, router.Dependencies{
		SubjectHandler:   handler.NewSubjectHandler(store),
		StudentHandler:   handler.NewStudentHandler(store, importer),
		GradeHandler:     handler.NewGradeHandler(store),
		SettingsHandler:  handler.NewSettingsHandler(store),
		ExportHandler:    handler.NewExportHandler(exporter),
		DashboardHandler: handler.NewDashboardHandler(store, gateway),
		MetricsHandler:   handler.NewMetricsHandler(metrics, gateway),
		EnableMetrics:    cfg.Metrics.Enabled,
	})

	if cfg.Env != config.EnvProduction && cfg.Docs.Enabled {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := gateway.Close(shutdownCtx); err != nil {
		logr.Error("last gradebook changes may be lost", zap.Error(err))
	}
}

// openSnapshotRepository connects the configured backend. The returned close
// function releases its connection.
func openSnapshotRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.SnapshotRepository, func(), error) {
	noop := func() {}
	switch cfg.Storage.Driver {
	case config.StorageFile, "":
		path := repository.ResolveDatabasePath(cfg.Storage.FilePath, cfg.Storage.DataDir)
		repo, err := repository.NewFileSnapshotRepository(path)
		if err != nil {
			return nil, noop, err
		}
		logr.Info("using file snapshot storage", zap.String("path", repo.Path()))
		return repo, noop, nil
	case config.StoragePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		repo := repository.NewPostgresSnapshotRepository(db, cfg.Storage.SnapshotKey)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		logr.Info("using postgres snapshot storage", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Name))
		return repo, func() { _ = db.Close() }, nil
	case config.StorageRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		repo := repository.NewRedisSnapshotRepository(client, cfg.Storage.SnapshotKey, logr)
		logr.Info("using redis snapshot storage", zap.String("key", cfg.Storage.SnapshotKey))
		return repo, func() { _ = repo.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
