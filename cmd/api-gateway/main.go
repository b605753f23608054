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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-coverage-api/api/swagger"
	"github.com/noah-isme/sma-coverage-api/internal/handler"
	"github.com/noah-isme/sma-coverage-api/internal/middleware"
	"github.com/noah-isme/sma-coverage-api/internal/models"
	"github.com/noah-isme/sma-coverage-api/internal/repository"
	"github.com/noah-isme/sma-coverage-api/internal/service"
	"github.com/noah-isme/sma-coverage-api/pkg/cache"
	"github.com/noah-isme/sma-coverage-api/pkg/config"
	"github.com/noah-isme/sma-coverage-api/pkg/database"
	"github.com/noah-isme/sma-coverage-api/pkg/export"
	"github.com/noah-isme/sma-coverage-api/pkg/jobs"
	"github.com/noah-isme/sma-coverage-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-coverage-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-coverage-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-coverage-api/pkg/storage"
)

// @title SMA Coverage API
// @version 1.0.0
// @description Daily substitute coverage planning for school absences.
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	// Redis is optional: previews are recomputed when it is down.
	var redisClient redis.UniversalClient
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, plan cache disabled", zap.Error(err))
	} else {
		redisClient = client
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "sma", logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Coverage.CacheTTL, logr, redisClient != nil)

	teacherRepo := repository.NewTeacherRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	substituteRepo := repository.NewSubstituteRepository(db)
	prefRepo := repository.NewTeacherPreferenceRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	assignmentRepo := repository.NewCoverageAssignmentRepository(db)
	runRepo := repository.NewCoverageRunRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	exportStorage, err := storage.NewLocalStorage(cfg.Coverage.ExportDir)
	if err != nil {
		logr.Fatal("failed to prepare export directory", zap.String("dir", cfg.Coverage.ExportDir), zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Coverage.SignedURLSecret, cfg.Coverage.SignedURLTTL)
	exportSvc := service.NewExportService(
		assignmentRepo,
		teacherRepo,
		exportStorage,
		signer,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Coverage.SignedURLTTL},
		logr,
		export.NewCSVExporter().WithBOM(),
		export.NewPDFExporter(export.Landscape),
	)

	worker := service.NewCoverageNotificationWorker(service.NewLogNotificationSender(logr), logr)
	notifications := jobs.NewQueue("coverage-notifications", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Coverage.NotificationWorkers,
		MaxRetries: cfg.Coverage.NotificationRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	if err := metrics.RegisterQueue("coverage-notifications", notifications.Pending, notifications.Dropped); err != nil {
		logr.Warn("queue metrics not registered", zap.Error(err))
	}
	// Not tied to the signal context so Stop can drain queued notices.
	notifications.Start(context.Background())
	defer notifications.Stop()

	coverageSvc := service.NewCoverageService(
		service.CoverageStores{
			Absences:    absenceRepo,
			Schedules:   scheduleRepo,
			Substitutes: substituteRepo,
			Teachers:    teacherRepo,
			Preferences: prefRepo,
			Assignments: assignmentRepo,
			Runs:        runRepo,
		},
		db,
		cacheSvc,
		metrics,
		notifications,
		exportSvc,
		validate,
		logr,
		service.CoverageServiceConfig{
			SchoolDays:        cfg.Coverage.SchoolDays,
			CacheTTL:          cfg.Coverage.CacheTTL,
			Workers:           cfg.Coverage.Workers,
			EmergencyOverride: cfg.Coverage.EmergencyOverride,
		},
	)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	prefSvc := service.NewTeacherPreferenceService(teacherRepo, prefRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, validate, logr)
	substituteSvc := service.NewSubstituteService(substituteRepo, validate, logr)
	absenceSvc := service.NewAbsenceService(absenceRepo, teacherRepo, cacheSvc, validate, logr)
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	go sweepExports(ctx, exportSvc, cfg.Coverage.SignedURLTTL, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
		"postgres": handler.PingFunc(db.PingContext),
		"redis":    cacheRepo,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	coverageHandler := handler.NewCoverageHandler(coverageSvc)
	// Download links carry their own signature.
	api.GET("/coverage/exports/:token", coverageHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	admin := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher)

	if cfg.Coverage.Enabled {
		coverage := secured.Group("/coverage")
		coverage.POST("/preview", admin, coverageHandler.Preview)
		coverage.POST("/commit", admin, middleware.Audit(auditRepo, logr, models.AuditActionCoverageCommit, "coverage"), coverageHandler.Commit)
		coverage.GET("/assignments", staff, coverageHandler.Assignments)
		coverage.GET("/runs/latest", admin, coverageHandler.LatestRun)
		coverage.POST("/exports", admin, middleware.Audit(auditRepo, logr, models.AuditActionCoverageExport, "coverage_export"), coverageHandler.Export)
	}

	teacherHandler := handler.NewTeacherHandler(teacherSvc, prefSvc)
	teachers := secured.Group("/teachers")
	teachers.GET("", staff, teacherHandler.List)
	teachers.GET("/:id", staff, teacherHandler.Get)
	teachers.POST("", admin, teacherHandler.Create)
	teachers.DELETE("/:id", admin, teacherHandler.Delete)
	teachers.GET("/:id/preferences", staff, teacherHandler.GetPreferences)
	teachers.PUT("/:id/preferences", admin, teacherHandler.UpsertPreferences)

	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	schedules := secured.Group("/schedules")
	schedules.GET("", staff, scheduleHandler.List)
	schedules.POST("", admin, scheduleHandler.Create)
	schedules.POST("/bulk", admin, middleware.Audit(auditRepo, logr, models.AuditActionScheduleImport, "schedules"), scheduleHandler.BulkCreate)
	schedules.DELETE("/:id", admin, scheduleHandler.Delete)

	rosterHandler := handler.NewRosterHandler(absenceSvc, substituteSvc)
	secured.POST("/absences", staff, middleware.Audit(auditRepo, logr, models.AuditActionAbsenceReport, "absences"), rosterHandler.ReportAbsence)
	secured.GET("/absences", staff, rosterHandler.ListAbsences)
	secured.GET("/substitutes", admin, rosterHandler.ListSubstitutes)
	secured.GET("/substitutes/:id", admin, rosterHandler.GetSubstitute)
	secured.POST("/substitutes", admin, middleware.Audit(auditRepo, logr, models.AuditActionSubstituteAdded, "substitutes"), rosterHandler.CreateSubstitute)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// sweepExports removes rendered sheets once their download links have expired.
func sweepExports(ctx context.Context, exports *service.ExportService, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(ttl)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
