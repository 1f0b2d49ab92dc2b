package main

import (
	"context"
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

	_ "github.com/noah-isme/tutor-center-api/api/swagger"
	"github.com/noah-isme/tutor-center-api/internal/handler"
	"github.com/noah-isme/tutor-center-api/internal/middleware"
	"github.com/noah-isme/tutor-center-api/internal/models"
	"github.com/noah-isme/tutor-center-api/internal/repository"
	"github.com/noah-isme/tutor-center-api/internal/service"
	"github.com/noah-isme/tutor-center-api/pkg/cache"
	"github.com/noah-isme/tutor-center-api/pkg/config"
	"github.com/noah-isme/tutor-center-api/pkg/database"
	"github.com/noah-isme/tutor-center-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-center-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-center-api/pkg/middleware/requestid"
)

// @title Tutor Center API
// @version 0.1.0
// @description Enrollment session scheduling and makeup lifecycle engine
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache and events", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	holidayRepo := repository.NewCachedHolidayRepository(
		repository.NewHolidayRepository(db), redisClient, cfg.Scheduling.HolidayCacheTTL, logr)
	rescheduleRepo := repository.NewPlannedRescheduleRepository(db)
	extensionRepo := repository.NewExtensionRequestRepository(db)
	proposalRepo := repository.NewMakeupProposalRepository(db)

	var events *service.EventPublisher
	if cfg.Events.Enabled && redisClient != nil {
		events = service.NewEventPublisher(redisClient, cfg.Events.Channel, logr)
	}

	holidaySvc := service.NewHolidayService(holidayRepo, validate, logr)
	generatorSvc := service.NewGeneratorService(
		enrollmentRepo, sessionRepo, rescheduleRepo, holidaySvc, events, db, validate, logr, metrics)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, holidaySvc, generatorSvc, validate, logr)
	makeupSvc := service.NewMakeupService(
		sessionRepo, proposalRepo, events, db, validate, logr, metrics,
		service.MakeupServiceConfig{WindowDays: cfg.Scheduling.MakeupWindowDays})
	extensionSvc := service.NewExtensionService(
		extensionRepo, enrollmentRepo, sessionRepo, holidaySvc, events, db, validate, logr, metrics)
	rescheduleSvc := service.NewRescheduleService(rescheduleRepo, enrollmentRepo, validate, logr)
	batchSvc := service.NewBatchService(enrollmentRepo, generatorSvc, logr, metrics, service.BatchServiceConfig{
		Workers:         cfg.Generation.Workers,
		GracePeriodDays: cfg.Generation.GracePeriodDays,
		Interval:        cfg.Generation.Interval,
	})
	tokenSvc := service.NewTokenService(cfg.JWT.Secret)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	registerRoutes(r, cfg, tokenSvc, metrics,
		handler.NewEnrollmentHandler(enrollmentSvc, makeupSvc),
		handler.NewSessionHandler(makeupSvc),
		handler.NewMakeupHandler(makeupSvc),
		handler.NewExtensionHandler(extensionSvc),
		handler.NewRescheduleHandler(rescheduleSvc),
		handler.NewHolidayHandler(holidaySvc),
		handler.NewGenerationHandler(batchSvc),
		db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Generation.Enabled {
		batchSvc.Start(ctx)
		defer batchSvc.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Info("server stopped")
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	tokens *service.TokenService,
	metrics *service.MetricsService,
	enrollments *handler.EnrollmentHandler,
	sessions *handler.SessionHandler,
	makeups *handler.MakeupHandler,
	extensions *handler.ExtensionHandler,
	reschedules *handler.RescheduleHandler,
	holidays *handler.HolidayHandler,
	generation *handler.GenerationHandler,
	db interface{ PingContext(ctx context.Context) error },
) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(checkCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokens))

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTutor)

	api.POST("/enrollments", admin, enrollments.Create)
	api.GET("/enrollments", staff, enrollments.List)
	api.GET("/enrollments/:id", staff, enrollments.Get)
	api.POST("/enrollments/:id/confirm-payment", admin, enrollments.ConfirmPayment)
	api.POST("/enrollments/:id/cancel", admin, enrollments.Cancel)
	api.POST("/enrollments/:id/generate", admin, enrollments.Generate)
	api.GET("/enrollments/:id/sessions", staff, enrollments.ListSessions)
	api.POST("/enrollments/:id/planned-reschedules", admin, reschedules.Create)
	api.GET("/enrollments/:id/planned-reschedules", staff, reschedules.List)
	api.POST("/planned-reschedules/:id/cancel", admin, reschedules.Cancel)

	api.GET("/sessions", staff, sessions.List)
	api.GET("/sessions/:id", staff, sessions.Get)
	api.GET("/sessions/:id/chain", staff, sessions.Chain)
	api.POST("/sessions/:id/attendance", staff, sessions.Attendance)
	api.POST("/sessions/:id/reschedule", staff, sessions.Reschedule)
	api.POST("/sessions/:id/cancel", admin, sessions.Cancel)
	api.POST("/sessions/:id/makeup-proposals", staff, makeups.Propose)
	api.GET("/sessions/:id/makeup-proposals", staff, makeups.ListForSession)
	api.POST("/sessions/:id/extension-requests", middleware.RequireRoles(models.RoleTutor), extensions.Create)

	api.POST("/makeup-proposals/:id/resolve", admin, makeups.Resolve)
	api.GET("/makeup/pending", admin, makeups.Pending)

	api.GET("/extension-requests", admin, extensions.List)
	api.GET("/extension-requests/:id", staff, extensions.Get)
	api.POST("/extension-requests/:id/approve", admin, extensions.Approve)
	api.POST("/extension-requests/:id/reject", admin, extensions.Reject)

	api.GET("/holidays", staff, holidays.List)
	api.POST("/holidays", admin, holidays.Create)
	api.POST("/holidays/import", admin, holidays.Import)

	api.POST("/admin/generation/run", admin, generation.Run)
}
