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

	_ "github.com/uniportal/registrar-api/api/swagger"
	"github.com/uniportal/registrar-api/internal/handler"
	"github.com/uniportal/registrar-api/internal/middleware"
	"github.com/uniportal/registrar-api/internal/repository"
	"github.com/uniportal/registrar-api/internal/router"
	"github.com/uniportal/registrar-api/internal/service"
	"github.com/uniportal/registrar-api/pkg/cache"
	"github.com/uniportal/registrar-api/pkg/config"
	"github.com/uniportal/registrar-api/pkg/database"
	"github.com/uniportal/registrar-api/pkg/export"
	"github.com/uniportal/registrar-api/pkg/logger"
	"github.com/uniportal/registrar-api/pkg/mailer"
	corsmiddleware "github.com/uniportal/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uniportal/registrar-api/pkg/middleware/requestid"
)

// @title UniPortal Registrar API
// @version 1.0.0
// @description Course registration lifecycle for the university portal
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	uploadRepo := repository.NewCourseUploadRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	metricsSvc := service.NewMetricsService()

	cacheEnabled := false
	var cacheRepo service.CacheRepository
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheEnabled = true
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cacheEnabled)

	smtp := mailer.New(cfg.Mailer, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "registrar-api",
		Audience:           []string{"registrar-portal"},
	})
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, smtp, logr)
	statsSvc := service.NewStatsService(statsRepo, semesterRepo, cacheSvc, cfg.Stats.CacheTTL, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, uploadRepo, courseRepo, semesterRepo, userRepo, notificationSvc, statsSvc, cfg.Registration.SemesterCourseLimit, validate, logr)
	approvalSvc := service.NewApprovalService(uploadRepo, registrationRepo, notificationSvc, statsSvc, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	semesterSvc := service.NewSemesterService(semesterRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, validate, logr)
	exportSvc := service.NewExportService(registrationRepo, uploadRepo, export.NewPDFExporter(cfg.Exports.InstituteName), export.NewCSVExporter(), logr)
	dashboardSvc := service.NewDashboardService(statsSvc, notificationSvc, announcementSvc, registrationSvc, approvalSvc, semesterRepo, metricsSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	router.Register(r, router.Deps{
		Auth:          handler.NewAuthHandler(authSvc),
		Registrations: handler.NewRegistrationHandler(registrationSvc),
		Approvals:     handler.NewApprovalHandler(approvalSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Courses:       handler.NewCourseHandler(courseSvc),
		Semesters:     handler.NewSemesterHandler(semesterSvc),
		Users:         handler.NewUserHandler(userSvc),
		Announcements: handler.NewAnnouncementHandler(announcementSvc),
		Stats:         handler.NewStatsHandler(statsSvc),
		Dashboard:     handler.NewDashboardHandler(dashboardSvc),
		Exports:       handler.NewExportHandler(exportSvc),

		AuthService: authSvc,
		Metrics:     metricsSvc,
		UserRepo:    userRepo,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
