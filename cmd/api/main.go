package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/malekaidoudi/creche-sub003/internal/handler"
	"github.com/malekaidoudi/creche-sub003/internal/middleware"
	"github.com/malekaidoudi/creche-sub003/internal/models"
	"github.com/malekaidoudi/creche-sub003/internal/repository"
	"github.com/malekaidoudi/creche-sub003/internal/service"
	"github.com/malekaidoudi/creche-sub003/pkg/cache"
	"github.com/malekaidoudi/creche-sub003/pkg/config"
	"github.com/malekaidoudi/creche-sub003/pkg/database"
	"github.com/malekaidoudi/creche-sub003/pkg/export"
	"github.com/malekaidoudi/creche-sub003/pkg/logger"
	corsmiddleware "github.com/malekaidoudi/creche-sub003/pkg/middleware/cors"
	reqidmiddleware "github.com/malekaidoudi/creche-sub003/pkg/middleware/requestid"
	"github.com/malekaidoudi/creche-sub003/pkg/storage"
)

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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	files, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("uploads directory unavailable", "error", err)
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	childRepo := repository.NewChildRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Settings.CacheTTL, logr, cfg.Settings.CacheEnabled && redisClient != nil)
	auditSvc := service.NewAuditService(userRepo, logr)
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "creche-api",
	})
	notificationSvc := service.NewNotificationService(notificationRepo, logr, cfg.Notifications.Enabled)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, files, notificationSvc, auditSvc,
		cfg.Uploads.MaxFileSizeBytes, cfg.Uploads.AllowedMIMEs, nil, logr)
	childSvc := service.NewChildService(childRepo, logr)
	userSvc := service.NewUserService(userRepo, nil, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, childRepo, nil, logr)
	settingSvc := service.NewSettingService(settingRepo, cacheSvc, cfg.Settings.CacheTTL, nil, logr)
	reportSvc := service.NewReportService(attendanceRepo, childRepo, export.NewPDFExporter(), logr)

	deliveryCtx, stopDelivery := context.WithCancel(context.Background())
	notificationSvc.Start(deliveryCtx)

	signer := storage.NewSignedURLSigner(cfg.JWT.Secret, 30*time.Minute)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc, signer, files)
	childHandler := handler.NewChildHandler(childSvc)
	userHandler := handler.NewUserHandler(userSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	settingHandler := handler.NewSettingHandler(settingSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix + "/v1")

	// Public surface: applications, document downloads by signed link and
	// the public settings subset.
	api.POST("/enrollments", enrollmentHandler.Create)
	api.POST("/enrollments/:id/documents", enrollmentHandler.UploadDocuments)
	api.GET("/documents/download", enrollmentHandler.DownloadDocument)
	api.GET("/settings/public", settingHandler.ListPublic)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authed := auth.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.POST("/logout", authHandler.Logout)
	authed.POST("/change-password", authHandler.ChangePassword)
	authed.GET("/me", authHandler.Me)

	staff := api.Group("")
	staff.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleStaff))
	staff.GET("/enrollments", enrollmentHandler.List)
	staff.GET("/enrollments/:id", enrollmentHandler.Get)
	staff.PUT("/enrollments/:id/approve", enrollmentHandler.Approve)
	staff.PUT("/enrollments/:id/reject", enrollmentHandler.Reject)
	staff.GET("/enrollments/:id/documents/:docID/url", enrollmentHandler.DocumentURL)
	staff.POST("/attendance/check-in", attendanceHandler.CheckIn)
	staff.POST("/attendance/check-out", attendanceHandler.CheckOut)
	staff.GET("/attendance", attendanceHandler.List)
	staff.GET("/attendance/summary", attendanceHandler.DailySummary)
	staff.GET("/reports/children/:id/attendance", reportHandler.Attendance)

	users := api.Group("")
	users.Use(middleware.JWT(authSvc))
	users.GET("/children", childHandler.List)
	users.GET("/children/:id", childHandler.Get)
	users.GET("/children/:id/documents", childHandler.ListDocuments)
	users.GET("/notifications", notificationHandler.List)
	users.GET("/notifications/unread-count", notificationHandler.UnreadCount)
	users.PUT("/notifications/:id/read", notificationHandler.MarkRead)

	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/users", userHandler.List)
	admin.GET("/users/:id", userHandler.Get)
	admin.PUT("/users/:id", middleware.Audit(auditSvc, "user.update", "user"), userHandler.Update)
	admin.DELETE("/users/:id", middleware.Audit(auditSvc, "user.deactivate", "user"), userHandler.Deactivate)
	admin.GET("/settings", settingHandler.List)
	admin.GET("/settings/:key", settingHandler.Get)
	admin.PUT("/settings", middleware.Audit(auditSvc, "setting.update", "setting"), settingHandler.Update)
	admin.GET("/metrics/summary", metricsHandler.Summary)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}

	stopDelivery()
	notificationSvc.Stop()

	if redisClient != nil {
		_ = redisClient.Close()
	}
	logr.Info("server stopped")
}
