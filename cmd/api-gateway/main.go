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

	_ "github.com/noah-isme/course-market-api/api/swagger"
	"github.com/noah-isme/course-market-api/internal/cart"
	"github.com/noah-isme/course-market-api/internal/handler"
	"github.com/noah-isme/course-market-api/internal/middleware"
	"github.com/noah-isme/course-market-api/internal/models"
	"github.com/noah-isme/course-market-api/internal/repository"
	"github.com/noah-isme/course-market-api/internal/service"
	"github.com/noah-isme/course-market-api/pkg/cache"
	"github.com/noah-isme/course-market-api/pkg/config"
	"github.com/noah-isme/course-market-api/pkg/database"
	"github.com/noah-isme/course-market-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-market-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-market-api/pkg/middleware/requestid"
	"github.com/noah-isme/course-market-api/pkg/storage"
)

// @title Course Market API
// @version 1.0.0
// @description Course marketplace with enrollment, order, and academic progression tracking
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

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logr.Warn("invalid timezone, falling back to UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		location = time.UTC
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	diplomaRepo := repository.NewDiplomaRepository(db)

	// The catalog cache is optional; a Redis outage at boot downgrades the
	// catalog to direct reads instead of blocking startup.
	var cacheSvc *service.CacheService
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, true)
		}
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "course-market-api",
		Audience:           []string{"course-market-api"},
	})
	courseSvc := service.NewCourseService(courseRepo, cacheSvc, cfg.Catalog, location, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, userRepo, orderRepo, validate, logr)
	orderSvc := service.NewOrderService(orderRepo, courseRepo, enrollmentRepo, userRepo, validate, logr)
	orderSvc.SetEnrollmentGate(enrollmentSvc)
	certificateSvc := service.NewCertificateService(certificateRepo, courseRepo, enrollmentRepo, cfg.Certificates, service.HigherIsBetter, validate, logr)
	diplomaSvc := service.NewDiplomaService(diplomaRepo, curriculumRepo, certificateRepo, userRepo, logr)
	cartSvc := service.NewCartService(cart.NewStore(cfg.Carts.Shards), courseRepo, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		localStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(orderRepo, certificateRepo, diplomaRepo, localStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
			Workers:   cfg.Exports.WorkerConcurrency,
			Retries:   cfg.Exports.WorkerRetries,
		}, logr)
		exportSvc.Start(rootCtx)
		defer exportSvc.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-rootCtx.Done():
					return
				case <-ticker.C:
					if deleted, err := exportSvc.Cleanup(); err != nil {
						logr.Warn("export cleanup failed", zap.Error(err))
					} else if len(deleted) > 0 {
						logr.Info("expired exports removed", zap.Int("count", len(deleted)))
					}
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	cartHandler := handler.NewCartHandler(cartSvc)
	orderHandler := handler.NewOrderHandler(orderSvc, cartSvc, enrollmentSvc, metricsSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc)
	diplomaHandler := handler.NewDiplomaHandler(diplomaSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authRequired := middleware.JWT(authSvc)
	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authRequired, authHandler.Logout)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:courseId", courseHandler.Get)
		courses.GET("/:courseId/eligibility", enrollmentHandler.Eligibility)

		courses.POST("", authRequired, middleware.RequireRoles(models.RoleTrainer), middleware.Audit(userRepo, "create", "course"), courseHandler.Create)
		courses.PUT("/:courseId", authRequired, middleware.RequireRoles(models.RoleTrainer), middleware.Audit(userRepo, "update", "course"), courseHandler.Update)
		courses.DELETE("/:courseId", authRequired, middleware.RequireRoles(models.RoleTrainer), middleware.Audit(userRepo, "delete", "course"), courseHandler.Delete)

		courses.POST("/:courseId/enrollments", authRequired, enrollmentHandler.Enroll)
		courses.DELETE("/:courseId/enrollments", authRequired, enrollmentHandler.Unenroll)
		courses.GET("/:courseId/certificates", authRequired, certificateHandler.History)
		courses.GET("/:courseId/certificates/best", authRequired, certificateHandler.Best)
	}

	cartRoutes := api.Group("/cart", authRequired)
	{
		cartRoutes.GET("", cartHandler.Get)
		cartRoutes.DELETE("", cartHandler.Clear)
		cartRoutes.PUT("/items/:courseId", cartHandler.Add)
		cartRoutes.DELETE("/items/:courseId", cartHandler.Remove)
	}

	orders := api.Group("/orders", authRequired)
	{
		orders.POST("", orderHandler.Checkout)
		orders.GET("", orderHandler.List)
		orders.GET("/:id", orderHandler.Get)
		orders.DELETE("/:id", orderHandler.Cancel)
		orders.POST("/:id/enrollments", enrollmentHandler.SyncOrder)
	}
	api.GET("/invoices/:invoiceId", orderHandler.Invoice)

	api.GET("/enrollments", authRequired, enrollmentHandler.List)

	certificates := api.Group("/certificates")
	{
		certificates.POST("", authRequired, middleware.RequireRoles(models.RoleTrainer), middleware.Audit(userRepo, "issue", "certificate"), certificateHandler.Issue)
		certificates.GET("", authRequired, certificateHandler.List)
	}

	curriculums := api.Group("/curriculums")
	{
		curriculums.GET("", diplomaHandler.Curriculums)
		curriculums.GET("/:id/progress", authRequired, diplomaHandler.Progress)
		curriculums.POST("/:id/diplomas", authRequired, diplomaHandler.Issue)
	}

	diplomas := api.Group("/diplomas", authRequired)
	{
		diplomas.GET("", diplomaHandler.List)
		diplomas.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "revoke", "diploma"), diplomaHandler.Remove)
	}

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		exports := api.Group("/exports")
		{
			exports.POST("", authRequired, exportHandler.Request)
			exports.GET("/download/:token", exportHandler.Download)
			exports.GET("/:id", authRequired, exportHandler.Status)
		}
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

	<-rootCtx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
