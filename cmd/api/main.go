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

	_ "github.com/bimbingan-kampus/konsultasi-api/api/swagger"
	"github.com/bimbingan-kampus/konsultasi-api/internal/handler"
	"github.com/bimbingan-kampus/konsultasi-api/internal/middleware"
	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
	"github.com/bimbingan-kampus/konsultasi-api/internal/repository"
	"github.com/bimbingan-kampus/konsultasi-api/internal/service"
	"github.com/bimbingan-kampus/konsultasi-api/pkg/cache"
	"github.com/bimbingan-kampus/konsultasi-api/pkg/config"
	"github.com/bimbingan-kampus/konsultasi-api/pkg/database"
	"github.com/bimbingan-kampus/konsultasi-api/pkg/logger"
	corsmiddleware "github.com/bimbingan-kampus/konsultasi-api/pkg/middleware/cors"
	"github.com/bimbingan-kampus/konsultasi-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/bimbingan-kampus/konsultasi-api/pkg/middleware/requestid"
)

// @title Konsultasi Bimbingan API
// @version 1.0.0
// @description Campus consultation booking between mahasiswa and dosen
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades to uncached operation without redis.
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	consultationRepo := repository.NewConsultationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	directorySvc := service.NewDirectoryService(userRepo, cacheRepo, metricsSvc, logr, cfg.Directory.AdvisorCacheTTL)
	consultationSvc := service.NewConsultationService(consultationRepo, userRepo, userRepo, cacheRepo, metricsSvc, validate, logr)
	agendaSvc := service.NewAgendaService(consultationRepo, userRepo, cacheRepo, metricsSvc, logr, cfg.Directory.AgendaCacheTTL)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(directorySvc)
	consultationHandler := handler.NewConsultationHandler(consultationSvc, agendaSvc)
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
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		defer limiter.Stop()
		auth.Use(ratelimit.Middleware(limiter))
	}
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	advisors := api.Group("/advisors", middleware.JWT(authSvc))
	advisors.GET("", userHandler.ListAdvisors)
	advisors.GET("/:id", userHandler.GetAdvisor)

	consultations := api.Group("/consultations", middleware.JWT(authSvc))
	consultations.POST("", middleware.RequireRoles(models.RoleMahasiswa), consultationHandler.Book)
	consultations.GET("", consultationHandler.List)
	consultations.GET("/agenda", middleware.RequireRoles(models.RoleDosen), consultationHandler.Agenda)
	consultations.GET("/agenda/export", middleware.RequireRoles(models.RoleDosen), consultationHandler.ExportAgenda)
	consultations.GET("/:id", consultationHandler.Get)
	consultations.PATCH("/:id", middleware.RequireRoles(models.RoleMahasiswa), consultationHandler.Amend)
	consultations.DELETE("/:id", middleware.RequireRoles(models.RoleMahasiswa), consultationHandler.Withdraw)
	consultations.POST("/:id/decision", middleware.RequireRoles(models.RoleDosen), consultationHandler.Decide)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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
	if err := cacheRepo.Close(); err != nil {
		logr.Warn("failed to close redis", zap.Error(err))
	}
}
