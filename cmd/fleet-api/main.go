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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/fleetcircle/shuttle-ops-api/api/swagger"
	"github.com/fleetcircle/shuttle-ops-api/internal/conflict"
	"github.com/fleetcircle/shuttle-ops-api/internal/handler"
	"github.com/fleetcircle/shuttle-ops-api/internal/middleware"
	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	"github.com/fleetcircle/shuttle-ops-api/internal/repository"
	"github.com/fleetcircle/shuttle-ops-api/internal/service"
	"github.com/fleetcircle/shuttle-ops-api/pkg/cache"
	"github.com/fleetcircle/shuttle-ops-api/pkg/config"
	"github.com/fleetcircle/shuttle-ops-api/pkg/database"
	"github.com/fleetcircle/shuttle-ops-api/pkg/export"
	"github.com/fleetcircle/shuttle-ops-api/pkg/jobs"
	"github.com/fleetcircle/shuttle-ops-api/pkg/logger"
	corsmiddleware "github.com/fleetcircle/shuttle-ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fleetcircle/shuttle-ops-api/pkg/middleware/requestid"
	"github.com/fleetcircle/shuttle-ops-api/pkg/storage"
)

// @title Shuttle Ops API
// @version 1.0.0
// @description Shuttle fleet scheduling with conflict detection and resolution
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Redis is optional: without it the API runs uncached.
	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, 5*time.Minute, logr, true)
		defer cacheRepo.Close() //nolint:errcheck
	}

	userRepo := repository.NewUserRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	clientRepo := repository.NewClientRepository(db)
	driverRepo := repository.NewDriverRepository(db)
	shuttleRepo := repository.NewShuttleRepository(db)
	routeRepo := repository.NewRouteRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	maintenanceRepo := repository.NewMaintenanceRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	reportRepo := repository.NewReportRepository(db)

	resolver := conflict.NewResolver(scheduleRepo, maintenanceRepo, driverRepo, shuttleRepo, conflict.Config{
		Tolerance:    cfg.Conflict.Tolerance,
		TimeStep:     cfg.Conflict.TimeStep,
		SearchRadius: cfg.Conflict.SearchRadius,
		MaxPerAxis:   cfg.Conflict.MaxPerAxis,
	})

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "shuttle-ops-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	companySvc := service.NewCompanyService(companyRepo, validate, logr)
	clientSvc := service.NewClientService(clientRepo, validate, logr)
	driverSvc := service.NewDriverService(driverRepo, validate, logr)
	shuttleSvc := service.NewShuttleService(shuttleRepo, maintenanceRepo, validate, logr)
	routeSvc := service.NewRouteService(routeRepo, validate, logr)
	maintenanceSvc := service.NewMaintenanceService(maintenanceRepo, shuttleRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, driverRepo, shuttleRepo, routeRepo, userRepo, resolver, cacheSvc, metricsSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(scheduleRepo, maintenanceRepo, driverRepo, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Reports.Enabled {
		reportQueue.Start(ctx)
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	companyHandler := handler.NewCompanyHandler(companySvc)
	clientHandler := handler.NewClientHandler(clientSvc)
	driverHandler := handler.NewDriverHandler(driverSvc)
	shuttleHandler := handler.NewShuttleHandler(shuttleSvc)
	routeHandler := handler.NewRouteHandler(routeSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	maintenanceHandler := handler.NewMaintenanceHandler(maintenanceSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Report downloads authenticate via the signed token itself.
	api.GET("/export/:token", reportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.POST("/auth/logout", authHandler.Logout)
	protected.POST("/auth/change-password", authHandler.ChangePassword)

	users := protected.Group("/users")
	users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfRole), userHandler.Get)
	users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
	users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Deactivate)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleDispatcher)

	companies := protected.Group("/companies")
	companies.GET("", companyHandler.List)
	companies.GET("/:id", companyHandler.Get)
	companies.POST("", staff, companyHandler.Create)
	companies.PUT("/:id", staff, companyHandler.Update)
	companies.DELETE("/:id", staff, companyHandler.Deactivate)

	clients := protected.Group("/clients")
	clients.GET("", clientHandler.List)
	clients.GET("/:id", clientHandler.Get)
	clients.POST("", staff, clientHandler.Create)
	clients.PUT("/:id", staff, clientHandler.Update)
	clients.DELETE("/:id", staff, clientHandler.Deactivate)

	drivers := protected.Group("/drivers")
	drivers.GET("", driverHandler.List)
	drivers.GET("/:id", driverHandler.Get)
	drivers.POST("", staff, driverHandler.Create)
	drivers.PUT("/:id", staff, driverHandler.Update)
	drivers.DELETE("/:id", staff, driverHandler.Deactivate)

	shuttles := protected.Group("/shuttles")
	shuttles.GET("", shuttleHandler.List)
	shuttles.GET("/:id", shuttleHandler.Get)
	shuttles.POST("", staff, shuttleHandler.Create)
	shuttles.PUT("/:id", staff, shuttleHandler.Update)
	shuttles.PUT("/:id/status", staff, shuttleHandler.SetStatus)

	routes := protected.Group("/routes")
	routes.GET("", routeHandler.List)
	routes.GET("/:id", routeHandler.Get)
	routes.POST("", staff, routeHandler.Create)
	routes.PUT("/:id", staff, routeHandler.Update)
	routes.DELETE("/:id", staff, routeHandler.Deactivate)

	schedules := protected.Group("/schedules")
	schedules.GET("", scheduleHandler.List)
	schedules.GET("/day/:date", scheduleHandler.Day)
	schedules.GET("/:id", scheduleHandler.Get)
	schedules.POST("", staff, scheduleHandler.Create)
	schedules.PUT("/:id", staff, scheduleHandler.Update)
	schedules.PUT("/:id/status", staff, scheduleHandler.SetStatus)
	schedules.DELETE("/:id", staff, scheduleHandler.Delete)
	schedules.POST("/conflict-check", scheduleHandler.CheckConflict)
	schedules.POST("/suggestions", scheduleHandler.Suggest)

	maintenance := protected.Group("/maintenance")
	maintenance.GET("", maintenanceHandler.List)
	maintenance.GET("/:id", maintenanceHandler.Get)
	maintenance.POST("", staff, middleware.Audit(userRepo, models.AuditActionMaintenanceOpen, "maintenance"), maintenanceHandler.Open)
	maintenance.PUT("/:id/close", staff, middleware.Audit(userRepo, models.AuditActionMaintenanceClose, "maintenance"), maintenanceHandler.Close)

	if cfg.Reports.Enabled {
		reports := protected.Group("/reports")
		reports.POST("/generate", staff, reportHandler.Generate)
		reports.GET("/:id/status", reportHandler.Status)
	}

	if cfg.Dashboard.Enabled {
		protected.GET("/dashboard/overview", dashboardHandler.Overview)
	}

	protected.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
	reportQueue.Stop()
}
