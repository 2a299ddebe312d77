package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edutrackers/edutrack-api/api/swagger"
	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/handler"
	"github.com/edutrackers/edutrack-api/internal/middleware"
	"github.com/edutrackers/edutrack-api/internal/models"
	"github.com/edutrackers/edutrack-api/internal/repository"
	"github.com/edutrackers/edutrack-api/internal/service"
	"github.com/edutrackers/edutrack-api/pkg/cache"
	"github.com/edutrackers/edutrack-api/pkg/config"
	"github.com/edutrackers/edutrack-api/pkg/database"
	"github.com/edutrackers/edutrack-api/pkg/logger"
	corsmiddleware "github.com/edutrackers/edutrack-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edutrackers/edutrack-api/pkg/middleware/requestid"
	"github.com/edutrackers/edutrack-api/pkg/storage"
)

// @title EduTrack API
// @version 1.0.0
// @description Role-scoped education tracking backend for students and teachers.
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	identityRepo := repository.NewIdentityRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	resultRepo := repository.NewResultRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)

	// The role directory is the privileged path into the profiles table that
	// keeps policy evaluation from re-entering its own rules.
	var roles authz.RoleDirectory = identityRepo
	if cfg.Authz.RoleCacheEnabled {
		roles = authz.NewCachedDirectory(identityRepo, redisClient, cfg.Authz.RoleCacheTTL, logr).
			WithCacheObserver(metricsSvc)
	}
	evaluator := authz.NewEvaluator(roles, logr, authz.WithMetrics(metricsSvc))

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Exports.SignedURLTTL)

	attachmentStore, err := storage.NewLocalStorage(cfg.Storage.AttachmentsDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}
	attachmentSigner := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	authSvc := service.NewAuthService(identityRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "edutrack-api",
	})
	profileSvc := service.NewProfileService(identityRepo, evaluator, roles, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, identityRepo, evaluator, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, identityRepo, evaluator, roles, validate, logr)
	resultSvc := service.NewResultService(resultRepo, identityRepo, evaluator, roles, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, identityRepo, evaluator, roles, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, identityRepo, evaluator, validate, logr)
	exportSvc := service.NewExportService(resultRepo, paymentRepo, roles, exportStore, exportSigner, logr)
	attachmentSvc := service.NewAttachmentService(attachmentStore, attachmentSigner, cfg.Storage.MaxFileSizeBytes, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc)
	resultHandler := handler.NewResultHandler(resultSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	attachmentHandler := handler.NewAttachmentHandler(attachmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

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
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/profiles", profileHandler.List)
		protected.GET("/profiles/me", profileHandler.Me)
		protected.PUT("/profiles/me",
			middleware.Audit(identityRepo, models.AuditActionUpdate, "profile"),
			profileHandler.UpdateMe)
		protected.GET("/profiles/:id", profileHandler.Get)

		protected.GET("/assignments", assignmentHandler.List)
		protected.GET("/assignments/:id", assignmentHandler.Get)
		protected.POST("/assignments", assignmentHandler.Create)
		protected.PUT("/assignments/:id", assignmentHandler.Update)
		protected.DELETE("/assignments/:id", assignmentHandler.Delete)

		protected.GET("/submissions", submissionHandler.List)
		protected.GET("/submissions/:id", submissionHandler.Get)
		protected.POST("/submissions", submissionHandler.Create)
		protected.PUT("/submissions/:id/grade", submissionHandler.Grade)

		protected.GET("/results", resultHandler.List)
		protected.GET("/results/:id", resultHandler.Get)
		protected.POST("/results", resultHandler.Create)
		protected.PUT("/results/:id", resultHandler.Update)
		protected.DELETE("/results/:id", resultHandler.Delete)

		protected.GET("/payments", paymentHandler.List)
		protected.GET("/payments/:id", paymentHandler.Get)
		protected.POST("/payments", paymentHandler.Create)
		protected.PUT("/payments/:id", paymentHandler.Update)
		protected.PUT("/payments/:id/status", paymentHandler.UpdateStatus)
		protected.DELETE("/payments/:id", paymentHandler.Delete)

		protected.GET("/announcements", announcementHandler.List)
		protected.GET("/announcements/:id", announcementHandler.Get)
		protected.POST("/announcements", announcementHandler.Create)
		protected.DELETE("/announcements/:id", announcementHandler.Delete)

		protected.GET("/exports/results", exportHandler.ExportResults)
		protected.GET("/exports/payments", exportHandler.ExportPayments)

		protected.POST("/attachments", attachmentHandler.Upload)
	}

	// Downloads are authorized by the signed token itself.
	api.GET("/exports/download/:token", exportHandler.Download)
	api.GET("/attachments/download/:token", attachmentHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
