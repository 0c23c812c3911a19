// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"repurpose-service/internal/config"
	"repurpose-service/internal/db"
	adminHandler "repurpose-service/internal/handlers/admin"
	codeHandler "repurpose-service/internal/handlers/code"
	creditHandler "repurpose-service/internal/handlers/credit"
	entitlementHandler "repurpose-service/internal/handlers/entitlement"
	tierHandler "repurpose-service/internal/handlers/tiers"
	usageHandler "repurpose-service/internal/handlers/usage"
	"repurpose-service/internal/middleware"
	"repurpose-service/internal/pkg/token"
	"repurpose-service/internal/repository/postgres"
	adminUsecase "repurpose-service/internal/service/admin"
	codeUsecase "repurpose-service/internal/service/code"
	creditUsecase "repurpose-service/internal/service/credit"
	"repurpose-service/internal/service/email"
	entitlementUsecase "repurpose-service/internal/service/entitlement"
	notifyUsecase "repurpose-service/internal/service/notification"
	reconcileUsecase "repurpose-service/internal/service/reconcile"
	usageUsecase "repurpose-service/internal/service/usage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Migrate(s.cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		log.Fatalf("[REDIS] ❌ Failed to connect to Redis: %v", err)
	}
	log.Println("[REDIS] ✅ Connected successfully")

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- JWT Manager -----
	if s.cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	tokenManager := token.NewManager(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.JWTTTL)

	// ----- Email -----
	emailSender := email.NewSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFromName,
		s.cfg.SMTPSecure,
	)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	planRepo := postgres.NewPlanRepository(pool)
	creditRepo := postgres.NewCreditRepository(pool)
	codeRepo := postgres.NewCodeRepository(pool)
	usageRepo := postgres.NewUsageRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	notifyRepo := postgres.NewNotificationRepository(pool)

	// ----- Services (Usecases) -----
	notifService := notifyUsecase.NewService(emailSender, notifyRepo, redisClient, logger)
	entitlementService := entitlementUsecase.NewService(planRepo, redisClient, logger)
	adminService := adminUsecase.NewService(planRepo, auditRepo, entitlementService, logger)
	creditService := creditUsecase.NewService(creditRepo, planRepo, entitlementService, notifService, logger)
	codeService := codeUsecase.NewService(codeRepo, planRepo, dbWrapper, entitlementService, notifService, adminService, logger)
	usageService := usageUsecase.NewService(usageRepo, planRepo, logger)
	reconcileService := reconcileUsecase.NewService(planRepo, codeRepo, dbWrapper, entitlementService, notifService, logger)

	// Monthly resets and re-engagement nudges run in the background for
	// the life of the process.
	go reconcileService.Run(ctx, s.cfg.ReconcileInterval)

	// ----- Handlers -----
	tierHandlerInst := tierHandler.NewTierHandler()
	entitlementHandlerInst := entitlementHandler.NewEntitlementHandler(entitlementService)
	creditHandlerInst := creditHandler.NewCreditHandler(creditService, reconcileService)
	codeHandlerInst := codeHandler.NewCodeHandler(codeService)
	usageHandlerInst := usageHandler.NewUsageHandler(usageService)
	adminHandlerInst := adminHandler.NewAdminHandler(adminService, creditService, reconcileService)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(tokenManager)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		TierHandler:        tierHandlerInst,
		EntitlementHandler: entitlementHandlerInst,
		CreditHandler:      creditHandlerInst,
		CodeHandler:        codeHandlerInst,
		UsageHandler:       usageHandlerInst,
		AdminHandler:       adminHandlerInst,
		AuthMiddleware:     authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("🚀 Server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
