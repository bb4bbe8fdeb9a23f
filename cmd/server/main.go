// HTTP Server
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/config"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/crypto"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/gateway"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/handler"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/notify"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/repository"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/service"
	"github.com/omyratechnologies/KCS-Backend-sub002/pkg/database"
	"github.com/omyratechnologies/KCS-Backend-sub002/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.NewLogger("payment-settlement")
	defer log.Sync()

	// Load configuration
	cfg := config.Load()

	// Key material is a fatal configuration error before anything else runs.
	key, err := crypto.ResolveKey(cfg.EncryptionSecret, log)
	if err != nil {
		log.Fatal("credential encryption key missing or invalid", zap.Error(err))
	}
	cipher, err := crypto.NewCipher(key, log)
	if err != nil {
		log.Fatal("failed to initialize credential cipher", zap.Error(err))
	}

	// Initialize databases
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	for _, schema := range []string{models.BankDetailsSchema, models.TransactionSchema, models.SettlementSchema} {
		if _, err := db.Exec(schema); err != nil {
			log.Fatal("failed to apply schema", zap.Error(err))
		}
	}

	mongoDB, err := database.NewMongoDatabase(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatal("failed to connect to mongodb", zap.Error(err))
	}

	redisClient := database.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize repositories
	bankRepo := repository.NewBankRepository(db.DB)
	txnRepo := repository.NewTransactionRepository(db.DB)
	settlementRepo := repository.NewSettlementRepository(db.DB)
	auditRepo := repository.NewAuditRepository(mongoDB)
	lockRepo := repository.NewLockRepository(redisClient)

	ctx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	if err := auditRepo.EnsureIndexes(ctx); err != nil {
		log.Warn("failed to ensure audit indexes", zap.Error(err))
	}
	cancelInit()

	// Initialize services
	alertHook := func(event *models.AuditEvent) {
		// Pager/alerting integration goes here; for now critical events are
		// logged by the audit service itself.
	}
	auditService := service.NewAuditService(auditRepo, alertHook, cfg.Environment, log)

	registry := gateway.NewRegistry()
	credentialService := service.NewCredentialService(bankRepo, cipher, registry, auditService, log)
	notifier := notify.NewDispatcher(log)
	settlementService := service.NewSettlementService(
		credentialService, txnRepo, settlementRepo, registry, lockRepo,
		auditService, notifier, cfg, log,
	)
	webhookService := service.NewWebhookService(
		credentialService, settlementRepo, registry, lockRepo,
		auditService, notifier, log,
	)

	// Initialize handlers
	gatewayHandler := handler.NewGatewayHandler(credentialService, cfg.PreviousSecret, log)
	settlementHandler := handler.NewSettlementHandler(settlementService, webhookService, log)
	auditHandler := handler.NewAuditHandler(auditService, log)

	// Setup router
	router := setupRouter(gatewayHandler, settlementHandler, auditHandler, log)

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

func setupRouter(gatewayHandler *handler.GatewayHandler, settlementHandler *handler.SettlementHandler, auditHandler *handler.AuditHandler, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Health checks
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	{
		campuses := v1.Group("/campuses/:campus_id")
		{
			campuses.GET("/gateways", gatewayHandler.GetAvailableGateways)
			campuses.POST("/gateways/migrate", gatewayHandler.MigrateLegacy)
			campuses.POST("/gateways/rotate-key", gatewayHandler.RotateKey)
			campuses.POST("/gateways/:gateway", gatewayHandler.ConfigureGateway)
			campuses.POST("/gateways/:gateway/test", gatewayHandler.TestGateway)
			campuses.POST("/settlements", settlementHandler.ProcessSettlement)
			campuses.GET("/security-audit", gatewayHandler.SecurityAudit)
			campuses.GET("/audit-events", auditHandler.RecentEvents)
		}

		// Webhooks from payment providers
		v1.POST("/webhooks/:gateway/settlement", settlementHandler.SettlementWebhook)

		// Retention maintenance
		v1.DELETE("/audit-events", auditHandler.PurgeOldEvents)
	}

	return router
}
