package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/auth"
	"github.com/catalogai/catalog-engine/pkg/config"
	"github.com/catalogai/catalog-engine/pkg/database"
	"github.com/catalogai/catalog-engine/pkg/handlers"
	"github.com/catalogai/catalog-engine/pkg/llm"
	"github.com/catalogai/catalog-engine/pkg/middleware"
	"github.com/catalogai/catalog-engine/pkg/repositories"
	"github.com/catalogai/catalog-engine/pkg/resilience"
	"github.com/catalogai/catalog-engine/pkg/retry"
	"github.com/catalogai/catalog-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host),
		zap.String("ai_endpoint", cfg.AI.Endpoint))

	ctx := context.Background()

	// Migrations run through database/sql; the pool below is pgx-native.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Auth stack
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		Issuer:             cfg.Auth.Issuer,
		JWKSURL:            cfg.Auth.JWKSURL,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	// Repositories
	membershipRepo := repositories.NewMembershipRepository(db)
	catalogRepo := repositories.NewCatalogRepository()
	requestRepo := repositories.NewRequestRepository()
	proposalRepo := repositories.NewProposalRepository()
	auditRepo := repositories.NewAuditRepository()

	// AI provider client plus one resilience policy per concern, so an
	// embedding outage doesn't trip the enrichment breaker.
	llmClient, err := llm.NewOpenAIClient(llm.ClientConfig{
		Endpoint:       cfg.AI.Endpoint,
		APIKey:         cfg.AI.APIKey,
		Model:          cfg.AI.Model,
		EmbeddingModel: cfg.AI.EmbeddingModel,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create AI client", zap.Error(err))
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.Resilience.MaxRetries
	embeddingPolicy := resilience.NewPolicy(
		resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:       "embedding provider",
			Threshold:  cfg.Resilience.BreakerThreshold,
			ResetAfter: cfg.Resilience.BreakerReset(),
		}), retryCfg, logger)
	enrichmentPolicy := resilience.NewPolicy(
		resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:       "enrichment provider",
			Threshold:  cfg.Resilience.BreakerThreshold,
			ResetAfter: cfg.Resilience.BreakerReset(),
		}), retryCfg, logger)

	// Services
	auditService := services.NewAuditService(auditRepo, logger)
	embeddingService := services.NewEmbeddingService(llmClient, embeddingPolicy, &cfg.Embedding, logger)
	catalogService := services.NewCatalogService(catalogRepo, embeddingService, auditService, logger)
	proposalService := services.NewProposalService(proposalRepo, catalogRepo, embeddingService, auditService, logger)
	requestService := services.NewRequestService(requestRepo, proposalService, auditService, logger)
	enrichmentService := services.NewEnrichmentService(llmClient, enrichmentPolicy, &cfg.Enrichment, logger)

	// Middleware
	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, membershipRepo, logger)
	tenantMiddleware := database.NewTenantMiddleware(db, logger)
	tenant := tenantMiddleware.WithTenantScope

	// HTTP routes
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, llmClient, logger).RegisterRoutes(mux)
	handlers.NewCatalogHandler(catalogService, proposalService, enrichmentService, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewRequestHandler(requestService, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewProposalHandler(proposalService, logger).RegisterRoutes(mux, authMiddleware, tenant)
	handlers.NewProductHandler(enrichmentService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewAdminHandler(auditService, catalogService, logger).RegisterRoutes(mux, authMiddleware, tenant)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting catalog-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown failed", zap.Error(err))
	}
}

// newLogger builds a production logger for deployed environments and a
// development logger locally.
func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
