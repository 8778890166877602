package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/db"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	httpx "github.com/VictorGoic0/SpendSense/internal/http"
	"github.com/VictorGoic0/SpendSense/internal/http/handlers"
	"github.com/VictorGoic0/SpendSense/internal/observability"
	"github.com/VictorGoic0/SpendSense/internal/platform/envutil"
	"github.com/VictorGoic0/SpendSense/internal/platform/gcs"
	"github.com/VictorGoic0/SpendSense/internal/platform/llm"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/platform/redislock"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

func main() {
	ctx := context.Background()

	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Policy
	policy, err := config.PolicyFromEnv()
	if err != nil {
		log.Error("Failed to load policy config", "error", err)
		os.Exit(1)
	}

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "spendsense-api",
		Environment: envutil.String("DEPLOY_ENV", "development"),
		Version:     envutil.String("SERVICE_VERSION", "dev"),
	})
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	// Database
	log.Info("Connecting to database...")
	dbService, err := db.NewService(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrateAll(dbService.DB()); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := dbService.DB()

	// Optional collaborators
	lock, err := redislock.NewFromEnv(log)
	if err != nil {
		log.Warn("Generation lock init failed; continuing without it", "error", err)
		lock = nil
	}
	artifacts, err := gcs.NewArtifactStoreFromEnv(ctx, log)
	if err != nil {
		log.Warn("Artifact store init failed; continuing without export", "error", err)
		artifacts = nil
	}

	// Provider
	provider, err := llm.NewClient(log)
	if err != nil {
		log.Error("Could not init LLM client", "error", err)
		os.Exit(1)
	}

	// Repos
	log.Info("Setting up repos...")
	userRepo := repos.NewUserRepo(thePG, log)
	consentRepo := repos.NewConsentLogRepo(thePG, log)
	accountRepo := repos.NewAccountRepo(thePG, log)
	transactionRepo := repos.NewTransactionRepo(thePG, log)
	liabilityRepo := repos.NewLiabilityRepo(thePG, log)
	featureRepo := repos.NewFeatureSnapshotRepo(thePG, log)
	personaRepo := repos.NewPersonaAssignmentRepo(thePG, log)
	metricRepo := repos.NewEvaluationMetricRepo(thePG, log)
	productRepo := repos.NewProductOfferRepo(thePG, log)
	recRepo := repos.NewRecommendationRepo(thePG, log)
	actionRepo := repos.NewOperatorActionRepo(thePG, log)

	// Services
	log.Info("Setting up services...")
	promptStore := services.NewPromptStore(log)
	ingestionService := services.NewIngestionService(thePG, log, userRepo, accountRepo, transactionRepo, liabilityRepo, productRepo)
	featureService := services.NewFeatureService(thePG, log, policy, userRepo, accountRepo, transactionRepo, liabilityRepo, featureRepo)
	personaService := services.NewPersonaService(thePG, log, policy, userRepo, accountRepo, transactionRepo, featureRepo, personaRepo)
	productService := services.NewProductService(thePG, log, policy, userRepo, accountRepo, featureRepo, personaRepo, productRepo)
	consentService := services.NewConsentService(thePG, log, userRepo, consentRepo)
	userService := services.NewUserService(thePG, log, policy, userRepo, featureRepo, personaRepo, recRepo)
	contextBuilder := services.NewContextBuilder(thePG, log, policy, userRepo, featureRepo, personaRepo, accountRepo, transactionRepo, liabilityRepo)
	recommendationService := services.NewRecommendationService(thePG, log, policy, userRepo, recRepo, actionRepo, contextBuilder, promptStore, provider, lock)
	evaluationService := services.NewEvaluationService(thePG, log, policy, userRepo, featureRepo, personaRepo, recRepo, metricRepo, artifacts)

	// Handlers
	log.Info("Setting up handlers...")
	routerCfg := httpx.RouterConfig{
		Log:                   log,
		HealthHandler:         handlers.NewHealthHandler(),
		IngestHandler:         handlers.NewIngestHandler(log, ingestionService),
		UserHandler:           handlers.NewUserHandler(log, userService),
		FeatureHandler:        handlers.NewFeatureHandler(log, featureService),
		PersonaHandler:        handlers.NewPersonaHandler(log, personaService),
		ConsentHandler:        handlers.NewConsentHandler(log, consentService),
		ProductHandler:        handlers.NewProductHandler(log, productService),
		RecommendationHandler: handlers.NewRecommendationHandler(log, recommendationService),
		EvaluationHandler:     handlers.NewEvaluationHandler(log, evaluationService),
	}

	port := envutil.String("PORT", "8000")
	server := httpx.NewServer(routerCfg, ":"+port)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Server listening", "port", port)
	if err := server.Run(runCtx); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
