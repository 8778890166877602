package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/db"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/catalog"
	"github.com/VictorGoic0/SpendSense/internal/platform/envutil"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

//go:embed products.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Products []struct {
		ProductID                    string   `yaml:"product_id"`
		ProductName                  string   `yaml:"product_name"`
		ProductType                  string   `yaml:"product_type"`
		Category                     string   `yaml:"category"`
		PersonaTargets               []string `yaml:"persona_targets"`
		ShortDescription             string   `yaml:"short_description"`
		Benefits                     []string `yaml:"benefits"`
		TypicalAPYOrFee              string   `yaml:"typical_apy_or_fee"`
		PartnerLink                  string   `yaml:"partner_link"`
		Disclosure                   string   `yaml:"disclosure"`
		PartnerName                  string   `yaml:"partner_name"`
		MinIncome                    float64  `yaml:"min_income"`
		MaxCreditUtilization         float64  `yaml:"max_credit_utilization"`
		RequiresNoExistingSavings    bool     `yaml:"requires_no_existing_savings"`
		RequiresNoExistingInvestment bool     `yaml:"requires_no_existing_investment"`
		MinCreditScore               *int     `yaml:"min_credit_score"`
		CommissionRate               float64  `yaml:"commission_rate"`
		Priority                     int      `yaml:"priority"`
		Active                       bool     `yaml:"active"`
	} `yaml:"products"`
}

func loadCatalog(path string) ([]*types.ProductOffer, error) {
	raw := defaultCatalogYAML
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		raw = data
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	offers := make([]*types.ProductOffer, 0, len(file.Products))
	for _, p := range file.Products {
		maxUtil := p.MaxCreditUtilization
		if maxUtil == 0 {
			maxUtil = 1.0
		}
		offers = append(offers, &types.ProductOffer{
			ProductID:                    p.ProductID,
			ProductName:                  p.ProductName,
			ProductType:                  p.ProductType,
			Category:                     p.Category,
			PersonaTargets:               catalog.EncodeStringList(p.PersonaTargets),
			ShortDescription:             p.ShortDescription,
			Benefits:                     catalog.EncodeStringList(p.Benefits),
			TypicalAPYOrFee:              p.TypicalAPYOrFee,
			PartnerLink:                  p.PartnerLink,
			Disclosure:                   p.Disclosure,
			PartnerName:                  p.PartnerName,
			MinIncome:                    p.MinIncome,
			MaxCreditUtilization:         maxUtil,
			RequiresNoExistingSavings:    p.RequiresNoExistingSavings,
			RequiresNoExistingInvestment: p.RequiresNoExistingInvestment,
			MinCreditScore:               p.MinCreditScore,
			CommissionRate:               p.CommissionRate,
			Priority:                     p.Priority,
			Active:                       p.Active,
		})
	}
	return offers, nil
}

func main() {
	var (
		userCount   = flag.Int("users", 36, "number of customers to generate")
		seed        = flag.Int64("seed", 42, "random seed for reproducible datasets")
		wipe        = flag.Bool("wipe", false, "drop and recreate all tables first")
		catalogPath = flag.String("products", "", "product catalog YAML (default: embedded catalog)")
		skipDerive  = flag.Bool("skip-derive", false, "skip feature/persona computation after ingest")
	)
	flag.Parse()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	policy, err := config.PolicyFromEnv()
	if err != nil {
		log.Error("Failed to load policy config", "error", err)
		os.Exit(1)
	}

	dbService, err := db.NewService(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	thePG := dbService.DB()

	if *wipe {
		log.Info("Wiping existing tables...")
		if err := thePG.Migrator().DropTable(
			&types.OperatorAction{}, &types.Recommendation{}, &types.EvaluationMetric{},
			&types.PersonaAssignment{}, &types.FeatureSnapshot{}, &types.ProductOffer{},
			&types.Liability{}, &types.Transaction{}, &types.Account{},
			&types.ConsentLog{}, &types.User{},
		); err != nil {
			log.Error("Wipe failed", "error", err)
			os.Exit(1)
		}
	}
	if err := db.AutoMigrateAll(thePG); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}

	userRepo := repos.NewUserRepo(thePG, log)
	accountRepo := repos.NewAccountRepo(thePG, log)
	transactionRepo := repos.NewTransactionRepo(thePG, log)
	liabilityRepo := repos.NewLiabilityRepo(thePG, log)
	featureRepo := repos.NewFeatureSnapshotRepo(thePG, log)
	personaRepo := repos.NewPersonaAssignmentRepo(thePG, log)
	productRepo := repos.NewProductOfferRepo(thePG, log)

	ingestionService := services.NewIngestionService(thePG, log, userRepo, accountRepo, transactionRepo, liabilityRepo, productRepo)
	featureService := services.NewFeatureService(thePG, log, policy, userRepo, accountRepo, transactionRepo, liabilityRepo, featureRepo)
	personaService := services.NewPersonaService(thePG, log, policy, userRepo, accountRepo, transactionRepo, featureRepo, personaRepo)

	ctx := context.Background()

	payload := newGenerator(*seed).generate(*userCount)
	offers, err := loadCatalog(*catalogPath)
	if err != nil {
		log.Error("Catalog load failed", "error", err)
		os.Exit(1)
	}
	payload.Products = offers

	result, err := ingestionService.Ingest(ctx, payload)
	if err != nil {
		log.Error("Ingest failed", "error", err)
		os.Exit(1)
	}
	log.Info("Dataset ingested",
		"users", result.Ingested["users"],
		"accounts", result.Ingested["accounts"],
		"transactions", result.Ingested["transactions"],
		"liabilities", result.Ingested["liabilities"],
		"products", result.Ingested["products"],
		"duration_ms", result.DurationMS,
	)

	if *skipDerive {
		return
	}

	log.Info("Computing features and personas for both windows...")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, u := range payload.Users {
		if u.UserType != types.UserTypeCustomer {
			continue
		}
		userID := u.UserID
		g.Go(func() error {
			if _, err := featureService.ComputeAllWindows(gctx, userID); err != nil {
				return fmt.Errorf("features for %s: %w", userID, err)
			}
			for _, window := range []int{30, 180} {
				if _, err := personaService.AssignWithFallback(gctx, userID, window); err != nil {
					return fmt.Errorf("persona for %s/%dd: %w", userID, window, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("Derivation failed", "error", err)
		os.Exit(1)
	}

	log.Info("Seed complete", "customers", *userCount)
}
