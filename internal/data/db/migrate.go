package db

import (
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Identity + consent
		// =========================
		&types.User{},
		&types.ConsentLog{},

		// =========================
		// Ingested financial records
		// =========================
		&types.Account{},
		&types.Transaction{},
		&types.Liability{},

		// =========================
		// Derived signals + classification
		// =========================
		&types.FeatureSnapshot{},
		&types.PersonaAssignment{},
		&types.EvaluationMetric{},

		// =========================
		// Catalog + generated content
		// =========================
		&types.ProductOffer{},
		&types.Recommendation{},
		&types.OperatorAction{},
	)
}
