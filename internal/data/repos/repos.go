package repos

import (
	"github.com/VictorGoic0/SpendSense/internal/data/repos/bank"
	"github.com/VictorGoic0/SpendSense/internal/data/repos/catalog"
	"github.com/VictorGoic0/SpendSense/internal/data/repos/insight"
	"github.com/VictorGoic0/SpendSense/internal/data/repos/recs"
	"github.com/VictorGoic0/SpendSense/internal/data/repos/user"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"gorm.io/gorm"
)

type UserRepo = user.UserRepo
type UserFilter = user.UserFilter
type ConsentLogRepo = user.ConsentLogRepo

type AccountRepo = bank.AccountRepo
type TransactionRepo = bank.TransactionRepo
type LiabilityRepo = bank.LiabilityRepo

type FeatureSnapshotRepo = insight.FeatureSnapshotRepo
type PersonaAssignmentRepo = insight.PersonaAssignmentRepo
type EvaluationMetricRepo = insight.EvaluationMetricRepo

type ProductOfferRepo = catalog.ProductOfferRepo

type RecommendationRepo = recs.RecommendationRepo
type OperatorActionRepo = recs.OperatorActionRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewConsentLogRepo(db *gorm.DB, baseLog *logger.Logger) ConsentLogRepo {
	return user.NewConsentLogRepo(db, baseLog)
}

func NewAccountRepo(db *gorm.DB, baseLog *logger.Logger) AccountRepo {
	return bank.NewAccountRepo(db, baseLog)
}
func NewTransactionRepo(db *gorm.DB, baseLog *logger.Logger) TransactionRepo {
	return bank.NewTransactionRepo(db, baseLog)
}
func NewLiabilityRepo(db *gorm.DB, baseLog *logger.Logger) LiabilityRepo {
	return bank.NewLiabilityRepo(db, baseLog)
}

func NewFeatureSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) FeatureSnapshotRepo {
	return insight.NewFeatureSnapshotRepo(db, baseLog)
}
func NewPersonaAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) PersonaAssignmentRepo {
	return insight.NewPersonaAssignmentRepo(db, baseLog)
}
func NewEvaluationMetricRepo(db *gorm.DB, baseLog *logger.Logger) EvaluationMetricRepo {
	return insight.NewEvaluationMetricRepo(db, baseLog)
}

func NewProductOfferRepo(db *gorm.DB, baseLog *logger.Logger) ProductOfferRepo {
	return catalog.NewProductOfferRepo(db, baseLog)
}

func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return recs.NewRecommendationRepo(db, baseLog)
}
func NewOperatorActionRepo(db *gorm.DB, baseLog *logger.Logger) OperatorActionRepo {
	return recs.NewOperatorActionRepo(db, baseLog)
}
