package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/catalog"
	"github.com/VictorGoic0/SpendSense/internal/domain/insight"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, userID string, consent bool) *types.User {
	tb.Helper()
	u := &types.User{
		UserID:        userID,
		FullName:      "Seed User",
		Email:         userID + "@example.com",
		UserType:      types.UserTypeCustomer,
		ConsentStatus: consent,
	}
	if consent {
		now := time.Now().UTC()
		u.ConsentGrantedAt = &now
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedAccount(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, accountID, accountType string, balance float64) *types.Account {
	tb.Helper()
	a := &types.Account{
		AccountID:       accountID,
		UserID:          userID,
		Type:            accountType,
		BalanceCurrent:  &balance,
		ISOCurrencyCode: "USD",
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed account: %v", err)
	}
	return a
}

func SeedCreditAccount(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, accountID string, balance, limit float64) *types.Account {
	tb.Helper()
	a := &types.Account{
		AccountID:       accountID,
		UserID:          userID,
		Type:            "credit card",
		BalanceCurrent:  &balance,
		BalanceLimit:    &limit,
		ISOCurrencyCode: "USD",
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed credit account: %v", err)
	}
	return a
}

func SeedTransaction(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, accountID, txnID string, date time.Time, amount float64, merchant string) *types.Transaction {
	tb.Helper()
	t := &types.Transaction{
		TransactionID: txnID,
		AccountID:     accountID,
		UserID:        userID,
		Date:          date,
		Amount:        amount,
		MerchantName:  merchant,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed transaction: %v", err)
	}
	return t
}

func SeedLiability(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, accountID, liabilityID string, minPayment, lastPayment float64, overdue bool) *types.Liability {
	tb.Helper()
	l := &types.Liability{
		LiabilityID:          liabilityID,
		AccountID:            accountID,
		UserID:               userID,
		LiabilityType:        "credit_card",
		MinimumPaymentAmount: &minPayment,
		LastPaymentAmount:    &lastPayment,
		IsOverdue:            overdue,
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed liability: %v", err)
	}
	return l
}

func SeedFeatureSnapshot(tb testing.TB, ctx context.Context, tx *gorm.DB, userID string, windowDays int) *types.FeatureSnapshot {
	tb.Helper()
	fs := &types.FeatureSnapshot{
		FeatureID:  uuid.New(),
		UserID:     userID,
		WindowDays: windowDays,
		ComputedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(fs).Error; err != nil {
		tb.Fatalf("seed feature snapshot: %v", err)
	}
	return fs
}

func SeedPersona(tb testing.TB, ctx context.Context, tx *gorm.DB, userID string, windowDays int, personaType string) *types.PersonaAssignment {
	tb.Helper()
	p := &types.PersonaAssignment{
		PersonaID:       uuid.New(),
		UserID:          userID,
		WindowDays:      windowDays,
		PersonaType:     personaType,
		ConfidenceScore: 0.8,
		AssignedAt:      time.Now().UTC(),
		Reasoning:       insight.EncodeReasoningTrace(insight.ReasoningTrace{}),
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed persona: %v", err)
	}
	return p
}

func SeedProduct(tb testing.TB, ctx context.Context, tx *gorm.DB, productID, category string, personaTargets []string) *types.ProductOffer {
	tb.Helper()
	p := &types.ProductOffer{
		ProductID:            productID,
		ProductName:          "Seed Product " + productID,
		ProductType:          "app",
		Category:             category,
		PersonaTargets:       catalog.EncodeStringList(personaTargets),
		Benefits:             catalog.EncodeStringList([]string{"no fees"}),
		ShortDescription:     "seed product",
		Disclosure:           "This is educational content, not financial advice.",
		MaxCreditUtilization: 1.0,
		Active:               true,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedRecommendation(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, recID, status string) *types.Recommendation {
	tb.Helper()
	r := &types.Recommendation{
		RecommendationID: recID,
		UserID:           userID,
		PersonaType:      types.PersonaSavingsBuilder,
		WindowDays:       30,
		ContentType:      types.ContentTypeEducation,
		Title:            "Seed title",
		Content:          "Seed content.",
		Rationale:        "Seed rationale.",
		Status:           status,
		GeneratedAt:      time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed recommendation: %v", err)
	}
	return r
}
