package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/dberr"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/bank"
	"github.com/VictorGoic0/SpendSense/internal/domain/catalog"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// MandatoryDisclosure is appended to every piece of generated content before
// it is persisted.
const MandatoryDisclosure = "This is educational content, not financial advice. Consult a licensed advisor for personalized guidance."

// ToneValidation is the outcome of screening one piece of content. Findings
// never block persistence at generation time; critical findings block
// operator overrides.
type ToneValidation struct {
	IsValid  bool                `json:"is_valid"`
	Warnings []types.ToneWarning `json:"validation_warnings"`
}

func (v ToneValidation) HasCritical() bool {
	for _, w := range v.Warnings {
		if w.IsCritical() {
			return true
		}
	}
	return false
}

// ValidateTone screens content against the shaming-phrase blocklist, then
// checks that at least one empowering keyword appears. Both checks are
// case-insensitive substring matches.
func ValidateTone(content string, pol config.GuardrailPolicy) ToneValidation {
	lower := strings.ToLower(content)

	warnings := []types.ToneWarning{}
	for _, phrase := range pol.ForbiddenPhrases {
		if strings.Contains(lower, phrase) {
			warnings = append(warnings, types.ToneWarning{
				Severity: types.WarningSeverityCritical,
				Type:     types.WarningForbiddenPhrase,
				Message:  fmt.Sprintf("Contains shaming language: '%s'", phrase),
			})
		}
	}

	empowering := false
	for _, kw := range pol.EmpoweringKeywords {
		if strings.Contains(lower, kw) {
			empowering = true
			break
		}
	}
	if !empowering {
		warnings = append(warnings, types.ToneWarning{
			Severity: types.WarningSeverityNotable,
			Type:     types.WarningLacksEmpoweringLanguage,
			Message:  "Content lacks empowering tone - no empowering keywords found",
		})
	}

	return ToneValidation{IsValid: len(warnings) == 0, Warnings: warnings}
}

// AppendDisclosure terminates the sentence if needed and appends the
// disclaimer as its own paragraph.
func AppendDisclosure(content string) string {
	if strings.HasSuffix(strings.TrimSpace(content), ".") {
		return content + "\n\n" + MandatoryDisclosure
	}
	return content + ".\n\n" + MandatoryDisclosure
}

// GuardrailService runs the eligibility checks that need storage lookups.
// Tone screening and the disclosure appender are pure and live alongside as
// package functions so the generation pipeline can call them without a
// service handle.
type GuardrailService interface {
	CheckConsent(ctx context.Context, userID string) (bool, error)
	CheckIncomeEligibility(ctx context.Context, userID string, minIncome float64) (bool, error)
	CheckCreditEligibility(ctx context.Context, userID string, maxUtilization float64) (bool, error)
	HasAccountOfType(ctx context.Context, userID, accountType string) (bool, error)
	CheckProductEligibility(ctx context.Context, userID string, product *types.ProductOffer, features *types.FeatureSnapshot) (bool, string, error)
}

type guardrailService struct {
	db       *gorm.DB
	log      *logger.Logger
	policy   config.Policy
	users    repos.UserRepo
	accounts repos.AccountRepo
	features repos.FeatureSnapshotRepo
}

func NewGuardrailService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	users repos.UserRepo,
	accounts repos.AccountRepo,
	features repos.FeatureSnapshotRepo,
) GuardrailService {
	return &guardrailService{
		db:       db,
		log:      baseLog.With("service", "GuardrailService"),
		policy:   policy,
		users:    users,
		accounts: accounts,
		features: features,
	}
}

// CheckConsent reports the user's current consent flag. A missing user reads
// as no consent rather than an error.
func (s *guardrailService) CheckConsent(ctx context.Context, userID string) (bool, error) {
	const op = "GuardrailService.CheckConsent"
	u, err := s.users.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return false, dberr.MapError(op, err)
	}
	if u == nil {
		s.log.Warn("Consent check for unknown user", "user_id", userID)
		return false, nil
	}
	return u.ConsentStatus, nil
}

// CheckIncomeEligibility compares the short-window average monthly income
// against a partner's minimum. Users without computed features never pass.
func (s *guardrailService) CheckIncomeEligibility(ctx context.Context, userID string, minIncome float64) (bool, error) {
	const op = "GuardrailService.CheckIncomeEligibility"
	snap, err := s.features.GetByUserWindow(dbctx.Context{Ctx: ctx}, userID, s.policy.Windows.Default)
	if err != nil {
		return false, dberr.MapError(op, err)
	}
	if snap == nil {
		s.log.Warn("No features computed for income eligibility check", "user_id", userID)
		return false, nil
	}
	return snap.AvgMonthlyIncome >= minIncome, nil
}

// CheckCreditEligibility compares peak card utilization against a partner's
// ceiling. Users without computed features never pass.
func (s *guardrailService) CheckCreditEligibility(ctx context.Context, userID string, maxUtilization float64) (bool, error) {
	const op = "GuardrailService.CheckCreditEligibility"
	snap, err := s.features.GetByUserWindow(dbctx.Context{Ctx: ctx}, userID, s.policy.Windows.Default)
	if err != nil {
		return false, dberr.MapError(op, err)
	}
	if snap == nil {
		s.log.Warn("No features computed for credit eligibility check", "user_id", userID)
		return false, nil
	}
	return snap.MaxUtilization <= maxUtilization, nil
}

// HasAccountOfType reports whether the user holds at least one account of
// the given type.
func (s *guardrailService) HasAccountOfType(ctx context.Context, userID, accountType string) (bool, error) {
	const op = "GuardrailService.HasAccountOfType"
	rows, err := s.accounts.ListByUserAndTypes(dbctx.Context{Ctx: ctx}, userID, []string{accountType})
	if err != nil {
		return false, dberr.MapError(op, err)
	}
	return len(rows) > 0, nil
}

// CheckProductEligibility evaluates a product's partner criteria against the
// user's accounts and snapshot. The reason string is surfaced to operators
// as-is.
func (s *guardrailService) CheckProductEligibility(ctx context.Context, userID string, product *types.ProductOffer, features *types.FeatureSnapshot) (bool, string, error) {
	const op = "GuardrailService.CheckProductEligibility"
	held, err := s.accounts.ListByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return false, "", dberr.MapError(op, err)
	}
	ok, reason := productEligibility(product, features, held, s.policy.Matching)
	if !ok {
		s.log.Info("Product eligibility failed",
			"product_id", product.ProductID,
			"user_id", userID,
			"reason", reason,
		)
	}
	return ok, reason, nil
}

// productEligibility applies partner criteria in order and fails on the
// first violated one. A max-utilization ceiling of 1.0 (or unset) encodes
// "no limit" in the catalog and is skipped.
func productEligibility(product *types.ProductOffer, features *types.FeatureSnapshot, held []*types.Account, pol config.MatchingPolicy) (bool, string) {
	if product == nil || features == nil {
		return false, "No features computed"
	}

	if product.MinIncome > 0 && features.AvgMonthlyIncome < product.MinIncome {
		return false, fmt.Sprintf("Income below minimum requirement ($%.2f < $%.2f)",
			features.AvgMonthlyIncome, product.MinIncome)
	}

	if product.MaxCreditUtilization > 0 && product.MaxCreditUtilization < 1.0 &&
		features.AvgUtilization > product.MaxCreditUtilization {
		return false, fmt.Sprintf("Credit utilization too high (%.1f%% > %.1f%%)",
			features.AvgUtilization*100, product.MaxCreditUtilization*100)
	}

	if product.RequiresNoExistingSavings && anyAccountOfKind(held, bank.IsSavingsType) {
		return false, "Already has savings account"
	}

	if product.RequiresNoExistingInvestment && anyAccountOfKind(held, bank.IsInvestmentType) {
		return false, "Already has investment account"
	}

	// Balance transfers only make sense when there is a meaningful balance
	// to move.
	if product.Category == catalog.CategoryBalanceTransfer && features.AvgUtilization < pol.BalanceTransferMinUtil {
		return false, fmt.Sprintf("Balance transfer not beneficial at current utilization (%.1f%% < %.0f%%)",
			features.AvgUtilization*100, pol.BalanceTransferMinUtil*100)
	}

	return true, "Eligible"
}

func anyAccountOfKind(held []*types.Account, match func(string) bool) bool {
	for _, a := range held {
		if a != nil && match(a.Type) {
			return true
		}
	}
	return false
}
