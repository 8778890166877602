package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/dberr"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/bank"
	"github.com/VictorGoic0/SpendSense/internal/domain/catalog"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// Per-category relevance deltas. Like persona priorities these are rule
// semantics, not tunable policy; the trigger thresholds they pair with live
// in config.MatchingPolicy.
const (
	weightTransferHighUtil     = 0.3
	weightTransferInterest     = 0.2
	weightTransferVeryHighUtil = 0.2

	weightSavingsGap    = 0.4
	weightSavingsGrowth = 0.2
	penaltySavingsHeld  = 0.5

	weightBudgetVariableIncome = 0.3
	weightBudgetLowBuffer      = 0.3
	weightBudgetModerateVar    = 0.2

	weightSubscriptionCount = 0.4
	weightSubscriptionShare = 0.3

	weightInvestCapacity  = 0.4
	weightInvestEmergency = 0.3
	penaltyInvestHeld     = 0.4
)

// ProductMatch is one ranked catalog hit for a user, shaped for the API.
type ProductMatch struct {
	ProductID        string   `json:"product_id"`
	ProductName      string   `json:"product_name"`
	ProductType      string   `json:"product_type"`
	Category         string   `json:"category"`
	ShortDescription string   `json:"short_description"`
	Benefits         []string `json:"benefits"`
	TypicalAPYOrFee  string   `json:"typical_apy_or_fee,omitempty"`
	PartnerName      string   `json:"partner_name,omitempty"`
	PartnerLink      string   `json:"partner_link,omitempty"`
	Disclosure       string   `json:"disclosure"`
	RelevanceScore   float64  `json:"relevance_score"`
	Rationale        string   `json:"rationale"`
}

type ProductListFilter struct {
	Category    string
	PersonaType string
	ActiveOnly  bool
	Limit       int
	Offset      int
}

type ProductService interface {
	Create(ctx context.Context, row *types.ProductOffer) (*types.ProductOffer, error)
	Update(ctx context.Context, productID string, row *types.ProductOffer) (*types.ProductOffer, error)
	Deactivate(ctx context.Context, productID string) error
	Get(ctx context.Context, productID string) (*types.ProductOffer, error)
	List(ctx context.Context, filter ProductListFilter) ([]*types.ProductOffer, int64, error)
	Match(ctx context.Context, userID string, windowDays int) ([]ProductMatch, error)
}

type productService struct {
	db       *gorm.DB
	log      *logger.Logger
	policy   config.Policy
	users    repos.UserRepo
	accounts repos.AccountRepo
	features repos.FeatureSnapshotRepo
	personas repos.PersonaAssignmentRepo
	products repos.ProductOfferRepo
}

func NewProductService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	users repos.UserRepo,
	accounts repos.AccountRepo,
	features repos.FeatureSnapshotRepo,
	personas repos.PersonaAssignmentRepo,
	products repos.ProductOfferRepo,
) ProductService {
	return &productService{
		db:       db,
		log:      baseLog.With("service", "ProductService"),
		policy:   policy,
		users:    users,
		accounts: accounts,
		features: features,
		personas: personas,
		products: products,
	}
}

// Create inserts a catalog entry under a generated id. Client-supplied ids
// are ignored so the id scheme stays uniform.
func (s *productService) Create(ctx context.Context, row *types.ProductOffer) (*types.ProductOffer, error) {
	const op = "ProductService.Create"
	if row == nil {
		return nil, fault.New(fault.CodeValidation, op, "missing product payload", nil)
	}
	if strings.TrimSpace(row.ProductName) == "" ||
		strings.TrimSpace(row.ProductType) == "" ||
		strings.TrimSpace(row.Category) == "" {
		return nil, fault.New(fault.CodeValidation, op, "product_name, product_type, and category are required", nil)
	}

	row.ProductID = catalog.NewProductID()
	normalizeProductDefaults(row)

	if err := s.products.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		return nil, dberr.MapError(op, err)
	}
	s.log.Info("Created product", "product_id", row.ProductID, "product_name", row.ProductName)
	return row, nil
}

// Update replaces every mutable field of an existing entry.
func (s *productService) Update(ctx context.Context, productID string, row *types.ProductOffer) (*types.ProductOffer, error) {
	const op = "ProductService.Update"
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing product_id", nil)
	}
	if row == nil {
		return nil, fault.New(fault.CodeValidation, op, "missing product payload", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	existing, err := s.products.GetByID(dbc, productID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if existing == nil {
		return nil, fault.New(fault.CodeNotFound, op, fmt.Sprintf("product %s not found", productID), nil)
	}

	row.ProductID = existing.ProductID
	row.CreatedAt = existing.CreatedAt
	normalizeProductDefaults(row)

	if err := s.products.Update(dbc, row); err != nil {
		return nil, dberr.MapError(op, err)
	}
	s.log.Info("Updated product", "product_id", row.ProductID, "product_name", row.ProductName)
	return row, nil
}

// Deactivate soft-deletes: the row stays for audit, it just stops matching.
func (s *productService) Deactivate(ctx context.Context, productID string) error {
	const op = "ProductService.Deactivate"
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fault.New(fault.CodeValidation, op, "missing product_id", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	existing, err := s.products.GetByID(dbc, productID)
	if err != nil {
		return dberr.MapError(op, err)
	}
	if existing == nil {
		return fault.New(fault.CodeNotFound, op, fmt.Sprintf("product %s not found", productID), nil)
	}
	if err := s.products.Deactivate(dbc, productID); err != nil {
		return dberr.MapError(op, err)
	}
	s.log.Info("Deactivated product", "product_id", productID, "product_name", existing.ProductName)
	return nil
}

func (s *productService) Get(ctx context.Context, productID string) (*types.ProductOffer, error) {
	const op = "ProductService.Get"
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing product_id", nil)
	}
	row, err := s.products.GetByID(dbctx.Context{Ctx: ctx}, productID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if row == nil {
		return nil, fault.New(fault.CodeNotFound, op, fmt.Sprintf("product %s not found", productID), nil)
	}
	return row, nil
}

// List pages through the catalog. Persona targeting lives in a JSON column,
// so that filter runs in Go after the SQL-side category/active filters; the
// total reflects all filters, the page slice comes after it.
func (s *productService) List(ctx context.Context, filter ProductListFilter) ([]*types.ProductOffer, int64, error) {
	const op = "ProductService.List"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.products.List(dbctx.Context{Ctx: ctx}, strings.TrimSpace(filter.Category), filter.ActiveOnly)
	if err != nil {
		return nil, 0, dberr.MapError(op, err)
	}
	if persona := strings.TrimSpace(filter.PersonaType); persona != "" {
		kept := make([]*types.ProductOffer, 0, len(rows))
		for _, r := range rows {
			if r.TargetsPersona(persona) {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	total := int64(len(rows))
	if offset >= len(rows) {
		return []*types.ProductOffer{}, total, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], total, nil
}

// Match ranks the active catalog for one user: persona-targeted products are
// scored against the window's snapshot, floored, sorted, run through partner
// eligibility, and capped at the configured top-n.
func (s *productService) Match(ctx context.Context, userID string, windowDays int) ([]ProductMatch, error) {
	const op = "ProductService.Match"
	start := time.Now()
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing user_id", nil)
	}
	if windowDays < s.policy.Windows.Min || windowDays > s.policy.Windows.Max {
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("window_days must be between %d and %d", s.policy.Windows.Min, s.policy.Windows.Max), nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.users.GetByID(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if u == nil {
		return nil, fault.New(fault.CodeNotFound, op, fmt.Sprintf("user %s not found", userID), nil)
	}
	snap, err := s.features.GetByUserWindow(dbc, userID, windowDays)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if snap == nil {
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("features not computed for user %s, window %dd", userID, windowDays), nil)
	}
	assignment, err := s.personas.GetByUserWindow(dbc, userID, windowDays)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if assignment == nil {
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("persona not assigned for user %s, window %dd", userID, windowDays), nil)
	}
	held, err := s.accounts.ListByUser(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	active, err := s.products.List(dbc, "", true)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}

	matches := matchProducts(active, assignment.PersonaType, snap, held, s.policy.Matching)
	s.log.Info("Matched products",
		"user_id", userID,
		"persona", assignment.PersonaType,
		"window_days", windowDays,
		"catalog", len(active),
		"matches", len(matches),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return matches, nil
}

// matchProducts is the pure matching core: persona targeting, relevance
// scoring with the keep floor, stable descending sort, eligibility filter,
// top-n cap.
func matchProducts(active []*types.ProductOffer, personaType string, features *types.FeatureSnapshot, held []*types.Account, pol config.MatchingPolicy) []ProductMatch {
	base := types.NormalizePersona(personaType)

	type candidate struct {
		product *types.ProductOffer
		match   ProductMatch
	}
	var candidates []candidate
	for _, p := range active {
		if p == nil || !p.TargetsPersona(base) {
			continue
		}
		score := relevanceScore(p, features, held, pol)
		if score < pol.ScoreThreshold {
			continue
		}
		candidates = append(candidates, candidate{
			product: p,
			match: ProductMatch{
				ProductID:        p.ProductID,
				ProductName:      p.ProductName,
				ProductType:      p.ProductType,
				Category:         p.Category,
				ShortDescription: p.ShortDescription,
				Benefits:         catalog.DecodeStringList(p.Benefits),
				TypicalAPYOrFee:  p.TypicalAPYOrFee,
				PartnerName:      p.PartnerName,
				PartnerLink:      p.PartnerLink,
				Disclosure:       p.Disclosure,
				RelevanceScore:   score,
				Rationale:        productRationale(p, features, pol),
			},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].match.RelevanceScore > candidates[j].match.RelevanceScore
	})

	out := []ProductMatch{}
	for _, c := range candidates {
		if ok, _ := productEligibility(c.product, features, held, pol); !ok {
			continue
		}
		out = append(out, c.match)
		if len(out) == pol.TopN {
			break
		}
	}
	return out
}

// relevanceScore applies the category's deltas on top of the base score and
// clamps to [0,1].
func relevanceScore(p *types.ProductOffer, f *types.FeatureSnapshot, held []*types.Account, pol config.MatchingPolicy) float64 {
	score := pol.BaseScore

	switch p.Category {
	case catalog.CategoryBalanceTransfer:
		if f.AvgUtilization > pol.HighUtilization {
			score += weightTransferHighUtil
		}
		if f.InterestChargesPresent {
			score += weightTransferInterest
		}
		if f.AvgUtilization > pol.VeryHighUtilization {
			score += weightTransferVeryHighUtil
		}

	case catalog.CategoryHYSA:
		if f.NetSavingsInflow > 0 && f.EmergencyFundMonths < pol.EmergencyTargetMonths {
			score += weightSavingsGap
		}
		if f.SavingsGrowthRate > pol.MinSavingsGrowthRate {
			score += weightSavingsGrowth
		}
		if anyAccountOfKind(held, bank.IsSavingsType) {
			score -= penaltySavingsHeld
		}

	case catalog.CategoryBudgetingApp:
		variability := 0.0
		if f.IncomeVariability != nil {
			variability = *f.IncomeVariability
		}
		if variability > pol.HighIncomeVariability {
			score += weightBudgetVariableIncome
		}
		if f.CashFlowBufferMonths*30 < pol.LowBufferDays {
			score += weightBudgetLowBuffer
		}
		if variability > pol.ModerateVariability {
			score += weightBudgetModerateVar
		}

	case catalog.CategorySubscriptionManager:
		if f.RecurringMerchants >= pol.ManySubscriptions {
			score += weightSubscriptionCount
		}
		if f.SubscriptionSpendShare > pol.HighSubscriptionShare {
			score += weightSubscriptionShare
		}

	case catalog.CategoryRoboAdvisor:
		if f.AvgMonthlyIncome > pol.InvestorMinIncome && f.AvgUtilization < pol.InvestorMaxUtilization {
			score += weightInvestCapacity
		}
		if f.EmergencyFundMonths >= pol.EmergencyTargetMonths {
			score += weightInvestEmergency
		}
		if anyAccountOfKind(held, bank.IsInvestmentType) {
			score -= penaltyInvestHeld
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

var apyPattern = regexp.MustCompile(`(\d+\.?\d*)%`)

// parseAPY pulls the first percentage out of free-text fee copy like
// "4.5% APY", falling back when the copy carries none.
func parseAPY(feeText string, fallback float64) float64 {
	m := apyPattern.FindStringSubmatch(feeText)
	if len(m) < 2 {
		return fallback
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fallback
	}
	return v / 100
}

// productRationale cites the signals that drove the category's score so the
// operator sees why the product surfaced.
func productRationale(p *types.ProductOffer, f *types.FeatureSnapshot, pol config.MatchingPolicy) string {
	switch p.Category {
	case catalog.CategoryBalanceTransfer:
		// Flat estimate; TODO derive from actual card balances and APR.
		const estimatedMonthlySavings = 50.0
		return fmt.Sprintf(
			"With your credit utilization at %.0f%%, this card could save you approximately $%.0f/month in interest.",
			f.AvgUtilization*100, estimatedMonthlySavings)

	case catalog.CategoryHYSA:
		feeText := p.TypicalAPYOrFee
		if feeText == "" {
			feeText = "4.5% APY"
		}
		apy := parseAPY(feeText, 0.045)
		monthlySavings := f.NetSavingsInflow
		if monthlySavings <= 0 {
			monthlySavings = 500
		}
		annualEarnings := monthlySavings * 12 * apy
		return fmt.Sprintf(
			"Your $%.0f/month savings in a HYSA earning %s could generate approximately $%.0f extra per year.",
			monthlySavings, feeText, annualEarnings)

	case catalog.CategoryBudgetingApp:
		variability := 0.0
		if f.IncomeVariability != nil {
			variability = *f.IncomeVariability
		}
		bufferDays := f.CashFlowBufferMonths * 30
		if variability > pol.HighIncomeVariability {
			return fmt.Sprintf(
				"With variable income (variability: %.0f%%) and only %.0f days of buffer, this app helps manage irregular cash flow.",
				variability*100, bufferDays)
		}
		return fmt.Sprintf(
			"With only %.0f days of cash flow buffer, this app helps you track expenses and build financial stability.",
			bufferDays)

	case catalog.CategorySubscriptionManager:
		return fmt.Sprintf(
			"You have %d recurring subscriptions totaling $%.0f/month - this tool can help identify savings.",
			f.RecurringMerchants, f.MonthlyRecurringSpend)

	case catalog.CategoryRoboAdvisor:
		return fmt.Sprintf(
			"With $%.0f/month income and %.1f months emergency fund, you're ready to start investing.",
			f.AvgMonthlyIncome, f.EmergencyFundMonths)
	}

	return "This product aligns with your financial profile and could help you achieve your goals."
}

// normalizeProductDefaults fills the column defaults gorm will not apply to
// zero values on struct writes.
func normalizeProductDefaults(row *types.ProductOffer) {
	if len(row.PersonaTargets) == 0 {
		row.PersonaTargets = catalog.EncodeStringList(nil)
	}
	if len(row.Benefits) == 0 {
		row.Benefits = catalog.EncodeStringList(nil)
	}
	if row.MaxCreditUtilization == 0 {
		row.MaxCreditUtilization = 1.0
	}
}
