package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/dberr"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/bank"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// personaInputs bundles everything a rule may cite: the stored snapshot plus
// the two account/transaction lookups the wealth rule needs.
type personaInputs struct {
	features       *types.FeatureSnapshot
	savingsBalance float64
	hasFeeActivity bool
}

// personaEvidence is one matched rule: the label, its priority tier, the
// criteria strings, and the raw values they cite.
type personaEvidence struct {
	personaType string
	priority    float64
	criteria    []string
	values      map[string]any
}

// personaRule pairs a label with its predicate. Rules are evaluated
// uniformly, in declaration order, which is priority-descending; sorting the
// matches is stable so that order also breaks priority ties.
type personaRule struct {
	personaType string
	evaluate    func(in personaInputs, pol config.PersonaPolicy) *personaEvidence
}

var personaRules = []personaRule{
	{personaType: types.PersonaWealthBuilder, evaluate: evaluateWealthBuilder},
	{personaType: types.PersonaHighUtilization, evaluate: evaluateHighUtilization},
	{personaType: types.PersonaSavingsBuilder, evaluate: evaluateSavingsBuilder},
	{personaType: types.PersonaVariableIncome, evaluate: evaluateVariableIncome},
	{personaType: types.PersonaSubscriptionHeavy, evaluate: evaluateSubscriptionHeavy},
}

type PersonaService interface {
	// Assign classifies from the stored snapshot and fails with a validation
	// fault when no snapshot exists for the window.
	Assign(ctx context.Context, userID string, windowDays int) (*types.PersonaAssignment, error)
	// AssignWithFallback always produces an assignment, falling back to
	// savings_builder at low confidence when features are missing.
	AssignWithFallback(ctx context.Context, userID string, windowDays int) (*types.PersonaAssignment, error)
	ListByUser(ctx context.Context, userID string, window *int) ([]*types.PersonaAssignment, error)
}

type personaService struct {
	db       *gorm.DB
	log      *logger.Logger
	policy   config.Policy
	users    repos.UserRepo
	accounts repos.AccountRepo
	txns     repos.TransactionRepo
	features repos.FeatureSnapshotRepo
	personas repos.PersonaAssignmentRepo
}

func NewPersonaService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	users repos.UserRepo,
	accounts repos.AccountRepo,
	txns repos.TransactionRepo,
	features repos.FeatureSnapshotRepo,
	personas repos.PersonaAssignmentRepo,
) PersonaService {
	return &personaService{
		db:       db,
		log:      baseLog.With("service", "PersonaService"),
		policy:   policy,
		users:    users,
		accounts: accounts,
		txns:     txns,
		features: features,
		personas: personas,
	}
}

func (s *personaService) Assign(ctx context.Context, userID string, windowDays int) (*types.PersonaAssignment, error) {
	const op = "PersonaService.Assign"
	snap, err := s.requireUserSnapshot(ctx, op, userID, windowDays)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("features not computed for user %s, window %dd", userID, windowDays), nil)
	}
	return s.classifyAndSave(ctx, op, userID, windowDays, snap)
}

func (s *personaService) AssignWithFallback(ctx context.Context, userID string, windowDays int) (*types.PersonaAssignment, error) {
	const op = "PersonaService.AssignWithFallback"
	snap, err := s.requireUserSnapshot(ctx, op, userID, windowDays)
	if err != nil {
		return nil, err
	}
	return s.classifyAndSave(ctx, op, userID, windowDays, snap)
}

func (s *personaService) ListByUser(ctx context.Context, userID string, window *int) ([]*types.PersonaAssignment, error) {
	const op = "PersonaService.ListByUser"
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.users.GetByID(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if u == nil {
		return nil, fault.New(fault.CodeNotFound, op, fmt.Sprintf("user %s not found", userID), nil)
	}
	if window != nil {
		row, err := s.personas.GetByUserWindow(dbc, userID, *window)
		if err != nil {
			return nil, dberr.MapError(op, err)
		}
		if row == nil {
			return []*types.PersonaAssignment{}, nil
		}
		return []*types.PersonaAssignment{row}, nil
	}
	rows, err := s.personas.ListByUser(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	return rows, nil
}

func (s *personaService) requireUserSnapshot(ctx context.Context, op, userID string, windowDays int) (*types.FeatureSnapshot, error) {
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
	return snap, nil
}

func (s *personaService) classifyAndSave(ctx context.Context, op, userID string, windowDays int, snap *types.FeatureSnapshot) (*types.PersonaAssignment, error) {
	dbc := dbctx.Context{Ctx: ctx}

	var personaType string
	var confidence float64
	var trace types.ReasoningTrace

	if snap == nil {
		personaType = types.PersonaSavingsBuilder
		confidence = s.policy.Personas.FallbackConfidenceNoFeatures
		trace = fallbackTrace("No features computed for this user/window - fallback assignment")
		s.log.Warn("No features for persona assignment, using fallback",
			"user_id", userID, "window_days", windowDays)
	} else {
		in, err := s.gatherPersonaInputs(dbc, snap)
		if err != nil {
			return nil, dberr.MapError(op, err)
		}
		personaType, confidence, trace = classifyPersona(in, s.policy.Personas)
		if len(trace.MatchedCriteria) == 0 {
			s.log.Info("No persona criteria matched, using fallback",
				"user_id", userID, "window_days", windowDays)
		}
	}

	row := &types.PersonaAssignment{
		UserID:          userID,
		WindowDays:      windowDays,
		PersonaType:     personaType,
		ConfidenceScore: confidence,
		AssignedAt:      time.Now().UTC(),
		Reasoning:       types.EncodeReasoningTrace(trace),
	}
	if err := s.personas.Upsert(dbc, row); err != nil {
		return nil, dberr.MapError(op, err)
	}
	s.log.Info("Assigned persona",
		"user_id", userID,
		"window_days", windowDays,
		"persona_type", personaType,
		"confidence", confidence,
	)
	return row, nil
}

// gatherPersonaInputs resolves the account balance and fee lookups the wealth
// rule cites alongside the snapshot.
func (s *personaService) gatherPersonaInputs(dbc dbctx.Context, snap *types.FeatureSnapshot) (personaInputs, error) {
	in := personaInputs{features: snap}

	savings, err := s.accounts.ListByUserAndTypes(dbc, snap.UserID, bank.SavingsAccountTypes())
	if err != nil {
		return in, err
	}
	for _, a := range savings {
		in.savingsBalance += a.CurrentBalance()
	}

	feeSince := windowStart(time.Now(), s.policy.Personas.FeeLookbackDays)
	hasFees, err := s.txns.HasFeeActivitySince(dbc, snap.UserID, feeSince)
	if err != nil {
		return in, err
	}
	in.hasFeeActivity = hasFees
	return in, nil
}

// classifyPersona runs the ordered rule table and picks the highest-priority
// match. No match falls back to savings_builder at the no-match confidence.
func classifyPersona(in personaInputs, pol config.PersonaPolicy) (string, float64, types.ReasoningTrace) {
	var matches []personaEvidence
	for _, rule := range personaRules {
		if ev := rule.evaluate(in, pol); ev != nil {
			matches = append(matches, *ev)
		}
	}
	if len(matches) == 0 {
		return types.PersonaSavingsBuilder, pol.FallbackConfidenceNoMatch,
			fallbackTrace("No persona criteria matched - fallback assignment")
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].priority > matches[j].priority })
	top := matches[0]

	all := make([]string, 0, len(matches))
	for _, m := range matches {
		all = append(all, m.personaType)
	}
	return top.personaType, top.priority, types.ReasoningTrace{
		MatchedCriteria:    top.criteria,
		FeatureValues:      top.values,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		Priority:           top.priority,
		AllMatchedPersonas: all,
	}
}

func fallbackTrace(reason string) types.ReasoningTrace {
	return types.ReasoningTrace{
		MatchedCriteria: []string{},
		FeatureValues:   map[string]any{},
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Reason:          reason,
	}
}

func evaluateWealthBuilder(in personaInputs, pol config.PersonaPolicy) *personaEvidence {
	f := in.features
	if f.AvgMonthlyIncome <= pol.WealthMinMonthlyIncome {
		return nil
	}
	if in.savingsBalance <= pol.WealthMinSavingsBalance {
		return nil
	}
	if f.MaxUtilization > pol.WealthMaxUtilization {
		return nil
	}
	if in.hasFeeActivity {
		return nil
	}
	if !f.InvestmentAccountDetected {
		return nil
	}
	return &personaEvidence{
		personaType: types.PersonaWealthBuilder,
		priority:    config.PriorityWealthBuilder,
		criteria: []string{
			fmt.Sprintf("avg_monthly_income=%.2f > %.0f", f.AvgMonthlyIncome, pol.WealthMinMonthlyIncome),
			fmt.Sprintf("savings_balance=%.2f > %.0f", in.savingsBalance, pol.WealthMinSavingsBalance),
			fmt.Sprintf("max_utilization=%.2f%% <= %.2f", f.MaxUtilization*100, pol.WealthMaxUtilization),
			"no_overdraft_or_late_fees=true",
			"investment_account_detected=true",
		},
		values: map[string]any{
			"avg_monthly_income":          f.AvgMonthlyIncome,
			"savings_balance":             in.savingsBalance,
			"max_utilization":             f.MaxUtilization,
			"investment_account_detected": f.InvestmentAccountDetected,
		},
	}
}

func evaluateHighUtilization(in personaInputs, pol config.PersonaPolicy) *personaEvidence {
	f := in.features
	if f.MaxUtilization < pol.HighUtilizationThreshold &&
		!f.InterestChargesPresent && !f.MinimumPaymentOnlyFlag && !f.AnyOverdue {
		return nil
	}

	priority := config.PriorityHighUtilization
	if f.MaxUtilization >= pol.SevereUtilization {
		priority = config.PriorityHighUtilizationSevere
	}

	var criteria []string
	if f.MaxUtilization >= pol.HighUtilizationThreshold {
		criteria = append(criteria, fmt.Sprintf("max_utilization=%.2f%% >= %.2f", f.MaxUtilization*100, pol.HighUtilizationThreshold))
	}
	if f.InterestChargesPresent {
		criteria = append(criteria, "interest_charges_present=true")
	}
	if f.MinimumPaymentOnlyFlag {
		criteria = append(criteria, "minimum_payment_only_flag=true")
	}
	if f.AnyOverdue {
		criteria = append(criteria, "any_overdue=true")
	}
	return &personaEvidence{
		personaType: types.PersonaHighUtilization,
		priority:    priority,
		criteria:    criteria,
		values: map[string]any{
			"max_utilization":           f.MaxUtilization,
			"interest_charges_present":  f.InterestChargesPresent,
			"minimum_payment_only_flag": f.MinimumPaymentOnlyFlag,
			"any_overdue":               f.AnyOverdue,
		},
	}
}

func evaluateSavingsBuilder(in personaInputs, pol config.PersonaPolicy) *personaEvidence {
	f := in.features
	if f.SavingsGrowthRate < pol.SavingsMinGrowthRate && f.NetSavingsInflow < pol.SavingsMinMonthlyInflow {
		return nil
	}
	if f.AvgUtilization >= pol.SavingsMaxUtilization {
		return nil
	}

	var criteria []string
	if f.SavingsGrowthRate >= pol.SavingsMinGrowthRate {
		criteria = append(criteria, fmt.Sprintf("savings_growth_rate=%.2f%% >= %.2f", f.SavingsGrowthRate*100, pol.SavingsMinGrowthRate))
	}
	if f.NetSavingsInflow >= pol.SavingsMinMonthlyInflow {
		criteria = append(criteria, fmt.Sprintf("net_savings_inflow=%.2f >= %.0f", f.NetSavingsInflow, pol.SavingsMinMonthlyInflow))
	}
	if f.AvgUtilization < pol.SavingsMaxUtilization {
		criteria = append(criteria, fmt.Sprintf("avg_utilization=%.2f%% < %.2f", f.AvgUtilization*100, pol.SavingsMaxUtilization))
	}
	return &personaEvidence{
		personaType: types.PersonaSavingsBuilder,
		priority:    config.PrioritySavingsBuilder,
		criteria:    criteria,
		values: map[string]any{
			"savings_growth_rate": f.SavingsGrowthRate,
			"net_savings_inflow":  f.NetSavingsInflow,
			"avg_utilization":     f.AvgUtilization,
		},
	}
}

func evaluateVariableIncome(in personaInputs, pol config.PersonaPolicy) *personaEvidence {
	f := in.features
	if f.MedianPayGapDays == nil {
		return nil
	}
	if *f.MedianPayGapDays <= pol.VariableMinPayGapDays || f.CashFlowBufferMonths >= pol.VariableMaxBufferMonth {
		return nil
	}
	return &personaEvidence{
		personaType: types.PersonaVariableIncome,
		priority:    config.PriorityVariableIncome,
		criteria: []string{
			fmt.Sprintf("median_pay_gap_days=%d > %d", *f.MedianPayGapDays, pol.VariableMinPayGapDays),
			fmt.Sprintf("cash_flow_buffer_months=%.2f < %.0f", f.CashFlowBufferMonths, pol.VariableMaxBufferMonth),
		},
		values: map[string]any{
			"median_pay_gap_days":     *f.MedianPayGapDays,
			"cash_flow_buffer_months": f.CashFlowBufferMonths,
		},
	}
}

func evaluateSubscriptionHeavy(in personaInputs, pol config.PersonaPolicy) *personaEvidence {
	f := in.features
	if f.RecurringMerchants < pol.SubscriptionMinMerchants {
		return nil
	}
	if f.MonthlyRecurringSpend < pol.SubscriptionMinMonthlySpend && f.SubscriptionSpendShare < pol.SubscriptionMinSpendShare {
		return nil
	}

	var criteria []string
	criteria = append(criteria, fmt.Sprintf("recurring_merchants=%d >= %d", f.RecurringMerchants, pol.SubscriptionMinMerchants))
	if f.MonthlyRecurringSpend >= pol.SubscriptionMinMonthlySpend {
		criteria = append(criteria, fmt.Sprintf("monthly_recurring_spend=%.2f >= %.0f", f.MonthlyRecurringSpend, pol.SubscriptionMinMonthlySpend))
	}
	if f.SubscriptionSpendShare >= pol.SubscriptionMinSpendShare {
		criteria = append(criteria, fmt.Sprintf("subscription_spend_share=%.2f%% >= %.2f", f.SubscriptionSpendShare*100, pol.SubscriptionMinSpendShare))
	}
	return &personaEvidence{
		personaType: types.PersonaSubscriptionHeavy,
		priority:    config.PrioritySubscriptionHeavy,
		criteria:    criteria,
		values: map[string]any{
			"recurring_merchants":      f.RecurringMerchants,
			"monthly_recurring_spend":  f.MonthlyRecurringSpend,
			"subscription_spend_share": f.SubscriptionSpendShare,
		},
	}
}
