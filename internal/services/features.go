package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
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

// AnalysisWindows are the rolling windows a full profile carries. Callers may
// compute any window inside the configured bounds; these two are the standard
// pair the rest of the system reads.
var AnalysisWindows = []int{30, 180}

// SubscriptionSignals describes recurring-merchant spend inside one window.
// The signal structs carry JSON tags because the context builder serializes
// them into the prompt document as-is.
type SubscriptionSignals struct {
	RecurringMerchants     int     `json:"recurring_merchants"`
	MonthlyRecurringSpend  float64 `json:"monthly_recurring_spend"`
	SubscriptionSpendShare float64 `json:"subscription_spend_share"`
}

// SavingsSignals describes inflow and growth across savings-type accounts.
type SavingsSignals struct {
	NetSavingsInflow    float64 `json:"net_savings_inflow"`
	SavingsGrowthRate   float64 `json:"savings_growth_rate"`
	EmergencyFundMonths float64 `json:"emergency_fund_months"`
}

// CreditSignals describes card utilization and repayment behavior.
type CreditSignals struct {
	AvgUtilization         float64 `json:"avg_utilization"`
	MaxUtilization         float64 `json:"max_utilization"`
	Utilization30Flag      bool    `json:"utilization_30_flag"`
	Utilization50Flag      bool    `json:"utilization_50_flag"`
	Utilization80Flag      bool    `json:"utilization_80_flag"`
	MinimumPaymentOnlyFlag bool    `json:"minimum_payment_only_flag"`
	InterestChargesPresent bool    `json:"interest_charges_present"`
	AnyOverdue             bool    `json:"any_overdue"`
}

// IncomeSignals describes payroll cadence and cash-flow headroom. Gap and
// variability stay nil until payroll is actually detected.
type IncomeSignals struct {
	PayrollDetected      bool     `json:"payroll_detected"`
	MedianPayGapDays     *int     `json:"median_pay_gap_days"`
	IncomeVariability    *float64 `json:"income_variability"`
	CashFlowBufferMonths float64  `json:"cash_flow_buffer_months"`
	AvgMonthlyIncome     float64  `json:"avg_monthly_income"`
}

type FeatureService interface {
	Compute(ctx context.Context, userID string, windowDays int) (*types.FeatureSnapshot, error)
	ComputeAllWindows(ctx context.Context, userID string) ([]*types.FeatureSnapshot, error)
	GetByUserWindow(ctx context.Context, userID string, windowDays int) (*types.FeatureSnapshot, error)
	ListByUser(ctx context.Context, userID string) ([]*types.FeatureSnapshot, error)
}

type featureService struct {
	db           *gorm.DB
	log          *logger.Logger
	policy       config.Policy
	users        repos.UserRepo
	accounts     repos.AccountRepo
	transactions repos.TransactionRepo
	liabilities  repos.LiabilityRepo
	features     repos.FeatureSnapshotRepo
}

func NewFeatureService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	users repos.UserRepo,
	accounts repos.AccountRepo,
	transactions repos.TransactionRepo,
	liabilities repos.LiabilityRepo,
	features repos.FeatureSnapshotRepo,
) FeatureService {
	return &featureService{
		db:           db,
		log:          baseLog.With("service", "FeatureService"),
		policy:       policy,
		users:        users,
		accounts:     accounts,
		transactions: transactions,
		liabilities:  liabilities,
		features:     features,
	}
}

// Compute derives every signal group for (user, window) and replaces the
// stored snapshot wholesale. Missing upstream data degrades to zero values
// rather than an error; only an unknown user or an out-of-range window fails.
func (s *featureService) Compute(ctx context.Context, userID string, windowDays int) (*types.FeatureSnapshot, error) {
	const op = "FeatureService.Compute"
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

	since := windowStart(time.Now(), windowDays)
	txns, err := s.transactions.ListByUserSince(dbc, userID, since)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	accounts, err := s.accounts.ListByUser(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	liabilities, err := s.liabilities.ListByUser(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}

	started := time.Now()
	snap := buildFeatureSnapshot(userID, windowDays, accounts, txns, liabilities, s.policy)
	if err := s.features.Upsert(dbc, snap); err != nil {
		return nil, dberr.MapError(op, err)
	}
	s.log.Info("Computed feature snapshot",
		"user_id", userID,
		"window_days", windowDays,
		"transactions", len(txns),
		"accounts", len(accounts),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return snap, nil
}

// ComputeAllWindows recomputes the standard window pair concurrently. Results
// come back ordered by window length.
func (s *featureService) ComputeAllWindows(ctx context.Context, userID string) ([]*types.FeatureSnapshot, error) {
	g, gctx := errgroup.WithContext(ctx)
	out := make([]*types.FeatureSnapshot, len(AnalysisWindows))
	for i, window := range AnalysisWindows {
		g.Go(func() error {
			snap, err := s.Compute(gctx, userID, window)
			if err != nil {
				return err
			}
			out[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *featureService) GetByUserWindow(ctx context.Context, userID string, windowDays int) (*types.FeatureSnapshot, error) {
	const op = "FeatureService.GetByUserWindow"
	snap, err := s.features.GetByUserWindow(dbctx.Context{Ctx: ctx}, userID, windowDays)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	return snap, nil
}

func (s *featureService) ListByUser(ctx context.Context, userID string) ([]*types.FeatureSnapshot, error) {
	const op = "FeatureService.ListByUser"
	rows, err := s.features.ListByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	return rows, nil
}

// windowStart anchors the lookback at local midnight so a transaction dated
// exactly windowDays ago still falls inside the window.
func windowStart(now time.Time, windowDays int) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, -windowDays)
}

func buildFeatureSnapshot(
	userID string,
	windowDays int,
	accounts []*types.Account,
	txns []*types.Transaction,
	liabilities []*types.Liability,
	policy config.Policy,
) *types.FeatureSnapshot {
	subs := computeSubscriptionSignals(txns, windowDays, policy.Subscriptions)
	savings := computeSavingsSignals(accounts, txns, windowDays)
	credit := computeCreditSignals(accounts, liabilities, txns, policy.Credit)
	income := computeIncomeSignals(accounts, txns, windowDays, policy.Income)

	return &types.FeatureSnapshot{
		FeatureID:  uuid.New(),
		UserID:     userID,
		WindowDays: windowDays,
		ComputedAt: time.Now().UTC(),

		RecurringMerchants:     subs.RecurringMerchants,
		MonthlyRecurringSpend:  subs.MonthlyRecurringSpend,
		SubscriptionSpendShare: subs.SubscriptionSpendShare,

		NetSavingsInflow:    savings.NetSavingsInflow,
		SavingsGrowthRate:   savings.SavingsGrowthRate,
		EmergencyFundMonths: savings.EmergencyFundMonths,

		AvgUtilization:         credit.AvgUtilization,
		MaxUtilization:         credit.MaxUtilization,
		Utilization30Flag:      credit.Utilization30Flag,
		Utilization50Flag:      credit.Utilization50Flag,
		Utilization80Flag:      credit.Utilization80Flag,
		MinimumPaymentOnlyFlag: credit.MinimumPaymentOnlyFlag,
		InterestChargesPresent: credit.InterestChargesPresent,
		AnyOverdue:             credit.AnyOverdue,

		PayrollDetected:      income.PayrollDetected,
		MedianPayGapDays:     income.MedianPayGapDays,
		IncomeVariability:    income.IncomeVariability,
		CashFlowBufferMonths: income.CashFlowBufferMonths,
		AvgMonthlyIncome:     income.AvgMonthlyIncome,

		InvestmentAccountDetected: detectInvestmentAccount(accounts),
	}
}

// isRecurringGapPattern reports whether the sorted dates repeat on one of the
// configured cadences. A cadence is only a candidate when the mean gap sits
// within tolerance of it, so isolated short gaps beside a long one cannot pass
// as weekly; it then needs the configured share of individual gaps within
// tolerance.
func isRecurringGapPattern(dates []time.Time, pol config.SubscriptionPolicy) bool {
	if len(dates) < 3 {
		return false
	}
	gaps := make([]int, 0, len(dates)-1)
	gapSum := 0
	for i := 1; i < len(dates); i++ {
		gap := int(dates[i].Sub(dates[i-1]).Hours() / 24)
		gaps = append(gaps, gap)
		gapSum += gap
	}
	meanGap := float64(gapSum) / float64(len(gaps))

	for _, cadence := range pol.CadencesDays {
		if math.Abs(meanGap-float64(cadence)) > float64(pol.GapToleranceDays) {
			continue
		}
		matching := 0
		for _, g := range gaps {
			diff := g - cadence
			if diff < 0 {
				diff = -diff
			}
			if diff <= pol.GapToleranceDays {
				matching++
			}
		}
		if float64(matching) >= float64(len(gaps))*pol.RecurringShare {
			return true
		}
	}
	return false
}

func computeSubscriptionSignals(txns []*types.Transaction, windowDays int, pol config.SubscriptionPolicy) SubscriptionSignals {
	if len(txns) == 0 {
		return SubscriptionSignals{}
	}

	byMerchant := make(map[string][]*types.Transaction)
	for _, tx := range txns {
		name := strings.TrimSpace(tx.MerchantName)
		if name == "" {
			continue
		}
		byMerchant[name] = append(byMerchant[name], tx)
	}

	var recurringSpend float64
	recurringCount := 0
	for _, list := range byMerchant {
		if len(list) < pol.MinOccurrences {
			continue
		}
		dates := make([]time.Time, 0, len(list))
		for _, tx := range list {
			dates = append(dates, tx.Date)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		if !isRecurringGapPattern(dates, pol) {
			continue
		}
		recurringCount++
		for _, tx := range list {
			recurringSpend += math.Abs(tx.Amount)
		}
	}

	var totalSpend float64
	for _, tx := range txns {
		totalSpend += math.Abs(tx.Amount)
	}

	out := SubscriptionSignals{RecurringMerchants: recurringCount}
	if months := float64(windowDays) / 30.0; months > 0 {
		out.MonthlyRecurringSpend = recurringSpend / months
	}
	if totalSpend > 0 {
		out.SubscriptionSpendShare = recurringSpend / totalSpend
	}
	return out
}

func computeSavingsSignals(accounts []*types.Account, txns []*types.Transaction, windowDays int) SavingsSignals {
	savingsIDs := make(map[string]bool)
	var savingsAccounts []*types.Account
	var totalBalance float64
	for _, a := range accounts {
		if bank.IsSavingsType(a.Type) {
			savingsIDs[a.AccountID] = true
			savingsAccounts = append(savingsAccounts, a)
			totalBalance += a.CurrentBalance()
		}
	}

	inflowByAccount := make(map[string]float64)
	var totalInflow float64
	for _, tx := range txns {
		if savingsIDs[tx.AccountID] {
			inflowByAccount[tx.AccountID] += tx.Amount
			totalInflow += tx.Amount
		}
	}

	// Growth per account works backwards from the current balance: the window
	// start balance is current minus net inflow. A zero-to-positive start
	// counts as 100% growth; negative starts are skipped.
	var growthSum float64
	growthCount := 0
	for _, a := range savingsAccounts {
		current := a.CurrentBalance()
		start := current - inflowByAccount[a.AccountID]
		switch {
		case start < 0:
			continue
		case start == 0:
			if current > 0 {
				growthSum += 1.0
				growthCount++
			}
		default:
			growthSum += (current - start) / start
			growthCount++
		}
	}

	out := SavingsSignals{}
	if months := float64(windowDays) / 30.0; months > 0 {
		out.NetSavingsInflow = totalInflow / months
	}
	if growthCount > 0 {
		out.SavingsGrowthRate = growthSum / float64(growthCount)
	}
	if expenses := monthlyCheckingExpenses(accounts, txns, windowDays); expenses > 0 {
		out.EmergencyFundMonths = totalBalance / expenses
	}
	return out
}

func computeCreditSignals(accounts []*types.Account, liabilities []*types.Liability, txns []*types.Transaction, pol config.CreditPolicy) CreditSignals {
	out := CreditSignals{}

	var utilSum, utilMax float64
	cards := 0
	for _, a := range accounts {
		if !bank.IsCreditType(a.Type) {
			continue
		}
		limit := a.Limit()
		if limit <= 0 {
			continue
		}
		util := a.CurrentBalance() / limit
		utilSum += util
		if util > utilMax {
			utilMax = util
		}
		cards++
	}
	if cards > 0 {
		out.AvgUtilization = utilSum / float64(cards)
		out.MaxUtilization = utilMax
	}
	out.Utilization30Flag = out.MaxUtilization >= pol.UtilizationFlag30
	out.Utilization50Flag = out.MaxUtilization >= pol.UtilizationFlag50
	out.Utilization80Flag = out.MaxUtilization >= pol.UtilizationFlag80

	for _, l := range liabilities {
		if l.IsOverdue {
			out.AnyOverdue = true
		}
		if l.LastPaymentAmount != nil && l.MinimumPaymentAmount != nil &&
			*l.LastPaymentAmount <= *l.MinimumPaymentAmount+pol.MinPaymentToleranceUSD {
			out.MinimumPaymentOnlyFlag = true
		}
	}

	for _, tx := range txns {
		if strings.Contains(strings.ToLower(tx.CategoryDetailed), "interest") {
			out.InterestChargesPresent = true
			break
		}
	}
	return out
}

func computeIncomeSignals(accounts []*types.Account, txns []*types.Transaction, windowDays int, pol config.IncomePolicy) IncomeSignals {
	out := IncomeSignals{}

	var payroll []*types.Transaction
	var totalIncome float64
	for _, tx := range txns {
		if isPayrollCandidate(tx) {
			payroll = append(payroll, tx)
			totalIncome += tx.Amount
		}
	}
	if months := float64(windowDays) / 30.0; months > 0 {
		out.AvgMonthlyIncome = totalIncome / months
	}

	if len(payroll) >= pol.MinPayrollTransactions {
		out.PayrollDetected = true
		sort.Slice(payroll, func(i, j int) bool { return payroll[i].Date.Before(payroll[j].Date) })

		gaps := make([]int, 0, len(payroll)-1)
		for i := 1; i < len(payroll); i++ {
			gaps = append(gaps, int(payroll[i].Date.Sub(payroll[i-1].Date).Hours()/24))
		}
		if len(gaps) > 0 {
			gap := int(math.Round(medianOfInts(gaps)))
			out.MedianPayGapDays = &gap
		}

		variability := incomeVariability(payroll)
		out.IncomeVariability = &variability
	}

	var checkingBalance float64
	for _, a := range accounts {
		if bank.IsCheckingType(a.Type) {
			checkingBalance += a.CurrentBalance()
		}
	}
	if expenses := monthlyCheckingExpenses(accounts, txns, windowDays); expenses > 0 {
		out.CashFlowBufferMonths = checkingBalance / expenses
	}
	return out
}

// isPayrollCandidate marks positive deposits that look like wages: ACH
// channel, an income-like primary category, or a payroll merchant name.
func isPayrollCandidate(tx *types.Transaction) bool {
	if tx == nil || tx.Amount <= 0 {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(tx.PaymentChannel), "ach") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(tx.CategoryPrimary)) {
	case "income", "payroll", "salary":
		return true
	}
	merchant := strings.ToUpper(tx.MerchantName)
	return strings.Contains(merchant, "PAYROLL") || strings.Contains(merchant, "SALARY")
}

// incomeVariability is the coefficient of variation (sample stdev over mean)
// of payroll amounts. Zero when the mean is zero or fewer than two samples.
func incomeVariability(payroll []*types.Transaction) float64 {
	if len(payroll) < 2 {
		return 0
	}
	var sum float64
	for _, tx := range payroll {
		sum += tx.Amount
	}
	mean := sum / float64(len(payroll))
	if mean == 0 {
		return 0
	}
	var squares float64
	for _, tx := range payroll {
		d := tx.Amount - mean
		squares += d * d
	}
	stdev := math.Sqrt(squares / float64(len(payroll)-1))
	return stdev / mean
}

func medianOfInts(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2.0
}

// monthlyCheckingExpenses averages the absolute value of negative checking
// transactions over the window, expressed per month.
func monthlyCheckingExpenses(accounts []*types.Account, txns []*types.Transaction, windowDays int) float64 {
	checkingIDs := make(map[string]bool)
	for _, a := range accounts {
		if bank.IsCheckingType(a.Type) {
			checkingIDs[a.AccountID] = true
		}
	}
	var total float64
	for _, tx := range txns {
		if tx.Amount < 0 && checkingIDs[tx.AccountID] {
			total += -tx.Amount
		}
	}
	months := float64(windowDays) / 30.0
	if months <= 0 {
		return 0
	}
	return total / months
}

func detectInvestmentAccount(accounts []*types.Account) bool {
	for _, a := range accounts {
		if bank.IsInvestmentType(a.Type) {
			return true
		}
	}
	return false
}
