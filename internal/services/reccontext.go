package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
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

// Merchant names are illustrative context, not a signal; the list is capped
// independently of the transaction cap.
const maxRecurringMerchantNames = 10

// ContextAccount is an account as the model sees it: type, a masked display
// name, and balances. The raw account id never leaves the builder.
type ContextAccount struct {
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Balance float64  `json:"balance"`
	Limit   *float64 `json:"limit,omitempty"`
}

type ContextTransaction struct {
	Date     string  `json:"date"`
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Type     string  `json:"type"`
}

// HighUtilizationCard carries per-card detail only when utilization is high
// enough that the card is what the recommendations should talk about.
type HighUtilizationCard struct {
	Last4Digits              string   `json:"last_4_digits"`
	CurrentBalance           float64  `json:"current_balance"`
	CreditLimit              float64  `json:"credit_limit"`
	UtilizationPercentage    float64  `json:"utilization_percentage"`
	InterestRate             *float64 `json:"interest_rate,omitempty"`
	MinimumPayment           *float64 `json:"minimum_payment,omitempty"`
	EstimatedMonthlyInterest *float64 `json:"estimated_monthly_interest,omitempty"`
}

type SavingsAccountsSummary struct {
	Count               int     `json:"count"`
	TotalBalance        float64 `json:"total_balance"`
	GrowthRate          float64 `json:"growth_rate"`
	EmergencyFundMonths float64 `json:"emergency_fund_months"`
}

// UserContext is everything the provider is allowed to see about a user.
// Conditional sections are omitted entirely rather than sent empty.
type UserContext struct {
	UserID               string                  `json:"user_id"`
	WindowDays           int                     `json:"window_days"`
	PersonaType          *string                 `json:"persona_type"`
	SubscriptionSignals  SubscriptionSignals     `json:"subscription_signals"`
	SavingsSignals       SavingsSignals          `json:"savings_signals"`
	CreditSignals        CreditSignals           `json:"credit_signals"`
	IncomeSignals        IncomeSignals           `json:"income_signals"`
	Accounts             []ContextAccount        `json:"accounts"`
	RecentTransactions   []ContextTransaction    `json:"recent_transactions"`
	HighUtilizationCards []HighUtilizationCard   `json:"high_utilization_cards,omitempty"`
	RecurringMerchants   []string                `json:"recurring_merchants,omitempty"`
	SavingsAccounts      *SavingsAccountsSummary `json:"savings_accounts,omitempty"`
}

// Validate rejects a context that must not reach the provider. The struct
// shape covers most of what the original checked at runtime; what remains is
// identity and the always-present collections.
func (c *UserContext) Validate() error {
	const op = "UserContext.Validate"
	if c == nil {
		return fault.New(fault.CodeValidation, op, "missing context", nil)
	}
	if strings.TrimSpace(c.UserID) == "" {
		return fault.New(fault.CodeValidation, op, "context missing user_id", nil)
	}
	if c.WindowDays <= 0 {
		return fault.New(fault.CodeValidation, op, "context missing window_days", nil)
	}
	if c.Accounts == nil {
		return fault.New(fault.CodeValidation, op, "context missing accounts", nil)
	}
	if c.RecentTransactions == nil {
		return fault.New(fault.CodeValidation, op, "context missing recent_transactions", nil)
	}
	return nil
}

// AsMap renders the context for the provider client.
func (c *UserContext) AsMap() (map[string]any, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ContextBuilder assembles the provider input for one (user, window) pair.
type ContextBuilder interface {
	Build(ctx context.Context, userID string, windowDays int) (*UserContext, error)
}

type contextBuilder struct {
	db           *gorm.DB
	log          *logger.Logger
	policy       config.Policy
	users        repos.UserRepo
	features     repos.FeatureSnapshotRepo
	personas     repos.PersonaAssignmentRepo
	accounts     repos.AccountRepo
	transactions repos.TransactionRepo
	liabilities  repos.LiabilityRepo
}

func NewContextBuilder(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	users repos.UserRepo,
	features repos.FeatureSnapshotRepo,
	personas repos.PersonaAssignmentRepo,
	accounts repos.AccountRepo,
	transactions repos.TransactionRepo,
	liabilities repos.LiabilityRepo,
) ContextBuilder {
	return &contextBuilder{
		db:           db,
		log:          baseLog.With("service", "ContextBuilder"),
		policy:       policy,
		users:        users,
		features:     features,
		personas:     personas,
		accounts:     accounts,
		transactions: transactions,
		liabilities:  liabilities,
	}
}

func (s *contextBuilder) Build(ctx context.Context, userID string, windowDays int) (*UserContext, error) {
	const op = "ContextBuilder.Build"

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing user_id", nil)
	}
	if windowDays < s.policy.Windows.Min || windowDays > s.policy.Windows.Max {
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("window_days must be between %d and %d", s.policy.Windows.Min, s.policy.Windows.Max), nil)
	}

	dbc := dbctx.Context{Ctx: ctx}

	usr, err := s.users.GetByID(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if usr == nil {
		return nil, fault.New(fault.CodeNotFound, op, fmt.Sprintf("user %s not found", userID), nil)
	}

	snapshot, err := s.features.GetByUserWindow(dbc, userID, windowDays)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	assignment, err := s.personas.GetByUserWindow(dbc, userID, windowDays)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}

	out := &UserContext{
		UserID:             userID,
		WindowDays:         windowDays,
		Accounts:           []ContextAccount{},
		RecentTransactions: []ContextTransaction{},
	}
	if assignment != nil {
		persona := assignment.PersonaType
		out.PersonaType = &persona
	}
	if snapshot != nil {
		out.SubscriptionSignals = SubscriptionSignals{
			RecurringMerchants:     snapshot.RecurringMerchants,
			MonthlyRecurringSpend:  round2(snapshot.MonthlyRecurringSpend),
			SubscriptionSpendShare: round2(snapshot.SubscriptionSpendShare),
		}
		out.SavingsSignals = SavingsSignals{
			NetSavingsInflow:    round2(snapshot.NetSavingsInflow),
			SavingsGrowthRate:   round2(snapshot.SavingsGrowthRate),
			EmergencyFundMonths: round2(snapshot.EmergencyFundMonths),
		}
		out.CreditSignals = CreditSignals{
			AvgUtilization:         round2(snapshot.AvgUtilization),
			MaxUtilization:         round2(snapshot.MaxUtilization),
			Utilization30Flag:      snapshot.Utilization30Flag,
			Utilization50Flag:      snapshot.Utilization50Flag,
			Utilization80Flag:      snapshot.Utilization80Flag,
			MinimumPaymentOnlyFlag: snapshot.MinimumPaymentOnlyFlag,
			InterestChargesPresent: snapshot.InterestChargesPresent,
			AnyOverdue:             snapshot.AnyOverdue,
		}
		out.IncomeSignals = IncomeSignals{
			PayrollDetected:      snapshot.PayrollDetected,
			MedianPayGapDays:     snapshot.MedianPayGapDays,
			CashFlowBufferMonths: round2(snapshot.CashFlowBufferMonths),
			AvgMonthlyIncome:     round2(snapshot.AvgMonthlyIncome),
		}
		if snapshot.IncomeVariability != nil {
			v := round2(*snapshot.IncomeVariability)
			out.IncomeSignals.IncomeVariability = &v
		}
	}

	held, err := s.accounts.ListByUser(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	out.Accounts = contextAccounts(held, s.policy.Recommendations.MaxContextAccounts)

	now := time.Now().UTC()
	recentCutoff := now.AddDate(0, 0, -s.policy.Windows.Default)
	recent, err := s.transactions.ListRecentByUser(dbc, userID, recentCutoff, s.policy.Recommendations.MaxContextTransactions)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	for _, txn := range recent {
		out.RecentTransactions = append(out.RecentTransactions, contextTransaction(txn))
	}

	if snapshot != nil && snapshot.MaxUtilization >= s.policy.Credit.UtilizationFlag50 {
		cards, cardErr := s.highUtilizationCards(dbc, userID, held)
		if cardErr != nil {
			return nil, cardErr
		}
		out.HighUtilizationCards = cards
	}

	if snapshot != nil && snapshot.RecurringMerchants > 0 {
		merchants, merchErr := s.recurringMerchantNames(dbc, userID, windowDays, now)
		if merchErr != nil {
			return nil, merchErr
		}
		out.RecurringMerchants = merchants
	}

	if snapshot != nil && snapshot.SavingsGrowthRate != 0 {
		out.SavingsAccounts = savingsSummary(held, snapshot)
	}

	personaLabel := ""
	if out.PersonaType != nil {
		personaLabel = *out.PersonaType
	}
	s.log.Info("Built user context",
		"user_id", userID,
		"window_days", windowDays,
		"persona_type", personaLabel,
		"accounts", len(out.Accounts),
		"transactions", len(out.RecentTransactions),
	)
	return out, nil
}

// contextAccounts keeps the largest balances and masks identifiers down to
// the last four characters.
func contextAccounts(held []*types.Account, max int) []ContextAccount {
	ranked := make([]*types.Account, len(held))
	copy(ranked, held)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CurrentBalance() > ranked[j].CurrentBalance()
	})
	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}

	out := make([]ContextAccount, 0, len(ranked))
	for _, acc := range ranked {
		entry := ContextAccount{
			Type:    acc.Type,
			Name:    titleWords(acc.Type) + " " + maskedAccountID(acc.AccountID),
			Balance: round2(acc.CurrentBalance()),
		}
		if bank.IsCreditType(acc.Type) && acc.Limit() > 0 {
			limit := round2(acc.Limit())
			entry.Limit = &limit
		}
		out = append(out, entry)
	}
	return out
}

func contextTransaction(txn *types.Transaction) ContextTransaction {
	merchant := txn.MerchantName
	if strings.TrimSpace(merchant) == "" {
		merchant = "Unknown"
	}
	txnType := "expense"
	if txn.Amount > 0 {
		txnType = "deposit"
	}
	return ContextTransaction{
		Date:     txn.Date.Format("2006-01-02"),
		Merchant: merchant,
		Amount:   round2(txn.Amount),
		Type:     txnType,
	}
}

func (s *contextBuilder) highUtilizationCards(dbc dbctx.Context, userID string, held []*types.Account) ([]HighUtilizationCard, error) {
	const op = "ContextBuilder.highUtilizationCards"

	var creditIDs []string
	var creditAccounts []*types.Account
	for _, acc := range held {
		if bank.IsCreditType(acc.Type) {
			creditIDs = append(creditIDs, acc.AccountID)
			creditAccounts = append(creditAccounts, acc)
		}
	}
	if len(creditAccounts) == 0 {
		return nil, nil
	}

	liabilities, err := s.liabilities.ListByAccountIDs(dbc, creditIDs)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	byAccount := make(map[string]*types.Liability, len(liabilities))
	for _, l := range liabilities {
		if _, seen := byAccount[l.AccountID]; !seen {
			byAccount[l.AccountID] = l
		}
	}

	var cards []HighUtilizationCard
	for _, acc := range creditAccounts {
		balance := acc.CurrentBalance()
		limit := acc.Limit()
		if limit <= 0 {
			continue
		}
		utilization := balance / limit
		if utilization < s.policy.Credit.UtilizationFlag50 {
			continue
		}

		card := HighUtilizationCard{
			Last4Digits:           maskedLast4(acc.AccountID),
			CurrentBalance:        round2(balance),
			CreditLimit:           round2(limit),
			UtilizationPercentage: round2(utilization * 100),
		}
		if l := byAccount[acc.AccountID]; l != nil {
			if l.InterestRate != nil {
				rate := round2(*l.InterestRate)
				card.InterestRate = &rate
			}
			if l.MinimumPaymentAmount != nil {
				minPay := round2(*l.MinimumPaymentAmount)
				card.MinimumPayment = &minPay
			}
			if l.InterestRate != nil && balance > 0 {
				monthly := round2(balance * *l.InterestRate / 100 / 12)
				card.EstimatedMonthlyInterest = &monthly
			}
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// recurringMerchantNames re-derives the merchant list behind the
// recurring_merchants count: names appearing at least MinOccurrences times
// in the window, in order of first appearance.
func (s *contextBuilder) recurringMerchantNames(dbc dbctx.Context, userID string, windowDays int, now time.Time) ([]string, error) {
	const op = "ContextBuilder.recurringMerchantNames"

	since := now.AddDate(0, 0, -windowDays)
	txns, err := s.transactions.ListByUserSince(dbc, userID, since)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}

	counts := map[string]int{}
	var order []string
	for _, txn := range txns {
		name := strings.TrimSpace(txn.MerchantName)
		if name == "" {
			continue
		}
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}

	var merchants []string
	for _, name := range order {
		if counts[name] >= s.policy.Subscriptions.MinOccurrences {
			merchants = append(merchants, name)
		}
		if len(merchants) == maxRecurringMerchantNames {
			break
		}
	}
	return merchants, nil
}

func savingsSummary(held []*types.Account, snapshot *types.FeatureSnapshot) *SavingsAccountsSummary {
	var count int
	var total float64
	for _, acc := range held {
		if bank.IsSavingsType(acc.Type) {
			count++
			total += acc.CurrentBalance()
		}
	}
	if count == 0 {
		return nil
	}
	return &SavingsAccountsSummary{
		Count:               count,
		TotalBalance:        round2(total),
		GrowthRate:          round2(snapshot.SavingsGrowthRate),
		EmergencyFundMonths: round2(snapshot.EmergencyFundMonths),
	}
}

func maskedAccountID(accountID string) string {
	if len(accountID) >= 4 {
		return "****" + accountID[len(accountID)-4:]
	}
	return "****"
}

func maskedLast4(accountID string) string {
	if len(accountID) >= 4 {
		return accountID[len(accountID)-4:]
	}
	return "****"
}

func titleWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
