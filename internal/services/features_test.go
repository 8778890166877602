package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	"github.com/VictorGoic0/SpendSense/internal/data/repos/testutil"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"gorm.io/gorm"
)

func floatPtr(v float64) *float64 { return &v }

func testAccount(id, accountType string, balance float64) *types.Account {
	return &types.Account{
		AccountID:      id,
		UserID:         "user_test",
		Type:           accountType,
		BalanceCurrent: floatPtr(balance),
	}
}

func testCreditAccount(id string, balance, limit float64) *types.Account {
	a := testAccount(id, "credit card", balance)
	a.BalanceLimit = floatPtr(limit)
	return a
}

func testTxn(id, accountID string, date time.Time, amount float64, merchant string) *types.Transaction {
	return &types.Transaction{
		TransactionID: id,
		AccountID:     accountID,
		UserID:        "user_test",
		Date:          date,
		Amount:        amount,
		MerchantName:  merchant,
	}
}

// datesWithGaps expands a start date plus day gaps into a date series.
func datesWithGaps(start time.Time, gaps []int) []time.Time {
	out := []time.Time{start}
	cur := start
	for _, g := range gaps {
		cur = cur.AddDate(0, 0, g)
		out = append(out, cur)
	}
	return out
}

func TestIsRecurringGapPattern(t *testing.T) {
	pol := config.DefaultPolicy().Subscriptions
	start := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		gaps []int
		want bool
	}{
		{"monthly with jitter", []int{29, 31, 30}, true},
		{"irregular", []int{5, 60, 3}, false},
		{"weekly", []int{7, 8, 6}, true},
		{"quarterly", []int{91, 88}, true},
		{"two dates only", []int{30}, false},
		{"split cadence", []int{30, 29, 15, 16}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates := datesWithGaps(start, tt.gaps)
			if got := isRecurringGapPattern(dates, pol); got != tt.want {
				t.Fatalf("recurring=%v want %v", got, tt.want)
			}
		})
	}
}

func TestComputeSubscriptionSignals(t *testing.T) {
	pol := config.DefaultPolicy().Subscriptions
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	var txns []*types.Transaction
	// Monthly streaming subscription, four charges.
	for i := 0; i < 4; i++ {
		txns = append(txns, testTxn(fmt.Sprintf("t_sub_%d", i), "acc_1", base.AddDate(0, 0, 30*i), -15.99, "Streamly"))
	}
	// Frequent but irregular coffee shop, not a subscription.
	for i, gap := range []int{0, 4, 17, 61} {
		txns = append(txns, testTxn(fmt.Sprintf("t_cof_%d", i), "acc_1", base.AddDate(0, 0, gap), -6.50, "Corner Coffee"))
	}
	// One-off purchase.
	txns = append(txns, testTxn("t_once", "acc_1", base.AddDate(0, 0, 10), -120.00, "Hardware Hut"))

	got := computeSubscriptionSignals(txns, 180, pol)
	if got.RecurringMerchants != 1 {
		t.Fatalf("recurring=%d", got.RecurringMerchants)
	}
	wantSpend := 4 * 15.99 / 6.0
	if diff := got.MonthlyRecurringSpend - wantSpend; diff > 0.001 || diff < -0.001 {
		t.Fatalf("monthly spend=%v want %v", got.MonthlyRecurringSpend, wantSpend)
	}
	total := 4*15.99 + 4*6.50 + 120.00
	wantShare := 4 * 15.99 / total
	if diff := got.SubscriptionSpendShare - wantShare; diff > 0.001 || diff < -0.001 {
		t.Fatalf("share=%v want %v", got.SubscriptionSpendShare, wantShare)
	}
}

func TestComputeSubscriptionSignalsOrderIndependent(t *testing.T) {
	pol := config.DefaultPolicy().Subscriptions
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	var txns []*types.Transaction
	for i := 0; i < 4; i++ {
		txns = append(txns, testTxn(fmt.Sprintf("t_%d", i), "acc_1", base.AddDate(0, 0, 30*i), -9.99, "Streamly"))
		txns = append(txns, testTxn(fmt.Sprintf("g_%d", i), "acc_1", base.AddDate(0, 0, 7*i), -42.10, "Groceries Inc"))
	}

	forward := computeSubscriptionSignals(txns, 180, pol)
	reversed := make([]*types.Transaction, len(txns))
	for i, tx := range txns {
		reversed[len(txns)-1-i] = tx
	}
	backward := computeSubscriptionSignals(reversed, 180, pol)

	if forward != backward {
		t.Fatalf("order dependent: %+v vs %+v", forward, backward)
	}
}

func TestComputeSubscriptionSignalsEmpty(t *testing.T) {
	got := computeSubscriptionSignals(nil, 30, config.DefaultPolicy().Subscriptions)
	if got.RecurringMerchants != 0 || got.MonthlyRecurringSpend != 0 || got.SubscriptionSpendShare != 0 {
		t.Fatalf("expected zero signals, got %+v", got)
	}
}

func TestComputeCreditSignalsUtilizationFlags(t *testing.T) {
	pol := config.DefaultPolicy().Credit

	tests := []struct {
		name                   string
		balance, limit         float64
		want30, want50, want80 bool
	}{
		{"sixty percent", 600, 1000, true, true, false},
		{"a quarter", 250, 1000, false, false, false},
		{"maxed out", 950, 1000, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := []*types.Account{testCreditAccount("acc_cc", tt.balance, tt.limit)}
			got := computeCreditSignals(accounts, nil, nil, pol)
			if got.Utilization30Flag != tt.want30 || got.Utilization50Flag != tt.want50 || got.Utilization80Flag != tt.want80 {
				t.Fatalf("flags=%v/%v/%v", got.Utilization30Flag, got.Utilization50Flag, got.Utilization80Flag)
			}
		})
	}
}

func TestComputeCreditSignalsAcrossCards(t *testing.T) {
	pol := config.DefaultPolicy().Credit
	accounts := []*types.Account{
		testCreditAccount("acc_a", 200, 1000),
		testCreditAccount("acc_b", 900, 1000),
		testAccount("acc_chk", "checking", 500),
	}
	got := computeCreditSignals(accounts, nil, nil, pol)
	if got.MaxUtilization != 0.9 {
		t.Fatalf("max=%v", got.MaxUtilization)
	}
	if diff := got.AvgUtilization - 0.55; diff > 0.0001 || diff < -0.0001 {
		t.Fatalf("avg=%v", got.AvgUtilization)
	}
	if !got.Utilization80Flag {
		t.Fatalf("expected 80 flag from the maxed card")
	}
}

func TestComputeCreditSignalsLiabilities(t *testing.T) {
	pol := config.DefaultPolicy().Credit

	minPay := 35.0
	within := 38.0
	above := 200.0

	liabilities := []*types.Liability{
		{LiabilityID: "l1", AccountID: "acc_a", UserID: "user_test", MinimumPaymentAmount: &minPay, LastPaymentAmount: &within},
	}
	got := computeCreditSignals(nil, liabilities, nil, pol)
	if !got.MinimumPaymentOnlyFlag {
		t.Fatalf("payment within tolerance should flag")
	}

	liabilities[0].LastPaymentAmount = &above
	got = computeCreditSignals(nil, liabilities, nil, pol)
	if got.MinimumPaymentOnlyFlag {
		t.Fatalf("large payment should not flag")
	}

	liabilities[0].IsOverdue = true
	got = computeCreditSignals(nil, liabilities, nil, pol)
	if !got.AnyOverdue {
		t.Fatalf("overdue liability should flag")
	}
}

func TestComputeCreditSignalsInterestCategory(t *testing.T) {
	pol := config.DefaultPolicy().Credit
	txns := []*types.Transaction{
		{TransactionID: "t1", AccountID: "acc_a", Amount: -32.10, CategoryDetailed: "LOAN_PAYMENTS_CREDIT_CARD_INTEREST"},
	}
	if got := computeCreditSignals(nil, nil, txns, pol); !got.InterestChargesPresent {
		t.Fatalf("interest category should flag")
	}
}

func TestComputeSavingsSignals(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	accounts := []*types.Account{
		testAccount("acc_sav", "savings", 1100),
		testAccount("acc_chk", "checking", 900),
	}
	txns := []*types.Transaction{
		testTxn("t1", "acc_sav", base, 100, "Transfer In"),
		testTxn("t2", "acc_chk", base, -500, "Rent Co"),
		testTxn("t3", "acc_chk", base.AddDate(0, 0, 10), -50, "Groceries Inc"),
	}

	got := computeSavingsSignals(accounts, txns, 30)
	if got.NetSavingsInflow != 100 {
		t.Fatalf("inflow=%v", got.NetSavingsInflow)
	}
	// Started at 1000, ended at 1100.
	if diff := got.SavingsGrowthRate - 0.10; diff > 0.0001 || diff < -0.0001 {
		t.Fatalf("growth=%v", got.SavingsGrowthRate)
	}
	if diff := got.EmergencyFundMonths - 2.0; diff > 0.0001 || diff < -0.0001 {
		t.Fatalf("emergency=%v", got.EmergencyFundMonths)
	}
}

func TestComputeSavingsSignalsZeroStart(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	accounts := []*types.Account{testAccount("acc_sav", "savings", 500)}
	txns := []*types.Transaction{testTxn("t1", "acc_sav", base, 500, "Transfer In")}

	got := computeSavingsSignals(accounts, txns, 30)
	if got.SavingsGrowthRate != 1.0 {
		t.Fatalf("zero-to-positive growth=%v", got.SavingsGrowthRate)
	}
}

func TestComputeIncomeSignals(t *testing.T) {
	pol := config.DefaultPolicy().Income
	base := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	accounts := []*types.Account{testAccount("acc_chk", "checking", 3000)}

	var txns []*types.Transaction
	for i := 0; i < 4; i++ {
		tx := testTxn(fmt.Sprintf("pay_%d", i), "acc_chk", base.AddDate(0, 0, 14*i), 2000, "ACME PAYROLL")
		txns = append(txns, tx)
	}
	txns = append(txns, testTxn("exp_1", "acc_chk", base.AddDate(0, 0, 5), -1000, "Rent Co"))

	got := computeIncomeSignals(accounts, txns, 30, pol)
	if !got.PayrollDetected {
		t.Fatalf("payroll not detected")
	}
	if got.MedianPayGapDays == nil || *got.MedianPayGapDays != 14 {
		t.Fatalf("median gap=%v", got.MedianPayGapDays)
	}
	if got.IncomeVariability == nil || *got.IncomeVariability != 0 {
		t.Fatalf("variability=%v", got.IncomeVariability)
	}
	if got.AvgMonthlyIncome != 8000 {
		t.Fatalf("monthly income=%v", got.AvgMonthlyIncome)
	}
	if got.CashFlowBufferMonths != 3 {
		t.Fatalf("buffer=%v", got.CashFlowBufferMonths)
	}
}

func TestComputeIncomeSignalsSingleDeposit(t *testing.T) {
	pol := config.DefaultPolicy().Income
	base := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	txns := []*types.Transaction{testTxn("pay_1", "acc_chk", base, 2500, "ACME PAYROLL")}

	got := computeIncomeSignals(nil, txns, 30, pol)
	if got.PayrollDetected {
		t.Fatalf("one deposit must not count as detected payroll")
	}
	if got.MedianPayGapDays != nil || got.IncomeVariability != nil {
		t.Fatalf("gap/variability should stay nil")
	}
	if got.AvgMonthlyIncome != 2500 {
		t.Fatalf("monthly income=%v", got.AvgMonthlyIncome)
	}
}

func TestIsPayrollCandidate(t *testing.T) {
	tests := []struct {
		name string
		tx   types.Transaction
		want bool
	}{
		{"ach deposit", types.Transaction{Amount: 1500, PaymentChannel: "ach"}, true},
		{"income category", types.Transaction{Amount: 900, CategoryPrimary: "INCOME"}, true},
		{"payroll merchant", types.Transaction{Amount: 1200, MerchantName: "Gusto Payroll"}, true},
		{"negative amount", types.Transaction{Amount: -1500, PaymentChannel: "ach"}, false},
		{"card purchase", types.Transaction{Amount: 40, PaymentChannel: "in store", MerchantName: "Corner Coffee"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPayrollCandidate(&tt.tx); got != tt.want {
				t.Fatalf("candidate=%v want %v", got, tt.want)
			}
		})
	}
}

func newFeatureService(t *testing.T, tx *gorm.DB) FeatureService {
	t.Helper()
	log := testutil.Logger(t)
	return NewFeatureService(
		tx,
		log,
		config.DefaultPolicy(),
		repos.NewUserRepo(tx, log),
		repos.NewAccountRepo(tx, log),
		repos.NewTransactionRepo(tx, log),
		repos.NewLiabilityRepo(tx, log),
		repos.NewFeatureSnapshotRepo(tx, log),
	)
}

func TestFeatureComputeIdempotent(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newFeatureService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_feat", true)
	testutil.SeedAccount(t, ctx, tx, "user_feat", "acc_chk", "checking", 2400)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		testutil.SeedTransaction(t, ctx, tx, "user_feat", "acc_chk", fmt.Sprintf("txn_%d", i),
			now.AddDate(0, 0, -2-7*i), -12.99, "Streamly")
	}

	first, err := svc.Compute(ctx, "user_feat", 30)
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	second, err := svc.Compute(ctx, "user_feat", 30)
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}

	var count int64
	if err := tx.Model(&types.FeatureSnapshot{}).
		Where("user_id = ? AND window_days = ?", "user_feat", 30).
		Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows=%d", count)
	}
	if first.RecurringMerchants != second.RecurringMerchants ||
		first.MonthlyRecurringSpend != second.MonthlyRecurringSpend {
		t.Fatalf("recompute drifted: %+v vs %+v", first, second)
	}
}

func TestFeatureComputeValidation(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newFeatureService(t, tx)

	if _, err := svc.Compute(ctx, "nobody", 30); !fault.IsCode(err, fault.CodeNotFound) {
		t.Fatalf("unknown user err=%v", err)
	}
	testutil.SeedUser(t, ctx, tx, "user_window", true)
	if _, err := svc.Compute(ctx, "user_window", 0); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("window=0 err=%v", err)
	}
	if _, err := svc.Compute(ctx, "user_window", 400); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("window=400 err=%v", err)
	}
}

func TestFeatureComputeEmptyData(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newFeatureService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_empty", true)
	snap, err := svc.Compute(ctx, "user_empty", 30)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if snap.RecurringMerchants != 0 || snap.AvgUtilization != 0 || snap.PayrollDetected {
		t.Fatalf("expected zero-value snapshot, got %+v", snap)
	}
	if snap.MedianPayGapDays != nil || snap.IncomeVariability != nil {
		t.Fatalf("nullable fields should stay nil")
	}
}
