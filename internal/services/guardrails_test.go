package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	"github.com/VictorGoic0/SpendSense/internal/data/repos/testutil"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
)

func testProduct(mutate func(*types.ProductOffer)) *types.ProductOffer {
	p := &types.ProductOffer{
		ProductID:            "prod_test",
		ProductName:          "Test Offer",
		ProductType:          "savings_account",
		Category:             "hysa",
		MaxCreditUtilization: 1.0,
		Active:               true,
	}
	if mutate != nil {
		mutate(p)
	}
	return p
}

func TestValidateTone(t *testing.T) {
	pol := config.DefaultPolicy().Guardrails

	tests := []struct {
		name         string
		content      string
		wantValid    bool
		wantWarnings int
	}{
		{"shaming phrase", "You're overspending on dining.", false, 2},
		{"empowering", "You can build savings by automating transfers.", true, 0},
		{"neutral lacks empowering", "Track monthly expenses in a spreadsheet.", false, 1},
		{"multiple shaming", "You need to stop this bad habit.", false, 3},
		{"uppercase shaming", "WASTEFUL SPENDING drains your budget.", false, 2},
		{"empowering with shaming", "Consider a budget - you're overspending here.", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateTone(tt.content, pol)
			if got.IsValid != tt.wantValid {
				t.Fatalf("is_valid=%v", got.IsValid)
			}
			if len(got.Warnings) != tt.wantWarnings {
				t.Fatalf("warnings=%d want %d", len(got.Warnings), tt.wantWarnings)
			}
		})
	}
}

func TestValidateToneWarningShape(t *testing.T) {
	pol := config.DefaultPolicy().Guardrails

	got := ValidateTone("You're overspending on dining.", pol)
	if !got.HasCritical() {
		t.Fatalf("expected critical warning")
	}
	w := got.Warnings[0]
	if w.Severity != types.WarningSeverityCritical || w.Type != types.WarningForbiddenPhrase {
		t.Fatalf("warning=%+v", w)
	}
	if w.Message != "Contains shaming language: 'you're overspending'" {
		t.Fatalf("message=%q", w.Message)
	}

	got = ValidateTone("Track monthly expenses in a spreadsheet.", pol)
	if got.HasCritical() {
		t.Fatalf("unexpected critical warning")
	}
	w = got.Warnings[0]
	if w.Severity != types.WarningSeverityNotable || w.Type != types.WarningLacksEmpoweringLanguage {
		t.Fatalf("warning=%+v", w)
	}
	if w.Message != "Content lacks empowering tone - no empowering keywords found" {
		t.Fatalf("message=%q", w.Message)
	}
}

func TestAppendDisclosure(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"terminated", "Build a buffer.", "Build a buffer.\n\n" + MandatoryDisclosure},
		{"unterminated", "Build a buffer", "Build a buffer.\n\n" + MandatoryDisclosure},
		{"trailing space", "Build a buffer. ", "Build a buffer. \n\n" + MandatoryDisclosure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendDisclosure(tt.content); got != tt.want {
				t.Fatalf("got %q", got)
			}
		})
	}
}

func TestProductEligibility(t *testing.T) {
	pol := config.DefaultPolicy().Matching

	tests := []struct {
		name       string
		product    *types.ProductOffer
		features   *types.FeatureSnapshot
		held       []*types.Account
		wantOK     bool
		wantReason string
	}{
		{
			name:    "income below minimum",
			product: testProduct(func(p *types.ProductOffer) { p.MinIncome = 5000 }),
			features: testSnapshot(func(s *types.FeatureSnapshot) {
				s.AvgMonthlyIncome = 3000
			}),
			wantOK:     false,
			wantReason: "Income below minimum requirement ($3000.00 < $5000.00)",
		},
		{
			name:    "income meets minimum",
			product: testProduct(func(p *types.ProductOffer) { p.MinIncome = 5000 }),
			features: testSnapshot(func(s *types.FeatureSnapshot) {
				s.AvgMonthlyIncome = 6000
			}),
			wantOK:     true,
			wantReason: "Eligible",
		},
		{
			name:    "utilization over ceiling",
			product: testProduct(func(p *types.ProductOffer) { p.MaxCreditUtilization = 0.5 }),
			features: testSnapshot(func(s *types.FeatureSnapshot) {
				s.AvgUtilization = 0.62
			}),
			wantOK:     false,
			wantReason: "Credit utilization too high (62.0% > 50.0%)",
		},
		{
			name:    "no-limit ceiling ignored",
			product: testProduct(nil),
			features: testSnapshot(func(s *types.FeatureSnapshot) {
				s.AvgUtilization = 0.9
			}),
			wantOK:     true,
			wantReason: "Eligible",
		},
		{
			name:       "existing savings blocks",
			product:    testProduct(func(p *types.ProductOffer) { p.RequiresNoExistingSavings = true }),
			features:   testSnapshot(nil),
			held:       []*types.Account{testAccount("acct_hsa", "HSA", 4000)},
			wantOK:     false,
			wantReason: "Already has savings account",
		},
		{
			name:       "existing investment blocks",
			product:    testProduct(func(p *types.ProductOffer) { p.RequiresNoExistingInvestment = true }),
			features:   testSnapshot(nil),
			held:       []*types.Account{testAccount("acct_brk", "brokerage", 15000)},
			wantOK:     false,
			wantReason: "Already has investment account",
		},
		{
			name:    "balance transfer needs utilization",
			product: testProduct(func(p *types.ProductOffer) { p.Category = "balance_transfer" }),
			features: testSnapshot(func(s *types.FeatureSnapshot) {
				s.AvgUtilization = 0.12
			}),
			wantOK:     false,
			wantReason: "Balance transfer not beneficial at current utilization (12.0% < 30%)",
		},
		{
			name:    "balance transfer at meaningful utilization",
			product: testProduct(func(p *types.ProductOffer) { p.Category = "balance_transfer" }),
			features: testSnapshot(func(s *types.FeatureSnapshot) {
				s.AvgUtilization = 0.45
			}),
			wantOK:     true,
			wantReason: "Eligible",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := productEligibility(tt.product, tt.features, tt.held, pol)
			if ok != tt.wantOK || reason != tt.wantReason {
				t.Fatalf("ok=%v reason=%q", ok, reason)
			}
		})
	}
}

func newGuardrailService(t *testing.T, tx *gorm.DB) GuardrailService {
	t.Helper()
	log := testutil.Logger(t)
	return NewGuardrailService(
		tx,
		log,
		config.DefaultPolicy(),
		repos.NewUserRepo(tx, log),
		repos.NewAccountRepo(tx, log),
		repos.NewFeatureSnapshotRepo(tx, log),
	)
}

func TestGuardrailCheckConsent(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newGuardrailService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_consented", true)
	testutil.SeedUser(t, ctx, tx, "user_declined", false)

	tests := []struct {
		userID string
		want   bool
	}{
		{"user_consented", true},
		{"user_declined", false},
		{"user_missing", false},
	}
	for _, tt := range tests {
		got, err := svc.CheckConsent(ctx, tt.userID)
		if err != nil {
			t.Fatalf("%s: %v", tt.userID, err)
		}
		if got != tt.want {
			t.Fatalf("%s: consent=%v", tt.userID, got)
		}
	}
}

func TestGuardrailEligibilityPredicates(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newGuardrailService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_guard", true)
	snap := testSnapshot(func(s *types.FeatureSnapshot) {
		s.UserID = "user_guard"
		s.AvgMonthlyIncome = 3000
		s.MaxUtilization = 0.40
	})
	if err := tx.Create(snap).Error; err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	if ok, err := svc.CheckIncomeEligibility(ctx, "user_guard", 5000); err != nil || ok {
		t.Fatalf("income: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.CheckIncomeEligibility(ctx, "user_guard", 2500); err != nil || !ok {
		t.Fatalf("income: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.CheckCreditEligibility(ctx, "user_guard", 0.30); err != nil || ok {
		t.Fatalf("credit: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.CheckCreditEligibility(ctx, "user_guard", 0.50); err != nil || !ok {
		t.Fatalf("credit: ok=%v err=%v", ok, err)
	}

	// No computed features reads as ineligible, not an error.
	if ok, err := svc.CheckIncomeEligibility(ctx, "user_without_features", 100); err != nil || ok {
		t.Fatalf("missing features: ok=%v err=%v", ok, err)
	}
}

func TestGuardrailHasAccountOfType(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newGuardrailService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_accts", true)
	testutil.SeedAccount(t, ctx, tx, "user_accts", "acct_chk", "checking", 1200)

	tests := []struct {
		accountType string
		want        bool
	}{
		{"checking", true},
		{"Checking", true},
		{"savings", false},
	}
	for _, tt := range tests {
		got, err := svc.HasAccountOfType(ctx, "user_accts", tt.accountType)
		if err != nil {
			t.Fatalf("%s: %v", tt.accountType, err)
		}
		if got != tt.want {
			t.Fatalf("%s: has=%v", tt.accountType, got)
		}
	}
}

func TestGuardrailCheckProductEligibility(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newGuardrailService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_prodelig", true)
	testutil.SeedAccount(t, ctx, tx, "user_prodelig", "acct_sav", "savings", 8000)

	features := testSnapshot(func(s *types.FeatureSnapshot) {
		s.UserID = "user_prodelig"
		s.AvgMonthlyIncome = 4000
	})

	blocked := testProduct(func(p *types.ProductOffer) { p.RequiresNoExistingSavings = true })
	ok, reason, err := svc.CheckProductEligibility(ctx, "user_prodelig", blocked, features)
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if ok || reason != "Already has savings account" {
		t.Fatalf("ok=%v reason=%q", ok, reason)
	}

	open := testProduct(nil)
	ok, reason, err = svc.CheckProductEligibility(ctx, "user_prodelig", open, features)
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if !ok || reason != "Eligible" {
		t.Fatalf("ok=%v reason=%q", ok, reason)
	}
}
