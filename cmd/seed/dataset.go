package main

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/bank"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

// Behavioral archetypes cycled across generated customers so every persona
// rule has users that trip it.
const (
	shapeHighUtilization   = "high_utilization"
	shapeSubscriptionHeavy = "subscription_heavy"
	shapeSavingsBuilder    = "savings_builder"
	shapeVariableIncome    = "variable_income"
	shapeWealthBuilder     = "wealth_builder"
	shapeMixed             = "mixed"
)

var shapes = []string{
	shapeHighUtilization,
	shapeSubscriptionHeavy,
	shapeSavingsBuilder,
	shapeVariableIncome,
	shapeWealthBuilder,
	shapeMixed,
}

var firstNames = []string{
	"Ava", "Noah", "Mia", "Liam", "Zoe", "Ethan", "Ivy", "Lucas",
	"Nora", "Mason", "Ruby", "Owen", "Elena", "Caleb", "June", "Felix",
}

var lastNames = []string{
	"Alvarez", "Brooks", "Chen", "Dawson", "Eriksen", "Fontaine", "Garcia",
	"Hughes", "Ishida", "Jensen", "Khan", "Lombardi", "Moreau", "Novak",
}

var expenseMerchants = []struct {
	name     string
	category string
	min, max float64
}{
	{"Whole Harvest Market", "FOOD_AND_DRINK", 35, 160},
	{"Corner Fuel", "TRANSPORTATION", 25, 70},
	{"Brick Lane Bistro", "FOOD_AND_DRINK", 18, 95},
	{"Cityline Pharmacy", "MEDICAL", 8, 60},
	{"Northgate Hardware", "GENERAL_MERCHANDISE", 12, 140},
	{"Transit Authority", "TRANSPORTATION", 2.75, 6},
}

var subscriptionMerchants = []struct {
	name   string
	amount float64
}{
	{"Netflix", 15.49},
	{"Spotify", 11.99},
	{"Peak Fitness", 39.00},
	{"CloudBox Storage", 9.99},
	{"StreamMax", 17.99},
}

type generator struct {
	rng *rand.Rand
	now time.Time
}

func newGenerator(seed int64) *generator {
	return &generator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now().UTC().Truncate(24 * time.Hour),
	}
}

func (g *generator) id(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

func (g *generator) between(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func ptr(v float64) *float64 { return &v }

// generate builds one payload: users across the archetypes, their accounts,
// 180 days of transactions, and credit-card liabilities.
func (g *generator) generate(userCount int) *services.IngestPayload {
	payload := &services.IngestPayload{}

	for i := 0; i < userCount; i++ {
		shape := shapes[i%len(shapes)]
		u := g.user(i, shape)
		payload.Users = append(payload.Users, u)

		accounts, txns, liabilities := g.holdings(u, shape)
		payload.Accounts = append(payload.Accounts, accounts...)
		payload.Transactions = append(payload.Transactions, txns...)
		payload.Liabilities = append(payload.Liabilities, liabilities...)
	}

	// A few operators for the review console.
	for i := 0; i < 2; i++ {
		payload.Users = append(payload.Users, &types.User{
			UserID:   g.id("usr"),
			FullName: fmt.Sprintf("Operator %02d", i+1),
			Email:    fmt.Sprintf("operator%02d@spendsense.internal", i+1),
			UserType: types.UserTypeOperator,
		})
	}

	return payload
}

func (g *generator) user(i int, shape string) *types.User {
	first := firstNames[g.rng.Intn(len(firstNames))]
	last := lastNames[g.rng.Intn(len(lastNames))]
	consent := g.rng.Float64() < 0.6

	u := &types.User{
		UserID:        g.id("usr"),
		FullName:      first + " " + last,
		Email:         fmt.Sprintf("%s.%s.%03d@example.com", strings.ToLower(first), strings.ToLower(last), i),
		UserType:      types.UserTypeCustomer,
		ConsentStatus: consent,
	}
	if consent {
		grantedAt := g.now.AddDate(0, 0, -g.rng.Intn(30))
		u.ConsentGrantedAt = &grantedAt
	}
	return u
}

func (g *generator) holdings(u *types.User, shape string) ([]*types.Account, []*types.Transaction, []*types.Liability) {
	var accounts []*types.Account
	var txns []*types.Transaction
	var liabilities []*types.Liability

	checking := &types.Account{
		AccountID:      g.id("acc"),
		UserID:         u.UserID,
		Type:           "checking",
		Subtype:        "checking",
		BalanceCurrent: ptr(g.between(800, 6000)),
	}
	accounts = append(accounts, checking)

	txns = append(txns, g.expenses(u, checking, shape)...)
	txns = append(txns, g.payroll(u, checking, shape)...)

	switch shape {
	case shapeHighUtilization:
		card, cardTxns, liability := g.creditCard(u, 0.85, true)
		accounts = append(accounts, card)
		txns = append(txns, cardTxns...)
		liabilities = append(liabilities, liability)

	case shapeSubscriptionHeavy:
		txns = append(txns, g.subscriptions(u, checking, 4)...)
		card, cardTxns, liability := g.creditCard(u, 0.25, false)
		accounts = append(accounts, card)
		txns = append(txns, cardTxns...)
		liabilities = append(liabilities, liability)

	case shapeSavingsBuilder:
		savings := &types.Account{
			AccountID:      g.id("acc"),
			UserID:         u.UserID,
			Type:           "savings",
			Subtype:        "savings",
			BalanceCurrent: ptr(g.between(3000, 12000)),
		}
		accounts = append(accounts, savings)
		txns = append(txns, g.savingsDeposits(u, savings, g.between(250, 600))...)

	case shapeVariableIncome:
		// Irregular income is shaped in payroll(); keep the checking
		// balance thin so the cash-flow buffer stays under a month.
		checking.BalanceCurrent = ptr(g.between(150, 900))

	case shapeWealthBuilder:
		savings := &types.Account{
			AccountID:      g.id("acc"),
			UserID:         u.UserID,
			Type:           "savings",
			Subtype:        "money market",
			BalanceCurrent: ptr(g.between(30000, 80000)),
		}
		brokerage := &types.Account{
			AccountID:      g.id("acc"),
			UserID:         u.UserID,
			Type:           "brokerage",
			Subtype:        "brokerage",
			BalanceCurrent: ptr(g.between(50000, 250000)),
		}
		accounts = append(accounts, savings, brokerage)
		txns = append(txns, g.savingsDeposits(u, savings, g.between(1500, 4000))...)
		card, cardTxns, liability := g.creditCard(u, 0.08, false)
		accounts = append(accounts, card)
		txns = append(txns, cardTxns...)
		liabilities = append(liabilities, liability)

	case shapeMixed:
		txns = append(txns, g.subscriptions(u, checking, 2)...)
		card, cardTxns, liability := g.creditCard(u, g.between(0.30, 0.45), false)
		accounts = append(accounts, card)
		txns = append(txns, cardTxns...)
		liabilities = append(liabilities, liability)
	}

	return accounts, txns, liabilities
}

// expenses writes everyday spend on checking over the full 180-day window.
func (g *generator) expenses(u *types.User, acct *types.Account, shape string) []*types.Transaction {
	var txns []*types.Transaction
	count := 60 + g.rng.Intn(60)
	for i := 0; i < count; i++ {
		m := expenseMerchants[g.rng.Intn(len(expenseMerchants))]
		txns = append(txns, &types.Transaction{
			TransactionID:   g.id("txn"),
			AccountID:       acct.AccountID,
			UserID:          u.UserID,
			Date:            g.now.AddDate(0, 0, -g.rng.Intn(180)),
			Amount:          -g.between(m.min, m.max),
			MerchantName:    m.name,
			PaymentChannel:  "in store",
			CategoryPrimary: m.category,
		})
	}
	return txns
}

// payroll deposits: biweekly for steady earners, 50-70 day gaps for the
// variable-income shape, ~12k/month for wealth builders.
func (g *generator) payroll(u *types.User, acct *types.Account, shape string) []*types.Transaction {
	var txns []*types.Transaction

	gapDays := func() int { return 14 }
	amount := func() float64 { return g.between(2200, 2800) }
	switch shape {
	case shapeVariableIncome:
		gapDays = func() int { return 50 + g.rng.Intn(21) }
		amount = func() float64 { return g.between(1200, 5200) }
	case shapeWealthBuilder:
		amount = func() float64 { return g.between(5800, 6400) }
	}

	for day := 180 - g.rng.Intn(7); day > 0; day -= gapDays() {
		txns = append(txns, &types.Transaction{
			TransactionID:   g.id("txn"),
			AccountID:       acct.AccountID,
			UserID:          u.UserID,
			Date:            g.now.AddDate(0, 0, -day),
			Amount:          amount(),
			MerchantName:    "ACME PAYROLL",
			PaymentChannel:  "ach",
			CategoryPrimary: "INCOME",
		})
	}
	return txns
}

func (g *generator) subscriptions(u *types.User, acct *types.Account, count int) []*types.Transaction {
	var txns []*types.Transaction
	for i := 0; i < count && i < len(subscriptionMerchants); i++ {
		sub := subscriptionMerchants[i]
		start := 170 - g.rng.Intn(8)
		for day := start; day > 0; day -= 30 {
			jitter := g.rng.Intn(5) - 2
			txns = append(txns, &types.Transaction{
				TransactionID:   g.id("txn"),
				AccountID:       acct.AccountID,
				UserID:          u.UserID,
				Date:            g.now.AddDate(0, 0, -(day + jitter)),
				Amount:          -sub.amount,
				MerchantName:    sub.name,
				PaymentChannel:  "online",
				CategoryPrimary: "ENTERTAINMENT",
			})
		}
	}
	return txns
}

func (g *generator) savingsDeposits(u *types.User, acct *types.Account, monthly float64) []*types.Transaction {
	var txns []*types.Transaction
	for day := 175; day > 0; day -= 30 {
		txns = append(txns, &types.Transaction{
			TransactionID:   g.id("txn"),
			AccountID:       acct.AccountID,
			UserID:          u.UserID,
			Date:            g.now.AddDate(0, 0, -day),
			Amount:          monthly * g.between(0.9, 1.1),
			MerchantName:    "Automatic Transfer",
			PaymentChannel:  "other",
			CategoryPrimary: "TRANSFER_IN",
		})
	}
	return txns
}

// creditCard builds a card at the given utilization. Stressed cards also get
// an interest charge, a minimum-only payment history, and an overdue flag
// some of the time.
func (g *generator) creditCard(u *types.User, utilization float64, stressed bool) (*types.Account, []*types.Transaction, *types.Liability) {
	limit := float64(2000 + g.rng.Intn(8)*1000)
	card := &types.Account{
		AccountID:      g.id("acc"),
		UserID:         u.UserID,
		Type:           "credit card",
		Subtype:        "credit card",
		BalanceCurrent: ptr(limit * utilization),
		BalanceLimit:   ptr(limit),
	}

	var txns []*types.Transaction
	minPayment := 35.0
	lastPayment := g.between(150, 600)
	liability := &types.Liability{
		LiabilityID:          g.id("lia"),
		AccountID:            card.AccountID,
		UserID:               u.UserID,
		LiabilityType:        bank.LiabilityTypeCreditCard,
		APRPurchase:          ptr(g.between(17.5, 28.0)),
		MinimumPaymentAmount: &minPayment,
		LastPaymentAmount:    &lastPayment,
		LastStatementBalance: card.BalanceCurrent,
	}

	if stressed {
		minOnly := minPayment + g.between(0, 4)
		liability.LastPaymentAmount = &minOnly
		liability.IsOverdue = g.rng.Float64() < 0.4
		for day := 160; day > 0; day -= 30 {
			txns = append(txns, &types.Transaction{
				TransactionID:    g.id("txn"),
				AccountID:        card.AccountID,
				UserID:           u.UserID,
				Date:             g.now.AddDate(0, 0, -day),
				Amount:           -g.between(40, 120),
				MerchantName:     "Card Services",
				PaymentChannel:   "other",
				CategoryPrimary:  "BANK_FEES",
				CategoryDetailed: "BANK_FEES_INTEREST_CHARGE",
			})
		}
	}

	return card, txns, liability
}
