package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy carries every numeric threshold the detection, classification, and
// matching engines compare against. Values are business policy, not derived
// quantities; the compiled defaults match production behavior and a YAML file
// may override any subset of them.
type Policy struct {
	Windows         WindowPolicy         `yaml:"windows"`
	Subscriptions   SubscriptionPolicy   `yaml:"subscriptions"`
	Credit          CreditPolicy         `yaml:"credit"`
	Income          IncomePolicy         `yaml:"income"`
	Personas        PersonaPolicy        `yaml:"personas"`
	Matching        MatchingPolicy       `yaml:"matching"`
	Recommendations RecommendationPolicy `yaml:"recommendations"`
	Guardrails      GuardrailPolicy      `yaml:"guardrails"`
}

type WindowPolicy struct {
	Default int `yaml:"default"`
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
}

type SubscriptionPolicy struct {
	MinOccurrences   int     `yaml:"min_occurrences"`
	CadencesDays     []int   `yaml:"cadences_days"`
	GapToleranceDays int     `yaml:"gap_tolerance_days"`
	RecurringShare   float64 `yaml:"recurring_share"`
}

type CreditPolicy struct {
	UtilizationFlag30      float64 `yaml:"utilization_flag_30"`
	UtilizationFlag50      float64 `yaml:"utilization_flag_50"`
	UtilizationFlag80      float64 `yaml:"utilization_flag_80"`
	MinPaymentToleranceUSD float64 `yaml:"min_payment_tolerance_usd"`
}

type IncomePolicy struct {
	MinPayrollTransactions int `yaml:"min_payroll_transactions"`
}

type PersonaPolicy struct {
	WealthMinMonthlyIncome  float64 `yaml:"wealth_min_monthly_income"`
	WealthMinSavingsBalance float64 `yaml:"wealth_min_savings_balance"`
	WealthMaxUtilization    float64 `yaml:"wealth_max_utilization"`
	FeeLookbackDays         int     `yaml:"fee_lookback_days"`

	HighUtilizationThreshold float64 `yaml:"high_utilization_threshold"`
	SevereUtilization        float64 `yaml:"severe_utilization"`

	SavingsMinGrowthRate    float64 `yaml:"savings_min_growth_rate"`
	SavingsMinMonthlyInflow float64 `yaml:"savings_min_monthly_inflow"`
	SavingsMaxUtilization   float64 `yaml:"savings_max_utilization"`

	VariableMinPayGapDays  int     `yaml:"variable_min_pay_gap_days"`
	VariableMaxBufferMonth float64 `yaml:"variable_max_buffer_months"`

	SubscriptionMinMerchants    int     `yaml:"subscription_min_merchants"`
	SubscriptionMinMonthlySpend float64 `yaml:"subscription_min_monthly_spend"`
	SubscriptionMinSpendShare   float64 `yaml:"subscription_min_spend_share"`

	FallbackConfidenceNoMatch    float64 `yaml:"fallback_confidence_no_match"`
	FallbackConfidenceNoFeatures float64 `yaml:"fallback_confidence_no_features"`
}

type MatchingPolicy struct {
	BaseScore              float64 `yaml:"base_score"`
	ScoreThreshold         float64 `yaml:"score_threshold"`
	TopN                   int     `yaml:"top_n"`
	BalanceTransferMinUtil float64 `yaml:"balance_transfer_min_utilization"`

	HighUtilization        float64 `yaml:"high_utilization"`
	VeryHighUtilization    float64 `yaml:"very_high_utilization"`
	EmergencyTargetMonths  float64 `yaml:"emergency_target_months"`
	MinSavingsGrowthRate   float64 `yaml:"min_savings_growth_rate"`
	HighIncomeVariability  float64 `yaml:"high_income_variability"`
	ModerateVariability    float64 `yaml:"moderate_income_variability"`
	LowBufferDays          float64 `yaml:"low_buffer_days"`
	ManySubscriptions      int     `yaml:"many_subscriptions"`
	HighSubscriptionShare  float64 `yaml:"high_subscription_share"`
	InvestorMinIncome      float64 `yaml:"investor_min_income"`
	InvestorMaxUtilization float64 `yaml:"investor_max_utilization"`
}

type RecommendationPolicy struct {
	MaxContextAccounts     int `yaml:"max_context_accounts"`
	MaxContextTransactions int `yaml:"max_context_transactions"`
	ExpiryDays             int `yaml:"expiry_days"`
}

// GuardrailPolicy holds the tone screening vocabularies. A YAML override
// replaces a list wholesale, it does not merge.
type GuardrailPolicy struct {
	ForbiddenPhrases   []string `yaml:"forbidden_phrases"`
	EmpoweringKeywords []string `yaml:"empowering_keywords"`
}

// Priority tiers for persona rule matching, highest wins. These are rule
// semantics rather than tunable policy, so they are fixed here instead of the
// YAML surface.
const (
	PriorityWealthBuilder         = 1.0
	PriorityHighUtilizationSevere = 0.95
	PriorityHighUtilization       = 0.8
	PrioritySavingsBuilder        = 0.7
	PriorityVariableIncome        = 0.6
	PrioritySubscriptionHeavy     = 0.5
)

func DefaultPolicy() Policy {
	return Policy{
		Windows: WindowPolicy{Default: 30, Min: 1, Max: 365},
		Subscriptions: SubscriptionPolicy{
			MinOccurrences:   3,
			CadencesDays:     []int{7, 30, 90},
			GapToleranceDays: 5,
			RecurringShare:   0.60,
		},
		Credit: CreditPolicy{
			UtilizationFlag30:      0.30,
			UtilizationFlag50:      0.50,
			UtilizationFlag80:      0.80,
			MinPaymentToleranceUSD: 5.0,
		},
		Income: IncomePolicy{MinPayrollTransactions: 2},
		Personas: PersonaPolicy{
			WealthMinMonthlyIncome:       10000,
			WealthMinSavingsBalance:      25000,
			WealthMaxUtilization:         0.20,
			FeeLookbackDays:              180,
			HighUtilizationThreshold:     0.50,
			SevereUtilization:            0.80,
			SavingsMinGrowthRate:         0.02,
			SavingsMinMonthlyInflow:      200,
			SavingsMaxUtilization:        0.30,
			VariableMinPayGapDays:        45,
			VariableMaxBufferMonth:       1,
			SubscriptionMinMerchants:     3,
			SubscriptionMinMonthlySpend:  50,
			SubscriptionMinSpendShare:    0.10,
			FallbackConfidenceNoMatch:    0.2,
			FallbackConfidenceNoFeatures: 0.1,
		},
		Matching: MatchingPolicy{
			BaseScore:              0.5,
			ScoreThreshold:         0.5,
			TopN:                   3,
			BalanceTransferMinUtil: 0.30,
			HighUtilization:        0.50,
			VeryHighUtilization:    0.70,
			EmergencyTargetMonths:  3,
			MinSavingsGrowthRate:   0.02,
			HighIncomeVariability:  0.30,
			ModerateVariability:    0.25,
			LowBufferDays:          30,
			ManySubscriptions:      5,
			HighSubscriptionShare:  0.20,
			InvestorMinIncome:      5000,
			InvestorMaxUtilization: 0.30,
		},
		Recommendations: RecommendationPolicy{
			MaxContextAccounts:     5,
			MaxContextTransactions: 10,
			ExpiryDays:             30,
		},
		Guardrails: GuardrailPolicy{
			ForbiddenPhrases: []string{
				"you're overspending",
				"bad habit",
				"poor financial decision",
				"irresponsible",
				"wasteful spending",
				"you should stop",
				"you need to",
			},
			EmpoweringKeywords: []string{
				"you can",
				"let's",
				"many people",
				"common challenge",
				"opportunity",
				"consider",
				"explore",
			},
		},
	}
}

// LoadPolicy reads a YAML override file on top of the defaults. Fields absent
// from the file keep their default values.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy config: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse policy config: %w", err)
	}
	return p, nil
}

// PolicyFromEnv resolves the effective policy: POLICY_CONFIG_PATH when set,
// defaults otherwise.
func PolicyFromEnv() (Policy, error) {
	path := strings.TrimSpace(os.Getenv("POLICY_CONFIG_PATH"))
	if path == "" {
		return DefaultPolicy(), nil
	}
	return LoadPolicy(path)
}
