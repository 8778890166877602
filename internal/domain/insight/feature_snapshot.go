package insight

import (
	"time"

	"github.com/VictorGoic0/SpendSense/internal/domain/user"
	"github.com/google/uuid"
)

// FeatureSnapshot holds the behavioral signals computed over one rolling
// window. There is exactly one row per (user, window); recomputation replaces
// every column wholesale rather than merging.
type FeatureSnapshot struct {
	FeatureID  uuid.UUID  `gorm:"type:uuid;primaryKey;column:feature_id" json:"feature_id"`
	UserID     string     `gorm:"not null;index;index:idx_features_user_window,unique,priority:1;column:user_id" json:"user_id"`
	User       *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	WindowDays int        `gorm:"not null;index:idx_features_user_window,unique,priority:2;column:window_days" json:"window_days"`
	ComputedAt time.Time  `gorm:"not null;column:computed_at" json:"computed_at"`

	// Subscription signals
	RecurringMerchants     int     `gorm:"column:recurring_merchants;default:0" json:"recurring_merchants"`
	MonthlyRecurringSpend  float64 `gorm:"column:monthly_recurring_spend;default:0" json:"monthly_recurring_spend"`
	SubscriptionSpendShare float64 `gorm:"column:subscription_spend_share;default:0" json:"subscription_spend_share"`

	// Savings signals
	NetSavingsInflow    float64 `gorm:"column:net_savings_inflow;default:0" json:"net_savings_inflow"`
	SavingsGrowthRate   float64 `gorm:"column:savings_growth_rate;default:0" json:"savings_growth_rate"`
	EmergencyFundMonths float64 `gorm:"column:emergency_fund_months;default:0" json:"emergency_fund_months"`

	// Credit signals
	AvgUtilization         float64 `gorm:"column:avg_utilization;default:0" json:"avg_utilization"`
	MaxUtilization         float64 `gorm:"column:max_utilization;default:0" json:"max_utilization"`
	Utilization30Flag      bool    `gorm:"column:utilization_30_flag;default:false" json:"utilization_30_flag"`
	Utilization50Flag      bool    `gorm:"column:utilization_50_flag;default:false" json:"utilization_50_flag"`
	Utilization80Flag      bool    `gorm:"column:utilization_80_flag;default:false" json:"utilization_80_flag"`
	MinimumPaymentOnlyFlag bool    `gorm:"column:minimum_payment_only_flag;default:false" json:"minimum_payment_only_flag"`
	InterestChargesPresent bool    `gorm:"column:interest_charges_present;default:false" json:"interest_charges_present"`
	AnyOverdue             bool    `gorm:"column:any_overdue;default:false" json:"any_overdue"`

	// Income signals
	PayrollDetected      bool     `gorm:"column:payroll_detected;default:false" json:"payroll_detected"`
	MedianPayGapDays     *int     `gorm:"column:median_pay_gap_days" json:"median_pay_gap_days,omitempty"`
	IncomeVariability    *float64 `gorm:"column:income_variability" json:"income_variability,omitempty"`
	CashFlowBufferMonths float64  `gorm:"column:cash_flow_buffer_months;default:0" json:"cash_flow_buffer_months"`
	AvgMonthlyIncome     float64  `gorm:"column:avg_monthly_income;default:0" json:"avg_monthly_income"`

	// Investment signals
	InvestmentAccountDetected bool `gorm:"column:investment_account_detected;default:false" json:"investment_account_detected"`
}

func (FeatureSnapshot) TableName() string { return "user_features" }
