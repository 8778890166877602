package bank

import (
	"strings"
	"time"

	"github.com/VictorGoic0/SpendSense/internal/domain/user"
)

type Account struct {
	AccountID        string     `gorm:"primaryKey;column:account_id" json:"account_id"`
	UserID           string     `gorm:"not null;index;column:user_id" json:"user_id"`
	User             *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	Type             string     `gorm:"not null;column:type" json:"type"`
	Subtype          string     `gorm:"column:subtype" json:"subtype,omitempty"`
	BalanceAvailable *float64   `gorm:"column:balance_available" json:"balance_available,omitempty"`
	BalanceCurrent   *float64   `gorm:"column:balance_current" json:"balance_current,omitempty"`
	BalanceLimit     *float64   `gorm:"column:balance_limit" json:"balance_limit,omitempty"`
	ISOCurrencyCode  string     `gorm:"column:iso_currency_code;default:USD" json:"iso_currency_code"`
	HolderCategory   string     `gorm:"column:holder_category" json:"holder_category,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Account) TableName() string { return "accounts" }

// Account type taxonomy. Ingested types follow Plaid naming, so membership
// checks normalize case before comparing.
var (
	savingsTypes    = []string{"savings", "money market", "cash management", "hsa"}
	investmentTypes = []string{"brokerage", "401k", "ira", "roth_ira", "investment", "pension"}
)

// SavingsAccountTypes lists the types treated as savings vehicles, for
// callers that filter at the query layer.
func SavingsAccountTypes() []string { return append([]string(nil), savingsTypes...) }

// InvestmentAccountTypes lists the types treated as investment vehicles.
func InvestmentAccountTypes() []string { return append([]string(nil), investmentTypes...) }

func IsSavingsType(accountType string) bool {
	t := strings.ToLower(strings.TrimSpace(accountType))
	for _, s := range savingsTypes {
		if t == s {
			return true
		}
	}
	return false
}

func IsInvestmentType(accountType string) bool {
	t := strings.ToLower(strings.TrimSpace(accountType))
	for _, s := range investmentTypes {
		if t == s {
			return true
		}
	}
	return false
}

func IsCreditType(accountType string) bool {
	t := strings.ToLower(strings.TrimSpace(accountType))
	return t == "credit card" || t == "credit"
}

func IsCheckingType(accountType string) bool {
	t := strings.ToLower(strings.TrimSpace(accountType))
	return t == "checking" || t == "depository"
}

// CurrentBalance returns the point-in-time balance, treating a missing value
// as zero so signal math never has to branch on nil.
func (a Account) CurrentBalance() float64 {
	if a.BalanceCurrent == nil {
		return 0
	}
	return *a.BalanceCurrent
}

func (a Account) Limit() float64 {
	if a.BalanceLimit == nil {
		return 0
	}
	return *a.BalanceLimit
}
