package bank

import (
	"time"

	"github.com/VictorGoic0/SpendSense/internal/domain/user"
)

const (
	LiabilityTypeCreditCard = "credit_card"
	LiabilityTypeLoan       = "loan"
	LiabilityTypeMortgage   = "mortgage"
	LiabilityTypeOther      = "other"
)

type Liability struct {
	LiabilityID          string     `gorm:"primaryKey;column:liability_id" json:"liability_id"`
	AccountID            string     `gorm:"not null;index;column:account_id" json:"account_id"`
	Account              *Account   `gorm:"constraint:OnDelete:CASCADE;foreignKey:AccountID;references:AccountID" json:"account,omitempty"`
	UserID               string     `gorm:"not null;index;column:user_id" json:"user_id"`
	User                 *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	LiabilityType        string     `gorm:"not null;column:liability_type" json:"liability_type"`
	APRPurchase          *float64   `gorm:"column:apr_purchase" json:"apr_purchase,omitempty"`
	APRBalanceTransfer   *float64   `gorm:"column:apr_balance_transfer" json:"apr_balance_transfer,omitempty"`
	APRCashAdvance       *float64   `gorm:"column:apr_cash_advance" json:"apr_cash_advance,omitempty"`
	MinimumPaymentAmount *float64   `gorm:"column:minimum_payment_amount" json:"minimum_payment_amount,omitempty"`
	LastPaymentAmount    *float64   `gorm:"column:last_payment_amount" json:"last_payment_amount,omitempty"`
	IsOverdue            bool       `gorm:"column:is_overdue;default:false" json:"is_overdue"`
	NextPaymentDueDate   *time.Time `gorm:"type:date;column:next_payment_due_date" json:"next_payment_due_date,omitempty"`
	LastStatementBalance *float64   `gorm:"column:last_statement_balance" json:"last_statement_balance,omitempty"`
	InterestRate         *float64   `gorm:"column:interest_rate" json:"interest_rate,omitempty"`
	CreatedAt            time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Liability) TableName() string { return "liabilities" }
