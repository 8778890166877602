package bank

import (
	"time"

	"github.com/VictorGoic0/SpendSense/internal/domain/user"
)

// Transaction is an immutable financial event. Rows are created by ingestion
// and never mutated afterwards.
type Transaction struct {
	TransactionID    string     `gorm:"primaryKey;column:transaction_id" json:"transaction_id"`
	AccountID        string     `gorm:"not null;index;column:account_id" json:"account_id"`
	Account          *Account   `gorm:"constraint:OnDelete:CASCADE;foreignKey:AccountID;references:AccountID" json:"account,omitempty"`
	UserID           string     `gorm:"not null;index:idx_transactions_user_date,priority:1;column:user_id" json:"user_id"`
	User             *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	Date             time.Time  `gorm:"type:date;not null;index:idx_transactions_user_date,priority:2;column:date" json:"date"`
	Amount           float64    `gorm:"not null;column:amount" json:"amount"`
	MerchantName     string     `gorm:"index;column:merchant_name" json:"merchant_name,omitempty"`
	MerchantEntityID string     `gorm:"column:merchant_entity_id" json:"merchant_entity_id,omitempty"`
	PaymentChannel   string     `gorm:"column:payment_channel" json:"payment_channel,omitempty"`
	CategoryPrimary  string     `gorm:"column:category_primary" json:"category_primary,omitempty"`
	CategoryDetailed string     `gorm:"column:category_detailed" json:"category_detailed,omitempty"`
	Pending          bool       `gorm:"column:pending;default:false" json:"pending"`
	CreatedAt        time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }
