package user

import (
	"time"
)

const (
	TypeCustomer = "customer"
	TypeOperator = "operator"
)

type User struct {
	UserID           string     `gorm:"primaryKey;column:user_id" json:"user_id"`
	FullName         string     `gorm:"not null;column:full_name" json:"full_name"`
	Email            string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	UserType         string     `gorm:"column:user_type;default:customer" json:"user_type"`
	ConsentStatus    bool       `gorm:"column:consent_status;default:false" json:"consent_status"`
	ConsentGrantedAt *time.Time `gorm:"column:consent_granted_at" json:"consent_granted_at,omitempty"`
	ConsentRevokedAt *time.Time `gorm:"column:consent_revoked_at" json:"consent_revoked_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }
