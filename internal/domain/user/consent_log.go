package user

import (
	"time"

	"github.com/google/uuid"
)

const (
	ConsentActionGranted = "granted"
	ConsentActionRevoked = "revoked"
)

// ConsentLog is append-only: rows are written when consent changes and are
// never updated or deleted afterwards.
type ConsentLog struct {
	LogID     uuid.UUID `gorm:"type:uuid;primaryKey;column:log_id" json:"log_id"`
	UserID    string    `gorm:"not null;index;column:user_id" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	Action    string    `gorm:"not null;column:action" json:"action"`
	Timestamp time.Time `gorm:"not null;autoCreateTime;column:timestamp" json:"timestamp"`
	IPAddress string    `gorm:"column:ip_address" json:"ip_address,omitempty"`
	UserAgent string    `gorm:"column:user_agent" json:"user_agent,omitempty"`
}

func (ConsentLog) TableName() string { return "consent_log" }
