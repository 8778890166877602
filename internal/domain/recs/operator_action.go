package recs

import (
	"time"

	"github.com/VictorGoic0/SpendSense/internal/domain/user"
	"github.com/google/uuid"
)

const (
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionOverride = "override"
)

// OperatorAction is the append-only audit record behind every review
// decision. Rows are never updated or deleted.
type OperatorAction struct {
	ActionID         uuid.UUID       `gorm:"type:uuid;primaryKey;column:action_id" json:"action_id"`
	OperatorID       string          `gorm:"not null;index;column:operator_id" json:"operator_id"`
	ActionType       string          `gorm:"not null;column:action_type" json:"action_type"`
	RecommendationID *string         `gorm:"index;column:recommendation_id" json:"recommendation_id,omitempty"`
	Recommendation   *Recommendation `gorm:"foreignKey:RecommendationID;references:RecommendationID" json:"recommendation,omitempty"`
	UserID           string          `gorm:"not null;index;column:user_id" json:"user_id"`
	User             *user.User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	Reason           string          `gorm:"type:text;column:reason" json:"reason,omitempty"`
	Timestamp        time.Time       `gorm:"not null;autoCreateTime;column:timestamp" json:"timestamp"`
}

func (OperatorAction) TableName() string { return "operator_actions" }
