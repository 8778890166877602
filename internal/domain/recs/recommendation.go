package recs

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/VictorGoic0/SpendSense/internal/domain/user"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusOverridden      = "overridden"
	StatusRejected        = "rejected"

	ContentTypeEducation    = "education"
	ContentTypePartnerOffer = "partner_offer"
)

func AllStatuses() []string {
	return []string{StatusPendingApproval, StatusApproved, StatusOverridden, StatusRejected}
}

func IsValidStatus(status string) bool {
	for _, s := range AllStatuses() {
		if status == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether a review action may move a recommendation
// from one status to another. Only pending_approval rows are actionable;
// approved, overridden, and rejected are all terminal.
func CanTransition(from, to string) bool {
	if from != StatusPendingApproval {
		return false
	}
	switch to {
	case StatusApproved, StatusOverridden, StatusRejected:
		return true
	default:
		return false
	}
}

// NewRecommendationID mirrors the id scheme used across ingested entities:
// a short prefixed hex token rather than a full UUID.
func NewRecommendationID() string {
	return "rec_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// Recommendation is generated content awaiting operator review. Created by
// the generation pipeline; mutated only by operator actions.
type Recommendation struct {
	RecommendationID string         `gorm:"primaryKey;column:recommendation_id" json:"recommendation_id"`
	UserID           string         `gorm:"not null;index;column:user_id" json:"user_id"`
	User             *user.User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	PersonaType      string         `gorm:"not null;column:persona_type" json:"persona_type"`
	WindowDays       int            `gorm:"not null;column:window_days" json:"window_days"`
	ContentType      string         `gorm:"not null;column:content_type" json:"content_type"`
	Title            string         `gorm:"not null;column:title" json:"title"`
	Content          string         `gorm:"not null;type:text;column:content" json:"content"`
	Rationale        string         `gorm:"not null;type:text;column:rationale" json:"rationale"`
	Status           string         `gorm:"not null;index;column:status;default:pending_approval" json:"status"`
	ApprovedBy       *string        `gorm:"column:approved_by" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time     `gorm:"column:approved_at" json:"approved_at,omitempty"`
	OverrideReason   *string        `gorm:"type:text;column:override_reason" json:"override_reason,omitempty"`
	OriginalContent  datatypes.JSON `gorm:"column:original_content" json:"original_content,omitempty"`
	Metadata         datatypes.JSON `gorm:"column:metadata_json" json:"metadata,omitempty"`
	GeneratedAt      time.Time      `gorm:"not null;column:generated_at" json:"generated_at"`
	GenerationTimeMS int            `gorm:"column:generation_time_ms" json:"generation_time_ms"`
	ExpiresAt        *time.Time     `gorm:"column:expires_at" json:"expires_at,omitempty"`
}

func (Recommendation) TableName() string { return "recommendations" }

const (
	WarningSeverityCritical = "critical"
	WarningSeverityNotable  = "notable"

	WarningForbiddenPhrase         = "forbidden_phrase"
	WarningLacksEmpoweringLanguage = "lacks_empowering_language"
)

// ToneWarning is a single finding from tone screening. Severity drives the
// operator UI: critical findings block overrides, notable ones only flag.
type ToneWarning struct {
	Severity string `json:"severity"`
	Type     string `json:"type"`
	Message  string `json:"message"`
}

func (w ToneWarning) IsCritical() bool { return w.Severity == WarningSeverityCritical }

// Metadata is the typed form of Recommendation.Metadata. Internal provider
// accounting (token usage, cost estimates) is stripped before anything is
// written here.
type Metadata struct {
	Model              string        `json:"model,omitempty"`
	ValidationWarnings []ToneWarning `json:"validation_warnings,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty"`
	RejectedBy         string        `json:"rejected_by,omitempty"`
}

func DecodeMetadata(raw datatypes.JSON) Metadata {
	var out Metadata
	if len(raw) == 0 {
		return out
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func EncodeMetadata(m Metadata) datatypes.JSON {
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}

// OriginalContent snapshots the generated text before an operator override
// replaces it, so the audit trail keeps both versions.
type OriginalContent struct {
	OriginalTitle     string `json:"original_title"`
	OriginalContent   string `json:"original_content"`
	OriginalRationale string `json:"original_rationale"`
}

func DecodeOriginalContent(raw datatypes.JSON) OriginalContent {
	var out OriginalContent
	if len(raw) == 0 {
		return out
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func EncodeOriginalContent(oc OriginalContent) datatypes.JSON {
	b, _ := json.Marshal(oc)
	return datatypes.JSON(b)
}
