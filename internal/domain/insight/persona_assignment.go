package insight

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/VictorGoic0/SpendSense/internal/domain/user"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	PersonaHighUtilization   = "high_utilization"
	PersonaVariableIncome    = "variable_income"
	PersonaSubscriptionHeavy = "subscription_heavy"
	PersonaSavingsBuilder    = "savings_builder"
	PersonaWealthBuilder     = "wealth_builder"

	// PersonaGeneralWellness predates the five-member taxonomy. No assignment
	// path produces it anymore; rows carrying it are migrated by
	// cmd/fix_personas.
	PersonaGeneralWellness = "general_wellness"
)

func AllPersonaTypes() []string {
	return []string{
		PersonaHighUtilization,
		PersonaVariableIncome,
		PersonaSubscriptionHeavy,
		PersonaSavingsBuilder,
		PersonaWealthBuilder,
	}
}

func IsValidPersonaType(persona string) bool {
	for _, p := range AllPersonaTypes() {
		if persona == p {
			return true
		}
	}
	return false
}

// NormalizePersona strips experiment suffixes like "_v2" so suffixed
// assignments still resolve to a catalog persona target.
func NormalizePersona(persona string) string {
	p := strings.TrimSpace(persona)
	for _, known := range AllPersonaTypes() {
		if p == known || strings.HasPrefix(p, known+"_") {
			return known
		}
	}
	return p
}

// PersonaAssignment is the stored classification outcome for one (user,
// window) pair. Unique on that pair; re-assignment overwrites in place.
type PersonaAssignment struct {
	PersonaID       uuid.UUID      `gorm:"type:uuid;primaryKey;column:persona_id" json:"persona_id"`
	UserID          string         `gorm:"not null;index;index:idx_personas_user_window,unique,priority:1;column:user_id" json:"user_id"`
	User            *user.User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	WindowDays      int            `gorm:"not null;index:idx_personas_user_window,unique,priority:2;column:window_days" json:"window_days"`
	PersonaType     string         `gorm:"not null;column:persona_type" json:"persona_type"`
	ConfidenceScore float64        `gorm:"column:confidence_score;default:1.0" json:"confidence_score"`
	AssignedAt      time.Time      `gorm:"not null;column:assigned_at" json:"assigned_at"`
	Reasoning       datatypes.JSON `gorm:"column:reasoning" json:"reasoning,omitempty"`
}

func (PersonaAssignment) TableName() string { return "personas" }

// ReasoningTrace is the typed form of PersonaAssignment.Reasoning. It cites
// the criteria that matched and the raw signal values behind them so an
// operator can audit why a label was assigned.
type ReasoningTrace struct {
	MatchedCriteria    []string       `json:"matched_criteria"`
	FeatureValues      map[string]any `json:"feature_values"`
	Timestamp          string         `json:"timestamp"`
	Priority           float64        `json:"priority,omitempty"`
	AllMatchedPersonas []string       `json:"all_matched_personas,omitempty"`
	Reason             string         `json:"reason,omitempty"`
}

func DecodeReasoningTrace(raw datatypes.JSON) ReasoningTrace {
	out := ReasoningTrace{
		MatchedCriteria: []string{},
		FeatureValues:   map[string]any{},
	}
	if len(raw) == 0 {
		return out
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return out
	}
	var tr ReasoningTrace
	if err := json.Unmarshal(raw, &tr); err != nil {
		return out
	}
	if tr.MatchedCriteria == nil {
		tr.MatchedCriteria = []string{}
	}
	if tr.FeatureValues == nil {
		tr.FeatureValues = map[string]any{}
	}
	return tr
}

func EncodeReasoningTrace(tr ReasoningTrace) datatypes.JSON {
	if tr.MatchedCriteria == nil {
		tr.MatchedCriteria = []string{}
	}
	if tr.FeatureValues == nil {
		tr.FeatureValues = map[string]any{}
	}
	return datatypes.JSON(mustJSON(tr))
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
