package insight

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EvaluationMetric captures one evaluation run over the whole user base:
// persona coverage, recommendation explainability, latency percentiles, and
// audit-trail completeness.
type EvaluationMetric struct {
	MetricID                   uuid.UUID      `gorm:"type:uuid;primaryKey;column:metric_id" json:"metric_id"`
	RunID                      string         `gorm:"not null;index;column:run_id" json:"run_id"`
	Timestamp                  time.Time      `gorm:"not null;column:timestamp" json:"timestamp"`
	TotalUsers                 int            `gorm:"column:total_users" json:"total_users"`
	UsersWithPersona           int            `gorm:"column:users_with_persona" json:"users_with_persona"`
	UsersWithBehaviors         int            `gorm:"column:users_with_behaviors" json:"users_with_behaviors"`
	CoveragePercentage         float64        `gorm:"column:coverage_percentage" json:"coverage_percentage"`
	TotalRecommendations       int            `gorm:"column:total_recommendations" json:"total_recommendations"`
	RecommendationsWRationale  int            `gorm:"column:recommendations_with_rationale" json:"recommendations_with_rationale"`
	ExplainabilityPercentage   float64        `gorm:"column:explainability_percentage" json:"explainability_percentage"`
	AvgRecommendationLatencyMS float64        `gorm:"column:avg_recommendation_latency_ms" json:"avg_recommendation_latency_ms"`
	P95RecommendationLatencyMS float64        `gorm:"column:p95_recommendation_latency_ms" json:"p95_recommendation_latency_ms"`
	RecommendationsWithTraces  int            `gorm:"column:recommendations_with_traces" json:"recommendations_with_traces"`
	AuditabilityPercentage     float64        `gorm:"column:auditability_percentage" json:"auditability_percentage"`
	Details                    datatypes.JSON `gorm:"column:details" json:"details,omitempty"`
}

func (EvaluationMetric) TableName() string { return "evaluation_metrics" }

// EvaluationDetails is the typed form of EvaluationMetric.Details: the
// grouped distributions that do not fit the scalar columns.
type EvaluationDetails struct {
	PersonaDistribution30d  map[string]int64 `json:"persona_distribution_30d"`
	PersonaDistribution180d map[string]int64 `json:"persona_distribution_180d"`
	RecommendationStatus    map[string]int64 `json:"recommendation_status_breakdown"`
}

func DecodeEvaluationDetails(raw datatypes.JSON) EvaluationDetails {
	out := EvaluationDetails{
		PersonaDistribution30d:  map[string]int64{},
		PersonaDistribution180d: map[string]int64{},
		RecommendationStatus:    map[string]int64{},
	}
	if len(raw) == 0 {
		return out
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return out
	}
	var d EvaluationDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return out
	}
	if d.PersonaDistribution30d == nil {
		d.PersonaDistribution30d = map[string]int64{}
	}
	if d.PersonaDistribution180d == nil {
		d.PersonaDistribution180d = map[string]int64{}
	}
	if d.RecommendationStatus == nil {
		d.RecommendationStatus = map[string]int64{}
	}
	return d
}

func EncodeEvaluationDetails(d EvaluationDetails) datatypes.JSON {
	if d.PersonaDistribution30d == nil {
		d.PersonaDistribution30d = map[string]int64{}
	}
	if d.PersonaDistribution180d == nil {
		d.PersonaDistribution180d = map[string]int64{}
	}
	if d.RecommendationStatus == nil {
		d.RecommendationStatus = map[string]int64{}
	}
	return datatypes.JSON(mustJSON(d))
}
