package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/dberr"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/gcs"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

const (
	evaluationHistoryDefaultLimit = 10
	evaluationHistoryMaxLimit     = 100

	artifactURLTTL = 7 * 24 * time.Hour
)

type CoverageMetrics struct {
	TotalUsers         int     `json:"total_users"`
	UsersWithPersona   int     `json:"users_with_persona"`
	UsersWithBehaviors int     `json:"users_with_behaviors"`
	CoveragePercentage float64 `json:"coverage_percentage"`
}

type ExplainabilityMetrics struct {
	TotalRecommendations         int     `json:"total_recommendations"`
	RecommendationsWithRationale int     `json:"recommendations_with_rationale"`
	ExplainabilityPercentage     float64 `json:"explainability_percentage"`
}

type LatencyMetrics struct {
	AvgRecommendationLatencyMS      float64 `json:"avg_recommendation_latency_ms"`
	P95RecommendationLatencyMS      float64 `json:"p95_recommendation_latency_ms"`
	TotalRecommendationsWithLatency int     `json:"total_recommendations_with_latency"`
}

type AuditabilityMetrics struct {
	TotalRecommendations      int     `json:"total_recommendations"`
	RecommendationsWithTraces int     `json:"recommendations_with_traces"`
	AuditabilityPercentage    float64 `json:"auditability_percentage"`
}

// EvaluationMetrics is one run's full readout across the user base.
type EvaluationMetrics struct {
	RunID                   string                `json:"run_id"`
	Timestamp               time.Time             `json:"timestamp"`
	Coverage                CoverageMetrics       `json:"coverage"`
	Explainability          ExplainabilityMetrics `json:"explainability"`
	Latency                 LatencyMetrics        `json:"latency"`
	Auditability            AuditabilityMetrics   `json:"auditability"`
	PersonaDistribution30d  map[string]int64      `json:"persona_distribution_30d"`
	PersonaDistribution180d map[string]int64      `json:"persona_distribution_180d"`
	RecommendationStatus    map[string]int64      `json:"recommendation_status_breakdown"`
}

// EvaluationResult pairs the computed metrics with the objects exported to
// the analytics bucket, when one is configured.
type EvaluationResult struct {
	RunID        string             `json:"run_id"`
	Metrics      *EvaluationMetrics `json:"metrics"`
	Artifacts    []string           `json:"artifact_exports"`
	DownloadURLs map[string]string  `json:"download_urls"`
}

type EvaluationHistory struct {
	Total int64                     `json:"total"`
	Runs  []*types.EvaluationMetric `json:"runs"`
}

type EvaluationService interface {
	// Run computes every metric, persists the run, and exports artifacts.
	// A caller-supplied runID overrides the generated one.
	Run(ctx context.Context, runID string) (*EvaluationResult, error)
	Latest(ctx context.Context) (*types.EvaluationMetric, error)
	History(ctx context.Context, limit int) (*EvaluationHistory, error)
}

type evaluationService struct {
	db        *gorm.DB
	log       *logger.Logger
	policy    config.Policy
	users     repos.UserRepo
	features  repos.FeatureSnapshotRepo
	personas  repos.PersonaAssignmentRepo
	recsRepo  repos.RecommendationRepo
	metrics   repos.EvaluationMetricRepo
	artifacts gcs.ArtifactStore
}

// NewEvaluationService wires the run pipeline. artifacts may be nil; runs
// then skip the export step.
func NewEvaluationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	users repos.UserRepo,
	features repos.FeatureSnapshotRepo,
	personas repos.PersonaAssignmentRepo,
	recsRepo repos.RecommendationRepo,
	metrics repos.EvaluationMetricRepo,
	artifacts gcs.ArtifactStore,
) EvaluationService {
	return &evaluationService{
		db:        db,
		log:       baseLog.With("service", "EvaluationService"),
		policy:    policy,
		users:     users,
		features:  features,
		personas:  personas,
		recsRepo:  recsRepo,
		metrics:   metrics,
		artifacts: artifacts,
	}
}

func (s *evaluationService) Run(ctx context.Context, runID string) (*EvaluationResult, error) {
	const op = "EvaluationService.Run"
	started := time.Now().UTC()

	runID = strings.TrimSpace(runID)
	if runID == "" {
		runID = "eval_" + started.Format("20060102_150405")
	}

	dbc := dbctx.Context{Ctx: ctx}
	coverage, err := s.coverage(dbc)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	explainability, err := s.explainability(dbc)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	latency, err := s.latency(dbc)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	// Every row stores its persona and the snapshot it was generated from,
	// so the audit trail is complete by construction.
	auditability := AuditabilityMetrics{
		TotalRecommendations:      explainability.TotalRecommendations,
		RecommendationsWithTraces: explainability.TotalRecommendations,
		AuditabilityPercentage:    100.0,
	}

	distributions := make(map[int]map[string]int64, len(AnalysisWindows))
	for _, window := range AnalysisWindows {
		dist, err := s.personas.CountByType(dbc, window)
		if err != nil {
			return nil, dberr.MapError(op, err)
		}
		distributions[window] = dist
	}
	breakdown, err := s.recsRepo.CountByStatus(dbc)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}

	metrics := &EvaluationMetrics{
		RunID:                   runID,
		Timestamp:               started,
		Coverage:                coverage,
		Explainability:          explainability,
		Latency:                 latency,
		Auditability:            auditability,
		PersonaDistribution30d:  distributions[30],
		PersonaDistribution180d: distributions[180],
		RecommendationStatus:    breakdown,
	}

	row := &types.EvaluationMetric{
		RunID:                      runID,
		Timestamp:                  started,
		TotalUsers:                 coverage.TotalUsers,
		UsersWithPersona:           coverage.UsersWithPersona,
		UsersWithBehaviors:         coverage.UsersWithBehaviors,
		CoveragePercentage:         coverage.CoveragePercentage,
		TotalRecommendations:       explainability.TotalRecommendations,
		RecommendationsWRationale:  explainability.RecommendationsWithRationale,
		ExplainabilityPercentage:   explainability.ExplainabilityPercentage,
		AvgRecommendationLatencyMS: latency.AvgRecommendationLatencyMS,
		P95RecommendationLatencyMS: latency.P95RecommendationLatencyMS,
		RecommendationsWithTraces:  auditability.RecommendationsWithTraces,
		AuditabilityPercentage:     auditability.AuditabilityPercentage,
		Details: types.EncodeEvaluationDetails(types.EvaluationDetails{
			PersonaDistribution30d:  distributions[30],
			PersonaDistribution180d: distributions[180],
			RecommendationStatus:    breakdown,
		}),
	}
	if err := s.metrics.Create(dbc, row); err != nil {
		return nil, dberr.MapError(op, err)
	}

	result := &EvaluationResult{
		RunID:        runID,
		Metrics:      metrics,
		Artifacts:    []string{},
		DownloadURLs: map[string]string{},
	}
	s.exportArtifacts(ctx, runID, row, result)

	s.log.Info("Evaluation run complete",
		"run_id", runID,
		"coverage_pct", coverage.CoveragePercentage,
		"explainability_pct", explainability.ExplainabilityPercentage,
		"avg_latency_ms", latency.AvgRecommendationLatencyMS,
		"p95_latency_ms", latency.P95RecommendationLatencyMS,
		"artifacts", len(result.Artifacts),
	)
	return result, nil
}

func (s *evaluationService) Latest(ctx context.Context) (*types.EvaluationMetric, error) {
	const op = "EvaluationService.Latest"
	row, err := s.metrics.GetLatest(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if row == nil {
		return nil, fault.New(fault.CodeNotFound, op, "no evaluation metrics found", nil)
	}
	return row, nil
}

func (s *evaluationService) History(ctx context.Context, limit int) (*EvaluationHistory, error) {
	const op = "EvaluationService.History"
	if limit <= 0 {
		limit = evaluationHistoryDefaultLimit
	}
	if limit > evaluationHistoryMaxLimit {
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("limit must be at most %d", evaluationHistoryMaxLimit), nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	total, err := s.metrics.Count(dbc)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	runs, err := s.metrics.ListRuns(dbc, limit)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if runs == nil {
		runs = []*types.EvaluationMetric{}
	}
	return &EvaluationHistory{Total: total, Runs: runs}, nil
}

// coverage reports how much of the consenting customer base carries a
// short-window persona, and how many users show classifiable behavior at all.
func (s *evaluationService) coverage(dbc dbctx.Context) (CoverageMetrics, error) {
	consented := true
	total, err := s.users.Count(dbc, repos.UserFilter{
		UserType:      types.UserTypeCustomer,
		ConsentStatus: &consented,
	})
	if err != nil {
		return CoverageMetrics{}, err
	}
	withPersona, err := s.personas.CountDistinctUsers(dbc, s.policy.Windows.Default)
	if err != nil {
		return CoverageMetrics{}, err
	}
	withBehaviors, err := s.features.CountUsersWithBehaviors(dbc, s.policy.Windows.Default)
	if err != nil {
		return CoverageMetrics{}, err
	}

	var pct float64
	if total > 0 {
		pct = round2(float64(withPersona) / float64(total) * 100)
	}
	return CoverageMetrics{
		TotalUsers:         int(total),
		UsersWithPersona:   int(withPersona),
		UsersWithBehaviors: int(withBehaviors),
		CoveragePercentage: pct,
	}, nil
}

func (s *evaluationService) explainability(dbc dbctx.Context) (ExplainabilityMetrics, error) {
	total, err := s.recsRepo.Count(dbc)
	if err != nil {
		return ExplainabilityMetrics{}, err
	}
	withRationale, err := s.recsRepo.CountWithRationale(dbc)
	if err != nil {
		return ExplainabilityMetrics{}, err
	}

	var pct float64
	if total > 0 {
		pct = round2(float64(withRationale) / float64(total) * 100)
	}
	return ExplainabilityMetrics{
		TotalRecommendations:         int(total),
		RecommendationsWithRationale: int(withRationale),
		ExplainabilityPercentage:     pct,
	}, nil
}

func (s *evaluationService) latency(dbc dbctx.Context) (LatencyMetrics, error) {
	times, err := s.recsRepo.ListGenerationTimes(dbc)
	if err != nil {
		return LatencyMetrics{}, err
	}
	if len(times) == 0 {
		return LatencyMetrics{}, nil
	}

	latencies := make([]float64, len(times))
	var sum float64
	for i, ms := range times {
		latencies[i] = float64(ms)
		sum += float64(ms)
	}
	sort.Float64s(latencies)

	return LatencyMetrics{
		AvgRecommendationLatencyMS:      round2(sum / float64(len(latencies))),
		P95RecommendationLatencyMS:      round2(percentile(latencies, 95)),
		TotalRecommendationsWithLatency: len(latencies),
	}, nil
}

// exportArtifacts pushes per-window feature snapshots and the run record to
// the analytics bucket. Failures are logged and never fail the run.
func (s *evaluationService) exportArtifacts(ctx context.Context, runID string, row *types.EvaluationMetric, result *EvaluationResult) {
	if s.artifacts == nil {
		return
	}

	dbc := dbctx.Context{Ctx: ctx}
	for _, window := range AnalysisWindows {
		snapshots, err := s.features.ListByWindow(dbc, window)
		if err != nil {
			s.log.Warn("Artifact export skipped; feature query failed", "window_days", window, "error", err)
			continue
		}
		key := fmt.Sprintf("features/user_features_%dd_%s.json", window, runID)
		s.exportOne(ctx, key, snapshots, result)
	}
	s.exportOne(ctx, fmt.Sprintf("eval/evaluation_%s.json", runID), row, result)
}

func (s *evaluationService) exportOne(ctx context.Context, key string, payload any, result *EvaluationResult) {
	if err := s.artifacts.UploadJSON(ctx, key, payload); err != nil {
		s.log.Warn("Artifact upload failed", "key", key, "error", err)
		return
	}
	result.Artifacts = append(result.Artifacts, key)
	url, err := s.artifacts.SignedURL(key, artifactURLTTL)
	if err != nil {
		s.log.Warn("Artifact URL signing failed", "key", key, "error", err)
		return
	}
	result.DownloadURLs[key] = url
}

// percentile interpolates linearly between closest ranks; input must be
// sorted ascending.
func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
