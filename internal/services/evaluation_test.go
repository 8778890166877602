package services

import (
	"context"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	"github.com/VictorGoic0/SpendSense/internal/data/repos/testutil"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
)

func newEvaluationService(t *testing.T, tx *gorm.DB) EvaluationService {
	t.Helper()
	log := testutil.Logger(t)
	return NewEvaluationService(
		tx,
		log,
		config.DefaultPolicy(),
		repos.NewUserRepo(tx, log),
		repos.NewFeatureSnapshotRepo(tx, log),
		repos.NewPersonaAssignmentRepo(tx, log),
		repos.NewRecommendationRepo(tx, log),
		repos.NewEvaluationMetricRepo(tx, log),
		nil,
	)
}

func TestEvaluationRun(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	svc := newEvaluationService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_eval_1", true)
	testutil.SeedUser(t, ctx, tx, "user_eval_2", true)
	testutil.SeedUser(t, ctx, tx, "user_eval_3", true)
	testutil.SeedUser(t, ctx, tx, "user_eval_4", false)

	testutil.SeedPersona(t, ctx, tx, "user_eval_1", 30, types.PersonaHighUtilization)
	testutil.SeedPersona(t, ctx, tx, "user_eval_2", 30, types.PersonaSavingsBuilder)
	testutil.SeedPersona(t, ctx, tx, "user_eval_1", 180, types.PersonaWealthBuilder)

	snap := testutil.SeedFeatureSnapshot(t, ctx, tx, "user_eval_1", 30)
	snap.RecurringMerchants = 4
	if err := tx.Save(snap).Error; err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	// Zero-signal snapshot does not count as classifiable behavior.
	testutil.SeedFeatureSnapshot(t, ctx, tx, "user_eval_2", 30)

	rec1 := testutil.SeedRecommendation(t, ctx, tx, "user_eval_1", "rec_eval_1", types.RecStatusPendingApproval)
	rec1.GenerationTimeMS = 1000
	if err := tx.Save(rec1).Error; err != nil {
		t.Fatalf("save recommendation: %v", err)
	}
	rec2 := testutil.SeedRecommendation(t, ctx, tx, "user_eval_2", "rec_eval_2", types.RecStatusApproved)
	rec2.Rationale = ""
	if err := tx.Save(rec2).Error; err != nil {
		t.Fatalf("save recommendation: %v", err)
	}
	rec3 := testutil.SeedRecommendation(t, ctx, tx, "user_eval_2", "rec_eval_3", types.RecStatusPendingApproval)
	rec3.GenerationTimeMS = 500
	if err := tx.Save(rec3).Error; err != nil {
		t.Fatalf("save recommendation: %v", err)
	}

	res, err := svc.Run(ctx, "eval_run_test")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID != "eval_run_test" {
		t.Fatalf("run id = %q, want eval_run_test", res.RunID)
	}

	m := res.Metrics
	wantCoverage := CoverageMetrics{
		TotalUsers:         3,
		UsersWithPersona:   2,
		UsersWithBehaviors: 1,
		CoveragePercentage: 66.67,
	}
	if m.Coverage != wantCoverage {
		t.Errorf("coverage = %+v, want %+v", m.Coverage, wantCoverage)
	}
	wantExplain := ExplainabilityMetrics{
		TotalRecommendations:         3,
		RecommendationsWithRationale: 2,
		ExplainabilityPercentage:     66.67,
	}
	if m.Explainability != wantExplain {
		t.Errorf("explainability = %+v, want %+v", m.Explainability, wantExplain)
	}
	wantLatency := LatencyMetrics{
		AvgRecommendationLatencyMS:      750,
		P95RecommendationLatencyMS:      975,
		TotalRecommendationsWithLatency: 2,
	}
	if m.Latency != wantLatency {
		t.Errorf("latency = %+v, want %+v", m.Latency, wantLatency)
	}
	if m.Auditability.AuditabilityPercentage != 100.0 || m.Auditability.RecommendationsWithTraces != 3 {
		t.Errorf("auditability = %+v", m.Auditability)
	}
	if m.PersonaDistribution30d[types.PersonaHighUtilization] != 1 ||
		m.PersonaDistribution30d[types.PersonaSavingsBuilder] != 1 ||
		len(m.PersonaDistribution30d) != 2 {
		t.Errorf("30d distribution = %v", m.PersonaDistribution30d)
	}
	if m.PersonaDistribution180d[types.PersonaWealthBuilder] != 1 || len(m.PersonaDistribution180d) != 1 {
		t.Errorf("180d distribution = %v", m.PersonaDistribution180d)
	}
	if m.RecommendationStatus[types.RecStatusPendingApproval] != 2 ||
		m.RecommendationStatus[types.RecStatusApproved] != 1 {
		t.Errorf("status breakdown = %v", m.RecommendationStatus)
	}

	// No bucket configured, so nothing is exported.
	if len(res.Artifacts) != 0 || len(res.DownloadURLs) != 0 {
		t.Errorf("artifacts = %v, urls = %v, want none", res.Artifacts, res.DownloadURLs)
	}

	row, err := svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if row.RunID != "eval_run_test" {
		t.Fatalf("persisted run id = %q", row.RunID)
	}
	if row.CoveragePercentage != 66.67 || row.P95RecommendationLatencyMS != 975 {
		t.Errorf("persisted row = coverage %.2f p95 %.2f", row.CoveragePercentage, row.P95RecommendationLatencyMS)
	}
	if row.RecommendationsWRationale != 2 || row.AuditabilityPercentage != 100.0 {
		t.Errorf("persisted row = rationale %d auditability %.1f",
			row.RecommendationsWRationale, row.AuditabilityPercentage)
	}
	details := types.DecodeEvaluationDetails(row.Details)
	if details.PersonaDistribution30d[types.PersonaHighUtilization] != 1 {
		t.Errorf("persisted 30d distribution = %v", details.PersonaDistribution30d)
	}
	if details.RecommendationStatus[types.RecStatusApproved] != 1 {
		t.Errorf("persisted status breakdown = %v", details.RecommendationStatus)
	}
}

func TestEvaluationRunEmpty(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	svc := newEvaluationService(t, tx)

	res, err := svc.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(res.RunID, "eval_") {
		t.Fatalf("generated run id = %q", res.RunID)
	}

	m := res.Metrics
	if m.Coverage.TotalUsers != 0 || m.Coverage.CoveragePercentage != 0 {
		t.Errorf("coverage = %+v, want zeros", m.Coverage)
	}
	if m.Explainability.ExplainabilityPercentage != 0 {
		t.Errorf("explainability = %+v, want zeros", m.Explainability)
	}
	if m.Latency.AvgRecommendationLatencyMS != 0 || m.Latency.TotalRecommendationsWithLatency != 0 {
		t.Errorf("latency = %+v, want zeros", m.Latency)
	}
	// Auditability holds at 100 even over an empty base.
	if m.Auditability.AuditabilityPercentage != 100.0 {
		t.Errorf("auditability = %+v", m.Auditability)
	}
	if len(m.PersonaDistribution30d) != 0 || len(m.RecommendationStatus) != 0 {
		t.Errorf("distributions not empty: %v %v", m.PersonaDistribution30d, m.RecommendationStatus)
	}

	row, err := svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest after empty run: %v", err)
	}
	if row.RunID != res.RunID {
		t.Fatalf("persisted run id = %q, want %q", row.RunID, res.RunID)
	}
}

func TestEvaluationLatestAndHistory(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	svc := newEvaluationService(t, tx)

	if _, err := svc.Latest(ctx); !fault.IsCode(err, fault.CodeNotFound) {
		t.Fatalf("Latest on empty table: %v, want not_found", err)
	}

	if _, err := svc.Run(ctx, "eval_hist_1"); err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	if _, err := svc.Run(ctx, "eval_hist_2"); err != nil {
		t.Fatalf("Run 2: %v", err)
	}

	latest, err := svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.RunID != "eval_hist_2" {
		t.Fatalf("latest run = %q, want eval_hist_2", latest.RunID)
	}

	hist, err := svc.History(ctx, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if hist.Total != 2 || len(hist.Runs) != 2 {
		t.Fatalf("history total = %d runs = %d", hist.Total, len(hist.Runs))
	}
	if hist.Runs[0].RunID != "eval_hist_2" {
		t.Errorf("history order: first = %q, want newest", hist.Runs[0].RunID)
	}

	page, err := svc.History(ctx, 1)
	if err != nil {
		t.Fatalf("History limit 1: %v", err)
	}
	if page.Total != 2 || len(page.Runs) != 1 {
		t.Fatalf("paged history total = %d runs = %d", page.Total, len(page.Runs))
	}

	if _, err := svc.History(ctx, evaluationHistoryMaxLimit+1); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("oversized history limit: %v, want validation", err)
	}
}

func TestPercentile(t *testing.T) {
	cases := []struct {
		name   string
		sorted []float64
		pct    float64
		want   float64
	}{
		{"empty", nil, 95, 0},
		{"single", []float64{42}, 95, 42},
		{"pair", []float64{500, 1000}, 95, 975},
		{"median", []float64{1, 2, 3, 4}, 50, 2.5},
		{"exact rank", []float64{10, 20, 30, 40, 50}, 50, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentile(tc.sorted, tc.pct); got != tc.want {
				t.Fatalf("percentile(%v, %v) = %v, want %v", tc.sorted, tc.pct, got, tc.want)
			}
		})
	}
}
