package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	"github.com/VictorGoic0/SpendSense/internal/data/repos/testutil"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/domain/recs"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/llm"
)

type fakeProvider struct {
	result llm.GenerationResult
	err    error

	calls       int
	lastPersona string
	lastPrompt  string
	lastContext map[string]any
}

func (f *fakeProvider) GenerateRecommendations(_ context.Context, personaType, promptTemplate string, userContext map[string]any) (llm.GenerationResult, error) {
	f.calls++
	f.lastPersona = personaType
	f.lastPrompt = promptTemplate
	f.lastContext = userContext
	if f.err != nil {
		return llm.GenerationResult{}, f.err
	}
	return f.result, nil
}

func newRecommendationService(t *testing.T, tx *gorm.DB, provider llm.Client) RecommendationService {
	t.Helper()
	t.Setenv("PROMPTS_DIR", "")
	log := testutil.Logger(t)
	policy := config.DefaultPolicy()
	builder := NewContextBuilder(
		tx, log, policy,
		repos.NewUserRepo(tx, log),
		repos.NewFeatureSnapshotRepo(tx, log),
		repos.NewPersonaAssignmentRepo(tx, log),
		repos.NewAccountRepo(tx, log),
		repos.NewTransactionRepo(tx, log),
		repos.NewLiabilityRepo(tx, log),
	)
	return NewRecommendationService(
		tx, log, policy,
		repos.NewUserRepo(tx, log),
		repos.NewRecommendationRepo(tx, log),
		repos.NewOperatorActionRepo(tx, log),
		builder,
		NewPromptStore(log),
		provider,
		nil,
	)
}

func generationFixture() llm.GenerationResult {
	return llm.GenerationResult{
		Items: []llm.Item{
			{
				Title:     "Grow your emergency fund",
				Content:   "You can build momentum by moving a small amount into savings every payday.",
				Rationale: "Savings balance grew 5% over the window.",
			},
			{
				Title:     "Review recurring charges",
				Content:   "Canceling that bad habit subscription frees up cash each month",
				Rationale: "Three recurring merchants detected.",
			},
		},
		Model:            "gpt-4o-mini",
		InputTokens:      820,
		OutputTokens:     240,
		TotalTokens:      1060,
		EstimatedCostUSD: 0.000267,
	}
}

func TestGenerateRecommendations(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	provider := &fakeProvider{result: generationFixture()}
	svc := newRecommendationService(t, tx, provider)

	testutil.SeedUser(t, ctx, tx, "user_rec", true)
	testutil.SeedAccount(t, ctx, tx, "user_rec", "acct_chk_7001", "checking", 2400)
	testutil.SeedFeatureSnapshot(t, ctx, tx, "user_rec", 30)
	testutil.SeedPersona(t, ctx, tx, "user_rec", 30, types.PersonaSavingsBuilder)

	out, err := svc.Generate(ctx, "user_rec", 30, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Cached || out.Count != 2 || len(out.Recommendations) != 2 {
		t.Fatalf("out=%+v", out)
	}
	if out.PersonaType != types.PersonaSavingsBuilder {
		t.Fatalf("persona=%s", out.PersonaType)
	}
	for _, row := range out.Recommendations {
		if !strings.HasPrefix(row.RecommendationID, "rec_") || len(row.RecommendationID) != 20 {
			t.Fatalf("id=%q", row.RecommendationID)
		}
		if row.Status != types.RecStatusPendingApproval || row.ContentType != types.ContentTypeEducation {
			t.Fatalf("row=%+v", row)
		}
		if !strings.HasSuffix(row.Content, MandatoryDisclosure) {
			t.Fatalf("disclosure missing: %q", row.Content)
		}
		if row.ExpiresAt == nil || row.ExpiresAt.Before(time.Now().UTC().AddDate(0, 0, 29)) {
			t.Fatalf("expires_at=%v", row.ExpiresAt)
		}
		meta := types.DecodeRecommendationMetadata(row.Metadata)
		if meta.Model != "gpt-4o-mini" {
			t.Fatalf("metadata=%+v", meta)
		}
	}

	// The second item carries a forbidden phrase; its warning is persisted.
	flagged := types.DecodeRecommendationMetadata(out.Recommendations[1].Metadata)
	foundCritical := false
	for _, w := range flagged.ValidationWarnings {
		if w.Type == types.WarningForbiddenPhrase && w.IsCritical() {
			foundCritical = true
		}
	}
	if !foundCritical {
		t.Fatalf("warnings=%+v", flagged.ValidationWarnings)
	}

	if provider.calls != 1 || provider.lastPersona != types.PersonaSavingsBuilder {
		t.Fatalf("provider calls=%d persona=%q", provider.calls, provider.lastPersona)
	}
	if !strings.Contains(provider.lastPrompt, "Persona: "+types.PersonaSavingsBuilder) {
		t.Fatalf("prompt=%q", provider.lastPrompt)
	}
	if provider.lastContext["user_id"] != "user_rec" {
		t.Fatalf("context=%v", provider.lastContext)
	}

	// Pending unexpired rows satisfy the next call without a provider hit.
	cached, err := svc.Generate(ctx, "user_rec", 30, false)
	if err != nil {
		t.Fatalf("cached generate: %v", err)
	}
	if !cached.Cached || cached.Count != 2 || cached.GenerationTimeMS != 0 {
		t.Fatalf("cached=%+v", cached)
	}
	if provider.calls != 1 {
		t.Fatalf("provider called on cache hit")
	}

	// force_regenerate skips the cache probe.
	forced, err := svc.Generate(ctx, "user_rec", 30, true)
	if err != nil {
		t.Fatalf("forced generate: %v", err)
	}
	if forced.Cached || provider.calls != 2 {
		t.Fatalf("forced=%+v calls=%d", forced, provider.calls)
	}

	// Expired pending rows no longer satisfy the probe.
	past := time.Now().UTC().Add(-time.Hour)
	if err := tx.Model(&types.Recommendation{}).
		Where("user_id = ?", "user_rec").
		Update("expires_at", past).Error; err != nil {
		t.Fatalf("expire rows: %v", err)
	}
	fresh, err := svc.Generate(ctx, "user_rec", 30, false)
	if err != nil {
		t.Fatalf("post-expiry generate: %v", err)
	}
	if fresh.Cached || provider.calls != 3 {
		t.Fatalf("fresh=%+v calls=%d", fresh, provider.calls)
	}
}

func TestGenerateGates(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	provider := &fakeProvider{result: generationFixture()}
	svc := newRecommendationService(t, tx, provider)

	testutil.SeedUser(t, ctx, tx, "user_noconsent", false)
	testutil.SeedUser(t, ctx, tx, "user_nopersona", true)
	testutil.SeedFeatureSnapshot(t, ctx, tx, "user_nopersona", 30)

	if _, err := svc.Generate(ctx, "user_ghost", 30, false); !fault.IsCode(err, fault.CodeNotFound) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Generate(ctx, "user_noconsent", 30, false); !fault.IsCode(err, fault.CodeConsentDenied) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Generate(ctx, "user_nopersona", 30, false); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Generate(ctx, "user_nopersona", 9999, false); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("err=%v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider called despite failed gates")
	}
}

func TestGenerateProviderFailure(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	provider := &fakeProvider{err: errors.New("upstream 500")}
	svc := newRecommendationService(t, tx, provider)

	testutil.SeedUser(t, ctx, tx, "user_fail", true)
	testutil.SeedFeatureSnapshot(t, ctx, tx, "user_fail", 30)
	testutil.SeedPersona(t, ctx, tx, "user_fail", 30, types.PersonaHighUtilization)

	if _, err := svc.Generate(ctx, "user_fail", 30, false); !fault.IsCode(err, fault.CodeProviderFailed) {
		t.Fatalf("err=%v", err)
	}

	rows, total, err := svc.List(ctx, "user_fail", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 || total != 0 {
		t.Fatalf("rows persisted after provider failure: %d", total)
	}
}

func TestRecommendationList(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newRecommendationService(t, tx, &fakeProvider{})

	testutil.SeedUser(t, ctx, tx, "user_list", true)
	testutil.SeedRecommendation(t, ctx, tx, "user_list", "rec_list_p1", types.RecStatusPendingApproval)
	testutil.SeedRecommendation(t, ctx, tx, "user_list", "rec_list_p2", types.RecStatusPendingApproval)
	testutil.SeedRecommendation(t, ctx, tx, "user_list", "rec_list_a1", types.RecStatusApproved)

	rows, total, err := svc.List(ctx, "user_list", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 || total != 3 {
		t.Fatalf("rows=%d total=%d", len(rows), total)
	}

	approved, total, err := svc.List(ctx, "user_list", types.RecStatusApproved, 0)
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if len(approved) != 1 || total != 1 || approved[0].RecommendationID != "rec_list_a1" {
		t.Fatalf("approved=%+v total=%d", approved, total)
	}

	none, total, err := svc.List(ctx, "user_list", "", 180)
	if err != nil {
		t.Fatalf("list windowed: %v", err)
	}
	if len(none) != 0 || total != 0 {
		t.Fatalf("windowed=%d total=%d", len(none), total)
	}

	if _, _, err := svc.List(ctx, "user_ghost", "", 0); !fault.IsCode(err, fault.CodeNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestApproveRecommendation(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newRecommendationService(t, tx, &fakeProvider{})
	actions := repos.NewOperatorActionRepo(tx, testutil.Logger(t))

	testutil.SeedUser(t, ctx, tx, "user_appr", true)
	testutil.SeedRecommendation(t, ctx, tx, "user_appr", "rec_appr_1", types.RecStatusPendingApproval)

	row, err := svc.Approve(ctx, "rec_appr_1", "operator_001", "looks good")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if row.Status != types.RecStatusApproved {
		t.Fatalf("status=%s", row.Status)
	}
	if row.ApprovedBy == nil || *row.ApprovedBy != "operator_001" || row.ApprovedAt == nil {
		t.Fatalf("approval stamp=%+v", row)
	}

	trail, err := actions.ListByRecommendation(dbctx.Context{Ctx: ctx}, "rec_appr_1")
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	if len(trail) != 1 || trail[0].ActionType != types.ActionApprove || trail[0].Reason != "looks good" {
		t.Fatalf("trail=%+v", trail)
	}
	if trail[0].UserID != "user_appr" || trail[0].OperatorID != "operator_001" {
		t.Fatalf("trail=%+v", trail[0])
	}

	// Terminal statuses conflict with any further transition.
	if _, err := svc.Approve(ctx, "rec_appr_1", "operator_001", ""); !fault.IsCode(err, fault.CodeConflict) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Approve(ctx, "rec_ghost", "operator_001", ""); !fault.IsCode(err, fault.CodeNotFound) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Approve(ctx, "rec_appr_1", "", ""); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("err=%v", err)
	}
}

func TestOverrideRecommendation(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newRecommendationService(t, tx, &fakeProvider{})
	actions := repos.NewOperatorActionRepo(tx, testutil.Logger(t))

	testutil.SeedUser(t, ctx, tx, "user_ovr", true)
	seeded := testutil.SeedRecommendation(t, ctx, tx, "user_ovr", "rec_ovr_1", types.RecStatusPendingApproval)

	if _, err := svc.Override(ctx, "rec_ovr_1", "operator_001", "no replacement", "", ""); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Override(ctx, "rec_ovr_1", "operator_001", "tone", "", "Stop this bad habit now."); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Override(ctx, "rec_ovr_1", "operator_001", "", "New", ""); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("err=%v", err)
	}

	// Blocked overrides leave the row untouched.
	pending, _, err := svc.List(ctx, "user_ovr", types.RecStatusPendingApproval, 0)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%d err=%v", len(pending), err)
	}

	row, err := svc.Override(ctx, "rec_ovr_1", "operator_001", "softer framing",
		"A plan you control", "You can choose a savings plan that fits your month.")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if row.Status != types.RecStatusOverridden || row.Title != "A plan you control" {
		t.Fatalf("row=%+v", row)
	}
	if row.OverrideReason == nil || *row.OverrideReason != "softer framing" {
		t.Fatalf("reason=%v", row.OverrideReason)
	}
	original := recs.DecodeOriginalContent(row.OriginalContent)
	if original.OriginalTitle != seeded.Title || original.OriginalContent != seeded.Content {
		t.Fatalf("original=%+v", original)
	}
	if row.ApprovedBy == nil || *row.ApprovedBy != "operator_001" {
		t.Fatalf("reviewer stamp missing: %+v", row)
	}

	trail, err := actions.ListByRecommendation(dbctx.Context{Ctx: ctx}, "rec_ovr_1")
	if err != nil || len(trail) != 1 || trail[0].ActionType != types.ActionOverride {
		t.Fatalf("trail=%+v err=%v", trail, err)
	}

	if _, err := svc.Override(ctx, "rec_ovr_1", "operator_001", "again", "Another", ""); !fault.IsCode(err, fault.CodeConflict) {
		t.Fatalf("err=%v", err)
	}
}

func TestRejectRecommendation(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newRecommendationService(t, tx, &fakeProvider{})
	actions := repos.NewOperatorActionRepo(tx, testutil.Logger(t))

	testutil.SeedUser(t, ctx, tx, "user_rej", true)
	testutil.SeedRecommendation(t, ctx, tx, "user_rej", "rec_rej_1", types.RecStatusPendingApproval)
	testutil.SeedRecommendation(t, ctx, tx, "user_rej", "rec_rej_2", types.RecStatusApproved)

	row, err := svc.Reject(ctx, "rec_rej_1", "operator_002", "not appropriate for user")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if row.Status != types.RecStatusRejected {
		t.Fatalf("status=%s", row.Status)
	}
	meta := types.DecodeRecommendationMetadata(row.Metadata)
	if meta.RejectionReason != "not appropriate for user" || meta.RejectedBy != "operator_002" {
		t.Fatalf("metadata=%+v", meta)
	}

	trail, err := actions.ListByRecommendation(dbctx.Context{Ctx: ctx}, "rec_rej_1")
	if err != nil || len(trail) != 1 || trail[0].ActionType != types.ActionReject {
		t.Fatalf("trail=%+v err=%v", trail, err)
	}

	if _, err := svc.Reject(ctx, "rec_rej_2", "operator_002", "already approved"); !fault.IsCode(err, fault.CodeConflict) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Reject(ctx, "rec_rej_1", "operator_002", ""); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("err=%v", err)
	}
}

func TestBulkApprove(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newRecommendationService(t, tx, &fakeProvider{})

	testutil.SeedUser(t, ctx, tx, "user_bulk", true)
	testutil.SeedRecommendation(t, ctx, tx, "user_bulk", "rec_bulk_1", types.RecStatusPendingApproval)
	testutil.SeedRecommendation(t, ctx, tx, "user_bulk", "rec_bulk_2", types.RecStatusPendingApproval)
	testutil.SeedRecommendation(t, ctx, tx, "user_bulk", "rec_bulk_3", types.RecStatusRejected)

	result, err := svc.BulkApprove(ctx, "operator_003",
		[]string{"rec_bulk_1", "rec_bulk_2", "rec_bulk_3", "rec_ghost"})
	if err != nil {
		t.Fatalf("bulk approve: %v", err)
	}
	if result.Approved != 2 || result.Failed != 2 || len(result.Errors) != 2 {
		t.Fatalf("result=%+v", result)
	}

	approved, total, err := svc.List(ctx, "user_bulk", types.RecStatusApproved, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(approved) != 2 || total != 2 {
		t.Fatalf("approved=%d", total)
	}
	for _, row := range approved {
		if row.ApprovedBy == nil || *row.ApprovedBy != "operator_003" {
			t.Fatalf("row=%+v", row)
		}
	}

	empty, err := svc.BulkApprove(ctx, "operator_003", nil)
	if err != nil {
		t.Fatalf("empty bulk: %v", err)
	}
	if empty.Approved != 0 || empty.Failed != 0 || len(empty.Errors) != 0 {
		t.Fatalf("empty=%+v", empty)
	}

	if _, err := svc.BulkApprove(ctx, "", []string{"rec_bulk_1"}); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("err=%v", err)
	}
}
