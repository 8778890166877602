package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	"github.com/VictorGoic0/SpendSense/internal/data/repos/testutil"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
)

func newUserService(t *testing.T, tx *gorm.DB) UserService {
	t.Helper()
	log := testutil.Logger(t)
	return NewUserService(
		tx,
		log,
		config.DefaultPolicy(),
		repos.NewUserRepo(tx, log),
		repos.NewFeatureSnapshotRepo(tx, log),
		repos.NewPersonaAssignmentRepo(tx, log),
		repos.NewRecommendationRepo(tx, log),
	)
}

func TestUserList(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newUserService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_list_a", true)
	testutil.SeedUser(t, ctx, tx, "user_list_b", false)
	op := testutil.SeedUser(t, ctx, tx, "user_list_c", true)
	op.UserType = types.UserTypeOperator
	if err := tx.Save(op).Error; err != nil {
		t.Fatalf("save operator: %v", err)
	}

	testutil.SeedPersona(t, ctx, tx, "user_list_a", 30, types.PersonaHighUtilization)
	testutil.SeedPersona(t, ctx, tx, "user_list_a", 180, types.PersonaSavingsBuilder)

	all, err := svc.List(ctx, repos.UserFilter{}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if all.Total != 3 || len(all.Users) != 3 {
		t.Fatalf("total=%d users=%d", all.Total, len(all.Users))
	}
	if all.Limit != userListDefaultLimit || all.Offset != 0 {
		t.Fatalf("limit=%d offset=%d", all.Limit, all.Offset)
	}
	if all.Users[0].UserID != "user_list_a" || all.Users[1].UserID != "user_list_b" {
		t.Fatalf("order: %s, %s", all.Users[0].UserID, all.Users[1].UserID)
	}
	// Only the short-window label rides along in list view.
	if len(all.Users[0].Personas) != 1 {
		t.Fatalf("personas=%d", len(all.Users[0].Personas))
	}
	if p := all.Users[0].Personas[0]; p.PersonaType != types.PersonaHighUtilization || p.WindowDays != 30 {
		t.Fatalf("persona=%+v", p)
	}
	if len(all.Users[1].Personas) != 0 {
		t.Fatalf("unlabeled user got personas: %+v", all.Users[1].Personas)
	}

	operators, err := svc.List(ctx, repos.UserFilter{UserType: types.UserTypeOperator}, 0, 0)
	if err != nil || operators.Total != 1 || operators.Users[0].UserID != "user_list_c" {
		t.Fatalf("operators=%+v err=%v", operators, err)
	}

	consented := true
	granted, err := svc.List(ctx, repos.UserFilter{ConsentStatus: &consented}, 0, 0)
	if err != nil || granted.Total != 2 {
		t.Fatalf("granted=%+v err=%v", granted, err)
	}

	page, err := svc.List(ctx, repos.UserFilter{}, 1, 1)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.Total != 3 || len(page.Users) != 1 || page.Users[0].UserID != "user_list_b" {
		t.Fatalf("page=%+v", page)
	}

	if _, err := svc.List(ctx, repos.UserFilter{}, userListMaxLimit+1, 0); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("oversized limit err=%v", err)
	}
	if _, err := svc.List(ctx, repos.UserFilter{}, 10, -1); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("negative offset err=%v", err)
	}
}

func TestUserGet(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newUserService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_get_1", true)
	testutil.SeedPersona(t, ctx, tx, "user_get_1", 30, types.PersonaHighUtilization)
	testutil.SeedPersona(t, ctx, tx, "user_get_1", 180, types.PersonaSavingsBuilder)

	detail, err := svc.Get(ctx, "user_get_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.UserID != "user_get_1" || !detail.ConsentStatus {
		t.Fatalf("detail=%+v", detail.User)
	}
	if len(detail.Personas) != 2 {
		t.Fatalf("personas=%d", len(detail.Personas))
	}
	if detail.Personas[0].WindowDays != 30 || detail.Personas[1].WindowDays != 180 {
		t.Fatalf("window order: %d, %d", detail.Personas[0].WindowDays, detail.Personas[1].WindowDays)
	}

	if _, err := svc.Get(ctx, "user_ghost"); !fault.IsCode(err, fault.CodeNotFound) {
		t.Fatalf("ghost err=%v", err)
	}
	if _, err := svc.Get(ctx, "  "); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("blank err=%v", err)
	}
}

func TestUserProfile(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newUserService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_prof", true)
	short := testutil.SeedFeatureSnapshot(t, ctx, tx, "user_prof", 30)
	short.RecurringMerchants = 4
	if err := tx.Save(short).Error; err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	testutil.SeedFeatureSnapshot(t, ctx, tx, "user_prof", 180)
	testutil.SeedPersona(t, ctx, tx, "user_prof", 30, types.PersonaSubscriptionHeavy)
	testutil.SeedPersona(t, ctx, tx, "user_prof", 180, types.PersonaSavingsBuilder)

	profile, err := svc.Profile(ctx, "user_prof", nil)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.UserID != "user_prof" || profile.Email != "user_prof@example.com" || !profile.ConsentStatus {
		t.Fatalf("profile=%+v", profile)
	}
	if len(profile.Features) != 2 {
		t.Fatalf("features=%d", len(profile.Features))
	}
	if profile.Features["30d"] == nil || profile.Features["30d"].RecurringMerchants != 4 {
		t.Fatalf("30d snapshot=%+v", profile.Features["30d"])
	}
	if profile.Features["180d"] == nil {
		t.Fatal("180d snapshot missing")
	}
	if len(profile.Personas) != 2 {
		t.Fatalf("personas=%d", len(profile.Personas))
	}

	window := 30
	filtered, err := svc.Profile(ctx, "user_prof", &window)
	if err != nil {
		t.Fatalf("filtered profile: %v", err)
	}
	if len(filtered.Features) != 1 || filtered.Features["30d"] == nil {
		t.Fatalf("filtered features=%+v", filtered.Features)
	}
	if len(filtered.Personas) != 1 || filtered.Personas[0].PersonaType != types.PersonaSubscriptionHeavy {
		t.Fatalf("filtered personas=%+v", filtered.Personas)
	}

	bad := 500
	if _, err := svc.Profile(ctx, "user_prof", &bad); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("window err=%v", err)
	}
	if _, err := svc.Profile(ctx, "user_ghost", nil); !fault.IsCode(err, fault.CodeNotFound) {
		t.Fatalf("ghost err=%v", err)
	}

	testutil.SeedUser(t, ctx, tx, "user_prof_bare", false)
	bare, err := svc.Profile(ctx, "user_prof_bare", nil)
	if err != nil {
		t.Fatalf("bare profile: %v", err)
	}
	if bare.Features == nil || len(bare.Features) != 0 {
		t.Fatalf("bare features=%+v", bare.Features)
	}
	if bare.Personas == nil || len(bare.Personas) != 0 {
		t.Fatalf("bare personas=%+v", bare.Personas)
	}
}

func TestOperatorDashboard(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newUserService(t, tx)

	testutil.SeedUser(t, ctx, tx, "user_dash_1", true)
	testutil.SeedUser(t, ctx, tx, "user_dash_2", true)
	testutil.SeedUser(t, ctx, tx, "user_dash_3", false)

	testutil.SeedPersona(t, ctx, tx, "user_dash_1", 30, types.PersonaHighUtilization)
	testutil.SeedPersona(t, ctx, tx, "user_dash_2", 30, types.PersonaHighUtilization)
	testutil.SeedPersona(t, ctx, tx, "user_dash_3", 30, types.PersonaSavingsBuilder)
	// Long-window assignments stay out of the distribution.
	testutil.SeedPersona(t, ctx, tx, "user_dash_1", 180, types.PersonaWealthBuilder)

	r1 := testutil.SeedRecommendation(t, ctx, tx, "user_dash_1", "rec_dash_1", types.RecStatusPendingApproval)
	r1.GenerationTimeMS = 1200
	if err := tx.Save(r1).Error; err != nil {
		t.Fatalf("save rec: %v", err)
	}
	r2 := testutil.SeedRecommendation(t, ctx, tx, "user_dash_1", "rec_dash_2", types.RecStatusApproved)
	r2.GenerationTimeMS = 800
	if err := tx.Save(r2).Error; err != nil {
		t.Fatalf("save rec: %v", err)
	}
	// Cache hits store zero latency and are excluded from the average.
	testutil.SeedRecommendation(t, ctx, tx, "user_dash_2", "rec_dash_3", types.RecStatusPendingApproval)

	dash, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.TotalUsers != 3 || dash.UsersWithConsent != 2 {
		t.Fatalf("users=%d consented=%d", dash.TotalUsers, dash.UsersWithConsent)
	}
	if dash.PersonaDistribution[types.PersonaHighUtilization] != 2 ||
		dash.PersonaDistribution[types.PersonaSavingsBuilder] != 1 {
		t.Fatalf("distribution=%+v", dash.PersonaDistribution)
	}
	if dash.PersonaDistribution[types.PersonaWealthBuilder] != 0 {
		t.Fatalf("long-window assignment counted: %+v", dash.PersonaDistribution)
	}
	if dash.Recommendations[types.RecStatusPendingApproval] != 2 ||
		dash.Recommendations[types.RecStatusApproved] != 1 {
		t.Fatalf("recommendations=%+v", dash.Recommendations)
	}
	if dash.Metrics.AvgLatencyMS != 1000 {
		t.Fatalf("avg latency=%v", dash.Metrics.AvgLatencyMS)
	}
}

func TestOperatorDashboardEmpty(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newUserService(t, tx)

	dash, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.TotalUsers != 0 || dash.UsersWithConsent != 0 {
		t.Fatalf("users=%d consented=%d", dash.TotalUsers, dash.UsersWithConsent)
	}
	if len(dash.PersonaDistribution) != 0 || len(dash.Recommendations) != 0 {
		t.Fatalf("distribution=%+v recommendations=%+v", dash.PersonaDistribution, dash.Recommendations)
	}
	if dash.Metrics.AvgLatencyMS != 0 {
		t.Fatalf("avg latency=%v", dash.Metrics.AvgLatencyMS)
	}
}
