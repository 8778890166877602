package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/config"
	"github.com/VictorGoic0/SpendSense/internal/data/dberr"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

const (
	userListDefaultLimit = 25
	userListMaxLimit     = 100
)

// PersonaSummary is the list-view slice of an assignment. The full reasoning
// trace stays on the detail views.
type PersonaSummary struct {
	PersonaType     string    `json:"persona_type"`
	ConfidenceScore float64   `json:"confidence_score"`
	AssignedAt      time.Time `json:"assigned_at"`
	WindowDays      int       `json:"window_days"`
}

// UserListItem pairs a user row with its short-window persona label.
type UserListItem struct {
	*types.User
	Personas []PersonaSummary `json:"personas"`
}

type UserList struct {
	Users  []*UserListItem `json:"users"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// UserDetail is one user with every stored assignment, reasoning included.
type UserDetail struct {
	*types.User
	Personas []*types.PersonaAssignment `json:"personas"`
}

// UserProfile is the profile view: identity plus signal snapshots keyed by
// window ("30d", "180d") and the assignments derived from them.
type UserProfile struct {
	UserID        string                            `json:"user_id"`
	FullName      string                            `json:"full_name"`
	Email         string                            `json:"email"`
	ConsentStatus bool                              `json:"consent_status"`
	Features      map[string]*types.FeatureSnapshot `json:"features"`
	Personas      []*types.PersonaAssignment        `json:"personas"`
}

type DashboardMetrics struct {
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// OperatorDashboard aggregates portfolio counts for the review console.
type OperatorDashboard struct {
	TotalUsers          int64            `json:"total_users"`
	UsersWithConsent    int64            `json:"users_with_consent"`
	PersonaDistribution map[string]int64 `json:"persona_distribution"`
	Recommendations     map[string]int64 `json:"recommendations"`
	Metrics             DashboardMetrics `json:"metrics"`
}

type UserService interface {
	List(ctx context.Context, filter repos.UserFilter, limit, offset int) (*UserList, error)
	Get(ctx context.Context, userID string) (*UserDetail, error)
	// Profile returns features and personas for both windows, or for one
	// window when the filter is set.
	Profile(ctx context.Context, userID string, window *int) (*UserProfile, error)
	Dashboard(ctx context.Context) (*OperatorDashboard, error)
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	policy   config.Policy
	users    repos.UserRepo
	features repos.FeatureSnapshotRepo
	personas repos.PersonaAssignmentRepo
	recsRepo repos.RecommendationRepo
}

func NewUserService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	users repos.UserRepo,
	features repos.FeatureSnapshotRepo,
	personas repos.PersonaAssignmentRepo,
	recsRepo repos.RecommendationRepo,
) UserService {
	return &userService{
		db:       db,
		log:      baseLog.With("service", "UserService"),
		policy:   policy,
		users:    users,
		features: features,
		personas: personas,
		recsRepo: recsRepo,
	}
}

func (s *userService) List(ctx context.Context, filter repos.UserFilter, limit, offset int) (*UserList, error) {
	const op = "UserService.List"
	if limit <= 0 {
		limit = userListDefaultLimit
	}
	if limit > userListMaxLimit {
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("limit must be at most %d", userListMaxLimit), nil)
	}
	if offset < 0 {
		return nil, fault.New(fault.CodeValidation, op, "offset must be non-negative", nil)
	}
	filter.UserType = strings.TrimSpace(filter.UserType)

	dbc := dbctx.Context{Ctx: ctx}
	total, err := s.users.Count(dbc, filter)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	rows, err := s.users.List(dbc, filter, limit, offset)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}

	ids := make([]string, 0, len(rows))
	for _, u := range rows {
		ids = append(ids, u.UserID)
	}
	assignments, err := s.personas.ListByUsersWindow(dbc, ids, s.policy.Windows.Default)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	byUser := make(map[string]*types.PersonaAssignment, len(assignments))
	for _, a := range assignments {
		byUser[a.UserID] = a
	}

	items := make([]*UserListItem, 0, len(rows))
	for _, u := range rows {
		item := &UserListItem{User: u, Personas: []PersonaSummary{}}
		if a := byUser[u.UserID]; a != nil {
			item.Personas = append(item.Personas, PersonaSummary{
				PersonaType:     a.PersonaType,
				ConfidenceScore: a.ConfidenceScore,
				AssignedAt:      a.AssignedAt,
				WindowDays:      a.WindowDays,
			})
		}
		items = append(items, item)
	}
	return &UserList{Users: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *userService) Get(ctx context.Context, userID string) (*UserDetail, error) {
	const op = "UserService.Get"
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing user_id", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.users.GetByID(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if u == nil {
		return nil, fault.New(fault.CodeNotFound, op, fmt.Sprintf("user %s not found", userID), nil)
	}
	assignments, err := s.personas.ListByUser(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if assignments == nil {
		assignments = []*types.PersonaAssignment{}
	}
	return &UserDetail{User: u, Personas: assignments}, nil
}

func (s *userService) Profile(ctx context.Context, userID string, window *int) (*UserProfile, error) {
	const op = "UserService.Profile"
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing user_id", nil)
	}
	if window != nil && (*window < s.policy.Windows.Min || *window > s.policy.Windows.Max) {
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("window must be between %d and %d days", s.policy.Windows.Min, s.policy.Windows.Max), nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.users.GetByID(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if u == nil {
		return nil, fault.New(fault.CodeNotFound, op, fmt.Sprintf("user %s not found", userID), nil)
	}

	snapshots, err := s.features.ListByUser(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	assignments, err := s.personas.ListByUser(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}

	features := make(map[string]*types.FeatureSnapshot, len(snapshots))
	for _, snap := range snapshots {
		if window != nil && snap.WindowDays != *window {
			continue
		}
		features[fmt.Sprintf("%dd", snap.WindowDays)] = snap
	}
	kept := make([]*types.PersonaAssignment, 0, len(assignments))
	for _, a := range assignments {
		if window != nil && a.WindowDays != *window {
			continue
		}
		kept = append(kept, a)
	}

	return &UserProfile{
		UserID:        u.UserID,
		FullName:      u.FullName,
		Email:         u.Email,
		ConsentStatus: u.ConsentStatus,
		Features:      features,
		Personas:      kept,
	}, nil
}

// Dashboard reports user totals, the short-window persona distribution, the
// recommendation status breakdown, and average generation latency over fresh
// generations.
func (s *userService) Dashboard(ctx context.Context) (*OperatorDashboard, error) {
	const op = "UserService.Dashboard"
	dbc := dbctx.Context{Ctx: ctx}

	totalUsers, err := s.users.Count(dbc, repos.UserFilter{})
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	consented := true
	withConsent, err := s.users.Count(dbc, repos.UserFilter{ConsentStatus: &consented})
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	distribution, err := s.personas.CountByType(dbc, s.policy.Windows.Default)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	byStatus, err := s.recsRepo.CountByStatus(dbc)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	times, err := s.recsRepo.ListGenerationTimes(dbc)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}

	var avgLatency float64
	if len(times) > 0 {
		var sum int
		for _, ms := range times {
			sum += ms
		}
		avgLatency = round2(float64(sum) / float64(len(times)))
	}

	return &OperatorDashboard{
		TotalUsers:          totalUsers,
		UsersWithConsent:    withConsent,
		PersonaDistribution: distribution,
		Recommendations:     byStatus,
		Metrics:             DashboardMetrics{AvgLatencyMS: avgLatency},
	}, nil
}
