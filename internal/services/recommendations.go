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
	"github.com/VictorGoic0/SpendSense/internal/domain/recs"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/llm"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/platform/redislock"
)

const (
	// recommendationListLimit caps review listings per request.
	recommendationListLimit = 50

	// generationLockTTL outlives the provider timeout so a crashed holder
	// cannot wedge the pair for long.
	generationLockTTL = 60 * time.Second
)

// GenerationResponse is the generation envelope. A cache hit reports the
// stored rows with zero elapsed time.
type GenerationResponse struct {
	UserID           string                  `json:"user_id"`
	WindowDays       int                     `json:"window_days"`
	PersonaType      string                  `json:"persona_type"`
	Recommendations  []*types.Recommendation `json:"recommendations"`
	Count            int                     `json:"count"`
	GenerationTimeMS int                     `json:"generation_time_ms"`
	Cached           bool                    `json:"cached"`
}

// BulkApprovalResult reports per-id outcomes of a bulk approval. Failures
// carry one message per id; the successful subset commits together.
type BulkApprovalResult struct {
	Approved int      `json:"approved"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}

// RecommendationService runs the generation pipeline and the operator review
// actions. Every review decision lands an audit row in the same transaction
// as the status change.
type RecommendationService interface {
	Generate(ctx context.Context, userID string, windowDays int, forceRegenerate bool) (*GenerationResponse, error)
	List(ctx context.Context, userID string, status string, windowDays int) ([]*types.Recommendation, int64, error)
	Approve(ctx context.Context, recommendationID, operatorID, notes string) (*types.Recommendation, error)
	Override(ctx context.Context, recommendationID, operatorID, reason, newTitle, newContent string) (*types.Recommendation, error)
	Reject(ctx context.Context, recommendationID, operatorID, reason string) (*types.Recommendation, error)
	BulkApprove(ctx context.Context, operatorID string, recommendationIDs []string) (*BulkApprovalResult, error)
}

type recommendationService struct {
	db       *gorm.DB
	log      *logger.Logger
	policy   config.Policy
	users    repos.UserRepo
	recsRepo repos.RecommendationRepo
	actions  repos.OperatorActionRepo
	builder  ContextBuilder
	prompts  PromptStore
	provider llm.Client
	lock     redislock.Locker
}

func NewRecommendationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	users repos.UserRepo,
	recsRepo repos.RecommendationRepo,
	actions repos.OperatorActionRepo,
	builder ContextBuilder,
	prompts PromptStore,
	provider llm.Client,
	lock redislock.Locker,
) RecommendationService {
	return &recommendationService{
		db:       db,
		log:      baseLog.With("service", "RecommendationService"),
		policy:   policy,
		users:    users,
		recsRepo: recsRepo,
		actions:  actions,
		builder:  builder,
		prompts:  prompts,
		provider: provider,
		lock:     lock,
	}
}

// Generate runs the pipeline: consent gate, cache probe, persona gate,
// context build, provider call, tone screening, persist. The provider is
// called at most once; a failed call persists nothing.
func (s *recommendationService) Generate(ctx context.Context, userID string, windowDays int, forceRegenerate bool) (*GenerationResponse, error) {
	const op = "RecommendationService.Generate"
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing user_id", nil)
	}
	if windowDays < s.policy.Windows.Min || windowDays > s.policy.Windows.Max {
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("window_days must be between %d and %d", s.policy.Windows.Min, s.policy.Windows.Max), nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.users.GetByID(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if u == nil {
		return nil, fault.New(fault.CodeNotFound, op, fmt.Sprintf("user %s not found", userID), nil)
	}
	if !u.ConsentStatus {
		return nil, fault.New(fault.CodeConsentDenied, op,
			fmt.Sprintf("user %s has not granted consent for recommendations", userID), nil)
	}

	if !forceRegenerate {
		cached, err := s.recsRepo.ListPendingUnexpired(dbc, userID, windowDays, time.Now().UTC())
		if err != nil {
			return nil, dberr.MapError(op, err)
		}
		if len(cached) > 0 {
			s.log.Info("Returning cached recommendations",
				"user_id", userID,
				"window_days", windowDays,
				"count", len(cached),
			)
			return &GenerationResponse{
				UserID:          userID,
				WindowDays:      windowDays,
				PersonaType:     cached[0].PersonaType,
				Recommendations: cached,
				Count:           len(cached),
				Cached:          true,
			}, nil
		}
	}

	release, acquired, lockErr := redislock.Acquire(ctx, s.lock,
		fmt.Sprintf("recgen:%s:%d", userID, windowDays), generationLockTTL)
	switch {
	case lockErr != nil:
		s.log.Warn("Generation lock unavailable, continuing unlocked", "error", lockErr.Error())
	case !acquired:
		return nil, fault.New(fault.CodeConflict, op,
			fmt.Sprintf("generation already running for user %s, window %dd", userID, windowDays), nil)
	default:
		defer release()
	}

	userContext, err := s.builder.Build(ctx, userID, windowDays)
	if err != nil {
		return nil, err
	}
	if userContext.PersonaType == nil {
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("no persona assigned for user %s with window %dd, assign a persona first", userID, windowDays), nil)
	}
	personaType := *userContext.PersonaType
	if err := userContext.Validate(); err != nil {
		return nil, err
	}

	tmpl, err := s.prompts.Get(personaType)
	if err != nil {
		return nil, err
	}
	contextMap, err := userContext.AsMap()
	if err != nil {
		return nil, fault.Wrap(fault.CodeInternal, op, err)
	}

	start := time.Now()
	generated, err := s.provider.GenerateRecommendations(ctx, personaType, tmpl, contextMap)
	if err != nil {
		return nil, fault.New(fault.CodeProviderFailed, op, "recommendation generation failed", err)
	}
	elapsedMS := int(time.Since(start).Milliseconds())

	s.log.Info("Generated recommendations",
		"user_id", userID,
		"persona_type", personaType,
		"model", generated.Model,
		"items", len(generated.Items),
		"input_tokens", generated.InputTokens,
		"output_tokens", generated.OutputTokens,
		"total_tokens", generated.TotalTokens,
		"estimated_cost_usd", generated.EstimatedCostUSD,
		"duration_ms", elapsedMS,
	)

	now := time.Now().UTC()
	expiresAt := now.AddDate(0, 0, s.policy.Recommendations.ExpiryDays)
	rows := make([]*types.Recommendation, 0, len(generated.Items))
	for _, item := range generated.Items {
		screening := ValidateTone(item.Content, s.policy.Guardrails)
		if len(screening.Warnings) > 0 {
			s.log.Warn("Tone screening flagged generated content",
				"user_id", userID,
				"title", item.Title,
				"warnings", len(screening.Warnings),
			)
		}
		expiry := expiresAt
		rows = append(rows, &types.Recommendation{
			RecommendationID: recs.NewRecommendationID(),
			UserID:           userID,
			PersonaType:      personaType,
			WindowDays:       windowDays,
			ContentType:      types.ContentTypeEducation,
			Title:            item.Title,
			Content:          AppendDisclosure(item.Content),
			Rationale:        item.Rationale,
			Status:           types.RecStatusPendingApproval,
			Metadata: types.EncodeRecommendationMetadata(types.RecommendationMetadata{
				Model:              generated.Model,
				ValidationWarnings: screening.Warnings,
			}),
			GeneratedAt:      now,
			GenerationTimeMS: elapsedMS,
			ExpiresAt:        &expiry,
		})
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.recsRepo.CreateBatch(dbctx.Context{Ctx: ctx, Tx: tx}, rows)
	}); err != nil {
		return nil, dberr.MapError(op, err)
	}

	return &GenerationResponse{
		UserID:           userID,
		WindowDays:       windowDays,
		PersonaType:      personaType,
		Recommendations:  rows,
		Count:            len(rows),
		GenerationTimeMS: elapsedMS,
	}, nil
}

// List returns the newest recommendations for a user plus the unlimited
// total. Unknown status values simply match nothing.
func (s *recommendationService) List(ctx context.Context, userID string, status string, windowDays int) ([]*types.Recommendation, int64, error) {
	const op = "RecommendationService.List"
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, 0, fault.New(fault.CodeValidation, op, "missing user_id", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.users.GetByID(dbc, userID)
	if err != nil {
		return nil, 0, dberr.MapError(op, err)
	}
	if u == nil {
		return nil, 0, fault.New(fault.CodeNotFound, op, fmt.Sprintf("user %s not found", userID), nil)
	}

	status = strings.TrimSpace(status)
	total, err := s.recsRepo.CountByUser(dbc, userID, status, windowDays)
	if err != nil {
		return nil, 0, dberr.MapError(op, err)
	}
	rows, err := s.recsRepo.ListByUser(dbc, userID, status, windowDays, recommendationListLimit, 0)
	if err != nil {
		return nil, 0, dberr.MapError(op, err)
	}
	return rows, total, nil
}

func (s *recommendationService) Approve(ctx context.Context, recommendationID, operatorID, notes string) (*types.Recommendation, error) {
	const op = "RecommendationService.Approve"
	recommendationID, operatorID, err := reviewIdentifiers(op, recommendationID, operatorID)
	if err != nil {
		return nil, err
	}

	var updated *types.Recommendation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row, err := s.requirePending(dbc, op, recommendationID, types.RecStatusApproved)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		row.Status = types.RecStatusApproved
		row.ApprovedBy = &operatorID
		row.ApprovedAt = &now
		if err := s.recsRepo.Update(dbc, row); err != nil {
			return dberr.MapError(op, err)
		}
		if err := s.appendAction(dbc, op, row, operatorID, types.ActionApprove, notes, now); err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Recommendation approved",
		"recommendation_id", recommendationID,
		"operator_id", operatorID,
	)
	return updated, nil
}

// Override replaces the generated text with operator copy. The replacement
// content must itself pass tone screening: critical findings block.
func (s *recommendationService) Override(ctx context.Context, recommendationID, operatorID, reason, newTitle, newContent string) (*types.Recommendation, error) {
	const op = "RecommendationService.Override"
	recommendationID, operatorID, err := reviewIdentifiers(op, recommendationID, operatorID)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing reason", nil)
	}
	newTitle = strings.TrimSpace(newTitle)
	newContent = strings.TrimSpace(newContent)
	if newTitle == "" && newContent == "" {
		return nil, fault.New(fault.CodeValidation, op, "override requires new_title or new_content", nil)
	}
	if newContent != "" {
		screening := ValidateTone(newContent, s.policy.Guardrails)
		if screening.HasCritical() {
			return nil, fault.New(fault.CodeValidation, op,
				fmt.Sprintf("replacement content failed tone validation: %s", criticalMessages(screening.Warnings)), nil)
		}
	}

	var updated *types.Recommendation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row, err := s.requirePending(dbc, op, recommendationID, types.RecStatusOverridden)
		if err != nil {
			return err
		}
		row.OriginalContent = recs.EncodeOriginalContent(recs.OriginalContent{
			OriginalTitle:     row.Title,
			OriginalContent:   row.Content,
			OriginalRationale: row.Rationale,
		})
		if newTitle != "" {
			row.Title = newTitle
		}
		if newContent != "" {
			row.Content = newContent
		}
		now := time.Now().UTC()
		row.Status = types.RecStatusOverridden
		row.OverrideReason = &reason
		row.ApprovedBy = &operatorID
		row.ApprovedAt = &now
		if err := s.recsRepo.Update(dbc, row); err != nil {
			return dberr.MapError(op, err)
		}
		if err := s.appendAction(dbc, op, row, operatorID, types.ActionOverride, reason, now); err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Recommendation overridden",
		"recommendation_id", recommendationID,
		"operator_id", operatorID,
	)
	return updated, nil
}

func (s *recommendationService) Reject(ctx context.Context, recommendationID, operatorID, reason string) (*types.Recommendation, error) {
	const op = "RecommendationService.Reject"
	recommendationID, operatorID, err := reviewIdentifiers(op, recommendationID, operatorID)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing reason", nil)
	}

	var updated *types.Recommendation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row, err := s.requirePending(dbc, op, recommendationID, types.RecStatusRejected)
		if err != nil {
			return err
		}
		meta := types.DecodeRecommendationMetadata(row.Metadata)
		meta.RejectionReason = reason
		meta.RejectedBy = operatorID
		row.Metadata = types.EncodeRecommendationMetadata(meta)
		now := time.Now().UTC()
		row.Status = types.RecStatusRejected
		if err := s.recsRepo.Update(dbc, row); err != nil {
			return dberr.MapError(op, err)
		}
		if err := s.appendAction(dbc, op, row, operatorID, types.ActionReject, reason, now); err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Recommendation rejected",
		"recommendation_id", recommendationID,
		"operator_id", operatorID,
	)
	return updated, nil
}

// BulkApprove validates each id independently and commits the approvable
// subset in one transaction. Per-id failures are reported, not fatal.
func (s *recommendationService) BulkApprove(ctx context.Context, operatorID string, recommendationIDs []string) (*BulkApprovalResult, error) {
	const op = "RecommendationService.BulkApprove"
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing operator_id", nil)
	}

	result := &BulkApprovalResult{Errors: []string{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		now := time.Now().UTC()
		for _, id := range recommendationIDs {
			id = strings.TrimSpace(id)
			row, err := s.recsRepo.GetByID(dbc, id)
			if err != nil {
				return dberr.MapError(op, err)
			}
			if row == nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("recommendation %s not found", id))
				continue
			}
			if !recs.CanTransition(row.Status, types.RecStatusApproved) {
				result.Failed++
				result.Errors = append(result.Errors,
					fmt.Sprintf("recommendation %s has status %s, only pending_approval can be approved", id, row.Status))
				continue
			}
			row.Status = types.RecStatusApproved
			row.ApprovedBy = &operatorID
			approvedAt := now
			row.ApprovedAt = &approvedAt
			if err := s.recsRepo.Update(dbc, row); err != nil {
				return dberr.MapError(op, err)
			}
			if err := s.appendAction(dbc, op, row, operatorID, types.ActionApprove, "bulk approval", now); err != nil {
				return err
			}
			result.Approved++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Bulk approval completed",
		"operator_id", operatorID,
		"approved", result.Approved,
		"failed", result.Failed,
	)
	return result, nil
}

func reviewIdentifiers(op, recommendationID, operatorID string) (string, string, error) {
	recommendationID = strings.TrimSpace(recommendationID)
	if recommendationID == "" {
		return "", "", fault.New(fault.CodeValidation, op, "missing recommendation_id", nil)
	}
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return "", "", fault.New(fault.CodeValidation, op, "missing operator_id", nil)
	}
	return recommendationID, operatorID, nil
}

// requirePending loads the row and enforces the approval state machine:
// only pending_approval rows may move.
func (s *recommendationService) requirePending(dbc dbctx.Context, op, recommendationID, target string) (*types.Recommendation, error) {
	row, err := s.recsRepo.GetByID(dbc, recommendationID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	if row == nil {
		return nil, fault.New(fault.CodeNotFound, op,
			fmt.Sprintf("recommendation %s not found", recommendationID), nil)
	}
	if !recs.CanTransition(row.Status, target) {
		return nil, fault.New(fault.CodeConflict, op,
			fmt.Sprintf("recommendation %s has status %s, only pending_approval can be reviewed", recommendationID, row.Status), nil)
	}
	return row, nil
}

func (s *recommendationService) appendAction(dbc dbctx.Context, op string, row *types.Recommendation, operatorID, actionType, reason string, at time.Time) error {
	recID := row.RecommendationID
	action := &types.OperatorAction{
		OperatorID:       operatorID,
		ActionType:       actionType,
		RecommendationID: &recID,
		UserID:           row.UserID,
		Reason:           reason,
		Timestamp:        at,
	}
	if err := s.actions.Append(dbc, action); err != nil {
		return dberr.MapError(op, err)
	}
	return nil
}

func criticalMessages(warnings []types.ToneWarning) string {
	var msgs []string
	for _, w := range warnings {
		if w.IsCritical() {
			msgs = append(msgs, w.Message)
		}
	}
	return strings.Join(msgs, "; ")
}
