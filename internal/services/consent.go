package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/data/dberr"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

const (
	ConsentActionGrant  = "grant"
	ConsentActionRevoke = "revoke"
)

// ConsentHistoryItem is one audit entry, newest first in listings.
type ConsentHistoryItem struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// ConsentStatus reports the user's current consent plus its audit trail.
// Update responses carry an empty history; Get returns the full trail.
type ConsentStatus struct {
	UserID           string               `json:"user_id"`
	ConsentStatus    bool                 `json:"consent_status"`
	ConsentGrantedAt *time.Time           `json:"consent_granted_at"`
	ConsentRevokedAt *time.Time           `json:"consent_revoked_at"`
	History          []ConsentHistoryItem `json:"history"`
}

// ConsentService manages the recommendation consent flag. Every request
// appends an audit row, including no-op repeats, so the log reflects intent
// rather than state changes.
type ConsentService interface {
	Update(ctx context.Context, userID, action, ipAddress, userAgent string) (*ConsentStatus, error)
	Get(ctx context.Context, userID string) (*ConsentStatus, error)
}

type consentService struct {
	db       *gorm.DB
	log      *logger.Logger
	users    repos.UserRepo
	consents repos.ConsentLogRepo
}

func NewConsentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	users repos.UserRepo,
	consents repos.ConsentLogRepo,
) ConsentService {
	return &consentService{
		db:       db,
		log:      baseLog.With("service", "ConsentService"),
		users:    users,
		consents: consents,
	}
}

func (s *consentService) Update(ctx context.Context, userID, action, ipAddress, userAgent string) (*ConsentStatus, error) {
	const op = "ConsentService.Update"
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fault.New(fault.CodeValidation, op, "missing user_id", nil)
	}

	var granted bool
	var logAction string
	switch strings.TrimSpace(action) {
	case ConsentActionGrant:
		granted = true
		logAction = types.ConsentActionGranted
	case ConsentActionRevoke:
		granted = false
		logAction = types.ConsentActionRevoked
	default:
		return nil, fault.New(fault.CodeValidation, op,
			fmt.Sprintf("invalid action %q, must be grant or revoke", action), nil)
	}

	var out *ConsentStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		u, err := s.users.GetByID(dbc, userID)
		if err != nil {
			return dberr.MapError(op, err)
		}
		if u == nil {
			return fault.New(fault.CodeNotFound, op, fmt.Sprintf("user %s not found", userID), nil)
		}

		now := time.Now().UTC()
		if u.ConsentStatus == granted {
			s.log.Info("Consent already in requested state",
				"user_id", userID,
				"action", action,
			)
		} else {
			if err := s.users.SetConsent(dbc, userID, granted, now); err != nil {
				return dberr.MapError(op, err)
			}
			u.ConsentStatus = granted
			if granted {
				u.ConsentGrantedAt = &now
				u.ConsentRevokedAt = nil
			} else {
				u.ConsentRevokedAt = &now
			}
			s.log.Info("Consent updated",
				"user_id", userID,
				"action", action,
			)
		}

		if err := s.consents.Append(dbc, &types.ConsentLog{
			UserID:    userID,
			Action:    logAction,
			Timestamp: now,
			IPAddress: strings.TrimSpace(ipAddress),
			UserAgent: strings.TrimSpace(userAgent),
		}); err != nil {
			return dberr.MapError(op, err)
		}

		out = &ConsentStatus{
			UserID:           u.UserID,
			ConsentStatus:    u.ConsentStatus,
			ConsentGrantedAt: u.ConsentGrantedAt,
			ConsentRevokedAt: u.ConsentRevokedAt,
			History:          []ConsentHistoryItem{},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *consentService) Get(ctx context.Context, userID string) (*ConsentStatus, error) {
	const op = "ConsentService.Get"
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

	logs, err := s.consents.ListByUser(dbc, userID)
	if err != nil {
		return nil, dberr.MapError(op, err)
	}
	history := make([]ConsentHistoryItem, 0, len(logs))
	for _, row := range logs {
		history = append(history, ConsentHistoryItem{Action: row.Action, Timestamp: row.Timestamp})
	}

	return &ConsentStatus{
		UserID:           u.UserID,
		ConsentStatus:    u.ConsentStatus,
		ConsentGrantedAt: u.ConsentGrantedAt,
		ConsentRevokedAt: u.ConsentRevokedAt,
		History:          history,
	}, nil
}
