package dberr

import (
	"context"
	"errors"
	"strings"

	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// MapError maps infrastructure failures into domain error codes. Errors that
// already carry a domain code pass through untouched.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*fault.Error); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fault.Wrap(fault.CodeNotFound, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fault.Wrap(fault.CodeRetryable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return fault.Wrap(fault.CodeConflict, op, err) // unique_violation
		case "23503":
			return fault.Wrap(fault.CodeValidation, op, err) // foreign_key_violation
		case "40001", "40P01", "55P03":
			return fault.Wrap(fault.CodeRetryable, op, err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "already exists"),
		strings.Contains(msg, "unique constraint"):
		return fault.Wrap(fault.CodeConflict, op, err)
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "temporar"):
		return fault.Wrap(fault.CodeRetryable, op, err)
	default:
		return fault.Wrap(fault.CodeInternal, op, err)
	}
}
