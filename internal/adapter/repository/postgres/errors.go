package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

const idempotencyConstraint = "investments_investor_idempotency_key"

// SQLSTATE codes the store maps onto domain errors
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNumericOutOfRange    = "22003"
)

// classify maps driver errors onto the domain sentinels. Errors it does
// not recognize are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%s (%s): %w", pqErr.Message, pqErr.Code, domain.ErrConflict)
	case codeUniqueViolation:
		if pqErr.Constraint == idempotencyConstraint {
			return domain.ErrDuplicateIdempotencyKey
		}
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrNotFound)
	case codeNumericOutOfRange:
		return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrAmountOutOfRange)
	}
	return err
}
