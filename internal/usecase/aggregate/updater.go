package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// Updater keeps a project's raised amount equal to the sum of its
// non-cancelled investments. It only runs inside a unit of work.
type Updater struct {
	Now func() time.Time
}

// NewUpdater creates a new Updater
func NewUpdater() *Updater {
	return &Updater{Now: time.Now}
}

// Apply adds delta to the project's raised amount.
// The project row is locked first; the write is additionally guarded by
// the version read under that lock, so a lost lock surfaces as a conflict
// rather than a silent overwrite.
func (u *Updater) Apply(ctx context.Context, tx domain.LedgerTx, projectID uuid.UUID, delta decimal.Decimal) (*domain.Project, error) {
	const op = "aggregate.Apply"

	project, err := u.lock(ctx, tx, op, projectID)
	if err != nil {
		return nil, err
	}

	expected := project.Version
	if err := project.ApplyDelta(delta, u.Now().UTC()); err != nil {
		return nil, deltaError(op, err)
	}

	if err := u.save(ctx, tx, op, project, expected); err != nil {
		return nil, err
	}
	return project, nil
}

// Recompute sets the raised amount to the live ledger sum and returns the
// project together with the value it held before
func (u *Updater) Recompute(ctx context.Context, tx domain.LedgerTx, projectID uuid.UUID) (*domain.Project, decimal.Decimal, error) {
	const op = "aggregate.Recompute"

	project, err := u.lock(ctx, tx, op, projectID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	previous := project.RaisedAmount

	sum, err := tx.SumCounted(ctx, projectID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if sum.Equal(previous) {
		return project, previous, nil
	}

	expected := project.Version
	if err := project.ApplyDelta(sum.Sub(previous), u.Now().UTC()); err != nil {
		return nil, decimal.Zero, deltaError(op, err)
	}
	if err := u.save(ctx, tx, op, project, expected); err != nil {
		return nil, decimal.Zero, err
	}
	return project, previous, nil
}

func (u *Updater) lock(ctx context.Context, tx domain.LedgerTx, op string, projectID uuid.UUID) (*domain.Project, error) {
	project, err := tx.LockProject(ctx, projectID)
	if err != nil {
		return nil, classify(op, err)
	}
	return project, nil
}

func (u *Updater) save(ctx context.Context, tx domain.LedgerTx, op string, project *domain.Project, expected int64) error {
	if err := tx.SaveAggregate(ctx, project, expected); err != nil {
		return classify(op, err)
	}
	project.Version = expected + 1
	return nil
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &domain.Error{Code: domain.CodeProjectNotFound, Op: op, Message: "project not found", Err: err}
	case errors.Is(err, domain.ErrConflict):
		return &domain.Error{Code: domain.CodeConcurrentUpdateConflict, Op: op, Message: "project was modified concurrently", Err: err}
	case errors.Is(err, domain.ErrAmountOutOfRange):
		return &domain.Error{Code: domain.CodeInvalidAmount, Op: op, Message: "raised amount would exceed the supported maximum", Err: err}
	default:
		return err
	}
}

func deltaError(op string, err error) error {
	if errors.Is(err, domain.ErrAmountOutOfRange) {
		return &domain.Error{Code: domain.CodeInvalidAmount, Op: op, Message: err.Error(), Err: err}
	}
	return &domain.Error{Code: domain.CodeInternal, Op: op, Message: err.Error(), Err: err}
}
