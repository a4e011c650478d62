package aggregate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// ReconcileResult reports how a stored aggregate compared with the ledger
type ReconcileResult struct {
	ProjectID uuid.UUID
	Stored    decimal.Decimal
	Computed  decimal.Decimal
	Repaired  bool
}

// Drift is Stored minus Computed
func (r ReconcileResult) Drift() decimal.Decimal {
	return r.Stored.Sub(r.Computed)
}

// InSync reports whether the stored aggregate matched the ledger
func (r ReconcileResult) InSync() bool {
	return r.Stored.Equal(r.Computed)
}

// ReconcileService checks the raised-amount invariant against the ledger
type ReconcileService struct {
	UnitOfWork  domain.UnitOfWork
	ProjectRepo domain.ProjectRepository
	Updater     *Updater
}

// NewReconcileService creates a new ReconcileService instance
func NewReconcileService(uow domain.UnitOfWork, projectRepo domain.ProjectRepository, updater *Updater) *ReconcileService {
	return &ReconcileService{
		UnitOfWork:  uow,
		ProjectRepo: projectRepo,
		Updater:     updater,
	}
}

// Reconcile compares one project's raised amount with the ledger sum.
// With repair set, a drifting aggregate is overwritten in the same unit.
func (s *ReconcileService) Reconcile(ctx context.Context, projectID uuid.UUID, repair bool) (*ReconcileResult, error) {
	var result *ReconcileResult
	err := s.UnitOfWork.InTx(ctx, func(tx domain.LedgerTx) error {
		if repair {
			project, previous, err := s.Updater.Recompute(ctx, tx, projectID)
			if err != nil {
				return err
			}
			result = &ReconcileResult{
				ProjectID: projectID,
				Stored:    previous,
				Computed:  project.RaisedAmount,
				Repaired:  !previous.Equal(project.RaisedAmount),
			}
			return nil
		}

		project, err := s.Updater.lock(ctx, tx, "aggregate.Reconcile", projectID)
		if err != nil {
			return err
		}
		sum, err := tx.SumCounted(ctx, projectID)
		if err != nil {
			return err
		}
		result = &ReconcileResult{ProjectID: projectID, Stored: project.RaisedAmount, Computed: sum}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReconcileAll runs Reconcile over every project, page by page
func (s *ReconcileService) ReconcileAll(ctx context.Context, repair bool) ([]ReconcileResult, error) {
	const pageSize = 200

	results := make([]ReconcileResult, 0)
	for offset := 0; ; offset += pageSize {
		projects, err := s.ProjectRepo.List(ctx, domain.ProjectFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return results, fmt.Errorf("failed to list projects: %w", err)
		}
		for _, p := range projects {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			r, err := s.Reconcile(ctx, p.ID, repair)
			if err != nil {
				return results, fmt.Errorf("failed to reconcile project %s: %w", p.ID, err)
			}
			results = append(results, *r)
		}
		if len(projects) < pageSize {
			return results, nil
		}
	}
}
