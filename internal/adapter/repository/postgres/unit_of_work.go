package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// UnitOfWork implements domain.UnitOfWork over a database transaction.
// Row locks taken through the LedgerTx are held until commit.
type UnitOfWork struct {
	db          *DB
	lockTimeout time.Duration
}

// NewUnitOfWork creates a UnitOfWork. A positive lockTimeout bounds how
// long LockProject waits; expiry surfaces as domain.ErrConflict.
func NewUnitOfWork(db *DB, lockTimeout time.Duration) *UnitOfWork {
	return &UnitOfWork{db: db, lockTimeout: lockTimeout}
}

// InTx runs fn in a READ COMMITTED transaction and commits when fn
// returns nil. Any error or panic rolls back.
func (u *UnitOfWork) InTx(ctx context.Context, fn func(tx domain.LedgerTx) error) (err error) {
	sqlTx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && err == nil {
			err = fmt.Errorf("failed to roll back transaction: %w", rbErr)
		}
	}()

	if u.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
		if _, err := sqlTx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", classify(err))
		}
	}

	if err := fn(&ledgerTx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	committed = true
	return nil
}

// ledgerTx implements domain.LedgerTx
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) FindByIdempotencyKey(ctx context.Context, investorID uuid.UUID, key string) (*domain.Investment, error) {
	return findByIdempotencyKey(ctx, t.tx, investorID, key)
}

func (t *ledgerTx) LockProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return getProject(ctx, t.tx, id, true)
}

func (t *ledgerTx) InsertInvestment(ctx context.Context, inv *domain.Investment) error {
	query := `
		INSERT INTO investments (` + investmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := t.tx.ExecContext(ctx, query,
		inv.ID,
		inv.InvestorID,
		inv.ProjectID,
		inv.Amount.String(),
		string(inv.Status),
		inv.TransactionRef,
		inv.PaymentMethod,
		inv.IdempotencyKey,
		inv.RequestHash,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		if classified := classify(err); classified != err {
			return classified
		}
		return fmt.Errorf("failed to insert investment: %w", err)
	}

	return nil
}

func (t *ledgerTx) LockInvestment(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	return getInvestment(ctx, t.tx, id, true)
}

func (t *ledgerTx) UpdateInvestmentStatus(ctx context.Context, id uuid.UUID, status domain.InvestmentStatus, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE investments SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), at,
	)
	if err != nil {
		return fmt.Errorf("failed to update investment status: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update investment status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("investment %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SaveAggregate writes the raised amount and status only if the stored
// version still equals expectedVersion
func (t *ledgerTx) SaveAggregate(ctx context.Context, project *domain.Project, expectedVersion int64) error {
	query := `
		UPDATE projects
		SET raised_amount = $2, status = $3, updated_at = $4, version = version + 1
		WHERE id = $1 AND version = $5
	`

	res, err := t.tx.ExecContext(ctx, query,
		project.ID,
		project.RaisedAmount.String(),
		string(project.Status),
		project.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to save project aggregate: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save project aggregate: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %s at version %d: %w", project.ID, expectedVersion, domain.ErrConflict)
	}
	return nil
}

func (t *ledgerTx) SumCounted(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	var sumStr string
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM investments WHERE project_id = $1 AND status <> 'cancelled'`,
		projectID,
	).Scan(&sumStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum investments: %w", classify(err))
	}
	sum, err := decimal.NewFromString(sumStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse investment sum: %w", err)
	}
	return sum, nil
}
