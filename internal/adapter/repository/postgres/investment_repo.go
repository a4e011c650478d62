package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// investmentRepository implements domain.InvestmentRepository
type investmentRepository struct {
	db *DB
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(db *DB) domain.InvestmentRepository {
	return &investmentRepository{db: db}
}

// GetByID retrieves an investment by its ID
func (r *investmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	return getInvestment(ctx, r.db, id, false)
}

// FindByIdempotencyKey returns nil, nil when the investor has not used key
func (r *investmentRepository) FindByIdempotencyKey(ctx context.Context, investorID uuid.UUID, key string) (*domain.Investment, error) {
	return findByIdempotencyKey(ctx, r.db, investorID, key)
}

// ListByInvestor retrieves an investor's investments, newest first
func (r *investmentRepository) ListByInvestor(ctx context.Context, investorID uuid.UUID, status domain.InvestmentStatus) ([]*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE investor_id = $1`
	args := []any{investorID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	return r.list(ctx, query, args...)
}

// ListByProject retrieves a project's investments, newest first
func (r *investmentRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE project_id = $1 ORDER BY created_at DESC, id`
	return r.list(ctx, query, projectID)
}

// CountByProject counts every investment referencing a project, cancelled included
func (r *investmentRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM investments WHERE project_id = $1`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count investments: %w", err)
	}
	return n, nil
}

func (r *investmentRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Investment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	defer rows.Close()

	investments := make([]*domain.Investment, 0)
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		investments = append(investments, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investments: %w", err)
	}

	return investments, nil
}

func getInvestment(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	inv, err := scanInvestment(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("investment %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get investment by ID: %w", classify(err))
	}
	return inv, nil
}

func findByIdempotencyKey(ctx context.Context, q querier, investorID uuid.UUID, key string) (*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE investor_id = $1 AND idempotency_key = $2`

	inv, err := scanInvestment(q.QueryRowContext(ctx, query, investorID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find investment by idempotency key: %w", classify(err))
	}
	return inv, nil
}
