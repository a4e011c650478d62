package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

const projectColumns = `id, owner_id, title, description, location, image_url,
	goal_amount, raised_amount, status, version, created_at, updated_at`

const investmentColumns = `id, investor_id, project_id, amount, status, transaction_ref,
	payment_method, idempotency_key, request_hash, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var p domain.Project
	var goalStr, raisedStr, status string

	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Title,
		&p.Description,
		&p.Location,
		&p.ImageURL,
		&goalStr,
		&raisedStr,
		&status,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// NUMERIC columns come back as text
	if p.GoalAmount, err = decimal.NewFromString(goalStr); err != nil {
		return nil, fmt.Errorf("failed to parse goal_amount: %w", err)
	}
	if p.RaisedAmount, err = decimal.NewFromString(raisedStr); err != nil {
		return nil, fmt.Errorf("failed to parse raised_amount: %w", err)
	}
	p.Status = domain.ProjectStatus(status)

	return &p, nil
}

func scanInvestment(row rowScanner) (*domain.Investment, error) {
	var inv domain.Investment
	var amountStr, status string

	err := row.Scan(
		&inv.ID,
		&inv.InvestorID,
		&inv.ProjectID,
		&amountStr,
		&status,
		&inv.TransactionRef,
		&inv.PaymentMethod,
		&inv.IdempotencyKey,
		&inv.RequestHash,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if inv.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	inv.Status = domain.InvestmentStatus(status)

	return &inv, nil
}
