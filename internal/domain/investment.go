package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestmentStatus represents the lifecycle state of an investment
type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// ParseInvestmentStatus validates a status string
func ParseInvestmentStatus(raw string) (InvestmentStatus, error) {
	switch InvestmentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case InvestmentStatusActive:
		return InvestmentStatusActive, nil
	case InvestmentStatusCompleted:
		return InvestmentStatusCompleted, nil
	case InvestmentStatusCancelled:
		return InvestmentStatusCancelled, nil
	default:
		return "", errors.New("invalid investment status: " + raw)
	}
}

// DefaultMinimumInvestment is the platform pledge floor
var DefaultMinimumInvestment = decimal.NewFromInt(10)

// AmountScale is the number of decimal places an amount may carry
const AmountScale = 2

// MaxAmount is the largest amount the ledger can store (NUMERIC(14,2)).
// It bounds investments, goals and raised totals alike.
var MaxAmount = decimal.New(1, 12).Sub(decimal.New(1, -AmountScale))

// MaxIdempotencyKeyLength bounds the client supplied key
const MaxIdempotencyKeyLength = 128

// Investment represents one investor's commitment to one project.
// Amount, InvestorID and ProjectID never change after creation.
type Investment struct {
	ID             uuid.UUID
	InvestorID     uuid.UUID
	ProjectID      uuid.UUID
	Amount         decimal.Decimal
	Status         InvestmentStatus
	TransactionRef string
	PaymentMethod  string
	IdempotencyKey string
	RequestHash    string // fingerprint of the request the key was first used with
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateAmount checks an amount against the minimum and the currency scale
func ValidateAmount(amount, minimum decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("investment amount must be positive")
	}
	if amount.LessThan(minimum) {
		return errors.New("investment amount is below the minimum of " + minimum.StringFixed(AmountScale))
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("investment amount exceeds the maximum of %s: %w", MaxAmount.StringFixed(AmountScale), ErrAmountOutOfRange)
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return errors.New("investment amount has more than two decimal places")
	}
	return nil
}

// Validate ensures the investment adheres to domain rules
func (i *Investment) Validate(minimum decimal.Decimal) error {
	if i.InvestorID == uuid.Nil {
		return errors.New("investment must reference an investor")
	}
	if i.ProjectID == uuid.Nil {
		return errors.New("investment must reference a project")
	}
	if err := ValidateAmount(i.Amount, minimum); err != nil {
		return err
	}
	if strings.TrimSpace(i.IdempotencyKey) == "" {
		return errors.New("investment must carry an idempotency key")
	}
	return nil
}

// CountsTowardRaised reports whether the amount is part of the project aggregate
func (i *Investment) CountsTowardRaised() bool {
	return i.Status != InvestmentStatusCancelled
}

// CanTransition checks the status state machine: only active investments move,
// and only to completed or cancelled
func (i *Investment) CanTransition(to InvestmentStatus) error {
	if i.Status != InvestmentStatusActive {
		return errors.New("investment is " + string(i.Status) + " and can no longer change status")
	}
	if to != InvestmentStatusCompleted && to != InvestmentStatusCancelled {
		return errors.New("investment cannot transition to " + string(to))
	}
	return nil
}

// RequestFingerprint identifies the payload an idempotency key was used with
func RequestFingerprint(projectID uuid.UUID, amount decimal.Decimal) string {
	sum := sha256.Sum256([]byte(projectID.String() + "|" + amount.StringFixed(AmountScale)))
	return hex.EncodeToString(sum[:])
}

// SumCounted adds up the amounts that count toward a project's raised total
func SumCounted(investments []*Investment) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range investments {
		if inv.CountsTowardRaised() {
			total = total.Add(inv.Amount)
		}
	}
	return total
}
