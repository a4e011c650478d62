package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// DefaultPaymentMethod is recorded when the client does not name one
const DefaultPaymentMethod = "credit_card"

// AppendInput represents the input for appending an investment to the ledger
type AppendInput struct {
	InvestorID     uuid.UUID
	ProjectID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
	RequestHash    string
	TransactionRef string
	PaymentMethod  string
}

// Writer appends investment records to the ledger. It never touches a
// project's raised amount.
type Writer struct {
	MinimumAmount decimal.Decimal
	Now           func() time.Time
}

// NewWriter creates a new Writer enforcing minimum
func NewWriter(minimum decimal.Decimal) *Writer {
	return &Writer{
		MinimumAmount: minimum,
		Now:           time.Now,
	}
}

// Authorize checks that the caller may invest
func (w *Writer) Authorize(identity *domain.Identity) error {
	return identity.Require("ledger.Authorize", domain.RoleInvestor)
}

// ValidateAmount checks amount against the platform minimum
func (w *Writer) ValidateAmount(amount decimal.Decimal) error {
	if err := domain.ValidateAmount(amount, w.MinimumAmount); err != nil {
		return &domain.Error{Code: domain.CodeInvalidAmount, Op: "ledger.ValidateAmount", Message: err.Error(), Err: err}
	}
	return nil
}

// Append inserts a new active investment through tx.
// Logic:
//  1. Validate amount
//  2. Lock the project row and check it exists and is fundable
//  3. Build the immutable record and insert it
func (w *Writer) Append(ctx context.Context, tx domain.LedgerTx, input AppendInput) (*domain.Investment, error) {
	const op = "ledger.Append"

	if err := w.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	project, err := tx.LockProject(ctx, input.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.Error{Code: domain.CodeProjectNotFound, Op: op, Message: "project " + input.ProjectID.String() + " not found", Err: err}
		}
		return nil, err
	}
	if !project.IsFundable() {
		return nil, domain.NewError(domain.CodeProjectNotFundable, op, "project is "+string(project.Status)+" and does not accept investments")
	}

	now := w.Now().UTC()
	ref := strings.TrimSpace(input.TransactionRef)
	if ref == "" {
		ref = fmt.Sprintf("txn-%d", now.UnixMilli())
	}
	method := strings.TrimSpace(input.PaymentMethod)
	if method == "" {
		method = DefaultPaymentMethod
	}

	inv := &domain.Investment{
		ID:             uuid.New(),
		InvestorID:     input.InvestorID,
		ProjectID:      input.ProjectID,
		Amount:         input.Amount,
		Status:         domain.InvestmentStatusActive,
		TransactionRef: ref,
		PaymentMethod:  method,
		IdempotencyKey: input.IdempotencyKey,
		RequestHash:    input.RequestHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := inv.Validate(w.MinimumAmount); err != nil {
		return nil, &domain.Error{Code: domain.CodeInvalidArgument, Op: op, Message: err.Error(), Err: err}
	}

	if err := tx.InsertInvestment(ctx, inv); err != nil {
		if errors.Is(err, domain.ErrAmountOutOfRange) {
			return nil, &domain.Error{Code: domain.CodeInvalidAmount, Op: op, Message: "investment amount exceeds the supported maximum", Err: err}
		}
		return nil, err
	}

	return inv, nil
}
