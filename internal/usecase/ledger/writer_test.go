package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebuildfund/rebuildfund-backend/internal/adapter/repository/memory"
	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

func seed(t *testing.T, status domain.ProjectStatus) (*memory.Store, *domain.Project) {
	t.Helper()
	store := memory.NewStore()
	p := &domain.Project{
		ID:         uuid.New(),
		OwnerID:    uuid.New(),
		Title:      "School roof",
		GoalAmount: decimal.NewFromInt(500),
		Status:     status,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, memory.NewProjectRepository(store).Create(context.Background(), p))
	return store, p
}

func TestWriter_Append_Defaults(t *testing.T) {
	ctx := context.Background()
	store, p := seed(t, domain.ProjectStatusApproved)
	w := NewWriter(domain.DefaultMinimumInvestment)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.Now = func() time.Time { return fixed }

	var inv *domain.Investment
	err := store.InTx(ctx, func(tx domain.LedgerTx) error {
		var err error
		inv, err = w.Append(ctx, tx, AppendInput{
			InvestorID:     uuid.New(),
			ProjectID:      p.ID,
			Amount:         decimal.RequireFromString("25.50"),
			IdempotencyKey: "k",
		})
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentStatusActive, inv.Status)
	assert.Equal(t, "credit_card", inv.PaymentMethod)
	assert.Equal(t, "txn-1740830400000", inv.TransactionRef)
	assert.Equal(t, fixed, inv.CreatedAt)

	// the writer never touches the aggregate
	stored, err := memory.NewProjectRepository(store).GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.RaisedAmount.IsZero())
}

func TestWriter_Append_KeepsClientFields(t *testing.T) {
	ctx := context.Background()
	store, p := seed(t, domain.ProjectStatusApproved)
	w := NewWriter(domain.DefaultMinimumInvestment)

	var inv *domain.Investment
	require.NoError(t, store.InTx(ctx, func(tx domain.LedgerTx) error {
		var err error
		inv, err = w.Append(ctx, tx, AppendInput{
			InvestorID:     uuid.New(),
			ProjectID:      p.ID,
			Amount:         decimal.NewFromInt(10),
			IdempotencyKey: "k",
			TransactionRef: " pay_123 ",
			PaymentMethod:  "bank_transfer",
		})
		return err
	}))
	assert.Equal(t, "pay_123", inv.TransactionRef)
	assert.Equal(t, "bank_transfer", inv.PaymentMethod)
}

func TestWriter_Append_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status domain.ProjectStatus
		input  func(projectID uuid.UUID) AppendInput
		want   domain.Code
	}{
		{
			name:   "below minimum",
			status: domain.ProjectStatusApproved,
			input: func(id uuid.UUID) AppendInput {
				return AppendInput{InvestorID: uuid.New(), ProjectID: id, Amount: decimal.RequireFromString("9.99"), IdempotencyKey: "k"}
			},
			want: domain.CodeInvalidAmount,
		},
		{
			name:   "unknown project",
			status: domain.ProjectStatusApproved,
			input: func(uuid.UUID) AppendInput {
				return AppendInput{InvestorID: uuid.New(), ProjectID: uuid.New(), Amount: decimal.NewFromInt(10), IdempotencyKey: "k"}
			},
			want: domain.CodeProjectNotFound,
		},
		{
			name:   "pending project",
			status: domain.ProjectStatusPending,
			input: func(id uuid.UUID) AppendInput {
				return AppendInput{InvestorID: uuid.New(), ProjectID: id, Amount: decimal.NewFromInt(10), IdempotencyKey: "k"}
			},
			want: domain.CodeProjectNotFundable,
		},
		{
			name:   "completed project",
			status: domain.ProjectStatusCompleted,
			input: func(id uuid.UUID) AppendInput {
				return AppendInput{InvestorID: uuid.New(), ProjectID: id, Amount: decimal.NewFromInt(10), IdempotencyKey: "k"}
			},
			want: domain.CodeProjectNotFundable,
		},
		{
			name:   "missing key",
			status: domain.ProjectStatusApproved,
			input: func(id uuid.UUID) AppendInput {
				return AppendInput{InvestorID: uuid.New(), ProjectID: id, Amount: decimal.NewFromInt(10)}
			},
			want: domain.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, p := seed(t, tt.status)
			w := NewWriter(domain.DefaultMinimumInvestment)

			err := store.InTx(ctx, func(tx domain.LedgerTx) error {
				_, err := w.Append(ctx, tx, tt.input(p.ID))
				return err
			})
			assert.Equal(t, tt.want, domain.CodeOf(err))

			n, err := memory.NewInvestmentRepository(store).CountByProject(ctx, p.ID)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestWriter_Authorize(t *testing.T) {
	w := NewWriter(domain.DefaultMinimumInvestment)

	assert.NoError(t, w.Authorize(&domain.Identity{UserID: uuid.New(), Role: domain.RoleInvestor}))
	assert.Equal(t, domain.CodeNotAuthenticated, domain.CodeOf(w.Authorize(nil)))
	assert.Equal(t, domain.CodeNotAuthorized, domain.CodeOf(w.Authorize(&domain.Identity{UserID: uuid.New(), Role: domain.RoleProjectOwner})))
}

func TestWriter_CustomMinimum(t *testing.T) {
	w := NewWriter(decimal.NewFromInt(50))

	assert.NoError(t, w.ValidateAmount(decimal.NewFromInt(50)))
	err := w.ValidateAmount(decimal.NewFromInt(49))
	assert.Equal(t, domain.CodeInvalidAmount, domain.CodeOf(err))
	assert.Contains(t, err.Error(), "50.00")
}
