package domain

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProjectRepository defines the interface for project persistence operations
type ProjectRepository interface {
	// Create creates a new project
	Create(ctx context.Context, project *Project) error

	// GetByID retrieves a project by its ID.
	// Returns an error wrapping ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)

	// List retrieves projects matching filter, newest first
	List(ctx context.Context, filter ProjectFilter) ([]*Project, error)

	// SetImageURL records an uploaded image and returns the project as
	// stored. Status and raised amount are left untouched.
	SetImageURL(ctx context.Context, id uuid.UUID, url string, at time.Time) (*Project, error)

	// UpdateStatus writes project.Status if the stored version still equals
	// expectedVersion, returning ErrConflict otherwise
	UpdateStatus(ctx context.Context, project *Project, expectedVersion int64) error

	// Delete removes a project that has no investments
	Delete(ctx context.Context, id uuid.UUID) error
}

// InvestmentRepository defines read access to the investment ledger
type InvestmentRepository interface {
	// GetByID retrieves an investment by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Investment, error)

	// FindByIdempotencyKey returns nil, nil when the investor never used key
	FindByIdempotencyKey(ctx context.Context, investorID uuid.UUID, key string) (*Investment, error)

	// ListByInvestor lists an investor's investments, optionally by status
	ListByInvestor(ctx context.Context, investorID uuid.UUID, status InvestmentStatus) ([]*Investment, error)

	// ListByProject lists every investment referencing a project
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Investment, error)

	// CountByProject returns the number of investments referencing a project
	CountByProject(ctx context.Context, projectID uuid.UUID) (int, error)
}

// LedgerTx is the set of operations available inside one atomic unit.
// Everything done through a LedgerTx commits or rolls back together.
type LedgerTx interface {
	FindByIdempotencyKey(ctx context.Context, investorID uuid.UUID, key string) (*Investment, error)

	// LockProject reads a project and holds it against concurrent writers
	// until the unit ends
	LockProject(ctx context.Context, id uuid.UUID) (*Project, error)

	InsertInvestment(ctx context.Context, inv *Investment) error

	LockInvestment(ctx context.Context, id uuid.UUID) (*Investment, error)

	UpdateInvestmentStatus(ctx context.Context, id uuid.UUID, status InvestmentStatus, at time.Time) error

	// SaveAggregate writes raised amount and status if the stored version
	// still equals expectedVersion, returning ErrConflict otherwise
	SaveAggregate(ctx context.Context, project *Project, expectedVersion int64) error

	// SumCounted returns the sum of non-cancelled investment amounts for a project
	SumCounted(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error)
}

// UnitOfWork runs fn inside one storage transaction
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// ReplayCache remembers completed investments by idempotency key so that
// retries can be answered without touching the ledger
type ReplayCache interface {
	// Get returns nil, nil on a miss
	Get(ctx context.Context, investorID uuid.UUID, key string) (*Investment, error)
	Put(ctx context.Context, inv *Investment) error
}

// ImageStore uploads project images and returns their public URL
type ImageStore interface {
	Upload(ctx context.Context, projectID uuid.UUID, filename string, r io.Reader) (string, error)
}
