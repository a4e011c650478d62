package investment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/aggregate"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/ledger"
)

// Outcomes reported to Hooks.ObserveInvest
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

const tracerName = "github.com/rebuildfund/rebuildfund-backend/internal/usecase/investment"

// Hooks receives instrumentation events from the service
type Hooks interface {
	ObserveInvest(outcome string, elapsed time.Duration)
	IncConflict(op string)
	IncReplay(source string)
}

type noopHooks struct{}

func (noopHooks) ObserveInvest(string, time.Duration) {}
func (noopHooks) IncConflict(string)                  {}
func (noopHooks) IncReplay(string)                    {}

// InvestInput represents the input for submitting an investment
type InvestInput struct {
	ProjectID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
	TransactionRef string
	PaymentMethod  string
}

// InvestResult is returned for both new and replayed submissions
type InvestResult struct {
	Investment *domain.Investment
	Project    *domain.Project
	Duplicate  bool
}

// ProjectRaisedAmount is the project's raised amount as of this result
func (r *InvestResult) ProjectRaisedAmount() decimal.Decimal {
	return r.Project.RaisedAmount
}

// TransitionResult is returned by Transition
type TransitionResult struct {
	Investment *domain.Investment
	Project    *domain.Project
}

// InvestmentService records investments exactly once per idempotency key.
// The ledger insert and the aggregate update run in one unit of work that
// is retried on conflict.
type InvestmentService struct {
	UnitOfWork     domain.UnitOfWork
	InvestmentRepo domain.InvestmentRepository
	ProjectRepo    domain.ProjectRepository
	Writer         *ledger.Writer
	Updater        *aggregate.Updater
	Cache          domain.ReplayCache
	Hooks          Hooks
	Log            *logger.Logger
	Retry          RetryPolicy
}

// Option configures an InvestmentService
type Option func(*InvestmentService)

// WithReplayCache sets a cache consulted before the ledger on duplicate checks
func WithReplayCache(c domain.ReplayCache) Option {
	return func(s *InvestmentService) { s.Cache = c }
}

// WithHooks sets the instrumentation hooks
func WithHooks(h Hooks) Option {
	return func(s *InvestmentService) { s.Hooks = h }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *InvestmentService) { s.Log = l.With("service", "InvestmentService") }
}

// WithRetryPolicy overrides DefaultRetryPolicy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *InvestmentService) { s.Retry = p }
}

// NewInvestmentService creates a new InvestmentService instance
func NewInvestmentService(
	uow domain.UnitOfWork,
	investmentRepo domain.InvestmentRepository,
	projectRepo domain.ProjectRepository,
	writer *ledger.Writer,
	updater *aggregate.Updater,
	opts ...Option,
) *InvestmentService {
	s := &InvestmentService{
		UnitOfWork:     uow,
		InvestmentRepo: investmentRepo,
		ProjectRepo:    projectRepo,
		Writer:         writer,
		Updater:        updater,
		Hooks:          noopHooks{},
		Log:            logger.NewNop(),
		Retry:          DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invest records one investment.
// Logic:
//  1. Authorize the caller as an investor and check the idempotency key
//  2. If the key was already used, return the stored investment (no new credit)
//  3. Validate the amount
//  4. In one unit of work: re-check the key, append to the ledger, credit the project
//  5. Retry the unit on conflict; exhaustion is reported as InvestmentFailed
func (s *InvestmentService) Invest(ctx context.Context, identity *domain.Identity, input InvestInput) (*InvestResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "investment.Invest")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", input.ProjectID.String()))

	start := time.Now()
	res, err := s.invest(ctx, identity, input)
	if err != nil {
		span.SetStatus(codes.Error, string(domain.CodeOf(err)))
	}

	outcome := OutcomeCreated
	switch {
	case err != nil && isCallerError(err):
		outcome = OutcomeRejected
	case err != nil:
		outcome = OutcomeFailed
		s.Log.Error("investment failed", "project_id", input.ProjectID, "error", err)
	case res.Duplicate:
		outcome = OutcomeDuplicate
	default:
		s.Log.Info("investment recorded",
			"investment_id", res.Investment.ID,
			"project_id", res.Project.ID,
			"amount", res.Investment.Amount.String(),
			"raised", res.Project.RaisedAmount.String(),
		)
	}
	span.SetAttributes(attribute.String("invest.outcome", outcome))
	s.Hooks.ObserveInvest(outcome, time.Since(start))
	return res, err
}

func (s *InvestmentService) invest(ctx context.Context, identity *domain.Identity, input InvestInput) (*InvestResult, error) {
	const op = "investment.Invest"

	if err := s.Writer.Authorize(identity); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		return nil, domain.NewError(domain.CodeInvalidArgument, op, "idempotency key is required")
	}
	if len(key) > domain.MaxIdempotencyKeyLength {
		return nil, domain.NewError(domain.CodeInvalidArgument, op, fmt.Sprintf("idempotency key exceeds %d characters", domain.MaxIdempotencyKeyLength))
	}
	if input.ProjectID == uuid.Nil {
		return nil, domain.NewError(domain.CodeInvalidArgument, op, "project id is required")
	}
	hash := domain.RequestFingerprint(input.ProjectID, input.Amount)

	existing, err := s.lookup(ctx, identity.UserID, key)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInvestmentFailed, op, err)
	}
	if existing != nil {
		return s.replay(ctx, existing, hash)
	}

	if err := s.Writer.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	appendInput := ledger.AppendInput{
		InvestorID:     identity.UserID,
		ProjectID:      input.ProjectID,
		Amount:         input.Amount,
		IdempotencyKey: key,
		RequestHash:    hash,
		TransactionRef: input.TransactionRef,
		PaymentMethod:  input.PaymentMethod,
	}

	res, attempts, err := retryAtomic(ctx, s.Retry, s.conflictHook(op), func() (*InvestResult, error) {
		return s.atomicInvest(ctx, appendInput)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			// lost an insert race against a concurrent submission with the same key
			stored, lookupErr := s.InvestmentRepo.FindByIdempotencyKey(ctx, identity.UserID, key)
			if lookupErr == nil && stored != nil {
				return s.replay(ctx, stored, hash)
			}
		}
		if isCallerError(err) {
			return nil, err
		}
		return nil, &domain.Error{
			Code:    domain.CodeInvestmentFailed,
			Op:      op,
			Message: fmt.Sprintf("investment could not be committed after %d attempt(s); no funds were recorded", attempts),
			Err:     err,
		}
	}

	if res.Duplicate {
		return s.replay(ctx, res.Investment, hash)
	}

	if s.Cache != nil {
		if err := s.Cache.Put(ctx, res.Investment); err != nil {
			s.Log.Warn("replay cache put failed", "investment_id", res.Investment.ID, "error", err)
		}
	}
	return res, nil
}

// atomicInvest is one attempt of the ledger insert plus aggregate credit
func (s *InvestmentService) atomicInvest(ctx context.Context, in ledger.AppendInput) (*InvestResult, error) {
	var res *InvestResult
	err := s.UnitOfWork.InTx(ctx, func(tx domain.LedgerTx) error {
		existing, err := tx.FindByIdempotencyKey(ctx, in.InvestorID, in.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			res = &InvestResult{Investment: existing, Duplicate: true}
			return nil
		}

		inv, err := s.Writer.Append(ctx, tx, in)
		if err != nil {
			return err
		}
		project, err := s.Updater.Apply(ctx, tx, in.ProjectID, inv.Amount)
		if err != nil {
			return err
		}
		res = &InvestResult{Investment: inv, Project: project}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// lookup checks the replay cache, then the ledger
func (s *InvestmentService) lookup(ctx context.Context, investorID uuid.UUID, key string) (*domain.Investment, error) {
	if s.Cache != nil {
		cached, err := s.Cache.Get(ctx, investorID, key)
		if err != nil {
			s.Log.Warn("replay cache get failed", "investor_id", investorID, "error", err)
		} else if cached != nil {
			s.Hooks.IncReplay("cache")
			return cached, nil
		}
	}

	stored, err := s.InvestmentRepo.FindByIdempotencyKey(ctx, investorID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if stored != nil {
		s.Hooks.IncReplay("ledger")
		if s.Cache != nil {
			if err := s.Cache.Put(ctx, stored); err != nil {
				s.Log.Warn("replay cache put failed", "investment_id", stored.ID, "error", err)
			}
		}
	}
	return stored, nil
}

// replay answers a repeated submission with the stored investment and the
// project's current aggregate
func (s *InvestmentService) replay(ctx context.Context, existing *domain.Investment, hash string) (*InvestResult, error) {
	const op = "investment.Invest"

	if existing.RequestHash != "" && existing.RequestHash != hash {
		return nil, domain.NewError(domain.CodeIdempotencyKeyReused, op, "idempotency key was already used for a different request")
	}

	project, err := s.ProjectRepo.GetByID(ctx, existing.ProjectID)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInvestmentFailed, op, err)
	}
	return &InvestResult{Investment: existing, Project: project, Duplicate: true}, nil
}

// Transition moves an active investment to completed or cancelled.
// Cancelling debits the project in the same unit of work.
func (s *InvestmentService) Transition(ctx context.Context, identity *domain.Identity, investmentID uuid.UUID, to domain.InvestmentStatus) (*TransitionResult, error) {
	const op = "investment.Transition"

	if err := identity.Require(op, domain.RoleAdmin); err != nil {
		return nil, err
	}

	res, _, err := retryAtomic(ctx, s.Retry, s.conflictHook(op), func() (*TransitionResult, error) {
		var out *TransitionResult
		err := s.UnitOfWork.InTx(ctx, func(tx domain.LedgerTx) error {
			inv, err := tx.LockInvestment(ctx, investmentID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return &domain.Error{Code: domain.CodeInvestmentNotFound, Op: op, Message: "investment not found", Err: err}
				}
				return err
			}
			if err := inv.CanTransition(to); err != nil {
				return &domain.Error{Code: domain.CodeInvalidTransition, Op: op, Message: err.Error(), Err: err}
			}

			now := time.Now().UTC()
			if err := tx.UpdateInvestmentStatus(ctx, inv.ID, to, now); err != nil {
				return err
			}
			inv.Status = to
			inv.UpdatedAt = now

			var project *domain.Project
			if to == domain.InvestmentStatusCancelled {
				project, err = s.Updater.Apply(ctx, tx, inv.ProjectID, inv.Amount.Neg())
				if err != nil {
					return err
				}
			}
			out = &TransitionResult{Investment: inv, Project: project}
			return nil
		})
		return out, err
	})
	if err != nil {
		if isCallerError(err) || domain.IsCode(err, domain.CodeInvestmentNotFound) || domain.IsCode(err, domain.CodeInvalidTransition) {
			return nil, err
		}
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}

	if res.Project == nil {
		project, err := s.ProjectRepo.GetByID(ctx, res.Investment.ProjectID)
		if err != nil {
			return nil, domain.Wrap(domain.CodeInternal, op, err)
		}
		res.Project = project
	}

	// replays answered from the cache must report the new status
	if s.Cache != nil {
		if err := s.Cache.Put(ctx, res.Investment); err != nil {
			s.Log.Warn("replay cache refresh failed", "investment_id", res.Investment.ID, "error", err)
		}
	}

	s.Log.Info("investment transitioned", "investment_id", investmentID, "status", to)
	return res, nil
}

// Get returns one investment to its investor or an admin
func (s *InvestmentService) Get(ctx context.Context, identity *domain.Identity, id uuid.UUID) (*domain.Investment, error) {
	const op = "investment.Get"

	if err := identity.Require(op, domain.RoleInvestor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	inv, err := s.InvestmentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.Error{Code: domain.CodeInvestmentNotFound, Op: op, Message: "investment not found", Err: err}
		}
		return nil, err
	}
	if identity.Role != domain.RoleAdmin && inv.InvestorID != identity.UserID {
		// not revealing other investors' records
		return nil, domain.NewError(domain.CodeInvestmentNotFound, op, "investment not found")
	}
	return inv, nil
}

// ListMine lists the caller's investments, optionally filtered by status
func (s *InvestmentService) ListMine(ctx context.Context, identity *domain.Identity, status string) ([]*domain.Investment, error) {
	const op = "investment.ListMine"

	if err := identity.Require(op, domain.RoleInvestor); err != nil {
		return nil, err
	}
	var filter domain.InvestmentStatus
	if strings.TrimSpace(status) != "" && strings.ToLower(strings.TrimSpace(status)) != "all" {
		parsed, err := domain.ParseInvestmentStatus(status)
		if err != nil {
			return nil, &domain.Error{Code: domain.CodeInvalidArgument, Op: op, Message: err.Error(), Err: err}
		}
		filter = parsed
	}
	return s.InvestmentRepo.ListByInvestor(ctx, identity.UserID, filter)
}

// ListForProject lists a project's investments for its owner or an admin
func (s *InvestmentService) ListForProject(ctx context.Context, identity *domain.Identity, projectID uuid.UUID) ([]*domain.Investment, error) {
	const op = "investment.ListForProject"

	if err := identity.Require(op, domain.RoleProjectOwner, domain.RoleAdmin); err != nil {
		return nil, err
	}
	project, err := s.ProjectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.Error{Code: domain.CodeProjectNotFound, Op: op, Message: "project not found", Err: err}
		}
		return nil, err
	}
	if identity.Role != domain.RoleAdmin && project.OwnerID != identity.UserID {
		return nil, domain.NewError(domain.CodeNotAuthorized, op, "only the project owner can list its investments")
	}
	return s.InvestmentRepo.ListByProject(ctx, projectID)
}

func (s *InvestmentService) conflictHook(op string) func(uint, error) {
	return func(attempt uint, err error) {
		s.Hooks.IncConflict(op)
		s.Log.Debug("aggregate conflict, retrying", "op", op, "attempt", attempt, "error", err)
	}
}

// isCallerError reports errors caused by the request itself; they are
// surfaced unchanged and never retried
func isCallerError(err error) bool {
	switch domain.CodeOf(err) {
	case domain.CodeInvalidAmount,
		domain.CodeNotAuthenticated,
		domain.CodeNotAuthorized,
		domain.CodeProjectNotFound,
		domain.CodeProjectNotFundable,
		domain.CodeInvalidArgument,
		domain.CodeIdempotencyKeyReused:
		return true
	}
	return false
}
