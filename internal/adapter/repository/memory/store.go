// Package memory is an in-process store with the same atomicity as the
// postgres adapter. Units of work are serialized by a single mutex and
// rolled back from a snapshot on error.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

type idemKey struct {
	investorID uuid.UUID
	key        string
}

// Store holds projects and the investment ledger in memory
type Store struct {
	mu          sync.Mutex
	projects    map[uuid.UUID]domain.Project
	investments map[uuid.UUID]domain.Investment
	keys        map[idemKey]uuid.UUID
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		projects:    make(map[uuid.UUID]domain.Project),
		investments: make(map[uuid.UUID]domain.Investment),
		keys:        make(map[idemKey]uuid.UUID),
	}
}

type snapshot struct {
	projects    map[uuid.UUID]domain.Project
	investments map[uuid.UUID]domain.Investment
	keys        map[idemKey]uuid.UUID
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		projects:    make(map[uuid.UUID]domain.Project, len(s.projects)),
		investments: make(map[uuid.UUID]domain.Investment, len(s.investments)),
		keys:        make(map[idemKey]uuid.UUID, len(s.keys)),
	}
	for k, v := range s.projects {
		snap.projects[k] = v
	}
	for k, v := range s.investments {
		snap.investments[k] = v
	}
	for k, v := range s.keys {
		snap.keys[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.projects = snap.projects
	s.investments = snap.investments
	s.keys = snap.keys
}

// InTx implements domain.UnitOfWork
func (s *Store) InTx(ctx context.Context, fn func(tx domain.LedgerTx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			panic(r)
		}
	}()

	if err = fn(&ledgerTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	// a cancelled caller never observes a commit
	if err = ctx.Err(); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// ledgerTx implements domain.LedgerTx; the caller holds s.mu
type ledgerTx struct {
	s *Store
}

func (t *ledgerTx) FindByIdempotencyKey(ctx context.Context, investorID uuid.UUID, key string) (*domain.Investment, error) {
	return t.s.findByKeyLocked(investorID, key), nil
}

func (t *ledgerTx) LockProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	p, ok := t.s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (t *ledgerTx) InsertInvestment(ctx context.Context, inv *domain.Investment) error {
	k := idemKey{investorID: inv.InvestorID, key: inv.IdempotencyKey}
	if _, exists := t.s.keys[k]; exists {
		return domain.ErrDuplicateIdempotencyKey
	}
	if _, ok := t.s.projects[inv.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", inv.ProjectID, domain.ErrNotFound)
	}
	t.s.investments[inv.ID] = *inv
	t.s.keys[k] = inv.ID
	return nil
}

func (t *ledgerTx) LockInvestment(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	inv, ok := t.s.investments[id]
	if !ok {
		return nil, fmt.Errorf("investment %s: %w", id, domain.ErrNotFound)
	}
	return &inv, nil
}

func (t *ledgerTx) UpdateInvestmentStatus(ctx context.Context, id uuid.UUID, status domain.InvestmentStatus, at time.Time) error {
	inv, ok := t.s.investments[id]
	if !ok {
		return fmt.Errorf("investment %s: %w", id, domain.ErrNotFound)
	}
	inv.Status = status
	inv.UpdatedAt = at
	t.s.investments[id] = inv
	return nil
}

func (t *ledgerTx) SaveAggregate(ctx context.Context, project *domain.Project, expectedVersion int64) error {
	stored, ok := t.s.projects[project.ID]
	if !ok {
		return fmt.Errorf("project %s: %w", project.ID, domain.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return domain.ErrConflict
	}
	stored.RaisedAmount = project.RaisedAmount
	stored.Status = project.Status
	stored.UpdatedAt = project.UpdatedAt
	stored.Version = expectedVersion + 1
	t.s.projects[project.ID] = stored
	return nil
}

func (t *ledgerTx) SumCounted(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, inv := range t.s.investments {
		if inv.ProjectID == projectID && inv.CountsTowardRaised() {
			total = total.Add(inv.Amount)
		}
	}
	return total, nil
}

func (s *Store) findByKeyLocked(investorID uuid.UUID, key string) *domain.Investment {
	id, ok := s.keys[idemKey{investorID: investorID, key: key}]
	if !ok {
		return nil
	}
	inv := s.investments[id]
	return &inv
}

func sortProjects(ps []*domain.Project) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID.String() < ps[j].ID.String()
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}

func sortInvestments(is []*domain.Investment) {
	sort.Slice(is, func(i, j int) bool {
		if is[i].CreatedAt.Equal(is[j].CreatedAt) {
			return is[i].ID.String() < is[j].ID.String()
		}
		return is[i].CreatedAt.After(is[j].CreatedAt)
	})
}
