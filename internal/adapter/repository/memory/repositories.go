package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// projectRepository implements domain.ProjectRepository
type projectRepository struct {
	s *Store
}

// NewProjectRepository creates a project repository over s
func NewProjectRepository(s *Store) domain.ProjectRepository {
	return &projectRepository{s: s}
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.projects[project.ID]; exists {
		return fmt.Errorf("project %s already exists", project.ID)
	}
	r.s.projects[project.ID] = *project
	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (r *projectRepository) List(ctx context.Context, filter domain.ProjectFilter) ([]*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*domain.Project, 0)
	for _, p := range r.s.projects {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.OwnerID != nil && p.OwnerID != *filter.OwnerID {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sortProjects(out)

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*domain.Project{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *projectRepository) SetImageURL(ctx context.Context, id uuid.UUID, url string, at time.Time) (*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	stored.ImageURL = url
	stored.UpdatedAt = at
	stored.Version++
	r.s.projects[id] = stored
	return &stored, nil
}

func (r *projectRepository) UpdateStatus(ctx context.Context, project *domain.Project, expectedVersion int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.projects[project.ID]
	if !ok {
		return fmt.Errorf("project %s: %w", project.ID, domain.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("project %s at version %d: %w", project.ID, expectedVersion, domain.ErrConflict)
	}
	stored.Status = project.Status
	stored.UpdatedAt = project.UpdatedAt
	stored.Version++
	r.s.projects[project.ID] = stored
	project.Version = stored.Version
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	for _, inv := range r.s.investments {
		if inv.ProjectID == id {
			return fmt.Errorf("project %s still has investments", id)
		}
	}
	delete(r.s.projects, id)
	return nil
}

// investmentRepository implements domain.InvestmentRepository
type investmentRepository struct {
	s *Store
}

// NewInvestmentRepository creates an investment repository over s
func NewInvestmentRepository(s *Store) domain.InvestmentRepository {
	return &investmentRepository{s: s}
}

func (r *investmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inv, ok := r.s.investments[id]
	if !ok {
		return nil, fmt.Errorf("investment %s: %w", id, domain.ErrNotFound)
	}
	return &inv, nil
}

func (r *investmentRepository) FindByIdempotencyKey(ctx context.Context, investorID uuid.UUID, key string) (*domain.Investment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.findByKeyLocked(investorID, key), nil
}

func (r *investmentRepository) ListByInvestor(ctx context.Context, investorID uuid.UUID, status domain.InvestmentStatus) ([]*domain.Investment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*domain.Investment, 0)
	for _, inv := range r.s.investments {
		if inv.InvestorID != investorID {
			continue
		}
		if status != "" && inv.Status != status {
			continue
		}
		inv := inv
		out = append(out, &inv)
	}
	sortInvestments(out)
	return out, nil
}

func (r *investmentRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Investment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*domain.Investment, 0)
	for _, inv := range r.s.investments {
		if inv.ProjectID != projectID {
			continue
		}
		inv := inv
		out = append(out, &inv)
	}
	sortInvestments(out)
	return out, nil
}

func (r *investmentRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, inv := range r.s.investments {
		if inv.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}
