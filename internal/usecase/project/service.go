package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
)

// DefaultPageSize is used when a listing does not specify a limit
const DefaultPageSize = 50

// MaxPageSize caps listing limits
const MaxPageSize = 200

// CreateInput represents the input for creating a project
type CreateInput struct {
	Title       string
	Description string
	Location    string
	GoalAmount  decimal.Decimal
	ImageURL    string
}

// Report summarizes a project's funding progress
type Report struct {
	ProjectID         uuid.UUID
	Title             string
	Status            domain.ProjectStatus
	GoalAmount        decimal.Decimal
	RaisedAmount      decimal.Decimal
	FundingPercentage decimal.Decimal
	InvestorCount     int
	ActiveInvestments int
	TotalInvestments  int
}

// ProjectService handles project lifecycle operations
type ProjectService struct {
	ProjectRepo    domain.ProjectRepository
	InvestmentRepo domain.InvestmentRepository
	Images         domain.ImageStore
	Log            *logger.Logger
	Now            func() time.Time
}

// NewProjectService creates a new ProjectService instance.
// images may be nil, in which case uploads are refused.
func NewProjectService(
	projectRepo domain.ProjectRepository,
	investmentRepo domain.InvestmentRepository,
	images domain.ImageStore,
	log *logger.Logger,
) *ProjectService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ProjectService{
		ProjectRepo:    projectRepo,
		InvestmentRepo: investmentRepo,
		Images:         images,
		Log:            log.With("service", "ProjectService"),
		Now:            time.Now,
	}
}

// Create registers a new pending project owned by the caller
func (s *ProjectService) Create(ctx context.Context, identity *domain.Identity, input CreateInput) (*domain.Project, error) {
	const op = "project.Create"

	if err := identity.Require(op, domain.RoleProjectOwner); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	p := &domain.Project{
		ID:           uuid.New(),
		OwnerID:      identity.UserID,
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Location:     strings.TrimSpace(input.Location),
		ImageURL:     strings.TrimSpace(input.ImageURL),
		GoalAmount:   input.GoalAmount,
		RaisedAmount: decimal.Zero,
		Status:       domain.ProjectStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.Validate(); err != nil {
		code := domain.CodeInvalidArgument
		if errors.Is(err, domain.ErrAmountOutOfRange) {
			code = domain.CodeInvalidAmount
		}
		return nil, &domain.Error{Code: code, Op: op, Message: err.Error(), Err: err}
	}
	if !p.GoalAmount.Equal(p.GoalAmount.Truncate(domain.AmountScale)) {
		return nil, domain.NewError(domain.CodeInvalidArgument, op, "goal amount has more than two decimal places")
	}

	if err := s.ProjectRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.Log.Info("project created", "project_id", p.ID, "owner_id", p.OwnerID)
	return p, nil
}

// Get returns a project by id
func (s *ProjectService) Get(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	p, err := s.ProjectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("project.Get", err)
	}
	return p, nil
}

// List returns projects filtered by status, newest first
func (s *ProjectService) List(ctx context.Context, status string, limit, offset int) ([]*domain.Project, error) {
	const op = "project.List"

	filter := domain.ProjectFilter{Limit: clampLimit(limit), Offset: offset}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if strings.TrimSpace(status) != "" {
		parsed, err := domain.ParseProjectStatus(status)
		if err != nil {
			return nil, &domain.Error{Code: domain.CodeInvalidArgument, Op: op, Message: err.Error(), Err: err}
		}
		filter.Status = parsed
	}
	return s.ProjectRepo.List(ctx, filter)
}

// ListMine returns the caller's own projects
func (s *ProjectService) ListMine(ctx context.Context, identity *domain.Identity) ([]*domain.Project, error) {
	const op = "project.ListMine"

	if err := identity.Require(op, domain.RoleProjectOwner); err != nil {
		return nil, err
	}
	owner := identity.UserID
	return s.ProjectRepo.List(ctx, domain.ProjectFilter{OwnerID: &owner})
}

// Review approves or rejects a pending project
func (s *ProjectService) Review(ctx context.Context, identity *domain.Identity, id uuid.UUID, approve bool) (*domain.Project, error) {
	const op = "project.Review"

	if err := identity.Require(op, domain.RoleAdmin); err != nil {
		return nil, err
	}
	p, err := s.ProjectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(op, err)
	}
	expected := p.Version
	if err := p.Review(approve, s.Now().UTC()); err != nil {
		return nil, &domain.Error{Code: domain.CodeInvalidTransition, Op: op, Message: err.Error(), Err: err}
	}
	if err := s.ProjectRepo.UpdateStatus(ctx, p, expected); err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			return nil, &domain.Error{Code: domain.CodeConcurrentUpdateConflict, Op: op, Message: "project changed while it was being reviewed", Err: err}
		case errors.Is(err, domain.ErrNotFound):
			return nil, notFound(op, err)
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.Log.Info("project reviewed", "project_id", p.ID, "status", p.Status, "admin_id", identity.UserID)
	return p, nil
}

// Delete removes a project that has never received an investment
func (s *ProjectService) Delete(ctx context.Context, identity *domain.Identity, id uuid.UUID) error {
	const op = "project.Delete"

	p, err := s.owned(ctx, identity, op, id)
	if err != nil {
		return err
	}
	n, err := s.InvestmentRepo.CountByProject(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to count investments: %w", err)
	}
	if n > 0 {
		return domain.NewError(domain.CodeProjectHasInvestments, op, "cannot delete a project that has investments")
	}
	if err := s.ProjectRepo.Delete(ctx, p.ID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.Log.Info("project deleted", "project_id", p.ID)
	return nil
}

// AttachImage uploads an image and records its URL on the project
func (s *ProjectService) AttachImage(ctx context.Context, identity *domain.Identity, id uuid.UUID, filename string, r io.Reader) (*domain.Project, error) {
	const op = "project.AttachImage"

	p, err := s.owned(ctx, identity, op, id)
	if err != nil {
		return nil, err
	}
	if s.Images == nil {
		return nil, domain.NewError(domain.CodeInvalidArgument, op, "image uploads are not configured")
	}

	url, err := s.Images.Upload(ctx, p.ID, filename, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}
	updated, err := s.ProjectRepo.SetImageURL(ctx, p.ID, url, s.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return updated, nil
}

// Report computes funding progress for a project
func (s *ProjectService) Report(ctx context.Context, id uuid.UUID) (*Report, error) {
	const op = "project.Report"

	p, err := s.ProjectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(op, err)
	}
	investments, err := s.InvestmentRepo.ListByProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}

	investors := make(map[uuid.UUID]struct{})
	active := 0
	for _, inv := range investments {
		if inv.CountsTowardRaised() {
			investors[inv.InvestorID] = struct{}{}
		}
		if inv.Status == domain.InvestmentStatusActive {
			active++
		}
	}

	return &Report{
		ProjectID:         p.ID,
		Title:             p.Title,
		Status:            p.Status,
		GoalAmount:        p.GoalAmount,
		RaisedAmount:      p.RaisedAmount,
		FundingPercentage: p.FundingPercentage(),
		InvestorCount:     len(investors),
		ActiveInvestments: active,
		TotalInvestments:  len(investments),
	}, nil
}

// owned loads a project and checks the caller owns it
func (s *ProjectService) owned(ctx context.Context, identity *domain.Identity, op string, id uuid.UUID) (*domain.Project, error) {
	if err := identity.Require(op, domain.RoleProjectOwner); err != nil {
		return nil, err
	}
	p, err := s.ProjectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(op, err)
	}
	if p.OwnerID != identity.UserID {
		return nil, domain.NewError(domain.CodeNotAuthorized, op, "only the project owner may do this")
	}
	return p, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Error{Code: domain.CodeProjectNotFound, Op: op, Message: "project not found", Err: err}
	}
	return err
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}
