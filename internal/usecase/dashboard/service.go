package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// PortfolioResult represents an investor's totals
type PortfolioResult struct {
	TotalInvested   decimal.Decimal // non-cancelled investments
	ActiveAmount    decimal.Decimal
	CompletedAmount decimal.Decimal
	ProjectsBacked  int
	Investments     int
}

// OwnerResult represents a project owner's totals
type OwnerResult struct {
	Projects      int
	TotalGoal     decimal.Decimal
	TotalRaised   decimal.Decimal
	ByStatus      map[domain.ProjectStatus]int
	FundedPercent decimal.Decimal
}

// DashboardService handles dashboard-related operations
type DashboardService struct {
	ProjectRepo    domain.ProjectRepository
	InvestmentRepo domain.InvestmentRepository
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(
	projectRepo domain.ProjectRepository,
	investmentRepo domain.InvestmentRepository,
) *DashboardService {
	return &DashboardService{
		ProjectRepo:    projectRepo,
		InvestmentRepo: investmentRepo,
	}
}

// GetPortfolio calculates the caller's investment totals
// Logic:
//   - TotalInvested: sum of all non-cancelled investments
//   - ActiveAmount / CompletedAmount: split of TotalInvested by status
//   - ProjectsBacked: distinct projects with a non-cancelled investment
func (s *DashboardService) GetPortfolio(ctx context.Context, identity *domain.Identity) (*PortfolioResult, error) {
	if err := identity.Require("dashboard.GetPortfolio", domain.RoleInvestor); err != nil {
		return nil, err
	}

	investments, err := s.InvestmentRepo.ListByInvestor(ctx, identity.UserID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}

	res := &PortfolioResult{
		TotalInvested:   decimal.Zero,
		ActiveAmount:    decimal.Zero,
		CompletedAmount: decimal.Zero,
		Investments:     len(investments),
	}
	backed := make(map[uuid.UUID]struct{})
	for _, inv := range investments {
		switch inv.Status {
		case domain.InvestmentStatusActive:
			res.ActiveAmount = res.ActiveAmount.Add(inv.Amount)
		case domain.InvestmentStatusCompleted:
			res.CompletedAmount = res.CompletedAmount.Add(inv.Amount)
		default:
			continue
		}
		backed[inv.ProjectID] = struct{}{}
	}
	res.TotalInvested = res.ActiveAmount.Add(res.CompletedAmount)
	res.ProjectsBacked = len(backed)

	return res, nil
}

// GetOwnerSummary calculates totals over the caller's projects
func (s *DashboardService) GetOwnerSummary(ctx context.Context, identity *domain.Identity) (*OwnerResult, error) {
	if err := identity.Require("dashboard.GetOwnerSummary", domain.RoleProjectOwner); err != nil {
		return nil, err
	}

	owner := identity.UserID
	projects, err := s.ProjectRepo.List(ctx, domain.ProjectFilter{OwnerID: &owner})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	res := &OwnerResult{
		Projects:      len(projects),
		TotalGoal:     decimal.Zero,
		TotalRaised:   decimal.Zero,
		ByStatus:      make(map[domain.ProjectStatus]int),
		FundedPercent: decimal.Zero,
	}
	for _, p := range projects {
		res.TotalGoal = res.TotalGoal.Add(p.GoalAmount)
		res.TotalRaised = res.TotalRaised.Add(p.RaisedAmount)
		res.ByStatus[p.Status]++
	}
	if res.TotalGoal.IsPositive() {
		res.FundedPercent = res.TotalRaised.Div(res.TotalGoal).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return res, nil
}
