package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/dashboard"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/project"
)

type CreateProjectRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	GoalAmount  decimal.Decimal `json:"goalAmount"`
	ImageURL    string          `json:"imageUrl"`
}

type InvestRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotencyKey"`
	TransactionRef string          `json:"transactionRef"`
	PaymentMethod  string          `json:"paymentMethod"`
}

type ReviewRequest struct {
	Approve *bool `json:"approve"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type DevTokenRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Email  string `json:"email"`
}

type ProjectResponse struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"ownerId"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Location          string    `json:"location"`
	ImageURL          string    `json:"imageUrl"`
	GoalAmount        string    `json:"goalAmount"`
	RaisedAmount      string    `json:"raisedAmount"`
	FundingPercentage string    `json:"fundingPercentage"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type InvestmentResponse struct {
	ID             string    `json:"id"`
	InvestorID     string    `json:"investorId"`
	ProjectID      string    `json:"projectId"`
	Amount         string    `json:"amount"`
	Status         string    `json:"status"`
	TransactionRef string    `json:"transactionRef"`
	PaymentMethod  string    `json:"paymentMethod"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// InvestResponse carries the flat result fields alongside the full records
type InvestResponse struct {
	InvestmentID        string             `json:"investmentId"`
	Status              string             `json:"status"`
	ProjectRaisedAmount string             `json:"projectRaisedAmount"`
	FundingPercentage   string             `json:"fundingPercentage"`
	Investment          InvestmentResponse `json:"investment"`
	Project             ProjectResponse    `json:"project"`
	Duplicate           bool               `json:"duplicate"`
}

func toInvestResponse(inv *domain.Investment, p *domain.Project, duplicate bool) InvestResponse {
	project := toProjectResponse(p)
	return InvestResponse{
		InvestmentID:        inv.ID.String(),
		Status:              string(inv.Status),
		ProjectRaisedAmount: project.RaisedAmount,
		FundingPercentage:   project.FundingPercentage,
		Investment:          toInvestmentResponse(inv),
		Project:             project,
		Duplicate:           duplicate,
	}
}

type ReportResponse struct {
	ProjectID         string `json:"projectId"`
	Title             string `json:"title"`
	Status            string `json:"status"`
	GoalAmount        string `json:"goalAmount"`
	RaisedAmount      string `json:"raisedAmount"`
	FundingPercentage string `json:"fundingPercentage"`
	InvestorCount     int    `json:"investorCount"`
	ActiveInvestments int    `json:"activeInvestments"`
	TotalInvestments  int    `json:"totalInvestments"`
}

type PortfolioResponse struct {
	TotalInvested   string `json:"totalInvested"`
	ActiveAmount    string `json:"activeAmount"`
	CompletedAmount string `json:"completedAmount"`
	ProjectsBacked  int    `json:"projectsBacked"`
	Investments     int    `json:"investments"`
}

type OwnerSummaryResponse struct {
	Projects      int            `json:"projects"`
	TotalGoal     string         `json:"totalGoal"`
	TotalRaised   string         `json:"totalRaised"`
	ByStatus      map[string]int `json:"byStatus"`
	FundedPercent string         `json:"fundedPercent"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.AmountScale)
}

func toProjectResponse(p *domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:                p.ID.String(),
		OwnerID:           p.OwnerID.String(),
		Title:             p.Title,
		Description:       p.Description,
		Location:          p.Location,
		ImageURL:          p.ImageURL,
		GoalAmount:        money(p.GoalAmount),
		RaisedAmount:      money(p.RaisedAmount),
		FundingPercentage: p.FundingPercentage().StringFixed(2),
		Status:            string(p.Status),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toProjectList(ps []*domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProjectResponse(p))
	}
	return out
}

func toInvestmentResponse(inv *domain.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:             inv.ID.String(),
		InvestorID:     inv.InvestorID.String(),
		ProjectID:      inv.ProjectID.String(),
		Amount:         money(inv.Amount),
		Status:         string(inv.Status),
		TransactionRef: inv.TransactionRef,
		PaymentMethod:  inv.PaymentMethod,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func toInvestmentList(is []*domain.Investment) []InvestmentResponse {
	out := make([]InvestmentResponse, 0, len(is))
	for _, inv := range is {
		out = append(out, toInvestmentResponse(inv))
	}
	return out
}

func toReportResponse(r *project.Report) ReportResponse {
	return ReportResponse{
		ProjectID:         r.ProjectID.String(),
		Title:             r.Title,
		Status:            string(r.Status),
		GoalAmount:        money(r.GoalAmount),
		RaisedAmount:      money(r.RaisedAmount),
		FundingPercentage: r.FundingPercentage.StringFixed(2),
		InvestorCount:     r.InvestorCount,
		ActiveInvestments: r.ActiveInvestments,
		TotalInvestments:  r.TotalInvestments,
	}
}

func toPortfolioResponse(r *dashboard.PortfolioResult) PortfolioResponse {
	return PortfolioResponse{
		TotalInvested:   money(r.TotalInvested),
		ActiveAmount:    money(r.ActiveAmount),
		CompletedAmount: money(r.CompletedAmount),
		ProjectsBacked:  r.ProjectsBacked,
		Investments:     r.Investments,
	}
}

func toOwnerSummaryResponse(r *dashboard.OwnerResult) OwnerSummaryResponse {
	byStatus := make(map[string]int, len(r.ByStatus))
	for s, n := range r.ByStatus {
		byStatus[string(s)] = n
	}
	return OwnerSummaryResponse{
		Projects:      r.Projects,
		TotalGoal:     money(r.TotalGoal),
		TotalRaised:   money(r.TotalRaised),
		ByStatus:      byStatus,
		FundedPercent: r.FundedPercent.StringFixed(2),
	}
}
