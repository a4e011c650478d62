package grpc

import "time"

// Amounts travel as decimal strings so no precision is lost on the wire.

type InvestRequest struct {
	ProjectID      string `json:"project_id"`
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
	TransactionRef string `json:"transaction_ref,omitempty"`
	PaymentMethod  string `json:"payment_method,omitempty"`
}

type InvestResponse struct {
	InvestmentID        string    `json:"investment_id"`
	Status              string    `json:"status"`
	ProjectRaisedAmount string    `json:"project_raised_amount"`
	FundingPercentage   string    `json:"funding_percentage"`
	ProjectStatus       string    `json:"project_status"`
	Duplicate           bool      `json:"duplicate"`
	CreatedAt           time.Time `json:"created_at"`
}

type GetProjectRequest struct {
	ProjectID string `json:"project_id"`
}

type Project struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Location          string    `json:"location,omitempty"`
	ImageURL          string    `json:"image_url,omitempty"`
	GoalAmount        string    `json:"goal_amount"`
	RaisedAmount      string    `json:"raised_amount"`
	FundingPercentage string    `json:"funding_percentage"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type GetProjectResponse struct {
	Project *Project `json:"project"`
}

type ProjectReportRequest struct {
	ProjectID string `json:"project_id"`
}

type ProjectReportResponse struct {
	ProjectID         string `json:"project_id"`
	Status            string `json:"status"`
	GoalAmount        string `json:"goal_amount"`
	RaisedAmount      string `json:"raised_amount"`
	FundingPercentage string `json:"funding_percentage"`
	InvestorCount     int32  `json:"investor_count"`
	ActiveInvestments int32  `json:"active_investments"`
	TotalInvestments  int32  `json:"total_investments"`
}

type ListMyInvestmentsRequest struct {
	Status string `json:"status,omitempty"`
}

type Investment struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Amount         string    `json:"amount"`
	Status         string    `json:"status"`
	TransactionRef string    `json:"transaction_ref"`
	PaymentMethod  string    `json:"payment_method"`
	CreatedAt      time.Time `json:"created_at"`
}

type ListMyInvestmentsResponse struct {
	Investments []*Investment `json:"investments"`
}
