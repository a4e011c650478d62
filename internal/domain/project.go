package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProjectStatus represents the review and funding state of a project
type ProjectStatus string

const (
	ProjectStatusPending   ProjectStatus = "pending"
	ProjectStatusApproved  ProjectStatus = "approved"
	ProjectStatusRejected  ProjectStatus = "rejected"
	ProjectStatusCompleted ProjectStatus = "completed"
)

// ParseProjectStatus accepts the stored status values plus "active",
// which older clients send for approved projects
func ParseProjectStatus(raw string) (ProjectStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return ProjectStatusPending, nil
	case "approved", "active":
		return ProjectStatusApproved, nil
	case "rejected":
		return ProjectStatusRejected, nil
	case "completed":
		return ProjectStatusCompleted, nil
	default:
		return "", errors.New("invalid project status: " + raw)
	}
}

// Project represents a fundraising target and its accumulated progress
type Project struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Title        string
	Description  string
	Location     string
	ImageURL     string
	GoalAmount   decimal.Decimal // fixed at creation
	RaisedAmount decimal.Decimal // only mutated by the aggregate updater
	Status       ProjectStatus
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate ensures the project adheres to domain rules
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("project title cannot be empty")
	}
	if p.OwnerID == uuid.Nil {
		return errors.New("project must have an owner")
	}
	if p.GoalAmount.LessThanOrEqual(decimal.Zero) {
		return errors.New("project goal amount must be positive")
	}
	if p.GoalAmount.GreaterThan(MaxAmount) {
		return fmt.Errorf("project goal amount exceeds the maximum of %s: %w", MaxAmount.StringFixed(AmountScale), ErrAmountOutOfRange)
	}
	if p.RaisedAmount.IsNegative() {
		return errors.New("project raised amount cannot be negative")
	}
	return nil
}

// IsFundable reports whether the project accepts new investments
func (p *Project) IsFundable() bool {
	return p.Status == ProjectStatusApproved
}

// FundingPercentage returns raised/goal as a percentage rounded to two places.
// The value is not capped at 100.
func (p *Project) FundingPercentage() decimal.Decimal {
	if p.GoalAmount.IsZero() {
		return decimal.Zero
	}
	return p.RaisedAmount.Div(p.GoalAmount).Mul(decimal.NewFromInt(100)).Round(2)
}

// ApplyDelta adds delta to the raised amount and closes the project once
// the goal is reached. It does not touch Version; stores bump it on save.
func (p *Project) ApplyDelta(delta decimal.Decimal, now time.Time) error {
	next := p.RaisedAmount.Add(delta)
	if next.IsNegative() {
		return errors.New("raised amount would become negative")
	}
	if next.GreaterThan(MaxAmount) {
		return fmt.Errorf("raised amount would exceed %s: %w", MaxAmount.StringFixed(AmountScale), ErrAmountOutOfRange)
	}
	p.RaisedAmount = next
	if p.Status == ProjectStatusApproved && next.GreaterThanOrEqual(p.GoalAmount) {
		p.Status = ProjectStatusCompleted
	}
	p.UpdatedAt = now
	return nil
}

// Review moves a pending project to approved or rejected
func (p *Project) Review(approve bool, now time.Time) error {
	if p.Status != ProjectStatusPending {
		return errors.New("only pending projects can be reviewed")
	}
	if approve {
		p.Status = ProjectStatusApproved
	} else {
		p.Status = ProjectStatusRejected
	}
	p.UpdatedAt = now
	return nil
}

// ProjectFilter narrows project listings
type ProjectFilter struct {
	Status  ProjectStatus // empty means any
	OwnerID *uuid.UUID
	Limit   int
	Offset  int
}
