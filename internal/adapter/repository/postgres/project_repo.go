package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// projectRepository implements domain.ProjectRepository
type projectRepository struct {
	db *DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB) domain.ProjectRepository {
	return &projectRepository{db: db}
}

// Create creates a new project
func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.OwnerID,
		project.Title,
		project.Description,
		project.Location,
		project.ImageURL,
		project.GoalAmount.String(),
		project.RaisedAmount.String(),
		string(project.Status),
		project.Version,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project by its ID
func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return getProject(ctx, r.db, id, false)
}

// List retrieves projects matching filter, newest first
func (r *projectRepository) List(ctx context.Context, filter domain.ProjectFilter) ([]*domain.Project, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}

	query := `SELECT ` + projectColumns + ` FROM projects`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// SetImageURL writes only the image column so it cannot race the
// aggregate's status changes
func (r *projectRepository) SetImageURL(ctx context.Context, id uuid.UUID, url string, at time.Time) (*domain.Project, error) {
	query := `
		UPDATE projects
		SET image_url = $2, updated_at = $3, version = version + 1
		WHERE id = $1
		RETURNING ` + projectColumns

	project, err := scanProject(r.db.QueryRowContext(ctx, query, id, url, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to set project image: %w", err)
	}
	return project, nil
}

// UpdateStatus writes the review outcome only if nobody changed the row
// since it was read
func (r *projectRepository) UpdateStatus(ctx context.Context, project *domain.Project, expectedVersion int64) error {
	query := `
		UPDATE projects
		SET status = $2, updated_at = $3, version = version + 1
		WHERE id = $1 AND version = $4
		RETURNING version
	`

	err := r.db.QueryRowContext(ctx, query,
		project.ID,
		string(project.Status),
		project.UpdatedAt,
		expectedVersion,
	).Scan(&project.Version)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to update project status: %w", classify(err))
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, project.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}
	if !exists {
		return fmt.Errorf("project %s: %w", project.ID, domain.ErrNotFound)
	}
	return fmt.Errorf("project %s at version %d: %w", project.ID, expectedVersion, domain.ErrConflict)
}

// Delete removes a project. Projects referenced by investments are kept
// by the foreign key.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == codeForeignKeyViolation {
			return fmt.Errorf("project %s still has investments", id)
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func getProject(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	p, err := scanProject(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project by ID: %w", classify(err))
	}
	return p, nil
}
