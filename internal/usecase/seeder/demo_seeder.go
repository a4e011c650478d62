package seeder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// Fixed ids for the demo data so repeated seeding is a no-op
var (
	DEMO_OWNER          = uuid.MustParse("00000000-0000-0000-0000-00000000a001")
	DEMO_CLINIC_PROJECT = uuid.MustParse("00000000-0000-0000-0000-00000000b001")
	DEMO_SCHOOL_PROJECT = uuid.MustParse("00000000-0000-0000-0000-00000000b002")
	DEMO_WELL_PROJECT   = uuid.MustParse("00000000-0000-0000-0000-00000000b003")
)

// DemoProject defines a project to be seeded
type DemoProject struct {
	ID          uuid.UUID
	Title       string
	Description string
	Location    string
	Goal        int64
	Status      domain.ProjectStatus
}

// DemoProjects is the catalogue seeded in debug mode
var DemoProjects = []DemoProject{
	{
		ID:          DEMO_CLINIC_PROJECT,
		Title:       "Community Clinic Rebuild",
		Description: "Restore the district clinic's roof and power supply.",
		Location:    "Kharkiv",
		Goal:        25000,
		Status:      domain.ProjectStatusApproved,
	},
	{
		ID:          DEMO_SCHOOL_PROJECT,
		Title:       "Primary School Windows",
		Description: "Replace shattered windows before winter.",
		Location:    "Irpin",
		Goal:        8000,
		Status:      domain.ProjectStatusApproved,
	},
	{
		ID:          DEMO_WELL_PROJECT,
		Title:       "Village Water Well",
		Description: "Drill and equip a new well for 40 households.",
		Location:    "Kherson oblast",
		Goal:        12000,
		Status:      domain.ProjectStatusPending,
	},
}

// DemoSeeder handles seeding of demo projects
type DemoSeeder struct {
	repo domain.ProjectRepository
	now  func() time.Time
}

// NewDemoSeeder creates a new DemoSeeder instance
func NewDemoSeeder(repo domain.ProjectRepository) *DemoSeeder {
	return &DemoSeeder{
		repo: repo,
		now:  time.Now,
	}
}

// Seed ensures every demo project exists. Existing projects are left
// untouched, so their raised amounts survive restarts.
func (s *DemoSeeder) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, demo := range DemoProjects {
		_, err := s.repo.GetByID(ctx, demo.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return created, err
		}

		now := s.now().UTC()
		project := &domain.Project{
			ID:           demo.ID,
			OwnerID:      DEMO_OWNER,
			Title:        demo.Title,
			Description:  demo.Description,
			Location:     demo.Location,
			GoalAmount:   decimal.NewFromInt(demo.Goal),
			RaisedAmount: decimal.Zero,
			Status:       demo.Status,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := project.Validate(); err != nil {
			return created, err
		}
		if err := s.repo.Create(ctx, project); err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}
