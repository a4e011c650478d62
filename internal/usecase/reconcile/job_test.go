package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebuildfund/rebuildfund-backend/internal/adapter/repository/memory"
	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/aggregate"
)

type recordingMetrics struct {
	mu   sync.Mutex
	runs []Summary
}

func (m *recordingMetrics) ObserveReconcile(checked, drifting, repaired int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, Summary{Checked: checked, Drifting: drifting, Repaired: repaired})
}

func (m *recordingMetrics) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

func seedDrift(t *testing.T) (*memory.Store, *domain.Project) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	p := &domain.Project{
		ID: uuid.New(), OwnerID: uuid.New(), Title: "Shelter",
		GoalAmount: decimal.NewFromInt(1000), RaisedAmount: decimal.NewFromInt(80),
		Status: domain.ProjectStatusApproved, CreatedAt: time.Now(),
	}
	require.NoError(t, memory.NewProjectRepository(store).Create(ctx, p))
	require.NoError(t, store.InTx(ctx, func(tx domain.LedgerTx) error {
		return tx.InsertInvestment(ctx, &domain.Investment{
			ID: uuid.New(), InvestorID: uuid.New(), ProjectID: p.ID,
			Amount: decimal.NewFromInt(30), Status: domain.InvestmentStatusActive,
			IdempotencyKey: "k", CreatedAt: time.Now(),
		})
	}))
	return store, p
}

func TestJob_Run(t *testing.T) {
	tests := []struct {
		name       string
		repair     bool
		wantRaised string
		wantFixed  int
	}{
		{"report only", false, "80", 0},
		{"repair", true, "30", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, p := seedDrift(t)
			repo := memory.NewProjectRepository(store)
			metrics := &recordingMetrics{}
			job := NewJob(aggregate.NewReconcileService(store, repo, aggregate.NewUpdater()), time.Minute, tt.repair, nil, metrics)

			sum, err := job.Run(ctx)

			require.NoError(t, err)
			assert.Equal(t, Summary{Checked: 1, Drifting: 1, Repaired: tt.wantFixed}, sum)
			assert.Equal(t, 1, metrics.count())

			stored, err := repo.GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRaised, stored.RaisedAmount.String())
		})
	}
}

func TestJob_StartStop(t *testing.T) {
	store, _ := seedDrift(t)
	metrics := &recordingMetrics{}
	job := NewJob(aggregate.NewReconcileService(store, memory.NewProjectRepository(store), aggregate.NewUpdater()), 20*time.Millisecond, true, nil, metrics)

	require.NoError(t, job.Start())
	assert.Error(t, job.Start(), "second start is refused")

	require.Eventually(t, func() bool { return metrics.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, job.Stop())
	assert.NoError(t, job.Stop())
}

func TestJob_StartRejectsZeroInterval(t *testing.T) {
	store := memory.NewStore()
	job := NewJob(aggregate.NewReconcileService(store, memory.NewProjectRepository(store), aggregate.NewUpdater()), 0, false, nil, nil)

	assert.Error(t, job.Start())
}
