// Package reconcile periodically checks every project's raised amount
// against the investment ledger.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/aggregate"
)

// Metrics receives the outcome of each pass
type Metrics interface {
	ObserveReconcile(checked, drifting, repaired int, err error)
}

// Summary describes one pass over all projects
type Summary struct {
	Checked  int
	Drifting int
	Repaired int
}

// Job runs aggregate.ReconcileService on a fixed interval
type Job struct {
	Service  *aggregate.ReconcileService
	Interval time.Duration
	Repair   bool
	Log      *logger.Logger
	Metrics  Metrics

	mu        sync.Mutex
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewJob creates a new reconcile Job. metrics may be nil.
func NewJob(service *aggregate.ReconcileService, interval time.Duration, repair bool, log *logger.Logger, metrics Metrics) *Job {
	if log == nil {
		log = logger.NewNop()
	}
	return &Job{
		Service:  service,
		Interval: interval,
		Repair:   repair,
		Log:      log.With("job", "ledger_reconciler"),
		Metrics:  metrics,
	}
}

// Name returns the scheduler job name
func (j *Job) Name() string {
	return "ledger_reconciler"
}

// Definition returns the schedule
func (j *Job) Definition() gocron.JobDefinition {
	return gocron.DurationJob(j.Interval)
}

// Run performs one reconciliation pass
func (j *Job) Run(ctx context.Context) (Summary, error) {
	results, err := j.Service.ReconcileAll(ctx, j.Repair)

	var sum Summary
	for _, r := range results {
		sum.Checked++
		if r.InSync() {
			continue
		}
		sum.Drifting++
		if r.Repaired {
			sum.Repaired++
		}
		j.Log.Warn("raised amount drift",
			"project_id", r.ProjectID,
			"stored", r.Stored.String(),
			"ledger", r.Computed.String(),
			"repaired", r.Repaired,
		)
	}
	if j.Metrics != nil {
		j.Metrics.ObserveReconcile(sum.Checked, sum.Drifting, sum.Repaired, err)
	}
	return sum, err
}

func (j *Job) execute() {
	start := time.Now()
	sum, err := j.Run(j.ctx)
	if err != nil {
		j.Log.Error("reconciliation failed", "error", err, "checked", sum.Checked)
		return
	}
	j.Log.Info("reconciliation completed",
		"checked", sum.Checked,
		"drifting", sum.Drifting,
		"repaired", sum.Repaired,
		"elapsed", time.Since(start).String(),
	)
}

// Start registers the job and starts the scheduler
func (j *Job) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.scheduler != nil {
		return errors.New("reconcile job already started")
	}
	if j.Interval <= 0 {
		return errors.New("reconcile interval must be positive")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	j.ctx, j.cancel = context.WithCancel(context.Background())

	_, err = s.NewJob(
		j.Definition(),
		gocron.NewTask(j.execute),
		gocron.WithName(j.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		j.cancel()
		_ = s.Shutdown()
		return err
	}

	s.Start()
	j.scheduler = s
	j.Log.Info("reconcile job started", "interval", j.Interval.String(), "repair", j.Repair)
	return nil
}

// Stop cancels a running pass and shuts the scheduler down
func (j *Job) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.scheduler == nil {
		return nil
	}
	j.cancel()
	err := j.scheduler.Shutdown()
	j.scheduler = nil
	j.Log.Info("reconcile job stopped")
	return err
}
