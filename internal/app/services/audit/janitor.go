package audit

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/myrc-project/myrc/internal/app/system"
	"github.com/myrc-project/myrc/pkg/logger"
)

// Janitor runs the audit maintenance chores: an immediate sweep of stale
// PENDING records at startup, then sweep plus retention purge on the
// configured cron schedule.
type Janitor struct {
	service        *Service
	schedule       string
	pendingTimeout time.Duration
	retention      time.Duration
	log            *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

var _ system.Service = (*Janitor)(nil)

// NewJanitor constructs the maintenance runner. The schedule uses standard
// five-field cron syntax.
func NewJanitor(service *Service, schedule string, pendingTimeout, retention time.Duration, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.NewDefault("audit-janitor")
	}
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	if pendingTimeout <= 0 {
		pendingTimeout = 15 * time.Minute
	}
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}
	return &Janitor{
		service:        service,
		schedule:       schedule,
		pendingTimeout: pendingTimeout,
		retention:      retention,
		log:            log,
	}
}

func (j *Janitor) Name() string { return "audit-janitor" }

// Start sweeps once immediately, then schedules the recurring run.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}

	if _, err := j.service.SweepStale(ctx, j.pendingTimeout); err != nil {
		j.log.WithError(err).Warn("startup audit sweep failed")
	}

	runner := cron.New()
	if _, err := runner.AddFunc(j.schedule, j.run); err != nil {
		return err
	}
	runner.Start()

	j.cron = runner
	j.running = true
	j.log.WithFields(map[string]interface{}{"schedule": j.schedule}).Info("audit janitor started")
	return nil
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := j.service.SweepStale(ctx, j.pendingTimeout); err != nil {
		j.log.WithError(err).Warn("scheduled audit sweep failed")
	}
	if _, err := j.service.Purge(ctx, j.retention); err != nil {
		j.log.WithError(err).Warn("scheduled audit purge failed")
	}
}

// Stop halts the schedule and waits for a running job to finish, bounded by
// the caller's context.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	runner := j.cron
	j.cron = nil
	j.running = false
	j.mu.Unlock()

	if runner == nil {
		return nil
	}

	done := runner.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
