package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/uniauth/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultSweepSpec          = "@daily"
	defaultAuditSpec          = "@daily"
	defaultJobTimeout         = 5 * time.Minute

	// SweepJob and AuditJob name the jobs reported to a JobRecorder.
	SweepJob = "tmp_account_sweep"
	AuditJob = "audit_cleanup"
)

// Sweeper removes stale temporary accounts.
type Sweeper interface {
	SweepTemporaryAccounts(ctx context.Context) (int64, error)
}

// AuditPruner enforces audit log retention.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// JobRecorder receives the outcome of every job run.
type JobRecorder interface {
	RecordJob(job string, err error, duration time.Duration)
}

// Cleaner coordinates background maintenance: the scheduled temporary account
// sweep, which backs up the sweep run on every user creation, and audit log retention.
type Cleaner struct {
	sweeper   Sweeper
	audit     AuditPruner
	cron      *cron.Cron
	recorder  JobRecorder
	log       *zap.Logger
	retention int
	timeout   time.Duration

	sweepSchedule string
	auditSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSweepSchedule overrides the cron expression for the temporary account sweep.
func WithSweepSchedule(schedule string) Option {
	return func(cleaner *Cleaner) {
		if schedule != "" {
			cleaner.sweepSchedule = schedule
		}
	}
}

// WithAuditSchedule overrides the cron expression for audit retention enforcement.
func WithAuditSchedule(schedule string) Option {
	return func(cleaner *Cleaner) {
		if schedule != "" {
			cleaner.auditSchedule = schedule
		}
	}
}

// WithJobTimeout bounds how long a single scheduled job may run.
func WithJobTimeout(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.timeout = d
		}
	}
}

// WithJobRecorder reports job outcomes, typically to the health tracker.
func WithJobRecorder(r JobRecorder) Option {
	return func(cleaner *Cleaner) {
		cleaner.recorder = r
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding job being skipped.
func NewCleaner(sweeper Sweeper, audit AuditPruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sweeper:       sweeper,
		audit:         audit,
		retention:     defaultAuditRetentionDays,
		timeout:       defaultJobTimeout,
		sweepSchedule: defaultSweepSpec,
		auditSchedule: defaultAuditSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

func (c *Cleaner) enabled() bool {
	return c.sweeper != nil || (c.audit != nil && c.retention > 0)
}

// Start registers jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled() {
		return nil
	}

	if c.sweeper != nil {
		if _, err := c.cron.AddFunc(c.sweepSchedule, c.job(SweepJob, c.sweep)); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, c.job(AuditJob, c.pruneAudit)); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

func (c *Cleaner) job(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.track(ctx, name, run); err != nil {
			c.log.Warn("maintenance job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

func (c *Cleaner) track(ctx context.Context, name string, run func(context.Context) error) error {
	start := time.Now()
	err := run(ctx)
	if c.recorder != nil {
		c.recorder.RecordJob(name, err, time.Since(start))
	}
	return err
}

func (c *Cleaner) sweep(ctx context.Context) error {
	deleted, err := c.sweeper.SweepTemporaryAccounts(ctx)
	if err != nil {
		return err
	}
	if deleted > 0 {
		c.log.Info("scheduled sweep removed temporary accounts", zap.Int64("deleted", deleted))
	}
	return nil
}

func (c *Cleaner) pruneAudit(ctx context.Context) error {
	removed, err := c.audit.CleanupOlderThan(ctx, c.retention)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Debug("pruned audit logs", zap.Int64("removed", removed), zap.Int("retention_days", c.retention))
	}
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured jobs sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sweeper != nil {
		if err := c.track(ctx, SweepJob, c.sweep); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if err := c.track(ctx, AuditJob, c.pruneAudit); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
