package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/monitoring"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/services"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/metrics"
)

const (
	defaultAuditRetentionDays = 90
	defaultExpirySpec         = "@every 5m"
	defaultAuditSpec          = "@daily"

	auditActionExpire = "credential.expire"

	jobExpirySweep  = "expiry_sweep"
	jobAuditCleanup = "audit_cleanup"
)

// ExpirySweeper deactivates credentials whose expiry has passed.
type ExpirySweeper interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner coordinates background maintenance: deactivating expired
// credentials and pruning stale audit logs.
type Cleaner struct {
	sweeper   ExpirySweeper
	audit     *services.AuditService
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	enabled   bool
	retention int

	expirySchedule string
	auditSchedule  string
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

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
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

// WithExpirySchedule overrides the cron specification for the expiry sweep.
func WithExpirySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.expirySchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding job being skipped.
func NewCleaner(sweeper ExpirySweeper, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sweeper:        sweeper,
		audit:          audit,
		now:            time.Now,
		retention:      defaultAuditRetentionDays,
		expirySchedule: defaultExpirySpec,
		auditSchedule:  defaultAuditSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.sweeper != nil || cleaner.audit != nil

	return cleaner
}

// Start registers maintenance jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.sweeper != nil {
		if _, err := c.cron.AddFunc(c.expirySchedule, func() {
			start := time.Now()
			_, err := c.sweepExpired(context.Background())
			monitoring.RecordJobRun(jobExpirySweep, err, time.Since(start))
			if err != nil {
				c.log.Warn("expiry sweep failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule expiry sweep: %w", err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			start := time.Now()
			_, err := c.audit.CleanupOlderThan(context.Background(), c.retention)
			monitoring.RecordJobRun(jobAuditCleanup, err, time.Since(start))
			if err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule audit cleanup: %w", err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured maintenance routines sequentially. Primarily used in tests
// and by the CLI.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sweeper != nil {
		if _, err := c.sweepExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) sweepExpired(ctx context.Context) (int64, error) {
	n, err := SweepExpired(ctx, c.sweeper, c.now())
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	c.log.Info("expired credentials deactivated", zap.Int64("count", n))
	if c.audit != nil {
		if err := c.audit.Log(ctx, services.AuditEntry{
			Action:   auditActionExpire,
			Result:   "success",
			Actor:    "maintenance",
			Metadata: map[string]any{"count": n},
		}); err != nil {
			c.log.Warn("audit record failed", zap.String("action", auditActionExpire), zap.Error(err))
		}
	}
	return n, nil
}

// SweepExpired deactivates every active credential whose expiry is at or
// before now and returns how many were changed.
func SweepExpired(ctx context.Context, sweeper ExpirySweeper, now time.Time) (int64, error) {
	if sweeper == nil {
		return 0, errors.New("sweep expired: sweeper is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	n, err := sweeper.DeactivateExpired(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	metrics.CredentialsExpired.Add(float64(n))
	return n, nil
}
