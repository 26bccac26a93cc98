package maintenance

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/regprofile/pkg/logger"
)

const defaultDraftSweepSpec = "@hourly"

// DraftPurger removes drafts that can no longer be read.
type DraftPurger interface {
	PurgeStale(ctx context.Context) (int64, error)
}

// Cleaner runs background maintenance. Draft reads already treat expired rows as
// absent, so the sweep only reclaims storage.
type Cleaner struct {
	drafts DraftPurger
	cron   *cron.Cron
	log    *zap.Logger

	draftSchedule string
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

// WithDraftSchedule overrides the cron specification for the draft sweep.
func WithDraftSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.draftSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil purger disables the draft sweep.
func NewCleaner(drafts DraftPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		drafts:        drafts,
		draftSchedule: defaultDraftSweepSpec,
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

// Start registers jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.drafts == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.draftSchedule, func() {
		if _, err := c.sweepDrafts(context.Background()); err != nil {
			c.log.Warn("draft sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, returning a context that is done once running jobs complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.drafts != nil {
		if _, err := c.sweepDrafts(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) sweepDrafts(ctx context.Context) (int64, error) {
	if c.drafts == nil {
		return 0, errors.New("draft sweep: purger is required")
	}

	removed, err := c.drafts.PurgeStale(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Info("purged stale drafts", zap.Int64("count", removed))
	}
	return removed, nil
}
