package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/automation"
	"github.com/xkilldash9x/seatctl/internal/browser"
	"github.com/xkilldash9x/seatctl/internal/config"
	"github.com/xkilldash9x/seatctl/internal/observability"
)

// browserOpener opens automation clients on pooled or dedicated profile browsers.
type browserOpener struct {
	cfg      config.Interface
	pool     *browser.Pool
	profiles *browser.Profiles
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewBrowserOpener returns the production Opener.
func NewBrowserOpener(cfg config.Interface, pool *browser.Pool, profiles *browser.Profiles, metrics *observability.Metrics, logger *zap.Logger) Opener {
	return &browserOpener{cfg: cfg, pool: pool, profiles: profiles, metrics: metrics, logger: logger}
}

// Open returns a client that owns its browser resources. Closing the client closes the
// dedicated browser or releases the lease; every error path here does the same.
func (o *browserOpener) Open(ctx context.Context, acct schemas.Account, opts OpenOptions) (Session, error) {
	logger := o.logger.With(zap.String("account_id", acct.ID))
	copts := automation.OptionsFromConfig(o.cfg, opts.Headless)
	copts.Interactive = opts.Interactive

	if opts.Dedicated {
		b, err := o.profiles.Launch(ctx, acct.ID, opts.Headless)
		if err != nil {
			return nil, automation.LaunchError(err)
		}
		page, err := b.NewPage(ctx)
		if err != nil {
			_ = b.Close()
			return nil, automation.LaunchError(err)
		}
		closeBrowser := func() {
			if err := b.Close(); err != nil {
				logger.Warn("Failed to close dedicated browser.", zap.Error(err))
			}
		}
		return automation.NewClient(page, copts, logger,
			automation.WithMetrics(o.metrics), automation.WithReleaser(closeBrowser)), nil
	}

	lease, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, automation.LaunchError(err)
	}
	page, err := o.pool.CreatePage(ctx, lease.Browser)
	if err != nil {
		lease.Release()
		return nil, automation.LaunchError(err)
	}
	logger.Debug("Opened pooled session.", zap.String("lease_id", lease.ID))
	return automation.NewClient(page, copts, logger,
		automation.WithMetrics(o.metrics), automation.WithReleaser(lease.Release)), nil
}
