package service

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/internal/browser"
	"github.com/xkilldash9x/seatctl/internal/config"
	"github.com/xkilldash9x/seatctl/internal/engine"
	"github.com/xkilldash9x/seatctl/internal/observability"
	"github.com/xkilldash9x/seatctl/internal/store"
)

// ComponentFactory builds the components of a command. Tests swap it for a fake.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger, opts ...Option) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create connects the database, migrates it, and wires the browser pool, the profiles, the
// job runner and the service. The runner is started under ctx. On error every component
// created so far is shut down.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger, opts ...Option) (comps *Components, err error) {
	c := &Components{logger: logger}
	defer func() {
		if err != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(err))
			c.Shutdown()
		}
	}()

	c.DBPool, err = InitializeDBPool(ctx, cfg.Database(), logger)
	if err != nil {
		return nil, err
	}
	c.Store, err = store.New(ctx, c.DBPool, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database store: %w", err)
	}
	if err = c.Store.Migrate(ctx); err != nil {
		return nil, err
	}

	cipher, err := InitializeCipher(cfg.Secrets(), logger)
	if err != nil {
		return nil, err
	}

	c.Registry = prometheus.NewRegistry()
	c.Metrics = observability.NewMetrics(c.Registry)

	launcher := browser.NewChromeLauncher(cfg.Browser(), logger)
	c.Pool, err = browser.NewPool(launcher, browser.PoolOptions{
		Capacity:      cfg.Browser().PoolSize,
		LaunchTimeout: cfg.Browser().LaunchTimeout,
		Headless:      cfg.Browser().Headless,
		Metrics:       c.Metrics,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser pool: %w", err)
	}
	c.Profiles = browser.NewProfiles(cfg.Browser().ProfileRoot, launcher, logger)
	logger.Debug("Browser pool initialized.", zap.Int("capacity", cfg.Browser().PoolSize))

	c.Engine, err = engine.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize task engine: %w", err)
	}
	c.Engine.Start(ctx)

	c.Service, err = New(cfg, Dependencies{
		Store:    c.Store,
		Opener:   NewBrowserOpener(cfg, c.Pool, c.Profiles, c.Metrics, logger),
		Profiles: c.Profiles,
		Secrets:  cipher,
		Runner:   c.Engine,
	}, logger, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info("All components initialized successfully.")
	return c, nil
}
