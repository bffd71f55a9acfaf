package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/internal/browser"
	"github.com/xkilldash9x/seatctl/internal/engine"
	"github.com/xkilldash9x/seatctl/internal/observability"
	"github.com/xkilldash9x/seatctl/internal/store"
)

// Components holds everything a command needs and owns its shutdown order.
type Components struct {
	Service  *Service
	Store    *store.Store
	Pool     *browser.Pool
	Profiles *browser.Profiles
	Engine   *engine.TaskEngine
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	DBPool   *pgxpool.Pool

	logger *zap.Logger
}

// Shutdown releases resources in dependency order: the job runner first so no new browser
// work starts, then the browser pool, then the database.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = observability.GetLogger()
	}
	logger.Debug("Beginning components shutdown sequence.")

	if c.Engine != nil {
		c.Engine.Stop()
		logger.Debug("Task engine stopped.")
	}

	if c.Pool != nil {
		// The caller's context may already be gone; give the pool its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.Pool.Close(shutdownCtx); err != nil {
			logger.Warn("Error during browser pool shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser pool shut down.")
		}
	}

	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All components shut down.")
}
