package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Watch re-checks the login of every account once per check interval until ctx ends.
// Probes are throttled to the configured rate so a large account list does not launch a
// burst of browsers.
func (s *Service) Watch(ctx context.Context) error {
	interval := s.cfg.Service().CheckInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	perMinute := s.cfg.Service().CheckRate
	if perMinute <= 0 {
		perMinute = 4
	}
	limiter := rate.NewLimiter(rate.Limit(perMinute/60), 1)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Login watcher started.", zap.Duration("interval", interval), zap.Float64("per_minute", perMinute))
	for {
		s.checkAll(ctx, limiter)
		select {
		case <-ctx.Done():
			s.logger.Info("Login watcher stopped.")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) checkAll(ctx context.Context, limiter *rate.Limiter) {
	accounts, err := s.deps.Store.ListAccounts(ctx)
	if err != nil {
		s.logger.Error("Watcher could not list accounts.", zap.Error(err))
		return
	}
	for _, acct := range accounts {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		st, err := s.CheckLogin(ctx, acct.ID)
		if err != nil {
			s.logger.Warn("Scheduled login check failed.", zap.String("account_id", acct.ID), zap.Error(err))
			continue
		}
		s.logger.Info("Scheduled login check.",
			zap.String("account_id", acct.ID),
			zap.Bool("logged_in", st.LoggedIn),
			zap.String("message", st.Message),
		)
	}
}
