package cmd

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/observability"
	"github.com/xkilldash9x/seatctl/internal/service"
	"github.com/xkilldash9x/seatctl/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Re-check every account's login periodically and expose metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return withComponents(cmd, func(ctx context.Context, comps *service.Components) error {
				var health func(context.Context) error
				if comps.DBPool != nil {
					health = comps.DBPool.Ping
				}
				var jobs jobGetter
				if comps.Store != nil {
					jobs = comps.Store
				}
				var handler http.Handler
				if cfg.Metrics().Enabled {
					handler = newRouter(health, comps.Metrics.Handler(), jobs)
				}
				return serve(ctx, comps.Service, cfg.Metrics().Address, handler, observability.GetLogger())
			})
		},
	}
}

type jobGetter interface {
	GetJob(ctx context.Context, id string) (*schemas.InviteJob, error)
}

// newRouter exposes liveness, prometheus metrics and read-only job records.
func newRouter(health func(context.Context) error, metrics http.Handler, jobs jobGetter) http.Handler {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	if metrics != nil {
		router.Handle("/metrics", metrics)
	}
	if jobs != nil {
		router.Get("/api/jobs/{jobID}", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(chi.URLParam(r, "jobID"))
			job, err := jobs.GetJob(r.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "job not found", http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, "failed to load job", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(job)
		})
	}
	return router
}

// serve runs the login watcher and, when handler is set, the HTTP listener until ctx ends.
// Cancellation is a normal stop.
func serve(ctx context.Context, svc *service.Service, addr string, handler http.Handler, logger *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.Watch(ctx)
	})

	if handler != nil {
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		}
		g.Go(func() error {
			logger.Info("Serving metrics", zap.String("address", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("Serve stopped.")
		return nil
	}
	return err
}
