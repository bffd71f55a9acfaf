// internal/browser/pool.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/seatctl/internal/observability"
)

// PoolOptions configures a Pool.
type PoolOptions struct {
	// Capacity bounds the number of browser processes, and therefore concurrent leases.
	Capacity int
	// LaunchTimeout bounds how long Acquire may wait for a free slot plus a launch.
	LaunchTimeout time.Duration
	Headless      bool
	Metrics       *observability.Metrics
}

// Lease is a caller's exclusive use of a pooled browser process.
type Lease struct {
	ID      string
	Browser Browser
	pool    *Pool
}

// Release returns the process to the pool.
func (l *Lease) Release() {
	l.pool.Release(l.ID)
}

// Pool lends a bounded set of long-lived browser processes. Processes survive a release;
// pages do not.
type Pool struct {
	launcher Launcher
	opts     PoolOptions
	logger   *zap.Logger
	slots    *semaphore.Weighted

	mu        sync.Mutex
	idle      []Browser
	leases    map[string]*Lease
	processes int
	closed    bool
	drained   chan struct{}
}

// NewPool creates an empty pool; processes are launched on demand.
func NewPool(launcher Launcher, opts PoolOptions, logger *zap.Logger) (*Pool, error) {
	if launcher == nil {
		return nil, errors.New("launcher cannot be nil")
	}
	if opts.Capacity <= 0 {
		return nil, errors.New("pool capacity must be positive")
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = 30 * time.Second
	}
	return &Pool{
		launcher: launcher,
		opts:     opts,
		logger:   logger.With(zap.String("component", "browser_pool")),
		slots:    semaphore.NewWeighted(int64(opts.Capacity)),
		leases:   make(map[string]*Lease),
	}, nil
}

// Acquire lends an idle process, launching one if none is idle. It waits for a free slot
// at most LaunchTimeout and wraps every failure in ErrLaunchFailure.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.LaunchTimeout)
	defer cancel()

	if p.isClosed() {
		return nil, ErrPoolClosed
	}
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: no browser became available within %v: %v", ErrLaunchFailure, p.opts.LaunchTimeout, err)
	}

	b, err := p.takeIdle(ctx)
	if err == nil && b == nil {
		b, err = p.launch(ctx)
	}
	if err != nil {
		p.slots.Release(1)
		return nil, err
	}

	lease := &Lease{ID: uuid.NewString(), Browser: b, pool: p}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.retire(b)
		p.slots.Release(1)
		return nil, ErrPoolClosed
	}
	p.leases[lease.ID] = lease
	p.mu.Unlock()

	p.opts.Metrics.LeaseAcquired()
	p.logger.Debug("Lease acquired", zap.String("lease_id", lease.ID))
	return lease, nil
}

// takeIdle pops idle processes until one answers a ping. Dead ones are discarded.
func (p *Pool) takeIdle(ctx context.Context) (Browser, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		n := len(p.idle)
		if n == 0 {
			p.mu.Unlock()
			return nil, nil
		}
		b := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := b.Ping(pingCtx)
		cancel()
		if err == nil {
			return b, nil
		}
		p.logger.Warn("Discarding unresponsive browser process", zap.Error(err))
		p.retire(b)
	}
}

func (p *Pool) launch(ctx context.Context) (Browser, error) {
	b, err := p.launcher.Launch(ctx, LaunchOptions{Headless: p.opts.Headless, Isolate: true})
	if err != nil {
		if !errors.Is(err, ErrLaunchFailure) {
			err = fmt.Errorf("%w: %v", ErrLaunchFailure, err)
		}
		p.logger.Error("Failed to launch browser process", zap.Error(err))
		return nil, err
	}
	p.mu.Lock()
	p.processes++
	p.opts.Metrics.SetProcesses(p.processes)
	p.mu.Unlock()
	p.logger.Info("Launched pooled browser process")
	return b, nil
}

// retire closes a process the pool no longer tracks as idle or leased.
func (p *Pool) retire(b Browser) {
	if err := b.Close(); err != nil {
		p.logger.Warn("Failed to close browser process", zap.Error(err))
	}
	p.mu.Lock()
	p.processes--
	p.opts.Metrics.SetProcesses(p.processes)
	p.mu.Unlock()
}

// Release returns a leased process to the idle set without closing it. Unknown or already
// released ids are ignored.
func (p *Pool) Release(leaseID string) {
	p.mu.Lock()
	lease, ok := p.leases[leaseID]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.leases, leaseID)
	closed := p.closed
	if !closed {
		p.idle = append(p.idle, lease.Browser)
	}
	if closed && len(p.leases) == 0 && p.drained != nil {
		close(p.drained)
		p.drained = nil
	}
	p.mu.Unlock()

	if closed {
		p.retire(lease.Browser)
	}
	p.slots.Release(1)
	p.opts.Metrics.LeaseReleased()
	p.logger.Debug("Lease released", zap.String("lease_id", leaseID))
}

// CreatePage opens a fresh, isolated browsing context inside b.
func (p *Pool) CreatePage(ctx context.Context, b Browser) (Page, error) {
	pg, err := b.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return pg, nil
}

// Stats reports the current process and lease counts.
func (p *Pool) Stats() (processes, leased, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processes, len(p.leases), len(p.idle)
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close stops lending, closes idle processes and waits, until ctx is done, for outstanding
// leases to come back. Processes still leased when ctx ends are closed on release.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	var drained chan struct{}
	if len(p.leases) > 0 {
		drained = make(chan struct{})
		p.drained = drained
	}
	p.mu.Unlock()

	p.logger.Info("Browser pool shutdown initiated.", zap.Int("idle", len(idle)))
	for _, b := range idle {
		p.retire(b)
	}

	if drained == nil {
		return nil
	}
	select {
	case <-drained:
		p.logger.Info("All leases returned.")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Shutdown deadline exceeded with leases outstanding.", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
