// internal/browser/pool_test.go
package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/seatctl/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Test Doubles --

type stubPage struct {
	Page
	closed atomic.Bool
}

func (s *stubPage) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeBrowser struct {
	id      int
	pages   atomic.Int32
	closed  atomic.Bool
	mu      sync.Mutex
	pingErr error
}

func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.pages.Add(1)
	return &stubPage{}, nil
}

func (b *fakeBrowser) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pingErr
}

func (b *fakeBrowser) Close() error {
	b.closed.Store(true)
	return nil
}

func (b *fakeBrowser) kill() {
	b.mu.Lock()
	b.pingErr = errors.New("target closed")
	b.mu.Unlock()
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []*fakeBrowser
	failures int
	lastOpts LaunchOptions
}

func (l *fakeLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastOpts = opts
	if l.failures > 0 {
		l.failures--
		return nil, errors.New("exec: chrome not found")
	}
	b := &fakeBrowser{id: len(l.launched) + 1}
	l.launched = append(l.launched, b)
	return b, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func newTestPool(t *testing.T, launcher Launcher, capacity int, timeout time.Duration) *Pool {
	t.Helper()
	pool, err := NewPool(launcher, PoolOptions{Capacity: capacity, LaunchTimeout: timeout, Headless: true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return pool
}

// -- Test Cases --

func TestNewPoolValidation(t *testing.T) {
	_, err := NewPool(nil, PoolOptions{Capacity: 1}, zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = NewPool(&fakeLauncher{}, PoolOptions{Capacity: 0}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestPoolReusesReleasedProcess(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := newTestPool(t, launcher, 2, time.Second)
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, launcher.lastOpts.Isolate, "pooled pages must get their own browser context")
	assert.True(t, launcher.lastOpts.Headless)
	first.Release()

	second, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer second.Release()

	assert.Equal(t, 1, launcher.count(), "an idle process must be reused")
	assert.Same(t, first.Browser, second.Browser)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, launcher.launched[0].closed.Load(), "release must not close the process")
}

func TestPoolLaunchesUpToCapacity(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := newTestPool(t, launcher, 2, 50*time.Millisecond)
	ctx := context.Background()

	a, err := pool.Acquire(ctx)
	require.NoError(t, err)
	b, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, a.Browser, b.Browser)

	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLaunchFailure)
	assert.Equal(t, 2, launcher.count())

	a.Release()
	b.Release()
}

func TestPoolQueuedAcquireGetsReleasedProcess(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := newTestPool(t, launcher, 1, 2*time.Second)
	ctx := context.Background()

	held, err := pool.Acquire(ctx)
	require.NoError(t, err)

	got := make(chan *Lease, 1)
	go func() {
		lease, err := pool.Acquire(ctx)
		if err == nil {
			got <- lease
		}
		close(got)
	}()

	time.Sleep(20 * time.Millisecond)
	held.Release()

	lease, ok := <-got
	require.True(t, ok)
	require.NotNil(t, lease)
	assert.Same(t, held.Browser, lease.Browser)
	lease.Release()
}

func TestPoolReleaseIsIdempotent(t *testing.T) {
	pool := newTestPool(t, &fakeLauncher{}, 1, time.Second)

	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		pool.Release("unknown-lease")
		lease.Release()
		lease.Release()
	})
	processes, leased, idle := pool.Stats()
	assert.Equal(t, 1, processes)
	assert.Equal(t, 0, leased)
	assert.Equal(t, 1, idle)

	// The slot was returned exactly once, so the single slot is usable again.
	again, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	again.Release()
}

func TestPoolLaunchFailureFreesSlot(t *testing.T) {
	launcher := &fakeLauncher{failures: 1}
	pool := newTestPool(t, launcher, 1, time.Second)

	_, err := pool.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLaunchFailure)

	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()
}

func TestPoolDiscardsDeadIdleProcess(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := newTestPool(t, launcher, 1, time.Second)

	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()
	launcher.launched[0].kill()

	fresh, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer fresh.Release()

	assert.Equal(t, 2, launcher.count())
	assert.True(t, launcher.launched[0].closed.Load())
	processes, _, _ := pool.Stats()
	assert.Equal(t, 1, processes)
}

func TestPoolCreatePageIsolatesLeases(t *testing.T) {
	pool := newTestPool(t, &fakeLauncher{}, 1, time.Second)
	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	p1, err := pool.CreatePage(context.Background(), lease.Browser)
	require.NoError(t, err)
	p2, err := pool.CreatePage(context.Background(), lease.Browser)
	require.NoError(t, err)

	assert.NotSame(t, p1, p2)
	assert.Equal(t, int32(2), lease.Browser.(*fakeBrowser).pages.Load())
}

func TestPoolClose(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := newTestPool(t, launcher, 2, time.Second)
	ctx := context.Background()

	idle, err := pool.Acquire(ctx)
	require.NoError(t, err)
	held, err := pool.Acquire(ctx)
	require.NoError(t, err)
	idle.Release()

	closeCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err = pool.Close(closeCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a lease is still outstanding")
	assert.True(t, idle.Browser.(*fakeBrowser).closed.Load())
	assert.False(t, held.Browser.(*fakeBrowser).closed.Load())

	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, ErrPoolClosed)

	held.Release()
	assert.True(t, held.Browser.(*fakeBrowser).closed.Load(), "leases returned after close are terminated")
	processes, _, _ := pool.Stats()
	assert.Equal(t, 0, processes)
}

func TestPoolMetrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	pool, err := NewPool(&fakeLauncher{}, PoolOptions{Capacity: 2, Metrics: metrics}, zaptest.NewLogger(t))
	require.NoError(t, err)

	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LeasesActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Processes))

	lease.Release()
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.LeasesActive))
}
