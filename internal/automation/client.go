package automation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/config"
	"github.com/xkilldash9x/seatctl/internal/observability"
)

// Options bounds every wait the client performs.
type Options struct {
	BaseURL     string
	LoginPath   string
	MembersPath string
	// Headless disables the manual-assist login path.
	Headless    bool
	Interactive bool
	// Locale selects the language of the manual-assist banner.
	Locale string

	ManualLoginTimeout time.Duration
	ManualPollInterval time.Duration
	ScreenshotDir      string
	NavigationTimeout  time.Duration
	ElementTimeout     time.Duration
	ActionTimeout      time.Duration
	DialogTimeout      time.Duration
	WorkspaceAttempts  int
	WorkspaceTimeout   time.Duration
	NavigationRetries  int
	ResponseTimeout    time.Duration
	FallbackTimeout    time.Duration
	ConfirmTimeout     time.Duration
	PollInterval       time.Duration
	SettleDelay        time.Duration
	StepDelay          time.Duration
}

// OptionsFromConfig maps configuration onto client options.
func OptionsFromConfig(cfg config.Interface, headless bool) Options {
	a := cfg.Automation()
	return Options{
		BaseURL:            a.BaseURL,
		LoginPath:          a.LoginPath,
		MembersPath:        a.MembersPath,
		Headless:           headless,
		Interactive:        a.Interactive,
		Locale:             cfg.Service().Locale,
		ManualLoginTimeout: a.ManualLoginTimeout,
		ManualPollInterval: a.ManualPollInterval,
		ScreenshotDir:      a.ScreenshotDir,
		NavigationTimeout:  a.NavigationTimeout,
		ElementTimeout:     a.ElementTimeout,
		ActionTimeout:      a.ActionTimeout,
		DialogTimeout:      a.DialogTimeout,
		WorkspaceAttempts:  a.WorkspaceAttempts,
		WorkspaceTimeout:   a.WorkspaceTimeout,
		NavigationRetries:  a.NavigationRetries,
		ResponseTimeout:    a.ResponseTimeout,
		FallbackTimeout:    a.FallbackTimeout,
		ConfirmTimeout:     a.ConfirmTimeout,
		PollInterval:       a.PollInterval,
		SettleDelay:        a.SettleDelay,
		StepDelay:          a.StepDelay,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records session probes and invite outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithReleaser runs release after the page is closed, typically a lease release or a
// dedicated browser shutdown.
func WithReleaser(release func()) Option {
	return func(c *Client) { c.release = release }
}

// WithClock overrides the time source used to name screenshots.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client drives one page. Its methods must not be called concurrently.
type Client struct {
	page    Page
	opts    Options
	logger  *zap.Logger
	metrics *observability.Metrics
	release func()
	now     func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewClient wraps page. The client owns the page from here on.
func NewClient(page Page, opts Options, logger *zap.Logger, options ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.WorkspaceAttempts <= 0 {
		opts.WorkspaceAttempts = 3
	}
	if opts.NavigationRetries <= 0 {
		opts.NavigationRetries = 3
	}
	if opts.ManualPollInterval <= 0 {
		opts.ManualPollInterval = 2 * time.Second
	}
	// Every wait is bounded.
	for _, d := range []struct {
		field *time.Duration
		def   time.Duration
	}{
		{&opts.ManualLoginTimeout, 8 * time.Minute},
		{&opts.NavigationTimeout, 60 * time.Second},
		{&opts.ElementTimeout, 10 * time.Second},
		{&opts.ActionTimeout, 3 * time.Second},
		{&opts.DialogTimeout, 5 * time.Second},
		{&opts.WorkspaceTimeout, 15 * time.Second},
		{&opts.ResponseTimeout, 15 * time.Second},
		{&opts.FallbackTimeout, 8 * time.Second},
		{&opts.ConfirmTimeout, 20 * time.Second},
	} {
		if *d.field <= 0 {
			*d.field = d.def
		}
	}
	c := &Client{
		page:   page,
		opts:   opts,
		logger: logger.Named("automation"),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Page exposes the underlying page.
func (c *Client) Page() Page { return c.page }

// Close closes the page, then runs the releaser. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.page.Close()
		if c.release != nil {
			c.release()
		}
	})
	return c.closeErr
}

// SeedCookies installs a stored session artifact before the first navigation.
func (c *Client) SeedCookies(ctx context.Context, cookies []schemas.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	if err := c.page.SetCookies(ctx, cookies); err != nil {
		return fmt.Errorf("failed to seed %d cookies: %w", len(cookies), err)
	}
	return nil
}

// Cookies captures the page's cookies so a successful login can be stored.
func (c *Client) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	cookies, err := c.page.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture cookies: %w", err)
	}
	return cookies, nil
}

// Screenshot writes a full-page PNG named after prefix and returns its path.
// Capture failures are logged and yield an empty path.
func (c *Client) Screenshot(ctx context.Context, prefix string) string {
	if c.opts.ScreenshotDir == "" {
		return ""
	}
	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	buf, err := c.page.Screenshot(shotCtx)
	if err != nil {
		c.logger.Warn("Screenshot capture failed.", zap.String("prefix", prefix), zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(c.opts.ScreenshotDir, 0o755); err != nil {
		c.logger.Warn("Screenshot directory unavailable.", zap.Error(err))
		return ""
	}
	path := filepath.Join(c.opts.ScreenshotDir, fmt.Sprintf("%s-%d.png", prefix, c.now().UnixMilli()))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		c.logger.Warn("Screenshot write failed.", zap.String("path", path), zap.Error(err))
		return ""
	}
	c.logger.Info("Captured debug screenshot.", zap.String("screenshot", path))
	return path
}

// fail attaches a screenshot to err and logs it.
func (c *Client) fail(ctx context.Context, err *Error, prefix string) *Error {
	err.Screenshot = c.Screenshot(ctx, prefix)
	c.logger.Error("Automation step failed.",
		zap.String("code", string(err.Code)),
		zap.String("op", err.Op),
		zap.String("screenshot", err.Screenshot),
		zap.Error(err.Err),
	)
	return err
}

func (c *Client) url(path string) string {
	return c.opts.BaseURL + path
}

// navigate loads url within the navigation timeout and waits for the body.
func (c *Client) navigate(ctx context.Context, url string) error {
	navCtx, cancel := withTimeout(ctx, c.opts.NavigationTimeout)
	defer cancel()
	if err := c.page.Navigate(navCtx, url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	c.waitBody(ctx)
	return nil
}

// waitBody waits for the document body. Slow renders are tolerated.
func (c *Client) waitBody(ctx context.Context) {
	waitCtx, cancel := withTimeout(ctx, c.opts.ElementTimeout)
	defer cancel()
	if err := c.page.WaitReady(waitCtx, "body"); err != nil {
		c.logger.Debug("Body not ready before classification.", zap.Error(err))
	}
}

func (c *Client) currentURL(ctx context.Context) string {
	u, err := c.page.URL(ctx)
	if err != nil {
		c.logger.Debug("Could not read page URL.", zap.Error(err))
	}
	return u
}

func (c *Client) snapshot(ctx context.Context) (*Snapshot, error) {
	return TakeSnapshot(ctx, c.page)
}
