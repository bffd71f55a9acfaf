// internal/browser/launcher.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/internal/config"
)

// ChromeLauncher starts Chrome through chromedp's exec allocator.
type ChromeLauncher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewChromeLauncher creates a launcher for the configured browser.
func NewChromeLauncher(cfg config.BrowserConfig, logger *zap.Logger) *ChromeLauncher {
	return &ChromeLauncher{cfg: cfg, logger: logger.Named("launcher")}
}

// Launch starts a browser process and waits, within ctx, until its first tab answers.
// The process outlives ctx; it ends when the returned Browser is closed.
func (l *ChromeLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), buildAllocatorOptions(l.cfg, opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(browserCtx, chromedp.Navigate("about:blank"))
	}()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("%w: browser failed to start or respond: %v", ErrLaunchFailure, err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %v", ErrLaunchFailure, ctx.Err())
	}

	l.logger.Debug("Browser launched",
		zap.Bool("headless", opts.Headless),
		zap.String("user_data_dir", opts.UserDataDir))

	return &chromeBrowser{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		isolate: opts.Isolate,
		logger:  l.logger,
	}, nil
}

type chromeBrowser struct {
	ctx     context.Context
	cancel  context.CancelFunc
	isolate bool
	logger  *zap.Logger
}

func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	var tabOpts []chromedp.ContextOption
	if b.isolate {
		tabOpts = append(tabOpts, chromedp.WithNewBrowserContext())
	}
	tabCtx, tabCancel := chromedp.NewContext(b.ctx, tabOpts...)
	return newChromePage(ctx, tabCtx, tabCancel, b.logger)
}

func (b *chromeBrowser) Ping(ctx context.Context) error {
	runCtx, cancel := CombineContext(b.ctx, ctx)
	defer cancel()
	var n int
	return chromedp.Run(runCtx, chromedp.Evaluate("1", &n))
}

func (b *chromeBrowser) Close() error {
	b.cancel()
	return nil
}

// buildAllocatorOptions assembles the allocator options for one launch.
func buildAllocatorOptions(cfg config.BrowserConfig, opts LaunchOptions) []chromedp.ExecAllocatorOption {
	all := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := allocatorFlags(cfg, opts, runtime.GOOS)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		all = append(all, chromedp.Flag(name, flags[name]))
	}

	if opts.UserDataDir != "" {
		all = append(all, chromedp.UserDataDir(opts.UserDataDir))
	}
	if cfg.ExecPath != "" {
		all = append(all, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		all = append(all, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	return all
}

// allocatorFlags computes the command line flags layered on top of chromedp's defaults.
// A false value removes a default flag.
func allocatorFlags(cfg config.BrowserConfig, opts LaunchOptions, goos string) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                  opts.Headless,
		"enable-automation":         false,
		"disable-blink-features":    "AutomationControlled",
		"disable-extensions":        true,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
	}
	if opts.Headless {
		flags["disable-gpu"] = true
	}

	for _, arg := range cfg.Args {
		parts := strings.SplitN(strings.TrimPrefix(strings.TrimSpace(arg), "--"), "=", 2)
		if parts[0] == "" {
			continue
		}
		if len(parts) == 2 {
			flags[parts[0]] = parts[1]
		} else {
			flags[parts[0]] = true
		}
	}

	// Container friendly flags.
	if goos == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}
	return flags
}
