// internal/browser/interface.go
package browser

import (
	"context"
	"errors"

	"github.com/xkilldash9x/seatctl/api/schemas"
)

var (
	// ErrLaunchFailure is returned when no browser process could be obtained in time.
	ErrLaunchFailure = errors.New("browser launch failure")
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("browser pool closed")
)

// LaunchOptions vary per launch; everything else comes from configuration.
type LaunchOptions struct {
	Headless bool
	// UserDataDir roots a persistent profile. Empty means a throwaway profile.
	UserDataDir string
	// Isolate opens every page in its own browser context.
	Isolate bool
}

// Launcher starts browser processes.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is one running browser process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	// Ping reports whether the process still answers.
	Ping(ctx context.Context) error
	Close() error
}

// Page is one tab. Every method is bounded by the deadline of ctx.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	WaitReady(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, expression string, out interface{}) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	PressKey(ctx context.Context, key string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Cookies(ctx context.Context) ([]schemas.Cookie, error)
	SetCookies(ctx context.Context, cookies []schemas.Cookie) error
	BringToFront(ctx context.Context) error
	// WatchResponses streams responses seen after the call. stop and Close both close the channel.
	WatchResponses() (responses <-chan schemas.NetworkResponse, stop func())
	ResponseBody(ctx context.Context, requestID string) (string, error)
	Close() error
}
