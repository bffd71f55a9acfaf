package automation

import (
	"context"

	"github.com/xkilldash9x/seatctl/api/schemas"
)

// Page is the slice of a browser tab the state machines drive.
// browser.Page satisfies it; tests supply an in-memory fake.
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
	WatchResponses() (responses <-chan schemas.NetworkResponse, stop func())
	ResponseBody(ctx context.Context, requestID string) (string, error)
	Close() error
}

// Key names accepted by Page.PressKey.
const (
	KeyEnter  = "Enter"
	KeyEscape = "Escape"
)
