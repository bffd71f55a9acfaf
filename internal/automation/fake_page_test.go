package automation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/seatctl/api/schemas"
)

// fakePage serves an HTML fixture in place of a live tab. Hooks mutate the fixture to
// simulate the console reacting to input.
type fakePage struct {
	t *testing.T

	mu       sync.Mutex
	html     string
	url      string
	text     string
	clicks   []string
	typed    []string
	keys     []string
	visits   []string
	scripts  []string
	cookies  []schemas.Cookie
	bodies   map[string]string
	watchers []chan schemas.NetworkResponse
	closed   bool

	onNavigate func(p *fakePage, url string)
	onClick    func(p *fakePage, text string)
	onType     func(p *fakePage, text string)
	onKey      func(p *fakePage, key string)
	onScript   func(p *fakePage, expression string)
}

func newFakePage(t *testing.T, url, body string) *fakePage {
	return &fakePage{t: t, url: url, html: fixture(body), bodies: map[string]string{}}
}

func fixture(body string) string {
	return "<html><head></head><body>" + body + "</body></html>"
}

// setBody replaces the fixture. Hooks run with mu held, so they use this lock-free helper.
func (p *fakePage) setBody(body string) { p.html = fixture(body) }

// stamped numbers elements the way the snapshot script does.
func (p *fakePage) stamped() *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	require.NoError(p.t, err)
	doc.Find("body *").Each(func(i int, el *goquery.Selection) {
		el.SetAttr(nodeIDAttr, strconv.Itoa(i+1))
	})
	return doc
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visits = append(p.visits, url)
	p.url = url
	if p.onNavigate != nil {
		p.onNavigate(p, url)
	}
	return ctx.Err()
}

func (p *fakePage) Reload(ctx context.Context) error {
	return p.Navigate(ctx, p.URLNow())
}

func (p *fakePage) URLNow() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) URL(ctx context.Context) (string, error) { return p.URLNow(), nil }

func (p *fakePage) WaitReady(ctx context.Context, selector string) error { return nil }

func (p *fakePage) Evaluate(ctx context.Context, expression string, out interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch expression {
	case snapshotScript:
		html, err := p.stamped().Html()
		require.NoError(p.t, err)
		*(out.(*string)) = html
	case innerTextScript:
		text := p.text
		if text == "" {
			text = p.stamped().Find("body").Text()
		}
		*(out.(*string)) = text
	default:
		p.scripts = append(p.scripts, expression)
		if p.onScript != nil {
			p.onScript(p, expression)
		}
		if b, ok := out.(*bool); ok {
			*b = false
		}
	}
	return ctx.Err()
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := p.stamped().Find(selector)
	if el.Length() == 0 {
		return fmt.Errorf("no node for %s", selector)
	}
	text := strings.TrimSpace(el.Text())
	p.clicks = append(p.clicks, text)
	if p.onClick != nil {
		p.onClick(p, text)
	}
	return nil
}

func (p *fakePage) Type(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stamped().Find(selector).Length() == 0 {
		return fmt.Errorf("no node for %s", selector)
	}
	p.typed = append(p.typed, text)
	if p.onType != nil {
		p.onType(p, text)
	}
	return nil
}

func (p *fakePage) PressKey(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	if p.onKey != nil {
		p.onKey(p, key)
	}
	return nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) { return []byte("\x89PNG"), nil }

func (p *fakePage) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]schemas.Cookie(nil), p.cookies...), nil
}

func (p *fakePage) SetCookies(ctx context.Context, cookies []schemas.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append(p.cookies, cookies...)
	return nil
}

func (p *fakePage) BringToFront(ctx context.Context) error { return nil }

func (p *fakePage) WatchResponses() (<-chan schemas.NetworkResponse, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan schemas.NetworkResponse, 16)
	p.watchers = append(p.watchers, ch)
	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, w := range p.watchers {
			if w == ch {
				p.watchers = append(p.watchers[:i], p.watchers[i+1:]...)
				close(ch)
				return
			}
		}
	}
}

// emit delivers resp to every watcher. Callers hold mu (hooks do).
func (p *fakePage) emit(resp schemas.NetworkResponse) {
	for _, w := range p.watchers {
		w <- resp
	}
}

func (p *fakePage) ResponseBody(ctx context.Context, requestID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bodies[requestID], nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) clicked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

const testBase = "https://console.test"

// testOptions keeps every wait short.
func testOptions(t *testing.T) Options {
	return Options{
		BaseURL:            testBase,
		LoginPath:          "/auth/login",
		MembersPath:        "/admin/members",
		Headless:           true,
		Locale:             "en",
		ManualLoginTimeout: 200 * time.Millisecond,
		ManualPollInterval: 10 * time.Millisecond,
		ScreenshotDir:      t.TempDir(),
		NavigationTimeout:  time.Second,
		ElementTimeout:     100 * time.Millisecond,
		ActionTimeout:      50 * time.Millisecond,
		DialogTimeout:      100 * time.Millisecond,
		WorkspaceAttempts:  3,
		WorkspaceTimeout:   50 * time.Millisecond,
		NavigationRetries:  3,
		ResponseTimeout:    50 * time.Millisecond,
		FallbackTimeout:    50 * time.Millisecond,
		ConfirmTimeout:     100 * time.Millisecond,
		PollInterval:       5 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, p *fakePage, mutate ...func(*Options)) *Client {
	opts := testOptions(t)
	for _, m := range mutate {
		m(&opts)
	}
	return NewClient(p, opts, zaptest.NewLogger(t))
}
