// internal/browser/page.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/api/schemas"
)

// runTab executes chromedp actions. Tests replace it.
var runTab = chromedp.Run

// chromePage implements Page on one chromedp tab.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu       sync.Mutex
	methods  map[network.RequestID]string
	watchers map[int]chan schemas.NetworkResponse
	nextID   int
	closed   bool
}

// newChromePage attaches to the tab, enables the network domain and starts the response listener.
func newChromePage(ctx, tabCtx context.Context, tabCancel context.CancelFunc, logger *zap.Logger) (*chromePage, error) {
	p := &chromePage{
		ctx:      tabCtx,
		cancel:   tabCancel,
		logger:   logger.Named("page"),
		methods:  make(map[network.RequestID]string),
		watchers: make(map[int]chan schemas.NetworkResponse),
	}

	chromedp.ListenTarget(tabCtx, p.onEvent)

	if err := attachTab(ctx, tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := p.run(ctx, network.Enable()); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return p, nil
}

// attachTab creates the target. chromedp binds the tab's event loop to the context of the
// first Run, so that Run must get tabCtx itself; ctx only bounds how long we wait for it.
// On timeout the caller cancels tabCtx, which ends the pending Run.
func attachTab(ctx, tabCtx context.Context) error {
	attached := make(chan error, 1)
	go func() {
		attached <- runTab(tabCtx)
	}()

	select {
	case err := <-attached:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *chromePage) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.mu.Lock()
		p.methods[e.RequestID] = e.Request.Method
		p.mu.Unlock()
	case *network.EventResponseReceived:
		if e.Response == nil {
			return
		}
		p.mu.Lock()
		resp := schemas.NetworkResponse{
			RequestID:    string(e.RequestID),
			Method:       p.methods[e.RequestID],
			URL:          e.Response.URL,
			Status:       int(e.Response.Status),
			ResourceType: string(e.Type),
		}
		delete(p.methods, e.RequestID)
		for _, ch := range p.watchers {
			// Listeners run on the event loop and must never block it.
			select {
			case ch <- resp:
			default:
			}
		}
		p.mu.Unlock()
	}
}

// run executes actions against the tab, bounded by the deadline of ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return runTab(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("navigation to %s timed out: %w", url, ctx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (p *chromePage) Reload(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (p *chromePage) WaitReady(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Evaluate(ctx context.Context, expression string, out interface{}) error {
	return p.run(ctx, chromedp.Evaluate(expression, out))
}

// Click dispatches a real mouse click and falls back to element.click() when the node
// cannot be hit, e.g. because an overlay covers it.
func (p *chromePage) Click(ctx context.Context, selector string) error {
	err := p.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err == nil || ctx.Err() != nil {
		return err
	}
	p.logger.Debug("Mouse click failed, using script click", zap.String("selector", selector), zap.Error(err))

	var clicked bool
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (!el) return false; el.click(); return true; })()`, jsString(selector))
	if jsErr := p.run(ctx, chromedp.Evaluate(script, &clicked)); jsErr != nil {
		return jsErr
	}
	if !clicked {
		return fmt.Errorf("element %q not found", selector)
	}
	return nil
}

// Type clears the field with script, so frameworks observe the change, then sends keys.
func (p *chromePage) Type(ctx context.Context, selector, text string) error {
	reset := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		el.value = '';
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, jsString(selector))
	var found bool
	if err := p.run(ctx, chromedp.Evaluate(reset, &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("element %q not found", selector)
	}
	return p.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// namedKeys maps key names to the sequences chromedp dispatches for them.
var namedKeys = map[string]string{
	"Enter":     kb.Enter,
	"Escape":    kb.Escape,
	"Tab":       kb.Tab,
	"Backspace": kb.Backspace,
}

// PressKey dispatches a named key, or types key literally when it has no name.
func (p *chromePage) PressKey(ctx context.Context, key string) error {
	if seq, ok := namedKeys[key]; ok {
		key = seq
	}
	return p.run(ctx, chromedp.KeyEvent(key))
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 selects PNG.
	err := p.run(ctx, chromedp.FullScreenshot(&buf, 100))
	return buf, err
}

func (p *chromePage) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	var out []schemas.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		cookies, err := network.GetCookies().Do(c)
		if err != nil {
			return err
		}
		for _, ck := range cookies {
			out = append(out, schemas.Cookie{
				Name:     ck.Name,
				Value:    ck.Value,
				Domain:   ck.Domain,
				Path:     ck.Path,
				Expires:  ck.Expires,
				HTTPOnly: ck.HTTPOnly,
				Secure:   ck.Secure,
				SameSite: string(ck.SameSite),
			})
		}
		return nil
	}))
	return out, err
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []schemas.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		param := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
		}
		if ck.SameSite != "" {
			param.SameSite = network.CookieSameSite(ck.SameSite)
		}
		if ck.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
			param.Expires = &expires
		}
		params = append(params, param)
	}
	return p.run(ctx, network.SetCookies(params))
}

func (p *chromePage) BringToFront(ctx context.Context) error {
	return p.run(ctx, page.BringToFront())
}

func (p *chromePage) WatchResponses() (<-chan schemas.NetworkResponse, func()) {
	ch := make(chan schemas.NetworkResponse, 64)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	id := p.nextID
	p.nextID++
	p.watchers[id] = ch

	// The channel is closed under mu so it never races a send from onEvent.
	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if w, ok := p.watchers[id]; ok {
			delete(p.watchers, id)
			close(w)
		}
	}
}

func (p *chromePage) ResponseBody(ctx context.Context, requestID string) (string, error) {
	var body []byte
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		body, err = network.GetResponseBody(network.RequestID(requestID)).Do(c)
		return err
	}))
	return string(body), err
}

// Close closes the tab; for isolated pages this also disposes the browser context.
func (p *chromePage) Close() error {
	p.mu.Lock()
	p.closed = true
	for id, ch := range p.watchers {
		delete(p.watchers, id)
		close(ch)
	}
	p.mu.Unlock()
	p.cancel()
	return nil
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
