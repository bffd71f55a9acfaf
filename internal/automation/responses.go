package automation

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/xkilldash9x/seatctl/api/schemas"
)

// responseLog buffers the responses a page reports while an invite is in flight.
type responseLog struct {
	mu     sync.Mutex
	seen   []schemas.NetworkResponse
	notify chan struct{}
	done   chan struct{}
	stopFn func()
}

func watchResponses(page Page) *responseLog {
	ch, stop := page.WatchResponses()
	l := &responseLog{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		stopFn: stop,
	}
	go func() {
		defer close(l.done)
		for resp := range ch {
			l.mu.Lock()
			l.seen = append(l.seen, resp)
			l.mu.Unlock()
			select {
			case l.notify <- struct{}{}:
			default:
			}
		}
	}()
	return l
}

// stop detaches from the page and waits for the collector to exit.
func (l *responseLog) stop() {
	l.stopFn()
	<-l.done
}

func (l *responseLog) find(match func(schemas.NetworkResponse) bool) (schemas.NetworkResponse, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.seen {
		if match(r) {
			return r, true
		}
	}
	return schemas.NetworkResponse{}, false
}

// await returns the first buffered or future response accepted by match, waiting at most timeout.
func (l *responseLog) await(ctx context.Context, timeout time.Duration, match func(schemas.NetworkResponse) bool) (schemas.NetworkResponse, bool) {
	waitCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	for {
		if r, ok := l.find(match); ok {
			return r, true
		}
		select {
		case <-waitCtx.Done():
			return schemas.NetworkResponse{}, false
		case <-l.done:
			r, ok := l.find(match)
			return r, ok
		case <-l.notify:
		}
	}
}

// inviteRequest matches the POST that submits an invite.
func inviteRequest(base string) func(schemas.NetworkResponse) bool {
	return func(r schemas.NetworkResponse) bool {
		return r.Method == "POST" && r.IsDataRequest() && sameSite(base, r.URL) &&
			containsAny(strings.ToLower(r.URL), inviteURLKeywords)
	}
}

// sameSitePost is the broader fallback: any xhr/fetch POST to the service's site.
func sameSitePost(base string) func(schemas.NetworkResponse) bool {
	return func(r schemas.NetworkResponse) bool {
		return r.Method == "POST" && r.IsDataRequest() && sameSite(base, r.URL)
	}
}

// sameSite compares registrable domains, so api.example.com matches example.com.
func sameSite(a, b string) bool {
	ha, hb := hostOf(a), hostOf(b)
	if ha == "" || hb == "" {
		return false
	}
	sa, errA := publicsuffix.EffectiveTLDPlusOne(ha)
	sb, errB := publicsuffix.EffectiveTLDPlusOne(hb)
	if errA != nil || errB != nil {
		return ha == hb
	}
	return sa == sb
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
