package automation

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// SessionState is the inferred login status of the page.
type SessionState string

const (
	SessionUnknown   SessionState = "unknown"
	SessionLoggedOut SessionState = "logged_out"
	SessionLoggedIn  SessionState = "logged_in"
)

// sessionRule reports whether a page looks logged out, and names the evidence.
type sessionRule struct {
	name  string
	match func(url string, snap *Snapshot) bool
}

var loggedOutRules = []sessionRule{
	{name: "auth-url", match: func(url string, _ *Snapshot) bool {
		return containsAny(strings.ToLower(url), authPathMarkers)
	}},
	{name: "username-input", match: func(_ string, snap *Snapshot) bool {
		return Visible(snap.Find(loginInputSelector)).Length() > 0
	}},
	{name: "login-heading", match: func(_ string, snap *Snapshot) bool {
		found := false
		snap.Find(loginHeadingSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			found = containsAny(elementText(el), loginHeadingPhrases)
			return !found
		})
		return found
	}},
	{name: "login-affordance", match: func(_ string, snap *Snapshot) bool {
		found := false
		Visible(snap.Find("button, a")).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			found = containsAny(elementText(el), loginAffordances)
			return !found
		})
		return found
	}},
}

// ClassifySession applies the logged-out rules in order. The first match wins; no match means logged in.
func ClassifySession(url string, snap *Snapshot) (SessionState, string) {
	for _, rule := range loggedOutRules {
		if rule.match(url, snap) {
			return SessionLoggedOut, rule.name
		}
	}
	return SessionLoggedIn, ""
}

// DetectSession loads the service root and classifies the page.
func (c *Client) DetectSession(ctx context.Context) (SessionState, error) {
	if err := c.navigate(ctx, c.url("/")); err != nil {
		return SessionUnknown, err
	}
	return c.classifyCurrent(ctx)
}

// classifyCurrent classifies whatever the page shows now, without navigating.
func (c *Client) classifyCurrent(ctx context.Context) (SessionState, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return SessionUnknown, err
	}
	url := c.currentURL(ctx)
	state, evidence := ClassifySession(url, snap)
	c.metrics.SessionProbe(string(state))
	c.logger.Debug("Classified session.",
		zap.String("state", string(state)),
		zap.String("evidence", evidence),
		zap.String("url", url),
	)
	return state, nil
}

// IsLoggedIn reports whether the service root shows a logged-in session.
func (c *Client) IsLoggedIn(ctx context.Context) (bool, error) {
	state, err := c.DetectSession(ctx)
	return state == SessionLoggedIn, err
}
