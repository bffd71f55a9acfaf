package automation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/api/schemas"
)

var (
	// "<plan> - N members" is preferred over a bare count.
	tierCountPattern = regexp.MustCompile(`(?i)[-–—·]\s*(\d+)\s+members?\b`)
	bareCountPattern = regexp.MustCompile(`(?i)\b(\d+)\s+members?\b`)
	zhCountPattern   = regexp.MustCompile(`(\d+)\s*(?:名|位|个)?成员`)
	emailPattern     = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)
)

// ParseCountHint reads the member count from rendered text. ok is false when no line
// carries a count, which must not be read as zero members.
func ParseCountHint(text string) (int, bool) {
	lines := strings.Split(text, "\n")
	for _, p := range []*regexp.Regexp{tierCountPattern, bareCountPattern, zhCountPattern} {
		for _, line := range lines {
			if m := p.FindStringSubmatch(line); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					return n, true
				}
			}
		}
	}
	return 0, false
}

// ExtractEmails collects member addresses from rendered text. Noise addresses are dropped,
// duplicates are folded case-insensitively keeping the first spelling, and exclude is omitted.
func ExtractEmails(text, exclude string) []string {
	seen := make(map[string]struct{})
	if exclude != "" {
		seen[strings.ToLower(exclude)] = struct{}{}
	}
	out := []string{}
	for _, addr := range emailPattern.FindAllString(text, -1) {
		key := strings.ToLower(addr)
		if isNoiseAddress(key) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}

func isNoiseAddress(lower string) bool {
	if containsAny(lower, noiseAddressMarkers) {
		return true
	}
	domain := lower[strings.LastIndex(lower, "@")+1:]
	for _, d := range placeholderDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// MembersURL is the members surface for tab.
func (c *Client) MembersURL(tab schemas.MemberTab) string {
	q := url.Values{"tab": {string(tab)}}
	return c.url(c.opts.MembersPath) + "?" + q.Encode()
}

// OpenMembers navigates to the members surface, resolving the workspace picker after every load.
func (c *Client) OpenMembers(ctx context.Context, tab schemas.MemberTab) error {
	target := c.MembersURL(tab)
	var lastErr error
	for attempt := 1; attempt <= c.opts.NavigationRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.navigate(ctx, target); err != nil {
			lastErr = err
			c.logger.Warn("Members navigation failed.", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if err := c.SelectWorkspace(ctx); err != nil {
			lastErr = err
			if CodeOf(err) == CodeNoWorkspaceOption {
				return err
			}
			c.logger.Warn("Workspace selection failed after navigation.", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if c.onMembersSurface(ctx) {
			return nil
		}
		lastErr = fmt.Errorf("landed on %s", c.currentURL(ctx))
	}
	var aerr *Error
	if errors.As(lastErr, &aerr) {
		return lastErr
	}
	return c.fail(ctx, newError(CodeWrongPage, "open-members", lastErr), "workspace-select-failed")
}

func (c *Client) onMembersSurface(ctx context.Context) bool {
	return strings.Contains(c.currentURL(ctx), c.opts.MembersPath)
}

// ReadMemberCount reads the count hint from the members tab. A missing hint is an
// EXTRACTION_FAILED error with a screenshot.
func (c *Client) ReadMemberCount(ctx context.Context) (int, error) {
	text, err := readText(ctx, c.page)
	if err != nil {
		return 0, newError(CodeExtractionFailed, "read-count", err)
	}
	n, ok := ParseCountHint(text)
	if !ok {
		return 0, c.fail(ctx, newError(CodeExtractionFailed, "read-count", errors.New("no member count on page")), "member-count-missing")
	}
	return n, nil
}

// ReadMembers reads the roster of the page currently showing the members tab.
// CountHint stays nil when the count could not be read.
func (c *Client) ReadMembers(ctx context.Context, owner string) (schemas.MemberSnapshot, error) {
	text, err := readText(ctx, c.page)
	if err != nil {
		return schemas.MemberSnapshot{}, newError(CodeExtractionFailed, "read-members", err)
	}
	snap := schemas.MemberSnapshot{
		Addresses: ExtractEmails(text, owner),
		ReadAt:    time.Now().UTC(),
	}
	if n, ok := ParseCountHint(text); ok {
		snap.CountHint = &n
	}
	c.logger.Debug("Read member roster.",
		zap.Int("addresses", len(snap.Addresses)),
		zap.Bool("count_hint", snap.CountHint != nil),
	)
	return snap, nil
}
