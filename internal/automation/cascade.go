package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Strategy is one locator in a cascade. Find returns the matching element or an empty selection.
type Strategy struct {
	Name string
	Find func(snap *Snapshot) *goquery.Selection
}

// Cascade is an ordered list of strategies; the first that finds an element wins.
type Cascade []Strategy

// Locate runs the strategies in order and returns the first hit.
func (cs Cascade) Locate(snap *Snapshot) (*goquery.Selection, string, bool) {
	for _, s := range cs {
		if sel := s.Find(snap); sel != nil && sel.Length() > 0 {
			return sel.First(), s.Name, true
		}
	}
	return nil, "", false
}

// interactive keeps visible, enabled elements with non-empty text.
func interactive(sel *goquery.Selection) *goquery.Selection {
	return sel.FilterFunction(func(_ int, el *goquery.Selection) bool {
		return isVisible(el) && isEnabled(el) && elementText(el) != ""
	})
}

func textFilter(sel *goquery.Selection, keep func(text string) bool) *goquery.Selection {
	return sel.FilterFunction(func(_ int, el *goquery.Selection) bool {
		return keep(elementText(el))
	})
}

// labelCascade matches exact labels first, then labels as substrings. exactOnly labels are
// too short to look for inside other text and only match a whole label.
func labelCascade(scope, selector string, labels []string, exactOnly ...string) Cascade {
	whole := append(append([]string(nil), labels...), exactOnly...)
	find := func(snap *Snapshot) *goquery.Selection {
		if scope == "" {
			return interactive(snap.Find(selector))
		}
		return interactive(Visible(snap.Find(scope)).Find(selector))
	}
	return Cascade{
		{Name: "exact-label", Find: func(snap *Snapshot) *goquery.Selection {
			return textFilter(find(snap), func(t string) bool { return equalsAny(t, whole) })
		}},
		{Name: "label-substring", Find: func(snap *Snapshot) *goquery.Selection {
			return textFilter(find(snap), func(t string) bool { return containsAny(t, labels) })
		}},
	}
}

const inviteClickables = `button, div[role="button"], [role="button"], a, div[class*="cursor-pointer"]`

// inviteButtonCascade locates the "invite member" affordance on the members surface.
var inviteButtonCascade = Cascade{
	{Name: "exact-text", Find: func(snap *Snapshot) *goquery.Selection {
		return textFilter(interactive(snap.Find(inviteClickables)), func(t string) bool {
			return equalsAny(t, inviteLabelsExact)
		})
	}},
	{Name: "text-substring", Find: func(snap *Snapshot) *goquery.Selection {
		return textFilter(interactive(snap.Find(inviteClickables)), func(t string) bool {
			return containsAny(t, inviteLabelsExact)
		})
	}},
	{Name: "loose-text", Find: func(snap *Snapshot) *goquery.Selection {
		return textFilter(interactive(snap.Find(inviteClickables)), func(t string) bool {
			return containsAny(t, inviteLabelsLoose) && !containsAny(t, pendingTabLabels)
		})
	}},
	{Name: "layout-container", Find: func(snap *Snapshot) *goquery.Selection {
		return textFilter(interactive(snap.Find("div.flex")), func(t string) bool {
			return len([]rune(t)) <= 30 && containsAny(t, inviteLabelsLoose) && !containsAny(t, pendingTabLabels)
		})
	}},
	{Name: "icon-ancestor", Find: func(snap *Snapshot) *goquery.Selection {
		var hit *goquery.Selection
		Visible(snap.Find("div:has(svg)")).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			t := elementText(el)
			if t == "" || len([]rune(t)) > 30 || !containsAny(t, inviteLabelsLoose) {
				return true
			}
			if target := el.Closest(`button, [role="button"]`); target.Length() > 0 {
				hit = target
			} else {
				hit = el
			}
			return false
		})
		if hit == nil {
			return &goquery.Selection{}
		}
		return hit
	}},
}

var errNotClickable = errors.New("element cannot be addressed")

// clickElement clicks el on the live page.
func (c *Client) clickElement(ctx context.Context, el *goquery.Selection) error {
	sel, ok := NodeSelector(el)
	if !ok {
		return errNotClickable
	}
	actionCtx, cancel := withTimeout(ctx, c.opts.ActionTimeout)
	defer cancel()
	if err := c.page.Click(actionCtx, sel); err != nil {
		return fmt.Errorf("failed to click %s: %w", sel, err)
	}
	return nil
}

// clickCascade polls until the cascade locates an element, then clicks it.
// It reports false when nothing matched before timeout.
func (c *Client) clickCascade(ctx context.Context, cs Cascade, timeout time.Duration, what string) (bool, error) {
	var target *goquery.Selection
	var strategy string
	err := poll(ctx, timeout, c.opts.PollInterval, what, func(ctx context.Context) (bool, error) {
		snap, err := c.snapshot(ctx)
		if err != nil {
			c.logger.Debug("Snapshot failed while locating element.", zap.String("target", what), zap.Error(err))
			return false, nil
		}
		sel, name, ok := cs.Locate(snap)
		if ok {
			target, strategy = sel, name
		}
		return ok, nil
	})
	if err != nil {
		var te timeoutError
		if errors.As(err, &te) {
			return false, nil
		}
		return false, err
	}
	c.logger.Debug("Located element.",
		zap.String("target", what),
		zap.String("strategy", strategy),
		zap.String("text", strings.TrimSpace(target.Text())),
	)
	return true, c.clickElement(ctx, target)
}

// sendCascade locates the control that submits the invite dialog.
var sendCascade = labelCascade(dialogScope, clickableSelector, sendLabels, sendLabelsExactOnly...)

// clickByText clicks the first visible, enabled control labeled with one of labels.
// A non-empty scope restricts the search to matching containers.
func (c *Client) clickByText(ctx context.Context, scope string, labels []string, timeout time.Duration) (bool, error) {
	return c.clickCascade(ctx, labelCascade(scope, clickableSelector, labels), timeout, strings.Join(labels, "|"))
}
