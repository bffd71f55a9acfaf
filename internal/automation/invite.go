package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/api/schemas"
)

// Confirmation names the evidence an invite was accepted on.
type Confirmation string

const (
	// ConfirmedUI means the page showed the address or a sent notice.
	ConfirmedUI Confirmation = "ui"
	// ConfirmedReload means the address only showed up after reloading the pending invites.
	ConfirmedReload Confirmation = "reload"
	// ConfirmedResponseOnly means the request succeeded but the page never confirmed it.
	// Callers count it as a success and keep the caveat.
	ConfirmedResponseOnly Confirmation = "response_only"
)

// InviteResult describes one accepted invite.
type InviteResult struct {
	Email        string
	Confirmation Confirmation
	// Response is the invite request seen on the wire, nil when none was captured.
	Response *schemas.NetworkResponse
}

const (
	dialogScope  = `[role="dialog"], [role="alertdialog"], dialog[open]`
	maxBodyRunes = 300
)

// InviteMember invites one address from the members surface.
func (c *Client) InviteMember(ctx context.Context, email string, role schemas.Role) (res InviteResult, err error) {
	res.Email = email
	logger := c.logger.With(zap.String("email", email))
	defer func() {
		switch {
		case err != nil:
			c.metrics.InviteOutcome("failed")
		case res.Confirmation == ConfirmedResponseOnly:
			c.metrics.InviteOutcome("response_only")
		default:
			c.metrics.InviteOutcome("success")
		}
	}()

	if err := c.ensureMembersSurface(ctx); err != nil {
		return res, err
	}

	found, err := c.clickCascade(ctx, inviteButtonCascade, c.opts.ElementTimeout, "invite button")
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if !found || err != nil {
		if err == nil {
			err = errors.New("no invite affordance on page")
		}
		return res, c.fail(ctx, newError(CodeInviteButtonNotFound, "invite", err), "invite-error")
	}

	if err := c.fillInviteEmail(ctx, email); err != nil {
		return res, err
	}

	if role == schemas.RoleAdmin {
		c.selectAdminRole(ctx)
	}

	if ok, err := c.clickByText(ctx, dialogScope, nextLabels, c.opts.ActionTimeout); ok && err == nil {
		logger.Debug("Advanced invite dialog.")
	}

	responses := watchResponses(c.page)
	defer responses.stop()

	sent, err := c.clickCascade(ctx, sendCascade, c.opts.DialogTimeout, "send control")
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if !sent || err != nil {
		if err == nil {
			err = errors.New("no send control in invite dialog")
		}
		c.closeDialog(ctx)
		return res, c.fail(ctx, newError(CodeSendButtonNotFound, "invite", err), "invite-error")
	}
	c.repeatStuckSend(ctx)

	resp, captured := responses.await(ctx, c.opts.ResponseTimeout, inviteRequest(c.opts.BaseURL))
	if !captured {
		resp, captured = responses.await(ctx, c.opts.FallbackTimeout, sameSitePost(c.opts.BaseURL))
	}
	if captured {
		res.Response = &resp
		if resp.Failed() {
			return res, c.rejected(ctx, resp)
		}
		logger.Debug("Invite request accepted.", zap.Int("status", resp.Status), zap.String("url", resp.URL))
	}

	c.closeDialog(ctx)
	if _, err := c.clickByText(ctx, "", pendingTabLabels, c.opts.ActionTimeout); err != nil {
		logger.Debug("Pending tab switch failed.", zap.Error(err))
	}

	if c.waitConfirmed(ctx, email, true) {
		res.Confirmation = ConfirmedUI
		logger.Info("Invite confirmed.")
		return res, nil
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	if captured {
		if c.confirmAfterReload(ctx, email) {
			res.Confirmation = ConfirmedReload
			logger.Info("Invite confirmed after reload.")
			return res, nil
		}
		res.Confirmation = ConfirmedResponseOnly
		logger.Warn("Invite request succeeded but the page never confirmed it.",
			zap.Int("status", resp.Status), zap.String("url", resp.URL))
		return res, nil
	}

	return res, c.fail(ctx, newError(CodeInviteUnconfirmed, "invite", errors.New("no confirmation and no invite request observed")), "invite-unconfirmed")
}

// ensureMembersSurface makes one recovery navigation when the page is elsewhere.
func (c *Client) ensureMembersSurface(ctx context.Context) error {
	if c.onMembersSurface(ctx) {
		return nil
	}
	c.logger.Info("Not on the members surface, recovering.", zap.String("url", c.currentURL(ctx)))
	err := c.navigate(ctx, c.MembersURL(schemas.TabMembers))
	if err == nil {
		err = c.SelectWorkspace(ctx)
	}
	if err == nil && !c.onMembersSurface(ctx) {
		err = fmt.Errorf("landed on %s", c.currentURL(ctx))
	}
	if err != nil {
		return c.fail(ctx, newError(CodeWrongPage, "invite", err), "invite-wrong-page")
	}
	return nil
}

// emailInput picks the invite address field, preferring inputs inside an open dialog.
func emailInput(snap *Snapshot) (*goquery.Selection, string) {
	inputs := Visible(snap.Dialogs().Find("input"))
	if inputs.Length() == 0 {
		inputs = Visible(snap.Find("input"))
	}
	for _, rule := range emailInputCandidates {
		if hit := inputs.FilterFunction(func(_ int, el *goquery.Selection) bool { return rule.match(el) }); hit.Length() > 0 {
			return hit.First(), rule.name
		}
	}
	return nil, ""
}

func (c *Client) fillInviteEmail(ctx context.Context, email string) error {
	var target, rule string
	err := poll(ctx, c.opts.DialogTimeout, c.opts.PollInterval, "invite email input", func(ctx context.Context) (bool, error) {
		snap, err := c.snapshot(ctx)
		if err != nil {
			return false, nil
		}
		el, name := emailInput(snap)
		if el == nil {
			return false, nil
		}
		sel, ok := NodeSelector(el)
		target, rule = sel, name
		return ok, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.fail(ctx, newError(CodeEmailInputNotFound, "invite", err), "invite-email-input")
	}
	c.logger.Debug("Filling invite address.", zap.String("rule", rule))

	actionCtx, cancel := withTimeout(ctx, c.opts.ActionTimeout)
	defer cancel()
	if err := c.page.Type(actionCtx, target, email); err != nil {
		return c.fail(ctx, newError(CodeEmailInputNotFound, "invite", err), "invite-email-input")
	}
	if err := c.page.PressKey(actionCtx, KeyEnter); err != nil {
		c.logger.Debug("Enter after address failed.", zap.Error(err))
	}
	return nil
}

const selectAdminScript = `(() => {
  const sel = document.querySelector('select[name="role"]');
  if (!sel) return false;
  const opt = Array.from(sel.options).find(o => /admin|管理员/i.test(o.value + ' ' + o.textContent));
  if (!opt) return false;
  sel.value = opt.value;
  sel.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`

// selectAdminRole is best effort; the default role stands when no control is found.
func (c *Client) selectAdminRole(ctx context.Context) {
	var selected bool
	if err := c.page.Evaluate(ctx, selectAdminScript, &selected); err == nil && selected {
		return
	}
	if ok, err := c.clickByText(ctx, dialogScope, adminRoleLabels, c.opts.ActionTimeout); !ok || err != nil {
		c.logger.Info("Role control not found, keeping the default role.", zap.Error(err))
	}
}

// repeatStuckSend clicks the send control once more if it is still live after the first click.
func (c *Client) repeatStuckSend(ctx context.Context) {
	if err := sleep(ctx, c.opts.PollInterval); err != nil {
		return
	}
	snap, err := c.snapshot(ctx)
	if err != nil {
		return
	}
	if el, _, ok := sendCascade.Locate(snap); ok {
		c.logger.Debug("Send control still enabled, clicking again.")
		if err := c.clickElement(ctx, el); err != nil {
			c.logger.Debug("Second send click failed.", zap.Error(err))
		}
	}
}

func (c *Client) rejected(ctx context.Context, resp schemas.NetworkResponse) error {
	body, err := c.page.ResponseBody(ctx, resp.RequestID)
	if err != nil {
		c.logger.Debug("Response body unavailable.", zap.Error(err))
	}
	e := newError(CodeInviteRequestFailed, "invite", errors.New("invite request rejected"))
	e.Status = resp.Status
	e.URL = resp.URL
	e.Body = truncate(body, maxBodyRunes)
	return c.fail(ctx, e, "invite-request-failed")
}

// closeDialog waits for the invite dialog to close, then dismisses it.
func (c *Client) closeDialog(ctx context.Context) {
	if c.waitNoDialog(ctx) {
		return
	}
	actionCtx, cancel := withTimeout(ctx, c.opts.ActionTimeout)
	defer cancel()
	if err := c.page.PressKey(actionCtx, KeyEscape); err != nil {
		c.logger.Debug("Escape failed.", zap.Error(err))
	}
	if c.waitNoDialog(ctx) {
		return
	}
	closeButton := Cascade{{Name: "close-button", Find: func(snap *Snapshot) *goquery.Selection {
		return Visible(snap.Dialogs().Find(closeButtonSelector))
	}}}
	if _, err := c.clickCascade(ctx, closeButton, c.opts.ActionTimeout, "dialog close button"); err != nil {
		c.logger.Debug("Dialog close button failed.", zap.Error(err))
	}
}

func (c *Client) waitNoDialog(ctx context.Context) bool {
	err := poll(ctx, c.opts.ActionTimeout, c.opts.PollInterval, "dialog to close", func(ctx context.Context) (bool, error) {
		snap, err := c.snapshot(ctx)
		if err != nil {
			return false, nil
		}
		return snap.Dialogs().Length() == 0, nil
	})
	return err == nil
}

// waitConfirmed polls for a closed dialog with the address or a sent notice on the page.
// With notices false only the address counts.
func (c *Client) waitConfirmed(ctx context.Context, email string, notices bool) bool {
	needle := strings.ToLower(email)
	err := poll(ctx, c.opts.ConfirmTimeout, c.opts.PollInterval, "invite confirmation", func(ctx context.Context) (bool, error) {
		snap, err := c.snapshot(ctx)
		if err != nil {
			return false, nil
		}
		if snap.Dialogs().Length() > 0 {
			return false, nil
		}
		text := snap.Text()
		return strings.Contains(text, needle) || (notices && containsAny(text, inviteSentPhrases)), nil
	})
	return err == nil
}

// confirmAfterReload reloads the pending invites and looks for the address once more.
func (c *Client) confirmAfterReload(ctx context.Context, email string) bool {
	c.logger.Info("Reloading pending invites to confirm.")
	if err := c.OpenMembers(ctx, schemas.TabInvites); err != nil {
		c.logger.Warn("Reload of pending invites failed.", zap.Error(err))
		return false
	}
	if _, err := c.clickByText(ctx, "", pendingTabLabels, c.opts.ActionTimeout); err != nil {
		c.logger.Debug("Pending tab switch failed.", zap.Error(err))
	}
	return c.waitConfirmed(ctx, email, false)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
