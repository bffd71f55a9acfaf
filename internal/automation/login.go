package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/internal/i18n"
)

// Credentials are the decrypted login of one account.
type Credentials struct {
	Email    string
	Password string
}

const bannerID = "automation-login-hint"

// Login signs in with creds. When that fails and the client is interactive and headed,
// it falls back to waiting for the operator to finish the login by hand.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	err := c.credentialLogin(ctx, creds)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.logger.Warn("Automated login failed.", zap.Error(err))
	if !c.manualAllowed() {
		return c.fail(ctx, newError(CodeLoginFailed, "login", err), "login-failed")
	}
	return c.ManualLogin(ctx)
}

// EnsureLoggedIn detects the session and logs in only when needed.
func (c *Client) EnsureLoggedIn(ctx context.Context, creds Credentials) error {
	state, err := c.DetectSession(ctx)
	if err != nil {
		c.logger.Warn("Session detection failed, attempting login.", zap.Error(err))
	}
	if state == SessionLoggedIn {
		return nil
	}
	if creds.Email == "" || creds.Password == "" {
		if c.manualAllowed() {
			return c.ManualLogin(ctx)
		}
		return c.fail(ctx, newError(CodeLoginFailed, "login", errors.New("no credentials available")), "login-failed")
	}
	return c.Login(ctx, creds)
}

func (c *Client) manualAllowed() bool {
	return c.opts.Interactive && !c.opts.Headless
}

func (c *Client) credentialLogin(ctx context.Context, creds Credentials) error {
	if creds.Email == "" || creds.Password == "" {
		return errors.New("credentials are incomplete")
	}
	if err := c.navigate(ctx, c.url(c.opts.LoginPath)); err != nil {
		return err
	}

	if err := c.fill(ctx, emailFieldSelector, creds.Email, "email input"); err != nil {
		return err
	}
	if err := c.advance(ctx, advanceLabels, ""); err != nil {
		return err
	}
	if err := sleep(ctx, c.opts.StepDelay); err != nil {
		return err
	}

	if err := c.fill(ctx, passwordFieldSelector, creds.Password, "password input"); err != nil {
		return err
	}
	if err := c.advance(ctx, submitLabels, submitFallback); err != nil {
		return err
	}
	if err := sleep(ctx, c.opts.SettleDelay); err != nil {
		return err
	}

	state, err := c.DetectSession(ctx)
	if err != nil {
		return err
	}
	if state != SessionLoggedIn {
		return errors.New("still logged out after submitting credentials")
	}
	c.logger.Info("Logged in with stored credentials.")
	return nil
}

// fill waits for the first visible input matching selector and types text into it.
func (c *Client) fill(ctx context.Context, selector, text, what string) error {
	var target string
	err := poll(ctx, c.opts.ElementTimeout, c.opts.PollInterval, what, func(ctx context.Context) (bool, error) {
		snap, err := c.snapshot(ctx)
		if err != nil {
			return false, nil
		}
		el := Visible(snap.Find(selector)).First()
		if el.Length() == 0 {
			return false, nil
		}
		sel, ok := NodeSelector(el)
		target = sel
		return ok, nil
	})
	if err != nil {
		return fmt.Errorf("%s not present: %w", what, err)
	}
	actionCtx, cancel := withTimeout(ctx, c.opts.ActionTimeout)
	defer cancel()
	if err := c.page.Type(actionCtx, target, text); err != nil {
		return fmt.Errorf("failed to fill %s: %w", what, err)
	}
	return nil
}

// advance clicks a labeled control, else the fallback selector, else presses Enter.
func (c *Client) advance(ctx context.Context, labels []string, fallback string) error {
	clicked, err := c.clickByText(ctx, "", labels, c.opts.ActionTimeout)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if clicked && err == nil {
		return nil
	}
	if fallback != "" {
		cs := Cascade{{Name: "fallback", Find: func(snap *Snapshot) *goquery.Selection {
			return Visible(snap.Find(fallback)).FilterFunction(func(_ int, el *goquery.Selection) bool { return isEnabled(el) })
		}}}
		if ok, err := c.clickCascade(ctx, cs, c.opts.PollInterval, fallback); ok && err == nil {
			return nil
		}
	}
	keyCtx, cancel := withTimeout(ctx, c.opts.ActionTimeout)
	defer cancel()
	return c.page.PressKey(keyCtx, KeyEnter)
}

// ManualLogin brings the page forward, shows an instruction banner and waits for the
// operator to finish logging in. The banner is re-injected if the page replaces it.
func (c *Client) ManualLogin(ctx context.Context) error {
	if c.opts.Headless {
		return c.fail(ctx, newError(CodeLoginFailed, "manual-login", errors.New("manual login needs a visible browser")), "login-failed")
	}
	if err := c.page.BringToFront(ctx); err != nil {
		c.logger.Debug("Could not bring page to front.", zap.Error(err))
	}
	banner := bannerScript(i18n.Printer(c.opts.Locale).Sprintf(i18n.ManualLoginBanner))
	c.logger.Info("Waiting for manual login.", zap.Duration("timeout", c.opts.ManualLoginTimeout))

	start := time.Now()
	err := poll(ctx, c.opts.ManualLoginTimeout, c.opts.ManualPollInterval, "manual login", func(ctx context.Context) (bool, error) {
		if err := c.page.Evaluate(ctx, banner, nil); err != nil {
			c.logger.Debug("Banner injection failed.", zap.Error(err))
		}
		state, err := c.classifyCurrent(ctx)
		if err != nil {
			return false, nil
		}
		return state == SessionLoggedIn, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.fail(ctx, newError(CodeLoginFailed, "manual-login", err), "login-failed")
	}
	c.removeBanner(ctx)
	c.logger.Info("Manual login completed.", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (c *Client) removeBanner(ctx context.Context) {
	script := fmt.Sprintf(`(() => { const el = document.getElementById(%s); if (el) el.remove(); return true; })()`, jsQuote(bannerID))
	if err := c.page.Evaluate(ctx, script, nil); err != nil {
		c.logger.Debug("Banner removal failed.", zap.Error(err))
	}
}

func bannerScript(text string) string {
	return fmt.Sprintf(`(() => {
  if (!document.body || document.getElementById(%[1]s)) return true;
  const el = document.createElement('div');
  el.id = %[1]s;
  el.textContent = %[2]s;
  el.style.cssText = 'position:fixed;top:0;left:0;right:0;z-index:2147483647;padding:12px 16px;background:#fde047;color:#111;font:600 15px sans-serif;text-align:center;box-shadow:0 2px 6px rgba(0,0,0,.3)';
  document.body.appendChild(el);
  return true;
})()`, jsQuote(bannerID), jsQuote(text))
}
