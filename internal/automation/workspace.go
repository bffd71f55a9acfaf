package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// workspaceDialog returns the visible workspace picker, if one is open.
func workspaceDialog(snap *Snapshot) *goquery.Selection {
	return snap.Dialogs().FilterFunction(func(_ int, el *goquery.Selection) bool {
		return isWorkspacePrompt(elementText(el))
	}).First()
}

// WorkspaceCandidates lists the team options of a picker dialog in document order.
// Hidden, disabled and personal options are dropped.
func WorkspaceCandidates(dialog *goquery.Selection) *goquery.Selection {
	return interactive(dialog.Find(workspaceCandidateSelector)).FilterFunction(func(_ int, el *goquery.Selection) bool {
		if isPersonalWorkspace(elementText(el)) {
			return false
		}
		// Skip wrappers such as an li around the real button; the inner control is clicked instead.
		return el.Find(workspaceCandidateSelector).Length() == 0
	})
}

// SelectWorkspace resolves the workspace picker when it is shown. An absent picker is success.
func (c *Client) SelectWorkspace(ctx context.Context) error {
	for attempt := 1; attempt <= c.opts.WorkspaceAttempts; attempt++ {
		snap, err := c.snapshot(ctx)
		if err != nil {
			return newError(CodeWorkspaceSelectionFailed, "select-workspace", err)
		}
		dialog := workspaceDialog(snap)
		if dialog.Length() == 0 {
			if attempt > 1 {
				c.logger.Info("Workspace selected.", zap.Int("attempts", attempt-1))
			}
			return nil
		}

		candidate := WorkspaceCandidates(dialog).First()
		if candidate.Length() == 0 {
			return c.fail(ctx, newError(CodeNoWorkspaceOption, "select-workspace", errors.New("no team workspace offered")), "workspace-no-option")
		}
		c.logger.Info("Selecting workspace.", zap.String("workspace", elementText(candidate)), zap.Int("attempt", attempt))
		if err := c.clickElement(ctx, candidate); err != nil {
			c.logger.Warn("Workspace click failed.", zap.Error(err))
			continue
		}

		err = poll(ctx, c.opts.WorkspaceTimeout, c.opts.PollInterval, "workspace dialog to close", func(ctx context.Context) (bool, error) {
			snap, err := c.snapshot(ctx)
			if err != nil {
				return false, nil
			}
			return workspaceDialog(snap).Length() == 0, nil
		})
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			c.logger.Info("Workspace selected.", zap.Int("attempts", attempt))
			return nil
		}
	}
	return c.fail(ctx, newError(CodeWorkspaceSelectionFailed, "select-workspace",
		fmt.Errorf("dialog still open after %d attempts", c.opts.WorkspaceAttempts)), "workspace-select-failed")
}
