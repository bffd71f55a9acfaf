// internal/browser/profiles.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Profiles launches browsers rooted at a per-account profile directory, so that login
// state survives process restarts. These browsers are never pooled; the caller closes them.
type Profiles struct {
	root     string
	launcher Launcher
	logger   *zap.Logger
}

// NewProfiles manages profile directories under root.
func NewProfiles(root string, launcher Launcher, logger *zap.Logger) *Profiles {
	return &Profiles{root: root, launcher: launcher, logger: logger.Named("profiles")}
}

// Dir returns the profile directory of an account.
func (p *Profiles) Dir(accountID string) (string, error) {
	if accountID == "" || accountID == "." || accountID == ".." ||
		strings.ContainsAny(accountID, `/\`) {
		return "", fmt.Errorf("invalid account id %q", accountID)
	}
	return filepath.Join(p.root, accountID), nil
}

// Exists reports whether a persistent profile has been created for the account.
func (p *Profiles) Exists(accountID string) bool {
	dir, err := p.Dir(accountID)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Launch starts a dedicated browser on the account's profile, creating the directory if needed.
func (p *Profiles) Launch(ctx context.Context, accountID string, headless bool) (Browser, error) {
	dir, err := p.Dir(accountID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: failed to create profile directory: %v", ErrLaunchFailure, err)
	}
	b, err := p.launcher.Launch(ctx, LaunchOptions{Headless: headless, UserDataDir: dir})
	if err != nil {
		if !errors.Is(err, ErrLaunchFailure) {
			err = fmt.Errorf("%w: %v", ErrLaunchFailure, err)
		}
		return nil, err
	}
	p.logger.Info("Launched dedicated profile browser", zap.String("account_id", accountID), zap.Bool("headless", headless))
	return b, nil
}

// Delete removes the account's profile directory. A missing profile is not an error.
func (p *Profiles) Delete(accountID string) error {
	dir, err := p.Dir(accountID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", dir, err)
	}
	return nil
}
