package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/automation"
	"github.com/xkilldash9x/seatctl/internal/i18n"
)

// LoginStatus is the result of CheckLogin.
type LoginStatus struct {
	Success     bool `json:"success"`
	Initialized bool `json:"initialized"`
	LoggedIn    bool `json:"logged_in"`
	// MemberCount includes the owner. Nil when the count hint could not be read.
	MemberCount               *int      `json:"member_count,omitempty"`
	MemberLimit               int       `json:"member_limit"`
	SeatsRemaining            *int      `json:"seats_remaining,omitempty"`
	MemberCountExcludingOwner *int      `json:"member_count_excluding_owner,omitempty"`
	Message                   string    `json:"message"`
	Screenshot                string    `json:"screenshot,omitempty"`
	CheckedAt                 time.Time `json:"checked_at"`
}

// SyncResult is the result of SyncMembers.
type SyncResult struct {
	Success    bool                    `json:"success"`
	Count      int                     `json:"count"`
	Message    string                  `json:"message"`
	Screenshot string                  `json:"screenshot,omitempty"`
	Snapshot   *schemas.MemberSnapshot `json:"snapshot,omitempty"`
}

// Result is the outcome of VerifyCredentials and InitLogin.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Screenshot string `json:"screenshot,omitempty"`
}

const errNotInitialized = "not initialized"

// CheckLogin probes whether the account's stored login still works and, when it does, reads
// the member count. An account that was never initialized is marked inactive without
// launching a browser.
func (s *Service) CheckLogin(ctx context.Context, accountID string) (LoginStatus, error) {
	acct, err := s.deps.Store.GetAccount(ctx, accountID)
	if err != nil {
		return LoginStatus{}, err
	}
	logger := s.logger.With(zap.String("account_id", accountID))
	now := s.now()
	st := LoginStatus{MemberLimit: acct.EffectiveLimit(s.cfg.Invite().MemberLimit), CheckedAt: now}

	if !s.initialized(&acct) {
		st.Success = true
		st.Message = s.msg(i18n.NotInitialized)
		return st, s.deps.Store.ApplyProbe(ctx, accountID, schemas.ProbeResult{
			Status: schemas.AccountInactive, Error: errNotInitialized, CheckedAt: now,
		})
	}
	st.Initialized = true

	sess, err := s.open(ctx, &acct, OpenOptions{Headless: s.cfg.Browser().Headless})
	if err != nil {
		return s.checkFailed(ctx, accountID, st, err)
	}
	defer s.close(sess, accountID)

	state, err := sess.DetectSession(ctx)
	if err != nil {
		return s.checkFailed(ctx, accountID, st, err)
	}
	if state != automation.SessionLoggedIn {
		logger.Info("Stored login has expired.")
		st.Success = true
		st.Message = s.msg(i18n.LoggedOut)
		return st, s.deps.Store.ApplyProbe(ctx, accountID, schemas.ProbeResult{
			Status: schemas.AccountError, Error: "not logged in", CheckedAt: now,
		})
	}
	st.Success, st.LoggedIn = true, true

	if err := sess.OpenMembers(ctx, schemas.TabMembers); err != nil {
		logger.Warn("Members surface unavailable during login check.", zap.Error(err))
	} else if n, err := sess.ReadMemberCount(ctx); err != nil {
		logger.Warn("Member count unavailable during login check.", zap.Error(err))
	} else {
		st.setCount(n)
	}

	if st.MemberCount != nil {
		st.Message = s.msg(i18n.LoggedInWithCount, *st.MemberCount)
	} else {
		st.Message = s.msg(i18n.LoggedInNoCount)
	}
	return st, s.deps.Store.ApplyProbe(ctx, accountID, schemas.ProbeResult{
		Status:      schemas.AccountActive,
		MemberCount: st.MemberCount,
		Cookies:     s.captureCookies(ctx, sess, accountID),
		CheckedAt:   now,
	})
}

func (st *LoginStatus) setCount(n int) {
	excluding := max(0, n-1)
	remaining := max(0, st.MemberLimit-n)
	st.MemberCount = &n
	st.MemberCountExcludingOwner = &excluding
	st.SeatsRemaining = &remaining
}

func (s *Service) checkFailed(ctx context.Context, accountID string, st LoginStatus, cause error) (LoginStatus, error) {
	s.recordError(ctx, accountID, cause)
	st.Success = false
	st.Message = s.msg(i18n.CheckFailed, s.describe(cause))
	st.Screenshot = automation.ScreenshotOf(cause)
	return st, nil
}

// SyncMembers logs in when needed, reads the roster and stores the member count. A page
// without a count hint fails the sync rather than reporting zero members.
func (s *Service) SyncMembers(ctx context.Context, accountID string) (SyncResult, error) {
	acct, err := s.deps.Store.GetAccount(ctx, accountID)
	if err != nil {
		return SyncResult{}, err
	}
	logger := s.logger.With(zap.String("account_id", accountID))
	creds, err := s.credentials(&acct)
	if err != nil {
		return SyncResult{Message: s.msg(i18n.SyncFailed, err.Error())}, err
	}

	sess, err := s.open(ctx, &acct, OpenOptions{
		Headless:    s.cfg.Browser().Headless,
		Interactive: s.cfg.Automation().Interactive,
	})
	if err != nil {
		return s.syncFailed(ctx, accountID, schemas.AccountError, err), nil
	}
	defer s.close(sess, accountID)

	logger.Info("Sync step 1: ensuring login.")
	if err := sess.EnsureLoggedIn(ctx, creds); err != nil {
		return s.syncFailed(ctx, accountID, schemas.AccountError, err), nil
	}
	logger.Info("Sync step 2: opening the members surface.")
	if err := sess.OpenMembers(ctx, schemas.TabMembers); err != nil {
		return s.syncFailed(ctx, accountID, schemas.AccountActive, err), nil
	}
	logger.Info("Sync step 3: reading the roster.")
	snap, err := sess.ReadMembers(ctx, acct.Email)
	if err != nil {
		return s.syncFailed(ctx, accountID, schemas.AccountActive, err), nil
	}
	count, ok := snap.Count()
	if !ok {
		shot := sess.Screenshot(ctx, "sync-members-no-count")
		logger.Error("Member count hint missing.", zap.String("screenshot", shot))
		if perr := s.deps.Store.ApplyProbe(ctx, accountID, schemas.ProbeResult{
			Status: schemas.AccountActive, Error: "member count unavailable", CheckedAt: s.now(),
		}); perr != nil {
			logger.Warn("Failed to record sync failure.", zap.Error(perr))
		}
		return SyncResult{Message: s.msg(i18n.SyncNoCount), Screenshot: shot, Snapshot: &snap}, nil
	}

	if err := s.deps.Store.ApplyProbe(ctx, accountID, schemas.ProbeResult{
		Status:      schemas.AccountActive,
		MemberCount: &count,
		Cookies:     s.captureCookies(ctx, sess, accountID),
		CheckedAt:   s.now(),
		Synced:      true,
	}); err != nil {
		return SyncResult{}, err
	}
	logger.Info("Members synced.", zap.Int("count", count), zap.Int("addresses", len(snap.Addresses)))
	return SyncResult{Success: true, Count: count, Message: s.msg(i18n.SyncSucceeded, count), Snapshot: &snap}, nil
}

func (s *Service) syncFailed(ctx context.Context, accountID string, status schemas.AccountStatus, cause error) SyncResult {
	shot := automation.ScreenshotOf(cause)
	s.logger.Error("Member sync failed.", zap.String("account_id", accountID), zap.String("screenshot", shot), zap.Error(cause))
	if err := s.deps.Store.ApplyProbe(ctx, accountID, schemas.ProbeResult{
		Status: status, Error: cause.Error(), CheckedAt: s.now(),
	}); err != nil {
		s.logger.Warn("Failed to record sync failure.", zap.String("account_id", accountID), zap.Error(err))
	}
	return SyncResult{Message: s.msg(i18n.SyncFailed, s.describe(cause)), Screenshot: shot}
}

// VerifyCredentials logs in with the stored credentials in a fresh browser and resolves the
// workspace picker. A workspace failure after a good login is only logged.
func (s *Service) VerifyCredentials(ctx context.Context, accountID string) (Result, error) {
	acct, err := s.deps.Store.GetAccount(ctx, accountID)
	if err != nil {
		return Result{}, err
	}
	logger := s.logger.With(zap.String("account_id", accountID))
	creds, err := s.credentials(&acct)
	if err == nil && creds.Password == "" {
		err = errors.New("account has no stored password")
	}
	if err != nil {
		s.recordError(ctx, accountID, err)
		return Result{Message: s.msg(i18n.VerifyFailed, err.Error())}, err
	}

	sess, err := s.deps.Opener.Open(ctx, acct, OpenOptions{Headless: s.cfg.Browser().Headless})
	if err != nil {
		return s.verifyFailed(ctx, accountID, err), nil
	}
	defer s.close(sess, accountID)

	logger.Info("Verify step 1: logging in.")
	if err := sess.Login(ctx, creds); err != nil {
		return s.verifyFailed(ctx, accountID, err), nil
	}
	logger.Info("Verify step 2: selecting the workspace.")
	if err := sess.SelectWorkspace(ctx); err != nil {
		logger.Warn("Workspace selection failed after a successful login.", zap.Error(err))
	}

	if err := s.deps.Store.ApplyProbe(ctx, accountID, schemas.ProbeResult{
		Status:    schemas.AccountActive,
		Cookies:   s.captureCookies(ctx, sess, accountID),
		CheckedAt: s.now(),
		Synced:    true,
	}); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: s.msg(i18n.VerifySucceeded)}, nil
}

func (s *Service) verifyFailed(ctx context.Context, accountID string, cause error) Result {
	s.recordError(ctx, accountID, cause)
	return Result{Message: s.msg(i18n.VerifyFailed, s.describe(cause)), Screenshot: automation.ScreenshotOf(cause)}
}

// recordError marks the account as errored. Failures to write are logged only.
func (s *Service) recordError(ctx context.Context, accountID string, cause error) {
	s.logger.Error("Account operation failed.",
		zap.String("account_id", accountID),
		zap.String("screenshot", automation.ScreenshotOf(cause)),
		zap.Error(cause),
	)
	if err := s.deps.Store.ApplyProbe(ctx, accountID, schemas.ProbeResult{
		Status: schemas.AccountError, Error: cause.Error(), CheckedAt: s.now(),
	}); err != nil {
		s.logger.Warn("Failed to record account error.", zap.String("account_id", accountID), zap.Error(err))
	}
}

// InitLogin opens a visible browser on the account's persistent profile and waits for the
// operator to log in by hand. The captured cookies make the account usable from pooled
// browsers too.
func (s *Service) InitLogin(ctx context.Context, accountID string) (Result, error) {
	acct, err := s.deps.Store.GetAccount(ctx, accountID)
	if err != nil {
		return Result{}, err
	}
	sess, err := s.deps.Opener.Open(ctx, acct, OpenOptions{Dedicated: true, Headless: false, Interactive: true})
	if err != nil {
		s.recordError(ctx, accountID, err)
		return Result{Message: s.msg(i18n.InitLoginFailed, s.describe(err))}, nil
	}
	defer s.close(sess, accountID)

	state, err := sess.DetectSession(ctx)
	if err != nil {
		s.logger.Warn("Session detection failed before manual login.", zap.String("account_id", accountID), zap.Error(err))
	}
	if state != automation.SessionLoggedIn {
		if err := sess.ManualLogin(ctx); err != nil {
			s.recordError(ctx, accountID, err)
			return Result{
				Message:    s.msg(i18n.InitLoginFailed, s.describe(err)),
				Screenshot: automation.ScreenshotOf(err),
			}, nil
		}
	}

	if err := s.deps.Store.ApplyProbe(ctx, accountID, schemas.ProbeResult{
		Status:    schemas.AccountActive,
		Cookies:   s.captureCookies(ctx, sess, accountID),
		CheckedAt: s.now(),
	}); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: s.msg(i18n.InitLoginSucceeded)}, nil
}

// DeleteProfile removes the account's persistent browser profile.
func (s *Service) DeleteProfile(ctx context.Context, accountID string) error {
	if err := s.deps.Profiles.Delete(accountID); err != nil {
		return fmt.Errorf("failed to delete profile of account %s: %w", accountID, err)
	}
	s.logger.Info("Deleted browser profile.", zap.String("account_id", accountID))
	return nil
}
