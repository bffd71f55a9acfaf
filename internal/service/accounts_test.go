package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/automation"
	"github.com/xkilldash9x/seatctl/internal/browser"
	"github.com/xkilldash9x/seatctl/internal/i18n"
)

var (
	testAccount = schemas.Account{
		ID:                "acct-1",
		Name:              "Acme",
		Email:             "owner@acme.test",
		EncryptedPassword: "sealed",
		Status:            schemas.AccountActive,
		CreatedAt:         testNow.Add(-48 * time.Hour),
	}
	storedCookies = []schemas.Cookie{{Name: "session", Value: "v", Domain: ".console.test", Path: "/"}}
)

func probeWith(status schemas.AccountStatus) interface{} {
	return mock.MatchedBy(func(p schemas.ProbeResult) bool { return p.Status == status })
}

func TestCheckLogin_NotInitialized(t *testing.T) {
	h := newHarness(t, testConfig(), nil, newFakeProfiles())
	h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
	h.store.On("ApplyProbe", mock.Anything, "acct-1", schemas.ProbeResult{
		Status: schemas.AccountInactive, Error: "not initialized", CheckedAt: testNow,
	}).Return(nil)

	st, err := h.svc.CheckLogin(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.True(t, st.Success)
	assert.False(t, st.Initialized)
	assert.False(t, st.LoggedIn)
	assert.Equal(t, i18n.NotInitialized, st.Message)
	h.opener.AssertNotCalled(t, "Open", mock.Anything, mock.Anything, mock.Anything)
	h.assertExpectations(t)
}

func TestCheckLogin_LoggedInReadsCount(t *testing.T) {
	h := newHarness(t, testConfig(), nil, newFakeProfiles("acct-1"))
	h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
	h.expectOpen(testAccount, OpenOptions{Dedicated: true, Headless: true})
	h.session.On("DetectSession", mock.Anything).Return(automation.SessionLoggedIn, nil)
	h.session.On("OpenMembers", mock.Anything, schemas.TabMembers).Return(nil)
	h.session.On("ReadMemberCount", mock.Anything).Return(3, nil)
	h.session.On("Cookies", mock.Anything).Return(storedCookies, nil)
	h.store.On("ApplyProbe", mock.Anything, "acct-1", schemas.ProbeResult{
		Status:      schemas.AccountActive,
		MemberCount: intPtr(3),
		Cookies:     storedCookies,
		CheckedAt:   testNow,
	}).Return(nil)

	st, err := h.svc.CheckLogin(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.True(t, st.Success)
	assert.True(t, st.LoggedIn)
	assert.Equal(t, 5, st.MemberLimit)
	require.NotNil(t, st.MemberCount)
	assert.Equal(t, 3, *st.MemberCount)
	assert.Equal(t, 2, *st.SeatsRemaining)
	assert.Equal(t, 2, *st.MemberCountExcludingOwner)
	assert.Equal(t, "Logged in, 3 members", st.Message)
	h.assertExpectations(t)
}

func TestCheckLogin_SeedsStoredSessionWithoutProfile(t *testing.T) {
	acct := testAccount
	acct.Cookies = storedCookies
	h := newHarness(t, testConfig(), nil, newFakeProfiles())
	h.store.On("GetAccount", mock.Anything, "acct-1").Return(acct, nil)
	h.expectOpen(acct, OpenOptions{Headless: true})
	h.session.On("SeedCookies", mock.Anything, storedCookies).Return(nil).Once()
	h.session.On("DetectSession", mock.Anything).Return(automation.SessionLoggedOut, nil)
	h.store.On("ApplyProbe", mock.Anything, "acct-1", schemas.ProbeResult{
		Status: schemas.AccountError, Error: "not logged in", CheckedAt: testNow,
	}).Return(nil)

	st, err := h.svc.CheckLogin(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.True(t, st.Success)
	assert.True(t, st.Initialized)
	assert.False(t, st.LoggedIn)
	assert.Nil(t, st.MemberCount)
	assert.Equal(t, i18n.LoggedOut, st.Message)
	h.assertExpectations(t)
}

func TestCheckLogin_MissingCountIsNotZero(t *testing.T) {
	h := newHarness(t, testConfig(), nil, newFakeProfiles("acct-1"))
	h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
	h.expectOpen(testAccount, OpenOptions{Dedicated: true, Headless: true})
	h.session.On("DetectSession", mock.Anything).Return(automation.SessionLoggedIn, nil)
	h.session.On("OpenMembers", mock.Anything, schemas.TabMembers).Return(nil)
	h.session.On("ReadMemberCount", mock.Anything).Return(0, &automation.Error{Code: automation.CodeExtractionFailed})
	h.session.On("Cookies", mock.Anything).Return(nil, errors.New("gone"))
	h.store.On("ApplyProbe", mock.Anything, "acct-1", mock.MatchedBy(func(p schemas.ProbeResult) bool {
		return p.Status == schemas.AccountActive && p.MemberCount == nil && p.Cookies == nil
	})).Return(nil)

	st, err := h.svc.CheckLogin(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.True(t, st.LoggedIn)
	assert.Nil(t, st.MemberCount)
	assert.Nil(t, st.SeatsRemaining)
	assert.Equal(t, i18n.LoggedInNoCount, st.Message)
	h.assertExpectations(t)
}

func TestCheckLogin_LaunchFailure(t *testing.T) {
	h := newHarness(t, testConfig(), nil, newFakeProfiles("acct-1"))
	h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
	h.opener.On("Open", mock.Anything, testAccount, mock.Anything).
		Return(nil, automation.LaunchError(browser.ErrLaunchFailure))
	h.store.On("ApplyProbe", mock.Anything, "acct-1", probeWith(schemas.AccountError)).Return(nil)

	st, err := h.svc.CheckLogin(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.False(t, st.Success)
	assert.Equal(t, "Login check failed: The browser could not be started", st.Message)
	h.assertExpectations(t)
}

func TestCheckLogin_UnknownAccount(t *testing.T) {
	h := newHarness(t, testConfig(), nil, newFakeProfiles())
	missing := errors.New("not found")
	h.store.On("GetAccount", mock.Anything, "nope").Return(schemas.Account{}, missing)

	_, err := h.svc.CheckLogin(context.Background(), "nope")
	assert.ErrorIs(t, err, missing)
}

func TestSyncMembers_Success(t *testing.T) {
	h := newHarness(t, testConfig(), nil, newFakeProfiles("acct-1"))
	creds := automation.Credentials{Email: "owner@acme.test", Password: "hunter2"}
	snap := schemas.MemberSnapshot{Addresses: []string{"a@acme.test", "b@acme.test"}, CountHint: intPtr(4)}

	h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
	h.secrets.On("Decrypt", "sealed").Return("hunter2", nil)
	h.expectOpen(testAccount, OpenOptions{Dedicated: true, Headless: true})
	h.session.On("EnsureLoggedIn", mock.Anything, creds).Return(nil)
	h.session.On("OpenMembers", mock.Anything, schemas.TabMembers).Return(nil)
	h.session.On("ReadMembers", mock.Anything, "owner@acme.test").Return(snap, nil)
	h.session.On("Cookies", mock.Anything).Return(storedCookies, nil)
	h.store.On("ApplyProbe", mock.Anything, "acct-1", schemas.ProbeResult{
		Status:      schemas.AccountActive,
		MemberCount: intPtr(4),
		Cookies:     storedCookies,
		CheckedAt:   testNow,
		Synced:      true,
	}).Return(nil)

	res, err := h.svc.SyncMembers(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 4, res.Count)
	assert.Equal(t, "Synced 4 members", res.Message)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, snap.Addresses, res.Snapshot.Addresses)
	h.assertExpectations(t)
}

func TestSyncMembers_MissingCountHint(t *testing.T) {
	h := newHarness(t, testConfig(), nil, newFakeProfiles("acct-1"))
	h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
	h.secrets.On("Decrypt", "sealed").Return("hunter2", nil)
	h.expectOpen(testAccount, OpenOptions{Dedicated: true, Headless: true})
	h.session.On("EnsureLoggedIn", mock.Anything, mock.Anything).Return(nil)
	h.session.On("OpenMembers", mock.Anything, schemas.TabMembers).Return(nil)
	h.session.On("ReadMembers", mock.Anything, "owner@acme.test").
		Return(schemas.MemberSnapshot{Addresses: []string{"a@acme.test"}}, nil)
	h.session.On("Screenshot", mock.Anything, "sync-members-no-count").Return("/tmp/sync-members-no-count-1.png")
	h.store.On("ApplyProbe", mock.Anything, "acct-1", mock.MatchedBy(func(p schemas.ProbeResult) bool {
		return p.MemberCount == nil && !p.Synced && p.Error != ""
	})).Return(nil)

	res, err := h.svc.SyncMembers(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Zero(t, res.Count)
	assert.Equal(t, i18n.SyncNoCount, res.Message)
	assert.Equal(t, "/tmp/sync-members-no-count-1.png", res.Screenshot)
	h.assertExpectations(t)
}

func TestSyncMembers_LoginFailed(t *testing.T) {
	h := newHarness(t, testConfig(), nil, newFakeProfiles("acct-1"))
	loginErr := &automation.Error{Code: automation.CodeLoginFailed, Op: "login", Screenshot: "/tmp/login-failed-1.png"}

	h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
	h.secrets.On("Decrypt", "sealed").Return("hunter2", nil)
	h.expectOpen(testAccount, OpenOptions{Dedicated: true, Headless: true})
	h.session.On("EnsureLoggedIn", mock.Anything, mock.Anything).Return(loginErr)
	h.store.On("ApplyProbe", mock.Anything, "acct-1", probeWith(schemas.AccountError)).Return(nil)

	res, err := h.svc.SyncMembers(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "Member sync failed: Login failed", res.Message)
	assert.Equal(t, "/tmp/login-failed-1.png", res.Screenshot)
	h.assertExpectations(t)
}

func TestSyncMembers_DecryptFailsLoudly(t *testing.T) {
	h := newHarness(t, testConfig(), nil, newFakeProfiles("acct-1"))
	bad := errors.New("malformed ciphertext")
	h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
	h.secrets.On("Decrypt", "sealed").Return("", bad)

	res, err := h.svc.SyncMembers(context.Background(), "acct-1")
	assert.ErrorIs(t, err, bad)
	assert.False(t, res.Success)
	h.opener.AssertNotCalled(t, "Open", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyCredentials(t *testing.T) {
	creds := automation.Credentials{Email: "owner@acme.test", Password: "hunter2"}

	t.Run("Success", func(t *testing.T) {
		h := newHarness(t, testConfig(), nil, newFakeProfiles("acct-1"))
		h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
		h.secrets.On("Decrypt", "sealed").Return("hunter2", nil)
		// Always a fresh pooled browser, even when a profile exists.
		h.expectOpen(testAccount, OpenOptions{Headless: true})
		h.session.On("Login", mock.Anything, creds).Return(nil)
		h.session.On("SelectWorkspace", mock.Anything).Return(&automation.Error{Code: automation.CodeWorkspaceSelectionFailed})
		h.session.On("Cookies", mock.Anything).Return(storedCookies, nil)
		h.store.On("ApplyProbe", mock.Anything, "acct-1", schemas.ProbeResult{
			Status: schemas.AccountActive, Cookies: storedCookies, CheckedAt: testNow, Synced: true,
		}).Return(nil)

		res, err := h.svc.VerifyCredentials(context.Background(), "acct-1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, i18n.VerifySucceeded, res.Message)
		h.assertExpectations(t)
	})

	t.Run("LoginRejected", func(t *testing.T) {
		h := newHarness(t, testConfig(), nil, newFakeProfiles())
		h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
		h.secrets.On("Decrypt", "sealed").Return("hunter2", nil)
		h.expectOpen(testAccount, OpenOptions{Headless: true})
		h.session.On("Login", mock.Anything, creds).Return(&automation.Error{Code: automation.CodeLoginFailed})
		h.store.On("ApplyProbe", mock.Anything, "acct-1", probeWith(schemas.AccountError)).Return(nil)

		res, err := h.svc.VerifyCredentials(context.Background(), "acct-1")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "Credential verification failed: Login failed", res.Message)
		h.assertExpectations(t)
	})

	t.Run("NoPassword", func(t *testing.T) {
		acct := testAccount
		acct.EncryptedPassword = ""
		h := newHarness(t, testConfig(), nil, newFakeProfiles())
		h.store.On("GetAccount", mock.Anything, "acct-1").Return(acct, nil)
		h.store.On("ApplyProbe", mock.Anything, "acct-1", probeWith(schemas.AccountError)).Return(nil)

		res, err := h.svc.VerifyCredentials(context.Background(), "acct-1")
		assert.Error(t, err)
		assert.False(t, res.Success)
	})
}

func TestInitLogin(t *testing.T) {
	t.Run("ManualLogin", func(t *testing.T) {
		h := newHarness(t, testConfig(), nil, newFakeProfiles())
		h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
		h.expectOpen(testAccount, OpenOptions{Dedicated: true, Headless: false, Interactive: true})
		h.session.On("DetectSession", mock.Anything).Return(automation.SessionLoggedOut, nil)
		h.session.On("ManualLogin", mock.Anything).Return(nil)
		h.session.On("Cookies", mock.Anything).Return(storedCookies, nil)
		h.store.On("ApplyProbe", mock.Anything, "acct-1", schemas.ProbeResult{
			Status: schemas.AccountActive, Cookies: storedCookies, CheckedAt: testNow,
		}).Return(nil)

		res, err := h.svc.InitLogin(context.Background(), "acct-1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, i18n.InitLoginSucceeded, res.Message)
		h.assertExpectations(t)
	})

	t.Run("AlreadyLoggedIn", func(t *testing.T) {
		h := newHarness(t, testConfig(), nil, newFakeProfiles("acct-1"))
		h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
		h.expectOpen(testAccount, OpenOptions{Dedicated: true, Headless: false, Interactive: true})
		h.session.On("DetectSession", mock.Anything).Return(automation.SessionLoggedIn, nil)
		h.session.On("Cookies", mock.Anything).Return(storedCookies, nil)
		h.store.On("ApplyProbe", mock.Anything, "acct-1", probeWith(schemas.AccountActive)).Return(nil)

		res, err := h.svc.InitLogin(context.Background(), "acct-1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		h.session.AssertNotCalled(t, "ManualLogin", mock.Anything)
	})

	t.Run("TimedOut", func(t *testing.T) {
		h := newHarness(t, testConfig(), nil, newFakeProfiles())
		h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
		h.expectOpen(testAccount, OpenOptions{Dedicated: true, Headless: false, Interactive: true})
		h.session.On("DetectSession", mock.Anything).Return(automation.SessionLoggedOut, nil)
		h.session.On("ManualLogin", mock.Anything).
			Return(&automation.Error{Code: automation.CodeLoginFailed, Screenshot: "/tmp/manual-login-timeout-1.png"})
		h.store.On("ApplyProbe", mock.Anything, "acct-1", probeWith(schemas.AccountError)).Return(nil)

		res, err := h.svc.InitLogin(context.Background(), "acct-1")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "/tmp/manual-login-timeout-1.png", res.Screenshot)
		h.assertExpectations(t)
	})
}

func TestLocalizedMessages(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceCfg.Locale = "zh-CN"
	h := newHarness(t, cfg, nil, newFakeProfiles())
	h.store.On("GetAccount", mock.Anything, "acct-1").Return(testAccount, nil)
	h.store.On("ApplyProbe", mock.Anything, "acct-1", mock.Anything).Return(nil)

	st, err := h.svc.CheckLogin(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "该账号尚未初始化登录", st.Message)
}

func TestDeleteProfile(t *testing.T) {
	profiles := newFakeProfiles("acct-1")
	h := newHarness(t, testConfig(), nil, profiles)

	require.NoError(t, h.svc.DeleteProfile(context.Background(), "acct-1"))
	assert.False(t, profiles.Exists("acct-1"))
	assert.Equal(t, []string{"acct-1"}, profiles.deleted)
}
