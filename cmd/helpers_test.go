package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/automation"
	"github.com/xkilldash9x/seatctl/internal/config"
	"github.com/xkilldash9x/seatctl/internal/engine"
	"github.com/xkilldash9x/seatctl/internal/observability"
	"github.com/xkilldash9x/seatctl/internal/service"
	"github.com/xkilldash9x/seatctl/internal/store"
)

// -- Fakes --

// memStore keeps accounts and jobs in memory and hands out copies.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]schemas.Account
	jobs     map[string]schemas.InviteJob
	probes   []schemas.ProbeResult
}

func newMemStore(accounts ...schemas.Account) *memStore {
	s := &memStore{accounts: map[string]schemas.Account{}, jobs: map[string]schemas.InviteJob{}}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *memStore) ListAccounts(ctx context.Context) ([]schemas.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (s *memStore) GetAccount(ctx context.Context, id string) (schemas.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return schemas.Account{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	return a, nil
}

func (s *memStore) ApplyProbe(ctx context.Context, id string, p schemas.ProbeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = append(s.probes, p)
	return nil
}

func (s *memStore) CreateJob(ctx context.Context, job *schemas.InviteJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *memStore) UpdateJob(ctx context.Context, job *schemas.InviteJob) error {
	return s.CreateJob(ctx, job)
}

func (s *memStore) GetJob(ctx context.Context, id string) (*schemas.InviteJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	c := cloneJob(&j)
	return &c, nil
}

func (s *memStore) probeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.probes)
}

func cloneJob(j *schemas.InviteJob) schemas.InviteJob {
	c := *j
	c.Addresses = append([]string(nil), j.Addresses...)
	c.Outcomes = append([]schemas.InviteOutcome(nil), j.Outcomes...)
	return c
}

// stubSession succeeds at everything except the configured failures.
type stubSession struct {
	loginErr    error
	inviteFails map[string]error
	count       int
}

func (s *stubSession) DetectSession(ctx context.Context) (automation.SessionState, error) {
	return automation.SessionLoggedIn, nil
}
func (s *stubSession) EnsureLoggedIn(ctx context.Context, creds automation.Credentials) error {
	return s.loginErr
}
func (s *stubSession) Login(ctx context.Context, creds automation.Credentials) error {
	return s.loginErr
}
func (s *stubSession) ManualLogin(ctx context.Context) error                        { return nil }
func (s *stubSession) SelectWorkspace(ctx context.Context) error                    { return nil }
func (s *stubSession) OpenMembers(ctx context.Context, tab schemas.MemberTab) error { return nil }
func (s *stubSession) ReadMemberCount(ctx context.Context) (int, error)             { return s.count, nil }
func (s *stubSession) ReadMembers(ctx context.Context, owner string) (schemas.MemberSnapshot, error) {
	n := s.count
	return schemas.MemberSnapshot{Addresses: []string{"a@acme.test"}, CountHint: &n}, nil
}
func (s *stubSession) InviteMember(ctx context.Context, email string, role schemas.Role) (automation.InviteResult, error) {
	if err := s.inviteFails[email]; err != nil {
		return automation.InviteResult{}, err
	}
	return automation.InviteResult{Email: email, Confirmation: automation.ConfirmedUI}, nil
}
func (s *stubSession) SeedCookies(ctx context.Context, cookies []schemas.Cookie) error { return nil }
func (s *stubSession) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	return []schemas.Cookie{{Name: "session", Value: "v", Domain: "chatgpt.com", Path: "/"}}, nil
}
func (s *stubSession) Screenshot(ctx context.Context, prefix string) string { return "" }
func (s *stubSession) Close() error                                         { return nil }

type stubOpener struct {
	sess service.Session
	err  error
}

func (o *stubOpener) Open(ctx context.Context, acct schemas.Account, opts service.OpenOptions) (service.Session, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.sess, nil
}

type noProfiles struct{}

func (noProfiles) Exists(string) bool  { return false }
func (noProfiles) Delete(string) error { return nil }

// fakeFactory builds a service over the fakes, with a real task engine, and records the
// configuration it was handed.
type fakeFactory struct {
	store  *memStore
	opener service.Opener
	err    error

	gotCfg config.Interface
}

func (f *fakeFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger, opts ...service.Option) (*service.Components, error) {
	f.gotCfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	eng, err := engine.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	eng.Start(ctx)
	opts = append([]service.Option{service.WithIDs(func() string { return "job-1" })}, opts...)
	svc, err := service.New(cfg, service.Dependencies{
		Store:    f.store,
		Opener:   f.opener,
		Profiles: noProfiles{},
		Runner:   eng,
	}, logger, opts...)
	if err != nil {
		eng.Stop()
		return nil, err
	}
	return &service.Components{Service: svc, Engine: eng}, nil
}

// -- Helpers --

// useFactory swaps the package factory for the test's duration and silences the global logger.
func useFactory(t *testing.T, f service.ComponentFactory) {
	t.Helper()
	orig := factory
	factory = f
	t.Cleanup(func() { factory = orig })

	observability.ResetForTest()
	observability.Initialize(config.LoggerConfig{Level: "fatal", Format: "console"}, zapcore.AddSync(io.Discard))
	t.Cleanup(observability.ResetForTest)

	// Keep the tests away from any config file in the working directory.
	t.Chdir(t.TempDir())
}

// executeCommand runs a fresh command tree and returns everything it printed.
func executeCommand(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func testAccount() schemas.Account {
	return schemas.Account{
		ID:             "acct-1",
		Name:           "Acme",
		Email:          "owner@acme.test",
		Status:         schemas.AccountActive,
		Cookies:        []schemas.Cookie{{Name: "session", Value: "old", Domain: "chatgpt.com", Path: "/"}},
		InviteInterval: 1,
	}
}
