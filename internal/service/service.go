// Package service exposes the account and invite operations and wires their components.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/message"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/automation"
	"github.com/xkilldash9x/seatctl/internal/config"
	"github.com/xkilldash9x/seatctl/internal/engine"
	"github.com/xkilldash9x/seatctl/internal/i18n"
	"github.com/xkilldash9x/seatctl/internal/invite"
)

// Store persists accounts and invite jobs. *store.Store implements it.
type Store interface {
	ListAccounts(ctx context.Context) ([]schemas.Account, error)
	GetAccount(ctx context.Context, id string) (schemas.Account, error)
	ApplyProbe(ctx context.Context, id string, probe schemas.ProbeResult) error
	CreateJob(ctx context.Context, job *schemas.InviteJob) error
	UpdateJob(ctx context.Context, job *schemas.InviteJob) error
	GetJob(ctx context.Context, id string) (*schemas.InviteJob, error)
}

// Decrypter opens stored credentials. It must fail on malformed input.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Profiles tracks the persistent per-account browser profiles.
type Profiles interface {
	Exists(accountID string) bool
	Delete(accountID string) error
}

// Runner runs detached tasks. *engine.TaskEngine implements it.
type Runner interface {
	Submit(task engine.Task) (*engine.Handle, error)
}

// Session is one open automation session. *automation.Client implements it.
type Session interface {
	DetectSession(ctx context.Context) (automation.SessionState, error)
	EnsureLoggedIn(ctx context.Context, creds automation.Credentials) error
	Login(ctx context.Context, creds automation.Credentials) error
	ManualLogin(ctx context.Context) error
	SelectWorkspace(ctx context.Context) error
	OpenMembers(ctx context.Context, tab schemas.MemberTab) error
	ReadMemberCount(ctx context.Context) (int, error)
	ReadMembers(ctx context.Context, owner string) (schemas.MemberSnapshot, error)
	InviteMember(ctx context.Context, email string, role schemas.Role) (automation.InviteResult, error)
	SeedCookies(ctx context.Context, cookies []schemas.Cookie) error
	Cookies(ctx context.Context) ([]schemas.Cookie, error)
	Screenshot(ctx context.Context, prefix string) string
	Close() error
}

// OpenOptions selects the browser behind a session.
type OpenOptions struct {
	// Dedicated runs a browser on the account's persistent profile instead of a pool lease.
	Dedicated   bool
	Headless    bool
	Interactive bool
}

// Opener opens sessions for accounts.
type Opener interface {
	Open(ctx context.Context, account schemas.Account, opts OpenOptions) (Session, error)
}

// Dependencies are the collaborators of a Service.
type Dependencies struct {
	Store    Store
	Opener   Opener
	Profiles Profiles
	Secrets  Decrypter
	Runner   Runner
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs overrides job id generation.
func WithIDs(next func() string) Option {
	return func(s *Service) { s.newID = next }
}

// WithProgress receives every progress event of every job run by the service.
func WithProgress(fn func(jobID string, event schemas.ProgressEvent)) Option {
	return func(s *Service) { s.progress = fn }
}

// Service implements the operator-facing operations.
type Service struct {
	cfg      config.Interface
	deps     Dependencies
	executor *invite.Executor
	printer  *message.Printer
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
	progress func(jobID string, event schemas.ProgressEvent)
}

// New creates a Service.
func New(cfg config.Interface, deps Dependencies, logger *zap.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if deps.Store == nil || deps.Opener == nil || deps.Profiles == nil {
		return nil, errors.New("store, opener and profiles are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cfg:      cfg,
		deps:     deps,
		executor: invite.NewExecutor(logger),
		printer:  i18n.Printer(cfg.Service().Locale),
		logger:   logger.Named("service"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// initialized reports whether the account has a persistent profile or a stored session.
func (s *Service) initialized(acct *schemas.Account) bool {
	return s.deps.Profiles.Exists(acct.ID) || acct.HasSession()
}

// credentials decrypts the account's password. An account without one yields empty
// credentials, which only the manual login path can use.
func (s *Service) credentials(acct *schemas.Account) (automation.Credentials, error) {
	creds := automation.Credentials{Email: acct.Email}
	if acct.EncryptedPassword == "" {
		return creds, nil
	}
	if s.deps.Secrets == nil {
		return creds, errors.New("no credential cipher configured")
	}
	pw, err := s.deps.Secrets.Decrypt(acct.EncryptedPassword)
	if err != nil {
		return creds, fmt.Errorf("failed to decrypt credentials of account %s: %w", acct.ID, err)
	}
	creds.Password = pw
	return creds, nil
}

// open starts a session for acct: its dedicated profile browser when one exists, else a pool
// lease seeded with the stored cookies.
func (s *Service) open(ctx context.Context, acct *schemas.Account, opts OpenOptions) (Session, error) {
	if !opts.Dedicated {
		opts.Dedicated = s.deps.Profiles.Exists(acct.ID)
	}
	sess, err := s.deps.Opener.Open(ctx, *acct, opts)
	if err != nil {
		return nil, err
	}
	if !opts.Dedicated {
		if err := sess.SeedCookies(ctx, acct.Cookies); err != nil {
			s.logger.Warn("Could not seed stored session.", zap.String("account_id", acct.ID), zap.Error(err))
		}
	}
	return sess, nil
}

func (s *Service) close(sess Session, accountID string) {
	if err := sess.Close(); err != nil {
		s.logger.Warn("Failed to close automation session.", zap.String("account_id", accountID), zap.Error(err))
	}
}

// captureCookies returns the page cookies, or nil when they cannot be read. A nil slice
// leaves the stored artifact untouched.
func (s *Service) captureCookies(ctx context.Context, sess Session, accountID string) []schemas.Cookie {
	cookies, err := sess.Cookies(ctx)
	if err != nil || len(cookies) == 0 {
		s.logger.Warn("Could not capture session cookies.", zap.String("account_id", accountID), zap.Error(err))
		return nil
	}
	return cookies
}

func (s *Service) msg(key string, args ...interface{}) string {
	return s.printer.Sprintf(key, args...)
}

// describe renders err for an operator. Automation failures use the localized text of their
// code; anything else falls back to the error string.
func (s *Service) describe(err error) string {
	if err == nil {
		return ""
	}
	if key, ok := codeMessages[automation.CodeOf(err)]; ok {
		return s.msg(key)
	}
	return err.Error()
}

var codeMessages = map[automation.Code]string{
	automation.CodeLaunchFailure:            i18n.ErrLaunchFailure,
	automation.CodeLoginFailed:              i18n.ErrLoginFailed,
	automation.CodeWorkspaceSelectionFailed: i18n.ErrWorkspaceFailed,
	automation.CodeNoWorkspaceOption:        i18n.ErrNoWorkspaceOption,
	automation.CodeWrongPage:                i18n.ErrWrongPage,
	automation.CodeInviteButtonNotFound:     i18n.ErrInviteButton,
	automation.CodeEmailInputNotFound:       i18n.ErrEmailInput,
	automation.CodeSendButtonNotFound:       i18n.ErrSendButton,
	automation.CodeInviteRequestFailed:      i18n.ErrInviteRequest,
	automation.CodeInviteUnconfirmed:        i18n.ErrInviteUnconfirmed,
	automation.CodeExtractionFailed:         i18n.ErrExtraction,
}
