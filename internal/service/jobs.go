package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/engine"
	"github.com/xkilldash9x/seatctl/internal/i18n"
	"github.com/xkilldash9x/seatctl/internal/invite"
	"github.com/xkilldash9x/seatctl/internal/selector"
)

// ErrNoAddresses is returned when a job request holds no valid address.
var ErrNoAddresses = errors.New("no valid email addresses")

// CreateJobRequest asks for a bulk invite on one account. Each entry of Addresses may hold
// several addresses separated by commas, semicolons or newlines.
type CreateJobRequest struct {
	AccountID string
	Addresses []string
	Role      schemas.Role
}

// AutoInviteResult names the account chosen for an automatic invite and its queued job.
type AutoInviteResult struct {
	Account schemas.Account
	Job     *schemas.InviteJob
	Handle  *engine.Handle
	Message string
}

// CreateInviteJob validates the addresses and persists a pending job.
func (s *Service) CreateInviteJob(ctx context.Context, req CreateJobRequest) (*schemas.InviteJob, error) {
	addrs, err := s.parseAddresses(req.Addresses)
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Store.GetAccount(ctx, req.AccountID); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = schemas.Role(s.cfg.Invite().DefaultRole)
	}
	if role != schemas.RoleMember && role != schemas.RoleAdmin {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	job := schemas.NewInviteJob(s.newID(), req.AccountID, addrs, role, s.now())
	if err := s.deps.Store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info(s.msg(i18n.JobCreated, len(addrs)),
		zap.String("job_id", job.ID),
		zap.String("account_id", req.AccountID),
	)
	return job, nil
}

func (s *Service) parseAddresses(raw []string) ([]string, error) {
	valid, invalid := invite.ParseAddresses(strings.Join(raw, "\n"))
	if len(invalid) > 0 {
		s.logger.Warn("Skipping malformed addresses.", zap.Strings("invalid", invalid))
	}
	if len(valid) == 0 {
		return nil, ErrNoAddresses
	}
	return valid, nil
}

// ExecuteInviteJob queues a pending job on the runner and returns at once. The job record is
// updated as the run progresses; the handle lets a caller wait for it.
func (s *Service) ExecuteInviteJob(ctx context.Context, jobID string) (*engine.Handle, error) {
	if s.deps.Runner == nil {
		return nil, errors.New("no job runner configured")
	}
	job, err := s.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != schemas.JobPending {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, schemas.ErrInvalidTransition)
	}
	return s.deps.Runner.Submit(engine.Task{
		ID:        jobID,
		Run:       func(ctx context.Context) error { return s.runJob(ctx, jobID) },
		OnFailure: func(ctx context.Context, err error) { s.failJob(ctx, jobID, err) },
	})
}

// runJob is the body of a queued job. Any error it returns fails the job.
func (s *Service) runJob(ctx context.Context, jobID string) error {
	job, err := s.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	acct, err := s.deps.Store.GetAccount(ctx, job.AccountID)
	if err != nil {
		return err
	}
	logger := s.logger.With(zap.String("job_id", jobID), zap.String("account_id", acct.ID))

	if err := job.Transition(schemas.JobRunning, s.now()); err != nil {
		return err
	}
	if err := s.deps.Store.UpdateJob(ctx, job); err != nil {
		return err
	}
	logger.Info("Invite job started.", zap.Int("addresses", len(job.Addresses)))

	creds, err := s.credentials(&acct)
	if err != nil {
		return err
	}
	sess, err := s.open(ctx, &acct, OpenOptions{
		Headless:    s.cfg.Browser().Headless,
		Interactive: s.cfg.Automation().Interactive,
	})
	if err != nil {
		return err
	}
	defer s.close(sess, acct.ID)

	if err := sess.EnsureLoggedIn(ctx, creds); err != nil {
		s.recordError(ctx, acct.ID, err)
		return fmt.Errorf("login failed: %w", err)
	}
	if err := sess.OpenMembers(ctx, schemas.TabMembers); err != nil {
		s.recordError(ctx, acct.ID, err)
		return fmt.Errorf("members surface unavailable: %w", err)
	}

	delay := acct.InviteInterval
	if delay <= 0 {
		delay = s.cfg.Invite().DefaultDelay
	}
	obs := &jobObserver{svc: s, job: job, logger: logger}
	sum, err := s.executor.Run(ctx, sess, invite.Request{Addresses: job.Addresses, Role: job.Role, Delay: delay}, obs)
	if err != nil {
		return err
	}

	if err := job.Finish(schemas.JobCompleted, "", s.now()); err != nil {
		return err
	}
	if err := s.deps.Store.UpdateJob(ctx, job); err != nil {
		return err
	}
	logger.Info("Invite job completed.", zap.Int("success", sum.SuccessCount), zap.Int("failed", sum.FailCount))

	s.refreshMemberCount(ctx, sess, acct.ID, logger)
	return nil
}

// refreshMemberCount re-reads the count hint after a job. It never fails the job.
func (s *Service) refreshMemberCount(ctx context.Context, sess Session, accountID string, logger *zap.Logger) {
	if err := sess.OpenMembers(ctx, schemas.TabMembers); err != nil {
		logger.Warn("Could not refresh member count.", zap.Error(err))
		return
	}
	n, err := sess.ReadMemberCount(ctx)
	if err != nil {
		logger.Warn("Could not refresh member count.", zap.Error(err))
		return
	}
	if err := s.deps.Store.ApplyProbe(ctx, accountID, schemas.ProbeResult{
		Status: schemas.AccountActive, MemberCount: &n, CheckedAt: s.now(), Synced: true,
	}); err != nil {
		logger.Warn("Could not store refreshed member count.", zap.Error(err))
	}
}

// failJob marks the job failed from its last persisted state, so outcomes recorded before the
// failure are kept.
func (s *Service) failJob(ctx context.Context, jobID string, cause error) {
	logger := s.logger.With(zap.String("job_id", jobID))
	job, err := s.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		logger.Error("Could not load failed job.", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	if job.Status.Terminal() {
		logger.Warn("Job already finished, keeping its status.", zap.String("status", string(job.Status)), zap.NamedError("cause", cause))
		return
	}
	if err := job.Finish(schemas.JobFailed, cause.Error(), s.now()); err != nil {
		logger.Error("Could not mark job failed.", zap.Error(err))
		return
	}
	if err := s.deps.Store.UpdateJob(ctx, job); err != nil {
		logger.Error("Could not persist failed job.", zap.Error(err))
		return
	}
	logger.Warn("Invite job failed.", zap.String("reason", s.describe(cause)), zap.Error(cause))
}

// jobObserver persists every outcome before the executor moves on.
type jobObserver struct {
	svc    *Service
	job    *schemas.InviteJob
	logger *zap.Logger
}

func (o *jobObserver) OnOutcome(ctx context.Context, index int, outcome schemas.InviteOutcome) {
	o.job.Record(index, outcome, o.svc.now())
	if err := o.svc.deps.Store.UpdateJob(ctx, o.job); err != nil {
		o.logger.Warn("Failed to persist invite outcome.", zap.Int("index", index), zap.Error(err))
	}
}

func (o *jobObserver) OnProgress(event schemas.ProgressEvent) {
	o.logger.Debug("Invite progress.",
		zap.Int("index", event.Index),
		zap.Int("total", event.Total),
		zap.String("status", string(event.Status)),
	)
	if o.svc.progress != nil {
		o.svc.progress(o.job.ID, event)
	}
}

// AutoInvite picks the best account for the addresses, creates the job there and queues it.
func (s *Service) AutoInvite(ctx context.Context, addresses []string, role schemas.Role) (AutoInviteResult, error) {
	if _, err := s.parseAddresses(addresses); err != nil {
		return AutoInviteResult{Message: s.msg(i18n.JobNoAddresses)}, err
	}
	accounts, err := s.deps.Store.ListAccounts(ctx)
	if err != nil {
		return AutoInviteResult{}, err
	}
	acct, err := selector.Select(accounts, s.cfg.Invite().MemberLimit, s.deps.Profiles)
	if err != nil {
		return AutoInviteResult{Message: s.msg(i18n.NoEligibleAccount)}, err
	}

	job, err := s.CreateInviteJob(ctx, CreateJobRequest{AccountID: acct.ID, Addresses: addresses, Role: role})
	if err != nil {
		return AutoInviteResult{Account: acct}, err
	}
	h, err := s.ExecuteInviteJob(ctx, job.ID)
	if err != nil {
		return AutoInviteResult{Account: acct, Job: job}, err
	}
	name := acct.Name
	if name == "" {
		name = acct.Email
	}
	return AutoInviteResult{Account: acct, Job: job, Handle: h, Message: s.msg(i18n.AutoInviteQueued, name)}, nil
}

// WaitJob waits for h and returns the final job record.
func (s *Service) WaitJob(ctx context.Context, h *engine.Handle) (*schemas.InviteJob, error) {
	runErr := h.Wait(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	job, err := s.deps.Store.GetJob(ctx, h.ID())
	if err != nil {
		return nil, err
	}
	return job, runErr
}
