package schemas

import (
	"errors"
	"fmt"
	"time"
)

// -- Invite Job Schemas --

// ErrInvalidTransition is returned when a job status change would move backwards.
var ErrInvalidTransition = errors.New("invalid job status transition")

// JobStatus tracks a bulk invite job through its lifecycle.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether moving from s to next is allowed.
// pending -> running -> completed|failed, and pending -> failed when the job never starts.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobRunning || next == JobFailed
	case JobRunning:
		return next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// Role is the team role granted to an invitee.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// OutcomeStatus is the result for a single invitee address.
type OutcomeStatus string

const (
	OutcomePending OutcomeStatus = "pending"
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// InviteOutcome records what happened to one address of a job.
type InviteOutcome struct {
	Email  string        `json:"email"`
	Status OutcomeStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
	// Note is set for successes that carry a caveat, e.g. confirmed by network response only.
	Note string `json:"note,omitempty"`
}

// InviteJob is one bulk invite request and its aggregate outcome.
type InviteJob struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Addresses    []string        `json:"addresses"`
	Role         Role            `json:"role"`
	Status       JobStatus       `json:"status"`
	Outcomes     []InviteOutcome `json:"outcomes"`
	TotalCount   int             `json:"total_count"`
	SuccessCount int             `json:"success_count"`
	FailCount    int             `json:"fail_count"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewInviteJob builds a pending job with one pending outcome per address.
func NewInviteJob(id, accountID string, addresses []string, role Role, now time.Time) *InviteJob {
	outcomes := make([]InviteOutcome, len(addresses))
	for i, addr := range addresses {
		outcomes[i] = InviteOutcome{Email: addr, Status: OutcomePending}
	}
	if role == "" {
		role = RoleMember
	}
	return &InviteJob{
		ID:         id,
		AccountID:  accountID,
		Addresses:  addresses,
		Role:       role,
		Status:     JobPending,
		Outcomes:   outcomes,
		TotalCount: len(addresses),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition moves the job to next, refusing any non-monotonic change.
func (j *InviteJob) Transition(next JobStatus, now time.Time) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	j.UpdatedAt = now
	return nil
}

// Record stores the outcome for the address at index i and recomputes the counts.
func (j *InviteJob) Record(i int, outcome InviteOutcome, now time.Time) {
	if i < 0 || i >= len(j.Outcomes) {
		return
	}
	j.Outcomes[i] = outcome
	j.recount()
	j.UpdatedAt = now
}

// Finish marks the job completed. Addresses that never ran are counted as failures so
// that TotalCount == SuccessCount + FailCount holds on every terminal job.
func (j *InviteJob) Finish(status JobStatus, reason string, now time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidTransition, status)
	}
	if err := j.Transition(status, now); err != nil {
		return err
	}
	for i := range j.Outcomes {
		if j.Outcomes[i].Status == OutcomePending {
			j.Outcomes[i].Status = OutcomeFailed
			if j.Outcomes[i].Error == "" {
				j.Outcomes[i].Error = reason
			}
		}
	}
	j.Error = reason
	j.recount()
	return nil
}

func (j *InviteJob) recount() {
	j.TotalCount = len(j.Outcomes)
	j.SuccessCount, j.FailCount = 0, 0
	for _, o := range j.Outcomes {
		switch o.Status {
		case OutcomeSuccess:
			j.SuccessCount++
		case OutcomeFailed:
			j.FailCount++
		}
	}
}
