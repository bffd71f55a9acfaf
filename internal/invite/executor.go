// Package invite runs bulk invites against one account.
package invite

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/automation"
)

// Inviter invites one address. *automation.Client implements it.
type Inviter interface {
	InviteMember(ctx context.Context, email string, role schemas.Role) (automation.InviteResult, error)
}

// Request is one ordered batch.
type Request struct {
	Addresses []string
	Role      schemas.Role
	// Delay separates consecutive attempts.
	Delay time.Duration
}

// AddressError is the failure text of one address.
type AddressError struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Summary aggregates a finished batch. Outcomes is index-aligned with the request addresses
// that were attempted.
type Summary struct {
	SuccessCount int
	FailCount    int
	Errors       []AddressError
	Outcomes     []schemas.InviteOutcome
}

// Observer receives each outcome as soon as it is recorded, before the next attempt starts.
type Observer interface {
	OnOutcome(ctx context.Context, index int, outcome schemas.InviteOutcome)
	OnProgress(event schemas.ProgressEvent)
}

// Executor invites addresses one at a time.
type Executor struct {
	logger *zap.Logger
}

// NewExecutor creates an executor.
func NewExecutor(logger *zap.Logger) *Executor {
	return &Executor{logger: logger.Named("invite_executor")}
}

// Run invites every address in order and never issues two attempts at once. A failing
// address is recorded and the batch moves on; only cancellation of ctx stops it early,
// in which case the partial summary is returned with ctx's error.
func (e *Executor) Run(ctx context.Context, inviter Inviter, req Request, obs Observer) (Summary, error) {
	total := len(req.Addresses)
	sum := Summary{Errors: []AddressError{}, Outcomes: make([]schemas.InviteOutcome, 0, total)}

	for i, addr := range req.Addresses {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		logger := e.logger.With(zap.String("email", addr), zap.Int("index", i))

		outcome := schemas.InviteOutcome{Email: addr, Status: schemas.OutcomeSuccess}
		res, err := attempt(ctx, inviter, addr, req.Role)
		if err != nil {
			outcome.Status = schemas.OutcomeFailed
			outcome.Error = err.Error()
			sum.FailCount++
			sum.Errors = append(sum.Errors, AddressError{Email: addr, Message: outcome.Error})
			logger.Warn("Invite failed.",
				zap.String("code", string(automation.CodeOf(err))),
				zap.String("screenshot", automation.ScreenshotOf(err)),
				zap.Error(err),
			)
		} else {
			if res.Confirmation == automation.ConfirmedResponseOnly {
				outcome.Note = "request accepted but not confirmed on the page"
			}
			sum.SuccessCount++
			logger.Info("Invite sent.", zap.String("confirmation", string(res.Confirmation)))
		}
		sum.Outcomes = append(sum.Outcomes, outcome)

		if obs != nil {
			obs.OnOutcome(ctx, i, outcome)
			obs.OnProgress(schemas.ProgressEvent{
				Index:   i,
				Total:   total,
				Address: addr,
				Status:  outcome.Status,
				Error:   outcome.Error,
			})
		}

		if i < total-1 {
			if err := wait(ctx, req.Delay); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

// attempt isolates one address, turning a panic into its failure.
func attempt(ctx context.Context, inviter Inviter, addr string, role schemas.Role) (res automation.InviteResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invite panicked: %v", r)
		}
	}()
	return inviter.InviteMember(ctx, addr, role)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
