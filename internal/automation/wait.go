package automation

import (
	"context"
	"time"
)

// timeoutError ends a poll whose condition never held.
type timeoutError struct{ what string }

func (e timeoutError) Error() string { return "timed out waiting for " + e.what }

// poll runs check every interval until it reports done, returns an error, or timeout elapses.
// It runs check at least once.
func poll(ctx context.Context, timeout, interval time.Duration, what string, check func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	pollCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		done, err := check(pollCtx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return timeoutError{what: what}
		case <-ticker.C:
		}
	}
}

// sleep pauses for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
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

// withTimeout treats a non-positive timeout as no additional bound.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
