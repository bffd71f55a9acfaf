// internal/browser/context_utils.go
package browser

import "context"

// CombineContext returns a context that carries the values of primary (the chromedp tab or
// browser context) and is canceled when either primary or op is done. op supplies the
// deadline of a single operation; canceling the result never closes the tab itself.
func CombineContext(primary, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	if deadline, ok := op.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		combined, cancelDeadline = context.WithDeadline(combined, deadline)
		inner := cancel
		cancel = func() {
			cancelDeadline()
			inner()
		}
	}

	stop := context.AfterFunc(op, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
