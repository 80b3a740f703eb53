// Package llm provides the public SDK types for AI chat backends.
// Every backend adapter (OpenAI-compatible, Bedrock, ...) implements
// Provider. Implementations live in internal/llm/{provider}/ adapters;
// callers depend only on this package.
package llm

import "context"

// Provider is the capability contract implemented by every backend adapter.
//
// Lifecycle: a Provider is created unconfigured, becomes ready after a
// successful Initialize, serves any number of SendMessage calls, and is
// terminal after Shutdown. Implementations must be safe for concurrent use
// once initialized.
type Provider interface {
	// Name returns a stable identifier used for logging and diagnostics.
	Name() string

	// IsConfigured reports whether all required settings are present and
	// none of them is still a documented placeholder value. It has no side
	// effects.
	IsConfigured() bool

	// Initialize allocates transport resources. A non-nil error leaves the
	// provider unusable; it never panics.
	Initialize(ctx context.Context) error

	// SendMessage sends message, preceded by history in order, to the
	// backend. It returns immediately; exactly one Result is delivered on
	// the returned channel from a worker goroutine, after which the channel
	// is closed. Failures are reported as a Failure result, never a panic.
	SendMessage(ctx context.Context, message string, history []Message) <-chan Result

	// Shutdown releases transport resources. It is idempotent and safe to
	// call before Initialize, after a failed Initialize, or while calls are
	// still in flight.
	Shutdown()
}

// Await blocks until the result of a SendMessage call is available or ctx
// is done. When ctx ends first the call keeps running on its worker and a
// timeout Failure is returned to the waiter. A result that is already
// delivered when ctx ends is returned instead of the timeout.
func Await(ctx context.Context, ch <-chan Result) Result {
	select {
	case r, ok := <-ch:
		return received(r, ok)
	case <-ctx.Done():
		select {
		case r, ok := <-ch:
			return received(r, ok)
		default:
		}
		return Failure(ErrCodeTimeout, "Timed out waiting for provider response")
	}
}

// TimedOut reports whether r is the timeout Await returns when ctx ends
// before a result arrives.
func TimedOut(ctx context.Context, r Result) bool {
	return r.Code() == ErrCodeTimeout && ctx.Err() != nil
}

func received(r Result, ok bool) Result {
	if !ok {
		return Failure(ErrCodeUnknown, "No response from provider")
	}
	return r
}
