package corttimer

import (
	"errors"
	"fmt"
)

// Standard errors returned by the Poll Driver's lifecycle and registration
// methods.
var (
	// ErrPollInitFailed is returned by NewDriver when the OS readiness
	// multiplexer cannot be created. The thread cannot run the loop.
	ErrPollInitFailed = errors.New("corttimer: poll driver init failed")

	// ErrDriverDestroyed is returned by operations attempted on a Driver
	// after Destroy has completed.
	ErrDriverDestroyed = errors.New("corttimer: driver has been destroyed")

	// ErrFDNotRegistered is returned by the platform poller's modify and
	// unregister for a descriptor that isn't currently registered. Callers
	// that find a registration already removed should treat this as a
	// benign no-op, not a fault.
	ErrFDNotRegistered = errors.New("corttimer: fd not registered")

	// ErrFDAlreadyRegistered is returned by the platform poller's register
	// when the descriptor already has an active registration.
	ErrFDAlreadyRegistered = errors.New("corttimer: fd already registered")

	// ErrClockUnavailable is kept for parity with the error taxonomy; on
	// every platform this module supports, time.Now() cannot fail, so this
	// is never actually returned.
	ErrClockUnavailable = errors.New("corttimer: clock unavailable")

	// ErrCrossThreadAccess supplies the detail message of the InvariantError
	// that RunOnce, RunForever and Destroy panic with when called from a
	// goroutine other than the one that constructed the Driver. It is never
	// returned as an error value.
	ErrCrossThreadAccess = errors.New("corttimer: driver accessed from non-owning goroutine")
)

// RegistrationError wraps a failure from the OS multiplexer's add/mod
// syscall. It is returned by Waiter.SetPollRequest; the waiter gains no
// registration for a new fd, and a failed change of events on its current
// fd leaves the previous events registered.
type RegistrationError struct {
	FD     int
	Events PollEvents
	Cause  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("corttimer: register fd %d events %v: %v", e.FD, e.Events, e.Cause)
}

func (e *RegistrationError) Unwrap() error { return e.Cause }

// InvariantError reports a program defect: a condition that should be
// structurally impossible if the core and its caller are both well-behaved
// (e.g. a non-leaf coroutine being armed, or a waiter already present in the
// heap when Add is called). It is not a recoverable condition and is
// surfaced by panicking with this type.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "corttimer: invariant violation: " + e.Detail
}

func panicInvariant(detail string) {
	panic(&InvariantError{Detail: detail})
}
