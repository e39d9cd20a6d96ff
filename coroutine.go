package corttimer

// Coroutine is the minimal collaborator contract a Waiter needs from
// whatever suspension primitive owns it. It is implemented by the host
// runtime's own coroutine type; this package never implements it itself
// except for the small sugar in sleep.go and the Repeater.
//
// Only leaf coroutines (Parent() == nil at the point of a suspension call)
// may be armed directly by a Waiter — see Waiter.SetTimeout/SetPollRequest.
type Coroutine interface {
	// OnFinish is invoked exactly once, synchronously, when the Waiter
	// bound to this coroutine transitions to Finished. It may return a
	// successor coroutine to resume in place of the parent (for example a
	// Repeater returns itself to stay alive across ticks), or nil to signal
	// that the parent, if any, should be resumed instead.
	OnFinish() Coroutine

	// Resume re-enters the coroutine at its suspension point. Called by the
	// Driver when a successor returned from OnFinish needs re-entry.
	Resume()

	// Parent returns the coroutine that suspended waiting on this one, or
	// nil for a leaf. Only leaves may be armed by a Waiter.
	Parent() Coroutine

	// Start begins executing a freshly constructed coroutine from scratch.
	// Used by Repeater to launch each scheduled task.
	Start()
}
