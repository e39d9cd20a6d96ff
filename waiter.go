package corttimer

// Waiter flag bits packed into the top of elapsedAndFlags, matching the
// pimpl layout from cort_timeout_waiter.h: the low 30 bits hold an elapsed
// millisecond count (clamped, never precise past ~12 days), and the top two
// bits record the finish cause.
const (
	flagTimeout uint32 = 1 << 31
	flagStopped uint32 = 1 << 30
	elapsedMask uint32 = flagStopped - 1
)

type waiterState uint8

const (
	stateDetached waiterState = iota
	stateArmed
	stateFinished
)

// Waiter is a small state machine: Detached, Armed (on a
// timeout, an fd readiness request, or both), and Finished with exactly one
// of Timeout/Ready/Stopped recorded. It is always owned by exactly one
// Driver and exactly one leaf Coroutine.
type Waiter struct {
	driver    *Driver
	coroutine Coroutine
	state     waiterState

	startMs         uint64
	elapsedAndFlags uint32

	bucket       *bucket
	prevInBucket *Waiter
	nextInBucket *Waiter

	fd         int
	pollEvents PollEvents
	pollResult PollEvents

	refCount uint32
}

// NewWaiter constructs a detached Waiter bound to driver and co. co must be
// a leaf coroutine (Parent() == nil); arming a non-leaf is an invariant
// violation and panics rather than silently misbehaving.
func (d *Driver) NewWaiter(co Coroutine) *Waiter {
	if co.Parent() != nil {
		panicInvariant("NewWaiter: coroutine is not a leaf (Parent() != nil)")
	}
	return &Waiter{
		driver:    d,
		coroutine: co,
		state:     stateDetached,
		fd:        -1,
		refCount:  1,
	}
}

// SetTimeout arms (or re-arms) w to fire after ms milliseconds from now. A
// waiter that already has a pending fd registration keeps it; the first of
// the two causes to occur wins, so fd readiness and a timeout can be armed
// together on the same waiter.
func (w *Waiter) SetTimeout(ms uint64) {
	if w.coroutine.Parent() != nil {
		panicInvariant("SetTimeout: coroutine is not a leaf (Parent() != nil)")
	}
	if w.state == stateFinished {
		w.reset()
	}
	if w.bucket != nil {
		w.driver.heap.Remove(w)
	}
	w.startMs = w.driver.clock.now()
	w.state = stateArmed
	w.driver.heap.Add(w, w.startMs+ms)
}

// ClearTimeout drops any pending timeout registration. A waiter with no
// pending timeout is a benign no-op.
func (w *Waiter) ClearTimeout() {
	w.driver.heap.Remove(w)
	if w.bucket == nil && w.fd < 0 && w.state == stateArmed {
		w.state = stateDetached
	}
}

// IsSetTimeout reports whether w currently has a pending timeout
// registration.
func (w *Waiter) IsSetTimeout() bool {
	return w.bucket != nil
}

// SetPollRequest arms w to fire when fd becomes ready for any of events.
// Registration failures (e.g. EPERM on an unsupported fd type) are returned
// as a *RegistrationError — this is recoverable by the caller, not a program
// defect. A failed registration of a new fd leaves w without a registration
// for it; a failed change of events on w's current fd leaves the previous
// events registered.
func (w *Waiter) SetPollRequest(fd int, events PollEvents) error {
	if w.coroutine.Parent() != nil {
		panicInvariant("SetPollRequest: coroutine is not a leaf (Parent() != nil)")
	}
	if w.state == stateFinished {
		w.reset()
	}
	if w.fd == fd {
		if err := w.driver.poller.modify(fd, events); err != nil {
			w.driver.logWarn(func(b *builder) *builder { return b.Err(err).Uint64(`fd`, uint64(fd)) }, "fd registration modify failed")
			return &RegistrationError{FD: fd, Events: events, Cause: err}
		}
	} else {
		if w.fd >= 0 {
			w.driver.poller.unregister(w.fd)
		}
		if err := w.driver.poller.register(fd, events, w); err != nil {
			w.driver.logWarn(func(b *builder) *builder { return b.Err(err).Uint64(`fd`, uint64(fd)) }, "fd registration failed")
			return &RegistrationError{FD: fd, Events: events, Cause: err}
		}
	}
	w.fd = fd
	w.pollEvents = events
	w.pollResult = 0
	if w.state != stateArmed {
		w.startMs = w.driver.clock.now()
	}
	w.state = stateArmed
	return nil
}

// RemovePollRequest drops any pending fd registration, without closing the
// fd. A waiter with no pending fd registration is a benign no-op.
func (w *Waiter) RemovePollRequest() {
	if w.fd < 0 {
		return
	}
	w.driver.poller.unregister(w.fd)
	w.fd = -1
	w.pollEvents = 0
	if w.bucket == nil && w.state == stateArmed {
		w.state = stateDetached
	}
}

// CloseCortFD unregisters (if needed) and closes w's fd, clearing the field.
func (w *Waiter) CloseCortFD() error {
	fd := w.fd
	w.RemovePollRequest()
	if fd < 0 {
		return nil
	}
	return closeFD(fd)
}

// RemoveCortFD unregisters w's fd without closing it, clearing the field.
// Ownership of the descriptor passes back to the caller.
func (w *Waiter) RemoveCortFD() int {
	fd := w.fd
	w.RemovePollRequest()
	return fd
}

// finish transitions w to Finished with the given cause flag (flagTimeout,
// flagStopped, or 0 for a readiness finish), clearing both the heap and
// poller registrations, then invokes the coroutine's finish protocol. It is
// idempotent: a waiter that is not Armed is left alone,
// since both the heap drain path and the poller drain path in Destroy can
// observe the same waiter.
func (w *Waiter) finish(flag uint32) {
	if w.state != stateArmed {
		return
	}
	now := w.driver.clock.now()
	elapsed := now - w.startMs
	if elapsed > uint64(elapsedMask) {
		elapsed = uint64(elapsedMask)
	}
	w.elapsedAndFlags = uint32(elapsed) | flag
	w.state = stateFinished
	if w.bucket != nil {
		w.driver.heap.Remove(w)
	}
	if w.fd >= 0 {
		w.driver.poller.unregister(w.fd)
		w.fd = -1
		w.pollEvents = 0
	}

	successor := w.coroutine.OnFinish()
	if successor != nil {
		successor.Resume()
		return
	}
	if parent := w.coroutine.Parent(); parent != nil {
		parent.Resume()
	}
}

// reset clears a Finished waiter back to Detached so it can be re-armed.
func (w *Waiter) reset() {
	w.state = stateDetached
	w.elapsedAndFlags = 0
	w.pollResult = 0
}

// GetTimeCost returns the elapsed milliseconds between arming and finishing,
// clamped to the packed field's range. Valid only once Finished.
func (w *Waiter) GetTimeCost() uint32 {
	return w.elapsedAndFlags & elapsedMask
}

// GetTimePast returns the milliseconds elapsed since arming, as of the
// driver's current cached clock reading. Valid for an Armed waiter; for a
// Finished one it degrades to GetTimeCost's frozen value.
func (w *Waiter) GetTimePast() uint32 {
	if w.state == stateFinished {
		return w.GetTimeCost()
	}
	elapsed := w.driver.clock.now() - w.startMs
	if elapsed > uint64(elapsedMask) {
		elapsed = uint64(elapsedMask)
	}
	return uint32(elapsed)
}

// GetTimeoutTime returns the absolute deadline (ms since driver epoch) of
// the current timeout registration, if any.
func (w *Waiter) GetTimeoutTime() (uint64, bool) {
	if w.bucket == nil {
		return 0, false
	}
	return w.bucket.deadlineMs, true
}

// PollResult returns the readiness events observed when w finished, or 0 if
// w finished via timeout or stop.
func (w *Waiter) PollResult() PollEvents {
	return w.pollResult
}

// IsTimeout reports whether w finished because its timeout expired.
func (w *Waiter) IsTimeout() bool {
	return w.state == stateFinished && w.elapsedAndFlags&flagTimeout != 0
}

// IsStopped reports whether w finished because its Driver was destroyed.
func (w *Waiter) IsStopped() bool {
	return w.state == stateFinished && w.elapsedAndFlags&flagStopped != 0
}

// IsTimeoutOrStopped reports whether w finished via either cause, as
// opposed to fd readiness.
func (w *Waiter) IsTimeoutOrStopped() bool {
	return w.IsTimeout() || w.IsStopped()
}

// AddRef increments w's reference count and returns the new value.
func (w *Waiter) AddRef() uint32 {
	w.refCount++
	return w.refCount
}

// RemoveRef decrements w's reference count and returns the new value,
// releasing the waiter's registrations if the count reaches zero.
func (w *Waiter) RemoveRef() uint32 {
	if w.refCount == 0 {
		panicInvariant("RemoveRef: refcount already zero")
	}
	w.refCount--
	if w.refCount == 0 {
		w.Release()
	}
	return w.refCount
}

// Release forcibly detaches w from the heap and poller, regardless of
// refcount, matching cort_shared_ptr's "count is 0 or 1" deletion rule: a
// waiter with at most one owner can always be released outright.
func (w *Waiter) Release() {
	w.ClearTimeout()
	w.RemovePollRequest()
	w.state = stateDetached
}
