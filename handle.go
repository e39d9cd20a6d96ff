package corttimer

// Handle is a refcounted pointer to a Waiter, grounded in cort_shared_ptr
// from cort_timeout_waiter.h: add_ref/remove_ref/release, with the rule that
// a count of 0 or 1 always releases outright rather than deferring cleanup.
// Handle exists so that more than one collaborator (e.g. a coroutine and the
// Repeater driving it) can share ownership of the same Waiter without either
// side needing to track the other's lifetime.
type Handle struct {
	w *Waiter
}

// NewHandle wraps w, taking ownership of the reference a freshly constructed
// Waiter already holds (NewWaiter starts a Waiter's refcount at 1) rather
// than adding a new one — the same way wrapping a raw pointer in a shared
// pointer adopts its existing count instead of bumping it. Passing nil
// produces a Handle whose Waiter method also returns nil. To share
// ownership of a Waiter that already has a live Handle, use Clone.
func NewHandle(w *Waiter) *Handle {
	return &Handle{w: w}
}

// Waiter returns the wrapped Waiter, or nil if the Handle has been released
// or was constructed from nil.
func (h *Handle) Waiter() *Waiter {
	return h.w
}

// Clone returns a new Handle sharing the same Waiter, with an additional
// reference taken.
func (h *Handle) Clone() *Handle {
	if h.w == nil {
		return &Handle{}
	}
	h.w.AddRef()
	return &Handle{w: h.w}
}

// Release drops this Handle's reference, returning the Waiter's resulting
// refcount (0 if h was already released or empty). After Release, h no
// longer refers to any Waiter.
func (h *Handle) Release() uint32 {
	if h.w == nil {
		return 0
	}
	if h.w.refCount == 0 {
		h.w.Release()
		h.w = nil
		return 0
	}
	n := h.w.RemoveRef()
	h.w = nil
	return n
}
