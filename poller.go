package corttimer

// PollEvents is the readiness bitmask a Waiter requests and observes,
// independent of whatever bit layout the underlying OS multiplexer uses.
// poller_linux.go and poller_darwin.go each translate to/from their native
// event representation.
type PollEvents uint32

const (
	PollRead PollEvents = 1 << iota
	PollWrite
	PollError
	PollHangup
)

// readyEvent is one fd's worth of dispatch result from a single wait call.
type readyEvent struct {
	waiter *Waiter
	events PollEvents
}

// The platform poller itself (type platformPoller) is implemented once per
// supported OS in poller_linux.go (epoll) and poller_darwin.go (kqueue).
// Both expose the same unexported method set: newPlatformPoller, close,
// register, modify, unregister, wait, fd, count, drainAll. Neither
// implementation takes any lock: a Driver and everything it owns is only
// ever touched by the single goroutine running its loop.
