package corttimer

import (
	"context"
	"fmt"
	"math"
	"runtime"
)

// Driver is the poll driver and thread lifecycle component. Exactly one
// Driver exists per OS thread that needs timers and fd readiness; it owns a
// clock, a timer heap, and the platform readiness multiplexer, and none of
// that state is ever touched from any goroutine but the one that
// constructed it.
type Driver struct {
	clock  *clock
	heap   timerHeap
	poller *platformPoller

	eventBuf []readyEvent

	destroyed bool
	ownerGID  uint64

	logger  *Logger
	metrics *JitterMetrics
}

// NewDriver constructs a Driver bound to the calling goroutine, initializing
// the OS readiness multiplexer.
func NewDriver(opts ...Option) (*Driver, error) {
	o := resolveOptions(opts)

	poller, err := newPlatformPoller()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPollInitFailed, err)
	}

	d := &Driver{
		clock:    newClock(),
		heap:     newTimerHeap(),
		poller:   poller,
		eventBuf: make([]readyEvent, 0, 256),
		ownerGID: getGoroutineID(),
		logger:   o.logger,
		metrics:  o.metrics,
	}
	return d, nil
}

// assertOwner panics with an InvariantError carrying ErrCrossThreadAccess's
// message if called from any goroutine but the one that constructed d. It is a
// cheap stack-parse check, not a lock: this model is never locked, so
// this exists only to turn a caller's bug into a loud failure.
func (d *Driver) assertOwner() {
	if getGoroutineID() != d.ownerGID {
		panicInvariant(ErrCrossThreadAccess.Error())
	}
}

// RefreshClock re-samples the monotonic clock and returns the new cached
// value.
func (d *Driver) RefreshClock() uint64 {
	return d.clock.refresh()
}

// NowMs returns the cached "now" from the last refresh, without sampling
// the clock again. Corresponds to cort_timer_now_ms.
func (d *Driver) NowMs() uint64 {
	return d.clock.now()
}

// PollFD returns the underlying epoll/kqueue descriptor, for hosts that want
// to multiplex this Driver's readiness signal into a larger event loop.
// Corresponds to cort_timer_get_poll_fd.
func (d *Driver) PollFD() int {
	return d.poller.fd()
}

// WaitedFDCount returns the number of fds currently registered for
// readiness. Corresponds to cort_timer_waited_fd_count_thread.
func (d *Driver) WaitedFDCount() uint32 {
	return uint32(d.poller.count())
}

// RunOnce performs a single poll-and-dispatch pass: it blocks for up to
// maxSleepMs (a negative value blocks indefinitely) waiting for fd
// readiness, then delivers every ready fd, then drains and delivers every
// timer whose deadline has passed. It returns the number of waiters
// finished.
func (d *Driver) RunOnce(maxSleepMs int) (int, error) {
	d.assertOwner()
	if d.destroyed {
		return 0, ErrDriverDestroyed
	}

	events, err := d.poller.wait(maxSleepMs, d.eventBuf[:0])
	d.clock.refresh()
	if err != nil {
		d.logError(func(b *builder) *builder { return b.Err(err) }, "poll wait failed")
		return 0, err
	}

	finished := 0
	for _, ev := range events {
		w := ev.waiter
		if w == nil || w.state != stateArmed {
			continue
		}
		w.pollResult = ev.events
		w.finish(0)
		finished++
	}

	now := d.clock.now()
	for _, e := range d.heap.DrainExpired(now) {
		e.waiter.finish(flagTimeout)
		if d.metrics != nil {
			d.metrics.record(float64(now) - float64(e.deadlineMs))
		}
		finished++
	}

	return finished, nil
}

// contextPollCeilingMs bounds how long a single RunForever iteration may
// block when a context was supplied, so ctx.Done() is rechecked
// periodically even while no timer is imminent. There is no cross-goroutine
// wake mechanism here to interrupt an in-progress poll wait immediately
// (see DESIGN.md), so cancellation latency is bounded rather than
// immediate.
const contextPollCeilingMs = 200

// RunForever repeatedly calls RunOnce, sleeping no longer than the nearest
// timer deadline, until the Driver has nothing left to wait on (no armed
// timers and no registered fds) or ctx is cancelled.
func (d *Driver) RunForever(ctx context.Context) error {
	d.assertOwner()
	for {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		deadline, haveDeadline := d.heap.PeekDeadline()
		if !haveDeadline && d.poller.count() == 0 {
			return nil
		}

		sleep := -1
		if haveDeadline {
			now := d.clock.now()
			switch {
			case deadline <= now:
				sleep = 0
			case deadline-now > uint64(math.MaxInt32):
				sleep = math.MaxInt32
			default:
				sleep = int(deadline - now)
			}
		}
		if ctx != nil && (sleep < 0 || sleep > contextPollCeilingMs) {
			sleep = contextPollCeilingMs
		}

		if _, err := d.RunOnce(sleep); err != nil {
			return err
		}
	}
}

// Destroy stops every remaining waiter with the Stopped flag, unregisters
// every fd without closing it, and closes the underlying poll descriptor.
// Corresponds to cort_timer_destroy. Idempotent.
func (d *Driver) Destroy() error {
	d.assertOwner()
	if d.destroyed {
		return nil
	}

	seen := make(map[*Waiter]struct{})
	var pending []*Waiter
	for _, w := range d.heap.drainAll() {
		if _, ok := seen[w]; !ok {
			seen[w] = struct{}{}
			pending = append(pending, w)
		}
	}
	for _, w := range d.poller.drainAll() {
		if _, ok := seen[w]; !ok {
			seen[w] = struct{}{}
			pending = append(pending, w)
		}
	}

	for _, w := range pending {
		w.finish(flagStopped)
	}

	err := d.poller.close()
	d.destroyed = true
	d.logInfo(func(b *builder) *builder { return b.Uint64(`stopped`, uint64(len(pending))) }, "timer driver destroyed")
	return err
}

// getGoroutineID returns the current goroutine's numeric id by parsing the
// head of a runtime.Stack dump. It is not something the Go runtime exposes
// directly; this is the established idiom for a cheap same-goroutine
// assertion.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
