package corttimer

import (
	"context"
	"testing"
	"time"
)

func TestDriverRunForeverExitsWhenIdle(t *testing.T) {
	d, err := NewDriver()
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	defer d.Destroy()

	// A Driver's state may only be touched by the goroutine that
	// constructed it, so RunForever is called inline rather than from a
	// spawned goroutine; an idle driver (no armed timers, no registered
	// fds) returns immediately without blocking.
	if err := d.RunForever(nil); err != nil {
		t.Fatalf("RunForever on an idle driver returned %v, want nil", err)
	}
}

func TestDriverRunForeverHonorsContextCancellation(t *testing.T) {
	d, err := NewDriver()
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	defer d.Destroy()

	d.NewWaiter(&fakeCoroutine{}).SetTimeout(60000)

	ctx, cancel := context.WithCancel(context.Background())
	// cancel() touches only the context, never the Driver, so it is safe
	// to call from another goroutine while this one blocks inside
	// RunForever.
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := d.RunForever(ctx); err == nil {
		t.Fatalf("RunForever returned nil, want context.Canceled")
	}
}

func TestDriverDestroyStopsRemainingWaiters(t *testing.T) {
	d, err := NewDriver()
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	co := &fakeCoroutine{}
	w := d.NewWaiter(co)
	w.SetTimeout(60000)

	if err := d.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if !w.IsStopped() {
		t.Fatalf("waiter was not marked stopped by Destroy")
	}
	if !co.resumed && !co.finished {
		t.Fatalf("coroutine was never notified by Destroy")
	}
}

func TestDriverDestroyIsIdempotent(t *testing.T) {
	d, err := NewDriver()
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	if err := d.Destroy(); err != nil {
		t.Fatalf("first Destroy: %v", err)
	}
	if err := d.Destroy(); err != nil {
		t.Fatalf("second Destroy should be a no-op, got %v", err)
	}
}

func TestDriverOperationsAfterDestroyReturnError(t *testing.T) {
	d, err := NewDriver()
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	if err := d.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := d.RunOnce(0); err != ErrDriverDestroyed {
		t.Fatalf("RunOnce after Destroy = %v, want ErrDriverDestroyed", err)
	}
}

func TestDriverWaitedFDCountTracksRegistrations(t *testing.T) {
	d := newTestDriver(t)
	r, w2, err := pipeFDs()
	if err != nil {
		t.Fatalf("pipeFDs: %v", err)
	}
	defer closeFD(w2)

	if d.WaitedFDCount() != 0 {
		t.Fatalf("WaitedFDCount = %d, want 0 before any registration", d.WaitedFDCount())
	}

	waiter := d.NewWaiter(&fakeCoroutine{})
	if err := waiter.SetPollRequest(r, PollRead); err != nil {
		t.Fatalf("SetPollRequest: %v", err)
	}
	if d.WaitedFDCount() != 1 {
		t.Fatalf("WaitedFDCount = %d, want 1 after registration", d.WaitedFDCount())
	}

	waiter.RemovePollRequest()
	if d.WaitedFDCount() != 0 {
		t.Fatalf("WaitedFDCount = %d, want 0 after RemovePollRequest", d.WaitedFDCount())
	}
}

func TestDriverPollFDIsStableAcrossCalls(t *testing.T) {
	d := newTestDriver(t)
	if d.PollFD() != d.PollFD() {
		t.Fatalf("PollFD changed across calls")
	}
	if d.PollFD() < 0 {
		t.Fatalf("PollFD = %d, want a valid descriptor", d.PollFD())
	}
}
