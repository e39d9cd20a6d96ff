package corttimer

import "time"

// clock caches a millisecond-resolution monotonic reading so that the many
// waiters armed and checked within a single RunOnce pass all observe the
// same "now" without repeated calls into the runtime. Refresh is the only
// thing that advances it, following an anchor/elapsed split so the cached
// value is cheap to read and only ever moves forward.
type clock struct {
	anchor time.Time
	nowMs  uint64
}

func newClock() *clock {
	c := &clock{anchor: time.Now()}
	c.nowMs = c.elapsed()
	return c
}

func (c *clock) elapsed() uint64 {
	return uint64(time.Since(c.anchor).Milliseconds())
}

// refresh re-samples the monotonic clock and returns the new value. It never
// returns a value smaller than the previous reading: time.Since is itself
// monotonic on every platform this module supports, so no clamping is
// required, but the contract is asserted by TestClockMonotonicBetweenRefreshes.
func (c *clock) refresh() uint64 {
	c.nowMs = c.elapsed()
	return c.nowMs
}

// now returns the cached reading from the last refresh, without sampling
// the clock again.
func (c *clock) now() uint64 {
	return c.nowMs
}
