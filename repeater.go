package corttimer

// RepeaterRegime selects which of the three scheduling strategies a
// Repeater is currently using, chosen by SetRepeatPerSecond from the
// requested rate. Grounded in cort_repeater<T>::set_repeat_per_second from
// cort_timeout_waiter.h.
type RepeaterRegime uint8

const (
	// RegimeHighFreq is used above 100/sec: a flat 10ms tick emits a batch
	// of tasks each time, sized to hit the requested rate on average.
	RegimeHighFreq RepeaterRegime = iota
	// RegimeMidFreq is used between 1 and 100/sec: one task is spawned per
	// tick, with the tick interval computed from the rate.
	RegimeMidFreq
	// RegimeLowFreq is used between 0.001 and 1/sec: one task per tick,
	// with a tick interval of seconds.
	RegimeLowFreq
	// RegimeStopped means the repeater is not scheduling anything, either
	// because SetRepeatPerSecond has not been called yet, it was given a
	// rate of 0.001/sec or less, or Stop was called.
	RegimeStopped
)

// Repeater is the recurring-task scheduler: it spawns new
// coroutines at a target rate, compensating for scheduling drift once per
// second and detecting stalls in the HighFreq regime. A Repeater is itself
// bound to a Waiter and acts as that Waiter's Coroutine, so its tick is
// driven entirely by the Driver's normal timeout-delivery path — there is
// no separate scheduling loop.
type Repeater struct {
	driver *Driver
	waiter *Waiter
	spawn  func() Coroutine
	logger *Logger

	reqCount float64
	regime   RepeaterRegime

	interval           uint32
	firstInterval      uint32
	intervalCount      uint32
	firstIntervalCount uint32

	index     uint32
	realCount uint32
	startMs   uint64
	lastMs    uint64

	// windowOpen reports whether startMs holds the start of a drift window;
	// the driver clock begins at 0, so startMs itself cannot mark this.
	windowOpen bool
}

// NewRepeater constructs a stopped Repeater bound to driver, whose ticks
// invoke spawn to create and start one coroutine per scheduled task. Call
// SetRepeatPerSecond and then Start to begin scheduling.
func NewRepeater(driver *Driver, spawn func() Coroutine) *Repeater {
	r := &Repeater{driver: driver, spawn: spawn, regime: RegimeStopped}
	r.waiter = driver.NewWaiter(r)
	return r
}

// SetLogger attaches a Logger used to report stall-skips in the HighFreq
// regime. Optional; a nil Repeater logger means no logging.
func (r *Repeater) SetLogger(logger *Logger) { r.logger = logger }

// SetRepeatPerSecond selects a scheduling regime for the requested rate and
// resets the tick counters. Matches cort_repeater<T>::set_repeat_per_second:
// above 100/sec uses HighFreq, (1, 100] uses MidFreq, (0.001, 1] uses
// LowFreq, and anything else stops the repeater.
func (r *Repeater) SetRepeatPerSecond(count float64) {
	r.reqCount = count
	switch {
	case count > 100:
		n := uint32(count)
		r.intervalCount = n / 100
		r.firstIntervalCount = n % 100
		r.regime = RegimeHighFreq
	case count > 1:
		n := uint32(count)
		r.interval = 1000 / n
		r.firstInterval = 1000 % n
		r.intervalCount = n
		r.regime = RegimeMidFreq
	case count > 1e-3:
		n := uint32(count * 1000)
		r.interval = 1000 * 1000 / n
		r.firstInterval = 1000 * 1000 % n
		r.intervalCount = n
		r.regime = RegimeLowFreq
	default:
		r.regime = RegimeStopped
	}
	r.index = 0
	r.realCount = 0
}

// Start arms the first tick. SetRepeatPerSecond must have selected a
// non-stopped regime first, or Start is a no-op.
func (r *Repeater) Start() {
	r.lastMs = r.driver.clock.now()
	r.windowOpen = false
	if r.regime != RegimeStopped {
		r.tick()
	}
}

// Stop clears the repeater's pending timeout and its counters, and marks it
// Stopped. A stopped Repeater can be restarted with SetRepeatPerSecond and
// Start.
func (r *Repeater) Stop() {
	r.waiter.ClearTimeout()
	r.regime = RegimeStopped
	r.interval = 0
	r.firstInterval = 0
	r.intervalCount = 0
	r.firstIntervalCount = 0
	r.index = 0
	r.realCount = 0
}

// OnFinish implements Coroutine: every time the repeater's own timeout
// fires, it ticks (spawning tasks and re-arming) and keeps itself alive by
// returning itself as the successor, unless it has been stopped in the
// meantime.
func (r *Repeater) OnFinish() Coroutine {
	if r.regime == RegimeStopped {
		return nil
	}
	r.tick()
	return r
}

// Resume is a no-op: tick() already performed the only work a resumption
// would trigger (re-arming the waiter), as part of OnFinish.
func (r *Repeater) Resume() {}

// Parent reports that a Repeater is always a leaf coroutine.
func (r *Repeater) Parent() Coroutine { return nil }

// tick re-arms the waiter for the next scheduled fire time and spawns
// whatever tasks are due for the current rate regime. Modeled on a switch
// over the regime type, with the upstream fallthrough defect from HighFreq
// into MidFreq deliberately not reproduced (see scenarios_test.go).
func (r *Repeater) tick() {
	now := r.driver.clock.now()

	switch r.regime {
	case RegimeHighFreq:
		r.waiter.SetTimeout(10)
	case RegimeMidFreq:
		iv := r.interval
		if r.index < r.firstInterval {
			iv++
		}
		r.waiter.SetTimeout(uint64(iv))
	case RegimeLowFreq:
		iv := r.interval
		if r.index < r.firstInterval {
			iv += 1000
		}
		r.waiter.SetTimeout(uint64(iv))
	default:
		return
	}

	// Drift correction only applies to HighFreq/MidFreq; LowFreq's ticks are
	// seconds apart already and have no sub-cycle index to catch up within.
	if r.index == 0 && r.regime <= RegimeMidFreq {
		if r.windowOpen {
			refreshed := r.driver.clock.refresh()
			now = refreshed
			expected := int32(float64(refreshed-r.startMs) / 1000.0 * r.reqCount)
			for fix := expected - int32(r.realCount); fix > 0; fix-- {
				r.spawnOne()
			}
		}
		r.startMs = r.driver.clock.refresh()
		r.windowOpen = true
		now = r.startMs
		r.realCount = 0
	}

	switch r.regime {
	case RegimeHighFreq:
		if gap := now - r.lastMs; gap > 200 {
			r.lastMs = now
			r.index = 0
			if r.logger != nil {
				r.logger.Debug().Uint64(`stalledMs`, gap).Log("repeater stall detected, skipping tick")
			}
			return
		}
		r.lastMs = now
		count := r.intervalCount
		if r.index < r.firstIntervalCount {
			count++
		}
		r.index = (r.index + 1) % 100
		for i := uint32(0); i < count; i++ {
			r.spawnOne()
		}
	case RegimeMidFreq:
		r.lastMs = now
		r.spawnOne()
		r.index = (r.index + 1) % r.intervalCount
	case RegimeLowFreq:
		r.spawnOne()
		r.index = (r.index + 1) % r.intervalCount
	}
}

func (r *Repeater) spawnOne() {
	co := r.spawn()
	co.Start()
	r.realCount++
}
