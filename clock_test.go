package corttimer

import (
	"testing"
	"time"
)

func TestClockMonotonicBetweenRefreshes(t *testing.T) {
	c := newClock()
	prev := c.now()
	for i := 0; i < 20; i++ {
		time.Sleep(time.Millisecond)
		next := c.refresh()
		if next < prev {
			t.Fatalf("clock went backwards: %d -> %d", prev, next)
		}
		prev = next
	}
}

func TestClockNowDoesNotResample(t *testing.T) {
	c := newClock()
	first := c.now()
	time.Sleep(5 * time.Millisecond)
	second := c.now()
	if first != second {
		t.Fatalf("now() resampled the clock: %d != %d", first, second)
	}
	if c.refresh() == first {
		t.Fatalf("refresh() did not advance after a 5ms sleep")
	}
}
