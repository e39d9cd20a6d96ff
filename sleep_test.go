package corttimer

import "testing"

func TestSleepClosesChannelOnFire(t *testing.T) {
	d := newTestDriver(t)
	done := Sleep(d, 0)

	if _, err := d.RunOnce(0); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatalf("Sleep channel was not closed after its timeout fired")
	}
}
