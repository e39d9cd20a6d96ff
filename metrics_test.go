package corttimer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitterMetricsTracksQuantiles(t *testing.T) {
	m := NewJitterMetrics()
	for i := 0; i < 200; i++ {
		m.record(float64(i % 10))
	}
	assert.EqualValues(t, 200, m.Count())
	assert.Equal(t, 9.0, m.Max())
	assert.InDelta(t, 4.5, m.P50(), 5, "P50 should land somewhere within the observed [0,9] range")
	assert.InDelta(t, 4.5, m.Mean(), 5, "Mean should land somewhere within the observed [0,9] range")
}

func TestDriverRecordsJitterForTimeoutFinishes(t *testing.T) {
	metrics := NewJitterMetrics()
	d, err := NewDriver(WithMetrics(metrics))
	require.NoError(t, err)
	defer d.Destroy()

	d.NewWaiter(&fakeCoroutine{}).SetTimeout(0)
	_, err = d.RunOnce(0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, metrics.Count())
}
