package corttimer

// JitterMetrics tracks how far a timeout-armed Waiter's actual fire time
// (GetTimeCost) diverges from the millisecond duration it was armed for,
// using the P² streaming quantile estimator so the Driver never has to
// retain the full observation history, narrowed from general task latency
// tracking to timer jitter specifically.
type JitterMetrics struct {
	p50   *pSquareQuantile
	p95   *pSquareQuantile
	p99   *pSquareQuantile
	count uint64
	sumMs float64
	maxMs float64
}

// NewJitterMetrics constructs an empty tracker.
func NewJitterMetrics() *JitterMetrics {
	return &JitterMetrics{
		p50: newPSquareQuantile(0.50),
		p95: newPSquareQuantile(0.95),
		p99: newPSquareQuantile(0.99),
	}
}

// record is called by Driver.RunOnce for every waiter that finishes via
// timeout, with the difference between the observed elapsed time and the
// requested deadline offset.
func (m *JitterMetrics) record(jitterMs float64) {
	if m == nil {
		return
	}
	if jitterMs < 0 {
		jitterMs = 0
	}
	m.p50.Update(jitterMs)
	m.p95.Update(jitterMs)
	m.p99.Update(jitterMs)
	m.count++
	m.sumMs += jitterMs
	if jitterMs > m.maxMs {
		m.maxMs = jitterMs
	}
}

// P50, P95, and P99 return the current quantile estimates in milliseconds.
func (m *JitterMetrics) P50() float64 { return m.p50.Quantile() }
func (m *JitterMetrics) P95() float64 { return m.p95.Quantile() }
func (m *JitterMetrics) P99() float64 { return m.p99.Quantile() }

// Count returns the number of jitter samples recorded.
func (m *JitterMetrics) Count() uint64 { return m.count }

// Mean returns the arithmetic mean jitter in milliseconds, or 0 if no
// samples have been recorded.
func (m *JitterMetrics) Mean() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sumMs / float64(m.count)
}

// Max returns the largest jitter sample recorded.
func (m *JitterMetrics) Max() float64 { return m.maxMs }

// pSquareQuantile implements the P² algorithm for streaming quantile
// estimation in O(1) time and space per observation (Jain & Chlamtac,
// 1985). Not safe for concurrent use; a Driver's state is never shared
// across goroutines.
//
// The estimator body below is a domain-agnostic numerical primitive,
// retained verbatim as shared algorithm code; JitterMetrics is what adapts
// it to this package's domain.
type pSquareQuantile struct {
	p           float64
	q           [5]float64
	n           [5]int
	np          [5]float64
	dn          [5]float64
	initialized bool
	count       int
	initBuffer  [5]float64
}

func newPSquareQuantile(p float64) *pSquareQuantile {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &pSquareQuantile{
		p:  p,
		dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (ps *pSquareQuantile) Update(x float64) {
	ps.count++

	if ps.count <= 5 {
		ps.initBuffer[ps.count-1] = x
		if ps.count == 5 {
			ps.initialize()
		}
		return
	}

	var k int
	if x < ps.q[0] {
		ps.q[0] = x
		k = 0
	} else if x >= ps.q[4] {
		ps.q[4] = x
		k = 3
	} else {
		for k = 0; k < 4; k++ {
			if ps.q[k] <= x && x < ps.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		ps.n[i]++
	}
	for i := 0; i < 5; i++ {
		ps.np[i] += ps.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := ps.np[i] - float64(ps.n[i])
		if (d >= 1 && ps.n[i+1]-ps.n[i] > 1) || (d <= -1 && ps.n[i-1]-ps.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qPrime := ps.parabolic(i, sign)
			if ps.q[i-1] < qPrime && qPrime < ps.q[i+1] {
				ps.q[i] = qPrime
			} else {
				ps.q[i] = ps.linear(i, sign)
			}
			ps.n[i] += sign
		}
	}
}

func (ps *pSquareQuantile) initialize() {
	for i := 1; i < 5; i++ {
		key := ps.initBuffer[i]
		j := i - 1
		for j >= 0 && ps.initBuffer[j] > key {
			ps.initBuffer[j+1] = ps.initBuffer[j]
			j--
		}
		ps.initBuffer[j+1] = key
	}
	for i := 0; i < 5; i++ {
		ps.q[i] = ps.initBuffer[i]
		ps.n[i] = i
	}
	ps.np = [5]float64{0, 2 * ps.p, 4 * ps.p, 2 + 2*ps.p, 4}
	ps.initialized = true
}

func (ps *pSquareQuantile) parabolic(i, d int) float64 {
	df := float64(d)
	ni := float64(ps.n[i])
	niPrev := float64(ps.n[i-1])
	niNext := float64(ps.n[i+1])

	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (ps.q[i+1] - ps.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (ps.q[i] - ps.q[i-1]) / (ni - niPrev)

	return ps.q[i] + term1*(term2+term3)
}

func (ps *pSquareQuantile) linear(i, d int) float64 {
	if d == 1 {
		return ps.q[i] + (ps.q[i+1]-ps.q[i])/float64(ps.n[i+1]-ps.n[i])
	}
	return ps.q[i] - (ps.q[i]-ps.q[i-1])/float64(ps.n[i]-ps.n[i-1])
}

func (ps *pSquareQuantile) Quantile() float64 {
	if ps.count == 0 {
		return 0
	}
	if ps.count < 5 {
		sorted := make([]float64, ps.count)
		copy(sorted, ps.initBuffer[:ps.count])
		for i := 1; i < ps.count; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		index := int(float64(ps.count-1) * ps.p)
		if index >= ps.count {
			index = ps.count - 1
		}
		return sorted[index]
	}
	return ps.q[2]
}
