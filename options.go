package corttimer

// Option configures a Driver at construction time, following the standard
// functional-options pattern (an interface wrapping a closure) rather than
// a plain struct literal, so new options can be added without breaking
// callers.
type Option interface {
	apply(*driverOptions)
}

type driverOptions struct {
	logger  *Logger
	metrics *JitterMetrics
}

type optionFunc func(*driverOptions)

func (f optionFunc) apply(o *driverOptions) { f(o) }

// WithLogger configures structured diagnostic logging for fd registration
// failures, poll wait failures, and teardown counts. Without this option
// the Driver logs nothing. Repeater stall-skips are logged through
// Repeater.SetLogger, not through this logger.
func WithLogger(logger *Logger) Option {
	return optionFunc(func(o *driverOptions) { o.logger = logger })
}

// WithMetrics attaches a jitter percentile tracker that every Waiter
// finishing by timeout in RunOnce records into.
func WithMetrics(m *JitterMetrics) Option {
	return optionFunc(func(o *driverOptions) { o.metrics = m })
}

func resolveOptions(opts []Option) driverOptions {
	var o driverOptions
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
