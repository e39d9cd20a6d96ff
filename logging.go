package corttimer

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// builder is the event builder type every log call chains off of.
type builder = logiface.Builder[*stumpy.Event]

// Logger is the structured logging type a Driver accepts via WithLogger. It
// is logiface's generic Logger bound to stumpy's JSON event, in place of a
// bespoke hand-rolled logger.
type Logger = logiface.Logger[*stumpy.Event]

// NewDefaultLogger returns a stumpy-backed Logger writing JSON lines, for
// callers that want structured output without assembling their own stack.
func NewDefaultLogger() *Logger {
	return stumpy.L.New(stumpy.L.WithStumpy())
}

// A Driver with no configured logger (the zero value of its logger field)
// simply skips every log call; see the nil guards in the
// logWarn/logDebug/logInfo/logError helpers below.

func (d *Driver) logError(build func(b *builder) *builder, msg string) {
	if d.logger == nil {
		return
	}
	build(d.logger.Err()).Log(msg)
}

func (d *Driver) logWarn(build func(b *builder) *builder, msg string) {
	if d.logger == nil {
		return
	}
	build(d.logger.Warning()).Log(msg)
}

func (d *Driver) logInfo(build func(b *builder) *builder, msg string) {
	if d.logger == nil {
		return
	}
	build(d.logger.Info()).Log(msg)
}

func (d *Driver) logDebug(build func(b *builder) *builder, msg string) {
	if d.logger == nil {
		return
	}
	build(d.logger.Debug()).Log(msg)
}
