// Package corttimer provides the timer-and-poll core for a cooperative
// coroutine runtime: a deadline-bucketed timer heap, a platform-native
// readiness multiplexer, a refcounted waiter state machine, and a
// recurring-task scheduler built on top of them.
//
// # Architecture
//
// A [Driver] owns a monotonic [clock], a deadline-bucketed Timer Heap, and
// the OS readiness multiplexer (epoll on Linux, kqueue on Darwin). A
// [Waiter] is the unit of suspension: a leaf [Coroutine] arms one with a
// timeout, an fd readiness request, or both, and the Driver resumes it
// through exactly one of those two causes, or with a Stopped flag at
// teardown. [Handle] adds refcounted shared ownership of a Waiter on top.
// [Repeater] is a Waiter that re-arms itself on every fire, spawning new
// coroutines at a configured rate.
//
// # Platform Support
//
// Readiness notification is implemented using platform-native mechanisms:
//   - Linux: epoll
//   - Darwin: kqueue
//
// Windows is out of scope for this module.
//
// # Thread Safety
//
// A Driver and everything it owns — its heap, its poller, every Waiter
// armed against it — is never touched from more than one goroutine. Methods
// that assert this (RunOnce, RunForever, Destroy) panic loudly on misuse
// rather than attempting to synchronize; see [Driver] for details.
package corttimer
