// Package loom implements a user-space cooperative concurrency runtime.
//
// loom provides three tightly-coupled primitives built on a single
// scheduler, a single timer heap, and a single I/O readiness
// multiplexer: [Coroutine], a cooperatively scheduled lightweight task;
// [Channel], an unbuffered CSP-style rendezvous point for values or
// transported errors; and [FileDescriptor], which suspends the current
// coroutine until a descriptor becomes readable, becomes writable, or a
// deadline elapses.
//
// # The coroutine protocol
//
// Every coroutine is backed by its own goroutine, giving it the
// independent, growable stack the runtime needs to suspend from
// arbitrary call depth (inside a channel operation, a poll, a library
// call). Exactly one coroutine's goroutine is ever unblocked and
// running user code at a time: a pair of unbuffered channels hands
// control back and forth between a coroutine and the [Scheduler] that
// owns it, the same rendezvous discipline used to control a single
// child goroutine, generalized to a ready queue of many. Because
// control transfer is an explicit, synchronous handoff, no data race is
// possible between two coroutines scheduled by the same [Scheduler],
// and the scheduler's internal queues require no locking.
//
// # Suspension and cancellation
//
// A coroutine suspends only at [Coroutine.Yield], [Coroutine.WakeUp], a
// [Channel] send/receive, or [FileDescriptor.Poll]. Cancelling a
// coroutine via its handle never preempts running user code; it sets a
// flag observed at the coroutine's next suspension point, at which time
// the operation fails with [ErrCanceled]. Cancelling an already
// finished coroutine is a harmless no-op.
package loom
