package loom

import "errors"

// Standard errors returned by loom's blocking operations. Callers should
// match these with errors.Is; the runtime never swallows an error or
// substitutes a string-matched equivalent.
var (
	// ErrCanceled is returned by a suspension-point operation (Yield,
	// WakeUp, a Channel send/receive, FileDescriptor.Poll, or coroutine
	// creation) that observed the coroutine's cancel flag.
	ErrCanceled = errors.New("loom: coroutine canceled")

	// ErrTimeout is returned when the deadline passed to a blocking
	// operation elapses before the operation could complete.
	ErrTimeout = errors.New("loom: deadline exceeded")

	// ErrDoneChannel is returned by a send or receive attempted on a
	// channel after Channel.Done has been called, including calls that
	// were already blocked when Done was called.
	ErrDoneChannel = errors.New("loom: channel is done")

	// ErrInvalidFD is returned by FileDescriptor.Poll when the
	// descriptor is negative or could not be registered with the host
	// readiness API.
	ErrInvalidFD = errors.New("loom: invalid file descriptor")

	// ErrFDBlockedInAnotherCoroutine is returned by FileDescriptor.Poll
	// when a second coroutine attempts to poll the same (fd, direction)
	// pair while another coroutine is already waiting on it.
	ErrFDBlockedInAnotherCoroutine = errors.New("loom: file descriptor already being polled by another coroutine")

	// ErrOutOfMemory names a failed scheduler-side allocation (a
	// coroutine, a reactor waiter record, a channel). No operation in
	// this package returns it: in Go an allocation failure terminates the
	// program instead of producing an error.
	ErrOutOfMemory = errors.New("loom: allocation failed")

	// ErrSchedulerClosed is returned by Scheduler.Run when the Scheduler
	// has already been closed.
	ErrSchedulerClosed = errors.New("loom: scheduler is closed")
)
