package loom

import (
	"fmt"
	"sync/atomic"
)

// State is a Coroutine's position in its lifecycle state machine.
type State int32

const (
	// StateReady means the coroutine is enqueued and waiting for the
	// scheduler to dispatch it.
	StateReady State = iota
	// StateRunning means the coroutine is the one currently executing.
	StateRunning
	// StateSuspended means the coroutine is blocked on a timer, a
	// channel, or an I/O poll.
	StateSuspended
	// StateCancelled is terminal: the coroutine ended with a cancel
	// request set, whether its body observed it at a suspension point,
	// returned before reaching one, or never ran at all.
	StateCancelled
	// StateFinished is terminal: the coroutine's body returned (or
	// panicked) with no cancel request set.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateCancelled:
		return "cancelled"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Body is the procedure a Coroutine runs exactly once. It receives the
// handle of the coroutine it is running as, so it can yield, sleep, or
// spawn children of its own.
type Body func(co *Coroutine) error

type outcomeKind uint8

const (
	outcomeReady outcomeKind = iota
	outcomeTimeout
	outcomeDone
)

// suspendKind distinguishes the two messages a coroutine's goroutine
// ever sends back to the scheduler: "I yielded/blocked, give the turn
// back" versus "I'm done, never resume me again."
type suspendKind uint8

const (
	suspendBlocked suspendKind = iota
	suspendTerminal
)

type suspendMsg struct {
	kind  suspendKind
	final State // valid when kind == suspendTerminal
	err   error // body's error or recovered panic; logged, and surfaced by Iterator.Returned
}

// Coroutine is a schedulable unit of cooperative execution, backed by
// its own goroutine. See the package doc for the resume/suspend
// handshake that guarantees at most one coroutine's body runs at a
// time.
type Coroutine struct {
	id    uint64
	sched *Scheduler
	group *Group

	state atomic.Int32 // State, readable from any goroutine

	cancelRequested atomic.Bool
	// cancelPosted guards against posting more than one cancellation
	// request to the scheduler's ingress; Cancel is otherwise idempotent.
	cancelPosted atomic.Bool

	resumeCh  chan struct{}
	suspendCh chan suspendMsg
	// closedCh is closed exactly once terminate runs, letting external
	// watchers (see WithContext) stop waiting on this coroutine without
	// leaking a goroutine past its lifetime.
	closedCh chan struct{}

	// waitRemove, resumeOutcome: scheduler-thread-only fields, touched
	// exclusively by whichever goroutine currently holds the single
	// logical "running" token (see package doc). waitRemove detaches
	// the coroutine from every structure it is currently queued on
	// (timer heap, a channel's queue, the reactor's waiter map); it is
	// nil whenever the coroutine isn't blocked on a removable wait.
	waitRemove    func()
	resumeOutcome outcomeKind
}

// ID returns the coroutine's process-unique identifier.
func (co *Coroutine) ID() uint64 { return co.id }

// State returns the coroutine's current lifecycle state. Safe to call
// from any goroutine.
func (co *Coroutine) State() State { return State(co.state.Load()) }

// Cancel requests that co stop at its next suspension point. It never
// blocks and never fails: it is safe to call from any goroutine,
// including concurrently with the coroutine's own scheduler, and safe
// to call more than once or after the coroutine has already finished.
func (co *Coroutine) Cancel() {
	if co.State() == StateFinished || co.State() == StateCancelled {
		return
	}
	if !co.cancelRequested.CompareAndSwap(false, true) {
		return
	}
	if !co.cancelPosted.CompareAndSwap(false, true) {
		return
	}
	co.sched.postCancel(co)
}

// canceled reports whether a cancel has been requested for co. Blocking
// operations consult this at their entry and after every resume.
func (co *Coroutine) canceled() bool { return co.cancelRequested.Load() }

// Spawn creates a child coroutine on the same scheduler as co. Unlike
// Scheduler.Spawn, it is itself a suspension point at the
// create-and-queue boundary: a pending cancellation on co fails the
// call with ErrCanceled instead of creating the child.
func (co *Coroutine) Spawn(body Body, opts ...CoroutineOption) (*Coroutine, error) {
	if co.canceled() {
		return nil, ErrCanceled
	}
	return co.sched.Spawn(body, opts...), nil
}

// suspend blocks the calling coroutine until the scheduler resumes it,
// recording remove (possibly nil) as the hook whichever wake path wins
// uses to detach co from the structure it was queued on. Every blocking
// operation in the package is a thin wrapper around this handshake; see
// the package doc for why it is race-free without locks.
func (co *Coroutine) suspend(remove func()) {
	co.waitRemove = remove
	co.state.Store(int32(StateSuspended))
	co.suspendCh <- suspendMsg{kind: suspendBlocked}
	<-co.resumeCh
	co.waitRemove = nil
}

// Yield suspends the calling coroutine, moving it to the tail of the
// ready queue, and returns control to the scheduler. It must be called
// from within co's own body. It fails with ErrCanceled if co has been
// cancelled, whether observed before suspending or upon resumption.
func (co *Coroutine) Yield() error {
	if co.canceled() {
		return ErrCanceled
	}
	co.suspend(nil)
	if co.canceled() {
		return ErrCanceled
	}
	return nil
}

// WakeUp suspends the calling coroutine until deadline, then returns.
// It is a combined yield-and-sleep: even an already-elapsed deadline
// still performs one scheduling round trip before returning, so that
// WakeUp(Immediate) behaves like Yield preceded by an expiry check.
// It fails with ErrCanceled if co has been cancelled.
func (co *Coroutine) WakeUp(deadline Deadline) error {
	if co.canceled() {
		return ErrCanceled
	}
	entry := co.sched.timers.insert(co, deadline.Time())
	co.suspend(func() { co.sched.timers.remove(entry) })
	if co.canceled() {
		return ErrCanceled
	}
	return nil
}

// dispatch grants co its turn to run and blocks until it next suspends
// or finishes. Called only by the scheduler's run loop.
func (co *Coroutine) dispatch() suspendMsg {
	co.state.Store(int32(StateRunning))
	co.resumeCh <- struct{}{}
	return <-co.suspendCh
}

// start launches co's goroutine. The goroutine immediately blocks
// waiting for its first dispatch.
func (co *Coroutine) start(body Body) {
	go func() {
		<-co.resumeCh
		if co.canceled() {
			co.terminate(StateCancelled, nil)
			return
		}
		var bodyErr error
		func() {
			defer func() {
				if r := recover(); r != nil {
					bodyErr = fmt.Errorf("loom: coroutine panic: %v", r)
					log().Error().
						Uint64("coroutine_id", co.id).
						Interface("panic", r).
						Msg("coroutine body panicked")
				}
			}()
			bodyErr = body(co)
		}()
		final := StateFinished
		if co.canceled() {
			final = StateCancelled
		}
		co.terminate(final, bodyErr)
	}()
}

// terminate reports the coroutine's completion to the scheduler. It is
// called exactly once, from the coroutine's own goroutine, at the end
// of start's closure.
func (co *Coroutine) terminate(final State, err error) {
	if final == StateFinished && err != nil {
		log().Debug().Uint64("coroutine_id", co.id).Err(err).Msg("coroutine returned an error")
	}
	co.suspendCh <- suspendMsg{kind: suspendTerminal, final: final, err: err}
	close(co.closedCh)
}

// removeWait detaches co from whatever structure currently holds it
// (timer heap, channel queue, reactor waiter map), if anything, and
// clears the hook so it cannot be invoked twice. It is the single choke
// point every natural-wake and cancellation path uses to keep those
// structures consistent without locks (see package doc).
func (co *Coroutine) removeWait() {
	if co.waitRemove != nil {
		co.waitRemove()
		co.waitRemove = nil
	}
}
