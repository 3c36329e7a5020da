package loom

// Channel is a synchronous, unbuffered rendezvous point transporting
// either a value of type T or a boxed error, plus a monotonic "done"
// terminal state. Its capacity is always zero: a Send
// only returns once a matching Receive has claimed the value, and vice
// versa.
//
// A Channel belongs to the scheduler it was created on and must only
// be operated on by coroutines running on that scheduler.
type Channel[T any] struct {
	sched *Scheduler
	done  bool

	senders   []*chWaiter[T]
	receivers []*chWaiter[T]
}

// chSlot carries exactly one of a value or an error between a blocked
// sender and its eventual receiver. It lives on the heap (a Go
// necessity) but conceptually plays the role of a stack-local slot:
// exactly one copy ever occurs.
type chSlot[T any] struct {
	value T
	err   error
}

type chWaiter[T any] struct {
	co   *Coroutine
	slot *chSlot[T]
}

// NewChannel creates an empty, open Channel scheduled by sched.
func NewChannel[T any](sched *Scheduler) *Channel[T] {
	return &Channel[T]{sched: sched}
}

// Send transfers value to whichever coroutine next calls Receive. If a
// receiver is already queued the transfer completes immediately;
// otherwise the caller blocks until a receiver arrives, deadline
// elapses (ErrTimeout), the channel is closed (ErrDoneChannel), or co
// is cancelled (ErrCanceled).
func (ch *Channel[T]) Send(co *Coroutine, value T, deadline Deadline) error {
	return ch.send(co, chSlot[T]{value: value}, deadline)
}

// SendErr is Send's counterpart for transporting an error: the
// eventual Receive call returns the error instead of a value.
func (ch *Channel[T]) SendErr(co *Coroutine, err error, deadline Deadline) error {
	return ch.send(co, chSlot[T]{err: err}, deadline)
}

func (ch *Channel[T]) send(co *Coroutine, s chSlot[T], deadline Deadline) error {
	if co.canceled() {
		return ErrCanceled
	}
	if ch.done {
		return ErrDoneChannel
	}
	if len(ch.receivers) > 0 {
		w := ch.receivers[0]
		ch.receivers = ch.receivers[1:]
		*w.slot = s
		ch.wake(w.co, outcomeReady)
		return nil
	}

	slot := &s
	w := &chWaiter[T]{co: co, slot: slot}
	ch.senders = append(ch.senders, w)
	co.suspend(ch.waitRemoveFunc(co, func() { ch.removeSender(w) }, deadline))

	if co.canceled() {
		return ErrCanceled
	}
	switch co.resumeOutcome {
	case outcomeTimeout:
		return ErrTimeout
	case outcomeDone:
		return ErrDoneChannel
	default:
		return nil
	}
}

// Receive blocks until a value or boxed error arrives from a matching
// Send/SendErr call, deadline elapses, the channel closes, or co is
// cancelled. A transported error is returned as-is rather than as the
// zero value plus a wrapping error.
func (ch *Channel[T]) Receive(co *Coroutine, deadline Deadline) (T, error) {
	var zero T
	if co.canceled() {
		return zero, ErrCanceled
	}
	if ch.done {
		return zero, ErrDoneChannel
	}
	if len(ch.senders) > 0 {
		w := ch.senders[0]
		ch.senders = ch.senders[1:]
		got := *w.slot
		ch.wake(w.co, outcomeReady)
		if got.err != nil {
			return zero, got.err
		}
		return got.value, nil
	}

	slot := &chSlot[T]{}
	w := &chWaiter[T]{co: co, slot: slot}
	ch.receivers = append(ch.receivers, w)
	co.suspend(ch.waitRemoveFunc(co, func() { ch.removeReceiver(w) }, deadline))

	if co.canceled() {
		return zero, ErrCanceled
	}
	switch co.resumeOutcome {
	case outcomeTimeout:
		return zero, ErrTimeout
	case outcomeDone:
		return zero, ErrDoneChannel
	default:
		if slot.err != nil {
			return zero, slot.err
		}
		return slot.value, nil
	}
}

// waitRemoveFunc arms an optional timer for deadline and returns the
// composite hook that both cancels it and evicts the caller from the
// channel's queue, whichever wake path needs it.
func (ch *Channel[T]) waitRemoveFunc(co *Coroutine, fromQueue func(), deadline Deadline) func() {
	if deadline == Never {
		return fromQueue
	}
	entry := co.sched.timers.insert(co, deadline.Time())
	entry.onExpire = outcomeTimeout
	return func() {
		fromQueue()
		co.sched.timers.remove(entry)
	}
}

// Done closes the channel: it is set permanently and every coroutine
// currently blocked in Send or Receive wakes with ErrDoneChannel. Done
// is idempotent.
func (ch *Channel[T]) Done() {
	if ch.done {
		return
	}
	ch.done = true
	senders, receivers := ch.senders, ch.receivers
	ch.senders, ch.receivers = nil, nil
	for _, w := range senders {
		ch.wake(w.co, outcomeDone)
	}
	for _, w := range receivers {
		ch.wake(w.co, outcomeDone)
	}
}

func (ch *Channel[T]) wake(co *Coroutine, outcome outcomeKind) {
	co.resumeOutcome = outcome
	co.removeWait()
	co.sched.ready.pushTail(co)
}

func (ch *Channel[T]) removeSender(w *chWaiter[T]) {
	for i, x := range ch.senders {
		if x == w {
			ch.senders = append(ch.senders[:i], ch.senders[i+1:]...)
			return
		}
	}
}

func (ch *Channel[T]) removeReceiver(w *chWaiter[T]) {
	for i, x := range ch.receivers {
		if x == w {
			ch.receivers = append(ch.receivers[:i], ch.receivers[i+1:]...)
			return
		}
	}
}
