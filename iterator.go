package loom

// Iterator drives a coroutine body one yielded value at a time,
// built on Coroutine
// instead of a bare goroutine pair: each call to Next dispatches the
// iterator's coroutine directly, bypassing the ready queue and reactor
// entirely, since an iterator coroutine only ever suspends via Yield.
//
// An Iterator owns a private Scheduler purely to satisfy Coroutine's
// construction requirements; that scheduler is never run.
type Iterator[T any] struct {
	sched    *Scheduler
	co       *Coroutine
	yielded  T
	returned error
	done     bool
}

// NewIterator starts f as a coroutine body. f receives its own
// Coroutine handle (through which yield observes a cancellation
// requested by Stop) and a yield function that suspends the iterator
// until the next Next call, recording v as the value Yielded returns.
// Children spawned through the handle are queued on the iterator's
// private scheduler, which is never run, so they do not execute.
func NewIterator[T any](f func(co *Coroutine, yield func(v T) error) error) (*Iterator[T], error) {
	sched, err := NewScheduler()
	if err != nil {
		return nil, err
	}
	it := &Iterator[T]{sched: sched}
	it.co = sched.Spawn(func(co *Coroutine) error {
		return f(co, func(v T) error {
			it.yielded = v
			return co.Yield()
		})
	})
	return it, nil
}

// Next advances the iterator to its next yielded value, or to
// completion. It returns false once the body has returned (or
// panicked); Returned then holds its result.
func (it *Iterator[T]) Next() bool {
	if it.done {
		return false
	}
	msg := it.co.dispatch()
	if msg.kind == suspendTerminal {
		it.co.state.Store(int32(msg.final))
		it.done = true
		it.returned = msg.err
		_ = it.sched.Close()
		return false
	}
	return true
}

// Yielded returns the value set by the most recent Next call that
// returned true.
func (it *Iterator[T]) Yielded() T { return it.yielded }

// Returned returns the body's result once Next has returned false.
func (it *Iterator[T]) Returned() error { return it.returned }

// Stop cancels the iterator's coroutine and drains it to completion,
// so any deferred cleanup in its body still runs. Safe to call even if
// the iterator has already finished.
func (it *Iterator[T]) Stop() {
	it.co.Cancel()
	for it.Next() {
	}
}
