package loom

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler owns the ready queue, the timer heap, and the I/O reactor
// for a group of coroutines. A Scheduler must be driven
// by a single call to Run, made from the thread ("the thread that
// first created a coroutine") that owns it; coroutines may not migrate
// between schedulers.
type Scheduler struct {
	ready     readyQueue
	timers    timerHeap
	ioReactor *ioReactor

	nextID atomic.Uint64

	ingressMu sync.Mutex
	ingress   []ingressItem

	logger *zerolog.Logger

	closed atomic.Bool
}

type ingressKind uint8

const (
	ingressSpawn ingressKind = iota
	ingressCancel
)

type ingressItem struct {
	kind ingressKind
	co   *Coroutine
}

// NewScheduler constructs a Scheduler, initializing its platform I/O
// reactor. Callers must eventually call Close once Run has returned.
func NewScheduler(opts ...SchedulerOption) (*Scheduler, error) {
	var cfg schedulerConfig
	for _, o := range opts {
		o.applyScheduler(&cfg)
	}
	r, err := newIOReactor()
	if err != nil {
		return nil, fmt.Errorf("loom: initializing reactor: %w", err)
	}
	return &Scheduler{ioReactor: r, logger: cfg.logger}, nil
}

func (s *Scheduler) log() *zerolog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return log()
}

// Spawn creates a new, unparented coroutine on s, in state ready. It
// never fails and never blocks; the returned handle is valid
// immediately, even before Run has been called. Safe to call from any
// goroutine, including concurrently with an active Run call.
func (s *Scheduler) Spawn(body Body, opts ...CoroutineOption) *Coroutine {
	var cfg coroutineConfig
	for _, o := range opts {
		o.applyCoroutine(&cfg)
	}
	co := &Coroutine{
		id:        s.nextID.Add(1),
		sched:     s,
		resumeCh:  make(chan struct{}),
		suspendCh: make(chan suspendMsg),
		closedCh:  make(chan struct{}),
	}
	co.state.Store(int32(StateReady))
	co.start(body)
	if cfg.killCtx != nil {
		watchContext(co, cfg.killCtx)
	}
	s.postIngress(ingressItem{kind: ingressSpawn, co: co})
	s.log().Debug().Uint64("coroutine_id", co.id).Str("name", cfg.name).Msg("coroutine spawned")
	return co
}

// NewGroup creates an empty Group of coroutines scheduled by s.
func (s *Scheduler) NewGroup() *Group {
	return &Group{sched: s}
}

// watchContext starts the goroutine backing WithContext: it cancels co
// as soon as ctx is done, and exits without acting if co finishes
// first.
func watchContext(co *Coroutine, ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			co.Cancel()
		case <-co.closedCh:
		}
	}()
}

func (s *Scheduler) postIngress(item ingressItem) {
	s.ingressMu.Lock()
	s.ingress = append(s.ingress, item)
	s.ingressMu.Unlock()
	s.ioReactor.wakeUp()
}

func (s *Scheduler) postCancel(co *Coroutine) {
	s.postIngress(ingressItem{kind: ingressCancel, co: co})
}

func (s *Scheduler) drainIngress() {
	s.ingressMu.Lock()
	items := s.ingress
	s.ingress = nil
	s.ingressMu.Unlock()
	for _, it := range items {
		switch it.kind {
		case ingressSpawn:
			s.ready.pushTail(it.co)
		case ingressCancel:
			s.applyCancel(it.co)
		}
	}
}

func (s *Scheduler) ingressEmpty() bool {
	s.ingressMu.Lock()
	defer s.ingressMu.Unlock()
	return len(s.ingress) == 0
}

// applyCancel evicts a cancelled coroutine from whatever structure
// currently blocks it, so that when it is next dispatched its blocking
// call observes the cancel flag and returns ErrCanceled. Coroutines
// that are ready, running, or already terminal need no action: the
// flag alone is enough for them.
func (s *Scheduler) applyCancel(co *Coroutine) {
	if co.State() != StateSuspended {
		return
	}
	co.removeWait()
	s.ready.pushTail(co)
}

// Run drives the scheduler until it is quiescent: no coroutine is
// ready, no timer is pending, no coroutine is polling a descriptor, and
// no external call is in flight. It returns nil once quiescent, or
// ErrSchedulerClosed if s has been closed. A failed reactor wait is
// logged and treated like an empty wake; Run does not return it.
func (s *Scheduler) Run() error {
	if s.closed.Load() {
		return ErrSchedulerClosed
	}
	for {
		s.drainIngress()

		if co := s.ready.popHead(); co != nil {
			msg := co.dispatch()
			s.handleSuspend(co, msg)
			continue
		}

		if s.quiescent() {
			return nil
		}

		timeout := s.nextTimeout()
		woken := s.ioReactor.wait(timeout)

		s.drainIngress()

		// A descriptor's readiness and its own deadline can mature in
		// the same reactor call (most visibly with Immediate). Reactor
		// events are claimed first so a genuinely ready descriptor
		// succeeds rather than spuriously timing out; popExpired then
		// only finds wait structures the reactor pass didn't already
		// claim (removeWait is idempotent and nils co.waitRemove,
		// so a later, redundant claim attempt is a harmless no-op).
		for _, co := range woken {
			if co.waitRemove == nil {
				continue
			}
			co.resumeOutcome = outcomeReady
			co.removeWait()
			s.ready.pushTail(co)
		}
		now := time.Now()
		for _, e := range s.timers.popExpired(now) {
			co := e.owner
			if co.waitRemove == nil {
				continue
			}
			co.resumeOutcome = e.onExpire
			co.removeWait()
			s.ready.pushTail(co)
		}
	}
}

// Close releases the scheduler's reactor resources. Call once Run has
// returned; calling it while Run is active is undefined.
func (s *Scheduler) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.ioReactor.close()
}

func (s *Scheduler) quiescent() bool {
	return s.ready.empty() &&
		s.timers.Len() == 0 &&
		!s.ioReactor.hasWaiters() &&
		s.ingressEmpty()
}

func (s *Scheduler) nextTimeout() time.Duration {
	deadline, ok := s.timers.peek()
	if !ok {
		return -1
	}
	rem := time.Until(deadline)
	if rem < 0 {
		return 0
	}
	return rem
}

// handleSuspend acts on what a just-dispatched coroutine reported about
// itself. A terminal message records the final state and leaves the
// coroutine's group. Among blocked suspensions only a plain Yield (with
// no other structure to join) is re-enqueued: WakeUp, channel ops, and FileDescriptor.Poll
// already inserted themselves into the timer heap, a channel's queue,
// or the reactor's waiter map before signaling suspendCh, so the
// scheduler's job there is simply to not re-enqueue them.
func (s *Scheduler) handleSuspend(co *Coroutine, msg suspendMsg) {
	switch msg.kind {
	case suspendBlocked:
		if co.waitRemove == nil {
			// Plain Yield left no wait structure behind; ready again.
			s.ready.pushTail(co)
		}
	case suspendTerminal:
		co.state.Store(int32(msg.final))
		if co.group != nil {
			co.group.remove(co)
		}
		s.log().Debug().Uint64("coroutine_id", co.id).Str("state", msg.final.String()).Msg("coroutine terminated")
	}
}
