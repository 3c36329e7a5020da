package loom

import (
	"fmt"
	"time"

	"github.com/tcard/loom/internal/reactor"
)

// IOEvent is the readiness condition FileDescriptor.Poll waits for.
type IOEvent uint8

const (
	// Readable waits for the descriptor to become readable.
	Readable IOEvent = iota
	// Writable waits for the descriptor to become writable.
	Writable
)

func (e IOEvent) direction() reactor.Direction {
	if e == Writable {
		return reactor.Write
	}
	return reactor.Read
}

type fdKey struct {
	fd  int
	dir reactor.Direction
}

// ioReactor binds the platform reactor.Backend to loom's single-waiter-
// per-(fd,direction) invariant: the waiters map is the
// bookkeeping that invariant requires, mutated
// only by the scheduler goroutine that currently holds control.
type ioReactor struct {
	backend reactor.Backend
	waiters map[fdKey]*Coroutine
}

func newIOReactor() (*ioReactor, error) {
	b, err := reactor.New()
	if err != nil {
		return nil, err
	}
	return &ioReactor{backend: b, waiters: make(map[fdKey]*Coroutine)}, nil
}

// register arms fd for ev on behalf of co. It fails with
// ErrFDBlockedInAnotherCoroutine if another coroutine already waits on
// the same (fd, direction) pair, per the FileDescriptor invariant, and
// with ErrInvalidFD (wrapping the backend's error) if the backend cannot
// register fd.
func (r *ioReactor) register(fd int, ev IOEvent, co *Coroutine) error {
	key := fdKey{fd, ev.direction()}
	if _, occupied := r.waiters[key]; occupied {
		return ErrFDBlockedInAnotherCoroutine
	}
	if err := r.backend.Register(fd, key.dir); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFD, err)
	}
	r.waiters[key] = co
	return nil
}

// deregister removes fd's registration for ev, if any. It is a no-op
// otherwise, matching FileDescriptor.Clean's "disassociate without
// failing" contract.
func (r *ioReactor) deregister(fd int, ev IOEvent) {
	key := fdKey{fd, ev.direction()}
	if _, ok := r.waiters[key]; !ok {
		return
	}
	delete(r.waiters, key)
	_ = r.backend.Deregister(fd, key.dir)
}

// wait blocks for up to timeout (negative meaning indefinitely) and
// returns the coroutines whose polled descriptors became ready,
// deregistering each from the reactor as it is claimed.
func (r *ioReactor) wait(timeout time.Duration) []*Coroutine {
	events, err := r.backend.Wait(timeout)
	if err != nil {
		log().Debug().Err(err).Msg("loom: reactor wait error")
		return nil
	}
	var ready []*Coroutine
	for _, e := range events {
		key := fdKey{e.FD, e.Dir}
		co, ok := r.waiters[key]
		if !ok {
			continue // spurious or already-claimed event
		}
		delete(r.waiters, key)
		_ = r.backend.Deregister(e.FD, e.Dir)
		ready = append(ready, co)
	}
	return ready
}

func (r *ioReactor) wakeUp()        { r.backend.WakeUp() }
func (r *ioReactor) hasWaiters() bool { return len(r.waiters) > 0 }
func (r *ioReactor) close() error   { return r.backend.Close() }
