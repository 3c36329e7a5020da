package loom

// FileDescriptor is a thin wrapper around a host integer descriptor,
// giving it a Poll method that suspends the calling coroutine until the
// descriptor is ready, rather than blocking the OS thread. loom never
// opens, closes, or otherwise owns the underlying
// descriptor; its lifetime is entirely the caller's responsibility.
type FileDescriptor struct {
	sched *Scheduler
	fd    int
}

// NewFileDescriptor wraps fd for polling on sched's reactor. fd is not
// validated until the first Poll call.
func NewFileDescriptor(sched *Scheduler, fd int) *FileDescriptor {
	return &FileDescriptor{sched: sched, fd: fd}
}

// FD returns the wrapped host descriptor.
func (f *FileDescriptor) FD() int { return f.fd }

// Poll suspends co until f becomes ready for event, deadline elapses,
// or co is cancelled. It fails immediately, without suspending, if fd
// is negative or if another coroutine is already polling the same
// (fd, direction) pair.
func (f *FileDescriptor) Poll(co *Coroutine, event IOEvent, deadline Deadline) error {
	if co.canceled() {
		return ErrCanceled
	}
	if f.fd < 0 {
		return ErrInvalidFD
	}
	if err := f.sched.ioReactor.register(f.fd, event, co); err != nil {
		return err
	}

	removeFromReactor := func() { f.sched.ioReactor.deregister(f.fd, event) }
	var remove func()
	if deadline == Never {
		remove = removeFromReactor
	} else {
		entry := f.sched.timers.insert(co, deadline.Time())
		entry.onExpire = outcomeTimeout
		remove = func() {
			removeFromReactor()
			f.sched.timers.remove(entry)
		}
	}
	co.suspend(remove)

	if co.canceled() {
		return ErrCanceled
	}
	if co.resumeOutcome == outcomeTimeout {
		return ErrTimeout
	}
	return nil
}

// Clean disassociates any runtime bookkeeping for f's descriptor
// without closing it, for callers that intend to hand the descriptor
// to another subsystem. It is a no-op if nothing is currently polling.
func (f *FileDescriptor) Clean() {
	f.sched.ioReactor.deregister(f.fd, Readable)
	f.sched.ioReactor.deregister(f.fd, Writable)
}
