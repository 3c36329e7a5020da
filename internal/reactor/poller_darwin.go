//go:build darwin

package reactor

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// backend multiplexes readiness via kqueue. WakeUp uses a
// self-pipe registered with the kqueue to interrupt a blocked poll.
type backend struct {
	kq        int
	wakeRead  int
	wakeWrite int
	events    [128]unix.Kevent_t
}

func newBackend() (Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)

	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	_ = syscall.SetNonblock(fds[0], true)
	_ = syscall.SetNonblock(fds[1], true)

	b := &backend{kq: kq, wakeRead: fds[0], wakeWrite: fds[1]}
	kev := unix.Kevent_t{
		Ident:  uint64(b.wakeRead),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		_ = unix.Close(kq)
		_ = syscall.Close(fds[0])
		_ = syscall.Close(fds[1])
		return nil, err
	}
	return b, nil
}

func (b *backend) Register(fd int, dir Direction) error {
	kev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filterFor(dir),
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (b *backend) Deregister(fd int, dir Direction) error {
	kev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filterFor(dir),
		Flags:  unix.EV_DELETE,
	}
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func filterFor(dir Direction) int16 {
	if dir == Write {
		return unix.EVFILT_WRITE
	}
	return unix.EVFILT_READ
}

func (b *backend) Wait(timeout time.Duration) ([]Event, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	n, err := unix.Kevent(b.kq, nil, b.events[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	var out []Event
	for i := 0; i < n; i++ {
		ev := b.events[i]
		fd := int(ev.Ident)
		if fd == b.wakeRead {
			drainPipe(b.wakeRead)
			continue
		}
		switch ev.Filter {
		case unix.EVFILT_READ:
			out = append(out, Event{FD: fd, Dir: Read})
		case unix.EVFILT_WRITE:
			out = append(out, Event{FD: fd, Dir: Write})
		}
	}
	return out, nil
}

func (b *backend) WakeUp() {
	var buf [1]byte
	_, _ = syscall.Write(b.wakeWrite, buf[:])
}

func drainPipe(fd int) {
	var buf [64]byte
	for {
		_, err := syscall.Read(fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (b *backend) Close() error {
	_ = syscall.Close(b.wakeRead)
	_ = syscall.Close(b.wakeWrite)
	return unix.Close(b.kq)
}
