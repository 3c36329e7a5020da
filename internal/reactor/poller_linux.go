//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// backend multiplexes readiness via epoll. It adds an eventfd
// used purely to interrupt a blocked epoll_wait from another goroutine
// (WakeUp).
type backend struct {
	epfd   int
	wakeFD int
	fds    map[int]*fdState
	events [128]unix.EpollEvent
}

type fdState struct {
	read, write bool
}

func newBackend() (Backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	b := &backend{epfd: epfd, wakeFD: wakeFD, fds: make(map[int]*fdState)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFD),
	}); err != nil {
		_ = unix.Close(wakeFD)
		_ = unix.Close(epfd)
		return nil, err
	}
	return b, nil
}

func (b *backend) stateFor(fd int) *fdState {
	s, ok := b.fds[fd]
	if !ok {
		s = &fdState{}
		b.fds[fd] = s
	}
	return s
}

func (b *backend) Register(fd int, dir Direction) error {
	s := b.stateFor(fd)
	op := unix.EPOLL_CTL_MOD
	if !s.read && !s.write {
		op = unix.EPOLL_CTL_ADD
	}
	switch dir {
	case Read:
		s.read = true
	case Write:
		s.write = true
	}
	return unix.EpollCtl(b.epfd, op, fd, &unix.EpollEvent{Events: epollMask(s), Fd: int32(fd)})
}

func (b *backend) Deregister(fd int, dir Direction) error {
	s, ok := b.fds[fd]
	if !ok {
		return nil
	}
	switch dir {
	case Read:
		s.read = false
	case Write:
		s.write = false
	}
	if !s.read && !s.write {
		delete(b.fds, fd)
		return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: epollMask(s), Fd: int32(fd)})
}

func epollMask(s *fdState) uint32 {
	var m uint32
	if s.read {
		m |= unix.EPOLLIN
	}
	if s.write {
		m |= unix.EPOLLOUT
	}
	return m
}

func (b *backend) Wait(timeout time.Duration) ([]Event, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 && timeout > 0 {
			ms = 1
		}
	}
	n, err := unix.EpollWait(b.epfd, b.events[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	var out []Event
	for i := 0; i < n; i++ {
		fd := int(b.events[i].Fd)
		if fd == b.wakeFD {
			drainEventfd(b.wakeFD)
			continue
		}
		mask := b.events[i].Events
		if mask&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			out = append(out, Event{FD: fd, Dir: Read})
		}
		if mask&(unix.EPOLLOUT|unix.EPOLLERR) != 0 {
			out = append(out, Event{FD: fd, Dir: Write})
		}
	}
	return out, nil
}

func (b *backend) WakeUp() {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(b.wakeFD, buf[:])
}

func drainEventfd(fd int) {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (b *backend) Close() error {
	_ = unix.Close(b.wakeFD)
	return unix.Close(b.epfd)
}
