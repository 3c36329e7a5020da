package loom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	return fds[0], fds[1]
}

// TestPollReadiness checks that writing is immediately
// pollable, reading before data arrives times out, and reading after
// data arrives succeeds and the byte is recoverable.
func TestPollReadiness(t *testing.T) {
	a, b := socketPair(t)

	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	fdA := NewFileDescriptor(sched, a)
	fdB := NewFileDescriptor(sched, b)

	var writeErr1, writeErr2, readTimeoutErr, readErr error
	var gotByte byte

	sched.Spawn(func(co *Coroutine) error {
		writeErr1 = fdA.Poll(co, Writable, Immediate)
		writeErr2 = fdA.Poll(co, Writable, Immediate)
		readTimeoutErr = fdB.Poll(co, Readable, Duration(20*time.Millisecond).FromNow())

		_, werr := unix.Write(a, []byte{42})
		require.NoError(t, werr)

		readErr = fdB.Poll(co, Readable, Never)
		buf := make([]byte, 1)
		n, rerr := unix.Read(b, buf)
		require.NoError(t, rerr)
		require.Equal(t, 1, n)
		gotByte = buf[0]
		return nil
	})

	require.NoError(t, sched.Run())
	assert.NoError(t, writeErr1)
	assert.NoError(t, writeErr2)
	assert.ErrorIs(t, readTimeoutErr, ErrTimeout)
	assert.NoError(t, readErr)
	assert.Equal(t, byte(42), gotByte)
}

// TestPollInvalidFD checks that polling an invalid fd fails fast.
func TestPollInvalidFD(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	fd := NewFileDescriptor(sched, -1)
	var pollErr error
	sched.Spawn(func(co *Coroutine) error {
		pollErr = fd.Poll(co, Readable, Never)
		return nil
	})

	require.NoError(t, sched.Run())
	assert.ErrorIs(t, pollErr, ErrInvalidFD)
}

// TestPollSingleWaiter checks that a second coroutine
// polling the same (fd, direction) fails immediately, and the first is
// released with ErrCanceled when cancelled.
func TestPollSingleWaiter(t *testing.T) {
	a, b := socketPair(t)
	_ = b

	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	fd := NewFileDescriptor(sched, a)
	var firstErr, secondErr error
	firstStarted := make(chan struct{})

	var first *Coroutine
	first = sched.Spawn(func(co *Coroutine) error {
		close(firstStarted)
		firstErr = fd.Poll(co, Readable, Never)
		return firstErr
	})
	sched.Spawn(func(co *Coroutine) error {
		<-firstStarted
		secondErr = fd.Poll(co, Readable, Never)
		return secondErr
	})

	go func() {
		<-firstStarted
		first.Cancel()
	}()

	require.NoError(t, sched.Run())
	assert.ErrorIs(t, secondErr, ErrFDBlockedInAnotherCoroutine)
	assert.ErrorIs(t, firstErr, ErrCanceled)
}
