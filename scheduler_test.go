package loom

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoundRobinYield checks that three coroutines add
// 7x3, 11x1, 5x2 to a shared counter, each addition separated by a
// yield, and the scheduler quiesces once all three finish.
func TestRoundRobinYield(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	sum := 0
	adder := func(v, count int) Body {
		return func(co *Coroutine) error {
			for i := 0; i < count; i++ {
				sum += v
				if err := co.Yield(); err != nil {
					return err
				}
			}
			return nil
		}
	}

	sched.Spawn(adder(7, 3))
	sched.Spawn(adder(11, 1))
	sched.Spawn(adder(5, 2))

	require.NoError(t, sched.Run())
	assert.Equal(t, 42, sum)
}

// TestWakeOrder checks that coroutines sleeping for
// 30/40/10/20 ms each send their label afterwards; the receive order
// follows wake order (ascending sleep duration), not spawn order.
func TestWakeOrder(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	ch := NewChannel[int](sched)
	sleepers := []struct {
		ms    int
		label int
	}{
		{30, 111},
		{40, 222},
		{10, 333},
		{20, 444},
	}
	for _, s := range sleepers {
		s := s
		sched.Spawn(func(co *Coroutine) error {
			if err := co.WakeUp(Duration(time.Duration(s.ms) * time.Millisecond).FromNow()); err != nil {
				return err
			}
			return ch.Send(co, s.label, Never)
		})
	}

	var got []int
	sched.Spawn(func(co *Coroutine) error {
		for i := 0; i < len(sleepers); i++ {
			v, err := ch.Receive(co, Never)
			if err != nil {
				return err
			}
			got = append(got, v)
		}
		return nil
	})

	require.NoError(t, sched.Run())
	assert.Equal(t, []int{333, 444, 111, 222}, got)
}

// TestDeadlineAccuracy checks that wakeUp(now+100ms)
// resumes within a symmetric 100ms window of the requested deadline.
func TestDeadlineAccuracy(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	const want = 100 * time.Millisecond
	start := time.Now()
	var elapsed time.Duration
	sched.Spawn(func(co *Coroutine) error {
		err := co.WakeUp(Duration(want).FromNow())
		elapsed = time.Since(start)
		return err
	})

	require.NoError(t, sched.Run())
	assert.InDelta(t, float64(want), float64(elapsed), float64(want))
}

// TestCancellationObservability checks that Yield and
// WakeUp inside a cancelled coroutine fail with ErrCanceled, and so
// does spawning a child from inside one.
func TestCancellationObservability(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	var yieldErr, wakeErr, spawnErr error
	var ready = make(chan struct{})
	var co *Coroutine
	co = sched.Spawn(func(c *Coroutine) error {
		close(ready)
		// Block until cancelled; the first Yield after Cancel observes it.
		for {
			if err := c.Yield(); err != nil {
				yieldErr = err
				break
			}
		}
		wakeErr = c.WakeUp(Immediate)
		_, spawnErr = c.Spawn(func(*Coroutine) error { return nil })
		return yieldErr
	})

	go func() {
		<-ready
		co.Cancel()
	}()

	require.NoError(t, sched.Run())
	assert.ErrorIs(t, yieldErr, ErrCanceled)
	assert.ErrorIs(t, wakeErr, ErrCanceled)
	assert.ErrorIs(t, spawnErr, ErrCanceled)
	assert.Equal(t, StateCancelled, co.State())
}

// TestIdempotentCancel checks that cancelling twice, or
// cancelling a finished coroutine, is a silent no-op.
func TestIdempotentCancel(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	co := sched.Spawn(func(c *Coroutine) error { return nil })
	require.NoError(t, sched.Run())
	assert.Equal(t, StateFinished, co.State())

	assert.NotPanics(t, func() {
		co.Cancel()
		co.Cancel()
	})
	assert.Equal(t, StateFinished, co.State())
}

// TestWithContextCancelsCoroutine exercises WithContext.
func TestWithContextCancelsCoroutine(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var bodyErr error
	started := make(chan struct{})
	co := sched.Spawn(func(c *Coroutine) error {
		close(started)
		for {
			if err := c.Yield(); err != nil {
				bodyErr = err
				return err
			}
		}
	}, WithContext(ctx))

	go func() {
		<-started
		cancel()
	}()

	require.NoError(t, sched.Run())
	assert.ErrorIs(t, bodyErr, ErrCanceled)
	assert.Equal(t, StateCancelled, co.State())
}

// TestGroupCancel exercises Group.AddCoroutine/Cancel.
func TestGroupCancel(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	g := sched.NewGroup()
	var errs [3]error
	started := make(chan struct{}, 3)
	for i := range errs {
		i := i
		g.AddCoroutine(func(c *Coroutine) error {
			started <- struct{}{}
			for {
				if err := c.Yield(); err != nil {
					errs[i] = err
					return err
				}
			}
		})
	}

	go func() {
		for range errs {
			<-started
		}
		g.Cancel()
	}()

	require.NoError(t, sched.Run())
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrCanceled)
	}
}
