package loom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerHeapOrdering(t *testing.T) {
	var h timerHeap
	base := time.Now()

	var owners []*Coroutine
	for i := 0; i < 3; i++ {
		owners = append(owners, &Coroutine{id: uint64(i)})
	}
	h.insert(owners[2], base.Add(30*time.Millisecond))
	h.insert(owners[0], base.Add(10*time.Millisecond))
	h.insert(owners[1], base.Add(20*time.Millisecond))

	deadline, ok := h.peek()
	require.True(t, ok)
	assert.Equal(t, base.Add(10*time.Millisecond), deadline)

	expired := h.popExpired(base.Add(25 * time.Millisecond))
	require.Len(t, expired, 2)
	assert.Equal(t, owners[0], expired[0].owner)
	assert.Equal(t, owners[1], expired[1].owner)
	assert.Equal(t, 1, h.Len())
}

func TestTimerHeapEqualDeadlineTieBreak(t *testing.T) {
	var h timerHeap
	deadline := time.Now().Add(time.Hour)

	first := &Coroutine{id: 1}
	second := &Coroutine{id: 2}
	h.insert(first, deadline)
	h.insert(second, deadline)

	expired := h.popExpired(deadline)
	require.Len(t, expired, 2)
	assert.Equal(t, first, expired[0].owner)
	assert.Equal(t, second, expired[1].owner)
}

func TestTimerHeapRemove(t *testing.T) {
	var h timerHeap
	co := &Coroutine{id: 1}
	entry := h.insert(co, time.Now().Add(time.Hour))
	require.Equal(t, 1, h.Len())

	h.remove(entry)
	assert.Equal(t, 0, h.Len())

	// Removing again is a safe no-op.
	h.remove(entry)
	assert.Equal(t, 0, h.Len())
}
