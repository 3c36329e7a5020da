package loom

import (
	"container/heap"
	"time"
)

// timerEntry is one pending deadline in the scheduler's timer heap. It
// carries a back-pointer to the coroutine sleeping on it, so an expired
// entry can be handed back to its owner; cancellation removes the entry
// by handle in O(log n) through its heap index.
type timerEntry struct {
	deadline time.Time
	seq      uint64 // monotonic tie-break: earlier insertion wins on equal deadlines
	owner    *Coroutine
	onExpire outcomeKind // what the owner should observe if this entry fires naturally
	index    int         // maintained by container/heap for O(log n) removal
}

// timerHeap is a min-heap of pending deadlines, ordered by (deadline,
// seq), adapted to carry a coroutine
// back-pointer instead of a callback.
type timerHeap struct {
	entries []*timerEntry
	nextSeq uint64
}

func (h *timerHeap) Len() int { return len(h.entries) }

func (h *timerHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.deadline.Equal(b.deadline) {
		return a.seq < b.seq
	}
	return a.deadline.Before(b.deadline)
}

func (h *timerHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *timerHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	h.entries = old[:n-1]
	return e
}

// insert adds a new pending deadline for owner and returns its handle.
func (h *timerHeap) insert(owner *Coroutine, deadline time.Time) *timerEntry {
	e := &timerEntry{deadline: deadline, seq: h.nextSeq, owner: owner}
	h.nextSeq++
	heap.Push(h, e)
	return e
}

// remove cancels a pending entry by handle. It is a no-op if the entry
// has already fired and been popped (index == -1).
func (h *timerHeap) remove(e *timerEntry) {
	if e.index < 0 || e.index >= len(h.entries) || h.entries[e.index] != e {
		return
	}
	heap.Remove(h, e.index)
	e.index = -1
}

// peek returns the earliest pending deadline without removing it, and
// false if the heap is empty.
func (h *timerHeap) peek() (time.Time, bool) {
	if len(h.entries) == 0 {
		return time.Time{}, false
	}
	return h.entries[0].deadline, true
}

// popExpired removes and returns every entry whose deadline is <= now,
// in expiry order (earliest first, ties broken by insertion order).
func (h *timerHeap) popExpired(now time.Time) []*timerEntry {
	var expired []*timerEntry
	for len(h.entries) > 0 && !h.entries[0].deadline.After(now) {
		expired = append(expired, heap.Pop(h).(*timerEntry))
	}
	return expired
}
