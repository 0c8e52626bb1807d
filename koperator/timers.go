package koperator

import (
	"container/heap"

	"github.com/birdayz/kcogroup/kwindow"
)

// timer fires for one (key, window) at a point in time (Unix nanoseconds).
type timer[K comparable] struct {
	at     int64
	key    K
	window kwindow.Window
}

type queuedTimer[K comparable] struct {
	timer[K]
	seq uint64
}

type timerHeap[K comparable] []queuedTimer[K]

func (h timerHeap[K]) Len() int { return len(h) }

func (h timerHeap[K]) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap[K]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap[K]) Push(x any) { *h = append(*h, x.(queuedTimer[K])) }

func (h *timerHeap[K]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// timerQueue holds the timers of one time domain. Registering an already
// pending timer is a no-op. Deleted timers are dropped lazily when they
// reach the head of the queue.
type timerQueue[K comparable] struct {
	heap    timerHeap[K]
	pending map[timer[K]]struct{}
	seq     uint64
}

func newTimerQueue[K comparable]() *timerQueue[K] {
	return &timerQueue[K]{pending: make(map[timer[K]]struct{})}
}

func (q *timerQueue[K]) register(t timer[K]) {
	if _, ok := q.pending[t]; ok {
		return
	}
	q.pending[t] = struct{}{}
	q.seq++
	heap.Push(&q.heap, queuedTimer[K]{timer: t, seq: q.seq})
}

func (q *timerQueue[K]) delete(t timer[K]) {
	delete(q.pending, t)
}

// popUntil removes and returns the earliest pending timer due at or before
// at.
func (q *timerQueue[K]) popUntil(at int64) (timer[K], bool) {
	for q.heap.Len() > 0 && q.heap[0].at <= at {
		t := heap.Pop(&q.heap).(queuedTimer[K]).timer
		if _, ok := q.pending[t]; ok {
			delete(q.pending, t)
			return t, true
		}
	}
	return timer[K]{}, false
}

func (q *timerQueue[K]) len() int {
	return len(q.pending)
}

func (q *timerQueue[K]) reset() {
	q.heap = nil
	clear(q.pending)
}
