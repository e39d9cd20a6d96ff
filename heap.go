package corttimer

import "container/heap"

// bucket aggregates every Waiter sharing the same deadline into one node of
// the timer heap, so that N waiters with an identical timeout cost one heap
// operation rather than N. Membership within a bucket is an intrusive FIFO
// list threaded through the waiters themselves, not a slice, so Remove is
// O(1) given the waiter pointer.
type bucket struct {
	deadlineMs uint64
	head, tail *Waiter
	count      int
	heapIndex  int // maintained by bucketHeap.Swap, used for O(log n) Remove
}

func (b *bucket) pushBack(w *Waiter) {
	w.bucket = b
	w.prevInBucket = b.tail
	w.nextInBucket = nil
	if b.tail != nil {
		b.tail.nextInBucket = w
	} else {
		b.head = w
	}
	b.tail = w
	b.count++
}

func (b *bucket) unlink(w *Waiter) {
	if w.prevInBucket != nil {
		w.prevInBucket.nextInBucket = w.nextInBucket
	} else {
		b.head = w.nextInBucket
	}
	if w.nextInBucket != nil {
		w.nextInBucket.prevInBucket = w.prevInBucket
	} else {
		b.tail = w.prevInBucket
	}
	w.prevInBucket = nil
	w.nextInBucket = nil
	w.bucket = nil
	b.count--
}

// bucketHeap implements container/heap.Interface, keeping buckets ordered by
// deadline. It is never used directly; timerHeap wraps it together with the
// deadline index needed for O(1) aggregation lookups.
type bucketHeap []*bucket

func (h bucketHeap) Len() int            { return len(h) }
func (h bucketHeap) Less(i, j int) bool  { return h[i].deadlineMs < h[j].deadlineMs }
func (h bucketHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *bucketHeap) Push(x any) {
	b := x.(*bucket)
	b.heapIndex = len(*h)
	*h = append(*h, b)
}
func (h *bucketHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	b.heapIndex = -1
	return b
}

// timerHeap is the Timer Heap component: a deadline-bucketed min-heap over
// waiters armed with a timeout. Add/Remove/PeekDeadline/DrainExpired are the
// only contract methods a Waiter or Driver calls.
type timerHeap struct {
	h     bucketHeap
	index map[uint64]*bucket
}

func newTimerHeap() timerHeap {
	return timerHeap{index: make(map[uint64]*bucket)}
}

// Add arms w for deadlineMs, creating or reusing the bucket for that exact
// millisecond. A Waiter already present in a bucket must never be passed to
// Add again without first being removed — that is a program defect, not a
// benign race, because it would corrupt the intrusive list.
func (t *timerHeap) Add(w *Waiter, deadlineMs uint64) {
	if w.bucket != nil {
		panicInvariant("timerHeap.Add called on a waiter already armed with a timeout")
	}
	b, ok := t.index[deadlineMs]
	if !ok {
		b = &bucket{deadlineMs: deadlineMs}
		t.index[deadlineMs] = b
		heap.Push(&t.h, b)
	}
	b.pushBack(w)
}

// Remove detaches w from whatever bucket it currently occupies. Removing a
// waiter with no armed timeout is a benign no-op.
func (t *timerHeap) Remove(w *Waiter) {
	b := w.bucket
	if b == nil {
		return
	}
	b.unlink(w)
	if b.count == 0 {
		delete(t.index, b.deadlineMs)
		heap.Remove(&t.h, b.heapIndex)
	}
}

// PeekDeadline reports the nearest deadline across every armed waiter, or
// ok=false if the heap is empty.
func (t *timerHeap) PeekDeadline() (deadlineMs uint64, ok bool) {
	if len(t.h) == 0 {
		return 0, false
	}
	return t.h[0].deadlineMs, true
}

// expiredWaiter pairs a drained waiter with the deadline its bucket had, so
// callers can still compute fire-time jitter after the waiter's bucket link
// has been cleared.
type expiredWaiter struct {
	waiter     *Waiter
	deadlineMs uint64
}

// DrainExpired removes and returns every waiter whose deadline is <= nowMs,
// in deadline order and FIFO order within a shared deadline.
func (t *timerHeap) DrainExpired(nowMs uint64) []expiredWaiter {
	var expired []expiredWaiter
	for len(t.h) > 0 && t.h[0].deadlineMs <= nowMs {
		b := heap.Pop(&t.h).(*bucket)
		delete(t.index, b.deadlineMs)
		for w := b.head; w != nil; {
			next := w.nextInBucket
			w.prevInBucket = nil
			w.nextInBucket = nil
			w.bucket = nil
			expired = append(expired, expiredWaiter{waiter: w, deadlineMs: b.deadlineMs})
			w = next
		}
	}
	return expired
}

// drainAll empties the heap unconditionally, regardless of deadline, for use
// by Driver.Destroy, returning only the waiters.
func (t *timerHeap) drainAll() []*Waiter {
	expired := t.DrainExpired(^uint64(0))
	waiters := make([]*Waiter, len(expired))
	for i, e := range expired {
		waiters[i] = e.waiter
	}
	return waiters
}

func (t *timerHeap) len() int {
	return len(t.h)
}
