package journal

import "sync"

// queue is a growable FIFO ring shared by the recording side and the flush
// loop. It doubles when full up to limit; past limit the oldest entry is
// dropped. A limit of 0 means unbounded.
type queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	head   int
	count  int
	limit  int
	closed bool

	pushed  int64
	dropped int64
}

func newQueue[T any](initial, limit int) *queue[T] {
	if initial < 1 {
		initial = 1
	}
	if limit > 0 && initial > limit {
		initial = limit
	}
	q := &queue[T]{buf: make([]T, initial), limit: limit}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends v. It returns false once the queue is closed.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.count == len(q.buf) {
		if q.limit > 0 && q.count >= q.limit {
			q.popLocked()
			q.dropped++
		} else {
			q.grow()
		}
	}

	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
	q.pushed++
	q.cond.Signal()
	return true
}

// pop blocks until an entry is available. It returns false when the queue is
// closed and empty.
func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// drain removes up to max entries without blocking; max <= 0 takes all.
func (q *queue[T]) drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	for i := range out {
		out[i] = q.popLocked()
	}
	return out
}

func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *queue[T]) counters() (pushed, dropped int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed, q.dropped
}

// popLocked removes the head entry. Caller holds q.mu and count > 0.
func (q *queue[T]) popLocked() T {
	var zero T
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v
}

// grow doubles capacity, capped at limit. Caller holds q.mu.
func (q *queue[T]) grow() {
	size := len(q.buf) * 2
	if q.limit > 0 && size > q.limit {
		size = q.limit
	}
	buf := make([]T, size)
	n := copy(buf, q.buf[q.head:])
	if n < q.count {
		copy(buf[n:], q.buf[:q.count-n])
	}
	q.buf = buf
	q.head = 0
}
