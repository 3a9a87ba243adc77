// Package queue implements a bounded, thread-safe message queue: blocking
// send, blocking recv, non-blocking flush with a per-element destructor,
// and independent bidirectional poisoning.
//
// Poisoning semantics are modeled on av_thread_message_queue's
// set_err_send/set_err_recv (async.c): each direction's poison governs
// only its own operation. set_err_send makes future Send calls fail
// immediately (no blocking on space); set_err_recv makes Recv drain
// whatever is already queued, FIFO, and only once empty does it return
// the stored code instead of blocking.
package queue

import (
	"sync"

	"github.com/gammazero/deque"
)

// Queue is a bounded FIFO of T backed by a gammazero/deque ring buffer.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  sync.Cond
	notEmpty sync.Cond

	buf      deque.Deque[T]
	capacity int
	destroy  func(T)

	errSend error
	errRecv error
}

// New allocates a queue with the given capacity (must be >= 1) and element
// destructor, invoked by Flush and Free for any item that never reaches
// its consumer. Poisoning a direction does not destroy queued items.
func New[T any](capacity int, destroy func(T)) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue[T]{capacity: capacity, destroy: destroy}
	q.notFull.L = &q.mu
	q.notEmpty.L = &q.mu
	return q
}

// Send blocks while the queue is full, then appends item. It fails
// immediately with the stored code if the send direction has been
// poisoned, whether or not there is room.
func (q *Queue[T]) Send(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.errSend != nil {
			return q.errSend
		}
		if q.buf.Len() < q.capacity {
			break
		}
		q.notFull.Wait()
	}
	q.buf.PushBack(item)
	q.notEmpty.Signal()
	return nil
}

// Recv blocks while the queue is empty, then pops and returns the oldest
// item. Once the queue drains to empty with the recv direction poisoned,
// it returns the stored terminal code instead of blocking further.
func (q *Queue[T]) Recv() (item T, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.buf.Len() == 0 {
		if q.errRecv != nil {
			var zero T
			return zero, q.errRecv
		}
		q.notEmpty.Wait()
	}
	item = q.buf.PopFront()
	q.notFull.Signal()
	return item, nil
}

// Flush drops all queued items, invoking the destructor on each, without
// touching poison state. It unblocks a Send waiting for space.
func (q *Queue[T]) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainLocked()
	q.notFull.Broadcast()
}

// Drain removes and returns every currently queued item, FIFO order,
// without invoking the destructor — the caller takes ownership of
// deciding what happens to each item. The seek-boundary frame_queue flush
// in internal/decoder uses it and releases every drained frame itself.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, 0, q.buf.Len())
	for q.buf.Len() > 0 {
		out = append(out, q.buf.PopFront())
	}
	q.notFull.Broadcast()
	return out
}

func (q *Queue[T]) drainLocked() {
	for q.buf.Len() > 0 {
		item := q.buf.PopFront()
		if q.destroy != nil {
			q.destroy(item)
		}
	}
}

// SetErrSend poisons the send direction: future Send calls return err
// immediately. Passing a non-nil EOF-like sentinel is the normal
// end-of-stream terminator; any other error is treated as a fault (§7).
func (q *Queue[T]) SetErrSend(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errSend = err
	q.notFull.Broadcast()
}

// SetErrRecv poisons the recv direction: once the queue drains to empty,
// future Recv calls return err instead of blocking.
func (q *Queue[T]) SetErrRecv(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errRecv = err
	q.notEmpty.Broadcast()
}

// Len reports the current number of queued items (always in [0, capacity]).
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Len()
}

// Free flushes any remaining items and releases the backing buffer.
func (q *Queue[T]) Free() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainLocked()
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}
