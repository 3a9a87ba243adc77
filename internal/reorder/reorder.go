// Package reorder implements the decode-order-to-presentation-order frame
// reorder queue and the credit manager backpressure primitive used by
// asynchronous hardware decoders, modeled on decoder_vt.c's decode_callback
// and bufcount_context.
package reorder

import (
	"sync"

	"framepipe/internal/media"
)

// node is one entry of the sorted singly-linked reorder list.
type node struct {
	frame *media.Frame
	next  *node
}

// Queue holds decoded frames in presentation-timestamp order. It
// generalizes decode_callback's windowed reorder discipline: a hardware
// decoder may complete frames out of presentation order within a small
// window (B-frames), so each arrival is insertion-sorted into a singly
// linked list, and every node the walk passes over on its way to the new
// frame's position — i.e. every node that is now provably older than
// everything still ahead of it in the list — is popped off the front and
// returned for emission right there, rather than waiting for the window
// to fill to some fixed depth. maxDepth is kept only as a safety backstop
// against unbounded growth if a decoder never completes a frame at or
// past an already-queued pts.
//
// Queue is not safe for concurrent use. HWDecoder calls Insert from the
// backend's completion callbacks and DrainAll from Flush/Uninit, and
// serializes all of these calls under its own mutex.
type Queue struct {
	head     *node
	len      int
	maxDepth int
}

// NewQueue builds a reorder queue with the given backstop window depth.
func NewQueue(maxDepth int) *Queue {
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &Queue{maxDepth: maxDepth}
}

// Insert adds frame at its sorted position, evicting and returning, in
// ascending pts order, every node the insertion walk passed over — the
// decode_callback rule: walking the list from the head, each node whose
// successor's pts is not after the new frame's pts is no longer useful to
// keep waiting on and is popped immediately, before the walk continues.
func (q *Queue) Insert(frame *media.Frame) []*media.Frame {
	n := &node{frame: frame}

	if q.head == nil || frame.PTS < q.head.frame.PTS {
		n.next = q.head
		q.head = n
		q.len++
		return q.evictOverflow(nil)
	}

	var evicted []*media.Frame
	walker := q.head
	for {
		next := walker.next
		if next == nil || frame.PTS < next.frame.PTS {
			n.next = next
			walker.next = n
			q.len++
			break
		}
		evicted = append(evicted, walker.frame)
		q.head = next
		q.len--
		walker = next
	}
	return q.evictOverflow(evicted)
}

// evictOverflow force-pops from the front, beyond the skip-past rule
// above, if the window somehow still exceeds maxDepth.
func (q *Queue) evictOverflow(evicted []*media.Frame) []*media.Frame {
	for q.len > q.maxDepth {
		evicted = append(evicted, q.popFront())
	}
	return evicted
}

// Len reports the number of frames currently held.
func (q *Queue) Len() int {
	return q.len
}

// DrainAll removes and returns every held frame in presentation order,
// used when the decoder is flushing and must emit everything delayed.
func (q *Queue) DrainAll() []*media.Frame {
	out := make([]*media.Frame, 0, q.len)
	for q.head != nil {
		out = append(out, q.popFront())
	}
	return out
}

func (q *Queue) popFront() *media.Frame {
	n := q.head
	q.head = n.next
	q.len--
	n.next = nil
	return n.frame
}

// CreditManager is a dynamically resizable counting semaphore guarding how
// many decode surfaces (frame.Handle buffers) may be outstanding at once.
// Grounded on decoder_vt.c's bufcount_context: refcount starts at 1, for
// the decoder context's own reference, and UpdateRef(-1) by the owner
// drives it toward zero; the last holder to reach zero is responsible for
// tearing down the decoder.
//
// Unlike bufcount_context's fixed refmax, refmax here starts at 1 (only
// the context's own reference fits) and floats with UpdateMax: +1 per
// frame entering the reorder queue, -1 per frame leaving it (skip-past
// emission or a final drain), so refmax-1 equals the number of frames
// currently held in the reorder queue; frames already emitted downstream
// are counted by the refcount only.
// ceiling caps how high UpdateMax may push it, so a caller-configured
// surface budget still bounds memory even though the ceiling is dynamic.
type CreditManager struct {
	mu      sync.Mutex
	cond    *sync.Cond
	refcnt  int
	refmax  int
	ceiling int
}

// NewCreditManager builds a manager with refcount and refmax both starting
// at 1 (the owning decoder context's own reference), UpdateMax capped so
// refmax never exceeds ceiling+1. ceiling <= 0 means unbounded.
func NewCreditManager(ceiling int) *CreditManager {
	cm := &CreditManager{refcnt: 1, refmax: 1, ceiling: ceiling}
	cm.cond = sync.NewCond(&cm.mu)
	return cm
}

// UpdateMax adjusts refmax by delta, clamped to [1, ceiling+1] when a
// positive ceiling was configured, and wakes any blocked acquirer.
func (cm *CreditManager) UpdateMax(delta int) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	next := cm.refmax + delta
	if next < 1 {
		next = 1
	}
	if cm.ceiling > 0 && next > cm.ceiling+1 {
		next = cm.ceiling + 1
	}
	cm.refmax = next
	cm.cond.Broadcast()
}

// UpdateRef adjusts the refcount by delta. A positive delta blocks while
// the refcount is already at or above refmax (acquiring a credit); a
// negative delta releases credits unconditionally. It returns true when
// this call drove the refcount to exactly zero, signaling the caller that
// it holds the last reference and must finish tearing down the decoder.
func (cm *CreditManager) UpdateRef(delta int) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if delta > 0 {
		for cm.refcnt >= cm.refmax {
			cm.cond.Wait()
		}
	}
	cm.refcnt += delta
	cm.cond.Broadcast()
	return cm.refcnt == 0
}

// Refcount reports the current outstanding reference count.
func (cm *CreditManager) Refcount() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.refcnt
}

// Max reports the current ceiling (refmax).
func (cm *CreditManager) Max() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.refmax
}
