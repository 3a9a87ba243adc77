// Package seek implements a single-slot seek request channel: the
// controller writes a target timestamp, coalescing with any pending,
// not-yet-consumed request; the reader polls and clears it once per loop
// iteration. Modeled on async_reader_seek's seek_req field guarded by a
// plain mutex — no condvar is needed since the reader polls rather than
// blocks on it (see DESIGN.md).
package seek

import "sync"

// Slot holds at most one pending seek target in microseconds.
type Slot struct {
	mu      sync.Mutex
	pending bool
	target  int64
}

// Request records ts as the pending seek target, overwriting (coalescing
// with) any request not yet consumed by Poll.
func (s *Slot) Request(ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = true
	s.target = ts
}

// Poll returns the pending seek target and clears the slot, or ok=false if
// no request is pending.
func (s *Slot) Poll() (ts int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return 0, false
	}
	s.pending = false
	return s.target, true
}
