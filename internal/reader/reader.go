// Package reader implements the reader task: it polls the seek slot once
// per loop iteration, injects a SEEK message ahead of forwarding packets
// pulled from the source, and handles the EAGAIN/sleep retry discipline.
// Modeled on async.c's reader_thread.
package reader

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"framepipe/internal/media"
	"framepipe/internal/queue"
	"framepipe/internal/seek"
)

// ErrAgain signals the Source has no packet ready right now; the reader
// task sleeps for the configured retry delay and polls again, mirroring
// the original's EAGAIN handling around pull_packet_cb.
var ErrAgain = errors.New("framepipe: source not ready (eagain)")

// IsAgain reports whether err is (or wraps) the ErrAgain sentinel.
func IsAgain(err error) bool {
	return errors.Is(err, ErrAgain)
}

// Source is the pluggable packet source the reader task pulls from.
type Source interface {
	// Seek repositions the source to ts (microseconds). Called once per
	// coalesced seek request before the next Pull.
	Seek(ts int64) error
	// Pull returns the next packet, ErrAgain if none is ready yet, or
	// perrors.EOF at end of stream.
	Pull() (*media.Packet, error)
	Close()
}

// Task drives one Source instance, feeding pkt_queue.
type Task struct {
	log        *slog.Logger
	src        Source
	pktQueue   *queue.Queue[media.Message]
	seekSlot   *seek.Slot
	retryDelay time.Duration
}

// NewTask builds a reader task wired to pkt_queue and the pipeline's seek
// slot, with the given EAGAIN retry sleep duration.
func NewTask(log *slog.Logger, src Source, pktQueue *queue.Queue[media.Message], seekSlot *seek.Slot, retryDelay time.Duration) *Task {
	if retryDelay <= 0 {
		retryDelay = 10 * time.Millisecond
	}
	return &Task{log: log, src: src, pktQueue: pktQueue, seekSlot: seekSlot, retryDelay: retryDelay}
}

// Run executes the reader loop until the source errors or is canceled,
// then poisons pkt_queue's recv direction with the terminal code so the
// decoder drains and stops in turn.
func (t *Task) Run(ctx context.Context) error {
	var termErr error
loop:
	for {
		select {
		case <-ctx.Done():
			termErr = ctx.Err()
			break loop
		default:
		}

		if ts, ok := t.seekSlot.Poll(); ok {
			// Flush stale packets ahead of the seek marker so the decoder
			// never decodes pre-seek data after it (§5).
			t.pktQueue.Flush()
			if err := t.pktQueue.Send(media.SeekMessage(ts)); err != nil {
				termErr = err
				break loop
			}
			if err := t.src.Seek(ts); err != nil {
				t.log.Warn("source seek failed", "error", err, "target_us", ts)
				termErr = err
				break loop
			}
			continue
		}

		pkt, err := t.src.Pull()
		switch {
		case err == nil:
			if err := t.pktQueue.Send(media.DataMessage(pkt)); err != nil {
				pkt.Release()
				termErr = err
				break loop
			}
		case IsAgain(err):
			select {
			case <-ctx.Done():
				termErr = ctx.Err()
				break loop
			case <-time.After(t.retryDelay):
			}
		default:
			termErr = err
			break loop
		}
	}

	t.src.Close()
	t.pktQueue.SetErrRecv(termErr)
	return termErr
}
