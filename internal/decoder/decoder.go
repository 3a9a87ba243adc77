// Package decoder implements the decoder task: the recv loop that pulls
// tagged messages off pkt_queue, drives a pluggable Decoder implementation,
// and applies the seek-boundary frame caching/pts-rewrite discipline
// before handing frames to frame_queue. Modeled on async.c's
// decoder_thread and async_queue_frame.
package decoder

import (
	"context"
	"log/slog"

	"framepipe/internal/media"
	"framepipe/internal/perrors"
	"framepipe/internal/queue"
)

// EmitFunc is how a Decoder hands a decoded frame back to the task that
// drives it, to be placed (directly, or via a reorder queue the Decoder
// manages itself) onto frame_queue.
type EmitFunc func(frame *media.Frame) error

// Decoder is the pluggable codec implementation the decoder task drives.
// PushPacket may call emit zero or more times, synchronously or from
// another goroutine the implementation manages itself (e.g. a hardware
// decoder's own completion callback) — the task makes no assumption about
// decode latency, matching the original's tolerance for async platform
// decoders like VideoToolbox.
type Decoder interface {
	// Init prepares the decoder, retaining emit for later frame delivery.
	Init(emit EmitFunc) error
	// PushPacket submits one packet for decoding. A nil-data packet is the
	// EOF signal used to drain delayed frames (mirrors sending an empty
	// AVPacket to an avcodec decoder).
	PushPacket(pkt *media.Packet) error
	// Flush finishes any in-flight decodes and emits all delayed frames.
	Flush() error
	// Uninit releases decoder resources. Called exactly once after a
	// successful Init; not called when Init fails.
	Uninit()
}

// Task drives one decoder instance: the recv loop of decoder_thread,
// handling SEEK/DATA messages from pkt_queue and the queue_frame emission
// discipline around seek boundaries.
type Task struct {
	log        *slog.Logger
	dec        Decoder
	pktQueue   *queue.Queue[media.Message]
	frameQueue *queue.Queue[*media.Frame]
	sourceTB   media.TimeBase

	tmpFrame      *media.Frame
	hasSeekTarget bool
	seekTarget    int64
}

// NewTask builds a decoder task wired between pkt_queue and frame_queue.
// sourceTB is the native time base of timestamps the Decoder attaches to
// emitted frames (the §4.1 register_decoder timebase argument); every
// frame is rescaled into microseconds before the seek-boundary comparison
// and before it reaches frame_queue.
func NewTask(log *slog.Logger, dec Decoder, pktQueue *queue.Queue[media.Message], frameQueue *queue.Queue[*media.Frame], sourceTB media.TimeBase) *Task {
	if sourceTB.Num == 0 || sourceTB.Den == 0 {
		sourceTB = media.Microsecond
	}
	return &Task{log: log, dec: dec, pktQueue: pktQueue, frameQueue: frameQueue, sourceTB: sourceTB}
}

// Run executes the decoder loop until pkt_queue's recv direction is
// poisoned (EOF or an upstream error), then tears down and poisons
// frame_queue's recv direction with the same terminal code, and
// pkt_queue's send direction for symmetry. It returns the code it
// propagated downstream.
func (t *Task) Run(ctx context.Context) error {
	if err := t.dec.Init(t.emit); err != nil {
		derr := perrors.NewResourceError("decoder.init", err)
		t.frameQueue.SetErrRecv(derr)
		t.pktQueue.SetErrSend(derr)
		return derr
	}

	var termErr error
loop:
	for {
		select {
		case <-ctx.Done():
			termErr = ctx.Err()
			break loop
		default:
		}

		msg, err := t.pktQueue.Recv()
		if err != nil {
			termErr = err
			break loop
		}

		switch msg.Type {
		case media.MsgSeek:
			t.handleSeek(msg.SeekTS)
		case media.MsgData:
			if perr := t.dec.PushPacket(msg.Packet); perr != nil {
				msg.Packet.Release()
				termErr = perr
				break loop
			}
		}
	}

	if ferr := t.dec.Flush(); ferr != nil {
		t.log.Warn("decoder flush during teardown failed", "error", ferr)
	}
	t.dec.Uninit()
	if t.tmpFrame != nil {
		t.tmpFrame.Release()
		t.tmpFrame = nil
	}

	t.frameQueue.SetErrRecv(termErr)
	t.pktQueue.SetErrSend(termErr)
	return termErr
}

// handleSeek flushes whatever is already queued in frame_queue — none of it
// can be trusted to fall on the right side of the new boundary — and arms
// the live seek_request the emit callback compares every subsequent frame
// against. It does not touch any already-cached tmpFrame: that is emit's
// job, driven by the ts_norm(f) < seek_request comparison on the next
// decoded frame, exactly as decoder_thread's MSG_SEEK branch only flushes
// frames_queue and sets seek_request, leaving tmp_frame for
// async_queue_frame to resolve.
func (t *Task) handleSeek(ts int64) {
	drained := t.frameQueue.Drain()
	for _, f := range drained {
		f.Release()
	}
	t.hasSeekTarget = true
	t.seekTarget = ts
}

// emit is the EmitFunc passed to the Decoder. It first rescales the
// frame's source-timebase pts into the canonical microsecond base, then
// applies async_queue_frame's cache-vs-emit rule: while a seek request R is
// live, every frame with ts_norm(f) < R is held as the single cached
// tmpFrame (replacing whatever was cached before, since only the most
// recent pre-boundary frame is worth keeping) and never reaches
// frame_queue. The first frame with ts_norm(f) >= R clears the pending
// request: if a frame was cached, it is sent first unmodified (it is the
// nearest frame before the target, kept as a fallback the consumer can
// show while decode catches up) and the new frame follows with its own
// pts; if nothing was cached (no frame before R was decoded since the
// seek), this frame's pts is rewritten to R so the first delivered frame
// lands exactly on the requested target.
func (t *Task) emit(frame *media.Frame) error {
	frame.PTS = media.ToMicros(frame.PTS, t.sourceTB)

	if t.hasSeekTarget && frame.PTS < t.seekTarget {
		if t.tmpFrame != nil {
			t.tmpFrame.Release()
		}
		t.tmpFrame = frame
		return nil
	}

	if t.hasSeekTarget {
		t.hasSeekTarget = false
		if t.tmpFrame == nil && t.seekTarget > 0 {
			frame.PTS = t.seekTarget
		}
	}

	if t.tmpFrame != nil {
		cached := t.tmpFrame
		t.tmpFrame = nil
		if err := t.frameQueue.Send(cached); err != nil {
			cached.Release()
			frame.Release()
			return err
		}
	}

	return t.frameQueue.Send(frame)
}
