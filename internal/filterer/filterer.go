// Package filterer implements the filterer stage between frame_queue and
// sink_queue: a pluggable per-frame transform plus the task loop driving
// it. The chunked pass-through shape follows tg_playout_sink.go; logging
// uses livekit/protocol's structured Logger on this hot path rather than
// slog, which is reserved for service-level logs.
package filterer

import (
	"context"

	"github.com/livekit/protocol/logger"

	"framepipe/internal/media"
	"framepipe/internal/perrors"
	"framepipe/internal/queue"
)

// Filterer transforms a decoded frame before it reaches the sink. A nil
// returned frame (with nil error) drops the frame silently, the mechanism
// start(skip_ts) uses to discard frames before the requested start point.
type Filterer interface {
	Init() error
	Process(frame *media.Frame) (*media.Frame, error)
	Uninit()
}

// Task drives one Filterer between frame_queue and sink_queue.
type Task struct {
	log        logger.Logger
	filt       Filterer
	frameQueue *queue.Queue[*media.Frame]
	sinkQueue  *queue.Queue[*media.Frame]
}

// NewTask builds a filterer task wired between frame_queue and sink_queue.
func NewTask(log logger.Logger, filt Filterer, frameQueue, sinkQueue *queue.Queue[*media.Frame]) *Task {
	return &Task{log: log, filt: filt, frameQueue: frameQueue, sinkQueue: sinkQueue}
}

// Run executes the filterer loop until frame_queue's recv direction is
// poisoned, then poisons sink_queue's recv direction with the same code
// and frame_queue's send direction for symmetry.
func (t *Task) Run(ctx context.Context) error {
	if err := t.filt.Init(); err != nil {
		ferr := perrors.NewResourceError("filterer.init", err)
		t.sinkQueue.SetErrRecv(ferr)
		t.frameQueue.SetErrSend(ferr)
		return ferr
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

		frame, err := t.frameQueue.Recv()
		if err != nil {
			termErr = err
			break loop
		}

		out, ferr := t.filt.Process(frame)
		if ferr != nil {
			frame.Release()
			if !perrors.IsEOF(ferr) {
				t.log.Errorw("filter process failed", ferr)
			}
			termErr = ferr
			break loop
		}
		if out == nil {
			continue
		}
		if err := t.sinkQueue.Send(out); err != nil {
			out.Release()
			termErr = err
			break loop
		}
	}

	t.filt.Uninit()
	t.sinkQueue.SetErrRecv(termErr)
	t.frameQueue.SetErrSend(termErr)
	return termErr
}

// TrimFilterer drops frames whose pts precedes a configured start point,
// then passes every later frame through unchanged, until pts exceeds a
// configured upper bound, at which point it signals EOF so the pipeline
// winds down instead of running past the requested window. This is the
// default Filterer, grounding start(skip_ts)'s discard-leading-frames
// behavior and trim_duration's upper-bound cutoff.
type TrimFilterer struct {
	skipTS int64
	maxPTS int64 // 0 means unbounded
}

// NewTrimFilterer builds a filterer dropping frames with pts < skipTS and,
// once maxPTS > 0, ending the stream once pts > maxPTS.
func NewTrimFilterer(skipTS int64, maxPTS int64) *TrimFilterer {
	return &TrimFilterer{skipTS: skipTS, maxPTS: maxPTS}
}

// Init implements Filterer.
func (f *TrimFilterer) Init() error { return nil }

// Process implements Filterer.
func (f *TrimFilterer) Process(frame *media.Frame) (*media.Frame, error) {
	if frame.PTS < f.skipTS {
		frame.Release()
		return nil, nil
	}
	if f.maxPTS > 0 && frame.PTS > f.maxPTS {
		frame.Release()
		return nil, perrors.EOF
	}
	return frame, nil
}

// Uninit implements Filterer.
func (f *TrimFilterer) Uninit() {}

// SetSkipTS updates the trim point. Pipeline.Start calls it with its
// skipTS argument; Pipeline.Seek does not change it.
func (f *TrimFilterer) SetSkipTS(ts int64) {
	f.skipTS = ts
}

// SetMaxPTS updates the trim_duration upper bound; 0 disables it.
func (f *TrimFilterer) SetMaxPTS(ts int64) {
	f.maxPTS = ts
}
