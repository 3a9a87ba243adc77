// Package pipeline wires reader, decoder, and filterer tasks into the
// running reader -> decoder -> filterer -> sink chain and exposes the
// controller operations: alloc/register_*/start/seek/pop_frame/stop/
// wait/free. The lifecycle shape follows MediaBridge
// (bridge/media_bridge.go): a context/cancel pair per run generation, a
// sync.WaitGroup tracking the fixed set of pipeline goroutines, and
// frostbyte73/core.Fuse to broadcast a generation's cancellation the way
// LiveKit-derived services commonly do. Stop's idempotency comes from the
// started flag, not from the Fuse.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/frostbyte73/core"
	"github.com/google/uuid"
	lklogger "github.com/livekit/protocol/logger"

	"framepipe/internal/config"
	"framepipe/internal/decoder"
	"framepipe/internal/filterer"
	"framepipe/internal/media"
	"framepipe/internal/perrors"
	"framepipe/internal/queue"
	"framepipe/internal/reader"
	"framepipe/internal/seek"
)

// ErrAlreadyStarted is returned by Start when the pipeline is already
// running; start is idempotent in the sense that a second call is
// rejected rather than spawning a duplicate set of goroutines.
var ErrAlreadyStarted = errors.New("framepipe: pipeline already started")

// ErrNotRegistered is returned by Start if a required stage was never
// registered.
var ErrNotRegistered = errors.New("framepipe: source, decoder, and filterer must be registered before start")

// Pipeline is one reader/decoder/filterer/sink chain.
type Pipeline struct {
	ID  uuid.UUID
	log *slog.Logger
	cfg config.Config

	pktQueue   *queue.Queue[media.Message]
	frameQueue *queue.Queue[*media.Frame]
	sinkQueue  *queue.Queue[*media.Frame]
	seekSlot   seek.Slot

	src      reader.Source
	dec      decoder.Decoder
	decTB    media.TimeBase
	filt     filterer.Filterer

	mu      sync.Mutex
	started bool
	fuse    core.Fuse
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New allocates an unstarted pipeline (the async_alloc equivalent).
func New(log *slog.Logger, cfg config.Config) *Pipeline {
	id := uuid.New()
	if log == nil {
		log = slog.Default()
	}
	log = log.With("pipeline_id", id.String())

	destroyMsg := func(m media.Message) { m.Release() }
	destroyFrame := func(f *media.Frame) { f.Release() }

	return &Pipeline{
		ID:         id,
		log:        log,
		cfg:        cfg,
		pktQueue:   queue.New(cfg.MaxPacketsQueue, destroyMsg),
		frameQueue: queue.New(cfg.MaxFramesQueue, destroyFrame),
		sinkQueue:  queue.New(cfg.SinkQueueCapacity, destroyFrame),
	}
}

// RegisterSource attaches the packet source (async_register_reader).
func (p *Pipeline) RegisterSource(src reader.Source) { p.src = src }

// RegisterDecoder attaches the codec and the native time base its emitted
// frame timestamps are expressed in (async_register_decoder's timebase
// argument), so the decoder task can rescale to microseconds before the
// seek-boundary comparison.
func (p *Pipeline) RegisterDecoder(dec decoder.Decoder, timeBase media.TimeBase) {
	p.dec = dec
	p.decTB = timeBase
}

// RegisterFilterer attaches the frame filter (async_register_filterer).
func (p *Pipeline) RegisterFilterer(filt filterer.Filterer) { p.filt = filt }

// Start spawns the reader, decoder, and filterer goroutines. When the
// registered filterer is a *filterer.TrimFilterer, frames with pts before
// skipTS are discarded; other filterers never see skipTS. It is
// idempotent: a second call before Stop returns ErrAlreadyStarted without
// spawning another generation.
func (p *Pipeline) Start(skipTS int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if p.src == nil || p.dec == nil || p.filt == nil {
		return ErrNotRegistered
	}

	if trim, ok := p.filt.(*filterer.TrimFilterer); ok {
		trim.SetSkipTS(skipTS)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.fuse = core.NewFuse()
	p.started = true

	go func() {
		<-p.fuse.Watch()
		cancel()
	}()

	readerLog := p.log.With("stage", "reader")
	decoderLog := p.log.With("stage", "decoder")
	filtLog := lklogger.GetLogger().WithValues("pipeline_id", p.ID.String(), "stage", "filterer")

	p.wg.Add(3)
	go func() {
		defer p.wg.Done()
		t := reader.NewTask(readerLog, p.src, p.pktQueue, &p.seekSlot, p.cfg.EagainRetryDelay)
		if err := t.Run(ctx); err != nil && !perrors.IsEOF(err) {
			readerLog.Warn("reader task ended with error", "error", err)
		}
	}()
	go func() {
		defer p.wg.Done()
		t := decoder.NewTask(decoderLog, p.dec, p.pktQueue, p.frameQueue, p.decTB)
		if err := t.Run(ctx); err != nil && !perrors.IsEOF(err) {
			decoderLog.Warn("decoder task ended with error", "error", err)
		}
	}()
	go func() {
		defer p.wg.Done()
		t := filterer.NewTask(filtLog, p.filt, p.frameQueue, p.sinkQueue)
		if err := t.Run(ctx); err != nil && !perrors.IsEOF(err) {
			filtLog.Warnw("filterer task ended with error", err)
		}
	}()

	return nil
}

// Seek requests a coalescing seek to ts (microseconds); the reader picks
// it up on its next loop iteration.
func (p *Pipeline) Seek(ts int64) {
	p.seekSlot.Request(ts)
}

// PopFrame blocks for the next presentation-ordered frame, or returns the
// terminal error once the pipeline has drained and stopped.
func (p *Pipeline) PopFrame() (*media.Frame, error) {
	frame, err := p.sinkQueue.Recv()
	if err != nil {
		// Defensive re-poison of the send direction, mirroring
		// async_pop_frame's teardown: ensure a filterer that is still
		// alive also observes the failure on its next send.
		p.sinkQueue.SetErrSend(err)
		return nil, err
	}
	return frame, nil
}

// Stop poisons every queue in both directions with EOF, downstream first
// (sink_queue, then frame_queue, then pkt_queue), flushing each so no
// goroutine can remain blocked on a Send or Recv regardless of where it
// currently sits in the chain, then breaks the generation's Fuse so every
// stage's own select also observes cancellation. Safe to call multiple
// times or before Start.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	fuse := p.fuse
	p.mu.Unlock()

	p.sinkQueue.SetErrSend(perrors.EOF)
	p.sinkQueue.SetErrRecv(perrors.EOF)
	p.sinkQueue.Flush()

	p.frameQueue.SetErrSend(perrors.EOF)
	p.frameQueue.SetErrRecv(perrors.EOF)
	p.frameQueue.Flush()

	p.pktQueue.SetErrSend(perrors.EOF)
	p.pktQueue.SetErrRecv(perrors.EOF)
	p.pktQueue.Flush()

	fuse.Break()
}

// Wait blocks until all three stage goroutines of the current generation
// have exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Free stops and waits for the pipeline, then releases anything left in
// its queues.
func (p *Pipeline) Free() {
	p.Stop()
	p.Wait()
	p.pktQueue.Flush()
	p.frameQueue.Flush()
	p.sinkQueue.Flush()
}
