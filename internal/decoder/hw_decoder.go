package decoder

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"framepipe/internal/media"
	"framepipe/internal/perrors"
	"framepipe/internal/reorder"
)

// maxInFlight is the hard cap on submitted-but-not-yet-completed decodes
// for an async hardware decoder, independent of the credit manager's
// surface ceiling. Grounded on decoder_vt.c's vtdec_push_packet, which
// blocks while nb_queued >= 3.
const maxInFlight = 3

// AsyncCodec is the shape a hardware/async codec backend implements:
// SubmitAsync hands off a packet for decoding and returns immediately; the
// backend calls back into the owning HWDecoder's onComplete (wired at
// construction) from whatever thread the platform completion callback
// runs on, exactly like VTDecompressionSessionDecodeFrame's callback.
type AsyncCodec interface {
	Open(onComplete func(pts int64, handle any, release func(), err error)) error
	SubmitAsync(pkt *media.Packet) error
	FinishDelayedFrames() error
	Close()
}

// HWDecoder is the Decoder implementation for async, reference-counted
// hardware backends: a reorder queue turns decode-completion order back
// into presentation order, and a credit manager throttles how many
// decoded surfaces may be outstanding at once, both grounded on
// decoder_vt.c (decode_callback / bufcount_context) and generalized behind
// the AsyncCodec interface instead of a single named platform API.
type HWDecoder struct {
	codec      AsyncCodec
	reorderMax int
	surfaceMax int

	mu         sync.Mutex
	nbQueued   int
	notBusy    *sync.Cond
	inFlight   *semaphore.Weighted
	reorderQ   *reorder.Queue
	credit     *reorder.CreditManager
	emit       EmitFunc
	lastErr    error
}

// NewHWDecoder builds a hardware decoder variant with the given reorder
// window backstop depth and surface credit ceiling. surfaceMax no longer
// fixes the credit manager's refmax outright — refmax starts at 1 and
// floats with the reorder queue's live frame count — but it still bounds
// how high that ceiling may be pushed.
func NewHWDecoder(codec AsyncCodec, reorderMax, surfaceMax int) *HWDecoder {
	d := &HWDecoder{
		codec:      codec,
		reorderMax: reorderMax,
		surfaceMax: surfaceMax,
		inFlight:   semaphore.NewWeighted(maxInFlight),
		reorderQ:   reorder.NewQueue(reorderMax),
		credit:     reorder.NewCreditManager(surfaceMax),
	}
	d.notBusy = sync.NewCond(&d.mu)
	return d
}

// Credit returns the decoder's credit manager, for tests and diagnostics
// that need to observe the surface ceiling directly.
func (d *HWDecoder) Credit() *reorder.CreditManager {
	return d.credit
}

// Init implements Decoder.
func (d *HWDecoder) Init(emit EmitFunc) error {
	d.emit = emit
	return d.codec.Open(d.onComplete)
}

// PushPacket implements Decoder. It blocks while three decodes are already
// in flight (matching vtdec_push_packet), then submits asynchronously. A
// packet with no data is the end-of-stream marker: it asks the backend to
// finish delayed frames and returns perrors.EOF.
func (d *HWDecoder) PushPacket(pkt *media.Packet) error {
	if pkt == nil || len(pkt.Data) == 0 {
		if err := d.codec.FinishDelayedFrames(); err != nil {
			return perrors.NewDecodeError("hwdecoder.push_packet", perrors.CategoryUnknown, err)
		}
		return perrors.EOF
	}

	if err := d.inFlight.Acquire(context.Background(), 1); err != nil {
		return perrors.NewResourceError("hwdecoder.push_packet", err)
	}

	d.mu.Lock()
	d.nbQueued++
	d.mu.Unlock()

	if err := d.codec.SubmitAsync(pkt); err != nil {
		d.inFlight.Release(1)
		d.mu.Lock()
		d.nbQueued--
		d.mu.Unlock()
		return perrors.NewDecodeError("hwdecoder.push_packet", perrors.CategoryUnknown, err)
	}
	return nil
}

// onComplete is the AsyncCodec's completion callback: insertion-sort the
// newly decoded surface into presentation order, emit anything the
// reorder window evicts, and release one in-flight slot.
func (d *HWDecoder) onComplete(pts int64, handle any, release func(), err error) {
	defer d.inFlight.Release(1)

	d.mu.Lock()
	d.nbQueued--
	d.mu.Unlock()

	if err != nil {
		d.mu.Lock()
		d.lastErr = err
		d.mu.Unlock()
		if release != nil {
			release()
		}
		return
	}

	frame := media.NewHandleFrame(pts, handle, func() {
		release()
		d.credit.UpdateRef(-1)
	})

	d.mu.Lock()
	evicted := d.reorderQ.Insert(frame)
	d.mu.Unlock()

	// One credit slot for the frame just inserted, one less per frame the
	// insertion walk evicted out from under it — refmax-1 tracks how many
	// frames the reorder queue holds (up to the configured ceiling); frames
	// already handed downstream are counted by the refcount, not by refmax.
	d.credit.UpdateMax(1)
	for range evicted {
		d.credit.UpdateMax(-1)
	}

	// Hand off every evicted frame before acquiring the new frame's own
	// reference, exactly as decode_callback pushes each evicted node to
	// frames_queue inline during the walk and only calls
	// bufcount_update_ref(+1) for the new frame at the very end. Acquiring
	// first would self-deadlock against a ceiling that starts at 1: the
	// room for this frame often comes from the very frames being evicted
	// alongside it.
	for _, f := range evicted {
		if err := d.emit(f); err != nil {
			f.Release()
		}
	}

	d.credit.UpdateRef(1)
}

// Flush implements Decoder: waits for in-flight decodes to finish, tells
// the backend to finish delayed frames, then emits everything remaining
// in the reorder window in presentation order (decoder_vt.c's vtdec_flush).
func (d *HWDecoder) Flush() error {
	for i := 0; i < maxInFlight; i++ {
		if err := d.inFlight.Acquire(context.Background(), 1); err != nil {
			return perrors.NewResourceError("hwdecoder.flush", err)
		}
	}
	defer d.inFlight.Release(maxInFlight)

	if err := d.codec.FinishDelayedFrames(); err != nil {
		return perrors.NewDecodeError("hwdecoder.flush", perrors.CategoryUnknown, err)
	}

	d.mu.Lock()
	remaining := d.reorderQ.DrainAll()
	lastErr := d.lastErr
	d.mu.Unlock()

	for range remaining {
		d.credit.UpdateMax(-1)
	}
	for _, f := range remaining {
		if err := d.emit(f); err != nil {
			f.Release()
		}
	}
	return lastErr
}

// Uninit implements Decoder: drops any still-queued frames and releases
// the decoder context's own credit reference, closing the backend.
func (d *HWDecoder) Uninit() {
	d.mu.Lock()
	remaining := d.reorderQ.DrainAll()
	d.mu.Unlock()
	for _, f := range remaining {
		d.credit.UpdateMax(-1)
		f.Release()
	}
	d.credit.UpdateRef(-1)
	d.codec.Close()
}
