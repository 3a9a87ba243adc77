package decoder_test

import (
	"sync"
	"testing"
	"time"

	"framepipe/internal/decoder"
	"framepipe/internal/media"
)

// fakeAsyncCodec simulates a platform decoder that completes submissions
// out of decode order, from a goroutine standing in for the platform's own
// completion thread.
type fakeAsyncCodec struct {
	mu         sync.Mutex
	onComplete func(pts int64, handle any, release func(), err error)
	closed     bool
	released   int
}

func (c *fakeAsyncCodec) Open(onComplete func(pts int64, handle any, release func(), err error)) error {
	c.onComplete = onComplete
	return nil
}

func (c *fakeAsyncCodec) SubmitAsync(pkt *media.Packet) error {
	pts := pkt.PTS
	go func() {
		time.Sleep(time.Millisecond)
		c.onComplete(pts, pts, func() {
			c.mu.Lock()
			c.released++
			c.mu.Unlock()
		}, nil)
	}()
	return nil
}

func (c *fakeAsyncCodec) FinishDelayedFrames() error { return nil }
func (c *fakeAsyncCodec) Close()                     { c.closed = true }

func pushHW(t *testing.T, d *decoder.HWDecoder, pts int64) {
	t.Helper()
	pkt := media.NewPacket([]byte{0}, pts, media.Microsecond, false)
	if err := d.PushPacket(pkt); err != nil {
		t.Fatalf("push(%d): %v", pts, err)
	}
}

func TestHWDecoderReordersToPresentationOrder(t *testing.T) {
	codec := &fakeAsyncCodec{}
	d := decoder.NewHWDecoder(codec, 4, 4)

	var mu sync.Mutex
	var emitted []int64
	if err := d.Init(func(f *media.Frame) error {
		mu.Lock()
		emitted = append(emitted, f.PTS)
		mu.Unlock()
		f.Release()
		return nil
	}); err != nil {
		t.Fatalf("init: %v", err)
	}

	// decode-order pts, out of presentation order
	for _, pts := range []int64{0, 40_000, 120_000, 80_000} {
		pushHW(t, d, pts)
	}

	if err := d.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int64{0, 40_000, 80_000, 120_000}
	if len(emitted) != len(want) {
		t.Fatalf("emitted = %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted = %v, want %v", emitted, want)
		}
	}
}

// orderedAsyncCodec completes submissions synchronously in the exact
// order PushPacket was called, standing in for a decoder whose completion
// callback always fires on a dedicated serial thread rather than racing
// goroutines — lets this test drive a specific decode-completion order
// without depending on scheduling.
type orderedAsyncCodec struct {
	onComplete func(pts int64, handle any, release func(), err error)
}

func (c *orderedAsyncCodec) Open(onComplete func(pts int64, handle any, release func(), err error)) error {
	c.onComplete = onComplete
	return nil
}

func (c *orderedAsyncCodec) SubmitAsync(pkt *media.Packet) error {
	pts := pkt.PTS
	c.onComplete(pts, pts, func() {}, nil)
	return nil
}

func (c *orderedAsyncCodec) FinishDelayedFrames() error { return nil }
func (c *orderedAsyncCodec) Close()                     {}

func TestHWDecoderSkipPastEmissionAndRefmaxDrainsToZero(t *testing.T) {
	codec := &orderedAsyncCodec{}
	d := decoder.NewHWDecoder(codec, 8, 8)

	var emitted []int64
	if err := d.Init(func(f *media.Frame) error {
		emitted = append(emitted, f.PTS)
		f.Release()
		return nil
	}); err != nil {
		t.Fatalf("init: %v", err)
	}

	// decode-completion order, out of presentation order
	for _, pts := range []int64{0, 40_000, 120_000, 80_000, 200_000, 160_000} {
		pushHW(t, d, pts)
	}

	if err := d.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	want := []int64{0, 40_000, 80_000, 120_000, 160_000, 200_000}
	if len(emitted) != len(want) {
		t.Fatalf("emitted = %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted = %v, want %v", emitted, want)
		}
	}

	d.Uninit()
	if got := d.Credit().Max() - 1; got != 0 {
		t.Fatalf("refmax-1 after full drain = %d, want 0", got)
	}
}

func TestHWDecoderInFlightCapBlocksBeyondThree(t *testing.T) {
	block := make(chan struct{})
	codec := &blockingCodec{ready: block}
	d := decoder.NewHWDecoder(codec, 8, 8)
	if err := d.Init(func(f *media.Frame) error { f.Release(); return nil }); err != nil {
		t.Fatalf("init: %v", err)
	}

	for i := 0; i < 3; i++ {
		pushHW(t, d, int64(i))
	}

	done := make(chan struct{})
	go func() {
		pushHW(t, d, 99)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("fourth PushPacket should have blocked at the in-flight cap")
	case <-time.After(20 * time.Millisecond):
	}

	close(block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fourth PushPacket never unblocked after a completion")
	}
}

// blockingCodec holds every completion pending until ready is closed, at
// which point all of them fire (a closed channel unblocks every receiver).
type blockingCodec struct {
	ready      chan struct{}
	onComplete func(pts int64, handle any, release func(), err error)
}

func (c *blockingCodec) Open(onComplete func(pts int64, handle any, release func(), err error)) error {
	c.onComplete = onComplete
	return nil
}

func (c *blockingCodec) SubmitAsync(pkt *media.Packet) error {
	pts := pkt.PTS
	go func() {
		<-c.ready
		c.onComplete(pts, pts, func() {}, nil)
	}()
	return nil
}

func (c *blockingCodec) FinishDelayedFrames() error { return nil }
func (c *blockingCodec) Close()                     {}

func TestHWDecoderUninitReleasesCreditAndCloses(t *testing.T) {
	codec := &fakeAsyncCodec{}
	d := decoder.NewHWDecoder(codec, 4, 4)
	if err := d.Init(func(f *media.Frame) error { f.Release(); return nil }); err != nil {
		t.Fatalf("init: %v", err)
	}
	d.Uninit()
	if !codec.closed {
		t.Fatal("codec was not closed on uninit")
	}
	if got := d.Credit().Refcount(); got != 0 {
		t.Fatalf("refcount after uninit = %d, want 0 (context reference released)", got)
	}
}
