// Package testcodec provides a deterministic, synchronous Decoder fixture
// for exercising the decoder task and pipeline without a real platform
// codec. It treats incoming packets as G.711 A-law and decodes them to
// PCM16 with github.com/zaf/g711, the same library used elsewhere for
// encode-path fixtures.
package testcodec

import (
	"errors"

	"framepipe/internal/decoder"
	"framepipe/internal/media"
	"framepipe/internal/perrors"

	"github.com/zaf/g711"
)

var errEmptyDecode = errors.New("testcodec: empty decode result")

// Codec is a trivial synchronous decoder.Decoder: every PushPacket call
// with a non-empty payload decodes it and emits exactly one frame before
// returning,
// so tests can assert ordering without waiting on a callback.
type Codec struct {
	emit   decoder.EmitFunc
	closed bool
}

// New builds an unopened test codec.
func New() *Codec {
	return &Codec{}
}

// Init implements decoder.Decoder.
func (c *Codec) Init(emit decoder.EmitFunc) error {
	c.emit = emit
	return nil
}

// PushPacket implements decoder.Decoder. A nil-data packet is treated as
// an explicit EOF marker and produces no frame.
func (c *Codec) PushPacket(pkt *media.Packet) error {
	if pkt == nil || len(pkt.Data) == 0 {
		return nil
	}
	pcm := g711.DecodeAlaw(pkt.Data)
	if pcm == nil {
		return perrors.NewDecodeError("testcodec.push_packet", perrors.CategoryInvalidData, errEmptyDecode)
	}
	frame := media.NewCPUFrame(pkt.PTS, pcm)
	return c.emit(frame)
}

// Flush implements decoder.Decoder; the test codec never delays frames.
func (c *Codec) Flush() error {
	return nil
}

// Uninit implements decoder.Decoder.
func (c *Codec) Uninit() {
	c.closed = true
}

// Closed reports whether Uninit has run, for teardown assertions in tests.
func (c *Codec) Closed() bool {
	return c.closed
}
