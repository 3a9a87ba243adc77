package media

import (
	"github.com/pion/rtp"

	"framepipe/internal/bufpool"
)

// Packet is an opaque, pre-decode chunk of encoded bytes with a presentation
// timestamp in the source time base. It is produced by the source callback
// and exclusively owned by the caller until the decoder consumes and
// releases it.
//
// RTP is an optional wire-level view of the same data: when the source
// pulls packets off an RTP transport, the reader can preserve the original
// header instead of re-deriving PTS/marker bits from scratch.
type Packet struct {
	Data     []byte
	PTS      int64
	TimeBase TimeBase
	RTP      *rtp.Packet

	pooled bool
}

// NewPacket wraps data pulled from the source callback. If data was taken
// from bufpool.Get, pass pooled=true so Release returns it to the pool
// instead of discarding it.
func NewPacket(data []byte, pts int64, tb TimeBase, pooled bool) *Packet {
	return &Packet{Data: data, PTS: pts, TimeBase: tb, pooled: pooled}
}

// FromRTP builds a Packet from a received RTP packet, using the RTP
// timestamp (in the codec's RTP clock rate) as the source-timebase PTS.
func FromRTP(pkt *rtp.Packet, clockRate int) *Packet {
	return &Packet{
		Data:     pkt.Payload,
		PTS:      int64(pkt.Timestamp),
		TimeBase: TimeBase{Num: 1, Den: int64(clockRate)},
		RTP:      pkt,
	}
}

// Release is the queue element destructor for DATA messages (§3): it drops
// the packet's reference to its payload, returning pooled buffers to
// bufpool.
func (p *Packet) Release() {
	if p == nil {
		return
	}
	if p.pooled && p.Data != nil {
		bufpool.Put(p.Data)
	}
	p.Data = nil
	p.RTP = nil
}
