package media

// TimeBase is a rational time unit, e.g. 1/25 for a 25fps source. It
// generalizes a fixed PCM sample rate into an arbitrary rational so both
// audio and video sources can express their native timestamps.
type TimeBase struct {
	Num int64
	Den int64
}

// Microsecond is the canonical time base every Frame timestamp is rescaled
// into before it enters frame_queue (§3).
var Microsecond = TimeBase{Num: 1, Den: 1_000_000}

// Rescale converts a timestamp ts expressed in time base `from` into the
// equivalent timestamp in time base `to`, rounding to the nearest integer.
// Mirrors av_rescale_q_rnd in the original source.
func Rescale(ts int64, from, to TimeBase) int64 {
	if from.Num == 0 || from.Den == 0 || to.Num == 0 || to.Den == 0 {
		return ts
	}
	// ts * (from.Num/from.Den) * (to.Den/to.Num), kept in int64 with
	// half-up rounding on the final division.
	num := ts * from.Num * to.Den
	den := from.Den * to.Num
	if den == 0 {
		return ts
	}
	if (num < 0) != (den < 0) {
		return (num - den/2) / den
	}
	return (num + den/2) / den
}

// ToMicros rescales ts from `from` into the canonical microsecond time base.
func ToMicros(ts int64, from TimeBase) int64 {
	return Rescale(ts, from, Microsecond)
}
