package media

// Frame is a decoded image or audio buffer with a timestamp normalized to
// the canonical microsecond time base (§3). A Frame either owns its buffer
// outright (CPU-decoded path) or holds a handle to a platform/GPU-owned
// buffer whose lifetime is governed by a release hook — the reorder+credit
// decoder variant (§4.4) attaches one so that whichever goroutine ultimately
// drops the frame also decrements the credit manager's refcount, exactly
// like the original's av_buffer_create(..., buffer_release, bufcount, ...).
type Frame struct {
	PTS  int64
	Data []byte

	// Handle is an opaque platform buffer (e.g. a GPU image) when the
	// frame did not originate from a plain CPU buffer. Nil for CPU frames.
	Handle any

	release func()
	freed   bool
}

// NewCPUFrame builds a Frame that owns a plain CPU buffer with no external
// release obligations.
func NewCPUFrame(pts int64, data []byte) *Frame {
	return &Frame{PTS: pts, Data: data}
}

// NewHandleFrame builds a Frame around a platform buffer handle. release is
// invoked exactly once, from whichever goroutine calls Release, regardless
// of which thread decoded or consumed the frame — mirroring the original's
// av_buffer_create release callback semantics, which can fire from any
// thread that drops the last reference.
func NewHandleFrame(pts int64, handle any, release func()) *Frame {
	return &Frame{PTS: pts, Handle: handle, release: release}
}

// Release drops the frame's reference to its buffer, invoking the platform
// release hook (if any) exactly once. It is the queue element destructor
// used for frame_queue and sink_queue flush/poison cleanup (§3).
func (f *Frame) Release() {
	if f == nil || f.freed {
		return
	}
	f.freed = true
	f.Data = nil
	f.Handle = nil
	if f.release != nil {
		f.release()
	}
}
