package celp

// Sample is the element type of excitation and speech buffers.
type Sample interface {
	~int16 | ~int32 | ~float32 | ~float64
}

// History is the excitation history buffer.
//
// It keeps exactly Lookback() valid samples before the write cursor, which
// must cover max_delay + filter_order + 1 for the profile it serves. The
// cursor moves forward one frame at a time; the backing array is sized for
// several frames so that the tail only has to be relocated when the cursor
// runs out of room, and every window handed out is contiguous.
type History[T Sample] struct {
	buf      []T
	lookback int
	span     int // largest window a caller may write in one step
	pos      int // index of the write cursor in buf
}

// NewHistory returns a zeroed history keeping lookback samples and allowing
// windows of up to span samples after the cursor.
func NewHistory[T Sample](lookback, span int) *History[T] {
	return &History[T]{
		buf:      make([]T, lookback+4*span),
		lookback: lookback,
		span:     span,
		pos:      lookback,
	}
}

// Lookback returns the number of valid samples kept before the cursor.
func (h *History[T]) Lookback() int { return h.lookback }

// Window returns lookback history samples followed by n writable samples.
// Index Lookback() of the returned slice is the write cursor.
func (h *History[T]) Window(n int) []T {
	if n > h.span {
		n = h.span
	}
	return h.buf[h.pos-h.lookback : h.pos+n]
}

// Current returns the n samples at the cursor.
func (h *History[T]) Current(n int) []T {
	if n > h.span {
		n = h.span
	}
	return h.buf[h.pos : h.pos+n]
}

// At returns the sample i positions before the cursor (i >= 1).
func (h *History[T]) At(i int) T {
	return h.buf[h.pos-i]
}

// Advance moves the cursor forward by n samples, relocating the last
// lookback samples to the front of the backing array when the next window
// would not fit. The relocation copies history before any new write.
func (h *History[T]) Advance(n int) {
	h.pos += n
	if h.pos+h.span <= len(h.buf) {
		return
	}
	copy(h.buf, h.buf[h.pos-h.lookback:h.pos])
	h.pos = h.lookback
	clear(h.buf[h.pos:])
}

// Snapshot returns a copy of the lookback samples before the cursor.
func (h *History[T]) Snapshot() []T {
	out := make([]T, h.lookback)
	copy(out, h.buf[h.pos-h.lookback:h.pos])
	return out
}

// Reset clears all history.
func (h *History[T]) Reset() {
	clear(h.buf)
	h.pos = h.lookback
}
