package bitstream

// Writer packs bit fields into a growing byte buffer in the given order.
type Writer struct {
	buf   []byte
	order Order
	pos   int
}

// NewWriter returns an empty writer.
func NewWriter(order Order) *Writer {
	return &Writer{order: order}
}

func (w *Writer) bit(b uint32) {
	i := w.pos >> 3
	if i >= len(w.buf) {
		w.buf = append(w.buf, 0)
	}
	if b&1 != 0 {
		if w.order == LSBFirst {
			w.buf[i] |= 1 << (w.pos & 7)
		} else {
			w.buf[i] |= 1 << (7 - w.pos&7)
		}
	}
	w.pos++
}

// WriteBits appends the low n bits of v.
func (w *Writer) WriteBits(v uint32, n int) {
	if w.order == LSBFirst {
		for i := 0; i < n; i++ {
			w.bit(v >> uint(i))
		}
		return
	}
	for i := n - 1; i >= 0; i-- {
		w.bit(v >> uint(i))
	}
}

// WriteInt appends the low n bits of v.
func (w *Writer) WriteInt(v, n int) { w.WriteBits(uint32(v), n) }

// Tell returns the number of bits written.
func (w *Writer) Tell() int { return w.pos }

// Bytes returns the packed buffer, zero padded to a whole byte, extended
// with zero bytes up to size when size is larger.
func (w *Writer) Bytes(size int) []byte {
	for len(w.buf) < size {
		w.buf = append(w.buf, 0)
	}
	return w.buf
}
