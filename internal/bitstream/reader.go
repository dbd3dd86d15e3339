// Package bitstream reads and writes the fixed-layout bit fields of the
// CELP frame formats. G.723.1 packs fields least significant bit first,
// G.729 most significant bit first; both orders are supported.
package bitstream

// Order selects how bits are taken from each byte.
type Order int

const (
	// LSBFirst reads bit 0 of each byte first and builds values from the
	// least significant end (G.723.1).
	LSBFirst Order = iota
	// MSBFirst reads bit 7 of each byte first and builds values from the
	// most significant end (G.729, RFC 4867 payloads).
	MSBFirst
)

// Reader extracts bit fields from a byte buffer.
type Reader struct {
	buf     []byte // Input buffer
	order   Order  // Bit order within bytes
	pos     int    // Bits consumed
	overrun bool   // Set when a read ran past the end
}

// Init resets the reader to the start of buf.
func (r *Reader) Init(buf []byte, order Order) {
	r.buf = buf
	r.order = order
	r.pos = 0
	r.overrun = false
}

// NewReader returns a reader positioned at the start of buf.
func NewReader(buf []byte, order Order) *Reader {
	r := &Reader{}
	r.Init(buf, order)
	return r
}

// bit returns the next bit, or 0 past the end of the buffer.
func (r *Reader) bit() uint32 {
	i := r.pos >> 3
	if i >= len(r.buf) {
		r.overrun = true
		r.pos++
		return 0
	}
	var b uint32
	if r.order == LSBFirst {
		b = uint32(r.buf[i]>>(r.pos&7)) & 1
	} else {
		b = uint32(r.buf[i]>>(7-r.pos&7)) & 1
	}
	r.pos++
	return b
}

// ReadBits reads an n-bit field (n <= 32).
func (r *Reader) ReadBits(n int) uint32 {
	var v uint32
	if r.order == LSBFirst {
		for i := 0; i < n; i++ {
			v |= r.bit() << uint(i)
		}
		return v
	}
	for i := 0; i < n; i++ {
		v = v<<1 | r.bit()
	}
	return v
}

// ReadInt reads an n-bit field as an int.
func (r *Reader) ReadInt(n int) int { return int(r.ReadBits(n)) }

// ReadBit reads a single bit.
func (r *Reader) ReadBit() int { return int(r.bit()) }

// Skip discards n bits.
func (r *Reader) Skip(n int) {
	for i := 0; i < n; i++ {
		r.bit()
	}
}

// Tell returns the number of bits consumed so far.
func (r *Reader) Tell() int { return r.pos }

// Left returns the number of unread bits; negative after an overrun.
func (r *Reader) Left() int { return len(r.buf)*8 - r.pos }

// Overrun reports whether a read went past the end of the buffer.
func (r *Reader) Overrun() bool { return r.overrun }

// BytesUsed returns the number of bytes touched by the reads so far.
func (r *Reader) BytesUsed() int { return (r.pos + 7) >> 3 }
