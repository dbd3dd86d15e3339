package evrc

import (
	"fmt"

	"github.com/thesyncim/gocelp/internal/bitstream"
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/types"
)

// Rate byte values of the bundled packet format.
const (
	rateByteBlank   = 0
	rateByteEighth  = 1
	rateByteHalf    = 3
	rateByteFull    = 4
	rateByteErasure = 14
)

var frameBytes = [rateCount]int{RateFull: 22, RateHalf: 10, RateEighth: 2}

var rateBytes = [rateCount]byte{RateFull: rateByteFull, RateHalf: rateByteHalf, RateEighth: rateByteEighth}

// FrameBytes returns the payload size of one frame of rate, without a
// rate byte.
func FrameBytes(rate int) int {
	if rate < 0 || rate >= rateCount {
		return 0
	}
	return frameBytes[rate]
}

// rateForSize maps a header-free payload size to its rate.
func rateForSize(n int) (int, bool) {
	for rate, size := range frameBytes {
		if size == n {
			return rate, true
		}
	}
	return 0, false
}

// Unpack parses one frame. The rate follows from the payload size; a
// payload one byte longer starts with a rate byte that must agree. A
// blank rate byte yields an untransmitted frame and an erasure rate byte
// a bad frame. Frames whose indices decode out of range are returned with
// BadFrame set.
func Unpack(buf []byte) (*types.FrameParameters, error) {
	if len(buf) == 1 {
		switch buf[0] {
		case rateByteBlank:
			return &types.FrameParameters{Type: types.FrameUntransmitted}, nil
		case rateByteErasure:
			return &types.FrameParameters{Type: types.FrameSpeech, BadFrame: true}, nil
		}
	}
	rate, ok := rateForSize(len(buf))
	if !ok {
		if rate, ok = rateForSize(len(buf) - 1); !ok {
			return nil, fmt.Errorf("%w: %d byte EVRC payload", celp.ErrShortPacket, len(buf))
		}
		if buf[0] != rateBytes[rate] {
			return nil, fmt.Errorf("%w: rate byte %d for a %s rate payload", celp.ErrInvalidParameter, buf[0], RateName(rate))
		}
		buf = buf[1:]
	}

	p := &types.FrameParameters{Mode: rate, Type: types.FrameSpeech}
	r := bitstream.NewReader(buf, bitstream.MSBFirst)
	switch rate {
	case RateEighth:
		p.LSP = []int{r.ReadInt(4), r.ReadInt(4)}
		p.Energy = []int{r.ReadInt(8)}
		return p, nil
	case RateFull:
		r.Skip(1) // LPC flag
		p.LSP = []int{r.ReadInt(6), r.ReadInt(6), r.ReadInt(9), r.ReadInt(7)}
		p.Pitch = []int{r.ReadInt(7), r.ReadInt(5)}
	case RateHalf:
		p.LSP = []int{r.ReadInt(7), r.ReadInt(7), r.ReadInt(8)}
		p.Pitch = []int{r.ReadInt(7)}
	}

	p.Subframes = make([]types.SubframeParameters, subframes)
	for i := range p.Subframes {
		sf := &p.Subframes[i]
		acb := r.ReadInt(3)
		if rate == RateFull {
			sf.Pulses = []int{r.ReadInt(8), r.ReadInt(8), r.ReadInt(8), r.ReadInt(11)}
			sf.GainIndex = []int{acb, r.ReadInt(5)}
		} else {
			sf.Pulses = []int{r.ReadInt(10)}
			sf.GainIndex = []int{acb, r.ReadInt(4)}
		}
	}
	if validate(p) != nil {
		p.BadFrame = true
	}
	return p, nil
}

// Pack encodes a frame without a rate byte. The LPC flag and the TTY bit
// of full rate frames are written as zero.
func Pack(p *types.FrameParameters) ([]byte, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	w := bitstream.NewWriter(bitstream.MSBFirst)
	switch p.Mode {
	case RateEighth:
		w.WriteInt(p.LSP[0], 4)
		w.WriteInt(p.LSP[1], 4)
		w.WriteInt(p.Energy[0], 8)
		return w.Bytes(frameBytes[RateEighth]), nil
	case RateFull:
		w.WriteInt(0, 1)
		for i, n := range [4]int{6, 6, 9, 7} {
			w.WriteInt(p.LSP[i], n)
		}
		w.WriteInt(p.Pitch[0], 7)
		w.WriteInt(p.Pitch[1], 5)
	case RateHalf:
		for i, n := range [3]int{7, 7, 8} {
			w.WriteInt(p.LSP[i], n)
		}
		w.WriteInt(p.Pitch[0], 7)
	}
	for i := range p.Subframes[:subframes] {
		sf := &p.Subframes[i]
		w.WriteInt(sf.GainIndex[0], 3)
		if p.Mode == RateFull {
			for j, n := range [4]int{8, 8, 8, 11} {
				w.WriteInt(sf.Pulses[j], n)
			}
			w.WriteInt(sf.GainIndex[1], 5)
		} else {
			w.WriteInt(sf.Pulses[0], 10)
			w.WriteInt(sf.GainIndex[1], 4)
		}
	}
	return w.Bytes(frameBytes[p.Mode]), nil
}
