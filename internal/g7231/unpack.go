package g7231

import (
	"fmt"

	"github.com/thesyncim/gocelp/internal/bitstream"
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/types"
)

// Info bits in the two low bits of the first byte.
const (
	info6300          = 0
	info5300          = 1
	infoSID           = 2
	infoUntransmitted = 3
)

// FrameSize returns the packed size in bytes of the frame starting with b.
func FrameSize(b byte) int { return frameSizes[b&3] }

// Unpack parses the frame at the start of buf and returns its parameters
// together with the number of bytes consumed. A frame carrying a
// forbidden lag or gain code is returned with BadFrame set, so the
// decoder conceals it.
func Unpack(buf []byte) (*types.FrameParameters, int, error) {
	if len(buf) == 0 {
		return nil, 0, fmt.Errorf("%w: empty frame", celp.ErrShortPacket)
	}
	info := int(buf[0] & 3)
	size := frameSizes[info]
	if len(buf) < size {
		return nil, 0, fmt.Errorf("%w: %d bytes, frame type %d needs %d", celp.ErrShortPacket, len(buf), info, size)
	}

	r := bitstream.NewReader(buf[:size], bitstream.LSBFirst)
	r.Skip(2)
	p := &types.FrameParameters{}
	if info == infoUntransmitted {
		p.Type = types.FrameUntransmitted
		return p, size, nil
	}

	p.LSP = make([]int, lspBands)
	p.LSP[2] = r.ReadInt(8)
	p.LSP[1] = r.ReadInt(8)
	p.LSP[0] = r.ReadInt(8)

	if info == infoSID {
		p.Type = types.FrameSID
		p.Energy = []int{r.ReadInt(6)}
		return p, size, nil
	}

	p.Type = types.FrameSpeech
	p.Mode = Rate6300
	if info == info5300 {
		p.Mode = Rate5300
	}
	p.Subframes = make([]types.SubframeParameters, subframes)
	sf := p.Subframes
	p.Pitch = make([]int, 2)

	p.Pitch[0] = r.ReadInt(7)
	sf[1].PitchIndex = r.ReadInt(2)
	p.Pitch[1] = r.ReadInt(7)
	sf[3].PitchIndex = r.ReadInt(2)
	sf[0].PitchIndex = 1
	sf[2].PitchIndex = 1
	if p.Pitch[0] > maxLagCode || p.Pitch[1] > maxLagCode {
		p.BadFrame = true
		return p, size, nil
	}

	for i := range sf {
		temp := r.ReadInt(12)
		gains := 170
		if usesGain85(p.Mode, p.Pitch[i>>1]+pitchMin) {
			sf[i].Dirac = temp>>11 != 0
			temp &= 0x7ff
			gains = 85
		}
		g := temp / gainLevels
		if g >= gains {
			p.BadFrame = true
			return p, size, nil
		}
		sf[i].GainIndex = []int{g}
		sf[i].Amplitude = temp - g*gainLevels
	}

	for i := range sf {
		sf[i].Grid = r.ReadBit()
	}

	if p.Mode == Rate6300 {
		r.Skip(1) // reserved

		temp := r.ReadInt(13)
		var top [subframes]int
		top[0] = temp / 810
		temp -= top[0] * 810
		top[1] = temp / 90
		temp -= top[1] * 90
		top[2] = temp / 9
		top[3] = temp - top[2]*9

		for i := range sf {
			bits := 16 - 2*(i&1)
			sf[i].Pulses = []int{top[i]<<bits + r.ReadInt(bits)}
		}
		for i := range sf {
			sf[i].Signs = r.ReadInt(pulses[i])
		}
		return p, size, nil
	}

	for i := range sf {
		sf[i].Pulses = []int{r.ReadInt(12)}
	}
	for i := range sf {
		sf[i].Signs = r.ReadInt(4)
		if !acbPulsesValid(sf[i].Pulses[0], sf[i].Grid) {
			p.BadFrame = true
		}
	}
	return p, size, nil
}

// Pack encodes frame parameters into the packed frame format. Subframes 0
// and 2 always carry a lag offset of 1.
func Pack(p *types.FrameParameters) ([]byte, error) {
	w := bitstream.NewWriter(bitstream.LSBFirst)
	switch p.Type {
	case types.FrameUntransmitted:
		w.WriteInt(infoUntransmitted, 2)
		return w.Bytes(frameSizes[infoUntransmitted]), nil
	case types.FrameSID:
		if len(p.LSP) < lspBands || len(p.Energy) < 1 {
			return nil, fmt.Errorf("%w: incomplete SID frame", celp.ErrInvalidParameter)
		}
		w.WriteInt(infoSID, 2)
		w.WriteInt(p.LSP[2], 8)
		w.WriteInt(p.LSP[1], 8)
		w.WriteInt(p.LSP[0], 8)
		w.WriteInt(p.Energy[0], 6)
		return w.Bytes(frameSizes[infoSID]), nil
	}

	f, err := validate(p)
	if err != nil {
		return nil, err
	}
	info := info6300
	if f.rate == Rate5300 {
		info = info5300
	}
	w.WriteInt(info, 2)
	w.WriteInt(f.lspIndex[2], 8)
	w.WriteInt(f.lspIndex[1], 8)
	w.WriteInt(f.lspIndex[0], 8)
	w.WriteInt(f.pitchLag[0]-pitchMin, 7)
	w.WriteInt(f.sf[1].adCBLag, 2)
	w.WriteInt(f.pitchLag[1]-pitchMin, 7)
	w.WriteInt(f.sf[3].adCBLag, 2)

	for i := range f.sf {
		sf := &f.sf[i]
		temp := sf.adCBGain*gainLevels + sf.ampIndex
		if sf.dirac {
			temp |= 1 << 11
		}
		w.WriteInt(temp, 12)
	}
	for i := range f.sf {
		w.WriteInt(f.sf[i].grid, 1)
	}

	if f.rate == Rate6300 {
		w.WriteInt(0, 1)
		var top [subframes]int
		for i := range f.sf {
			top[i] = f.sf[i].pulsePos >> (16 - 2*(i&1))
		}
		if top[1] >= 9 || top[2] >= 10 || top[3] >= 9 {
			return nil, fmt.Errorf("%w: pulse position code out of range", celp.ErrInvalidParameter)
		}
		combined := top[0]*810 + top[1]*90 + top[2]*9 + top[3]
		if combined >= 1<<13 {
			return nil, fmt.Errorf("%w: pulse position code out of range", celp.ErrInvalidParameter)
		}
		w.WriteInt(combined, 13)
		for i := range f.sf {
			bits := 16 - 2*(i&1)
			w.WriteInt(f.sf[i].pulsePos&(1<<bits-1), bits)
		}
		for i := range f.sf {
			w.WriteInt(f.sf[i].pulseSign, pulses[i])
		}
		return w.Bytes(frameSizes[info6300]), nil
	}

	for i := range f.sf {
		w.WriteInt(f.sf[i].pulsePos, 12)
	}
	for i := range f.sf {
		w.WriteInt(f.sf[i].pulseSign, 4)
	}
	return w.Bytes(frameSizes[info5300]), nil
}
