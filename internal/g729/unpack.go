package g729

import (
	"fmt"
	"math/bits"

	"github.com/thesyncim/gocelp/internal/bitstream"
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/types"
)

// ModeForPayload returns the mode whose frames tile a payload of n bytes.
func ModeForPayload(n int) (int, error) {
	switch {
	case n > 0 && n%formats[Mode8k].frameBytes == 0:
		return Mode8k, nil
	case n > 0 && n%formats[Mode6k4].frameBytes == 0:
		return Mode6k4, nil
	}
	return 0, fmt.Errorf("%w: %d byte payload is not a whole number of frames", celp.ErrShortPacket, n)
}

// parityBit returns the value the parity bit must carry for a valid first
// pitch index: the inverted parity of its six most significant bits.
func parityBit(index int) int {
	return bits.OnesCount(uint(index>>2))&1 ^ 1
}

// Unpack parses one frame of mode from the start of buf. An all-zero frame
// marks an erasure and is returned with BadFrame set.
func Unpack(buf []byte, mode int) (*types.FrameParameters, error) {
	if err := celp.CheckIndex("mode", mode, len(formats)); err != nil {
		return nil, err
	}
	f := &formats[mode]
	if len(buf) < f.frameBytes {
		return nil, fmt.Errorf("%w: %d bytes, mode %d needs %d", celp.ErrShortPacket, len(buf), mode, f.frameBytes)
	}
	buf = buf[:f.frameBytes]

	p := &types.FrameParameters{Mode: mode, Type: types.FrameSpeech}
	erased := true
	for _, b := range buf {
		if b != 0 {
			erased = false
			break
		}
	}
	if erased {
		p.BadFrame = true
		return p, nil
	}

	r := bitstream.NewReader(buf, bitstream.MSBFirst)
	p.LSP = []int{r.ReadInt(1), r.ReadInt(7), r.ReadInt(5), r.ReadInt(5)}
	p.Subframes = make([]types.SubframeParameters, subframes)
	for i := range p.Subframes {
		sf := &p.Subframes[i]
		sf.PitchIndex = r.ReadInt(f.pitchBits[i])
		if i == 0 && f.parity {
			p.ParityError = r.ReadInt(1) != parityBit(sf.PitchIndex)
		}
		sf.Pulses = []int{r.ReadInt(f.pulseBits)}
		sf.Signs = r.ReadInt(f.signBits)
		sf.GainIndex = []int{r.ReadInt(f.gain1Bits), r.ReadInt(f.gain2Bits)}
	}
	return p, nil
}

// Pack encodes a speech frame. The parity bit is computed, not taken from
// p.
func Pack(p *types.FrameParameters) ([]byte, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	f := &formats[p.Mode]
	w := bitstream.NewWriter(bitstream.MSBFirst)
	for i, n := range [4]int{1, 7, 5, 5} {
		w.WriteInt(p.LSP[i], n)
	}
	for i := range p.Subframes[:subframes] {
		sf := &p.Subframes[i]
		w.WriteInt(sf.PitchIndex, f.pitchBits[i])
		if i == 0 && f.parity {
			w.WriteInt(parityBit(sf.PitchIndex), 1)
		}
		w.WriteInt(sf.Pulses[0], f.pulseBits)
		w.WriteInt(sf.Signs, f.signBits)
		w.WriteInt(sf.GainIndex[0], f.gain1Bits)
		w.WriteInt(sf.GainIndex[1], f.gain2Bits)
	}
	return w.Bytes(f.frameBytes), nil
}
