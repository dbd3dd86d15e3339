package sipr

import (
	"fmt"

	"github.com/thesyncim/gocelp/internal/bitstream"
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/types"
)

// ModeForPacket returns the mode whose packets are n bytes long.
func ModeForPacket(n int) (int, error) {
	for mode := range modes {
		if modes[mode].packetBytes == n {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: %d byte SIPR packet", celp.ErrShortPacket, n)
}

// Unpack parses one packet into its frames. The mode follows from the
// packet size.
func Unpack(buf []byte) ([]*types.FrameParameters, error) {
	mode, err := ModeForPacket(len(buf))
	if err != nil {
		return nil, err
	}
	m := &modes[mode]
	r := bitstream.NewReader(buf, bitstream.MSBFirst)
	frames := make([]*types.FrameParameters, m.framesPerPack)
	for f := range frames {
		p := &types.FrameParameters{Mode: mode, Type: types.FrameSpeech}
		if m.predictorBits > 0 {
			p.LSP = append(p.LSP, r.ReadInt(m.predictorBits))
		}
		for _, bits := range m.lsfBits {
			p.LSP = append(p.LSP, r.ReadInt(bits))
		}
		p.Subframes = make([]types.SubframeParameters, m.subframes)
		for i := range p.Subframes {
			sf := &p.Subframes[i]
			sf.PitchIndex = r.ReadInt(m.pitchBits[i])
			if m.pitchGainBits > 0 {
				sf.GainIndex = append(sf.GainIndex, r.ReadInt(m.pitchGainBits))
			}
			for _, bits := range m.pulseBits {
				sf.Pulses = append(sf.Pulses, r.ReadInt(bits))
			}
			sf.GainIndex = append(sf.GainIndex, r.ReadInt(m.gainBits))
		}
		frames[f] = p
	}
	return frames, nil
}

// Pack encodes the frames of one packet. All frames must share a mode and
// fill the packet exactly.
func Pack(frames []*types.FrameParameters) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", celp.ErrInvalidParameter)
	}
	mode := frames[0].Mode
	for _, p := range frames {
		if p == nil {
			return nil, fmt.Errorf("%w: nil frame", celp.ErrInvalidParameter)
		}
		if err := validate(p); err != nil {
			return nil, err
		}
		if p.Mode != mode {
			return nil, fmt.Errorf("%w: mixed modes in one packet", celp.ErrInvalidParameter)
		}
	}
	m := &modes[mode]
	if len(frames) != m.framesPerPack {
		return nil, fmt.Errorf("%w: %d frames, mode %s packs %d", celp.ErrInvalidParameter, len(frames), m.name, m.framesPerPack)
	}

	w := bitstream.NewWriter(bitstream.MSBFirst)
	for _, p := range frames {
		k := 0
		if m.predictorBits > 0 {
			w.WriteInt(p.LSP[0], m.predictorBits)
			k = 1
		}
		for i, bits := range m.lsfBits {
			w.WriteInt(p.LSP[k+i], bits)
		}
		for i := range p.Subframes[:m.subframes] {
			sf := &p.Subframes[i]
			w.WriteInt(sf.PitchIndex, m.pitchBits[i])
			g := 0
			if m.pitchGainBits > 0 {
				w.WriteInt(sf.GainIndex[0], m.pitchGainBits)
				g = 1
			}
			for j, bits := range m.pulseBits {
				w.WriteInt(sf.Pulses[j], bits)
			}
			w.WriteInt(sf.GainIndex[g], m.gainBits)
		}
	}
	return w.Bytes(m.packetBytes), nil
}
