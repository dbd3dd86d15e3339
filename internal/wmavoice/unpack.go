package wmavoice

import (
	"encoding/binary"
	"fmt"

	"github.com/thesyncim/gocelp/internal/bitstream"
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/types"
)

// ExtradataSize is the size of the codec private data of a WMA Voice
// stream.
const ExtradataSize = 46

// frameTypeCodes is the number of frame type codes.
const frameTypeCodes = 22

// StreamConfig holds the stream level settings needed to parse
// superframes.
type StreamConfig struct {
	// Mode is the FrameParameters mode of every frame. ModeResidual is
	// signalled per packet, so callers set it from the packet header.
	Mode int
	// Postfilter reports whether the stream asks for the postfilter.
	Postfilter bool
	// DCLevel is the predicted DC noise; above 8 the DC filter applies.
	DCLevel int

	tree [25]int8 // frame type code to frame type, -1 unused
}

// DefaultStreamConfig returns a configuration for mode whose frame type
// codes map to frame types in order.
func DefaultStreamConfig(mode int) StreamConfig {
	c := StreamConfig{Mode: mode}
	for i := range c.tree {
		c.tree[i] = -1
		if i < frameTypes {
			c.tree[i] = int8(i)
		}
	}
	return c
}

// ParseExtradata reads the stream settings from the codec private data.
func ParseExtradata(extra []byte) (StreamConfig, error) {
	if len(extra) != ExtradataSize {
		return StreamConfig{}, fmt.Errorf("%w: extradata of %d bytes, want %d", celp.ErrInvalidParameter, len(extra), ExtradataSize)
	}
	flags := binary.LittleEndian.Uint32(extra[18:])
	if denoise := (flags >> 2) & 0xF; denoise >= 12 {
		return StreamConfig{}, fmt.Errorf("%w: denoise strength %d", celp.ErrInvalidParameter, denoise)
	}
	c := StreamConfig{
		Postfilter: flags&0x1 != 0,
		DCLevel:    int(flags>>7) & 0xF,
	}
	if flags&0x1000 != 0 {
		c.Mode |= ModeLSP16
	}
	if flags&0x2000 != 0 {
		c.Mode |= ModeAltInterp
	}
	if flags&0x4000 != 0 {
		c.Mode |= ModeAltMean
	}

	for i := range c.tree {
		c.tree[i] = -1
	}
	var count [8]int
	r := bitstream.NewReader(extra[22:], bitstream.MSBFirst)
	for t := 0; t < frameTypes; t++ {
		res := r.ReadInt(3)
		limit := 3
		if res == 7 {
			limit = 1
		}
		if count[res] >= limit {
			return StreamConfig{}, fmt.Errorf("%w: frame type tree", celp.ErrInvalidParameter)
		}
		c.tree[res*3+count[res]] = int8(t)
		count[res]++
	}
	return c, nil
}

// fieldCoder reads or writes one superframe field at a time, so that one
// walk over the layout serves both directions.
type fieldCoder interface {
	field(v *int, bits int)
	frameType(t *int)
}

type fieldReader struct {
	r    *bitstream.Reader
	tree *[25]int8
	err  error
}

func (c *fieldReader) field(v *int, bits int) { *v = c.r.ReadInt(bits) }

// frameType reads the prefix code: up to six "11" pairs, then two bits.
func (c *fieldReader) frameType(t *int) {
	code := 0
	for k := 0; ; k++ {
		v := c.r.ReadInt(2)
		if v != 3 || k == 6 {
			code = 3*k + v
			break
		}
	}
	*t = int(c.tree[code])
	if *t < 0 && c.err == nil {
		c.err = fmt.Errorf("%w: frame type code %d", celp.ErrInvalidParameter, code)
	}
}

type fieldWriter struct {
	w    *bitstream.Writer
	tree *[25]int8
	err  error
}

func (c *fieldWriter) field(v *int, bits int) {
	if *v < 0 || *v >= 1<<bits {
		if c.err == nil {
			c.err = fmt.Errorf("%w: field value %d does not fit %d bits", celp.ErrInvalidParameter, *v, bits)
		}
		return
	}
	c.w.WriteInt(*v, bits)
}

func (c *fieldWriter) frameType(t *int) {
	code := -1
	for i := 0; i < frameTypeCodes; i++ {
		if int(c.tree[i]) == *t {
			code = i
			break
		}
	}
	if code < 0 {
		if c.err == nil {
			c.err = fmt.Errorf("%w: frame type %d has no code", celp.ErrInvalidParameter, *t)
		}
		return
	}
	k := min(code/3, 6)
	for i := 0; i < k; i++ {
		c.w.WriteInt(3, 2)
	}
	c.w.WriteInt(code-3*k, 2)
}

// grow returns s extended to at least n elements.
func grow(s []int, n int) []int {
	if len(s) < n {
		s = append(s, make([]int, n-len(s))...)
	}
	return s
}

// Unpacker parses the superframes of one stream. It follows the pitch of
// every frame since the AW field widths depend on it.
type Unpacker struct {
	cfg   StreamConfig
	pitch pitchState
}

// NewUnpacker returns an unpacker for a stream.
func NewUnpacker(cfg StreamConfig) *Unpacker {
	return &Unpacker{cfg: cfg, pitch: newPitchState()}
}

// Unpack parses one superframe into its three frames and returns the
// number of valid samples, which is below 480 only at the end of a
// stream. A superframe that runs past buf yields ErrShortPacket and
// leaves the unpacker unchanged.
func (u *Unpacker) Unpack(buf []byte) ([]*types.FrameParameters, int, error) {
	r := bitstream.NewReader(buf, bitstream.MSBFirst)
	if r.ReadBit() == 0 {
		return nil, 0, fmt.Errorf("%w: music superframe", celp.ErrUnsupportedMode)
	}
	samples := superframeLen
	if r.ReadBit() != 0 {
		samples = r.ReadInt(12)
		if samples > superframeLen {
			return nil, 0, fmt.Errorf("%w: superframe of %d samples", celp.ErrInvalidParameter, samples)
		}
	}

	frames := make([]*types.FrameParameters, framesPerSuper)
	for i := range frames {
		frames[i] = &types.FrameParameters{Mode: u.cfg.Mode, Type: types.FrameSpeech}
	}
	saved := u.pitch
	c := &fieldReader{r: r, tree: &u.cfg.tree}
	if err := u.walk(c, frames, true); err != nil {
		u.pitch = saved
		return nil, 0, err
	}
	if c.err != nil {
		u.pitch = saved
		return nil, 0, c.err
	}
	if r.ReadBit() != 0 {
		r.Skip(10 * (r.ReadInt(4) + 1))
	}
	if r.Overrun() {
		u.pitch = saved
		return nil, 0, fmt.Errorf("%w: superframe needs %d bits, have %d", celp.ErrShortPacket, r.Tell(), len(buf)*8)
	}
	return frames, samples, nil
}

// Packer writes superframes; it mirrors Unpacker.
type Packer struct {
	cfg   StreamConfig
	pitch pitchState
}

// NewPacker returns a packer for a stream.
func NewPacker(cfg StreamConfig) *Packer {
	return &Packer{cfg: cfg, pitch: newPitchState()}
}

// Pack writes three frames as one superframe of samples valid samples.
func (p *Packer) Pack(frames []*types.FrameParameters, samples int) ([]byte, error) {
	if len(frames) != framesPerSuper {
		return nil, fmt.Errorf("%w: %d frames, want %d", celp.ErrInvalidParameter, len(frames), framesPerSuper)
	}
	for _, f := range frames {
		if f == nil || f.Mode != p.cfg.Mode || len(f.Pitch) < 1 {
			return nil, fmt.Errorf("%w: frame does not match the stream", celp.ErrInvalidParameter)
		}
		if err := celp.CheckIndex("frame type", f.Pitch[0], frameTypes); err != nil {
			return nil, err
		}
	}
	w := bitstream.NewWriter(bitstream.MSBFirst)
	w.WriteInt(1, 1)
	if samples != superframeLen {
		if samples < 0 || samples > superframeLen {
			return nil, fmt.Errorf("%w: superframe of %d samples", celp.ErrInvalidParameter, samples)
		}
		w.WriteInt(1, 1)
		w.WriteInt(samples, 12)
	} else {
		w.WriteInt(0, 1)
	}

	saved := p.pitch
	c := &fieldWriter{w: w, tree: &p.cfg.tree}
	err := p.walkFrames(c, frames)
	if err == nil {
		err = c.err
	}
	if err != nil {
		p.pitch = saved
		return nil, err
	}
	w.WriteInt(0, 1)
	return w.Bytes(0), nil
}

func (p *Packer) walkFrames(c fieldCoder, frames []*types.FrameParameters) error {
	u := Unpacker{cfg: p.cfg, pitch: p.pitch}
	err := u.walk(c, frames, false)
	p.pitch = u.pitch
	return err
}

// walk visits every field of a superframe in bitstream order. When
// reading, slices are grown as fields are reached.
func (u *Unpacker) walk(c fieldCoder, frames []*types.FrameParameters, reading bool) error {
	mode := u.cfg.Mode
	lspBits := lspFieldBits(mode)
	lspFields := func(f *types.FrameParameters) error {
		if reading {
			f.LSP = grow(f.LSP, len(lspBits))
		} else if len(f.LSP) < len(lspBits) {
			return fmt.Errorf("%w: %d LSP indices, want %d", celp.ErrInvalidParameter, len(f.LSP), len(lspBits))
		}
		for i, b := range lspBits {
			c.field(&f.LSP[i], b)
		}
		return nil
	}

	if mode&ModeResidual != 0 {
		if err := lspFields(frames[0]); err != nil {
			return err
		}
	}
	for _, f := range frames {
		if mode&ModeResidual == 0 {
			if err := lspFields(f); err != nil {
				return err
			}
		}
		if reading {
			f.Pitch = grow(f.Pitch, 3)
		}
		c.frameType(&f.Pitch[0])
		if f.Pitch[0] < 0 {
			return nil
		}
		desc := &frameDescs[f.Pitch[0]]
		if err := u.walkFrame(c, f, desc, reading); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unpacker) walkFrame(c fieldCoder, f *types.FrameParameters, desc *frameDesc, reading bool) error {
	if reading {
		f.Subframes = make([]types.SubframeParameters, desc.blocks)
	} else {
		need := 1
		if desc.fcb == fcbAWPulses {
			need = 3
		} else if desc.acb == acbAsymmetric {
			need = 2
		}
		if len(f.Subframes) < desc.blocks || len(f.Pitch) < need {
			return fmt.Errorf("%w: frame shape does not match frame type %d", celp.ErrInvalidParameter, f.Pitch[0])
		}
	}

	var cur int
	var pitches [maxBlocks]int
	if desc.acb == acbAsymmetric {
		c.field(&f.Pitch[1], framePitchBits)
		cur, pitches = u.pitch.framePitch(desc, min(max(f.Pitch[1], 0), 1<<framePitchBits-1))
	}
	var aw awState
	switch desc.fcb {
	case fcbSilence:
		if reading {
			f.Energy = grow(f.Energy, 1)
		} else if len(f.Energy) < 1 {
			return fmt.Errorf("%w: missing comfort noise gain", celp.ErrInvalidParameter)
		}
		c.field(&f.Energy[0], 8)
	case fcbAWPulses:
		if err := u.awPosition(c, f, reading); err != nil {
			return err
		}
		aw.parse(f.Pitch[2], [2]int{pitches[0], pitches[1]})
	}

	lastBlock := 0
	for n := 0; n < desc.blocks; n++ {
		sf := &f.Subframes[n]
		if desc.acb == acbHamming {
			c.field(&sf.PitchIndex, blockPitchBitsAt(n))
			pitches[n] = blockPitch(n, min(max(sf.PitchIndex, 0), 1<<blockPitchBitsAt(n)-1), &lastBlock) >> 2
		}
		var bits []int
		switch desc.fcb {
		case fcbSilence:
			continue
		case fcbHardcoded:
			bits = []int{8}
		case fcbAWPulses:
			bits = []int{aw.set1Bits(n), aw.set2Bits(n)}
		default:
			for i := 0; i < excPulseCount(desc); i++ {
				bits = append(bits, desc.pulseBits())
			}
		}
		if reading {
			sf.Pulses = grow(sf.Pulses, len(bits))
			sf.GainIndex = grow(sf.GainIndex, 1)
		} else if len(sf.Pulses) < len(bits) || len(sf.GainIndex) < 1 {
			return fmt.Errorf("%w: block %d shape", celp.ErrInvalidParameter, n)
		}

		switch desc.fcb {
		case fcbHardcoded:
			c.field(&sf.Pulses[0], 8)
			c.field(&sf.GainIndex[0], 6)
			continue
		case fcbAWPulses:
			c.field(&sf.Pulses[0], bits[0])
			c.field(&sf.Pulses[1], bits[1])
			c.field(&sf.Signs, 1)
		default:
			signs := sf.Signs
			k := 0
			for t := 0; t < 5; t++ {
				bit := (signs >> uint(t)) & 1
				c.field(&bit, 1)
				signs = signs&^(1<<uint(t)) | bit<<uint(t)
				c.field(&sf.Pulses[k], bits[k])
				k++
				if t < desc.dblPulses {
					c.field(&sf.Pulses[k], bits[k])
					k++
				}
			}
			sf.Signs = signs
		}
		c.field(&sf.GainIndex[0], 7)
	}
	u.pitch.endFrame(desc, cur, &pitches)
	return nil
}

// awPosition codes the AW start position: six bits, extended by two more
// for indices from 54 on.
func (u *Unpacker) awPosition(c fieldCoder, f *types.FrameParameters, reading bool) error {
	if reading {
		b := 0
		c.field(&b, 6)
		if b >= 54 {
			ext := 0
			c.field(&ext, 2)
			b += (b-54)*3 + ext
		}
		f.Pitch[2] = b
		return nil
	}
	pos := f.Pitch[2]
	if err := celp.CheckIndex("AW position", pos, len(awStartOffset)); err != nil {
		return err
	}
	if pos < 54 {
		c.field(&pos, 6)
		return nil
	}
	hi, lo := 54+(pos-54)/4, (pos-54)%4
	c.field(&hi, 6)
	c.field(&lo, 2)
	return nil
}
