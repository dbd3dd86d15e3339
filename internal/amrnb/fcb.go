package amrnb

import (
	"fmt"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/plc"
)

// fixedLayout describes the pulse codes of one mode: how many codes, the
// exclusive bound of each, and the number of sign bits.
type fixedLayout struct {
	bounds    []int
	signCount int
}

var fixedLayouts = [modeCount]fixedLayout{
	Mode475: {bounds: []int{1 << 7}, signCount: 2},
	Mode515: {bounds: []int{1 << 7}, signCount: 2},
	Mode59:  {bounds: []int{1 << 9}, signCount: 2},
	Mode67:  {bounds: []int{1 << 11}, signCount: 3},
	Mode74:  {bounds: []int{1 << 13}, signCount: 4},
	Mode795: {bounds: []int{1 << 13}, signCount: 4},
	// four sign bits, two 3-pulse base-5 codes and one 2-pulse code
	Mode102: {bounds: []int{2, 2, 2, 2, 125 << 3, 125 << 3, 1 << 7}},
	// five tracks of two gray coded pulses
	Mode122: {bounds: []int{16, 16, 16, 16, 16, 16, 16, 16, 16, 16}},
}

// checkFixed validates the pulse codes of one subframe.
func checkFixed(mode int, pulses []int, signs int) error {
	l := &fixedLayouts[mode]
	if len(pulses) < len(l.bounds) {
		return fmt.Errorf("%w: %d pulse codes, want %d", celp.ErrInvalidParameter, len(pulses), len(l.bounds))
	}
	for i, n := range l.bounds {
		if err := celp.CheckIndex("pulse code", pulses[i], n); err != nil {
			return err
		}
	}
	if l.signCount > 0 {
		return celp.CheckIndex("pulse signs", signs, 1<<l.signCount)
	}
	return nil
}

// randomFixed draws a valid set of pulse codes for concealment.
func randomFixed(mode int, r *plc.Rand) ([]int, int) {
	l := &fixedLayouts[mode]
	pulses := make([]int, len(l.bounds))
	for i, n := range l.bounds {
		pulses[i] = r.Intn(n)
	}
	signs := 0
	if l.signCount > 0 {
		signs = r.Intn(1 << l.signCount)
	}
	return pulses, signs
}

// decode10BitPulse places three pulses from a 7+3 bit code: the high
// seven bits are three base-5 digits, the low three bits the LSB of each
// pulse.
func decode10BitPulse(code int, pos *[8]int, i1, i2, i3 int) {
	d := celp.Base5Digits(code>>3, 3)
	pos[i1] = d[0]<<1 + code&1
	pos[i2] = d[1]<<1 + (code>>1)&1
	pos[i3] = d[2]<<1 + (code>>2)&1
}

// decode8Pulses31Bits builds the Mode102 codebook vector: four tracks of
// two pulses.
func decode8Pulses31Bits(s *celp.SparseVector, code []int) {
	var pos [8]int
	decode10BitPulse(code[4], &pos, 0, 4, 1)
	decode10BitPulse(code[5], &pos, 2, 6, 5)

	// 5+2 bits: two base-5 digits, then the LSB of each pulse
	t := ((code[6]>>2)*25 + 12) >> 5
	pos[3] = t % 5
	pos[7] = t / 5
	if pos[7]&1 != 0 {
		pos[3] = 4 - pos[3]
	}
	pos[3] = pos[3]<<1 + code[6]&1
	pos[7] = pos[7]<<1 + (code[6]>>1)&1

	s.N = 8
	for i := 0; i < 4; i++ {
		p1 := pos[i]<<2 + i
		p2 := pos[i+4]<<2 + i
		sign := 1.0
		if code[i] != 0 {
			sign = -1
		}
		s.X[i], s.X[i+4] = p1, p2
		s.Y[i] = sign
		if p2 < p1 {
			s.Y[i+4] = -sign
		} else {
			s.Y[i+4] = sign
		}
	}
}

// decodeFixed decodes validated pulse codes into s. Pulses that land on
// the same position are both kept so that Materialize adds them.
func decodeFixed(s *celp.SparseVector, mode, subframe int, pulses []int, signs int) {
	s.Reset()
	switch mode {
	case Mode122:
		// bounds were checked; the call cannot fail
		_ = celp.Decode10Pulses35Bits(s, pulses, celp.GrayDecode8[:], 5, 3)
		return
	case Mode102:
		decode8Pulses31Bits(s, pulses)
		return
	}

	code := pulses[0]
	var x [4]int
	n := 0
	switch {
	case mode <= Mode515:
		subset := (code>>3)&8 + subframe<<1
		x[0] = (code&7)*5 + trackPosition[subset]
		x[1] = ((code>>3)&7)*5 + trackPosition[subset+1]
		n = 2
	case mode == Mode59:
		x[0] = ((code>>1)&7)*5 + (code&1)<<1 + 1
		subset := (code >> 4) & 3
		if subset == 3 {
			subset++
		}
		x[1] = ((code>>6)&7)*5 + subset
		n = 2
	case mode == Mode67:
		x[0] = (code & 7) * 5
		x[1] = ((code>>4)&7)*5 + (code>>2)&2 + 1
		x[2] = ((code>>8)&7)*5 + (code>>6)&2 + 2
		n = 3
	default: // Mode74, Mode795
		x[0] = celp.GrayDecode8[code&7]
		x[1] = celp.GrayDecode8[(code>>3)&7] + 1
		x[2] = celp.GrayDecode8[(code>>6)&7] + 2
		x[3] = celp.GrayDecode8[(code>>10)&7] + (code>>9)&1 + 3
		n = 4
	}
	for i := 0; i < n; i++ {
		sign := -1.0
		if (signs>>uint(i))&1 != 0 {
			sign = 1
		}
		s.Add(x[i], sign)
	}
}
