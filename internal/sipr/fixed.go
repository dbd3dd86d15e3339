package sipr

import "github.com/thesyncim/gocelp/internal/celp"

// wideTrack lists the 16 positions of track 0 of the wideband codebook;
// track i is offset by i.
var wideTrack = [16]int{0, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75}

// decodeNarrow places the pulses of a narrowband subframe. lowGain
// selects the three pulse variant of the 5.0 kbit/s codebook, used while
// the previous pitch gain is weak. Every code in range lands inside the
// subframe.
func decodeNarrow(s *celp.SparseVector, mode int, pulses []int, lowGain bool) {
	s.Reset()
	switch mode {
	case Mode6k5:
		for i := 0; i < 3; i++ {
			sign := 1.0
			if pulses[i]&0x10 != 0 {
				sign = -1
			}
			s.Add(3*(pulses[i]&0xf)+i, sign)
		}
	case Mode8k5:
		for i := 0; i < 3; i++ {
			x1 := 3*((pulses[i]>>4)&0xf) + i
			x2 := 3*(pulses[i]&0xf) + i
			sign := 1.0
			if pulses[i]&0x100 != 0 {
				sign = -1
			}
			s.Add(x1, sign)
			if x2 < x1 {
				sign = -sign
			}
			s.Add(x2, sign)
		}
	default:
		code := pulses[0]
		if lowGain {
			offset := 0
			if code&0x200 != 0 {
				offset = 2
			}
			for i := 0; i < 3; i++ {
				x := (code&7)*6 + 4 - 2*i
				sign := 1.0
				if (offset+x)&3 != 0 {
					sign = -1
				}
				s.Add(x, sign)
				code >>= 3
			}
			return
		}
		subset := (code >> 8) & 1
		sign := 1.0
		if code&0x200 != 0 {
			sign = -1
		}
		s.Add(((code>>4)&15)*3+subset, sign)
		s.Add((code&15)*3+subset+1, -sign)
	}
}

// evalIR computes the impulse response of A(z/0.55)/A(z/0.7) over one
// subframe and sharpens it at the integer pitch lag.
func evalIR(k celp.SynthesisKernel, ir, lpc []float64, lag int, sharp float64) {
	var x [subframeLen]float64
	x[0] = 1
	for i := 0; i < lpcOrder; i++ {
		x[i+1] = lpc[i] * irNum[i]
	}
	var den [lpcOrder]float64
	celp.BandwidthExpand(den[:], lpc, irDen)

	var buf [lpcOrder + subframeLen]float64
	k.Synthesize(buf[:], den[:], x[:], subframeLen)
	copy(ir, buf[lpcOrder:])
	celp.PitchSharpen(ir[:subframeLen], lag, sharp)
}

// convolveSparse writes the linear convolution of s with ir into out.
func convolveSparse(out []float64, s *celp.SparseVector, ir []float64) {
	clear(out)
	for i := 0; i < s.N; i++ {
		x, y := s.X[i], s.Y[i]
		for j := x; j < len(out); j++ {
			out[j] += y * ir[j-x]
		}
	}
}
