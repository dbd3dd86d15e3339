package celp

import "github.com/thesyncim/gocelp/internal/fixed"

// LPSynthesisQ12 runs the all-pole filter with Q12 coefficients over in.
// buf holds order samples of memory followed by the output region, as in
// LPSynthesis. With stopOnOverflow set it returns true at the first sample
// that would need clipping, leaving the rest of the output unwritten.
func LPSynthesisQ12(buf []int16, lpc []int16, in []int16, n int, stopOnOverflow bool, shift uint, rounder int32) bool {
	order := len(lpc)
	for k := 0; k < n; k++ {
		p := order + k
		sum := rounder
		for i := 1; i <= order; i++ {
			sum -= int32(lpc[i-1]) * int32(buf[p-i])
		}
		s1 := ((sum >> 12) + int32(in[k])) >> shift
		s := fixed.Sat16(s1)
		if stopOnOverflow && int32(s) != s1 {
			return true
		}
		buf[p] = s
	}
	return false
}

// LPZeroSynthesisQ12 runs the all-zero filter with Q12 coefficients.
// in[order+k] is the k-th input; the preceding order samples are history.
func LPZeroSynthesisQ12(out []int16, lpc []int16, in []int16, n int) {
	order := len(lpc)
	for k := 0; k < n; k++ {
		p := order + k
		sum := int32(in[p]) << 12
		for i := 1; i <= order; i++ {
			sum += int32(lpc[i-1]) * int32(in[p-i])
		}
		out[k] = fixed.Sat16((sum + 0x800) >> 12)
	}
}

// BandwidthExpandQ15 writes lpc[i]*pow[i] (Q15 factors) into out with
// rounding.
func BandwidthExpandQ15(out, lpc, pow []int16) {
	for i := range out {
		out[i] = int16((int32(lpc[i])*int32(pow[i]) + 0x4000) >> 15)
	}
}

// GammaTableQ15 returns gamma^(i+1) in Q15 for i in [0, n).
func GammaTableQ15(gamma float64, n int) []int16 {
	t := GammaTable(gamma, n)
	q := make([]int16, n)
	for i, v := range t {
		q[i] = fixed.Sat16(int32(v*32768 + 0.5))
	}
	return q
}
