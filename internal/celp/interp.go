package celp

import (
	"math"

	"github.com/thesyncim/gocelp/internal/fixed"
)

// SincFilter returns the causal half of a Hamming-windowed sinc fractional
// delay filter with the given resolution (steps per sample) and taps per
// side. The returned table has resolution*taps+1 entries and is read
// forwards for the right half and backwards for the left half.
//
// cutoff is the normalized passband edge (0.9 for the 61-tap narrowband
// filters).
func SincFilter(resolution, taps int, cutoff float64) []float64 {
	n := resolution * taps
	f := make([]float64, n+1)
	for k := 0; k <= n; k++ {
		x := cutoff * float64(k) / float64(resolution)
		s := 1.0
		if k != 0 {
			s = math.Sin(math.Pi*x) / (math.Pi * x)
		}
		w := 0.54 + 0.46*math.Cos(math.Pi*float64(k)/float64(n))
		f[k] = cutoff * s * w
	}
	return f
}

// SincFilterQ15 is SincFilter rounded to Q15.
func SincFilterQ15(resolution, taps int, cutoff float64) []int16 {
	f := SincFilter(resolution, taps, cutoff)
	q := make([]int16, len(f))
	for i, v := range f {
		q[i] = int16(math.Round(v * 32768))
	}
	return q
}

// Interpolate computes n samples of the fractionally delayed signal into
// buf[outPos:], reading buf around inPos:
//
//	out[k] = sum_i in[k+i]*f[i*p+frac] + in[k-i-1]*f[(i+1)*p-frac]
//
// out and in may overlap: the adaptive codebook reads samples it wrote
// earlier in the same call when the lag is shorter than n, so samples are
// produced strictly in order. Callers guarantee inPos-taps >= 0.
func Interpolate(buf []float64, outPos, inPos int, filter []float64, precision, frac, taps, n int) {
	for k := 0; k < n; k++ {
		idx := 0
		v := 0.0
		c := inPos + k
		for i := 0; i < taps; {
			v += buf[c+i] * filter[idx+frac]
			idx += precision
			i++
			v += buf[c-i] * filter[idx-frac]
		}
		buf[outPos+k] = v
	}
}

// InterpolateQ15 is the fixed-point form of Interpolate over Q15 filter
// taps with rounding. Intermediate sums are not clipped; the final value
// is saturated to int16.
func InterpolateQ15(buf []int16, outPos, inPos int, filter []int16, precision, frac, taps, n int) {
	for k := 0; k < n; k++ {
		idx := 0
		v := int32(0x4000)
		c := inPos + k
		for i := 0; i < taps; {
			v += int32(buf[c+i]) * int32(filter[idx+frac])
			idx += precision
			i++
			v += int32(buf[c-i]) * int32(filter[idx-frac])
		}
		buf[outPos+k] = fixed.Sat16(v >> 15)
	}
}
