package celp

import "math"

// Dot returns the dot product of a and b over len(a).
func Dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// LPSynthesis runs the all-pole filter 1/A(z) over in, writing out.
// buf holds order samples of filter memory directly followed by the output
// region: out[k] is buf[order+k]. in may alias the output region.
// Products are rounded before accumulation so no platform fuses them.
func LPSynthesis(buf []float64, lpc []float64, in []float64, n int) {
	order := len(lpc)
	for k := 0; k < n; k++ {
		sum := in[k]
		p := order + k
		for i := 1; i <= order; i++ {
			sum -= float64(lpc[i-1] * buf[p-i])
		}
		buf[p] = sum
	}
}

// LPZeroSynthesis runs the all-zero filter A(z) over in into out. in must
// carry order samples of history before index order: in[order+k] is the
// k-th input.
func LPZeroSynthesis(out []float64, lpc []float64, in []float64, n int) {
	order := len(lpc)
	for k := 0; k < n; k++ {
		p := order + k
		v := in[p]
		for i := 1; i <= order; i++ {
			v += lpc[i-1] * in[p-i]
		}
		out[k] = v
	}
}

// ExceedsBound reports whether any |v| > bound.
func ExceedsBound(v []float64, bound float64) bool {
	for _, x := range v {
		if math.Abs(x) > bound {
			return true
		}
	}
	return false
}

// ScaleToEnergy scales in into out so that sum(out^2) == energy. A silent
// input is left at zero.
func ScaleToEnergy(out, in []float64, energy float64) {
	f := Dot(in, in)
	if f != 0 {
		f = math.Sqrt(energy / f)
	}
	for i := range out {
		out[i] = in[i] * f
	}
}

// TiltCompensation applies the first-order filter 1 - tilt*z^-1 in place.
// mem carries the last input sample of the previous call.
func TiltCompensation(mem *float64, tilt float64, samples []float64) {
	n := len(samples)
	if n == 0 {
		return
	}
	last := samples[n-1]
	for i := n - 1; i > 0; i-- {
		samples[i] -= tilt * samples[i-1]
	}
	samples[0] -= tilt * *mem
	*mem = last
}

// AdaptiveGainControl scales in into out so the output energy follows
// speechEnergy, smoothing the per-sample gain with factor alpha. gainMem
// carries the smoothed gain across calls.
func AdaptiveGainControl(out, in []float64, speechEnergy, alpha float64, gainMem *float64) {
	post := Dot(in, in)
	scale := 1.0
	if post != 0 {
		scale = math.Sqrt(speechEnergy / post)
	}
	scale *= 1 - alpha
	mem := *gainMem
	for i := range out {
		mem = alpha*mem + scale
		out[i] = in[i] * mem
	}
	*gainMem = mem
}

// Biquad is a second-order IIR section in direct form II with a gain on
// the input:
//
//	t[n] = gain*x[n] - p0*t[n-1] - p1*t[n-2]
//	y[n] = t[n] + z0*t[n-1] + z1*t[n-2]
type Biquad struct {
	Zero [2]float64
	Pole [2]float64
	Gain float64
	mem  [2]float64
}

// Process filters in into out; they may alias.
func (b *Biquad) Process(out, in []float64) {
	for i := range in {
		t := b.Gain*in[i] - b.Pole[0]*b.mem[0] - b.Pole[1]*b.mem[1]
		out[i] = t + b.Zero[0]*b.mem[0] + b.Zero[1]*b.mem[1]
		b.mem[1] = b.mem[0]
		b.mem[0] = t
	}
}

// Reset clears the filter memory.
func (b *Biquad) Reset() { b.mem = [2]float64{} }

// ImpulseTilt returns the first normalized autocorrelation rh1/rh0 of the
// truncated impulse response of A(z/gn)/A(z/gd) over length samples, or 0
// when it is negative.
func ImpulseTilt(lpcN, lpcD []float64, length int) float64 {
	order := len(lpcD)
	h := make([]float64, order+length)
	in := make([]float64, length)
	in[0] = 1
	for i := 0; i < order && i+1 < length; i++ {
		in[i+1] = lpcN[i]
	}
	LPSynthesis(h, lpcD, in, length)
	hf := h[order:]
	rh0 := Dot(hf, hf)
	rh1 := Dot(hf[:length-1], hf[1:])
	if rh1 < 0 || rh0 == 0 {
		return 0
	}
	return rh1 / rh0
}
