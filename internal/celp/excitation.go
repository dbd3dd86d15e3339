package celp

import "github.com/thesyncim/gocelp/internal/fixed"

// WeightedVectorSum writes wa*a + wb*b into out.
func WeightedVectorSum(out, a, b []float64, wa, wb float64) {
	for i := range out {
		out[i] = wa*a[i] + wb*b[i]
	}
}

// WeightedVectorSumQ writes clip16((a*wa + b*wb + rounder) >> shift) into out.
func WeightedVectorSumQ(out, a, b []int16, wa, wb int32, rounder int32, shift uint) {
	for i := range out {
		out[i] = fixed.Sat16((int32(a[i])*wa + int32(b[i])*wb + rounder) >> shift)
	}
}

// PitchSharpen adds a decayed copy of v delayed by lag: v[i] += beta*v[i-lag]
// for i >= lag, processed in increasing i so earlier additions feed later
// ones.
func PitchSharpen(v []float64, lag int, beta float64) {
	if lag <= 0 {
		return
	}
	for i := lag; i < len(v); i++ {
		v[i] += beta * v[i-lag]
	}
}

// PitchSharpenQ14 is PitchSharpen for a Q13 vector and a Q14 factor.
func PitchSharpenQ14(v []int16, lag int, beta int16) {
	if lag <= 0 {
		return
	}
	for i := lag; i < len(v); i++ {
		v[i] = fixed.Sat16(int32(v[i]) + (int32(v[i-lag])*int32(beta))>>14)
	}
}

// CircAdd writes in[k] + fac*lagged[(k-lag) mod n] into out for k in [0, n).
// out may alias in.
func CircAdd(out, in, lagged []float64, lag int, fac float64, n int) {
	k := 0
	for ; k < lag && k < n; k++ {
		out[k] = in[k] + fac*lagged[n+k-lag]
	}
	for ; k < n; k++ {
		out[k] = in[k] + fac*lagged[k-lag]
	}
}

// ApplyIRFilter circularly convolves the sparse vector s with filter into
// out. Pulses repeated by pitch sharpening are handled by pre-computing the
// filter convolved with its own pitch-delayed copies.
func ApplyIRFilter(out []float64, s *SparseVector, filter []float64) {
	n := len(out)
	lag := s.PitchLag
	fac := s.PitchFac
	f1 := make([]float64, n)
	f2 := make([]float64, n)
	if lag > 0 && lag < n {
		CircAdd(f1, filter, filter, lag, fac, n)
		if lag < n>>1 {
			CircAdd(f2, filter, f1, lag, fac, n)
		}
	}
	clear(out)
	for i := 0; i < s.N; i++ {
		x := s.X[i]
		if x < 0 || x >= n {
			continue
		}
		fp := f2
		switch {
		case lag <= 0 || x >= n-lag:
			fp = filter
		case x >= n-(lag<<1):
			fp = f1
		}
		CircAdd(out, out, fp, x, s.Y[i], n)
	}
}

// PhaseDispersion selects the anti-sparseness filter strength from recent
// pitch gains and an onset detector with hysteresis.
//
// Decide returns 0 for strong filtering, 1 for medium and 2 for none.
type PhaseDispersion struct {
	LowGain   float64 // pitch gain below which a subframe counts as unvoiced
	HighGain  float64 // pitch gain from which no filtering applies
	OnsetGain float64 // fixed gain ratio that signals an onset
	MinFixed  float64 // fixed gains below this disable filtering (0 = off)

	prev      int
	prevFixed float64
	onset     int
}

// Decide updates the state with this subframe's gains. pitchGains holds the
// recent pitch gains with the current one first.
func (p *PhaseDispersion) Decide(pitchGains []float64, fixedGain float64) int {
	nr := 2
	switch g := pitchGains[0]; {
	case g < p.LowGain:
		nr = 0
	case g < p.HighGain:
		nr = 1
	}

	if fixedGain > p.OnsetGain*p.prevFixed {
		p.onset = 2
	} else if p.onset > 0 {
		p.onset--
	}

	if p.onset == 0 {
		count := 0
		for _, g := range pitchGains {
			if g < p.LowGain {
				count++
			}
		}
		if count > 2 {
			nr = 0
		}
		if nr > p.prev+1 {
			nr--
		}
	} else if nr < 2 {
		nr++
	}

	if p.MinFixed > 0 && fixedGain < p.MinFixed {
		nr = 2
	}
	p.prev = nr
	p.prevFixed = fixedGain
	return nr
}

// Onset reports the remaining onset hangover subframes.
func (p *PhaseDispersion) Onset() int { return p.onset }

// Reset clears the selector state.
func (p *PhaseDispersion) Reset() {
	p.prev, p.prevFixed, p.onset = 0, 0, 0
}

// CircConvolveQ15 writes the circular convolution of the sparse Q13 vector
// in with the Q15 filter into out. Zero input samples are skipped.
func CircConvolveQ15(out, in, filter []int16) {
	n := len(out)
	clear(out)
	for i := 0; i < n; i++ {
		x := int32(in[i])
		if x == 0 {
			continue
		}
		for k := 0; k < i; k++ {
			out[k] += int16((x * int32(filter[n+k-i])) >> 15)
		}
		for k := i; k < n; k++ {
			out[k] += int16((x * int32(filter[k-i])) >> 15)
		}
	}
}
