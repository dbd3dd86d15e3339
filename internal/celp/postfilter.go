package celp

import "math"

// FormantPostfilter is the short-term postfilter A(z/gn)/A(z/gd) followed
// by tilt compensation and adaptive gain control. Its pole memory, tilt
// memory and AGC gain persist across subframes.
type FormantPostfilter struct {
	TiltGamma  float64 // scale of the impulse response tilt estimate
	TiltLength int     // impulse response length used for the tilt
	AGCAlpha   float64 // AGC smoothing factor

	mem     []float64
	tiltMem float64
	agc     float64
	pole    []float64
	lpcN    []float64
	lpcD    []float64
	kernel  SynthesisKernel
}

// NewFormantPostfilter returns a postfilter for the given LP order.
func NewFormantPostfilter(order, maxSubframe int, tiltGamma float64, tiltLength int, agcAlpha float64, k SynthesisKernel) *FormantPostfilter {
	if k == nil {
		k = DefaultKernel()
	}
	return &FormantPostfilter{
		TiltGamma:  tiltGamma,
		TiltLength: tiltLength,
		AGCAlpha:   agcAlpha,
		mem:        make([]float64, order),
		pole:       make([]float64, order+maxSubframe),
		lpcN:       make([]float64, order),
		lpcD:       make([]float64, order),
		agc:        1,
		kernel:     k,
	}
}

// Process filters speech into out using the subframe LP coefficients and
// the numerator/denominator power tables gn and gd. out and speech must not
// alias. The energy target of the AGC is the energy of speech.
func (f *FormantPostfilter) Process(out, speech, lpc, gn, gd []float64) {
	order := len(f.mem)
	n := len(speech)
	energy := Dot(speech, speech)

	BandwidthExpand(f.lpcN, lpc, gn)
	BandwidthExpand(f.lpcD, lpc, gd)

	pole := f.pole[:order+n]
	copy(pole, f.mem)
	f.kernel.Synthesize(pole, f.lpcD, speech, n)
	// save the pole tail before the zero filter reads the whole buffer
	copy(f.mem, pole[n:n+order])

	LPZeroSynthesis(out, f.lpcN, pole, n)

	tilt := ImpulseTilt(f.lpcN, f.lpcD, f.TiltLength) * f.TiltGamma
	TiltCompensation(&f.tiltMem, tilt, out[:n])
	AdaptiveGainControl(out[:n], out[:n], energy, f.AGCAlpha, &f.agc)
}

// Reset clears all memories.
func (f *FormantPostfilter) Reset() {
	clear(f.mem)
	f.tiltMem = 0
	f.agc = 1
}

// LongTermPostfilter is a harmonic postfilter on the LP residual. It
// searches integer lags around the decoded pitch for the best normalized
// correlation and mixes the delayed residual in with a gain bounded by
// Gamma.
type LongTermPostfilter struct {
	Gamma     float64 // maximum mixing gain
	Search    int     // lags searched on each side of the decoded pitch
	Threshold float64 // minimum normalized correlation to enable filtering
	MinLag    int
	MaxLag    int
}

// Process filters the n residual samples at res[pos:] in place. res must
// hold at least MaxLag+Search samples of history before pos.
func (l *LongTermPostfilter) Process(res []float64, pos, n, pitch int) {
	lo := pitch - l.Search
	hi := pitch + l.Search
	if lo < l.MinLag {
		lo = l.MinLag
	}
	if hi > l.MaxLag {
		hi = l.MaxLag
	}
	cur := res[pos : pos+n]
	best, bestCorr := 0, 0.0
	for lag := lo; lag <= hi; lag++ {
		c := Dot(cur, res[pos-lag:pos-lag+n])
		if c > bestCorr {
			best, bestCorr = lag, c
		}
	}
	if best == 0 {
		return
	}
	past := res[pos-best : pos-best+n]
	e0 := Dot(cur, cur)
	e1 := Dot(past, past)
	if e0 == 0 || e1 == 0 {
		return
	}
	norm := bestCorr / math.Sqrt(e0*e1)
	if norm < l.Threshold {
		return
	}
	g := bestCorr / e1
	if g > 1 {
		g = 1
	}
	g *= l.Gamma
	scale := 1 / (1 + g)
	// past overlaps cur when best < n; work from a copy of the inputs
	tmp := make([]float64, n)
	for i := range tmp {
		tmp[i] = (cur[i] + g*past[i]) * scale
	}
	copy(cur, tmp)
}
