package wmavoice

import (
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
)

const (
	postAGCAlpha = 0.99
	kalmanSearch = 3 // lags tried on each side of the pitch
)

// postfilter re-synthesizes speech from its LP residual, smoothing the
// residual towards its best matching pitch period on pulse frames, and
// restores the level with an adaptive gain.
type postfilter struct {
	kernel celp.SynthesisKernel
	res    *celp.History[float64] // LP residual of the synthesized speech
	mem    [maxOrder]float64
	buf    [maxOrder + awBlock]float64
	smooth [awBlock]float64
	agc    float64
}

func newPostfilter(k celp.SynthesisKernel) *postfilter {
	return &postfilter{
		kernel: k,
		res:    celp.NewHistory[float64](maxPitch+kalmanSearch, awBlock),
	}
}

func (p *postfilter) reset() {
	p.res.Reset()
	p.mem = [maxOrder]float64{}
	p.agc = 0
}

// process filters one half frame. synth holds len(lpc) samples of history
// followed by the half frame; out receives len(synth)-len(lpc) samples.
func (p *postfilter) process(out, synth, lpc []float64, fcb fcbType, pitch int) {
	order := len(lpc)
	n := len(synth) - order

	w := p.res.Window(n)
	cur := p.res.Lookback()
	res := w[cur : cur+n]
	celp.LPZeroSynthesis(res, lpc, synth, n)

	in := res
	if fcb >= fcbAWPulses && kalmanSmooth(p.smooth[:n], w, cur, n, pitch) {
		in = p.smooth[:n]
	}

	buf := p.buf[:order+n]
	copy(buf, p.mem[:order])
	p.kernel.Synthesize(buf, lpc, in, n)
	copy(p.mem[:order], buf[n:])

	gainControl(out[:n], buf[order:], synth[order:], postAGCAlpha, &p.agc)
	p.res.Advance(n)
}

// kalmanSmooth looks for the lag within kalmanSearch of pitch whose past
// residual correlates best with the current one and pulls the current
// residual towards it. w[cur:cur+n] is the current residual. It reports
// whether out was written.
func kalmanSmooth(out, w []float64, cur, n, pitch int) bool {
	in := w[cur : cur+n]
	var best []float64
	bestDot := 0.0
	for lag := max(minPitch, pitch-kalmanSearch); lag <= min(maxPitch, pitch+kalmanSearch); lag++ {
		hist := w[cur-lag : cur-lag+n]
		if d := celp.Dot(in, hist); d > bestDot {
			bestDot, best = d, hist
		}
	}
	if best == nil {
		return false
	}
	energy := celp.Dot(best, best)
	if energy <= 0 {
		return false
	}
	f := 0.625
	if bestDot <= energy {
		f = energy / (energy + 0.6*bestDot)
	}
	for i := range out {
		out[i] = best[i] + f*(in[i]-best[i])
	}
	return true
}

// gainControl scales in so that its absolute sum follows that of speech,
// smoothing the gain with alpha.
func gainControl(out, in, speech []float64, alpha float64, mem *float64) {
	var se, pe float64
	for i := range out {
		se += math.Abs(speech[i])
		pe += math.Abs(in[i])
	}
	f := 0.0
	if pe != 0 {
		f = (1 - alpha) * se / pe
	}
	m := *mem
	for i := range out {
		m = alpha*m + f
		out[i] = in[i] * m
	}
	*mem = m
}
