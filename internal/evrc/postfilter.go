package evrc

import "github.com/thesyncim/gocelp/internal/celp"

const resLookback = maxDelay + 3

// postfilter filters the LP residual of A(z/gn) with a long term stage,
// resynthesizes it through 1/A(z/gd), compensates the spectral tilt and
// restores the input energy.
type postfilter struct {
	kernel celp.SynthesisKernel
	lt     celp.LongTermPostfilter

	res     [resLookback + maxSubLen]float64
	firMem  [lpcOrder]float64 // speech preceding the subframe
	iirMem  [lpcOrder]float64
	tiltMem float64
	agc     float64
}

func newPostfilter(k celp.SynthesisKernel) *postfilter {
	p := &postfilter{
		kernel: k,
		lt: celp.LongTermPostfilter{
			Search:    3,
			Threshold: 0.5,
			MinLag:    minDelay,
			MaxLag:    maxDelay,
		},
	}
	p.reset()
	return p
}

func (p *postfilter) reset() {
	clear(p.res[:])
	p.firMem = [lpcOrder]float64{}
	p.iirMem = [lpcOrder]float64{}
	p.tiltMem = 0
	p.agc = 1
}

// process filters one subframe of speech into out.
func (p *postfilter) process(out, speech, lpc []float64, pitch, rate int) {
	n := len(speech)
	c := &postfilterCoeffs[rate]
	var lpcN, lpcD [lpcOrder]float64
	celp.BandwidthExpand(lpcN[:], lpc, gammaTables[rate][0])
	celp.BandwidthExpand(lpcD[:], lpc, gammaTables[rate][1])

	var in [lpcOrder + maxSubLen]float64
	copy(in[:], p.firMem[:])
	copy(in[lpcOrder:], speech)
	copy(p.firMem[:], in[n:n+lpcOrder])
	celp.LPZeroSynthesis(p.res[resLookback:], lpcN[:], in[:], n)

	if c.lt > 0 {
		p.lt.Gamma = c.lt
		p.lt.Process(p.res[:], resLookback, n, pitch)
	}

	var buf [lpcOrder + maxSubLen]float64
	copy(buf[:], p.iirMem[:])
	p.kernel.Synthesize(buf[:], lpcD[:], p.res[resLookback:], n)
	copy(p.iirMem[:], buf[n:n+lpcOrder])
	copy(out, buf[lpcOrder:lpcOrder+n])

	if c.tilt > 0 {
		tilt := celp.ImpulseTilt(lpcN[:], lpcD[:], 22) * c.tilt
		celp.TiltCompensation(&p.tiltMem, tilt, out[:n])
	}
	celp.AdaptiveGainControl(out[:n], out[:n], celp.Dot(speech, speech), 0.9, &p.agc)

	copy(p.res[:], p.res[n:])
}
