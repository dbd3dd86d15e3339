package sipr

import "github.com/thesyncim/gocelp/internal/celp"

const (
	narrowTilt = 0.4
	agcAlpha   = 0.9
	crossfade  = 30
)

// narrowPostfilter is the 5.0 kbit/s postfilter. It runs on the
// excitation before synthesis: 1/A(z/0.75), a fixed tilt, then A(z/0.5).
type narrowPostfilter struct {
	kernel  celp.SynthesisKernel
	poleMem [lpcOrder]float64
	zeroMem [lpcOrder]float64
	tiltMem float64
}

func (p *narrowPostfilter) reset() {
	p.poleMem = [lpcOrder]float64{}
	p.zeroMem = [lpcOrder]float64{}
	p.tiltMem = 0
}

// process filters one subframe in place.
func (p *narrowPostfilter) process(samples, lpc []float64) {
	var lpcN, lpcD [lpcOrder]float64
	celp.BandwidthExpand(lpcN[:], lpc, postNum)
	celp.BandwidthExpand(lpcD[:], lpc, postDen)

	var buf [lpcOrder + subframeLen]float64
	copy(buf[:], p.poleMem[:])
	p.kernel.Synthesize(buf[:], lpcD[:], samples, subframeLen)
	copy(p.poleMem[:], buf[subframeLen:])

	pole := buf[lpcOrder:]
	celp.TiltCompensation(&p.tiltMem, narrowTilt, pole)

	var in [lpcOrder + subframeLen]float64
	copy(in[:], p.zeroMem[:])
	copy(in[lpcOrder:], pole)
	copy(p.zeroMem[:], in[subframeLen:])
	celp.LPZeroSynthesis(samples, lpcN[:], in[:], subframeLen)
}

// widePostfilter is the wideband formant enhancer 1/A(z/0.5). The filter
// changes once per frame; the first samples crossfade from the previous
// frame's filter to the new one.
type widePostfilter struct {
	kernel celp.SynthesisKernel
	prev   [lpcOrder16]float64
	mem    [lpcOrder16]float64
	agc    float64
}

func (p *widePostfilter) reset() {
	p.prev = [lpcOrder16]float64{}
	p.mem = [lpcOrder16]float64{}
	p.agc = 1
}

// process filters one frame of speech into out.
func (p *widePostfilter) process(out, speech, lpc []float64) {
	const n = subframes16 * subframeLen16
	var cur [lpcOrder16]float64
	celp.BandwidthExpand(cur[:], lpc, postDen16)

	var old, next [lpcOrder16 + n]float64
	copy(old[:], p.mem[:])
	copy(next[:], p.mem[:])
	p.kernel.Synthesize(old[:lpcOrder16+crossfade], p.prev[:], speech, crossfade)
	p.kernel.Synthesize(next[:], cur[:], speech, n)

	for i := 0; i < crossfade; i++ {
		s := float64(i) / crossfade
		a, b := old[lpcOrder16+i], next[lpcOrder16+i]
		out[i] = a + s*(b-a)
	}
	copy(out[crossfade:n], next[lpcOrder16+crossfade:])
	copy(p.mem[:], next[n:])
	p.prev = cur

	celp.AdaptiveGainControl(out[:n], out[:n], celp.Dot(speech[:n], speech[:n]), agcAlpha, &p.agc)
}
