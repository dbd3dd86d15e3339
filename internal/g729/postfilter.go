package g729

import (
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/fixed"
)

const (
	resLookback = celp.PitchDelayMax + 3
	tiltLen     = 20
)

// postfilter holds the state of the long term, short term and tilt
// stages. The residual history feeds the long term lag search.
type postfilter struct {
	res     [resLookback + subframeLen]int16
	resMem  [lpcOrder]int16 // unfiltered speech before the subframe
	synMem  [lpcOrder]int16 // memory of 1/A(z/gd)
	tiltMem int16
	gain    int16 // AGC gain (Q14)
}

func (p *postfilter) reset() {
	*p = postfilter{gain: gainInit}
}

// residual filters speech through A(z/gn) into the current residual
// window and updates the speech memory.
func (p *postfilter) residual(lpGn []int16, speech []int16) {
	var tmp [lpcOrder + subframeLen]int16
	copy(tmp[:], p.resMem[:])
	copy(tmp[lpcOrder:], speech)
	celp.LPZeroSynthesisQ12(p.res[resLookback:], lpGn, tmp[:], subframeLen)
	copy(p.resMem[:], tmp[subframeLen:])
}

// longTermSearch finds the integer lag around pitch with the highest
// residual correlation and returns it with the Q15 filter gain. A zero
// gain means the subframe is not periodic enough to filter.
func (p *postfilter) longTermSearch(pitch int) (int, int32) {
	cur := p.res[resLookback:]
	lo := max(pitch-3, celp.PitchDelayMin)
	hi := min(pitch+3, celp.PitchDelayMax)

	best, bestCorr := lo, int64(-1)
	for k := lo; k <= hi; k++ {
		lagged := p.res[resLookback-k:]
		var c int64
		for n := range cur {
			c += int64(cur[n]) * int64(lagged[n])
		}
		if c > bestCorr {
			best, bestCorr = k, c
		}
	}
	if bestCorr <= 0 {
		return best, 0
	}

	lagged := p.res[resLookback-best:]
	var e0, e1 int64
	for n := range cur {
		e0 += int64(cur[n]) * int64(cur[n])
		e1 += int64(lagged[n]) * int64(lagged[n])
	}
	// bring the products into a range where the squares fit
	corr := bestCorr
	for max(e0, e1) >= 1<<30 {
		e0 >>= 1
		e1 >>= 1
		corr >>= 1
	}
	if e1 == 0 || 2*corr*corr < e0*e1 {
		return best, 0
	}
	g := min((corr<<15)/e1, 32767)
	return best, int32((g * gammaLTP) >> 15)
}

// longTerm applies res + g*res[-lag], normalized by 1/(1+g), into out.
func (p *postfilter) longTerm(out []int16, lag int, gain int32) {
	cur := p.res[resLookback:]
	if gain == 0 {
		copy(out, cur)
		return
	}
	g0 := int32((1 << 30) / (32768 + int64(gain)))
	g1 := (gain * g0) >> 15
	celp.WeightedVectorSumQ(out[:subframeLen], cur, p.res[resLookback-lag:], g0, g1, 0x4000, 15)
}

// tiltFactor returns the Q15 coefficient of the first order tilt
// compensation, derived from the impulse response of A(z/gn)/A(z/gd).
func tiltFactor(lpGn, lpGd []int16) int16 {
	var num [tiltLen]int16
	num[0] = 4096
	copy(num[1:], lpGn)
	var h [lpcOrder + tiltLen]int16
	celp.LPSynthesisQ12(h[:], lpGd, num[:], tiltLen, false, 0, 0x800)

	var r0, r1 int64
	resp := h[lpcOrder:]
	for i := range resp {
		r0 += int64(resp[i]) * int64(resp[i])
		if i+1 < len(resp) {
			r1 += int64(resp[i]) * int64(resp[i+1])
		}
	}
	if r1 <= 0 || r0 == 0 {
		return 0
	}
	k := min((r1<<15)/r0, 32767)
	return int16(-(k * gammaTilt) >> 15)
}

// process runs the postfilter over one subframe of speech in place and
// reports whether the long term stage found a periodic signal. With apply
// unset only the residual and the periodicity decision are updated.
func (p *postfilter) process(lp []int16, pitch int, speech []int16, apply bool) bool {
	var lpGn, lpGd [lpcOrder]int16
	celp.BandwidthExpandQ15(lpGn[:], lp[1:], gammaNum)
	celp.BandwidthExpandQ15(lpGd[:], lp[1:], gammaDen)

	p.residual(lpGn[:], speech)
	lag, gain := p.longTermSearch(pitch)

	if apply {
		var ltp [subframeLen]int16
		p.longTerm(ltp[:], lag, gain)

		var buf [lpcOrder + subframeLen]int16
		copy(buf[:], p.synMem[:])
		celp.LPSynthesisQ12(buf[:], lpGd[:], ltp[:], subframeLen, false, 0, 0x800)
		copy(p.synMem[:], buf[subframeLen:])

		tilt := int32(tiltFactor(lpGn[:], lpGd[:]))
		prev := p.tiltMem
		for i, y := range buf[lpcOrder:] {
			speech[i] = fixed.Sat16(int32(y) + (tilt*int32(prev)+0x4000)>>15)
			prev = y
		}
		p.tiltMem = prev
	}

	copy(p.res[:], p.res[subframeLen:])
	return gain > 0
}

// shiftLeft shifts v left by s bits, or right when s is negative.
func shiftLeft(v int32, s int) int32 {
	if s >= 0 {
		return v << uint(s)
	}
	return v >> uint(-s)
}

// adaptiveGainControl scales speech so its absolute sum follows
// gainBefore, smoothing the gain sample by sample. It returns the gain
// reached at the end of the subframe.
func adaptiveGainControl(gainBefore, gainAfter int32, speech []int16, gainPrev int16) int16 {
	if gainAfter == 0 && gainBefore != 0 {
		return 0
	}
	var gain int32
	if gainBefore != 0 {
		expBefore := 14 - fixed.Log2(uint32(gainBefore))
		gainBefore = shiftLeft(gainBefore, expBefore)
		expAfter := 14 - fixed.Log2(uint32(gainAfter))
		gainAfter = shiftLeft(gainAfter, expAfter)
		if gainBefore < gainAfter {
			gain = (gainBefore << 15) / gainAfter
			gain = shiftLeft(gain, expAfter-expBefore-1)
		} else {
			gain = ((gainBefore-gainAfter)<<14)/gainAfter + 0x4000
			gain = shiftLeft(gain, expAfter-expBefore)
		}
		gain = (gain*agcFac1 + 0x4000) >> 15
	}

	g := int32(gainPrev)
	for n, s := range speech {
		g = (agcFactor*g + 0x4000) >> 15
		g = int32(fixed.Sat16(gain + g))
		speech[n] = fixed.Sat16((int32(s)*g + 0x2000) >> 14)
	}
	return int16(g)
}

// highpass is the second order output filter with a cut-off at 140 Hz.
// f holds the previous outputs before rounding (Q12), x the previous two
// inputs.
type highpass struct {
	f [2]int32
	x [2]int16
}

func (h *highpass) reset() { *h = highpass{} }

func (h *highpass) process(out, in []int16) {
	for i, v := range in {
		tmp := int32((int64(h.f[0]) * 15836) >> 13)
		tmp += int32((int64(h.f[1]) * -7667) >> 13)
		tmp += 7699 * (int32(v) - 2*int32(h.x[0]) + int32(h.x[1]))
		out[i] = fixed.Sat16((tmp + 0x800) >> 12)
		h.f[1], h.f[0] = h.f[0], tmp
		h.x[1], h.x[0] = h.x[0], v
	}
}
