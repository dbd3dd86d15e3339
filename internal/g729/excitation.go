package g729

import (
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/fixed"
)

// onsetDecision flags an onset when the fixed gain more than doubles and
// holds it for two subframes.
func onsetDecision(onset int, gainCode [2]int16) int {
	if gainCode[0]>>1 > gainCode[1] {
		return 2
	}
	return max(onset-1, 0)
}

// voiceDecision classifies the subframe from the pitch gain history
// (newest first) for the Annex D phase dispersion.
func voiceDecision(onset, prev int, gainPit [6]int16) int {
	var v int
	switch {
	case gainPit[0] >= 14745: // 0.9
		v = decisionVoice
	case gainPit[0] <= 9830: // 0.6
		v = decisionNoise
	default:
		v = decisionIntermediate
	}

	low := 0
	for _, g := range gainPit {
		if g < 9830 {
			low++
		}
	}
	if low > 2 && onset == 0 {
		v = decisionNoise
	}
	if onset == 0 && v > prev+1 {
		v--
	}
	if onset != 0 && v < decisionVoice {
		v++
	}
	return v
}

// dispersedExcitation replaces the fixed codebook contribution of in by
// its phase dispersed version.
func dispersedExcitation(out, in, fc []int16, decision int, gainCode int16) {
	var spread [subframeLen]int16
	celp.CircConvolveQ15(spread[:], fc, phaseFilters[decision][:])
	g := int32(gainCode)
	for i := range out {
		v := int32(in[i])
		v -= (g*int32(fc[i]) + 0x2000) >> 14
		v += (g*int32(spread[i]) + 0x2000) >> 14
		out[i] = fixed.Sat16(v)
	}
}
