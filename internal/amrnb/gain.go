package amrnb

import (
	"math"
	"sort"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/plc"
)

// Gain attenuation per erasure run, pitch and fixed.
var (
	pitchDown = plc.GainSchedule{0.98, 0.98, 0.98, 0.98, 0.98, 0.9}
	fixedDown = plc.GainSchedule{0.98, 0.98, 0.98, 0.98, 0.98, 0.7}
)

// Erased subframes lower the predictor history by this much.
const erasureEnergyOffset = 3.0

// gainIndexBound returns the size of the gain codebooks of mode: pitch
// then fixed (0 when the gains are quantized jointly).
func gainIndexBound(mode int) (int, int) {
	switch {
	case mode == Mode122 || mode == Mode795:
		return len(quaGainPit), len(quaGainCode)
	case mode >= Mode67:
		return len(gainsHigh), 0
	case mode >= Mode515:
		return len(gainsLow), 0
	default:
		return len(gains475) / 2, 0
	}
}

// decodeGains returns the pitch gain and the fixed gain correction
// factor. joint is the gain index of the subframe carrying the joint
// Mode475 index.
func decodeGains(mode, subframe int, index []int, joint int) (pitch, factor float64) {
	if mode == Mode122 || mode == Mode795 {
		return quaGainPit[index[0]] / 16384, quaGainCode[index[1]] / 2048
	}
	var g [2]float64
	switch {
	case mode >= Mode67:
		g = gainsHigh[index[0]]
	case mode >= Mode515:
		g = gainsLow[index[0]]
	default:
		g = gains475[joint<<1+subframe&1]
	}
	return g[0] / 16384, g[1] / 4096
}

// gainHistory holds the pitch and fixed gains of the last five
// subframes, oldest first.
type gainHistory struct {
	pitch [5]float64
	fixed [5]float64
}

func (h *gainHistory) shift() {
	copy(h.pitch[:4], h.pitch[1:])
	copy(h.fixed[:4], h.fixed[1:])
}

// newestFirst returns the pitch gains with the current one first.
func (h *gainHistory) newestFirst() []float64 {
	out := make([]float64, len(h.pitch))
	for i, g := range h.pitch {
		out[len(out)-1-i] = g
	}
	return out
}

// median5 returns the median of v.
func median5(v [5]float64) float64 {
	s := v
	sort.Float64s(s[:])
	return s[2]
}

// concealGains sets the current gains of an erased subframe from the
// median of the history, attenuated for the run length.
func (h *gainHistory) concealGains(run int) {
	last := h.pitch[3]
	h.pitch[4] = math.Min(median5(h.pitch), last) * pitchDown.At(run)
	last = h.fixed[3]
	h.fixed[4] = math.Min(median5(h.fixed), last) * fixedDown.At(run)
}

// smoother implements fixed gain smoothing in stationary background
// noise. Ten subframes of large LSF deviation restart a 40 subframe
// hangover during which smoothing is off.
type smoother struct {
	diffCount int
	hangCount int
}

func (s *smoother) reset() { *s = smoother{} }

// smooth returns the gain synthesis should use. The smoothed value is not
// fed back into the history.
func (s *smoother) smooth(h *gainHistory, lsf, lsfAvg []float64, mode int) float64 {
	diff := 0.0
	for i := range lsf {
		diff += math.Abs(lsfAvg[i]-lsf[i]) / lsfAvg[i]
	}

	s.diffCount++
	if diff <= 0.65 {
		s.diffCount = 0
	}
	if s.diffCount > 10 {
		s.hangCount = 0
		s.diffCount--
	}

	if s.hangCount < 40 {
		s.hangCount++
		return h.fixed[4]
	}
	if mode < Mode74 || mode == Mode102 {
		k := min(max(4*diff-1.6, 0), 1)
		mean := 0.0
		for _, g := range h.fixed {
			mean += g
		}
		mean *= 0.2
		return k*h.fixed[4] + (1-k)*mean
	}
	return h.fixed[4]
}

// newPhaseDispersion returns the anti-sparseness selector.
func newPhaseDispersion() celp.PhaseDispersion {
	return celp.PhaseDispersion{LowGain: 0.6, HighGain: 0.9, OnsetGain: 2, MinFixed: 5}
}
