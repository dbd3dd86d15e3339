package sipr

import (
	"math"
	"sort"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/plc"
)

const (
	lsfPredictor = 0.33
	lsfDecay     = 0.9

	// scale from the last narrowband LSF to its reflection coefficient
	reflectionScale = 6.153848 / math.Pi
	maxReflection   = 0.9
)

// dequant concatenates the split codebook entries selected by idx.
func dequant(out []float64, idx []int, cbs *[5][][]float64) {
	k := 0
	for i, cb := range cbs {
		k += copy(out[k:], cb[idx[i]])
	}
}

// narrowLSF carries the narrowband spectral memory.
type narrowLSF struct {
	residual [lpcOrder]float64 // previous frame residual
	lsf      [lpcOrder]float64 // previous frame LSFs, radians
	prevISP  [lpcOrder]float64
}

func (s *narrowLSF) reset() {
	s.residual = [lpcOrder]float64{}
	s.lsf = meanLSF
	toISP(s.prevISP[:], s.lsf[:])
}

// toISP converts decoded LSFs to the immittance domain.
func toISP(isp, lsf []float64) {
	celp.Rad2LSP(isp[:lpcOrder-1], lsf[:lpcOrder-1])
	k := lsf[lpcOrder-1] * reflectionScale
	isp[lpcOrder-1] = min(max(k, -maxReflection), maxReflection)
}

// decode returns the ISPs of a good frame.
func (s *narrowLSF) decode(idx []int) [lpcOrder]float64 {
	var res, lsf [lpcOrder]float64
	dequant(res[:], idx, &lsfCodebooks)
	for i := range lsf {
		lsf[i] = s.residual[i]*lsfPredictor + res[i] + meanLSF[i]
	}
	// the reflection term is outside the ordering
	sort.Float64s(lsf[:lpcOrder-1])
	celp.SetMinDistLSF(lsf[:lpcOrder-1], lsfDiffMin)
	lsf[lpcOrder-1] = min(lsf[lpcOrder-1], 1.3*math.Pi)

	s.residual = res
	s.lsf = lsf
	var isp [lpcOrder]float64
	toISP(isp[:], lsf[:])
	return isp
}

// conceal returns the ISPs of an erased frame: the last LSFs pulled
// towards the mean. The residual memory fades with them.
func (s *narrowLSF) conceal() [lpcOrder]float64 {
	plc.DecayLSF(s.lsf[:], meanLSF[:], lsfDecay)
	for i := range s.residual {
		s.residual[i] *= 0.5
	}
	var isp [lpcOrder]float64
	toISP(isp[:], s.lsf[:])
	return isp
}

// interpolate fills lpc with the coefficients of every subframe. Subframe
// i uses the ISPs at the middle of its span between the previous and the
// current frame.
func (s *narrowLSF) interpolate(lpc [][lpcOrder]float64, isp [lpcOrder]float64) {
	step := 1 / float64(len(lpc))
	t := step / 2
	var tmp [lpcOrder]float64
	for i := range lpc {
		celp.InterpolateLSP(tmp[:], s.prevISP[:], isp[:], t)
		celp.ISP2LPC(tmp[:], lpc[i][:])
		t += step
	}
	s.prevISP = isp
}

// wideLSF carries the wideband spectral memory.
type wideLSF struct {
	residual [lpcOrder16]float64
	lsf      [lpcOrder16]float64
	prevLSP  [lpcOrder16]float64
}

func (s *wideLSF) reset() {
	s.residual = [lpcOrder16]float64{}
	s.lsf = meanLSF16
	celp.Rad2LSP(s.prevLSP[:], s.lsf[:])
}

func stabilize16(lsf []float64) {
	const gap = lsfDiffMin / 2
	celp.StabilizeLSF(lsf, gap, gap, math.Pi-gap)
}

// decode returns the LSFs of a good frame given the predictor switch and
// the split indices.
func (s *wideLSF) decode(predictor int, idx []int) {
	var res [lpcOrder16]float64
	dequant(res[:], idx, &lsfCodebooks16)
	q := lsfPredictor16[predictor]
	for i := range s.lsf {
		s.lsf[i] = (1-q)*res[i] + q*s.residual[i] + meanLSF16[i]
	}
	s.residual = res
	stabilize16(s.lsf[:])
}

// conceal pulls the last LSFs towards the mean.
func (s *wideLSF) conceal() {
	plc.DecayLSF(s.lsf[:], meanLSF16[:], lsfDecay)
	for i := range s.residual {
		s.residual[i] *= 0.5
	}
	stabilize16(s.lsf[:])
}

// filters converts the current LSFs to the LP coefficients of both
// subframes: the first halfway from the previous frame, the second at the
// current frame.
func (s *wideLSF) filters(lpc *[subframes16][lpcOrder16]float64) {
	var lsp, mid [lpcOrder16]float64
	celp.Rad2LSP(lsp[:], s.lsf[:])
	celp.WeightedSum(mid[:], s.prevLSP[:], lsp[:], 0.5, 0.5)
	celp.LSP2LPC(mid[:], lpc[0][:])
	celp.LSP2LPC(lsp[:], lpc[1][:])
	s.prevLSP = lsp
}
