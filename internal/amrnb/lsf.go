package amrnb

import (
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/plc"
)

// lsfDecayFactor pulls concealed LSFs towards the mean.
const lsfDecayFactor = 0.9

// lsfState carries the LSF prediction and interpolation memory.
type lsfState struct {
	prevResidual [lpcOrder]float64 // residual of the previous frame, table units
	prevLSP      [lpcOrder]float64 // LSP of the last subframe of the previous frame

	// lsfQ holds the interpolated normalized LSFs of each subframe and
	// lsfAvg their long term average; both drive fixed gain smoothing.
	lsfQ   [subframes][lpcOrder]float64
	lsfAvg [lpcOrder]float64
}

func (s *lsfState) reset() {
	s.prevResidual = [lpcOrder]float64{}
	for i := range s.prevLSP {
		s.prevLSP[i] = lspSub4Init[i] / 32768
		s.lsfAvg[i] = lspAvgInit[i] / 32768
		s.lsfQ[3][i] = s.lsfAvg[i]
	}
}

// lsfSizes returns the codebook size of every LSF index of mode.
func lsfSizes(mode int) []int {
	switch {
	case mode == Mode122:
		return []int{128, 256, 512, 256, 64}
	case mode == Mode795:
		return []int{512, 512, 512}
	case mode <= Mode515:
		return []int{256, 256, 128}
	default:
		return []int{256, 512, 512}
	}
}

// stabilize enforces the minimum spacing and keeps the top LSF below the
// upper bound.
func stabilize(lsf []float64) {
	celp.SetMinDistLSF(lsf, minSpacing)
	if lsf[lpcOrder-1] > maxLSF {
		celp.StabilizeLSF(lsf, minSpacing, minSpacing, maxLSF)
	}
}

// interpolateLSF spreads lsfNew over the four subframes for gain
// smoothing. This runs over all four subframes in every mode.
func (s *lsfState) interpolateLSF(lsfNew []float64) {
	for i := range s.lsfQ {
		celp.WeightedSum(s.lsfQ[i][:], s.lsfQ[3][:], lsfNew, 0.25*float64(3-i), 0.25*float64(i+1))
	}
}

// interpolateQuarter fills lsp[0..2] in quarter steps from the previous
// frame towards lsp[3].
func (s *lsfState) interpolateQuarter(lsp *[subframes][lpcOrder]float64) {
	for i := 1; i <= 3; i++ {
		celp.InterpolateLSP(lsp[i-1][:], s.prevLSP[:], lsp[3][:], 0.25*float64(i))
	}
}

// decode5 decodes the five split Mode122 indices into the LSPs of
// subframes 1 and 3 and interpolates the other two.
func (s *lsfState) decode5(idx []int, lsp *[subframes][lpcOrder]float64) {
	q := [5][]float64{
		lsf5[0][idx[0]],
		lsf5[1][idx[1]],
		lsf5[2][idx[2]>>1],
		lsf5[3][idx[3]],
		lsf5[4][idx[4]],
	}
	negate := idx[2]&1 != 0

	var noResidual [lpcOrder]float64
	for i := range noResidual {
		noResidual[i] = s.prevResidual[i]*lsfResidual*predFac122 + lsf5Mean[i]
	}

	split := func(out []float64, offset int, update bool) {
		var r, lsf [lpcOrder]float64
		for i := range q {
			r[2*i] = q[i][offset]
			r[2*i+1] = q[i][offset+1]
		}
		if negate {
			r[4], r[5] = -r[4], -r[5]
		}
		if update {
			s.prevResidual = r
		}
		for i := range lsf {
			lsf[i] = r[i]*(lsfResidual/8000) + noResidual[i]*(1.0/8000)
		}
		stabilize(lsf[:])
		if update {
			s.interpolateLSF(lsf[:])
		}
		celp.LSF2LSP(out, lsf[:])
	}
	split(lsp[1][:], 0, false)
	split(lsp[3][:], 2, true)

	celp.WeightedSum(lsp[0][:], s.prevLSP[:], lsp[1][:], 0.5, 0.5)
	celp.WeightedSum(lsp[2][:], lsp[1][:], lsp[3][:], 0.5, 0.5)
}

// decode3 decodes the three split indices of the lower modes.
func (s *lsfState) decode3(mode int, idx []int, lsp *[subframes][lpcOrder]float64) {
	first, mid, last := lsf3First, idx[1], lsf3Last
	if mode == Mode795 {
		first = lsf3F795
	}
	if mode <= Mode515 {
		mid <<= 1
		last = lsf3L515
	}
	var r, lsf [lpcOrder]float64
	copy(r[0:3], first[idx[0]])
	copy(r[3:6], lsf3Mid[mid])
	copy(r[6:10], last[idx[2]])

	for i := range lsf {
		lsf[i] = (r[i]+s.prevResidual[i]*predFac[i])*(lsfResidual/8000) + lsf3Mean[i]*(1.0/8000)
	}
	stabilize(lsf[:])

	s.interpolateLSF(lsf[:])
	s.prevResidual = r

	celp.LSF2LSP(lsp[3][:], lsf[:])
	s.interpolateQuarter(lsp)
}

// conceal derives the LSPs of an erased frame by decaying the last LSFs
// towards the mean. The residual memory is rewritten so that the next
// good frame predicts from the concealed vector.
func (s *lsfState) conceal(mode int, lsp *[subframes][lpcOrder]float64) {
	mean, pred := &lsf3Mean, predFac[:]
	var pred122 [lpcOrder]float64
	if mode == Mode122 {
		mean = &lsf5Mean
		for i := range pred122 {
			pred122[i] = predFac122
		}
		pred = pred122[:]
	}

	var lsf, target [lpcOrder]float64
	lsf = s.lsfQ[3]
	for i := range target {
		target[i] = mean[i] / 8000
	}
	plc.DecayLSF(lsf[:], target[:], lsfDecayFactor)
	stabilize(lsf[:])

	for i := range lsf {
		s.prevResidual[i] = (lsf[i]*8000-mean[i])/lsfResidual - pred[i]*s.prevResidual[i]
	}
	s.interpolateLSF(lsf[:])

	celp.LSF2LSP(lsp[3][:], lsf[:])
	s.interpolateQuarter(lsp)
}

// updateAverage folds the last subframe LSFs into the running average.
// The average used by smoothing within a frame excludes that frame.
func (s *lsfState) updateAverage() {
	celp.WeightedSum(s.lsfAvg[:], s.lsfAvg[:], s.lsfQ[3][:], 0.84, 0.16)
}
