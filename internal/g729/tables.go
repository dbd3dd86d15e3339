package g729

import (
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
)

// lspInit is the LSP vector (Q15) the first frame interpolates from.
var lspInit = [lpcOrder]int16{30000, 26000, 21000, 15000, 8000, 0, -8000, -15000, -21000, -26000}

// energyPred holds the MA coefficients of the fixed gain predictor (Q14),
// newest first: 0.68, 0.58, 0.34, 0.19.
var energyPred = []int16{11141, 9503, 5571, 3113}

// Pulse tracks of the 4 pulse codebook: three 3-bit tracks on a grid of
// five and a fourth 4-bit track covering positions 3 and 4 mod 5.
var (
	track13 = []int{0, 5, 10, 15, 20, 25, 30, 35}
	track4  = []int{3, 4, 8, 9, 13, 14, 18, 19, 23, 24, 28, 29, 33, 34, 38, 39}
)

// Gray coded tracks of the Annex D 2 pulse codebook.
var (
	track1Gray = []int{1, 3, 8, 6, 18, 16, 11, 13, 38, 36, 31, 33, 21, 23, 28, 26}
	track2Gray = []int{
		0, 2, 5, 4, 12, 10, 7, 9, 25, 24, 20, 22, 14, 15, 19, 17,
		36, 31, 21, 26, 1, 6, 16, 11, 27, 29, 32, 30, 39, 37, 34, 35,
	}
)

// Postfilter constants (Q15).
const (
	gammaLTP  = 16384 // 0.5
	gammaTilt = 26214 // 0.8
	agcFactor = 32358 // 0.9875
	agcFac1   = 32768 - agcFactor
)

// Voicing decisions of the Annex D phase dispersion.
const (
	decisionNoise = iota
	decisionIntermediate
	decisionVoice
)

// The codebooks below are generated once at init from a fixed seed and
// never written afterwards.
var (
	// lspStage1 is the first stage LSF codebook (Q13 radians); every entry
	// is an ordered vector.
	lspStage1 [128][lpcOrder]int16
	// lspStage2 holds the second stage residual vectors; the low five
	// coefficients come from one index, the high five from another.
	lspStage2 [32][lpcOrder]int16

	// maPredictor[m][k] weights the k-th past quantizer output under
	// predictor m (Q15); maPredictorSum is one minus their sum (Q15) and
	// maPredictorSumInv its inverse (Q12).
	maPredictor       [2][maPredOrder][lpcOrder]int16
	maPredictorSum    [2][lpcOrder]int16
	maPredictorSumInv [2][lpcOrder]int16

	// Conjugate gain codebooks: pitch gain (Q14) and fixed gain
	// correction (Q12). The two stage entries are added.
	gain1st8k  [8][2]int16
	gain2nd8k  [16][2]int16
	gain1st6k4 [8][2]int16
	gain2nd6k4 [8][2]int16

	// phaseFilters are the Annex D dispersion responses (Q15), strongest
	// first. The voiced filter is a unit impulse.
	phaseFilters [3][subframeLen]int16

	interpFilter = celp.SincFilterQ15(6, interpLen-1, 0.9)
	gammaNum     = celp.GammaTableQ15(0.55, lpcOrder)
	gammaDen     = celp.GammaTableQ15(0.70, lpcOrder)
)

func init() {
	g := celp.NewTableGen(0x729)

	for i := range lspStage1 {
		v := g.Ascending(lpcOrder, 0, 25736, 600)
		for j, x := range v {
			lspStage1[i][j] = int16(math.Round(x))
		}
	}
	for i, v := range g.CodebookQ(len(lspStage2), lpcOrder, 420) {
		copy(lspStage2[i][:], v)
	}

	taps := [2][maPredOrder]float64{{0.26, 0.21, 0.15, 0.1}, {0.19, 0.1, 0.06, 0.03}}
	for m := range maPredictor {
		for i := 0; i < lpcOrder; i++ {
			sum := 0.0
			for k := 0; k < maPredOrder; k++ {
				c := taps[m][k] * g.Uniform(0.85, 1.15)
				maPredictor[m][k][i] = int16(math.Round(c * 32768))
				sum += float64(maPredictor[m][k][i]) / 32768
			}
			maPredictorSum[m][i] = int16(math.Round((1 - sum) * 32768))
			maPredictorSumInv[m][i] = int16(math.Round(4096 / (1 - sum)))
		}
	}

	fill := func(t [][2]int16, pitchHi, corrLo, corrHi float64) {
		for i := range t {
			t[i][0] = int16(math.Round(g.Uniform(0, pitchHi) * 16384))
			t[i][1] = int16(math.Round(g.Uniform(corrLo, corrHi) * 4096))
		}
	}
	fill(gain1st8k[:], 0.7, 0.05, 1.9)
	fill(gain2nd8k[:], 0.5, 0.05, 1.5)
	fill(gain1st6k4[:], 0.7, 0, 1.9)
	fill(gain2nd6k4[:], 0.5, 0, 1.5)

	for d, decay := range []float64{decisionNoise: 0.8, decisionIntermediate: 0.55} {
		f := make([]float64, subframeLen)
		for i := range f {
			f[i] = g.Uniform(-1, 1) * math.Pow(decay, float64(i))
		}
		f[0] = math.Abs(f[0]) + 1
		e := 0.0
		for _, x := range f {
			e += x * x
		}
		for i, x := range f {
			phaseFilters[d][i] = int16(math.Max(-32768, math.Min(32767, math.Round(x/math.Sqrt(e)*32768))))
		}
	}
	phaseFilters[decisionVoice][0] = 32767
}
