package sipr

import (
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
)

// MA coefficients of the energy predictors, newest first.
var (
	gainPred   = [4]float64{0.691, 0.504, 0.334, 0.200}
	gainPred16 = [2]float64{0.6, 0.3}
)

// lsfPredictor16 weighs the previous residual for each predictor switch
// value of the wideband mode.
var lsfPredictor16 = [2]float64{0.12, 0.5}

// split dimensions of the LSF codebooks
var (
	lsfDims   = [5]int{2, 2, 2, 2, 2}
	lsfDims16 = [5]int{3, 3, 3, 3, 4}
)

// Highpass applied to the narrowband modes.
var highpass = celp.Biquad{
	Zero: [2]float64{-1.99997, 1},
	Pole: [2]float64{-1.93307352, 0.935891986},
	Gain: 0.939805806,
}

// The tables below are generated at init from a fixed seed and never
// written afterwards.
var (
	// lsfCodebooks[split][index] are residuals in radians added to
	// meanLSF. The last coefficient of the narrowband vector is not a
	// frequency but the scaled last reflection coefficient.
	lsfCodebooks   [5][][]float64
	lsfCodebooks16 [5][][]float64
	meanLSF        [lpcOrder]float64
	meanLSF16      [lpcOrder16]float64

	// gainCodebook holds the narrowband [pitch gain, fixed gain factor]
	// pairs.
	gainCodebook [128][2]float64
	pitchGains16 [16]float64
	fixedGains16 [32]float64

	interpFilter = celp.SincFilter(interpRes, interpTaps, 0.9)

	// weighting of the impulse response that shapes the sparse codebook
	irNum = celp.GammaTable(0.55, lpcOrder)
	irDen = celp.GammaTable(0.7, lpcOrder)

	// 5.0 kbit/s postfilter
	postNum = celp.GammaTable(0.5, lpcOrder)
	postDen = celp.GammaTable(0.75, lpcOrder)

	postDen16 = celp.GammaTable(0.5, lpcOrder16)
)

func init() {
	g := celp.NewTableGen(0x5197)

	for i := range meanLSF[:lpcOrder-1] {
		meanLSF[i] = float64(i+1) * math.Pi / 10.5
	}
	meanLSF[lpcOrder-1] = 0.15
	for i := range meanLSF16 {
		meanLSF16[i] = float64(i+1) * math.Pi / (lpcOrder16 + 1)
	}

	sizes := [5]int{64, 128, 128, 128, 32}
	for s, n := range sizes {
		cb := g.Codebook(n, lsfDims[s], 0.08)
		if s == 4 {
			// the reflection term moves less than the frequencies
			for _, v := range cb {
				v[1] *= 0.4
			}
		}
		lsfCodebooks[s] = cb
	}
	sizes16 := [5]int{128, 256, 128, 128, 128}
	for s, n := range sizes16 {
		lsfCodebooks16[s] = g.Codebook(n, lsfDims16[s], 0.06)
	}

	for i := range gainCodebook {
		gainCodebook[i] = [2]float64{
			0.08 * float64(i&15),
			math.Pow(10, -0.6+0.25*float64(i>>4)) * g.Uniform(0.95, 1.05),
		}
	}
	for i := range pitchGains16 {
		pitchGains16[i] = 0.08 * float64(i)
	}
	for i := range fixedGains16 {
		fixedGains16[i] = math.Pow(10, -0.6+0.06*float64(i))
	}
}
