package evrc

import (
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
)

// lspSplits gives the dimension and size of each split codebook per rate.
var lspSplits = [rateCount][]struct{ dim, size int }{
	RateFull:   {{2, 64}, {2, 64}, {3, 512}, {3, 128}},
	RateHalf:   {{3, 128}, {3, 128}, {4, 256}},
	RateEighth: {{5, 16}, {5, 16}},
}

// acbGains maps the 3-bit adaptive codebook gain index.
var acbGains = [8]float64{0, 0.3, 0.55, 0.7, 0.8, 0.9, 1, 1.2}

// lspInterp is the weight of the current frame's LSPs per subframe.
var lspInterp = [subframes]float64{0.1667, 0.5, 0.8333}

// delayInterp weights the current delay at the start of each subframe.
var delayInterp = [subframes + 2]float64{0, 0.3313, 0.6625, 1, 1}

// postfilterCoeffs per rate: numerator and denominator bandwidth factors,
// long term gain and tilt weight.
var postfilterCoeffs = [rateCount]struct{ gn, gd, lt, tilt float64 }{
	RateFull:   {0.5, 0.8, 0.5, 0.3},
	RateHalf:   {0.5, 0.8, 0.5, 0.3},
	RateEighth: {0.5, 0.5, 0, 0},
}

// The tables below are generated at init from a fixed seed and never
// written afterwards.
var (
	// lspCodebooks[rate][split][index] is a sorted slice of normalized
	// LSP frequencies covering the split's coefficients.
	lspCodebooks [rateCount][][][]float64

	// fcbGainsFull and fcbGainsHalf are the fixed codebook gains.
	fcbGainsFull [32]float64
	fcbGainsHalf [16]float64

	// energyQuant holds the log10 noise amplitude of each eighth rate
	// subframe per energy index.
	energyQuant [256][subframes]float64

	interpFilter = celp.SincFilter(interpRes, interpLen, 0.9)
	gammaTables  [rateCount][2][]float64
)

func init() {
	g := celp.NewTableGen(0xe7c)

	// split entries jitter around evenly spaced mean positions
	step := 0.5 / (lpcOrder + 1)
	for rate, splits := range lspSplits {
		k := 0
		for _, sp := range splits {
			cb := make([][]float64, sp.size)
			for i := range cb {
				v := make([]float64, sp.dim)
				for j := range v {
					v[j] = step*float64(k+j+1) + g.Uniform(-0.45, 0.45)*step
				}
				cb[i] = v
			}
			lspCodebooks[rate] = append(lspCodebooks[rate], cb)
			k += sp.dim
		}
	}

	for i := range fcbGainsFull {
		fcbGainsFull[i] = 8 * math.Pow(1.23, float64(i))
	}
	for i := range fcbGainsHalf {
		fcbGainsHalf[i] = 8 * math.Pow(1.51, float64(i))
	}
	for i := range energyQuant {
		base := 3.3 * float64(i) / 255
		for j := range energyQuant[i] {
			energyQuant[i][j] = base + g.Uniform(-0.1, 0.1)
		}
	}
	for rate, c := range postfilterCoeffs {
		gammaTables[rate] = [2][]float64{celp.GammaTable(c.gn, lpcOrder), celp.GammaTable(c.gd, lpcOrder)}
	}
}
