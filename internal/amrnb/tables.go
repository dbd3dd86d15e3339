package amrnb

import (
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
)

// energyPredFac holds the MA coefficients of the fixed gain predictor,
// newest subframe first.
var energyPredFac = [4]float64{0.68, 0.58, 0.34, 0.19}

// energyMean is the mean fixed codebook energy in dB per mode.
var energyMean = [modeCount]float64{33.0, 33.0, 28.75, 30.0, 30.0, 36.0, 33.0, 36.0}

// predFac is the MA prediction factor of the 3-split LSF residual.
var predFac = [lpcOrder]float64{
	0.29162598, 0.32864380, 0.38363647, 0.40563965, 0.43887329,
	0.35556030, 0.32312012, 0.29806519, 0.26223755, 0.19787598,
}

// lsf5Mean and lsf3Mean are the LSF means in Hz.
var (
	lsf5Mean = [lpcOrder]float64{338, 507, 835, 1247, 1646, 1983, 2408, 2708, 3104, 3345}
	lsf3Mean = [lpcOrder]float64{377, 555, 922, 1340, 1702, 2045, 2526, 2909, 3291, 3531}
)

// lspSub4Init is the LSP vector of the last subframe before the first
// frame; lspAvgInit the initial averaged LSF vector (normalized).
var (
	lspSub4Init = [lpcOrder]float64{30000, 26000, 21000, 15000, 8000, 0, -8000, -15000, -21000, -26000}
	lspAvgInit  = [lpcOrder]float64{1384, 2077, 3420, 5108, 6742, 8122, 9863, 11092, 12714, 13701}
)

// quaGainPit is the Mode122/Mode795 pitch gain quantizer (Q14).
var quaGainPit = [16]float64{
	0, 3277, 6556, 8192, 9830, 11469, 12288, 13107,
	13926, 14746, 15565, 16384, 17203, 18022, 18842, 19661,
}

// trackPosition gives the first positions of the two pulse tracks in
// Mode475 and Mode515, by subset bit and subframe.
var trackPosition = [16]int{0, 2, 0, 3, 0, 2, 0, 3, 1, 3, 2, 4, 1, 4, 1, 4}

// High-pass filter at 60 Hz.
var (
	highpassZeros = [2]float64{-2.0, 1.0}
	highpassPoles = [2]float64{-1.933105469, 0.935913085}
)

const highpassGain = 0.939819335

// Postfilter power tables.
var (
	gammaN122 = celp.GammaTable(0.7, lpcOrder)
	gammaD122 = celp.GammaTable(0.75, lpcOrder)
	gammaN    = celp.GammaTable(0.55, lpcOrder)
	gammaD    = celp.GammaTable(0.7, lpcOrder)
)

// sinc60 is the 1/6 resolution interpolation filter of the adaptive
// codebook, 10 taps per side.
var sinc60 = celp.SincFilter(interpPrec, interpTaps, 0.9)

var (
	// Split VQ codebooks of the LSF residual, in units of 8000/32768 Hz.
	// Entry 0 is zero. Every lsf5 entry holds two coefficient pairs, one
	// for each of the two LSF vectors of a Mode122 frame.
	lsf5      [5][][]float64
	lsf3First [][]float64 // 256 x 3
	lsf3F795  [][]float64 // 512 x 3
	lsf3Mid   [][]float64 // 512 x 3
	lsf3Last  [][]float64 // 512 x 4
	lsf3L515  [][]float64 // 128 x 4

	// quaGainCode is the Mode122/Mode795 fixed gain correction quantizer
	// (Q11).
	quaGainCode [32]float64

	// Joint pitch (Q14) and fixed correction (Q12) gain quantizers.
	gainsHigh [128][2]float64
	gainsLow  [64][2]float64
	gains475  [512][2]float64

	// Phase dispersion impulse responses, strong then medium.
	irFilters    [2][subframeLen]float64
	irFilters795 [2][subframeLen]float64
)

var lsf5Sizes = [5]int{128, 256, 256, 256, 64}

func init() {
	g := celp.NewTableGen(0xa3b)
	for i, n := range lsf5Sizes {
		lsf5[i] = g.Codebook(n, 4, 700)
	}
	lsf3First = g.Codebook(256, 3, 900)
	lsf3F795 = g.Codebook(512, 3, 900)
	lsf3Mid = g.Codebook(512, 3, 1000)
	lsf3Last = g.Codebook(512, 4, 1100)
	lsf3L515 = g.Codebook(128, 4, 1100)

	// geometric from 0.078 to 8.9
	r := math.Pow(18232.0/159.0, 1.0/31)
	v := 159.0
	for i := range quaGainCode {
		quaGainCode[i] = math.Round(v)
		v *= r
	}

	fillGains := func(dst [][2]float64) {
		for i := range dst {
			if i == 0 {
				dst[i] = [2]float64{0, 0.05 * 4096}
				continue
			}
			dst[i][0] = math.Round(g.Uniform(0, 1.2) * 16384)
			dst[i][1] = math.Round(math.Exp(g.Uniform(math.Log(0.05), math.Log(8))) * 4096)
		}
	}
	fillGains(gainsHigh[:])
	fillGains(gainsLow[:])
	fillGains(gains475[:])

	fillIR := func(dst *[2][subframeLen]float64, tails [2]float64) {
		for k, tail := range tails {
			f := &dst[k]
			f[0] = 1
			for i := 1; i < subframeLen; i++ {
				f[i] = g.Uniform(-tail, tail) * math.Exp(-float64(i)/8)
			}
			e := math.Sqrt(celp.Dot(f[:], f[:]))
			for i := range f {
				f[i] /= e
			}
		}
	}
	fillIR(&irFilters, [2]float64{0.6, 0.3})
	fillIR(&irFilters795, [2]float64{0.5, 0.25})
}
