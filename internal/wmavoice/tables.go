package wmavoice

import (
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
)

// The LSP codebooks, the gain tables and the hardcoded excitation are
// generated once from a fixed seed with the stream format's dimensions and
// dequantization ranges. They are read-only after init.

// gainPredCoeffs weights the six past fixed gain errors, newest first.
var gainPredCoeffs = [6]float64{0.8169, -0.06545, 0.1726, 0.0185, -0.0359, 0.0458}

// Gain prediction constants in the natural log domain.
const (
	gainPredOffset = 5.2409161640
	predErrMin     = -2.9957322736 // log(0.05)
	predErrMax     = 1.6094379124  // log(5)
)

// Fractional delay filters.
const (
	ipol1Res  = 17 // table stride of the per-sample pitch filter
	ipol1Taps = 9
	ipol2Res  = 4 // quarter sample block pitch
	ipol2Taps = 8
)

// lspStage is one dequantization stage: entry v adds cb[v] to
// lsps[offset:offset+len(cb[v])].
type lspStage struct {
	offset int
	bits   int
	cb     [][]float64
}

// stageSpec lists the size and range of a stage as the bitstream defines
// them: entries are base + mul*t for 8-bit t.
type stageSpec struct {
	offset, dim, size int
	mul, base         float64
}

var (
	lsp10i = []stageSpec{
		{0, 10, 256, 5.2187144800e-3, math.Pi * -2.15522e-1},
		{0, 10, 64, 1.4626986422e-3, math.Pi * -6.1646e-2},
		{0, 10, 32, 9.6179549166e-4, math.Pi * -3.3486e-2},
		{0, 10, 32, 1.1325736225e-3, math.Pi * -5.7408e-2},
	}
	lsp10r = []stageSpec{
		{0, 20, 128, 2.5807601174e-3, math.Pi * -1.07448e-1},
		{0, 20, 64, 1.2354460219e-3, math.Pi * -5.2706e-2},
		{0, 20, 64, 1.1763821673e-3, math.Pi * -5.1634e-2},
	}
	lsp16i = []stageSpec{
		{0, 5, 256, 3.3439586280e-3, math.Pi * -1.27576e-1},
		{0, 5, 64, 6.9908173703e-4, math.Pi * -2.4292e-2},
		{5, 5, 128, 3.3216608306e-3, math.Pi * -1.28094e-1},
		{5, 5, 64, 1.0334960326e-3, math.Pi * -3.2128e-2},
		{10, 6, 128, 3.1899104283e-3, math.Pi * -1.29816e-1},
	}
	lsp16r = []stageSpec{
		{0, 10, 128, 1.2232979501e-3, math.Pi * -5.5830e-2},
		{10, 10, 128, 1.4062241527e-3, math.Pi * -5.2908e-2},
		{20, 12, 128, 1.6114744851e-3, math.Pi * -5.4776e-2},
	}
)

// Dequantization stages, built in init.
var (
	stages10i, stages10r []lspStage
	stages16i, stages16r []lspStage
)

// meanLSF holds the LSF means per order and mean set.
var (
	meanLSF10 [2][10]float64
	meanLSF16 [2][16]float64
)

// interp10 and interp16 hold the residual interpolation weights towards
// the previous superframe: [table][index][frame][lsp].
var (
	interp10 [2][32][2][10]float64
	interp16 [2][32][2][16]float64
)

// Gain tables.
var (
	gainACB       [128]float64 // linear adaptive codebook gain
	gainFCB       [128]float64 // log fixed codebook gain correction
	gainUniversal [64]float64  // hardcoded excitation gain
	gainSilence   [256]float64 // comfort noise gain
)

// stdCodebook is the hardcoded excitation read at an offset.
var stdCodebook [1000]float64

// Interpolation filters, built in init.
var (
	ipol1 []float64
	ipol2 []float64
)

// awStartOffset maps the AW position index to the first pulse offset.
var awStartOffset = [94]int{
	-11, -9, -7, -5, -3, -1, 1, 3, 5, 7, 9, 11,
	13, 15, 18, 17, 19, 20, 21, 22, 23, 24, 25, 26,
	27, 28, 29, 30, 31, 32, 33, 35, 37, 39, 41, 43,
	45, 47, 49, 51, 53, 55, 57, 59, 61, 63, 65, 67,
	69, 71, 73, 75, 77, 79, 81, 83, 85, 87, 89, 91,
	93, 95, 97, 99, 101, 103, 105, 107, 109, 111, 113, 115,
	117, 119, 121, 123, 125, 127, 129, 131, 133, 135, 137, 139,
	141, 143, 145, 147, 149, 151, 153, 155, 157, 159,
}

// dcFilter removes ultra low frequency noise from the output.
var dcFilter = celp.Biquad{
	Zero: [2]float64{-1.99997, 1},
	Pole: [2]float64{-1.9330735188, 0.93589198496},
	Gain: 0.93980580475,
}

func init() {
	g := celp.NewTableGen(0x3a7e)

	build := func(specs []stageSpec) []lspStage {
		out := make([]lspStage, len(specs))
		for i, s := range specs {
			center := -s.base / s.mul
			width := 40.0
			if i == 0 {
				width = 60
			}
			cb := make([][]float64, s.size)
			for v := range cb {
				cb[v] = make([]float64, s.dim)
				for m := range cb[v] {
					t := center
					if v != 0 {
						t = math.Round(center + g.Uniform(-width, width))
					}
					t = min(max(t, 0), 255)
					cb[v][m] = s.base + s.mul*t
				}
			}
			out[i] = lspStage{offset: s.offset, bits: bitsFor(s.size), cb: cb}
		}
		return out
	}
	stages10i = build(lsp10i)
	stages10r = build(lsp10r)
	stages16i = build(lsp16i)
	stages16r = build(lsp16r)

	for set := 0; set < 2; set++ {
		warp := 1 + 0.08*float64(set)
		for i := range meanLSF10[set] {
			meanLSF10[set][i] = math.Pi * math.Pow(float64(i+1)/11, warp)
		}
		for i := range meanLSF16[set] {
			meanLSF16[set][i] = math.Pi * math.Pow(float64(i+1)/17, warp)
		}
	}

	for t := 0; t < 2; t++ {
		first, second := 0.66, 0.33
		if t == 1 {
			first, second = 0.5, 0.25
		}
		for k := 0; k < 32; k++ {
			spread := 0.3 * float64(k) / 31
			for n := 0; n < 16; n++ {
				w0 := first + g.Uniform(-spread, spread)
				w1 := second + g.Uniform(-spread, spread)/2
				if n < 10 {
					interp10[t][k][0][n] = w0
					interp10[t][k][1][n] = w1
				}
				interp16[t][k][0][n] = w0
				interp16[t][k][1][n] = w1
			}
		}
	}

	for i := range gainACB {
		gainACB[i] = 0.07 * float64(i&15)
		gainFCB[i] = -2 + 0.6*float64(i>>4) + g.Uniform(-0.05, 0.05)
	}
	for i := range gainUniversal {
		gainUniversal[i] = 0.002 * math.Pow(1.09, float64(i))
	}
	for i := range gainSilence {
		gainSilence[i] = 0.0005 * math.Pow(1.02, float64(i))
	}
	for i := range stdCodebook {
		stdCodebook[i] = g.Uniform(-1, 1)
	}

	ipol1 = asymmetricFilter()
	ipol2 = celp.SincFilter(ipol2Res, ipol2Taps, 0.9)
}

// bitsFor returns log2 of a power of two size.
func bitsFor(size int) int {
	n := 0
	for 1<<n < size {
		n++
	}
	return n
}

// asymmetricFilter builds the per-sample pitch filter. Fraction index f
// in [1, 9] evaluates the signal (f-5)/8 samples after the integer lag;
// the right half of the table serves the causal taps and the left half
// the anticausal ones, which overlap at two phases where the right half
// wins.
func asymmetricFilter() []float64 {
	h := func(t float64) float64 {
		const support = ipol1Taps + 0.5
		if math.Abs(t) >= support {
			return 0
		}
		w := 0.54 + 0.46*math.Cos(math.Pi*t/support)
		if t == 0 {
			return w
		}
		return math.Sin(math.Pi*t) / (math.Pi * t) * w
	}
	f := make([]float64, ipol1Res*ipol1Taps+1)
	for m := range f {
		i, r := m/ipol1Res, m%ipol1Res
		if r <= 9 {
			f[m] = h(float64(i) - float64(r-5)/8)
		} else {
			f[m] = h(float64(i+1) + float64(12-r)/8)
		}
	}
	return f
}
