package g7231

import (
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
)

// dcLSP is the long term mean LSP vector (Q15, pi = 0x8000).
var dcLSP = [lpcOrder]int16{
	0x0c3b, 0x1271, 0x1e0a, 0x2a36, 0x3630,
	0x406f, 0x4d28, 0x56f4, 0x638c, 0x6c46,
}

// fixedCBGain maps the amplitude index to the fixed codebook pulse gain.
var fixedCBGain = [gainLevels]int16{
	1, 2, 3, 4, 6, 9, 13, 18,
	26, 38, 55, 80, 115, 166, 240, 348,
	502, 726, 1050, 1517, 2193, 3170, 4582, 6623,
}

// pulses is the number of MP-MLQ pulses per subframe at 6.3 kbit/s.
var pulses = [subframes]int{6, 5, 6, 5}

// maxPos bounds the combined pulse position code: C(30, pulses).
var maxPos = [subframes]int{593775, 142506, 593775, 142506}

// ppfGainWeight is the pitch postfilter gain weight per rate (Q15).
var ppfGainWeight = [2]int32{0x1800, 0x2000}

// cngAdaptiveCBLag is the closed loop lag offset used for comfort noise.
var cngAdaptiveCBLag = [subframes]int{1, 0, 1, 3}

// cngFilt holds the SID gain estimation filter taps.
var cngFilt = [4]int32{273, 998, 499, 333}

// cngBseg holds the segment boundaries of the SID gain quantizer.
var cngBseg = [3]int32{2048, 18432, 231233}

var (
	// lspBand0..2 are the split VQ codebooks of the LSP residual. Entry 0
	// of each band is zero; erased frames decode with it.
	lspBand0 [256][3]int16
	lspBand1 [256][3]int16
	lspBand2 [256][4]int16

	// adaptiveCBGain85 and adaptiveCBGain170 hold the five pitch predictor
	// taps (Q14) per gain index. The 85 entry table is used at 6.3 kbit/s
	// for lags below subframeLen-2.
	adaptiveCBGain85  [85][pitchOrder]int16
	adaptiveCBGain170 [170][pitchOrder]int16

	// pitchContrib holds a (lag offset, Q15 gain) pair per adaptive gain
	// index for the 5.3 kbit/s harmonic enhancement.
	pitchContrib [2 * 170]int16

	// combinatorialTable[j][i] = C(29-i, 5-j) enumerates pulse positions.
	combinatorialTable [pulseMax][subframeLen / gridSize]int32

	// postfilterTbl holds gamma^(i+1) in Q15 for the formant postfilter
	// numerator (0.65) and denominator (0.75).
	postfilterTbl [2][]int16
)

func init() {
	g := celp.NewTableGen(0x7231)
	fill3 := func(dst *[256][3]int16, spread float64) {
		cb := g.CodebookQ(256, 3, spread)
		for i := range dst {
			copy(dst[i][:], cb[i])
		}
	}
	fill3(&lspBand0, 0x300)
	fill3(&lspBand1, 0x380)
	cb := g.CodebookQ(256, 4, 0x400)
	for i := range lspBand2 {
		copy(lspBand2[i][:], cb[i])
	}

	fillGains := func(dst [][pitchOrder]int16, maxGain float64) {
		n := len(dst)
		for i := range dst {
			// the central tap grows with the index; side taps shape the
			// fractional part of the lag
			gain := maxGain * float64(i) / float64(n-1)
			frac := g.Uniform(-0.5, 0.5)
			taps := [pitchOrder]float64{
				-0.05 * frac * gain,
				0.25 * math.Max(0, frac) * gain,
				(1 - 0.25*math.Abs(frac)) * gain,
				0.25 * math.Max(0, -frac) * gain,
				0.05 * frac * gain,
			}
			for k, v := range taps {
				dst[i][k] = int16(math.Round(math.Max(-32768, math.Min(32767, v*16384))))
			}
		}
	}
	fillGains(adaptiveCBGain85[:], 1.2)
	fillGains(adaptiveCBGain170[:], 1.2)

	for i := 0; i < 170; i++ {
		// Q14 tap sum doubled to Q15, capped at 0.8
		var sum int32
		for _, v := range adaptiveCBGain170[i] {
			sum += int32(v)
		}
		sum *= 2
		if sum > 26214 {
			sum = 26214
		}
		if sum < 0 {
			sum = 0
		}
		pitchContrib[2*i] = 0
		pitchContrib[2*i+1] = int16(sum)
	}

	for j := 0; j < pulseMax; j++ {
		for i := 0; i < subframeLen/gridSize; i++ {
			combinatorialTable[j][i] = binomial(29-i, pulseMax-1-j)
		}
	}

	postfilterTbl[0] = celp.GammaTableQ15(0.65, lpcOrder)
	postfilterTbl[1] = celp.GammaTableQ15(0.75, lpcOrder)
}

func binomial(n, k int) int32 {
	if k < 0 || k > n {
		return 0
	}
	r := int64(1)
	for i := 1; i <= k; i++ {
		r = r * int64(n-k+i) / int64(i)
	}
	return int32(r)
}
