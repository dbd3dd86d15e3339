// Package g729 implements the ITU-T G.729 8 kbit/s decoder and its Annex D
// 6.4 kbit/s extension in 16-bit fixed point: switched MA predicted LSF
// quantization, 1/3 resolution pitch, algebraic codebooks with 4 (8 kbit/s)
// or 2 (6.4 kbit/s) pulses per subframe, conjugate structure gain VQ, the
// long and short term postfilter with AGC and the output high-pass filter.
//
// FrameParameters layout:
//
//	Mode            0 = 8 kbit/s, 1 = 6.4 kbit/s (Annex D)
//	ParityError     parity check of the first pitch index failed
//	LSP[0]          MA predictor switch (1 bit)
//	LSP[1]          first stage index (7 bits)
//	LSP[2..3]       second stage low and high half indices (5 bits each)
//	Subframes[i]    PitchIndex: 8 bits in subframe 0, then 5 bits
//	                (4 bits at 6.4 kbit/s) relative to the previous lag
//	                GainIndex[0..1]: gain VQ stage 1 and 2 indices
//	                Pulses[0]: pulse position code (13 or 9 bits)
//	                Signs: pulse sign bits (4 or 2 bits)
package g729

import "github.com/thesyncim/gocelp/internal/celp"

const (
	frameLen    = 80
	subframeLen = 40
	subframes   = 2
	lpcOrder    = 10
	maPredOrder = 4
	interpLen   = 11 // taps either side of the interpolation centre, plus one

	// LSF bounds in Q13 radians
	lsfqMin     = 40    // 0.005
	lsfqMax     = 25681 // 3.135
	lsfqDiffMin = 321   // 0.0391

	// pitch sharpening bounds (Q14); the upper one is 0.7945, not 0.8
	sharpMin = 3277
	sharpMax = 13017

	meanEnergyQ10 = 36 << 10
	randSeed      = 21845
	gainInit      = 1 << 14 // AGC gain, 1.0 in Q14
	energyInit    = -14336  // -14 dB in (5.10)
)

// Modes.
const (
	Mode8k  = 0
	Mode6k4 = 1
)

// format holds the per-mode bit allocation of one subframe.
type format struct {
	frameBytes  int
	pitchBits   [subframes]int
	parity      bool
	gain1Bits   int
	gain2Bits   int
	signBits    int
	pulseBits   int
	pulseCount  int // pulses taken from the first track table
	pulseFields int // bits per pulse position field
}

var formats = [2]format{
	Mode8k: {
		frameBytes:  10,
		pitchBits:   [subframes]int{8, 5},
		parity:      true,
		gain1Bits:   3,
		gain2Bits:   4,
		signBits:    4,
		pulseBits:   13,
		pulseCount:  3,
		pulseFields: 3,
	},
	Mode6k4: {
		frameBytes:  8,
		pitchBits:   [subframes]int{8, 4},
		gain1Bits:   3,
		gain2Bits:   3,
		signBits:    2,
		pulseBits:   9,
		pulseCount:  1,
		pulseFields: 4,
	},
}

// Profile is the G.729 codec profile. Annex D shares it.
var Profile = &celp.Profile{
	Name:            "G.729",
	Family:          celp.FamilyG729,
	SampleRate:      8000,
	FrameSize:       frameLen,
	Subframes:       subframes,
	SubframeSize:    subframeLen,
	Order:           lpcOrder,
	PitchMin:        celp.PitchDelayMin - 1, // fractional lags start at 19 1/3
	PitchMax:        celp.PitchDelayMax,
	PitchResolution: 3,
	InterpTaps:      interpLen - 1,
	GainPredOrder:   maPredOrder,
	GainPred:        []float64{0.68, 0.58, 0.34, 0.19},
	SharpMax:        float64(sharpMax) / 16384,
	MinLSPSpacing:   lsfqDiffMin,
	LSPLower:        lsfqMin,
	LSPUpper:        lsfqMax,
}

// FrameBytes returns the packed frame size of mode.
func FrameBytes(mode int) int { return formats[mode].frameBytes }
