// Package g7231 implements the ITU-T G.723.1 dual rate speech decoder:
// 6.3 kbit/s multipulse (MP-MLQ) and 5.3 kbit/s algebraic (ACELP)
// excitation, comfort noise for SID and untransmitted frames, erasure
// concealment with residual interpolation, and the pitch and formant
// postfilters. The whole pipeline runs in 16-bit fixed point.
//
// FrameParameters layout:
//
//	Mode            0 = 6.3 kbit/s, 1 = 5.3 kbit/s
//	Type            FrameSpeech, FrameSID or FrameUntransmitted
//	LSP[0..2]       8-bit VQ index per band (band 0 first)
//	Pitch[0..1]     7-bit open loop lag codes (lag = code + 18)
//	Energy[0]       6-bit SID gain index (SID frames only)
//	Subframes[i]    PitchIndex: 2-bit closed loop lag offset
//	                GainIndex[0]: adaptive codebook gain index
//	                Amplitude: fixed codebook gain index
//	                Grid: pulse grid (0 even, 1 odd)
//	                Pulses[0]: combined pulse position code
//	                Signs: pulse sign bits
//	                Dirac: Dirac train flag (6.3 kbit/s, short lags)
package g7231

import (
	"github.com/thesyncim/gocelp/internal/celp"
)

const (
	frameLen     = 240
	subframeLen  = 60
	subframes    = 4
	lpcOrder     = 10
	pitchMin     = 18
	pitchMax     = pitchMin + 127
	pitchOrder   = 5
	gridSize     = 2
	pulseMax     = 6
	gainLevels   = 24
	lspBands     = 3
	cngSeed      = 12345
	maxLagCode   = 123
	ppfTaps      = 3 // lags searched either side of the pitch
)

// Rates.
const (
	Rate6300 = 0
	Rate5300 = 1
)

// Frame sizes in bytes by the two info bits of the first byte.
var frameSizes = [4]int{24, 20, 4, 1}

// Profile is the G.723.1 codec profile.
var Profile = &celp.Profile{
	Name:            "G.723.1",
	Family:          celp.FamilyG7231,
	SampleRate:      8000,
	FrameSize:       frameLen,
	Subframes:       subframes,
	SubframeSize:    subframeLen,
	Order:           lpcOrder,
	PitchMin:        pitchMin - 1,
	PitchMax:        pitchMax,
	PitchResolution: 1,
	InterpTaps:      pitchOrder / 2,
	MuteAfter:       3,
	MinLSPSpacing:   0x100,
	LSPLower:        0x180,
	LSPUpper:        0x7e00,
}
