// Package amrnb implements the 3GPP AMR narrowband speech decoder for all
// eight speech modes (4.75 to 12.2 kbit/s) in floating point.
//
// FrameParameters layout:
//
//	Mode            Mode475 .. Mode122
//	Type            FrameSpeech; FrameUntransmitted (NO_DATA) is concealed,
//	                FrameSID is not supported
//	LSP             Mode122: five split VQ indices (7, 8, 9, 8, 6 bits; the
//	                low bit of LSP[2] is the sign of the third split)
//	                other modes: three split VQ indices
//	Subframes[i]    PitchIndex: adaptive codebook lag index
//	                GainIndex[0]: pitch gain index (joint gain index in
//	                the modes without separate fixed gain)
//	                GainIndex[1]: fixed gain index (Mode795, Mode122)
//	                Pulses: Mode122 ten 4-bit track codes, Mode102 four sign
//	                bits followed by three position codes, other modes one
//	                position code
//	                Signs: pulse sign bits (modes up to Mode795)
//
// In Mode475 the joint gain index is coded in subframes 0 and 2 only; the
// decoder ignores GainIndex of subframes 1 and 3.
package amrnb

import (
	"github.com/thesyncim/gocelp/internal/celp"
)

// Modes.
const (
	Mode475 = iota
	Mode515
	Mode59
	Mode67
	Mode74
	Mode795
	Mode102
	Mode122
	modeCount
)

const (
	frameLen    = 160
	subframeLen = 40
	subframes   = 4
	lpcOrder    = 10

	pitchMin     = 18 // Mode122 lower search bound
	interpTaps   = 10
	interpPrec   = 6
	tiltResponse = 22

	sampleBound = 32768.0
	sampleScale = 2.0 / 32768.0

	predFac122  = 0.65
	lsfResidual = 8000.0 / 32768.0 // LSF residual table units to Hz
	minSpacing  = 50.0488 / 8000.0
	maxLSF      = 3950.0 / 8000.0
	minEnergy   = -14.0

	// sharpMax is 13017/16384 as in the reference code; the written
	// standard says 0.8.
	sharpMax = 0.79449462890625

	tiltGammaT = 0.8
	agcAlpha   = 0.9
)

// Profile is the AMR-NB codec profile.
var Profile = &celp.Profile{
	Name:            "AMR-NB",
	Family:          celp.FamilyAMR,
	SampleRate:      8000,
	FrameSize:       frameLen,
	Subframes:       subframes,
	SubframeSize:    subframeLen,
	Order:           lpcOrder,
	PitchMin:        pitchMin - 1,
	PitchMax:        celp.PitchDelayMax,
	PitchResolution: 6,
	InterpTaps:      interpTaps,
	GainPredOrder:   4,
	GainPred:        energyPredFac[:],
	SharpMax:        sharpMax,
	MinLSPSpacing:   minSpacing,
	LSPLower:        minSpacing,
	LSPUpper:        maxLSF,
}

// modeNames are the nominal bit rates.
var modeNames = [modeCount]string{"4.75", "5.15", "5.9", "6.7", "7.4", "7.95", "10.2", "12.2"}

// ModeName returns the bit rate of mode in kbit/s.
func ModeName(mode int) string {
	if mode < 0 || mode >= modeCount {
		return "invalid"
	}
	return modeNames[mode]
}
