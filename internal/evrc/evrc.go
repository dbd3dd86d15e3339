// Package evrc implements the EVRC (IS-127) speech decoder: full, half
// and eighth rate frames, delay contour interpolation, the 35-bit and
// 10-bit algebraic codebooks, erasure concealment with gain decay and the
// long term, formant and tilt postfilter.
//
// FrameParameters layout:
//
//	Mode            RateFull, RateHalf or RateEighth
//	LSP[...]        split VQ indices: 6, 6, 9, 7 bits (full),
//	                7, 7, 8 bits (half), 4, 4 bits (eighth)
//	Pitch[0]        7-bit delay code, delay = code + 20 (full and half)
//	Pitch[1]        5-bit delta delay of the previous frame (full only,
//	                0 = not transmitted)
//	Energy[0]       8-bit frame energy index (eighth rate only)
//	Subframes[i]    GainIndex[0]: 3-bit adaptive codebook gain
//	                GainIndex[1]: fixed codebook gain, 5 bits (full)
//	                or 4 bits (half)
//	                Pulses: four codes of 8, 8, 8 and 11 bits (full) or
//	                one 10-bit code (half)
//
// Eighth rate frames carry no subframes.
package evrc

import (
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
)

const (
	frameLen  = 160
	subframes = 3
	maxSubLen = 54
	lpcOrder  = 10
	minDelay  = 20
	maxDelay  = 120
	interpRes = 8 // fractional delay steps per sample
	interpLen = 8 // taps either side

	// minimum LSP separation at a split boundary, normalized frequency
	minLSPSep = 0.05 / (2 * math.Pi)

	sampleScale = 1.0 / 32768
)

// Rates.
const (
	RateFull = iota
	RateHalf
	RateEighth
	rateCount
)

// subframeSizes splits the frame into 53, 53 and 54 samples.
var subframeSizes = [subframes]int{53, 53, 54}

// subframeStart returns the offset of subframe i in the frame.
func subframeStart(i int) int {
	return 53 * i
}

// RateName returns the conventional name of a rate.
func RateName(rate int) string {
	switch rate {
	case RateFull:
		return "full"
	case RateHalf:
		return "half"
	case RateEighth:
		return "eighth"
	}
	return "unknown"
}

// Profile is the EVRC codec profile.
var Profile = &celp.Profile{
	Name:            "EVRC",
	Family:          celp.FamilyEVRC,
	SampleRate:      8000,
	FrameSize:       frameLen,
	Subframes:       subframes,
	SubframeSize:    maxSubLen,
	Order:           lpcOrder,
	PitchMin:        minDelay,
	PitchMax:        maxDelay,
	PitchResolution: interpRes,
	InterpTaps:      interpLen,
	MinLSPSpacing:   minLSPSep,
	LSPLower:        0,
	LSPUpper:        0.5,
}
