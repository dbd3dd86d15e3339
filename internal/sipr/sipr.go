// Package sipr implements the SIPR (RealAudio sipr) speech decoder in its
// four modes: the 16 kbit/s wideband mode and the 8.5, 6.5 and 5.0 kbit/s
// narrowband modes.
//
// The narrowband modes share a 10th order LP model coded as immittance
// spectral frequencies with a first order predictor, 1/3 sample pitch,
// sparse pulse codebooks shaped by a weighted impulse response and a
// joint gain codebook with MA energy prediction. The 5.0 kbit/s mode adds
// an excitation domain postfilter. The wideband mode uses a 16th order LSP
// model with a switched MA predictor, 10 pulse algebraic codebooks and a
// crossfaded formant postfilter.
//
// FrameParameters layout:
//
//	Mode            Mode16k, Mode8k5, Mode6k5 or Mode5k0
//	LSP[...]        Mode16k: predictor switch (1 bit), then five split
//	                indices of 7, 8, 7, 7, 7 bits; other modes: five
//	                split indices of 6, 7, 7, 7, 5 bits
//	Subframes[i]    PitchIndex: Mode16k 9 bits then 6; Mode8k5 and
//	                Mode6k5 8, 5, 5; Mode5k0 8, 5, 8, 5, 5
//	                GainIndex: Mode16k [pitch (4 bits), fixed (5 bits)];
//	                other modes [joint gain (7 bits)]
//	                Pulses: Mode16k ten codes alternating 4 and 5 bits;
//	                Mode8k5 three 9-bit codes; Mode6k5 three 5-bit
//	                codes; Mode5k0 one 10-bit code
package sipr

import (
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
)

// Modes.
const (
	Mode16k = iota
	Mode8k5
	Mode6k5
	Mode5k0
	modeCount
)

const (
	lpcOrder    = 10
	subframeLen = 48
	maxSubs     = 5
	interpRes   = 6
	interpTaps  = 10

	lpcOrder16    = 16
	subframeLen16 = 80
	subframes16   = 2
	pitchMin16    = 30
	pitchMax16    = 281

	// minimum LSF spacing in radians
	lsfDiffMin = 321 * 0.00009587531
)

// fixed codebook energy means in dB, relative to a unit amplitude output
var (
	meanEnergy   = 34 - 15*20*math.Log10(2)
	meanEnergy16 = 19 - 15*20*math.Log10(2)
)

// modeParams describes the frame layout of one mode.
type modeParams struct {
	name            string
	subframes       int
	framesPerPack   int
	packetBytes     int
	sharp           float64
	lsfBits         []int
	pitchBits       []int
	pitchGainBits   int
	pulseBits       []int
	gainBits        int
	predictorBits   int
	thirdAsAbsolute bool
}

var modes = [modeCount]modeParams{
	Mode16k: {
		name:          "16k",
		subframes:     subframes16,
		framesPerPack: 1,
		packetBytes:   20,
		lsfBits:       []int{7, 8, 7, 7, 7},
		pitchBits:     []int{9, 6},
		pitchGainBits: 4,
		pulseBits:     []int{4, 5, 4, 5, 4, 5, 4, 5, 4, 5},
		gainBits:      5,
		predictorBits: 1,
	},
	Mode8k5: {
		name:          "8k5",
		subframes:     3,
		framesPerPack: 1,
		packetBytes:   19,
		sharp:         0.8,
		lsfBits:       []int{6, 7, 7, 7, 5},
		pitchBits:     []int{8, 5, 5},
		pulseBits:     []int{9, 9, 9},
		gainBits:      7,
	},
	Mode6k5: {
		name:          "6k5",
		subframes:     3,
		framesPerPack: 2,
		packetBytes:   29,
		sharp:         0.8,
		lsfBits:       []int{6, 7, 7, 7, 5},
		pitchBits:     []int{8, 5, 5},
		pulseBits:     []int{5, 5, 5},
		gainBits:      7,
	},
	Mode5k0: {
		name:            "5k0",
		subframes:       5,
		framesPerPack:   2,
		packetBytes:     37,
		sharp:           0.85,
		lsfBits:         []int{6, 7, 7, 7, 5},
		pitchBits:       []int{8, 5, 8, 5, 5},
		pulseBits:       []int{10},
		gainBits:        7,
		thirdAsAbsolute: true,
	},
}

// ModeName returns the conventional name of mode.
func ModeName(mode int) string {
	if mode < 0 || mode >= modeCount {
		return "unknown"
	}
	return modes[mode].name
}

// FramesPerPacket returns how many frames one packet of mode carries.
func FramesPerPacket(mode int) int {
	if mode < 0 || mode >= modeCount {
		return 0
	}
	return modes[mode].framesPerPack
}

var profiles = [modeCount]*celp.Profile{
	Mode16k: {
		Name:            "SIPR 16k",
		Family:          celp.FamilySIPR,
		SampleRate:      16000,
		FrameSize:       subframes16 * subframeLen16,
		Subframes:       subframes16,
		SubframeSize:    subframeLen16,
		Order:           lpcOrder16,
		PitchMin:        pitchMin16,
		PitchMax:        pitchMax16,
		PitchResolution: 3,
		InterpTaps:      interpTaps,
		GainPredOrder:   len(gainPred16),
		GainPred:        gainPred16[:],
		SharpMax:        1,
		LSPLower:        0,
		LSPUpper:        math.Pi,
		MinLSPSpacing:   lsfDiffMin / 2,
	},
	Mode8k5: narrowProfile("SIPR 8k5", 3, 0.8),
	Mode6k5: narrowProfile("SIPR 6k5", 3, 0.8),
	Mode5k0: narrowProfile("SIPR 5k0", 5, 0.85),
}

func narrowProfile(name string, subframes int, sharp float64) *celp.Profile {
	return &celp.Profile{
		Name:            name,
		Family:          celp.FamilySIPR,
		SampleRate:      8000,
		FrameSize:       subframes * subframeLen,
		Subframes:       subframes,
		SubframeSize:    subframeLen,
		Order:           lpcOrder,
		PitchMin:        celp.PitchDelayMin,
		PitchMax:        celp.PitchDelayMax,
		PitchResolution: 3,
		InterpTaps:      interpTaps,
		GainPredOrder:   len(gainPred),
		GainPred:        gainPred[:],
		SharpMax:        sharp,
		MinLSPSpacing:   lsfDiffMin,
		LSPLower:        0,
		LSPUpper:        math.Pi,
	}
}

// ProfileFor returns the profile of mode.
func ProfileFor(mode int) (*celp.Profile, error) {
	if err := celp.CheckIndex("mode", mode, modeCount); err != nil {
		return nil, err
	}
	return profiles[mode], nil
}
