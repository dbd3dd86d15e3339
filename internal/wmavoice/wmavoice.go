// Package wmavoice implements the Windows Media Audio Voice speech decoder.
//
// A WMA Voice stream is a sequence of 480-sample superframes of three
// 160-sample frames. Every frame names one of 17 frame types, which fixes
// how many blocks the frame splits into, whether the adaptive codebook is
// absent, driven by one interpolated pitch per frame or by one pitch per
// block, and whether the fixed codebook is comfort noise, a hardcoded
// vector, pitch-adaptive window (AW) pulses or single and paired
// excitation pulses.
//
// Stream level choices that never change within a stream are carried in
// the mode bits: the LP order (10 or 16), residual LSP coding across a
// superframe, and which of two interpolation and mean tables apply.
//
// FrameParameters layout:
//
//	Mode            any combination of ModeLSP16, ModeResidual,
//	                ModeAltInterp and ModeAltMean
//	LSP[...]        independent coding: the split indices of this frame
//	                (8, 6, 5, 5 bits for 10 LSPs; 8, 6, 7, 6, 7 bits for
//	                16). Residual coding: the first frame of a superframe
//	                carries the independent indices of its last frame, the
//	                5-bit interpolation index and three residual indices
//	                (7, 6, 6 or 7, 7, 7 bits); the other two carry none
//	Pitch[0]        frame type, 0 to 16
//	Pitch[1]        frame pitch (7 bits), frame types with one pitch per frame
//	Pitch[2]        AW start position, 0 to 93, AW frame types
//	Energy[0]       comfort noise gain (8 bits), frame type 0
//	Subframes[i]    one per block
//	                hardcoded: Pulses [codebook offset (8 bits)],
//	                GainIndex [gain (6 bits)]
//	                pulse types: GainIndex [joint gain (7 bits)];
//	                PitchIndex the block pitch for one pitch per block
//	                types (8 bits absolute in block 0, 5-bit delta after)
//	                AW: Pulses [first set, second set position],
//	                Signs the second set sign bit
//	                excitation pulses: Pulses holds per track the first
//	                position and, on paired tracks, the second; Signs bit
//	                n is the sign of track n
package wmavoice

import (
	"fmt"
	"math"
	"strings"

	"github.com/thesyncim/gocelp/internal/celp"
)

// Mode bits.
const (
	ModeLSP16     = 1 << iota // 16 LSPs instead of 10
	ModeResidual              // LSPs coded once per superframe
	ModeAltInterp             // second residual interpolation table
	ModeAltMean               // second LSP mean set
	modeCount     = 1 << iota
)

const (
	sampleRate     = 8000
	frameLen       = 160
	superframeLen  = 3 * frameLen
	framesPerSuper = 3
	maxBlocks      = 8
	maxOrder       = 16

	// pitch limits for 8 kHz streams
	minPitch = ((sampleRate<<8)/400 + 50) >> 8
	maxPitch = ((sampleRate<<8)*37/2000 + 50) >> 8

	minLSP     = 0.0015 * math.Pi
	lspSpacing = 0.0125 * math.Pi
	maxLSP     = 0.9985 * math.Pi
)

// Codebook types.
type acbType uint8

const (
	acbNone       acbType = iota // hardcoded excitation only
	acbAsymmetric                // one pitch per frame, interpolated per sample
	acbHamming                   // one pitch per block
)

type fcbType uint8

const (
	fcbSilence fcbType = iota
	fcbHardcoded
	fcbAWPulses
	fcbExcPulses
)

// frameDesc describes one frame type.
type frameDesc struct {
	blocks    int
	logBlocks int
	acb       acbType
	fcb       fcbType
	dblPulses int // tracks with a pulse pair, excitation pulse types
}

const frameTypes = 17

var frameDescs = [frameTypes]frameDesc{
	{1, 0, acbNone, fcbSilence, 0},
	{2, 1, acbNone, fcbHardcoded, 0},
	{2, 1, acbAsymmetric, fcbAWPulses, 0},
	{2, 1, acbAsymmetric, fcbExcPulses, 2},
	{2, 1, acbAsymmetric, fcbExcPulses, 5},
	{4, 2, acbAsymmetric, fcbExcPulses, 0},
	{4, 2, acbAsymmetric, fcbExcPulses, 2},
	{4, 2, acbAsymmetric, fcbExcPulses, 5},
	{2, 1, acbHamming, fcbExcPulses, 0},
	{2, 1, acbHamming, fcbExcPulses, 2},
	{2, 1, acbHamming, fcbExcPulses, 5},
	{4, 2, acbHamming, fcbExcPulses, 0},
	{4, 2, acbHamming, fcbExcPulses, 2},
	{4, 2, acbHamming, fcbExcPulses, 5},
	{8, 3, acbHamming, fcbExcPulses, 0},
	{8, 3, acbHamming, fcbExcPulses, 2},
	{8, 3, acbHamming, fcbExcPulses, 5},
}

// blockLen returns the samples per block of the frame type.
func (f *frameDesc) blockLen() int { return frameLen / f.blocks }

// pulseBits returns the position width of excitation pulses.
func (f *frameDesc) pulseBits() int { return 5 - f.logBlocks }

// order returns the LP order of mode.
func order(mode int) int {
	if mode&ModeLSP16 != 0 {
		return 16
	}
	return 10
}

// ModeName describes mode, for example "lsp10+residual".
func ModeName(mode int) string {
	if mode < 0 || mode >= modeCount {
		return "unknown"
	}
	parts := []string{fmt.Sprintf("lsp%d", order(mode))}
	if mode&ModeResidual != 0 {
		parts = append(parts, "residual")
	}
	if mode&ModeAltInterp != 0 {
		parts = append(parts, "interp-b")
	}
	if mode&ModeAltMean != 0 {
		parts = append(parts, "mean-b")
	}
	return strings.Join(parts, "+")
}

var (
	profile10 = newProfile("WMA Voice", 10)
	profile16 = newProfile("WMA Voice 16", 16)
)

// newProfile describes the common two-block layout; other frame types
// split the frame into 1, 4 or 8 blocks.
func newProfile(name string, lpcOrder int) *celp.Profile {
	return &celp.Profile{
		Name:            name,
		Family:          celp.FamilyWMAVoice,
		SampleRate:      sampleRate,
		FrameSize:       frameLen,
		Subframes:       2,
		SubframeSize:    frameLen / 2,
		Order:           lpcOrder,
		PitchMin:        minPitch,
		PitchMax:        maxPitch - 1,
		PitchResolution: 4,
		InterpTaps:      ipol1Taps,
		GainPredOrder:   len(gainPredCoeffs),
		GainPred:        gainPredCoeffs[:],
		MinLSPSpacing:   lspSpacing,
		LSPLower:        minLSP,
		LSPUpper:        maxLSP,
	}
}

// ProfileFor returns the profile of mode.
func ProfileFor(mode int) (*celp.Profile, error) {
	if err := celp.CheckIndex("mode", mode, modeCount); err != nil {
		return nil, err
	}
	if mode&ModeLSP16 != 0 {
		return profile16, nil
	}
	return profile10, nil
}
