// Package types defines shared types used across gocelp packages.
// This package exists to break import cycles between packages.
package types

// Codec identifies one speech coding standard.
type Codec uint8

const (
	CodecAMRNB    Codec = iota // 3GPP AMR narrowband, 8 kHz, 20 ms frames
	CodecG7231                 // ITU-T G.723.1, 8 kHz, 30 ms frames
	CodecG729                  // ITU-T G.729 and Annex D, 8 kHz, 10 ms frames
	CodecEVRC                  // TIA EVRC, 8 kHz, 20 ms frames
	CodecSIPR                  // RealAudio SIPR, 8 kHz (16 kHz mode uses 16 kHz)
	CodecWMAVoice              // Windows Media Audio Voice, 8 or 16 kHz
)

var codecNames = [...]string{
	CodecAMRNB:    "amrnb",
	CodecG7231:    "g723.1",
	CodecG729:     "g729",
	CodecEVRC:     "evrc",
	CodecSIPR:     "sipr",
	CodecWMAVoice: "wmavoice",
}

// String returns the short lowercase codec name.
func (c Codec) String() string {
	if int(c) < len(codecNames) {
		return codecNames[c]
	}
	return "unknown"
}

// ParseCodec returns the codec whose String is name.
func ParseCodec(name string) (Codec, bool) {
	for c, n := range codecNames {
		if n == name {
			return Codec(c), true
		}
	}
	return 0, false
}

// Valid reports whether c names a supported codec.
func (c Codec) Valid() bool {
	return int(c) < len(codecNames)
}

// FrameType classifies the payload of one frame.
type FrameType uint8

const (
	// FrameSpeech carries active speech parameters.
	FrameSpeech FrameType = iota
	// FrameSID carries a silence descriptor (comfort noise update).
	FrameSID
	// FrameUntransmitted marks a DTX gap: nothing was sent for this frame.
	FrameUntransmitted
)

// FrameParameters holds the already unpacked indices of one bitstream frame.
//
// The meaning of Mode, LSP, Pitch and Energy is fixed per codec and documented
// in each codec package. A FrameParameters value is consumed by a single
// decode call and never retained by the decoder.
type FrameParameters struct {
	// Mode selects the rate or frame type (AMR mode, G.723.1 rate,
	// G.729 8k/6.4k, EVRC rate, SIPR mode, WMA Voice frame type).
	Mode int
	// Type is the frame payload class.
	Type FrameType
	// BadFrame marks a frame the transport layer flagged as corrupt or missing.
	BadFrame bool
	// ParityError marks a failed pitch parity check (G.729).
	ParityError bool

	// LSP holds the spectral codebook indices.
	LSP []int
	// Pitch holds frame-level pitch fields where a codec codes pitch per frame.
	Pitch []int
	// Energy holds frame-level energy or SID gain fields.
	Energy []int

	Subframes []SubframeParameters
}

// SubframeParameters holds the excitation indices of one subframe.
type SubframeParameters struct {
	// PitchIndex is the adaptive codebook lag index.
	PitchIndex int
	// GainIndex holds one or more gain codebook indices.
	GainIndex []int
	// Pulses holds fixed codebook position codes.
	Pulses []int
	// Signs holds packed fixed codebook sign bits.
	Signs int
	// Grid selects the even or odd pulse grid (G.723.1).
	Grid int
	// Amplitude is the fixed codebook amplitude index (G.723.1).
	Amplitude int
	// Dirac enables the pitch-periodic dirac train (G.723.1 6.3 kbit/s).
	Dirac bool
}
