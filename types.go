package gocelp

import (
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/types"
)

// Codec identifies one speech coding standard.
type Codec = types.Codec

// Supported codecs.
const (
	CodecAMRNB    = types.CodecAMRNB
	CodecG7231    = types.CodecG7231
	CodecG729     = types.CodecG729
	CodecEVRC     = types.CodecEVRC
	CodecSIPR     = types.CodecSIPR
	CodecWMAVoice = types.CodecWMAVoice
)

// ParseCodec returns the codec named name ("amrnb", "g723.1", "g729",
// "evrc", "sipr" or "wmavoice").
func ParseCodec(name string) (Codec, error) {
	c, ok := types.ParseCodec(name)
	if !ok {
		return 0, ErrInvalidCodec
	}
	return c, nil
}

// FrameType classifies the payload of one frame.
type FrameType = types.FrameType

// Frame types.
const (
	FrameSpeech        = types.FrameSpeech
	FrameSID           = types.FrameSID
	FrameUntransmitted = types.FrameUntransmitted
)

// FrameParameters holds the unpacked indices of one frame. The meaning of
// each field is fixed per codec.
type FrameParameters = types.FrameParameters

// SubframeParameters holds the excitation indices of one subframe.
type SubframeParameters = types.SubframeParameters

// CodecProfile describes the fixed parameters of one codec mode.
type CodecProfile = celp.Profile
