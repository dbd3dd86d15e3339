package celp

import "errors"

// Decode error classes shared by every codec.
var (
	// ErrInvalidParameter indicates a frame parameter that cannot be decoded,
	// such as a pitch lag of zero or an out-of-range codebook index.
	// The frame is rejected without corrupting decoder state.
	ErrInvalidParameter = errors.New("gocelp: invalid frame parameter")

	// ErrUnsupportedMode indicates a frame type the codec does not handle,
	// such as a comfort noise frame on a codec without DTX support.
	ErrUnsupportedMode = errors.New("gocelp: unsupported mode")
)

// ErrShortPacket indicates a packed frame shorter than its frame type requires.
var ErrShortPacket = errors.New("gocelp: packet too short")
