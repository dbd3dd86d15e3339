// errors.go defines the public errors of the gocelp package.

package gocelp

import (
	"errors"

	"github.com/thesyncim/gocelp/internal/celp"
)

// Public errors. The first three are shared with the codec packages, so
// errors.Is matches them whichever layer wrapped them.
var (
	// ErrInvalidParameter indicates a frame index outside its codebook or
	// a frame whose shape does not match its mode.
	ErrInvalidParameter = celp.ErrInvalidParameter

	// ErrUnsupportedMode indicates a frame kind the decoder does not
	// implement, such as AMR SID frames.
	ErrUnsupportedMode = celp.ErrUnsupportedMode

	// ErrShortPacket indicates a packed frame or packet shorter than its
	// format requires.
	ErrShortPacket = celp.ErrShortPacket

	// ErrInvalidCodec indicates an unknown codec identifier.
	ErrInvalidCodec = errors.New("gocelp: invalid codec")

	// ErrInvalidChannels indicates an unsupported channel count or index.
	// Valid channel counts are 1 to MaxChannels.
	ErrInvalidChannels = errors.New("gocelp: invalid channels")

	// ErrBufferTooSmall indicates the output buffer cannot hold the
	// decoded frame.
	ErrBufferTooSmall = errors.New("gocelp: output buffer too small")

	// ErrUnknownKernel indicates a synthesis kernel name that is not
	// available on this machine.
	ErrUnknownKernel = errors.New("gocelp: unknown synthesis kernel")
)
