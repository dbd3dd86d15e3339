package celp

import (
	"fmt"

	"github.com/thesyncim/gocelp/internal/types"
)

// Config carries the decoder options every codec understands.
type Config struct {
	Postfilter bool            // run the adaptive postfilter stages
	Highpass   bool            // run the codec's output high-pass filter
	Kernel     SynthesisKernel // LP synthesis kernel; nil selects the default
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{Postfilter: true, Highpass: true, Kernel: DefaultKernel()}
}

// KernelOrDefault returns c.Kernel, or the default kernel when unset.
func (c Config) KernelOrDefault() SynthesisKernel {
	if c.Kernel == nil {
		return DefaultKernel()
	}
	return c.Kernel
}

// Report describes how one frame was produced.
type Report struct {
	Mode            int  // codec mode actually decoded
	Concealed       bool // frame was synthesized by erasure concealment
	Muted           bool // concealment run reached the mute threshold
	ComfortNoise    bool // frame was comfort noise (SID or untransmitted)
	OverflowRetries int  // subframes re-synthesized after an overflow
}

// FrameDecoder decodes one channel of one codec.
//
// DecodeFrame writes exactly FrameSize samples in [-1, 1) to out. A nil
// frame, or one with BadFrame set, is concealed. On error the decoder
// state is left as it was before the call, apart from erasure bookkeeping.
type FrameDecoder interface {
	Profile() *Profile
	DecodeFrame(p *types.FrameParameters, out []float32) (Report, error)
	Reset()
}

// Erased reports whether p must be concealed rather than decoded.
func Erased(p *types.FrameParameters) bool {
	return p == nil || p.BadFrame
}

// CheckShape validates the counts a codec needs before any table lookup.
func CheckShape(p *types.FrameParameters, lsp, pitch, subframes int) error {
	switch {
	case len(p.LSP) < lsp:
		return fmt.Errorf("%w: %d LSP indices, want %d", ErrInvalidParameter, len(p.LSP), lsp)
	case len(p.Pitch) < pitch:
		return fmt.Errorf("%w: %d pitch indices, want %d", ErrInvalidParameter, len(p.Pitch), pitch)
	case len(p.Subframes) < subframes:
		return fmt.Errorf("%w: %d subframes, want %d", ErrInvalidParameter, len(p.Subframes), subframes)
	}
	return nil
}

// CheckIndex returns ErrInvalidParameter unless 0 <= v < n.
func CheckIndex(what string, v, n int) error {
	if v < 0 || v >= n {
		return fmt.Errorf("%w: %s index %d out of range [0, %d)", ErrInvalidParameter, what, v, n)
	}
	return nil
}

// CheckGains validates the per-subframe gain and pulse counts.
func CheckGains(p *types.FrameParameters, subframes, gains, pulses int) error {
	for i := 0; i < subframes; i++ {
		sf := &p.Subframes[i]
		if len(sf.GainIndex) < gains {
			return fmt.Errorf("%w: subframe %d: %d gain indices, want %d", ErrInvalidParameter, i, len(sf.GainIndex), gains)
		}
		if len(sf.Pulses) < pulses {
			return fmt.Errorf("%w: subframe %d: %d pulse indices, want %d", ErrInvalidParameter, i, len(sf.Pulses), pulses)
		}
	}
	return nil
}

// ToFloat32 converts Q0 int16 samples to [-1, 1).
func ToFloat32(out []float32, in []int16) {
	for i, v := range in {
		out[i] = float32(v) / 32768
	}
}

// ScaleToFloat32 writes in*scale into out, clamped to [-1, 1).
func ScaleToFloat32(out []float32, in []float64, scale float64) {
	for i, v := range in {
		x := v * scale
		if x > 32767.0/32768 {
			x = 32767.0 / 32768
		} else if x < -1 {
			x = -1
		}
		out[i] = float32(x)
	}
}
