package celp

import "fmt"

// Family tags the codec family a Profile belongs to.
type Family uint8

const (
	FamilyAMR Family = iota
	FamilyG7231
	FamilyG729
	FamilyEVRC
	FamilySIPR
	FamilyWMAVoice
)

func (f Family) String() string {
	switch f {
	case FamilyAMR:
		return "AMR"
	case FamilyG7231:
		return "G.723.1"
	case FamilyG729:
		return "G.729"
	case FamilyEVRC:
		return "EVRC"
	case FamilySIPR:
		return "SIPR"
	case FamilyWMAVoice:
		return "WMAVoice"
	default:
		return fmt.Sprintf("Family(%d)", uint8(f))
	}
}

// Profile is the immutable per-standard configuration that parameterizes
// the shared pipeline. Profiles are package-level values; decoders hold a
// pointer and never write through it.
type Profile struct {
	Name   string
	Family Family

	SampleRate   int
	FrameSize    int // samples per frame
	Subframes    int
	SubframeSize int // largest subframe; the last one may be longer
	Order        int // LP filter order

	PitchMin        int // smallest integer pitch lag
	PitchMax        int // largest integer pitch lag
	PitchResolution int // fractional steps per sample (1, 3, 4, 6 or 8)

	// InterpTaps is the one-sided length of the fractional delay filter.
	InterpTaps int

	// GainPredOrder is the number of past subframes in the MA gain predictor.
	GainPredOrder int
	// GainPred holds the MA prediction coefficients, newest first.
	GainPred []float64

	// SharpMax bounds the pitch sharpening factor. Some standards use a value
	// that differs from the nominal one; it is kept as implemented.
	SharpMax float64

	// MuteAfter is the erasure run length that mutes output completely.
	// Zero means the codec only fades.
	MuteAfter int

	// LSP stability bounds in the codec's native LSF domain.
	MinLSPSpacing float64
	LSPLower      float64
	LSPUpper      float64

	// Tracks lists the allowed pulse positions per fixed codebook track.
	Tracks [][]int
}

// HistoryLen returns the number of excitation samples that must be kept
// before the current subframe: max delay, interpolation support and the
// LP filter order.
func (p *Profile) HistoryLen() int {
	return p.PitchMax + p.InterpTaps + 1 + p.Order
}

// Validate checks the internal consistency of p.
func (p *Profile) Validate() error {
	switch {
	case p.SampleRate <= 0:
		return fmt.Errorf("%w: profile %s: sample rate %d", ErrInvalidParameter, p.Name, p.SampleRate)
	case p.Subframes <= 0 || p.SubframeSize <= 0:
		return fmt.Errorf("%w: profile %s: subframe layout %dx%d", ErrInvalidParameter, p.Name, p.Subframes, p.SubframeSize)
	case p.FrameSize > p.Subframes*p.SubframeSize || p.FrameSize <= (p.Subframes-1)*p.SubframeSize:
		return fmt.Errorf("%w: profile %s: frame size %d does not split into %d subframes of at most %d", ErrInvalidParameter, p.Name, p.FrameSize, p.Subframes, p.SubframeSize)
	case p.Order <= 0 || p.Order > MaxOrder:
		return fmt.Errorf("%w: profile %s: order %d", ErrInvalidParameter, p.Name, p.Order)
	case p.PitchMin <= 0 || p.PitchMax < p.PitchMin:
		return fmt.Errorf("%w: profile %s: pitch range [%d, %d]", ErrInvalidParameter, p.Name, p.PitchMin, p.PitchMax)
	case len(p.GainPred) != p.GainPredOrder:
		return fmt.Errorf("%w: profile %s: %d gain predictor taps for order %d", ErrInvalidParameter, p.Name, len(p.GainPred), p.GainPredOrder)
	}
	return nil
}

// ClampLag clips an integer lag to the profile's pitch range.
func (p *Profile) ClampLag(lag int) int {
	if lag < p.PitchMin {
		return p.PitchMin
	}
	if lag > p.PitchMax {
		return p.PitchMax
	}
	return lag
}

// MaxOrder is the largest LP order any profile uses.
const MaxOrder = 16
