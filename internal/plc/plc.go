// Package plc implements the frame erasure bookkeeping shared by the CELP
// decoders: the run counter of consecutive bad frames, the geometric gain
// fade, the mute threshold and the concealment noise generator.
//
// The codec packages decide what to extrapolate (LSPs, pitch, gains);
// this package decides how much of it survives each lost frame.
package plc

// DefaultFadePerFrame is the gain multiplier applied per erased frame when
// a codec does not supply its own.
const DefaultFadePerFrame = 0.75

// State tracks concealment for one channel.
type State struct {
	// lostCount is the number of consecutive erased frames.
	// Cleared by the first good frame.
	lostCount int

	// fadeFactor is the gain applied to concealed output (1 = full).
	fadeFactor float64

	// fadePerFrame multiplies fadeFactor on every erased frame.
	fadePerFrame float64

	// muteAfter is the run length at which output is forced to zero.
	// 0 disables muting; the fade alone then drives the output down.
	muteAfter int

	rand Rand
}

// NewState returns a concealment state with the given per-frame fade and
// mute threshold. A fade outside (0, 1) selects DefaultFadePerFrame.
func NewState(fadePerFrame float64, muteAfter int) *State {
	if fadePerFrame <= 0 || fadePerFrame >= 1 {
		fadePerFrame = DefaultFadePerFrame
	}
	return &State{
		fadeFactor:   1,
		fadePerFrame: fadePerFrame,
		muteAfter:    muteAfter,
	}
}

// Reset clears the run after a good frame. The noise generator is left
// alone so that concealment stays deterministic across runs.
func (s *State) Reset() {
	s.lostCount = 0
	s.fadeFactor = 1
}

// RecordLoss counts one erased frame and returns the fade to apply to it.
// Once the mute threshold is reached the fade is 0.
func (s *State) RecordLoss() float64 {
	s.lostCount++
	s.fadeFactor *= s.fadePerFrame
	if s.fadeFactor < 0.001 || s.IsMuted() {
		s.fadeFactor = 0
	}
	return s.fadeFactor
}

// LostCount returns the number of consecutive erased frames.
func (s *State) LostCount() int { return s.lostCount }

// FadeFactor returns the current concealment gain in [0, 1].
func (s *State) FadeFactor() float64 { return s.fadeFactor }

// MuteAfter returns the mute threshold (0 = never).
func (s *State) MuteAfter() int { return s.muteAfter }

// IsMuted reports whether the erasure run has reached the mute threshold.
func (s *State) IsMuted() bool {
	return s.muteAfter > 0 && s.lostCount >= s.muteAfter
}

// IsExhausted reports whether concealment has faded to silence.
func (s *State) IsExhausted() bool {
	return s.IsMuted() || s.fadeFactor <= 0.001
}

// Rand returns the channel's concealment noise generator.
func (s *State) Rand() *Rand { return &s.rand }
