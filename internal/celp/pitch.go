package celp

import "fmt"

// Pitch lag bounds shared by the 1/3 resolution ACELP codecs.
const (
	PitchDelayMin = 20
	PitchDelayMax = 143
)

// Lag is a decoded pitch delay: Int samples plus Frac fractional steps.
// Frac may be negative (e.g. -1, 0, 1 for 1/3 resolution).
type Lag struct {
	Int  int
	Frac int
}

// Decode8BitFirstDelay3 decodes an absolute 8-bit first-subframe lag index
// into a delay in 1/3 sample units. Indices below 197 take the fine
// branch (1/3 resolution); the rest take the coarse integer-only branch.
func Decode8BitFirstDelay3(index int) int {
	index += 58
	if index > 254 {
		index = 3*index - 510
	}
	return index
}

// Decode5Or6BitSecondDelay3 decodes a differential second-subframe index
// into a delay in 1/3 units relative to pitchDelayMin.
func Decode5Or6BitSecondDelay3(index, pitchDelayMin int) int {
	return 3*pitchDelayMin + index - 2
}

// Decode4BitSecondDelay3 decodes a 4-bit differential index with three
// zones: integer-only, 1/3 fractional, integer-only.
func Decode4BitSecondDelay3(index, pitchDelayMin int) int {
	switch {
	case index < 4:
		return 3 * (index + pitchDelayMin)
	case index < 12:
		return 3*pitchDelayMin + index + 6
	default:
		return 3*(index+pitchDelayMin) - 18
	}
}

// Decode9BitFirstDelay6 decodes an absolute 9-bit lag index into a delay in
// 1/6 sample units.
func Decode9BitFirstDelay6(index int) int {
	if index < 463 {
		return index + 105
	}
	return 6 * (index - 368)
}

// Decode6BitSecondDelay6 decodes a differential 6-bit index into a delay in
// 1/6 units.
func Decode6BitSecondDelay6(index, pitchDelayMin int) int {
	return 6*pitchDelayMin + index - 3
}

// clip returns v clipped to [lo, hi].
func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DecodePitchLag decodes an AMR-style 1/3 resolution lag.
//
// Subframe 0 (and subframe 2 when thirdAsFirst) is absolute; later
// subframes are differential to prevLag with a window of 4, 5 or 6 bits
// given by resolution. Frac is returned in [-1, 1].
func DecodePitchLag(index, prevLag, subframe int, thirdAsFirst bool, resolution int) Lag {
	if subframe == 0 || (subframe == 2 && thirdAsFirst) {
		if index < 197 {
			index += 59
		} else {
			index = 3*index - 335
		}
	} else if resolution == 4 {
		lo := clip(prevLag-5, PitchDelayMin, PitchDelayMax-9)
		switch {
		case index < 4:
			index = 3*(index+lo) + 1
		case index < 12:
			index += 3*lo + 7
		default:
			index = 3*(index+lo-6) + 1
		}
	} else {
		index--
		if resolution == 5 {
			index += 3 * clip(prevLag-10, PitchDelayMin, PitchDelayMax-19)
		} else {
			index += 3 * clip(prevLag-5, PitchDelayMin, PitchDelayMax-9)
		}
	}
	// n*10923>>15 is floor(n/3) for 0 <= n <= 32767
	li := (index * 10923) >> 15
	return Lag{Int: li, Frac: index - 3*li - 1}
}

// DecodePitchLag6 decodes a 1/6 resolution lag. Frac is returned in [-2, 3].
func DecodePitchLag6(index, prevLag, subframe int, minLag, maxLag int) Lag {
	var li, lf int
	if subframe == 0 || subframe == 2 {
		if index < 463 {
			li = (index + 107) * 10923 >> 16
			lf = index - 6*li + 105
		} else {
			li = index - 368
			lf = 0
		}
	} else {
		li = ((index + 5) * 10923 >> 16) - 1
		lf = index - 6*li - 3
		li += clip(prevLag-5, minLag, maxLag-9)
	}
	return Lag{Int: li, Frac: lf}
}

// Split3 converts a delay in 1/3 units to an integer lag and a fraction in
// [0, 2] of whole-sample steps towards the past.
func Split3(delay int) Lag {
	return Lag{Int: delay / 3, Frac: delay % 3}
}

// ValidateLag checks that an integer lag is inside [min, max]. A lag of
// zero is never a valid distance and is always rejected.
func ValidateLag(lag, min, max int) error {
	if lag == 0 {
		return fmt.Errorf("%w: pitch lag 0", ErrInvalidParameter)
	}
	if lag < min || lag > max {
		return fmt.Errorf("%w: pitch lag %d outside [%d, %d]", ErrInvalidParameter, lag, min, max)
	}
	return nil
}
