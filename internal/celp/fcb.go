package celp

import "fmt"

// MaxPulses is the largest pulse count of any fixed codebook.
const MaxPulses = 16

// SparseVector is the sparse form of a fixed codebook vector.
//
// Pulse i sits at X[i] with amplitude Y[i]. When PitchLag > 0 every pulse
// not masked out by NoRepeatMask repeats every PitchLag samples, scaled by
// PitchFac at each repetition, which is how pitch sharpening is applied
// without materializing the vector.
type SparseVector struct {
	N            int
	X            [MaxPulses]int
	Y            [MaxPulses]float64
	NoRepeatMask uint32
	PitchLag     int
	PitchFac     float64
}

// Reset clears all pulses and repetition settings.
func (s *SparseVector) Reset() {
	*s = SparseVector{}
}

// Add appends a pulse.
func (s *SparseVector) Add(x int, y float64) {
	if s.N < MaxPulses {
		s.X[s.N] = x
		s.Y[s.N] = y
		s.N++
	}
}

// Validate checks that every pulse position lies in [0, size).
func (s *SparseVector) Validate(size int) error {
	for i := 0; i < s.N; i++ {
		if s.X[i] < 0 || s.X[i] >= size {
			return fmt.Errorf("%w: pulse %d at %d outside subframe of %d", ErrInvalidParameter, i, s.X[i], size)
		}
	}
	return nil
}

// Materialize adds the scaled pulses into out. Pulses landing on the same
// position add their amplitudes, so opposite signs cancel.
func (s *SparseVector) Materialize(out []float64, scale float64) {
	size := len(out)
	for i := 0; i < s.N; i++ {
		x := s.X[i]
		y := s.Y[i] * scale
		repeats := (s.NoRepeatMask>>uint(i))&1 == 0
		if x < 0 || x >= size {
			continue
		}
		for {
			out[x] += y
			y *= s.PitchFac
			x += s.PitchLag
			if s.PitchLag <= 0 || x >= size || !repeats {
				break
			}
		}
	}
}

// Clear zeroes every position Materialize would touch.
func (s *SparseVector) Clear(out []float64) {
	size := len(out)
	for i := 0; i < s.N; i++ {
		x := s.X[i]
		repeats := (s.NoRepeatMask>>uint(i))&1 == 0
		if x < 0 || x >= size {
			continue
		}
		for {
			out[x] = 0
			x += s.PitchLag
			if s.PitchLag <= 0 || x >= size || !repeats {
				break
			}
		}
	}
}

// GrayDecode8 maps a 3-bit gray code to a track position step (0..35 step 5).
var GrayDecode8 = [8]int{0, 5, 15, 10, 25, 30, 20, 35}

// Decode10Pulses35Bits decodes paired, gray-coded pulses: each index pair
// (2i, 2i+1) places two pulses on track i. The sign bit is above the
// position bits of the second index; the first pulse's sign flips when it
// lies before the second.
func Decode10Pulses35Bits(s *SparseVector, index []int, gray []int, halfCount, bits int) error {
	if len(index) < 2*halfCount {
		return fmt.Errorf("%w: %d pulse codes, need %d", ErrInvalidParameter, len(index), 2*halfCount)
	}
	mask := 1<<uint(bits) - 1
	s.NoRepeatMask = 0
	s.N = 2 * halfCount
	for i := 0; i < halfCount; i++ {
		pos1 := gray[index[2*i+1]&mask] + i
		pos2 := gray[index[2*i]&mask] + i
		sign := 1.0
		if index[2*i+1]>>uint(bits) != 0 {
			sign = -1
		}
		s.X[2*i+1] = pos1
		s.X[2*i] = pos2
		s.Y[2*i+1] = sign
		if pos2 < pos1 {
			s.Y[2*i] = -sign
		} else {
			s.Y[2*i] = sign
		}
	}
	return nil
}

// DecodeTrackPulses decodes one pulse per track: field i of width bits
// indexes tracks[i], and bit i of signs gives its sign (1 = positive).
// This is the N-tracks-of-one-pulse family.
func DecodeTrackPulses(s *SparseVector, code, signs int, tracks [][]int, bits int) error {
	mask := 1<<uint(bits) - 1
	for i, tr := range tracks {
		idx := (code >> uint(i*bits)) & mask
		if idx >= len(tr) {
			return fmt.Errorf("%w: track %d index %d", ErrInvalidParameter, i, idx)
		}
		sign := -1.0
		if (signs>>uint(i))&1 != 0 {
			sign = 1
		}
		s.Add(tr[idx], sign)
	}
	return nil
}

// Base5Digits splits a base-5 coded value into count digits, least
// significant first.
func Base5Digits(v, count int) []int {
	d := make([]int, count)
	for i := 0; i < count; i++ {
		d[i] = v % 5
		v /= 5
	}
	return d
}

// PulsesQ13 accumulates +-1.0 (Q13) pulses into an int16 vector: one pulse
// per track selected by successive bits-wide fields of indexes from tab1,
// and a final pulse from tab2. Coinciding pulses add.
func PulsesQ13(fc []int16, tab1, tab2 []int, indexes, signs, count, bits int) error {
	mask := 1<<uint(bits) - 1
	for i := 0; i < count; i++ {
		p := i + tab1[indexes&mask]
		if p >= len(fc) {
			return fmt.Errorf("%w: pulse position %d", ErrInvalidParameter, p)
		}
		if signs&1 != 0 {
			fc[p] += 8191
		} else {
			fc[p] -= 8192
		}
		indexes >>= uint(bits)
		signs >>= 1
	}
	if indexes >= len(tab2) {
		return fmt.Errorf("%w: last pulse index %d", ErrInvalidParameter, indexes)
	}
	p := tab2[indexes]
	if p >= len(fc) {
		return fmt.Errorf("%w: pulse position %d", ErrInvalidParameter, p)
	}
	if signs&1 != 0 {
		fc[p] += 8191
	} else {
		fc[p] -= 8192
	}
	return nil
}
