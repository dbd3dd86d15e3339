package wmavoice

import "github.com/thesyncim/gocelp/internal/celp"

// awBlock is the block length of the AW frame types.
const awBlock = frameLen / 2

// awState holds the pitch-adaptive window layout of the current frame.
type awState struct {
	ext        bool   // start position coded in 8 bits
	pulseRange int    // 16 or 24 samples around each window centre
	nPulses    [2]int // windows per block, zero or less for none
	firstOff   [2]int // first window offset per block
	nextOff    int    // second set offset carried into block 1
}

// parse lays out the windows from the start position index and the two
// block pitches.
func (a *awState) parse(pos int, pitch [2]int) {
	a.ext = pos >= 54
	a.pulseRange = 16
	if min(pitch[0], pitch[1]) > 32 {
		a.pulseRange = 24
	}
	start := awStartOffset[pos]
	off := start
	for off < 0 {
		off += pitch[0]
	}
	a.nPulses[0] = (pitch[0] - 1 + awBlock - off) / pitch[0]
	a.firstOff[0] = off - a.pulseRange/2
	off += a.nPulses[0] * pitch[0]
	a.nPulses[1] = (pitch[1] - 1 + frameLen - off) / pitch[1]
	a.firstOff[1] = off - (frameLen+a.pulseRange)/2

	// continue from before the block at the earliest window that still
	// reaches into it
	if start < awBlock {
		for a.firstOff[1]-pitch[1]+a.pulseRange > 0 {
			a.firstOff[1] -= pitch[1]
		}
		if start < 0 {
			for a.firstOff[0]-pitch[0]+a.pulseRange > 0 {
				a.firstOff[0] -= pitch[0]
			}
		}
	}
}

func (a *awState) set1Bits(block int) int {
	if a.ext && block == 0 {
		return 10
	}
	return 12
}

func (a *awState) set2Bits(block int) int {
	if a.nPulses[0] > 0 {
		return 5 - 2*block
	}
	return 4
}

// set1 places the first pulse set: pulses inside each window when the
// block has windows, otherwise one non-repeating pulse pair.
func (a *awState) set1(s *celp.SparseVector, block, val, lag int) {
	if a.nPulses[block] > 0 {
		n, vMask, iMask, sh := 4, 4, 3, 3
		if a.pulseRange == 24 {
			n, vMask, iMask, sh = 3, 8, 7, 4
		}
		for k := n - 1; k >= 0; k, val = k-1, val>>sh {
			y := 1.0
			if val&vMask != 0 {
				y = -1
			}
			x := (val&iMask)*n + k + a.firstOff[block]
			for x < 0 {
				x += lag
			}
			if x < awBlock {
				s.Add(x, y)
			}
		}
		return
	}

	num2 := (val & 0x1FF) >> 1
	var delta, idx int
	switch {
	case num2 < 79:
		delta, idx = 1, num2+1
	case num2 < 2*78:
		delta, idx = 3, num2+1-77
	case num2 < 3*77:
		delta, idx = 5, num2+1-2*76
	default:
		delta, idx = 7, num2+1-3*75
	}
	v := 1.0
	if val&0x200 != 0 {
		v = -1
	}
	s.NoRepeatMask |= 3 << uint(s.N)
	s.Add(idx-delta, v)
	if val&1 != 0 {
		s.Add(idx, -v)
	} else {
		s.Add(idx, v)
	}
}

// set2 places one pulse at the aidx-th position not covered by the
// windows of set1. It returns false when every position is taken.
func (a *awState) set2(s *celp.SparseVector, block, aidx int, negative bool, lag int) bool {
	off := a.firstOff[block]
	if a.nPulses[block] > 0 {
		for off+a.pulseRange < 1 {
			off += lag
		}
	}
	span := 16
	if a.nPulses[0] > 0 {
		if block == 0 {
			span = 32
		} else {
			span = 8
			if a.nPulses[block] > 0 {
				off = a.nextOff
			}
		}
	}
	start := 0
	if a.nPulses[block] > 0 {
		start = off - span/2
	}

	var taken [awBlock]bool
	if a.nPulses[block] > 0 {
		for idx := off; idx < awBlock; idx += lag {
			for k := max(idx, 0); k < min(idx+a.pulseRange, awBlock); k++ {
				taken[k] = true
			}
		}
	}

	pos := 0
	for n := 0; n <= aidx; start++ {
		idx := start
		for idx < 0 {
			idx += lag
		}
		if idx >= awBlock {
			idx = -1
			for k := range taken {
				if !taken[k] {
					idx = k
					break
				}
			}
			if idx < 0 {
				return false
			}
		}
		if !taken[idx] {
			taken[idx] = true
			n++
			pos = idx
		}
	}

	y := 1.0
	if negative {
		y = -1
	}
	s.Add(pos, y)

	if n := (awBlock - pos) % lag; n != 0 {
		a.nextOff = lag - n
	} else {
		a.nextOff = 0
	}
	return true
}

// excPulses places the excitation pulses of one block: one pulse per
// track, two on the first dblPulses tracks. Pulses do not repeat.
func excPulses(s *celp.SparseVector, d *frameDesc, pulses []int, signs int) {
	s.NoRepeatMask = ^uint32(0)
	k := 0
	for n := 0; n < 5; n++ {
		sign := -1.0
		if (signs>>uint(n))&1 != 0 {
			sign = 1
		}
		pos1 := pulses[k]
		k++
		s.Add(n+5*pos1, sign)
		if n < d.dblPulses {
			pos2 := pulses[k]
			k++
			if pos1 < pos2 {
				s.Add(n+5*pos2, -sign)
			} else {
				s.Add(n+5*pos2, sign)
			}
		}
	}
}

// excPulseCount returns the position codes one block carries.
func excPulseCount(d *frameDesc) int { return 5 + d.dblPulses }

// noiseOffset derives the hardcoded codebook offset of a comfort noise
// block from the frame counter, in [0, 1000-size).
func noiseOffset(frame, block, size int) int {
	x := block*1877 + frame
	if x >= 0xFFFF {
		x -= 0xFFFF
	}
	z := uint16(x * 49995 / (x%9*5 + 6))
	return int(z) % (len(stdCodebook) - size)
}
