package wmavoice

import "github.com/thesyncim/gocelp/util"

// Pitch coding constants for 8 kHz streams.
const (
	pitchRange     = maxPitch - minPitch
	framePitchBits = 7 // ceil(log2(pitchRange))
	blockDeltaHalf = (pitchRange >> 3) &^ 0xF
	blockDeltaBits = 5 // 1 + ceil(log2(blockDeltaHalf))
)

// blockConv holds the boundaries of the semi-logarithmic block pitch
// scale: quarter sample steps up to conv[1], half steps up to conv[2],
// whole samples up to conv[3].
var blockConv = [4]int{
	minPitch,
	(pitchRange * 25) >> 6,
	(pitchRange * 44) >> 6,
	maxPitch - 1,
}

var (
	blockPitchRange = blockConv[2] + blockConv[3] + 1 + 2*(blockConv[1]-2*minPitch)
	blockPitchBits  = bitsFor(blockPitchRange)
)

// pitchState carries the pitch of the previous frame, which the per frame
// pitch interpolates from. The unpacker tracks it too since the AW field
// widths depend on the block pitches.
type pitchState struct {
	last     int
	lastACB  acbType
	diffSh16 int // per sample pitch change in Q16
}

func newPitchState() pitchState {
	return pitchState{last: 40, lastACB: acbNone}
}

// framePitch decodes the frame pitch of a one pitch per frame type and
// returns it with the pitch of every block. A jump of more than a tenth
// of the pitch restarts the interpolation at the new value.
func (s *pitchState) framePitch(d *frameDesc, code int) (cur int, blocks [maxBlocks]int) {
	cur = min(minPitch+code, maxPitch-1)
	if s.lastACB == acbNone || 20*util.Abs(cur-s.last) > cur+s.last {
		s.last = cur
	}
	n2 := d.blocks << 1
	for n := 0; n < d.blocks; n++ {
		fac := 2*n + 1
		blocks[n] = (fac*cur + (n2-fac)*s.last + d.blocks) >> (d.logBlocks + 1)
	}
	s.diffSh16 = ((cur - s.last) << 16) / frameLen
	return cur, blocks
}

// blockPitch decodes the pitch of block n of a one pitch per block type
// in quarter samples. last carries the clipped code of the previous
// block, which deltas are relative to.
func blockPitch(n, code int, last *int) int {
	bp := code
	if n > 0 {
		bp = *last - blockDeltaHalf + code
	}
	*last = min(max(bp, blockDeltaHalf), blockPitchRange-blockDeltaHalf)

	t1 := (blockConv[1] - blockConv[0]) << 2
	t2 := (blockConv[2] - blockConv[1]) << 1
	t3 := blockConv[3] - blockConv[2] + 1
	switch {
	case bp < t1:
		return blockConv[0]<<2 + bp
	case bp < t1+t2:
		return blockConv[1]<<2 + (bp-t1)<<1
	case bp < t1+t2+t3:
		return (blockConv[2] + bp - t1 - t2) << 2
	default:
		return blockConv[3] << 2
	}
}

// blockPitchBitsAt returns the width of the block pitch code of block n.
func blockPitchBitsAt(n int) int {
	if n == 0 {
		return blockPitchBits
	}
	return blockDeltaBits
}

// endFrame records the pitch the next frame starts from.
func (s *pitchState) endFrame(d *frameDesc, cur int, blocks *[maxBlocks]int) {
	s.lastACB = d.acb
	switch d.acb {
	case acbNone:
		s.last = 0
	case acbAsymmetric:
		s.last = cur
	case acbHamming:
		s.last = blocks[d.blocks-1]
	}
}
