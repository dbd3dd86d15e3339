package evrc

import (
	"fmt"
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
)

// interpolateDelay returns the delay at the start of subframe i, at its
// end, and one subframe further, on the line from prev to cur.
func interpolateDelay(cur, prev float64, i int) [3]float64 {
	var d [3]float64
	for k := range d {
		w := delayInterp[i+k]
		d[k] = (1-w)*prev + w*cur
	}
	return d
}

// acbContour writes n adaptive codebook samples at buf[pos:] with the
// delay moving linearly from delay[0] to delay[1] over the subframe. The
// fractional part is rounded to 1/8 sample.
func acbContour(buf []float64, pos, n int, delay [3]float64, gain float64) {
	slope := (delay[1] - delay[0]) / float64(n)
	for t := 0; t < n; t++ {
		d := delay[0] + float64(t)*slope
		j := int(d)
		r := int(math.Round((d - float64(j)) * interpRes))
		if r == interpRes {
			j++
			r = 0
		}
		celp.Interpolate(buf, pos+t, pos+t-j, interpFilter, interpRes, r, interpLen, 1)
	}
	for t := pos; t < pos+n; t++ {
		buf[t] *= gain
	}
}

// fullRatePulses returns the eight pulse positions and signs of a 35-bit
// code: four tracks interleaved by five with an offset rotation, two
// pulses per track.
func fullRatePulses(code []int) (pos [8]int, sign [8]float64) {
	offset := (code[3] >> 9) & 3
	for i := 0; i < 4; i++ {
		c := code[i] & 0x7f
		track := (i + offset) % 5
		pos[2*i] = (c/11)*5 + track
		pos[2*i+1] = (c%11)*5 + track
	}
	for i := 0; i < 3; i++ {
		s := 1.0
		if code[i]&0x80 != 0 {
			s = -1
		}
		sign[2*i] = s
		// the second pulse repeats the sign, inverted when it comes first
		if pos[2*i+1] < pos[2*i] {
			s = -s
		}
		sign[2*i+1] = s
	}
	sign[6], sign[7] = 1, 1
	if code[3]&0x100 != 0 {
		sign[6] = -1
	}
	if code[3]&0x80 != 0 {
		sign[7] = -1
	}
	return pos, sign
}

// halfRatePulses returns the three pulse positions and signs of a 10-bit
// code on tracks of seven.
func halfRatePulses(code int) (pos [3]int, sign [3]float64) {
	s := 1.0
	if code&0x200 != 0 {
		s = -1
	}
	pos[0] = (code&7)*7 + 4
	pos[1] = ((code>>3)&7)*7 + 2
	pos[2] = ((code >> 6) & 7) * 7
	return pos, [3]float64{s, -s, s}
}

// checkPulses verifies that every pulse of a subframe lands inside it.
func checkPulses(rate, subframe int, code []int) error {
	n := subframeSizes[subframe]
	var positions []int
	if rate == RateFull {
		p, _ := fullRatePulses(code)
		positions = p[:]
	} else {
		p, _ := halfRatePulses(code[0])
		positions = p[:]
	}
	for _, p := range positions {
		if p >= n {
			return fmt.Errorf("%w: subframe %d: pulse at %d of %d", celp.ErrInvalidParameter, subframe, p, n)
		}
	}
	return nil
}

// fcbVector builds the fixed codebook vector and sharpens it with the
// pitch gain, bounded to [0.2, 0.9], at lag.
func fcbVector(out []float64, rate int, code []int, pitchGain float64, lag int) {
	clear(out)
	if rate == RateFull {
		pos, sign := fullRatePulses(code)
		for i, p := range pos {
			out[p] += sign[i]
		}
	} else {
		pos, sign := halfRatePulses(code[0])
		for i, p := range pos {
			out[p] += sign[i]
		}
	}
	celp.PitchSharpen(out, lag, min(max(pitchGain, 0.2), 0.9))
}
