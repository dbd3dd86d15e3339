package g7231

import "github.com/thesyncim/gocelp/internal/fixed"

// sidGainToLSPIndex expands the 6-bit SID gain to the excitation energy
// domain.
func sidGainToLSPIndex(gain int) int32 {
	g := int32(gain)
	switch {
	case g < 0x10:
		return g << 6
	case g < 0x20:
		return (g - 8) << 7
	default:
		return (g - 20) << 8
	}
}

// estimateSIDGain quantizes the energy of the last active frame into a
// SID gain index.
func estimateSIDGain(sidGain, curGain int32) int32 {
	var t int32
	if shift := 16 - curGain*2; shift > 0 {
		switch {
		case sidGain == 0:
			t = 0
		case shift >= 31 || (sidGain<<uint(shift))>>uint(shift) != sidGain:
			if sidGain < 0 {
				t = -1 << 31
			} else {
				t = 1<<31 - 1
			}
		default:
			t = sidGain << uint(shift)
		}
	} else {
		t = sidGain >> uint(-shift)
	}
	x := fixed.Sat32(int64(t) * int64(cngFilt[0]) >> 16)

	if x >= cngBseg[2] {
		return 0x3f
	}

	var shift, seg int32
	if x >= cngBseg[1] {
		shift, seg = 4, 3
	} else {
		shift = 3
		if x >= cngBseg[0] {
			seg = 1
		}
	}
	seg2 := min(seg, 3)

	val := int32(1) << uint(shift)
	valAdd := val >> 1
	for i := int32(0); i < shift; i++ {
		t := seg*32 + val<<uint(seg2)
		if x >= t*t {
			val += valAdd
		} else {
			val -= valAdd
		}
		valAdd >>= 1
	}

	t = seg*32 + val<<uint(seg2)
	y := t*t - x
	if y <= 0 {
		t = seg*32 + (val+1)<<uint(seg2)
		t = t*t - x
		val = (seg2-1)*16 + val
		if t >= y {
			val++
		}
	} else {
		t = seg*32 + (val-1)<<uint(seg2)
		t = t*t - x
		val = (seg2-1)*16 + val
		if t >= y {
			val--
		}
	}
	return val
}

// generateNoise writes one frame of comfort noise excitation into window
// (pitchMax samples of history followed by the frame). The adaptive
// codebook runs on random long lags and eleven random pulses per subframe
// pair are added with a gain solved to match curGain.
func (d *Decoder) generateNoise(window []int16) {
	rng := &d.cngRand
	var lags [2]int
	lags[0] = rng.Intn(21) + 123
	lags[1] = rng.Intn(19) + 123

	var sf [subframes]subframe
	for i := range sf {
		sf[i].adCBGain = rng.Intn(50) + 1
		sf[i].adCBLag = cngAdaptiveCBLag[i]
	}

	var off [subframes]int
	var signs, pos [subframes / 2 * 11]int32
	for i := 0; i < subframes/2; i++ {
		t := rng.Intn(1 << 13)
		off[i*2] = t & 1
		off[i*2+1] = (t>>1)&1 + subframeLen
		t >>= 2
		for j := 0; j < 11; j++ {
			signs[i*11+j] = int32((t&1)*2-1) << 14
			t >>= 1
		}
	}

	idx := 0
	for i := 0; i < subframes; i++ {
		var tmp [subframeLen / 2]int
		for j := range tmp {
			tmp[j] = j
		}
		n := subframeLen / 2
		for j := 0; j < pulses[i]; j, idx = j+1, idx+1 {
			k := rng.Intn(n)
			pos[idx] = int32(tmp[k]*2 + off[i])
			n--
			tmp[k] = tmp[n]
		}
	}

	for i := 0; i < subframes; i += 2 {
		base := i * subframeLen
		vec := window[pitchMax+base : pitchMax+base+2*subframeLen]
		genACB(vec[:subframeLen], window[base:], lags[i>>1], &sf[i], d.rate)
		genACB(vec[subframeLen:], window[base+subframeLen:], lags[i>>1], &sf[i+1], d.rate)

		var peak int32
		for _, v := range vec {
			peak |= fixed.Abs32(int32(v))
		}
		peak = min(peak, 0x7fff)
		shift := 0
		if peak != 0 {
			shift = max(fixed.Log2(uint32(peak))-10, -2)
		}

		var tmp [2 * subframeLen]int32
		var sum int64
		for j, v := range vec {
			var t int32
			if shift < 0 {
				t = int32(v) << uint(-shift)
			} else {
				t = int32(v) >> uint(shift)
			}
			sum += int64(t) * int64(t)
			tmp[j] = t
		}

		// b0 = sum(sign*pulse)/11, c = (energy - target)/11
		var b0 int64
		for j := 0; j < 11; j++ {
			b0 += int64(tmp[pos[i/2*11+j]]) * int64(signs[i/2*11+j])
		}
		b0 = (b0*2*2979 + 1<<29) >> 30

		c := d.curGain * (d.curGain * subframeLen >> 5)
		if s := shift*2 + 3; s >= 0 {
			c >>= uint(s)
		} else {
			c <<= uint(-s)
		}
		c = int32((int64(fixed.Sat32(sum<<1)) - int64(c)) * 2979 >> 15)

		b := int32(b0)
		var x int32
		if delta := b*b*2 - c; delta <= 0 {
			x = -b
		} else {
			delta = squareRoot(uint32(delta))
			x = delta - b
			if t := delta + b; fixed.Abs32(t) < fixed.Abs32(x) {
				x = -t
			}
		}
		shift++
		if shift < 0 {
			x >>= uint(-shift)
		} else {
			x <<= uint(shift)
		}
		x = min(max(x, -10000), 10000)

		for j := 0; j < 11; j++ {
			k := i/2*11 + j
			p := pos[k]
			vec[p] = fixed.Sat16(int32(vec[p]) + (x * signs[k] >> 15))
		}
	}
}
