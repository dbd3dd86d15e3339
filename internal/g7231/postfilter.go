package g7231

import (
	"math"

	"github.com/thesyncim/gocelp/internal/fixed"
)

// ppfParam is the pitch postfilter setting of one subframe.
type ppfParam struct {
	index   int   // postfilter lag, negative for backward
	optGain int32 // optimal gain (Q15)
	scGain  int32 // scaling gain (Q15)
}

// squareRoot returns sqrt(val/2) rounded down to an even value.
func squareRoot(val uint32) int32 {
	return int32(fixed.Sqrt(val<<1)>>1) &^ 1
}

// autocorrMax searches lags around pitchLag for the largest correlation
// between buf[offset:] and the signal dir*lag samples away. The search
// only raises *ccrMax; it returns 0 if nothing beat the initial value.
func autocorrMax(buf []int16, offset int, ccrMax *int32, pitchLag, length, dir int) int {
	pitchLag = min(pitchMax-ppfTaps, pitchLag)
	limit := pitchLag + ppfTaps
	if dir > 0 {
		limit = min(frameLen+pitchMax-offset-length, limit)
	}
	lag := 0
	for i := pitchLag - ppfTaps; i <= limit; i++ {
		ccr := fixed.DotSat(buf[offset:], buf[offset+dir*i:], length)
		if ccr > *ccrMax {
			*ccrMax = ccr
			lag = i
		}
	}
	return lag
}

// compPPFGains derives the optimal and scaling gains from the normalized
// target energy, cross-correlation and residual energy.
func compPPFGains(lag int, rate int, tgtEng, ccr, resEng int32) ppfParam {
	ppf := ppfParam{index: lag}

	temp1 := tgtEng * resEng >> 1
	temp2 := ccr * ccr << 1
	if temp2 > temp1 {
		if ccr >= resEng {
			ppf.optGain = ppfGainWeight[rate]
		} else {
			ppf.optGain = (ccr << 15) / resEng * ppfGainWeight[rate] >> 15
		}
		// pf_res^2 = tgt_eng + 2*ccr*gain + res_eng*gain^2
		temp1 = tgtEng<<15 + ccr*ppf.optGain<<1
		temp2 = (ppf.optGain * ppf.optGain >> 15) * resEng
		pfResidual := fixed.AddSat32(temp1, temp2+1<<15) >> 16

		if pfResidual <= 0 || tgtEng >= pfResidual<<1 {
			temp1 = 0x7fff
		} else {
			temp1 = (tgtEng << 14) / pfResidual
		}
		ppf.scGain = squareRoot(uint32(temp1) << 16)
	} else {
		ppf.optGain = 0
		ppf.scGain = 0x7fff
	}
	ppf.optGain = int32(fixed.Sat16(ppf.optGain * ppf.scGain >> 15))
	return ppf
}

// compPPFCoeff picks the forward or backward postfilter lag of the
// subframe starting at buf[offset] and computes its gains.
func compPPFCoeff(buf []int16, offset, pitchLag, rate int) ppfParam {
	// target energy, forward cross-correlation and residual energy,
	// backward cross-correlation and residual energy
	var energy [5]int32
	fwdLag := autocorrMax(buf, offset, &energy[1], pitchLag, subframeLen, 1)
	backLag := autocorrMax(buf, offset, &energy[3], pitchLag, subframeLen, -1)

	if fwdLag == 0 && backLag == 0 {
		return ppfParam{scGain: 0x7fff}
	}

	cur := buf[offset:]
	energy[0] = fixed.DotSat(cur, cur, subframeLen)
	if fwdLag != 0 {
		v := buf[offset+fwdLag:]
		energy[2] = fixed.DotSat(v, v, subframeLen)
	}
	if backLag != 0 {
		v := buf[offset-backLag:]
		energy[4] = fixed.DotSat(v, v, subframeLen)
	}

	var peak int32
	for _, e := range energy {
		peak = max(peak, e)
	}
	scale := uint(fixed.NormalizeBits(peak, 31))
	for i := range energy {
		energy[i] = (energy[i] << scale) >> 16
	}

	switch {
	case backLag == 0:
		return compPPFGains(fwdLag, rate, energy[0], energy[1], energy[2])
	case fwdLag == 0:
		return compPPFGains(-backLag, rate, energy[0], energy[3], energy[4])
	}
	// keep the direction with the larger ccr^2/energy
	t1 := energy[4] * ((energy[1]*energy[1] + 1<<14) >> 15)
	t2 := energy[2] * ((energy[3]*energy[3] + 1<<14) >> 15)
	if t1 >= t2 {
		return compPPFGains(fwdLag, rate, energy[0], energy[1], energy[2])
	}
	return compPPFGains(-backLag, rate, energy[0], energy[3], energy[4])
}

// compInterpIndex classifies the frame for concealment. It scales the
// excitation window into scaled and returns the backward lag to repeat
// if the last two subframes are voiced (0 otherwise), the excitation
// energy estimate and the applied scale.
func compInterpIndex(scaled, exc []int16, pitchLag int) (index int, excEng, scale int32) {
	scale = int32(fixed.ScaleVector(scaled, exc, frameLen+pitchMax))
	offset := pitchMax + 2*subframeLen
	buf := scaled[offset:]

	var ccr int32
	index = autocorrMax(scaled, offset, &ccr, pitchLag, 2*subframeLen, -1)
	ccr = fixed.AddSat32(ccr, 1<<15) >> 16

	tgtEng := fixed.DotSat(buf, buf, 2*subframeLen)
	excEng = fixed.AddSat32(tgtEng, 1<<15) >> 16
	if ccr <= 0 {
		return 0, excEng, scale
	}

	past := scaled[offset-index:]
	bestEng := fixed.DotSat(past, past, 2*subframeLen)
	bestEng = fixed.AddSat32(bestEng, 1<<15) >> 16
	if bestEng*excEng>>3 < ccr*ccr {
		return index, excEng, scale
	}
	return 0, excEng, scale
}

// formantState is the memory of the formant postfilter.
type formantState struct {
	firMem     [lpcOrder]int16
	iirMem     [lpcOrder]int32
	reflection int32
	pfGain     int32
}

func (f *formantState) reset() {
	*f = formantState{pfGain: 1 << 12}
}

// iirFilter runs the pole-zero filter A(z/g1)/A(z/g2) over one subframe.
// src and dest carry lpcOrder samples of history before index lpcOrder;
// dest keeps 16 fractional bits.
func iirFilter(fir, iir *[lpcOrder]int16, src []int16, dest []int32) {
	for m := lpcOrder; m < lpcOrder+subframeLen; m++ {
		var filter int64
		for n := 1; n <= lpcOrder; n++ {
			filter -= int64(fir[n-1])*int64(src[m-n]) - int64(iir[n-1])*int64(dest[m-n]>>16)
		}
		dest[m] = fixed.Sat32(int64(src[m])*65536 + filter*8 + 1<<15)
	}
}

// gainScale brings the postfiltered subframe back to the given energy
// with a smoothed gain.
func (f *formantState) gainScale(buf []int16, energy int32) {
	num := energy
	var denom int32
	for i := 0; i < subframeLen; i++ {
		t := int32(buf[i] >> 2)
		denom = fixed.DAddSat32(denom, t*t)
	}

	gain := int32(1 << 12)
	if num != 0 && denom != 0 {
		bits1 := fixed.NormalizeBits(num, 31)
		bits2 := fixed.NormalizeBits(denom, 31)
		num = num << uint(bits1) >> 1
		denom <<= uint(bits2)
		shift := min(max(5+bits1-bits2, 0), 31)

		g := int64((num >> 1) / (denom >> 16))
		g = (g << 16) >> uint(shift)
		if g > math.MaxInt32 {
			g = math.MaxInt32
		}
		gain = squareRoot(uint32(g))
	}

	for i := 0; i < subframeLen; i++ {
		f.pfGain = (15*f.pfGain + gain + 1<<3) >> 4
		buf[i] = fixed.Sat16((int32(buf[i])*(f.pfGain+f.pfGain>>4) + 1<<10) >> 11)
	}
}

// process filters the synthesized frame in audio (lpcOrder samples of
// memory followed by the frame) into dst. The first lpcOrder samples of
// audio are overwritten with the filter memory.
func (f *formantState) process(lpc *[subframes][lpcOrder]int16, audio []int16, dst []int16) {
	var signal [lpcOrder + frameLen]int32
	copy(audio, f.firMem[:])
	copy(signal[:], f.iirMem[:])

	for s := 0; s < subframes; s++ {
		var num, den [lpcOrder]int16
		for k := 0; k < lpcOrder; k++ {
			num[k] = int16((-int32(lpc[s][k])*int32(postfilterTbl[0][k]) + 1<<14) >> 15)
			den[k] = int16((-int32(lpc[s][k])*int32(postfilterTbl[1][k]) + 1<<14) >> 15)
		}
		base := s * subframeLen
		iirFilter(&num, &den, audio[base:], signal[base:])
	}

	copy(f.firMem[:], audio[frameLen:frameLen+lpcOrder])
	copy(f.iirMem[:], signal[frameLen:frameLen+lpcOrder])

	for s := 0; s < subframes; s++ {
		base := s * subframeLen
		in := audio[lpcOrder+base:]
		out := dst[base : base+subframeLen]
		sig := signal[lpcOrder+base-1:]

		scale := fixed.ScaleVector(out, in, subframeLen)
		ac0 := fixed.DotSat(out, out[1:], subframeLen-1)
		ac1 := fixed.DotSat(out, out, subframeLen)

		// first reflection coefficient, smoothed
		t := ac1 >> 16
		if t != 0 {
			t = (ac0 >> 2) / t
		}
		f.reflection = (3*f.reflection + t + 2) >> 2
		t = -f.reflection >> 1 &^ 3

		// tilt compensation
		for j := 0; j < subframeLen; j++ {
			out[j] = int16(fixed.DAddSat32(sig[j+1], (sig[j]>>16)*t) >> 16)
		}

		var energy int32
		if sh := 2*scale + 4; sh < 0 {
			energy = fixed.Sat32(int64(ac1) << uint(-sh))
		} else {
			energy = ac1 >> uint(sh)
		}
		f.gainScale(out, energy)
	}
}
