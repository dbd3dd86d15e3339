package g7231

import (
	"github.com/thesyncim/gocelp/internal/fixed"
)

// subframe holds the decoded per-subframe parameters.
type subframe struct {
	adCBLag   int // closed loop lag offset (0..3)
	adCBGain  int // adaptive codebook gain index
	dirac     bool
	pulseSign int
	grid      int
	ampIndex  int
	pulsePos  int
}

// genDiracTrain adds copies of buf delayed by multiples of lag.
func genDiracTrain(buf []int16, lag int) {
	var vector [subframeLen]int16
	copy(vector[:], buf[:subframeLen])
	for i := lag; i < subframeLen; i += lag {
		for j := 0; j < subframeLen-i; j++ {
			buf[i+j] += vector[j]
		}
	}
}

// genFCB writes the fixed codebook vector of one subframe.
func genFCB(vector []int16, sf *subframe, rate, pitchLag, index int) {
	clear(vector[:subframeLen])

	if rate == Rate6300 {
		if sf.pulsePos >= maxPos[index] {
			return
		}
		j := pulseMax - pulses[index]
		temp := int32(sf.pulsePos)
		gain := fixedCBGain[sf.ampIndex]
		for i := 0; i < subframeLen/gridSize; i++ {
			temp -= combinatorialTable[j][i]
			if temp >= 0 {
				continue
			}
			temp += combinatorialTable[j][i]
			j++
			pos := sf.grid + gridSize*i
			if sf.pulseSign&(1<<(pulseMax-j)) != 0 {
				vector[pos] = -gain
			} else {
				vector[pos] = gain
			}
			if j == pulseMax {
				break
			}
		}
		if sf.dirac {
			genDiracTrain(vector, pitchLag)
		}
		return
	}

	gain := fixedCBGain[sf.ampIndex]
	cbPos := sf.pulsePos
	cbSign := sf.pulseSign
	for i := 0; i < 8; i += 2 {
		offset := (cbPos&7)<<3 + sf.grid + i
		if cbSign&1 != 0 {
			vector[offset] = gain
		} else {
			vector[offset] = -gain
		}
		cbPos >>= 3
		cbSign >>= 1
	}

	// harmonic enhancement
	lag := int(pitchContrib[sf.adCBGain<<1]) + pitchLag + sf.adCBLag - 1
	beta := int32(pitchContrib[sf.adCBGain<<1+1])
	if lag < subframeLen-2 {
		for i := lag; i < subframeLen; i++ {
			vector[i] += int16(beta * int32(vector[i-lag]) >> 15)
		}
	}
}

// acbPulsesValid reports whether every 5.3 kbit/s pulse lands inside the
// subframe.
func acbPulsesValid(pos, grid int) bool {
	for i := 0; i < 8; i += 2 {
		if (pos&7)<<3+grid+i >= subframeLen {
			return false
		}
		pos >>= 3
	}
	return true
}

// getResidual extends the excitation at lag periodically over the
// subframe plus the predictor support. hist holds pitchMax samples before
// the subframe.
func getResidual(residual []int16, hist []int16, lag int) {
	offset := pitchMax - pitchOrder/2 - lag
	residual[0] = hist[offset]
	residual[1] = hist[offset+1]
	offset += 2
	for i := 2; i < subframeLen+pitchOrder-1; i++ {
		residual[i] = hist[offset+(i-2)%lag]
	}
}

// usesGain85 reports whether the small adaptive gain table applies.
func usesGain85(rate, pitchLag int) bool {
	return rate == Rate6300 && pitchLag < subframeLen-2
}

// genACB writes the adaptive codebook vector of one subframe using the
// five tap pitch predictor.
func genACB(vector []int16, hist []int16, pitchLag int, sf *subframe, rate int) {
	var residual [subframeLen + pitchOrder - 1]int16
	lag := pitchLag + sf.adCBLag - 1
	getResidual(residual[:], hist, lag)

	var cb *[pitchOrder]int16
	if usesGain85(rate, pitchLag) {
		cb = &adaptiveCBGain85[sf.adCBGain]
	} else {
		cb = &adaptiveCBGain170[sf.adCBGain]
	}
	for i := 0; i < subframeLen; i++ {
		sum := fixed.Dot16(residual[i:], cb[:], pitchOrder)
		vector[i] = int16(fixed.DAddSat32(1<<15, fixed.AddSat32(sum, sum)) >> 16)
	}
}
