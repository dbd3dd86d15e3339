package fixed

import "math"

// log2Tab holds log2(1 + i/32) in Q15 for i in [0, 32].
var log2Tab [33]uint16

// exp2Tab holds 2^(i/32) in Q15 minus 32768 for i in [0, 32].
var exp2Tab [33]uint16

func init() {
	for i := range log2Tab {
		log2Tab[i] = uint16(math.Round(math.Log2(1+float64(i)/32) * 32768))
		v := math.Round((math.Exp2(float64(i)/32) - 1) * 32768)
		if v > 65535 {
			v = 65535
		}
		exp2Tab[i] = uint16(v)
	}
}

// Log2Q15 returns log2(value) in Q15 using a 32-segment table with linear
// interpolation. value must be non-zero.
func Log2Q15(value uint32) int32 {
	if value == 0 {
		return 0
	}
	powerInt := Log2(value)
	value <<= uint(31 - powerInt)
	x0 := (value & 0x7c000000) >> 26
	dx := (value & 0x03fff800) >> 11
	frac := uint32(log2Tab[x0])
	frac += (dx * uint32(log2Tab[x0+1]-log2Tab[x0])) >> 15
	return int32(powerInt<<15) + int32(frac)
}

// Exp2Q15 returns 2^(power/32768) in Q15 for power in [0, 32767],
// i.e. a value in [32768, 65535].
func Exp2Q15(power uint16) int32 {
	x0 := uint32(power>>10) & 31
	dx := uint32(power & 0x3ff)
	v := uint32(exp2Tab[x0])
	v += (dx * (uint32(exp2Tab[x0+1]) - v)) >> 10
	return int32(v + 32768)
}

// Pow2 returns 2^(q15/32768) scaled to Q15 for a signed Q15 exponent,
// saturating at int32 bounds.
func Pow2(q15 int32) int32 {
	intPart := q15 >> 15
	frac := uint16(q15 & 0x7fff)
	m := int64(Exp2Q15(frac))
	switch {
	case intPart >= 16:
		return 2147483647
	case intPart >= 0:
		return Sat32(m << uint(intPart))
	case intPart <= -31:
		return 0
	default:
		return int32(m >> uint(-intPart))
	}
}
