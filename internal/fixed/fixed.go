// Package fixed provides the saturating integer arithmetic used by the
// fixed-point decoders (G.723.1 and G.729).
//
// All helpers clip to the exact int16/int32 bounds the reference fixed-point
// code clips to. Callers rely on those bounds for bit-exact state evolution,
// so none of them may be replaced by a plain wrapping operation.
package fixed

import "math/bits"

// Sat16 clips x to the int16 range.
func Sat16(x int32) int16 {
	if x > 32767 {
		return 32767
	}
	if x < -32768 {
		return -32768
	}
	return int16(x)
}

// Sat16i clips an int to the int16 range.
func Sat16i(x int) int16 {
	if x > 32767 {
		return 32767
	}
	if x < -32768 {
		return -32768
	}
	return int16(x)
}

// Sat32 clips a 64-bit value to the int32 range.
func Sat32(x int64) int32 {
	if x > 2147483647 {
		return 2147483647
	}
	if x < -2147483648 {
		return -2147483648
	}
	return int32(x)
}

// AddSat32 returns a+b saturated to int32.
func AddSat32(a, b int32) int32 {
	return Sat32(int64(a) + int64(b))
}

// SubSat32 returns a-b saturated to int32.
func SubSat32(a, b int32) int32 {
	return Sat32(int64(a) - int64(b))
}

// DAddSat32 returns a+2b with both additions saturated.
func DAddSat32(a, b int32) int32 {
	return AddSat32(a, AddSat32(b, b))
}

// DSubSat32 returns a-2b with both operations saturated.
func DSubSat32(a, b int32) int32 {
	return SubSat32(a, AddSat32(b, b))
}

// Add16 returns a+b saturated to int16.
func Add16(a, b int16) int16 {
	return Sat16(int32(a) + int32(b))
}

// Sub16 returns a-b saturated to int16.
func Sub16(a, b int16) int16 {
	return Sat16(int32(a) - int32(b))
}

// MulQ15 multiplies two Q15 values: (a*b) >> 15 with 64-bit intermediate.
func MulQ15(a, b int32) int32 {
	return int32((int64(a) * int64(b)) >> 15)
}

// MulShift multiplies a by b and shifts right by s with 64-bit intermediate.
func MulShift(a, b int32, s uint) int32 {
	return int32((int64(a) * int64(b)) >> s)
}

// MulRound16 multiplies two Q15 values with rounding: (a*b + 0x4000) >> 15.
func MulRound16(a, b int16) int16 {
	return Sat16((int32(a)*int32(b) + 0x4000) >> 15)
}

// Log2 returns floor(log2(x)) for x > 0 and 0 for x <= 0.
func Log2(x uint32) int {
	if x == 0 {
		return 0
	}
	return 31 - bits.LeadingZeros32(x)
}

// Log2Int16 returns floor(log2(x)) of a 16-bit magnitude.
func Log2Int16(x uint32) int {
	return Log2(x & 0xffff)
}

// NormalizeBits returns the left shift that brings num to a full
// width-bit magnitude.
func NormalizeBits(num int32, width int) int {
	if num < 0 {
		num = -num
	}
	return width - Log2(uint32(num)) - 1
}

// Abs32 returns |x| with -2^31 mapped to 2^31-1.
func Abs32(x int32) int32 {
	if x < 0 {
		if x == -2147483648 {
			return 2147483647
		}
		return -x
	}
	return x
}

// Dot16 returns the 32-bit dot product of a and b over n samples.
// The accumulation wraps exactly like the reference C code.
func Dot16(a, b []int16, n int) int32 {
	var sum int32
	for i := 0; i < n; i++ {
		sum += int32(a[i]) * int32(b[i])
	}
	return sum
}

// DotSat returns the doubled dot product saturated to int32.
func DotSat(a, b []int16, n int) int32 {
	var sum int64
	for i := 0; i < n; i++ {
		sum += int64(a[i]) * int64(b[i])
	}
	s := Sat32(sum)
	return AddSat32(s, s)
}

// ScaleVector shifts vector so that its peak uses 12 bits of headroom and
// returns the applied shift (negative means a right shift).
func ScaleVector(dst, vector []int16, n int) int {
	var max int32
	for i := 0; i < n; i++ {
		v := int32(vector[i])
		if v < 0 {
			v = -v
		}
		max |= v
	}
	shift := 14 - Log2Int16(uint32(max))
	if shift < 0 {
		shift = 0
	}
	for i := 0; i < n; i++ {
		dst[i] = int16((int32(vector[i]) << uint(shift)) >> 3)
	}
	return shift - 3
}

// Sqrt returns floor(sqrt(a)).
func Sqrt(a uint32) uint32 {
	var root uint32
	bit := uint32(1) << 30
	for bit > a {
		bit >>= 2
	}
	for bit != 0 {
		if a >= root+bit {
			a -= root + bit
			root = (root >> 1) + bit
		} else {
			root >>= 1
		}
		bit >>= 2
	}
	return root
}
