package fixed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaturation(t *testing.T) {
	assert.Equal(t, int16(32767), Sat16(40000))
	assert.Equal(t, int16(-32768), Sat16(-40000))
	assert.Equal(t, int16(123), Sat16(123))

	assert.Equal(t, int32(math.MaxInt32), AddSat32(math.MaxInt32, 1))
	assert.Equal(t, int32(math.MinInt32), SubSat32(math.MinInt32, 1))
	assert.Equal(t, int32(math.MaxInt32), DAddSat32(0, 1<<30))
	assert.Equal(t, int32(5), DAddSat32(1, 2))
	assert.Equal(t, int16(32767), Add16(32000, 1000))
	assert.Equal(t, int16(-32768), Sub16(-32000, 1000))
	assert.Equal(t, int32(math.MaxInt32), Abs32(math.MinInt32))
}

func TestLog2(t *testing.T) {
	cases := map[uint32]int{1: 0, 2: 1, 3: 1, 4: 2, 255: 7, 256: 8, 1 << 31: 31}
	for in, want := range cases {
		if got := Log2(in); got != want {
			t.Errorf("Log2(%d) = %d, want %d", in, got, want)
		}
	}
	assert.Equal(t, 0, Log2(0))
}

func TestNormalizeBits(t *testing.T) {
	assert.Equal(t, 14, NormalizeBits(1, 15))
	assert.Equal(t, 0, NormalizeBits(0x4000, 15))
	assert.Equal(t, 0, NormalizeBits(-0x4000, 15))
}

func TestSqrt(t *testing.T) {
	for _, v := range []uint32{0, 1, 3, 4, 99, 100, 65535, 1 << 30, math.MaxUint32} {
		want := uint32(math.Floor(math.Sqrt(float64(v))))
		if got := Sqrt(v); got != want {
			t.Errorf("Sqrt(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestLog2Q15(t *testing.T) {
	for _, v := range []uint32{1, 2, 3, 1000, 4096, 123456} {
		want := math.Log2(float64(v)) * 32768
		got := float64(Log2Q15(v))
		assert.InDelta(t, want, got, 40, "Log2Q15(%d)", v)
	}
}

func TestExp2Q15(t *testing.T) {
	for _, p := range []uint16{0, 1024, 16384, 32767} {
		want := math.Exp2(float64(p)/32768) * 32768
		assert.InDelta(t, want, float64(Exp2Q15(p)), 8, "Exp2Q15(%d)", p)
	}
	assert.InDelta(t, 4*32768.0, float64(Pow2(2<<15)), 1)
	assert.InDelta(t, 0.5*32768.0, float64(Pow2(-1<<15)), 1)
}

func TestScaleVector(t *testing.T) {
	in := []int16{100, -200, 50}
	out := make([]int16, 3)
	shift := ScaleVector(out, in, 3)
	// peak 200 has log2 7, so the vector is raised by 7 bits then lowered by 3
	assert.Equal(t, 4, shift)
	assert.Equal(t, []int16{1600, -3200, 800}, out)
}

func TestDotSat(t *testing.T) {
	a := []int16{32767, 32767}
	assert.Equal(t, int32(math.MaxInt32), DotSat(a, a, 2))
	assert.Equal(t, int32(20), DotSat([]int16{1, 2}, []int16{2, 4}, 2))
}
