package celp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSincFilterShape(t *testing.T) {
	f := SincFilter(6, 10, 0.9)
	assert.Len(t, f, 61)
	assert.InDelta(t, 0.9, f[0], 1e-12)
	for k := 1; k < len(f); k++ {
		assert.Less(t, math.Abs(f[k]), f[0])
	}
	q := SincFilterQ15(6, 10, 0.9)
	assert.Equal(t, int16(29491), q[0])
}

func TestInterpolateIntegerDelay(t *testing.T) {
	// with frac 0 the filter is symmetric around in[k]; a constant input
	// comes out scaled by the DC gain of the filter
	f := SincFilter(6, 10, 0.9)
	buf := make([]float64, 200)
	for i := range buf[:100] {
		buf[i] = 1
	}
	Interpolate(buf, 100, 50, f, 6, 0, 10, 20)
	dc := f[0]
	for i := 1; i < 10; i++ {
		dc += 2 * f[6*i]
	}
	dc += f[60]
	for k := 0; k < 20; k++ {
		assert.InDelta(t, dc, buf[100+k], 1e-12)
	}
}

func TestInterpolateReadsOwnOutput(t *testing.T) {
	// lag shorter than the block: later outputs read earlier ones
	f := SincFilter(6, 10, 0.9)
	buf := make([]float64, 100)
	buf[49] = 1
	Interpolate(buf, 50, 45, f, 6, 0, 10, 20)
	assert.NotEqual(t, 0.0, buf[55])
	// buf[65] reads only samples this call produced
	assert.NotEqual(t, 0.0, buf[65])
}

func TestInterpolateQ15Saturates(t *testing.T) {
	f := SincFilterQ15(6, 10, 0.9)
	buf := make([]int16, 120)
	for i := 0; i < 60; i++ {
		buf[i] = 32767
	}
	InterpolateQ15(buf, 60, 30, f, 6, 3, 10, 10)
	for i := 60; i < 70; i++ {
		assert.Greater(t, buf[i], int16(30000))
	}
}
