package gocelp

import (
	"math"

	"github.com/thesyncim/gocelp/util"
)

func float32ToInt16(sample float32) int16 {
	return int16(math.RoundToEven(util.Clamp(float64(sample)*32768.0, -32768.0, 32767.0)))
}

// Float32ToInt16 converts float32 samples in [-1, 1) to int16 with
// rounding to even and saturation. It converts min(len(dst), len(src))
// samples and returns that count.
func Float32ToInt16(dst []int16, src []float32) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = float32ToInt16(src[i])
	}
	return n
}
