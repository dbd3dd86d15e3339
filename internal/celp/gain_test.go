package celp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnergyPredictorFixedGain(t *testing.T) {
	e := NewEnergyPredictor([]float64{0.68, 0.58, 0.34, 0.19}, 30, 0)
	g := e.FixedGain(1, 1)
	assert.InDelta(t, math.Pow(10, 1.5), g, 1e-9)
	assert.InDelta(t, 0, e.History[0], 1e-12)

	g = e.FixedGain(2, 4)
	assert.InDelta(t, 2*math.Pow(10, 1.5)/2, g, 1e-9)
	assert.InDelta(t, 20*math.Log10(2), e.History[0], 1e-12)
	assert.InDelta(t, 0, e.History[1], 1e-12)
}

func TestEnergyPredictorErase(t *testing.T) {
	e := NewEnergyPredictor([]float64{0.25, 0.25, 0.25, 0.25}, 0, -2)
	e.Erase(4, -14)
	assert.Equal(t, []float64{-6, -2, -2, -2}, e.History)

	// the floor applies after the offset
	e.Reset(-13)
	e.Erase(4, -14)
	assert.Equal(t, -14.0, e.History[0])
}

func TestEnergyPredictorEraseDecreases(t *testing.T) {
	e := NewEnergyPredictor([]float64{0.68, 0.58, 0.34, 0.19}, 30, 5)
	prev := e.Predicted()
	for i := 0; i < 20; i++ {
		e.Erase(4, -14)
		p := e.Predicted()
		assert.LessOrEqual(t, p, prev)
		prev = p
	}
}

func TestUpdatePastGainQ(t *testing.T) {
	qe := []int16{-1024, -2048, -3072, -4096}
	UpdatePastGainQ(qe, 0, true)
	// mean -2560, floor -10240 not hit, minus 4096
	assert.Equal(t, []int16{-6656, -1024, -2048, -3072}, qe)

	qe = []int16{-14336, -14336, -14336, -14336}
	UpdatePastGainQ(qe, 0, true)
	assert.Equal(t, int16(-10240-4096), qe[0])

	qe = []int16{0, 0, 0, 0}
	UpdatePastGainQ(qe, 4096, false)
	// a unit correction factor is 0 dB
	assert.InDelta(t, 0, float64(qe[0]), 2)
	UpdatePastGainQ(qe, 8192, false)
	// 2.0 is 6.02 dB in Q10
	assert.InDelta(t, 6165, float64(qe[0]), 8)
}

func TestDecodeGainCodeQ(t *testing.T) {
	fc := make([]int16, 40)
	for i := 0; i < 40; i += 10 {
		fc[i] = 8192
	}
	// mean energy 0 dB, empty history: gain = corr / sqrt(4/40)
	g := DecodeGainCodeQ(4096, fc, 0, []int16{0, 0, 0, 0}, []int16{5571, 4751, 2785, 1556})
	assert.InDelta(t, 2*math.Sqrt(10), float64(g), 1)
}
