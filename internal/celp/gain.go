package celp

import (
	"math"

	"github.com/thesyncim/gocelp/internal/fixed"
)

// EnergyPredictor is the moving-average log-energy predictor of the fixed
// codebook gain. History holds quantized prediction errors in dB, newest
// first; it is updated exactly once per subframe.
type EnergyPredictor struct {
	Coeffs  []float64 // MA coefficients, newest first
	History []float64 // prediction error history in dB
	Mean    float64   // mean energy offset in dB
}

// NewEnergyPredictor returns a predictor with history initialized to init.
func NewEnergyPredictor(coeffs []float64, mean, init float64) *EnergyPredictor {
	h := make([]float64, len(coeffs))
	for i := range h {
		h[i] = init
	}
	return &EnergyPredictor{Coeffs: coeffs, History: h, Mean: mean}
}

// Predicted returns the predicted energy in dB: dot(history, coeffs) + mean.
func (e *EnergyPredictor) Predicted() float64 {
	sum := e.Mean
	for i, c := range e.Coeffs {
		sum += c * e.History[i]
	}
	return sum
}

// FixedGain returns the fixed codebook gain for a correction factor and the
// mean energy of the fixed vector:
//
//	g = factor * 10^(predicted/20) / sqrt(meanEnergy)
//
// and records 20*log10(factor) in the history.
func (e *EnergyPredictor) FixedGain(factor, meanEnergy float64) float64 {
	if meanEnergy <= 0 {
		meanEnergy = 1
	}
	g := factor * math.Pow(10, 0.05*e.Predicted()) / math.Sqrt(meanEnergy)
	e.push(20 * math.Log10(math.Max(factor, 1e-10)))
	return g
}

// Update records a quantized prediction error in dB.
func (e *EnergyPredictor) Update(errDB float64) {
	e.push(errDB)
}

// Erase updates the history for a concealed subframe: the mean of the
// history lowered by offsetDB, not below floorDB.
func (e *EnergyPredictor) Erase(offsetDB, floorDB float64) {
	avg := 0.0
	for _, v := range e.History {
		avg += v
	}
	avg /= float64(len(e.History))
	avg -= offsetDB
	if avg < floorDB {
		avg = floorDB
	}
	e.push(avg)
}

// Reset fills the history with v.
func (e *EnergyPredictor) Reset(v float64) {
	for i := range e.History {
		e.History[i] = v
	}
}

func (e *EnergyPredictor) push(v float64) {
	copy(e.History[1:], e.History[:len(e.History)-1])
	e.History[0] = v
}

// DecodeGainCodeQ decodes the fixed codebook gain of the fixed-point
// codecs. corr is the Q12 correction factor, fc the Q13 fixed vector,
// meanQ10 the mean energy in dB (Q10), quantEnergy the (5.10) prediction
// error history and coeffs the Q14 MA coefficients. The result is the gain
// in Q1, saturated.
func DecodeGainCodeQ(corr int32, fc []int16, meanQ10 int32, quantEnergy []int16, coeffs []int16) int16 {
	pred := float64(meanQ10) / 1024
	for i := range coeffs {
		pred += float64(quantEnergy[i]) / 1024 * float64(coeffs[i]) / 16384
	}
	var energy float64
	for _, v := range fc {
		x := float64(v) / 8192
		energy += x * x
	}
	energy /= float64(len(fc))
	if energy <= 0 {
		energy = 1
	}
	g := float64(corr) / 4096 * math.Pow(10, pred/20) / math.Sqrt(energy)
	return fixed.Sat16(int32(math.Min(math.Round(g*2), 1<<20)))
}

// UpdatePastGainQ shifts the (5.10) energy history and inserts either the
// log energy of corr (Q12 gain correction) or, on erasure, the history mean
// minus 4 dB with a -14 dB floor.
func UpdatePastGainQ(quantEnergy []int16, corr int32, erasure bool) {
	n := len(quantEnergy)
	avg := int32(quantEnergy[n-1])
	for i := n - 1; i > 0; i-- {
		avg += int32(quantEnergy[i-1])
		quantEnergy[i] = quantEnergy[i-1]
	}
	if erasure {
		m := avg >> uint(fixed.Log2(uint32(n)))
		if m < -10240 {
			m = -10240
		}
		quantEnergy[0] = int16(m - 4096)
		return
	}
	if corr <= 0 {
		corr = 1
	}
	// 6165 is 20*log10(2) in Q10; log2 is Q15, >>2 gives Q13
	quantEnergy[0] = int16((6165 * ((fixed.Log2Q15(uint32(corr)) >> 2) - (12 << 13))) >> 13)
}
