package plc

import "math"

// RepeatPeriod fills out by repeating the last lag samples of history,
// attenuated by gain. history must hold at least lag samples; out and
// history must not overlap.
func RepeatPeriod(out, history []float64, lag int, gain float64) {
	if lag <= 0 || lag > len(history) {
		clear(out)
		return
	}
	base := history[len(history)-lag:]
	for i := range out {
		if i < lag {
			out[i] = base[i] * gain
		} else {
			out[i] = out[i-lag]
		}
	}
}

// RepeatPeriodQ is RepeatPeriod for int16 signals with a 3/4 attenuation
// on the first period and a plain copy afterwards.
func RepeatPeriodQ(out, history []int16, lag int) {
	if lag <= 0 || lag > len(history) {
		clear(out)
		return
	}
	base := history[len(history)-lag:]
	for i := range out {
		if i < lag {
			out[i] = int16(int32(base[i]) * 3 >> 2)
		} else {
			out[i] = out[i-lag]
		}
	}
}

// Noise fills out with generator samples scaled by gain.
func Noise(out []float64, r *Rand, gain float64) {
	for i := range out {
		out[i] = r.Float() * gain
	}
}

// NoiseQ fills out with gain*x>>15 for successive generator samples x.
func NoiseQ(out []int16, r *Rand, gain int32) {
	for i := range out {
		out[i] = int16(gain * int32(r.Next()) >> 15)
	}
}

// DecayLSF pulls lsf towards target: lsf = f*lsf + (1-f)*target.
func DecayLSF(lsf, target []float64, f float64) {
	for i := range lsf {
		lsf[i] = f*lsf[i] + (1-f)*target[i]
	}
}

// DecayLSFQ is DecayLSF with a Q15 factor.
func DecayLSFQ(lsf, target []int16, fQ15 int32) {
	for i := range lsf {
		lsf[i] = int16((int32(lsf[i])*fQ15 + int32(target[i])*(32768-fQ15) + 0x4000) >> 15)
	}
}

// GainSchedule is a per-run attenuation table: entry i applies to the
// (i+1)-th consecutive erased frame, the last entry to all later ones.
type GainSchedule []float64

// At returns the attenuation for a run of the given length (>= 1).
func (g GainSchedule) At(run int) float64 {
	if len(g) == 0 {
		return 1
	}
	if run < 1 {
		run = 1
	}
	if run > len(g) {
		run = len(g)
	}
	return g[run-1]
}

// EnergyCap keeps the output energy of an erasure run from rising. Good
// frames set the reference; each concealed frame is scaled down to the
// energy of the frame before it.
type EnergyCap struct {
	energy float64
	valid  bool
}

// Reset forgets the reference energy.
func (c *EnergyCap) Reset() { *c = EnergyCap{} }

// Observe records the energy of a correctly decoded frame.
func (c *EnergyCap) Observe(frame []float32) {
	c.energy, c.valid = frameEnergy(frame), true
}

// Limit scales a concealed frame so its energy does not exceed the
// reference, then makes it the new reference. It returns the gain applied.
func (c *EnergyCap) Limit(frame []float32) float64 {
	e := frameEnergy(frame)
	g := 1.0
	if c.valid && e > c.energy {
		// shaved so float32 rounding cannot lift the result past the cap
		g = math.Sqrt(c.energy/e) * (1 - 1e-6)
		for i := range frame {
			frame[i] = float32(float64(frame[i]) * g)
		}
		e = frameEnergy(frame)
	}
	c.energy, c.valid = e, true
	return g
}

func frameEnergy(frame []float32) float64 {
	var e float64
	for _, v := range frame {
		e += float64(v) * float64(v)
	}
	return e
}
