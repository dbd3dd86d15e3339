package plc

// Rand is the 16-bit linear congruential generator used for unvoiced
// concealment and comfort noise: x' = x*521 + 259 mod 2^16.
type Rand struct {
	state uint16
}

// NewRand returns a generator seeded with seed (taken mod 2^16).
func NewRand(seed int) Rand {
	return Rand{state: uint16(seed)}
}

// Seed resets the generator state.
func (r *Rand) Seed(seed int) { r.state = uint16(seed) }

// State returns the raw generator state.
func (r *Rand) State() uint16 { return r.state }

// Next advances the generator and returns the new state as a signed sample.
func (r *Rand) Next() int16 {
	r.state = r.state*521 + 259
	return int16(r.state)
}

// Intn advances the generator and returns a value in [0, n) taken from the
// low 15 bits of the state.
func (r *Rand) Intn(n int) int {
	r.state = r.state*521 + 259
	return int(r.state&0x7fff) * n >> 15
}

// Float advances the generator and returns a value in [-1, 1).
func (r *Rand) Float() float64 {
	return float64(r.Next()) / 32768
}
