package celp

import (
	"math"
	"math/rand/v2"
)

// TableGen produces the trained vector quantizer codebooks that are built
// at package initialisation instead of being shipped as literal tables.
// The sequence depends only on the seed, so every build and platform
// derives the same codebooks.
type TableGen struct {
	r *rand.Rand
}

// NewTableGen returns a generator for one codec's tables.
func NewTableGen(seed uint64) *TableGen {
	return &TableGen{r: rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))}
}

// Uniform returns a value in [lo, hi).
func (g *TableGen) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.r.Float64()
}

// Int returns a value in [lo, hi].
func (g *TableGen) Int(lo, hi int) int {
	return lo + g.r.IntN(hi-lo+1)
}

// Codebook returns n vectors of dim values in [-spread, spread]. Entry 0
// is all zero so that index 0 always selects the unquantized mean.
func (g *TableGen) Codebook(n, dim int, spread float64) [][]float64 {
	cb := make([][]float64, n)
	for i := range cb {
		cb[i] = make([]float64, dim)
		if i == 0 {
			continue
		}
		// spread the entries roughly evenly by shrinking towards zero for
		// low indices; trained codebooks concentrate small residuals there
		s := spread * math.Sqrt(float64(i)/float64(n))
		for j := range cb[i] {
			cb[i][j] = g.Uniform(-s, s)
		}
	}
	return cb
}

// CodebookQ is Codebook rounded to int16.
func (g *TableGen) CodebookQ(n, dim int, spread float64) [][]int16 {
	f := g.Codebook(n, dim, spread)
	q := make([][]int16, n)
	for i, v := range f {
		q[i] = make([]int16, dim)
		for j, x := range v {
			q[i][j] = int16(math.Round(x))
		}
	}
	return q
}

// Ascending returns n sorted values in (lo, hi), spaced at least minGap.
func (g *TableGen) Ascending(n int, lo, hi, minGap float64) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n+1)
	for i := range out {
		jitter := (step - minGap) * 0.5
		if jitter < 0 {
			jitter = 0
		}
		out[i] = lo + step*float64(i+1) + g.Uniform(-jitter, jitter)
	}
	return out
}
