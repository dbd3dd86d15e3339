package celp

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernelsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	lpc := make([]float64, 10)
	lpcQ := make([]int16, 10)
	for i := range lpc {
		lpc[i] = (rng.Float64() - 0.5) * 0.2
		lpcQ[i] = int16(lpc[i] * 4096)
	}
	in := make([]float64, 80)
	inQ := make([]int16, 80)
	for i := range in {
		in[i] = rng.Float64() - 0.5
		inQ[i] = int16(in[i] * 8000)
	}

	ref := portableKernel{}
	for name, k := range kernels {
		a := make([]float64, 90)
		b := make([]float64, 90)
		ref.Synthesize(a, lpc, in, 80)
		k.Synthesize(b, lpc, in, 80)
		assert.Equal(t, a, b, "kernel %s", name)

		aq := make([]int16, 90)
		bq := make([]int16, 90)
		oa := ref.SynthesizeQ12(aq, lpcQ, inQ, 80, true, 0, 0x800)
		ob := k.SynthesizeQ12(bq, lpcQ, inQ, 80, true, 0, 0x800)
		assert.Equal(t, oa, ob, "kernel %s", name)
		assert.Equal(t, aq, bq, "kernel %s", name)
	}
}

func TestKernelByName(t *testing.T) {
	k, ok := KernelByName("")
	require.True(t, ok)
	assert.Equal(t, DefaultKernel().Name(), k.Name())

	k, ok = KernelByName("portable")
	require.True(t, ok)
	assert.Equal(t, "portable", k.Name())

	_, ok = KernelByName("simd512")
	assert.False(t, ok)
}
