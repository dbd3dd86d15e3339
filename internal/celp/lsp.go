package celp

import (
	"fmt"
	"math"
	"sort"
)

// SetMinDistLSF forces a minimum distance between consecutive LSFs by
// raising each value to at least the previous one plus minSpacing.
func SetMinDistLSF(lsf []float64, minSpacing float64) {
	prev := 0.0
	for i := range lsf {
		if lsf[i] < prev+minSpacing {
			lsf[i] = prev + minSpacing
		}
		prev = lsf[i]
	}
}

// StabilizeLSF sorts lsf and then pushes apart every adjacent pair closer
// than minSpacing by splitting the deficit evenly between both values.
// The result is clipped to [lower, upper] and the spacing pass is repeated
// once more so clipping cannot collapse the ends.
func StabilizeLSF(lsf []float64, minSpacing, lower, upper float64) {
	if !sort.Float64sAreSorted(lsf) {
		sort.Float64s(lsf)
	}
	for pass := 0; pass < 2; pass++ {
		for i := 1; i < len(lsf); i++ {
			if d := lsf[i-1] + minSpacing - lsf[i]; d > 0 {
				lsf[i-1] -= d / 2
				lsf[i] += d / 2
			}
		}
		if lsf[0] < lower {
			lsf[0] = lower
		}
		for i := 1; i < len(lsf); i++ {
			if lsf[i] < lsf[i-1]+minSpacing {
				lsf[i] = lsf[i-1] + minSpacing
			}
		}
		n := len(lsf) - 1
		if lsf[n] > upper {
			lsf[n] = upper
			for i := n - 1; i >= 0; i-- {
				if lsf[i] > lsf[i+1]-minSpacing {
					lsf[i] = lsf[i+1] - minSpacing
				}
			}
		}
	}
}

// CheckLSF reports an error if lsf is not strictly increasing by at least
// minSpacing, or contains a non-finite value.
func CheckLSF(lsf []float64, minSpacing float64) error {
	for i, v := range lsf {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite LSF at %d", ErrInvalidParameter, i)
		}
		if i > 0 && v-lsf[i-1] < minSpacing*0.999 {
			return fmt.Errorf("%w: unstable LSF at %d (%.5f after %.5f)", ErrInvalidParameter, i, v, lsf[i-1])
		}
	}
	return nil
}

// LSF2LSP converts normalized frequencies (1.0 = sample rate) to the cosine
// domain.
func LSF2LSP(lsp, lsf []float64) {
	for i, f := range lsf {
		lsp[i] = math.Cos(2 * math.Pi * f)
	}
}

// Rad2LSP converts angular frequencies in radians to the cosine domain.
func Rad2LSP(lsp, lsf []float64) {
	for i, f := range lsf {
		lsp[i] = math.Cos(f)
	}
}

// lsp2poly builds the half-order polynomial whose roots are the LSPs at
// lsp[0], lsp[2], lsp[4], ...
func lsp2poly(lsp []float64, f []float64, half int) {
	f[0] = 1
	f[1] = -2 * lsp[0]
	for i := 2; i <= half; i++ {
		val := -2 * lsp[2*(i-1)]
		f[i] = val*f[i-1] + 2*f[i-2]
		for j := i - 1; j > 1; j-- {
			f[j] += f[j-1]*val + f[j-2]
		}
		f[1] += val
	}
}

// LSP2LPC converts an even-order cosine-domain LSP vector to direct-form LP
// coefficients a[1..order] of A(z) = 1 + sum a[i] z^-i, stored in lpc[0..order-1].
func LSP2LPC(lsp, lpc []float64) {
	half := len(lsp) / 2
	var pa, qa [MaxOrder/2 + 1]float64
	lsp2poly(lsp, pa[:], half)
	lsp2poly(lsp[1:], qa[:], half)
	for i := half - 1; i >= 0; i-- {
		paf := pa[i+1] + pa[i]
		qaf := qa[i+1] - qa[i]
		lpc[i] = 0.5 * (paf + qaf)
		lpc[2*half-1-i] = 0.5 * (paf - qaf)
	}
}

// ISP2LPC converts an even-order immittance spectral pair vector to LP
// coefficients. isp[0..order-2] are cosine-domain frequencies, even ones
// for the sum polynomial and odd ones for the difference polynomial;
// isp[order-1] is the last reflection coefficient and becomes lpc[order-1].
func ISP2LPC(isp, lpc []float64) {
	order := len(isp)
	half := order / 2
	var pa [MaxOrder/2 + 1]float64
	var buf [MaxOrder/2 + 2]float64
	qa := buf[1:] // qa[-1] is buf[0] = 0
	lsp2poly(isp, pa[:], half)
	if half > 1 {
		lsp2poly(isp[1:], qa, half-1)
	}
	k := isp[order-1]
	for i, j := 1, order-1; i < half; i, j = i+1, j-1 {
		paf := pa[i] * (1 + k)
		qaf := (qa[i] - buf[i-1]) * (1 - k)
		lpc[i-1] = 0.5 * (paf + qaf)
		lpc[j-1] = 0.5 * (paf - qaf)
	}
	lpc[half-1] = 0.5 * (1 + k) * pa[half]
	lpc[order-1] = k
}

// InterpolateLSP writes (1-w)*prev + w*cur into out.
func InterpolateLSP(out, prev, cur []float64, w float64) {
	for i := range out {
		out[i] = prev[i] + w*(cur[i]-prev[i])
	}
}

// WeightedSum writes wa*a + wb*b into out.
func WeightedSum(out, a, b []float64, wa, wb float64) {
	for i := range out {
		out[i] = wa*a[i] + wb*b[i]
	}
}

// GammaTable returns gamma^(i+1) for i in [0, n).
func GammaTable(gamma float64, n int) []float64 {
	t := make([]float64, n)
	g := gamma
	for i := range t {
		t[i] = g
		g *= gamma
	}
	return t
}

// BandwidthExpand scales lpc[i] by pow[i] into out.
func BandwidthExpand(out, lpc, pow []float64) {
	for i := range out {
		out[i] = lpc[i] * pow[i]
	}
}
