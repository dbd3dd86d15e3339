package evrc

import "github.com/thesyncim/gocelp/internal/celp"

// decodeLSP looks the split indices up into lspf. It reports false when
// the result is not ordered or two splits sit closer than minLSPSep; such
// a frame is concealed.
func decodeLSP(lspf []float64, rate int, idx []int) bool {
	k := 0
	for i, cb := range lspCodebooks[rate] {
		k += copy(lspf[k:], cb[idx[i]])
	}
	for i := 1; i < lpcOrder; i++ {
		if lspf[i] <= lspf[i-1] {
			return false
		}
	}
	k = 0
	splits := lspSplits[rate]
	for _, sp := range splits[:len(splits)-1] {
		k += sp.dim
		if lspf[k]-lspf[k-1] <= minLSPSep {
			return false
		}
	}
	return true
}

// concealLSP pulls the previous LSPs towards a flat spectrum. Eighth rate
// frames keep them.
func concealLSP(lspf, prev []float64, rate int) {
	if rate == RateEighth {
		copy(lspf, prev)
		return
	}
	for i := range lspf {
		lspf[i] = prev[i]*0.875 + 0.125*float64(i+1)*0.048
	}
}

// subframeLPC interpolates the LSPs of subframe i and converts them.
func subframeLPC(lpc, lspf, prev []float64, i int) {
	var ilsp, lsp [lpcOrder]float64
	celp.WeightedSum(ilsp[:], prev, lspf, 1-lspInterp[i], lspInterp[i])
	celp.LSF2LSP(lsp[:], ilsp[:])
	celp.LSP2LPC(lsp[:], lpc)
}
