package wmavoice

import (
	"fmt"

	"github.com/thesyncim/gocelp/internal/celp"
)

// independentStages returns the stages coding one frame's LSPs.
func independentStages(mode int) []lspStage {
	if mode&ModeLSP16 != 0 {
		return stages16i
	}
	return stages10i
}

func residualStages(mode int) []lspStage {
	if mode&ModeLSP16 != 0 {
		return stages16r
	}
	return stages10r
}

// meanLSF returns the LSF means of mode.
func meanLSF(mode int) []float64 {
	set := 0
	if mode&ModeAltMean != 0 {
		set = 1
	}
	if mode&ModeLSP16 != 0 {
		return meanLSF16[set][:]
	}
	return meanLSF10[set][:]
}

// lspFieldBits returns the widths of the LSP indices a frame carries when
// it codes them: the independent split, followed for residual coding by
// the interpolation index and the residual split.
func lspFieldBits(mode int) []int {
	var bits []int
	for _, s := range independentStages(mode) {
		bits = append(bits, s.bits)
	}
	if mode&ModeResidual != 0 {
		bits = append(bits, 5)
		for _, s := range residualStages(mode) {
			bits = append(bits, s.bits)
		}
	}
	return bits
}

// dequant sums the selected entries of every stage into out.
func dequant(out []float64, stages []lspStage, idx []int) {
	clear(out)
	for i, s := range stages {
		for m, v := range s.cb[idx[i]] {
			out[s.offset+m] += v
		}
	}
}

// stabilize orders lsp and enforces the lower bound, the upper bound and
// the minimum spacing. The range holds maxOrder values at minimum spacing,
// so the backward pass never pushes lsp[0] under minLSP.
func stabilize(lsp []float64) {
	n := len(lsp)
	for i := 1; i < n; i++ {
		if lsp[i] < lsp[i-1] {
			insertionSort(lsp)
			break
		}
	}
	lsp[0] = max(lsp[0], minLSP)
	for i := 1; i < n; i++ {
		lsp[i] = max(lsp[i], lsp[i-1]+lspSpacing)
	}
	lsp[n-1] = min(lsp[n-1], maxLSP)
	for i := n - 2; i >= 0; i-- {
		lsp[i] = min(lsp[i], lsp[i+1]-lspSpacing)
	}
}

func insertionSort(v []float64) {
	for m := 1; m < len(v); m++ {
		tmp := v[m]
		l := m - 1
		for ; l >= 0 && v[l] > tmp; l-- {
			v[l+1] = v[l]
		}
		v[l+1] = tmp
	}
}

// decodeIndependent decodes one frame's LSPs from its split indices.
func decodeIndependent(out []float64, mode int, idx []int) {
	dequant(out, independentStages(mode), idx)
	for i, m := range meanLSF(mode) {
		out[i] += m
	}
	stabilize(out)
}

// decodeResidual decodes the three LSP sets of a superframe. prev holds
// the LSPs of the last frame of the previous superframe.
func decodeResidual(out *[framesPerSuper][maxOrder]float64, mode int, prev []float64, idx []int) {
	n := order(mode)
	mean := meanLSF(mode)
	indep := independentStages(mode)

	last := out[2][:n]
	dequant(last, indep, idx)
	interp := idx[len(indep)]

	var a2 [2 * maxOrder]float64
	dequant(a2[:2*n], residualStages(mode), idx[len(indep)+1:])

	alt := 0
	if mode&ModeAltInterp != 0 {
		alt = 1
	}
	for i := 0; i < n; i++ {
		var w0, w1 float64
		if n == 16 {
			w0, w1 = interp16[alt][interp][0][i], interp16[alt][interp][1][i]
		} else {
			w0, w1 = interp10[alt][interp][0][i], interp10[alt][interp][1][i]
		}
		delta := (prev[i] - mean[i]) - last[i]
		out[0][i] = mean[i] + (w0*delta + last[i] - a2[2*i])
		out[1][i] = mean[i] + (w1*delta + last[i] - a2[2*i+1])
		out[2][i] = last[i] + mean[i]
	}
	for f := range out {
		stabilize(out[f][:n])
	}
}

// checkLSP validates the LSP indices a frame of mode carries. head
// reports whether the frame starts a residual coded superframe.
func checkLSP(mode int, lsp []int) (head bool, err error) {
	bits := lspFieldBits(mode)
	if mode&ModeResidual != 0 && len(lsp) == 0 {
		return false, nil
	}
	if len(lsp) < len(bits) {
		return false, fmt.Errorf("%w: %d LSP indices, want %d", celp.ErrInvalidParameter, len(lsp), len(bits))
	}
	for i, b := range bits {
		if err := celp.CheckIndex("LSP", lsp[i], 1<<b); err != nil {
			return false, err
		}
	}
	return true, nil
}

// lspToLPC converts radian LSPs to LP coefficients.
func lspToLPC(lpc, lsp []float64) {
	var c [maxOrder]float64
	celp.Rad2LSP(c[:len(lsp)], lsp)
	celp.LSP2LPC(c[:len(lsp)], lpc)
}
