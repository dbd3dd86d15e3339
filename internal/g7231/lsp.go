package g7231

import (
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/fixed"
)

// inverseQuant rebuilds the current LSP vector from the three band
// indices and the previous vector. Erased frames use the zero residual, a
// stronger predictor and a wider minimum spacing. If the vector cannot be
// made stable it is replaced by the previous one.
func inverseQuant(cur, prev *[lpcOrder]int16, index [lspBands]int, badFrame bool) {
	minDist := int32(0x100)
	pred := int32(12288)
	if badFrame {
		minDist = 0x200
		pred = 23552
		index = [lspBands]int{}
	}

	copy(cur[0:3], lspBand0[index[0]][:])
	copy(cur[3:6], lspBand1[index[1]][:])
	copy(cur[6:10], lspBand2[index[2]][:])

	// add the predicted vector and the DC component
	for i := range cur {
		temp := ((int32(prev[i])-int32(dcLSP[i]))*pred + 1<<14) >> 15
		cur[i] = int16(int32(cur[i]) + int32(dcLSP[i]) + temp)
	}

	stable := false
	for iter := 0; iter < lpcOrder; iter++ {
		if cur[0] < 0x180 {
			cur[0] = 0x180
		}
		if cur[lpcOrder-1] > 0x7e00 {
			cur[lpcOrder-1] = 0x7e00
		}
		for j := 1; j < lpcOrder; j++ {
			temp := minDist + int32(cur[j-1]) - int32(cur[j])
			if temp > 0 {
				temp >>= 1
				cur[j-1] -= int16(temp)
				cur[j] += int16(temp)
			}
		}
		stable = true
		for j := 1; j < lpcOrder; j++ {
			if int32(cur[j-1])+minDist-int32(cur[j])-4 > 0 {
				stable = false
				break
			}
		}
		if stable {
			break
		}
	}
	if !stable {
		*cur = *prev
	}
}

// lsp2lpc converts an LSP vector (Q15, pi = 0x8000) to Q13 LP
// coefficients of A(z) = 1 + sum a[i] z^-i.
func lsp2lpc(lpc []int16, lsp []int16) {
	var cosLSP [lpcOrder]int16
	for i, v := range lsp {
		cosLSP[i] = celp.CosQ15(uint16(v) >> 1)
	}
	var lp [lpcOrder + 1]int16
	celp.LSP2LPCQ12(lp[:], cosLSP[:])
	for i := 0; i < lpcOrder; i++ {
		lpc[i] = fixed.Sat16(int32(lp[i+1]) * 2)
	}
}

// lspInterpolate builds the four subframe LP filters by interpolating
// from prev to cur in quarter steps.
func lspInterpolate(lpc *[subframes][lpcOrder]int16, cur, prev *[lpcOrder]int16) {
	var sub [lpcOrder]int16
	weights := [subframes - 1][2]int32{{4096, 12288}, {8192, 8192}, {12288, 4096}}
	for s, w := range weights {
		celp.WeightedVectorSumQ(sub[:], cur[:], prev[:], w[0], w[1], 1<<13, 14)
		lsp2lpc(lpc[s][:], sub[:])
	}
	lsp2lpc(lpc[subframes-1][:], cur[:])
}
