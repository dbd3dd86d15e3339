package celp

import "math"

// cosTab holds cos(pi*i/64) in Q15 for i in [0, 64].
var cosTab [65]int16

func init() {
	for i := range cosTab {
		v := math.Round(math.Cos(math.Pi*float64(i)/64) * 32768)
		if v > 32767 {
			v = 32767
		}
		cosTab[i] = int16(v)
	}
}

// CosQ15 returns cos(pi * arg / 2^14) in Q15 for arg in [0, 0x3fff].
func CosQ15(arg uint16) int16 {
	arg &= 0x3fff
	offset := int32(arg & 0xff)
	ind := arg >> 8
	return int16(int32(cosTab[ind]) + (offset*(int32(cosTab[ind+1])-int32(cosTab[ind])))>>8)
}

// ReorderLSF sorts lsfq, forces a minimum distance between neighbours
// starting from lsfMin and clips the last value to lsfMax. Values are in
// the Q13 radian domain.
func ReorderLSF(lsfq []int16, minDistance, lsfMin, lsfMax int16) {
	n := len(lsfq)
	for i := 0; i < n-1; i++ {
		for j := i; j >= 0 && lsfq[j] > lsfq[j+1]; j-- {
			lsfq[j], lsfq[j+1] = lsfq[j+1], lsfq[j]
		}
	}
	lo := int32(lsfMin)
	for i := 0; i < n; i++ {
		if int32(lsfq[i]) < lo {
			lsfq[i] = int16(lo)
		}
		lo = int32(lsfq[i]) + int32(minDistance)
	}
	if lsfq[n-1] > lsfMax {
		lsfq[n-1] = lsfMax
	}
}

// RearrangeLSF pushes apart adjacent values closer than minDistance by
// moving each of them half the deficit.
func RearrangeLSF(v []int16, minDistance int16) {
	for i := 1; i < len(v); i++ {
		diff := (int32(v[i-1]) - int32(v[i]) + int32(minDistance)) >> 1
		if diff > 0 {
			v[i-1] -= int16(diff)
			v[i] += int16(diff)
		}
	}
}

// LSF2LSPQ15 converts Q13 radian LSFs to Q15 cosine-domain LSPs.
func LSF2LSPQ15(lsp, lsf []int16) {
	for i, f := range lsf {
		// 20861 is 2/pi in Q15
		lsp[i] = CosQ15(uint16((int32(f) * 20861) >> 15))
	}
}

func lsp2polyQ22(f []int32, lsp []int16, half int) {
	f[0] = 0x400000
	f[1] = -int32(lsp[0]) * 256
	for i := 2; i <= half; i++ {
		l := int64(lsp[2*i-2])
		f[i] = f[i-2]
		for j := i; j > 1; j-- {
			f[j] -= int32((int64(f[j-1])*l)>>14) - f[j-2]
		}
		f[1] -= int32(l) * 256
	}
}

// LSP2LPCQ12 converts Q15 LSPs to Q12 LP coefficients. lp receives
// order+1 values with lp[0] = 4096.
func LSP2LPCQ12(lp []int16, lsp []int16) {
	half := len(lsp) / 2
	var f1, f2 [MaxOrder/2 + 1]int32
	lsp2polyQ22(f1[:], lsp, half)
	lsp2polyQ22(f2[:], lsp[1:], half)
	lp[0] = 4096
	for i := 1; i <= half; i++ {
		ff1 := f1[i] + f1[i-1] + 1<<10
		ff2 := f2[i] - f2[i-1]
		lp[i] = int16((ff1 + ff2) >> 11)
		lp[2*half+1-i] = int16((ff1 - ff2) >> 11)
	}
}

// LPDecodeQ12 builds the LP filters of a two-subframe frame: the first from
// the midpoint of the previous and current LSPs, the second from the
// current LSPs.
func LPDecodeQ12(lp1, lp2 []int16, lsp, lspPrev []int16) {
	var mid [MaxOrder]int16
	n := len(lsp)
	for i := 0; i < n; i++ {
		mid[i] = int16((int32(lsp[i]) + int32(lspPrev[i])) >> 1)
	}
	LSP2LPCQ12(lp1, mid[:n])
	LSP2LPCQ12(lp2, lsp)
}
