package g729

import "github.com/thesyncim/gocelp/internal/celp"

// lsfState carries the MA predictor memory and the LSPs of the previous
// frame.
type lsfState struct {
	past      [maPredOrder][lpcOrder]int16 // quantizer outputs, newest first
	lsfq      [lpcOrder]int16
	predictor int // predictor of the last good frame

	lsp     [lpcOrder]int16
	lspPrev [lpcOrder]int16
}

func (s *lsfState) reset() {
	for k := range s.past {
		for i := range s.past[k] {
			// evenly spaced LSFs, pi*(i+1)/11 in Q13
			s.past[k][i] = int16((18717 * (i + 1)) >> 3)
		}
	}
	s.lsfq = [lpcOrder]int16{}
	s.predictor = 0
	s.lspPrev = lspInit
	s.lsp = lspInit
}

// decode reconstructs the quantized LSFs from the four indices.
func (s *lsfState) decode(idx []int) {
	m, first, lo, hi := idx[0], idx[1], idx[2], idx[3]
	var out [lpcOrder]int16
	for i := 0; i < lpcOrder/2; i++ {
		out[i] = lspStage1[first][i] + lspStage2[lo][i]
		out[i+5] = lspStage1[first][i+5] + lspStage2[hi][i+5]
	}
	celp.RearrangeLSF(out[:], 10)
	celp.RearrangeLSF(out[:], 5)

	for i := range s.lsfq {
		sum := int32(out[i]) * int32(maPredictorSum[m][i])
		for k := range s.past {
			sum += int32(s.past[k][i]) * int32(maPredictor[m][k][i])
		}
		s.lsfq[i] = int16(sum >> 15)
	}
	s.predictor = m
	s.push(&out)
}

// restore keeps the previous LSFs for an erased frame and back-computes
// the quantizer output that would have produced them, so the predictor
// memory stays consistent.
func (s *lsfState) restore() {
	m := s.predictor
	var out [lpcOrder]int16
	for i := range out {
		tmp := int32(s.lsfq[i]) << 15
		for k := range s.past {
			tmp -= int32(s.past[k][i]) * int32(maPredictor[m][k][i])
		}
		out[i] = int16(((tmp >> 15) * int32(maPredictorSumInv[m][i])) >> 12)
	}
	s.push(&out)
}

func (s *lsfState) push(out *[lpcOrder]int16) {
	copy(s.past[1:], s.past[:maPredOrder-1])
	s.past[0] = *out
}

// filters orders the LSFs, converts them and builds the two subframe LP
// filters (Q12, lp[0] = 4096).
func (s *lsfState) filters(lp *[subframes][lpcOrder + 1]int16) {
	celp.ReorderLSF(s.lsfq[:], lsfqDiffMin, lsfqMin, lsfqMax)
	s.lspPrev = s.lsp
	celp.LSF2LSPQ15(s.lsp[:], s.lsfq[:])
	celp.LPDecodeQ12(lp[0][:], lp[1][:], s.lsp[:], s.lspPrev[:])
}
