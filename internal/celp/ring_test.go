package celp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryLookbackContract(t *testing.T) {
	h := NewHistory[float64](8, 4)
	next := 1.0
	for frame := 0; frame < 20; frame++ {
		w := h.Window(4)
		require.Len(t, w, 12)
		for i := 0; i < 4; i++ {
			w[8+i] = next
			next++
		}
		h.Advance(4)
		// the last eight written samples are always visible before the cursor
		for i := 1; i <= 8; i++ {
			want := next - float64(i)
			if want < 1 {
				want = 0
			}
			assert.Equal(t, want, h.At(i), "frame %d lookback %d", frame, i)
		}
	}
}

func TestHistoryReplayMatches(t *testing.T) {
	run := func() []int16 {
		h := NewHistory[int16](5, 3)
		for k := int16(0); k < 30; k++ {
			h.Current(3)[0] = k
			h.Current(3)[1] = -k
			h.Current(3)[2] = k * 2
			h.Advance(3)
		}
		return h.Snapshot()
	}
	assert.Equal(t, run(), run())
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory[float32](3, 2)
	h.Current(2)[0] = 1
	h.Advance(2)
	h.Reset()
	assert.Equal(t, []float32{0, 0, 0}, h.Snapshot())
}
