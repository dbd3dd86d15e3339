package g7231

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/gocelp/internal/bitstream"
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/types"
)

// randomFrame returns valid speech parameters for the given rate.
func randomFrame(r *rand.Rand, rate int) *types.FrameParameters {
	p := &types.FrameParameters{
		Mode:      rate,
		Type:      types.FrameSpeech,
		LSP:       []int{r.IntN(256), r.IntN(256), r.IntN(256)},
		Pitch:     []int{r.IntN(maxLagCode + 1), r.IntN(maxLagCode + 1)},
		Subframes: make([]types.SubframeParameters, subframes),
	}
	for i := range p.Subframes {
		sf := &p.Subframes[i]
		lag := p.Pitch[i>>1] + pitchMin
		sf.PitchIndex = 1
		if i&1 != 0 {
			sf.PitchIndex = r.IntN(4)
		}
		gains := 170
		if usesGain85(rate, lag) {
			gains = 85
			sf.Dirac = r.IntN(2) == 1
		}
		sf.GainIndex = []int{r.IntN(gains)}
		sf.Amplitude = r.IntN(gainLevels)
		sf.Grid = r.IntN(gridSize)
		if rate == Rate6300 {
			sf.Pulses = []int{r.IntN(maxPos[i])}
			sf.Signs = r.IntN(1 << pulses[i])
			continue
		}
		pos := 0
		for k := 0; k < 4; k++ {
			pos |= r.IntN(7) << (3 * k)
		}
		sf.Pulses = []int{pos}
		sf.Signs = r.IntN(16)
	}
	return p
}

func decodeAll(t *testing.T, d *Decoder, frames []*types.FrameParameters) [][]float32 {
	t.Helper()
	var out [][]float32
	for _, p := range frames {
		pcm := make([]float32, frameLen)
		_, err := d.DecodeFrame(p, pcm)
		require.NoError(t, err)
		out = append(out, pcm)
	}
	return out
}

func TestPackRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for _, rate := range []int{Rate6300, Rate5300} {
		for n := 0; n < 20; n++ {
			p := randomFrame(r, rate)
			// combined pulse code only covers the low top digits
			if rate == Rate6300 {
				for i := range p.Subframes {
					p.Subframes[i].Pulses[0] %= 1 << (16 - 2*(i&1))
				}
			}
			buf, err := Pack(p)
			require.NoError(t, err)
			require.Len(t, buf, frameSizes[rate])
			assert.Equal(t, frameSizes[rate], FrameSize(buf[0]))

			q, used, err := Unpack(buf)
			require.NoError(t, err)
			assert.Equal(t, len(buf), used)
			assert.False(t, q.BadFrame)
			assert.Equal(t, p.Mode, q.Mode)
			assert.Equal(t, p.LSP, q.LSP)
			assert.Equal(t, p.Pitch, q.Pitch)
			for i := range p.Subframes {
				assert.Equal(t, p.Subframes[i], q.Subframes[i], "subframe %d", i)
			}
		}
	}
}

func TestPackSIDAndUntransmitted(t *testing.T) {
	buf, err := Pack(&types.FrameParameters{Type: types.FrameSID, LSP: []int{1, 2, 3}, Energy: []int{42}})
	require.NoError(t, err)
	require.Len(t, buf, 4)
	p, n, err := Unpack(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, types.FrameSID, p.Type)
	assert.Equal(t, []int{1, 2, 3}, p.LSP)
	assert.Equal(t, []int{42}, p.Energy)

	buf, err = Pack(&types.FrameParameters{Type: types.FrameUntransmitted})
	require.NoError(t, err)
	p, n, err = Unpack(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, types.FrameUntransmitted, p.Type)
}

func TestUnpackShort(t *testing.T) {
	_, _, err := Unpack(nil)
	assert.ErrorIs(t, err, celp.ErrShortPacket)
	_, _, err = Unpack([]byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, celp.ErrShortPacket)
	_, _, err = Unpack([]byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, celp.ErrShortPacket)
}

func TestUnpackForbiddenLag(t *testing.T) {
	w := bitstream.NewWriter(bitstream.LSBFirst)
	w.WriteInt(info6300, 2)
	w.WriteInt(0, 24)
	w.WriteInt(maxLagCode+1, 7)
	p, n, err := Unpack(w.Bytes(24))
	require.NoError(t, err)
	assert.Equal(t, 24, n)
	assert.True(t, p.BadFrame)
}

func TestCombinatorialTable(t *testing.T) {
	assert.Equal(t, int32(118755), combinatorialTable[0][0]) // C(29, 5)
	assert.Equal(t, int32(1), combinatorialTable[5][0])     // C(29, 0)
	assert.Equal(t, int32(29), combinatorialTable[4][0])    // C(29, 1)
}

func TestFixedCodebookMultipulse(t *testing.T) {
	for index, want := range []int{6, 5} {
		sf := &subframe{pulsePos: 0, grid: 0, ampIndex: 10}
		var v [subframeLen]int16
		genFCB(v[:], sf, Rate6300, 100, index)
		count := 0
		for i, x := range v {
			if x != 0 {
				count++
				assert.Equal(t, fixedCBGain[10], x)
				assert.Equal(t, 0, i%2)
			}
		}
		assert.Equal(t, want, count)
	}

	// a code past the last combination leaves the vector empty
	sf := &subframe{pulsePos: maxPos[0], ampIndex: 10}
	var v [subframeLen]int16
	genFCB(v[:], sf, Rate6300, 100, 0)
	assert.Equal(t, [subframeLen]int16{}, v)
}

func TestFixedCodebookAlgebraic(t *testing.T) {
	// digits 1,2,3,4 with sign bits 1,0,1,0
	sf := &subframe{pulsePos: 1 | 2<<3 | 3<<6 | 4<<9, pulseSign: 0x5, grid: 1, ampIndex: 5}
	var v [subframeLen]int16
	genFCB(v[:], sf, Rate5300, 100, 0)
	g := fixedCBGain[5]
	assert.Equal(t, g, v[1*8+1+0])
	assert.Equal(t, -g, v[2*8+1+2])
	assert.Equal(t, g, v[3*8+1+4])
	assert.Equal(t, -g, v[4*8+1+6])

	assert.True(t, acbPulsesValid(6|6<<3|6<<6|6<<9, 1))
	assert.False(t, acbPulsesValid(7<<9, 1))
}

func TestSIDGain(t *testing.T) {
	assert.Equal(t, int32(320), sidGainToLSPIndex(5))
	assert.Equal(t, int32(1536), sidGainToLSPIndex(20))
	assert.Equal(t, int32(5120), sidGainToLSPIndex(40))
	assert.Equal(t, int32(0x3f), estimateSIDGain(30000, 0))
}

func TestSquareRoot(t *testing.T) {
	assert.Equal(t, int32(0), squareRoot(0))
	assert.Equal(t, int32(100), squareRoot(2*100*100))
	assert.Equal(t, int32(0), squareRoot(1)&1)
}

func TestPitchPostfilterFindsPeriod(t *testing.T) {
	var buf [frameLen + pitchMax]int16
	for i := range buf {
		// period 50 pulse train with a decaying tail
		switch i % 50 {
		case 0:
			buf[i] = 4000
		case 1:
			buf[i] = -2000
		case 2:
			buf[i] = 1000
		}
	}
	ppf := compPPFCoeff(buf[:], pitchMax, 50, Rate6300)
	assert.Contains(t, []int{50, -50}, ppf.index)
	assert.Positive(t, ppf.optGain)
	assert.Positive(t, ppf.scGain)
	assert.LessOrEqual(t, ppf.scGain, int32(0x7fff))

	var silent [frameLen + pitchMax]int16
	ppf = compPPFCoeff(silent[:], pitchMax, 50, Rate6300)
	assert.Equal(t, ppfParam{scGain: 0x7fff}, ppf)
}

func TestFormantPostfilterSilence(t *testing.T) {
	var f formantState
	f.reset()
	var lpc [subframes][lpcOrder]int16
	var audio [lpcOrder + frameLen]int16
	var out [frameLen]int16
	f.process(&lpc, audio[:], out[:])
	assert.Equal(t, [frameLen]int16{}, out)
}

func TestDecodeDeterministic(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	var frames []*types.FrameParameters
	for i := 0; i < 12; i++ {
		frames = append(frames, randomFrame(r, i%2))
	}
	frames = append(frames, nil, nil)

	for _, postfilter := range []bool{true, false} {
		cfg := celp.DefaultConfig()
		cfg.Postfilter = postfilter
		a := decodeAll(t, NewDecoder(cfg), frames)
		b := decodeAll(t, NewDecoder(cfg), frames)
		assert.Equal(t, a, b)

		d := NewDecoder(cfg)
		decodeAll(t, d, frames)
		d.Reset()
		assert.Equal(t, a, decodeAll(t, d, frames), "reset decoder must replay")
	}
}

func TestThirdErasureMutes(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	d := NewDecoder(celp.DefaultConfig())
	pcm := make([]float32, frameLen)
	for i := 0; i < 5; i++ {
		_, err := d.DecodeFrame(randomFrame(r, Rate6300), pcm)
		require.NoError(t, err)
	}

	for i := 1; i <= 4; i++ {
		rep, err := d.DecodeFrame(nil, pcm)
		require.NoError(t, err)
		assert.True(t, rep.Concealed)
		assert.False(t, rep.ComfortNoise)
		if i < 3 {
			assert.False(t, rep.Muted, "erasure %d", i)
			continue
		}
		assert.True(t, rep.Muted, "erasure %d", i)
		assert.Equal(t, make([]float32, frameLen), pcm, "erasure %d", i)
	}

	rep, err := d.DecodeFrame(randomFrame(r, Rate5300), pcm)
	require.NoError(t, err)
	assert.False(t, rep.Concealed)
	assert.False(t, rep.Muted)
	assert.Equal(t, Rate5300, rep.Mode)
}

func TestInvalidFrameLeavesState(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	f1 := randomFrame(r, Rate6300)
	f2 := randomFrame(r, Rate5300)

	bad := randomFrame(r, Rate6300)
	bad.Pitch[1] = maxLagCode + 1

	cases := []*types.FrameParameters{
		bad,
		{Type: types.FrameSpeech, Mode: 2, LSP: []int{0, 0, 0}},
		{Type: types.FrameSpeech, LSP: []int{0, 0}},
		{Type: types.FrameSID, LSP: []int{0, 0, 300}, Energy: []int{1}},
		{Type: types.FrameSID, LSP: []int{0, 0, 0}},
	}

	want := decodeAll(t, NewDecoder(celp.DefaultConfig()), []*types.FrameParameters{f1, f2})
	for i, c := range cases {
		d := NewDecoder(celp.DefaultConfig())
		pcm := make([]float32, frameLen)
		_, err := d.DecodeFrame(f1, pcm)
		require.NoError(t, err)
		_, err = d.DecodeFrame(c, pcm)
		assert.ErrorIs(t, err, celp.ErrInvalidParameter, "case %d", i)
		_, err = d.DecodeFrame(f2, pcm)
		require.NoError(t, err)
		assert.Equal(t, want[1], pcm, "case %d", i)
	}

	_, err := NewDecoder(celp.DefaultConfig()).DecodeFrame(f1, make([]float32, 10))
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
}

func TestComfortNoise(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 9))
	d := NewDecoder(celp.DefaultConfig())
	pcm := make([]float32, frameLen)
	for i := 0; i < 4; i++ {
		_, err := d.DecodeFrame(randomFrame(r, Rate6300), pcm)
		require.NoError(t, err)
	}

	sid := &types.FrameParameters{Type: types.FrameSID, LSP: []int{0, 0, 0}, Energy: []int{30}}
	rep, err := d.DecodeFrame(sid, pcm)
	require.NoError(t, err)
	assert.True(t, rep.ComfortNoise)

	nonzero := false
	for i := 0; i < 3; i++ {
		rep, err = d.DecodeFrame(&types.FrameParameters{Type: types.FrameUntransmitted}, pcm)
		require.NoError(t, err)
		assert.True(t, rep.ComfortNoise)
		for _, v := range pcm {
			assert.True(t, v >= -1 && v < 1)
			if v != 0 {
				nonzero = true
			}
		}
	}
	assert.True(t, nonzero)

	// an erasure during silence keeps generating comfort noise
	rep, err = d.DecodeFrame(nil, pcm)
	require.NoError(t, err)
	assert.True(t, rep.ComfortNoise)
	assert.True(t, rep.Concealed)
	assert.False(t, rep.Muted)
}

func TestFreshDecoderErasureIsComfortNoise(t *testing.T) {
	d := NewDecoder(celp.DefaultConfig())
	pcm := make([]float32, frameLen)
	rep, err := d.DecodeFrame(nil, pcm)
	require.NoError(t, err)
	assert.True(t, rep.ComfortNoise)
}

func TestKernelsAgree(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	var frames []*types.FrameParameters
	for i := 0; i < 6; i++ {
		frames = append(frames, randomFrame(r, i%2))
	}
	var outs [][][]float32
	for _, name := range []string{"portable", "order10"} {
		k, ok := celp.KernelByName(name)
		require.True(t, ok)
		cfg := celp.DefaultConfig()
		cfg.Kernel = k
		outs = append(outs, decodeAll(t, NewDecoder(cfg), frames))
	}
	assert.Equal(t, outs[0], outs[1])
}
