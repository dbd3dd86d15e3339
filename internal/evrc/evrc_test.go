package evrc

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/gocelp/internal/bitstream"
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/types"
)

// randomFrame returns in-range parameters for rate. Pulse codes are
// redrawn until every pulse falls inside its subframe.
func randomFrame(r *rand.Rand, rate int) *types.FrameParameters {
	p := &types.FrameParameters{Mode: rate, Type: types.FrameSpeech}
	for _, sp := range lspSplits[rate] {
		p.LSP = append(p.LSP, r.IntN(sp.size))
	}
	if rate == RateEighth {
		p.Energy = []int{r.IntN(len(energyQuant))}
		return p
	}
	p.Pitch = []int{r.IntN(maxDelay - minDelay + 1)}
	if rate == RateFull {
		p.Pitch = append(p.Pitch, 0)
	}
	p.Subframes = make([]types.SubframeParameters, subframes)
	for i := range p.Subframes {
		sf := &p.Subframes[i]
		if rate == RateFull {
			sf.GainIndex = []int{r.IntN(len(acbGains)), r.IntN(len(fcbGainsFull))}
			for {
				sf.Pulses = []int{r.IntN(256), r.IntN(256), r.IntN(256), r.IntN(2048)}
				if checkPulses(rate, i, sf.Pulses) == nil {
					break
				}
			}
		} else {
			sf.GainIndex = []int{r.IntN(len(acbGains)), r.IntN(len(fcbGainsHalf))}
			for {
				sf.Pulses = []int{r.IntN(1024)}
				if checkPulses(rate, i, sf.Pulses) == nil {
					break
				}
			}
		}
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

func TestDecodeDeterministic(t *testing.T) {
	for rate := 0; rate < rateCount; rate++ {
		t.Run(RateName(rate), func(t *testing.T) {
			r := rand.New(rand.NewPCG(uint64(rate), 3))
			var frames []*types.FrameParameters
			for i := 0; i < 10; i++ {
				frames = append(frames, randomFrame(r, rate))
			}
			d := NewDecoder(celp.DefaultConfig())
			a := decodeAll(t, d, frames)
			d.Reset()
			assert.Equal(t, a, decodeAll(t, d, frames))
			assert.Equal(t, a, decodeAll(t, NewDecoder(celp.DefaultConfig()), frames))
		})
	}
}

func TestFullRateUpperFixedGains(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 9))
	d := NewDecoder(celp.DefaultConfig())
	for i := 0; i < 20; i++ {
		p := randomFrame(r, RateFull)
		for j := range p.Subframes {
			p.Subframes[j].GainIndex[1] = len(fcbGainsHalf) + r.IntN(len(fcbGainsFull)-len(fcbGainsHalf))
		}
		buf, err := Pack(p)
		require.NoError(t, err)
		q, err := Unpack(buf)
		require.NoError(t, err)
		require.False(t, q.BadFrame)

		pcm := make([]float32, frameLen)
		require.NotPanics(t, func() {
			_, err = d.DecodeFrame(q, pcm)
		})
		require.NoError(t, err)
	}
}

func TestPackUnpack(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	for rate := 0; rate < rateCount; rate++ {
		p := randomFrame(r, rate)
		buf, err := Pack(p)
		require.NoError(t, err)
		require.Len(t, buf, FrameBytes(rate))

		q, err := Unpack(buf)
		require.NoError(t, err)
		assert.Equal(t, p, q)

		// the same frame behind a rate byte
		q, err = Unpack(append([]byte{rateBytes[rate]}, buf...))
		require.NoError(t, err)
		assert.Equal(t, p, q)
	}
}

func TestRateByte(t *testing.T) {
	p, err := Unpack([]byte{rateByteBlank})
	require.NoError(t, err)
	assert.Equal(t, types.FrameUntransmitted, p.Type)

	p, err = Unpack([]byte{rateByteErasure})
	require.NoError(t, err)
	assert.True(t, p.BadFrame)

	_, err = Unpack(append([]byte{rateByteHalf}, make([]byte, 22)...))
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)

	_, err = Unpack(make([]byte, 7))
	assert.ErrorIs(t, err, celp.ErrShortPacket)
}

func TestPulsesOutsideSubframe(t *testing.T) {
	// 7*7+4 = 53 is one past the end of the first subframe
	pos, _ := halfRatePulses(7)
	require.Equal(t, 53, pos[0])
	assert.ErrorIs(t, checkPulses(RateHalf, 0, []int{7}), celp.ErrInvalidParameter)
	assert.NoError(t, checkPulses(RateHalf, 2, []int{7}))

	r := rand.New(rand.NewPCG(4, 4))
	p := randomFrame(r, RateHalf)
	p.Subframes[0].Pulses[0] = 7
	_, err := NewDecoder(celp.DefaultConfig()).DecodeFrame(p, make([]float32, frameLen))
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)

	// the same frame as it arrives on the wire
	w := bitstream.NewWriter(bitstream.MSBFirst)
	for i, n := range [3]int{7, 7, 8} {
		w.WriteInt(p.LSP[i], n)
	}
	w.WriteInt(p.Pitch[0], 7)
	for i := range p.Subframes {
		sf := &p.Subframes[i]
		w.WriteInt(sf.GainIndex[0], 3)
		w.WriteInt(sf.Pulses[0], 10)
		w.WriteInt(sf.GainIndex[1], 4)
	}
	q, err := Unpack(w.Bytes(FrameBytes(RateHalf)))
	require.NoError(t, err)
	assert.Equal(t, 7, q.Subframes[0].Pulses[0])
	assert.True(t, q.BadFrame)
}

func TestHalfRatePulses(t *testing.T) {
	pos, sign := halfRatePulses(0x200 | 1 | 2<<3 | 3<<6)
	assert.Equal(t, [3]int{11, 16, 21}, pos)
	assert.Equal(t, [3]float64{-1, 1, -1}, sign)
}

func TestFullRatePulseSigns(t *testing.T) {
	code := []int{
		// track 0: first pulse at 50, second at 0, negative
		0x80 | 10*11,
		0, 0,
		0x100,
	}
	pos, sign := fullRatePulses(code)
	assert.Equal(t, 50, pos[0])
	assert.Equal(t, 0, pos[1])
	assert.Equal(t, -1.0, sign[0])
	assert.Equal(t, 1.0, sign[1])
	assert.Equal(t, -1.0, sign[6])
	assert.Equal(t, 1.0, sign[7])
}

func TestDeltaDelayRange(t *testing.T) {
	r := rand.New(rand.NewPCG(6, 2))
	p := randomFrame(r, RateFull)
	p.Pitch = []int{0, 31} // previous delay 20-31+16 = 5
	_, err := NewDecoder(celp.DefaultConfig()).DecodeFrame(p, make([]float32, frameLen))
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)

	p.Pitch = []int{0, 16}
	_, err = NewDecoder(celp.DefaultConfig()).DecodeFrame(p, make([]float32, frameLen))
	assert.NoError(t, err)
}

func TestUnorderedLSPIsConcealed(t *testing.T) {
	var lsp []int
	var lspf [lpcOrder]float64
search:
	for i := 0; i < 128; i++ {
		for j := 0; j < 128; j++ {
			if !decodeLSP(lspf[:], RateHalf, []int{i, j, 0}) {
				lsp = []int{i, j, 0}
				break search
			}
		}
	}
	require.NotNil(t, lsp)

	r := rand.New(rand.NewPCG(8, 1))
	p := randomFrame(r, RateHalf)
	p.LSP = lsp
	rep, err := NewDecoder(celp.DefaultConfig()).DecodeFrame(p, make([]float32, frameLen))
	require.NoError(t, err)
	assert.True(t, rep.Concealed)
}

func TestEighthRateIsComfortNoise(t *testing.T) {
	r := rand.New(rand.NewPCG(2, 9))
	d := NewDecoder(celp.DefaultConfig())
	rep, err := d.DecodeFrame(randomFrame(r, RateEighth), make([]float32, frameLen))
	require.NoError(t, err)
	assert.True(t, rep.ComfortNoise)
	assert.Equal(t, RateEighth, rep.Mode)

	// erasures after an eighth rate frame stay eighth rate
	rep, err = d.DecodeFrame(nil, make([]float32, frameLen))
	require.NoError(t, err)
	assert.True(t, rep.Concealed)
	assert.Equal(t, RateEighth, rep.Mode)
}

func TestErasureRunMutes(t *testing.T) {
	r := rand.New(rand.NewPCG(12, 12))
	d := NewDecoder(celp.DefaultConfig())
	pcm := make([]float32, frameLen)
	for i := 0; i < 4; i++ {
		_, err := d.DecodeFrame(randomFrame(r, RateFull), pcm)
		require.NoError(t, err)
	}

	var rep celp.Report
	var err error
	prev := pcmEnergy(pcm)
	for i := 0; i < 40 && !rep.Muted; i++ {
		rep, err = d.DecodeFrame(&types.FrameParameters{BadFrame: true}, pcm)
		require.NoError(t, err)
		assert.True(t, rep.Concealed)
		e := pcmEnergy(pcm)
		require.LessOrEqual(t, e, prev, "erasure %d", i)
		prev = e
	}
	require.True(t, rep.Muted)
	assert.Equal(t, make([]float32, frameLen), pcm)

	rep, err = d.DecodeFrame(randomFrame(r, RateHalf), pcm)
	require.NoError(t, err)
	assert.False(t, rep.Muted)
}

func TestInvalidIndices(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 7))
	cases := map[string]func(p *types.FrameParameters){
		"rate":       func(p *types.FrameParameters) { p.Mode = rateCount },
		"lsp":        func(p *types.FrameParameters) { p.LSP[2] = 512 },
		"delay":      func(p *types.FrameParameters) { p.Pitch[0] = 101 },
		"acb gain":   func(p *types.FrameParameters) { p.Subframes[1].GainIndex[0] = 8 },
		"fcb gain":   func(p *types.FrameParameters) { p.Subframes[2].GainIndex[1] = 32 },
		"pulse code": func(p *types.FrameParameters) { p.Subframes[0].Pulses[3] = 2048 },
		"subframes":  func(p *types.FrameParameters) { p.Subframes = p.Subframes[:2] },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := randomFrame(r, RateFull)
			mutate(p)
			_, err := NewDecoder(celp.DefaultConfig()).DecodeFrame(p, make([]float32, frameLen))
			assert.ErrorIs(t, err, celp.ErrInvalidParameter)
		})
	}
}

func TestKernelsAgree(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 5))
	var frames []*types.FrameParameters
	for i := 0; i < 9; i++ {
		frames = append(frames, randomFrame(r, i%rateCount))
	}
	frames = append(frames, nil)

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

func pcmEnergy(pcm []float32) float64 {
	var e float64
	for _, v := range pcm {
		e += float64(v) * float64(v)
	}
	return e
}
