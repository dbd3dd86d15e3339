package sipr

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/types"
)

func randomFrame(r *rand.Rand, mode int) *types.FrameParameters {
	m := &modes[mode]
	p := &types.FrameParameters{Mode: mode, Type: types.FrameSpeech}
	if m.predictorBits > 0 {
		p.LSP = append(p.LSP, r.IntN(1<<m.predictorBits))
	}
	for _, b := range m.lsfBits {
		p.LSP = append(p.LSP, r.IntN(1<<b))
	}
	p.Subframes = make([]types.SubframeParameters, m.subframes)
	for i := range p.Subframes {
		sf := &p.Subframes[i]
		sf.PitchIndex = r.IntN(1 << m.pitchBits[i])
		if m.pitchGainBits > 0 {
			sf.GainIndex = append(sf.GainIndex, r.IntN(1<<m.pitchGainBits))
		}
		for _, b := range m.pulseBits {
			sf.Pulses = append(sf.Pulses, r.IntN(1<<b))
		}
		sf.GainIndex = append(sf.GainIndex, r.IntN(1<<m.gainBits))
	}
	return p
}

func decodeAll(t *testing.T, d *Decoder, frames []*types.FrameParameters) [][]float32 {
	t.Helper()
	var out [][]float32
	for _, p := range frames {
		pcm := make([]float32, maxFrame)
		_, err := d.DecodeFrame(p, pcm)
		require.NoError(t, err)
		out = append(out, pcm[:d.Profile().FrameSize])
	}
	return out
}

func TestProfilesValid(t *testing.T) {
	for mode := 0; mode < modeCount; mode++ {
		p, err := ProfileFor(mode)
		require.NoError(t, err)
		assert.NoError(t, p.Validate(), ModeName(mode))
	}
	_, err := ProfileFor(modeCount)
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
}

func TestDecodeDeterministic(t *testing.T) {
	for mode := 0; mode < modeCount; mode++ {
		t.Run(ModeName(mode), func(t *testing.T) {
			r := rand.New(rand.NewPCG(uint64(mode), 17))
			var frames []*types.FrameParameters
			for i := 0; i < 10; i++ {
				frames = append(frames, randomFrame(r, mode))
			}
			d := NewDecoder(celp.DefaultConfig())
			a := decodeAll(t, d, frames)
			require.Len(t, a[0], profiles[mode].FrameSize)
			d.Reset()
			assert.Equal(t, a, decodeAll(t, d, frames))
			assert.Equal(t, a, decodeAll(t, NewDecoder(celp.DefaultConfig()), frames))
		})
	}
}

func TestPackUnpack(t *testing.T) {
	r := rand.New(rand.NewPCG(2, 2))
	for mode := 0; mode < modeCount; mode++ {
		var frames []*types.FrameParameters
		for i := 0; i < FramesPerPacket(mode); i++ {
			frames = append(frames, randomFrame(r, mode))
		}
		buf, err := Pack(frames)
		require.NoError(t, err)
		require.Len(t, buf, modes[mode].packetBytes)

		got, err := Unpack(buf)
		require.NoError(t, err)
		assert.Equal(t, frames, got, ModeName(mode))
	}
}

func TestModeForPacket(t *testing.T) {
	for n, want := range map[int]int{20: Mode16k, 19: Mode8k5, 29: Mode6k5, 37: Mode5k0} {
		mode, err := ModeForPacket(n)
		require.NoError(t, err)
		assert.Equal(t, want, mode)
	}
	_, err := ModeForPacket(21)
	assert.ErrorIs(t, err, celp.ErrShortPacket)
}

func TestPackRejectsFrameCount(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 3))
	_, err := Pack([]*types.FrameParameters{randomFrame(r, Mode5k0)})
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
	_, err = Pack([]*types.FrameParameters{randomFrame(r, Mode6k5), randomFrame(r, Mode5k0)})
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
}

func TestModeSwitchChangesRate(t *testing.T) {
	r := rand.New(rand.NewPCG(4, 4))
	d := NewDecoder(celp.DefaultConfig())
	assert.Equal(t, 16000, d.Profile().SampleRate)

	pcm := make([]float32, maxFrame)
	rep, err := d.DecodeFrame(randomFrame(r, Mode8k5), pcm)
	require.NoError(t, err)
	assert.Equal(t, Mode8k5, rep.Mode)
	assert.Equal(t, 8000, d.Profile().SampleRate)
	assert.Equal(t, 144, d.Profile().FrameSize)

	_, err = d.DecodeFrame(randomFrame(r, Mode5k0), pcm)
	require.NoError(t, err)
	assert.Equal(t, 240, d.Profile().FrameSize)

	// an erasure continues the current mode
	rep, err = d.DecodeFrame(nil, pcm)
	require.NoError(t, err)
	assert.Equal(t, Mode5k0, rep.Mode)
	assert.True(t, rep.Concealed)
}

func TestNarrowPulsesInRange(t *testing.T) {
	var s celp.SparseVector
	for _, mode := range []int{Mode8k5, Mode6k5, Mode5k0} {
		bits := modes[mode].pulseBits
		for code := 0; code < 1<<bits[0]; code++ {
			pulses := make([]int, len(bits))
			for i := range pulses {
				pulses[i] = code
			}
			for _, low := range []bool{false, true} {
				decodeNarrow(&s, mode, pulses, low)
				require.NoError(t, s.Validate(subframeLen), "mode %s code %d", ModeName(mode), code)
			}
		}
	}
}

func TestNarrowPulseSigns(t *testing.T) {
	var s celp.SparseVector
	// first pulse at 3*1, second at 3*0: the second sign flips
	decodeNarrow(&s, Mode8k5, []int{0x100 | 1<<4 | 0, 0, 0}, false)
	assert.Equal(t, 3, s.X[0])
	assert.Equal(t, 0, s.X[1])
	assert.Equal(t, -1.0, s.Y[0])
	assert.Equal(t, 1.0, s.Y[1])

	decodeNarrow(&s, Mode5k0, []int{0x200 | 2<<4 | 3}, false)
	require.Equal(t, 2, s.N)
	assert.Equal(t, []int{6, 10}, s.X[:2])
	assert.Equal(t, []float64{-1, 1}, s.Y[:2])
}

func TestWidePulsesInRange(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 1))
	var s celp.SparseVector
	for n := 0; n < 200; n++ {
		pulses := make([]int, 10)
		for i := range pulses {
			pulses[i] = r.IntN(1 << modes[Mode16k].pulseBits[i])
		}
		require.NoError(t, celp.Decode10Pulses35Bits(&s, pulses, wideTrack[:], 5, 4))
		require.NoError(t, s.Validate(subframeLen16))
	}
}

func TestWideDelay(t *testing.T) {
	assert.Equal(t, 88, delay3First(0))
	assert.Equal(t, 477, delay3First(389))
	assert.Equal(t, 480, delay3First(390))
	assert.Equal(t, 3*pitchMax16, delay3First(511))

	assert.Equal(t, 3*90+59, delay3Second(61, 100))
	assert.Equal(t, 300, delay3Second(62, 100))
	assert.Equal(t, 3*pitchMin16-2, delay3Second(0, 30))
}

func TestLSFStayOrdered(t *testing.T) {
	r := rand.New(rand.NewPCG(6, 6))
	d := NewDecoder(celp.DefaultConfig())
	pcm := make([]float32, maxFrame)
	for i := 0; i < 40; i++ {
		_, err := d.DecodeFrame(randomFrame(r, Mode8k5), pcm)
		require.NoError(t, err)
		require.NoError(t, celp.CheckLSF(d.narrow.lsf[:lpcOrder-1], lsfDiffMin))
		assert.LessOrEqual(t, d.narrow.prevISP[lpcOrder-1], maxReflection)
	}
	d.Reset()
	for i := 0; i < 40; i++ {
		_, err := d.DecodeFrame(randomFrame(r, Mode16k), pcm)
		require.NoError(t, err)
		require.NoError(t, celp.CheckLSF(d.wide.lsf[:], lsfDiffMin/2))
	}
}

func TestErasureRunMutes(t *testing.T) {
	for _, mode := range []int{Mode16k, Mode6k5} {
		r := rand.New(rand.NewPCG(7, uint64(mode)))
		d := NewDecoder(celp.DefaultConfig())
		pcm := make([]float32, maxFrame)
		for i := 0; i < 3; i++ {
			_, err := d.DecodeFrame(randomFrame(r, mode), pcm)
			require.NoError(t, err)
		}
		var rep celp.Report
		var err error
		n := profiles[mode].FrameSize
		prev := pcmEnergy(pcm[:n])
		for i := 0; i < 40 && !rep.Muted; i++ {
			rep, err = d.DecodeFrame(&types.FrameParameters{BadFrame: true}, pcm)
			require.NoError(t, err)
			assert.True(t, rep.Concealed)
			e := pcmEnergy(pcm[:n])
			require.LessOrEqual(t, e, prev, "%s erasure %d", ModeName(mode), i)
			prev = e
		}
		require.True(t, rep.Muted, ModeName(mode))
		assert.Equal(t, make([]float32, profiles[mode].FrameSize), pcm[:profiles[mode].FrameSize])

		rep, err = d.DecodeFrame(randomFrame(r, mode), pcm)
		require.NoError(t, err)
		assert.False(t, rep.Concealed)
	}
}

func TestInvalidIndices(t *testing.T) {
	r := rand.New(rand.NewPCG(8, 8))
	cases := map[string]struct {
		mode   int
		mutate func(p *types.FrameParameters)
	}{
		"mode":       {Mode8k5, func(p *types.FrameParameters) { p.Mode = modeCount }},
		"predictor":  {Mode16k, func(p *types.FrameParameters) { p.LSP[0] = 2 }},
		"lsf":        {Mode8k5, func(p *types.FrameParameters) { p.LSP[4] = 32 }},
		"pitch":      {Mode5k0, func(p *types.FrameParameters) { p.Subframes[1].PitchIndex = 32 }},
		"gain":       {Mode6k5, func(p *types.FrameParameters) { p.Subframes[2].GainIndex[0] = 128 }},
		"pulse":      {Mode16k, func(p *types.FrameParameters) { p.Subframes[0].Pulses[1] = 32 }},
		"few pulses": {Mode16k, func(p *types.FrameParameters) { p.Subframes[1].Pulses = p.Subframes[1].Pulses[:9] }},
		"subframes":  {Mode5k0, func(p *types.FrameParameters) { p.Subframes = p.Subframes[:4] }},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			p := randomFrame(r, c.mode)
			c.mutate(p)
			_, err := NewDecoder(celp.DefaultConfig()).DecodeFrame(p, make([]float32, maxFrame))
			assert.ErrorIs(t, err, celp.ErrInvalidParameter)
		})
	}
}

func TestShortOutput(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 9))
	_, err := NewDecoder(celp.DefaultConfig()).DecodeFrame(randomFrame(r, Mode5k0), make([]float32, 239))
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
}

func TestPostfilterChangesOutput(t *testing.T) {
	r := rand.New(rand.NewPCG(10, 10))
	var frames []*types.FrameParameters
	for i := 0; i < 4; i++ {
		frames = append(frames, randomFrame(r, Mode5k0))
	}
	cfg := celp.DefaultConfig()
	on := decodeAll(t, NewDecoder(cfg), frames)
	cfg.Postfilter = false
	off := decodeAll(t, NewDecoder(cfg), frames)
	assert.NotEqual(t, on, off)
}

func TestKernelsAgree(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 11))
	var frames []*types.FrameParameters
	for i := 0; i < 8; i++ {
		frames = append(frames, randomFrame(r, Mode8k5+i%3))
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
