package wmavoice

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/gocelp/internal/bitstream"
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/types"
)

var testModes = []int{0, ModeLSP16, ModeResidual, ModeLSP16 | ModeResidual | ModeAltInterp | ModeAltMean}

// randomSuperframe fills a speech superframe with random bits until it
// parses. When forceType is set, frame 0 gets the frame type coded as 0.
func randomSuperframe(t *testing.T, r *rand.Rand, u *Unpacker, forceType bool) []byte {
	t.Helper()
	for try := 0; try < 200; try++ {
		buf := make([]byte, 300)
		for i := range buf {
			buf[i] = byte(r.Uint32())
		}
		buf[0] = buf[0]&0x3F | 0x80
		if forceType {
			pos := 2
			for _, b := range lspFieldBits(u.cfg.Mode) {
				pos += b
			}
			for i := pos; i < pos+2; i++ {
				buf[i>>3] &^= 0x80 >> uint(i&7)
			}
		}
		trial := *u
		if _, _, err := trial.Unpack(buf); err == nil {
			return buf
		}
	}
	t.Fatal("no parseable superframe")
	return nil
}

func unpackStream(t *testing.T, r *rand.Rand, cfg StreamConfig, n int) [][]*types.FrameParameters {
	t.Helper()
	u := NewUnpacker(cfg)
	var out [][]*types.FrameParameters
	for i := 0; i < n; i++ {
		frames, samples, err := u.Unpack(randomSuperframe(t, r, u, false))
		require.NoError(t, err)
		require.Equal(t, superframeLen, samples)
		require.Len(t, frames, framesPerSuper)
		out = append(out, frames)
	}
	return out
}

func decodeStream(t *testing.T, d *Decoder, stream [][]*types.FrameParameters) ([]float32, []celp.Report) {
	t.Helper()
	var pcm []float32
	var reps []celp.Report
	for _, frames := range stream {
		for _, p := range frames {
			out := make([]float32, frameLen)
			rep, err := d.DecodeFrame(p, out)
			require.NoError(t, err)
			pcm = append(pcm, out...)
			reps = append(reps, rep)
		}
	}
	return pcm, reps
}

func TestProfilesValid(t *testing.T) {
	for mode := 0; mode < modeCount; mode++ {
		p, err := ProfileFor(mode)
		require.NoError(t, err)
		assert.NoError(t, p.Validate(), ModeName(mode))
		assert.Equal(t, order(mode), p.Order)
	}
	_, err := ProfileFor(modeCount)
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
}

func TestModeName(t *testing.T) {
	assert.Equal(t, "lsp10", ModeName(0))
	assert.Equal(t, "lsp16+residual", ModeName(ModeLSP16|ModeResidual))
}

func TestUnpackPackRoundTrip(t *testing.T) {
	for _, mode := range testModes {
		t.Run(ModeName(mode), func(t *testing.T) {
			r := rand.New(rand.NewPCG(1, uint64(mode)))
			cfg := DefaultStreamConfig(mode)
			stream := unpackStream(t, r, cfg, 20)

			p := NewPacker(cfg)
			u := NewUnpacker(cfg)
			for _, frames := range stream {
				buf, err := p.Pack(frames, superframeLen)
				require.NoError(t, err)
				got, samples, err := u.Unpack(buf)
				require.NoError(t, err)
				assert.Equal(t, superframeLen, samples)
				assert.Equal(t, frames, got)
			}
		})
	}
}

func TestPartialSuperframe(t *testing.T) {
	r := rand.New(rand.NewPCG(2, 2))
	cfg := DefaultStreamConfig(0)
	frames := unpackStream(t, r, cfg, 1)[0]

	buf, err := NewPacker(cfg).Pack(frames, 200)
	require.NoError(t, err)
	got, samples, err := NewUnpacker(cfg).Unpack(buf)
	require.NoError(t, err)
	assert.Equal(t, 200, samples)
	assert.Equal(t, frames, got)

	_, err = NewPacker(cfg).Pack(frames, superframeLen+1)
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
	_, err = NewPacker(cfg).Pack(frames[:2], superframeLen)
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
}

func TestUnpackErrors(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 3))
	cfg := DefaultStreamConfig(0)
	u := NewUnpacker(cfg)

	_, _, err := u.Unpack([]byte{0x00, 0xFF})
	assert.ErrorIs(t, err, celp.ErrUnsupportedMode)

	// 1, 1, then a sample count of 0xFFF
	_, _, err = u.Unpack([]byte{0xFF, 0xFF, 0xC0})
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)

	buf := randomSuperframe(t, r, u, false)
	before := u.pitch
	_, _, err = u.Unpack(buf[:4])
	assert.ErrorIs(t, err, celp.ErrShortPacket)
	assert.Equal(t, before, u.pitch)

	// after the LSPs, seven "11" pairs code 21, which the default tree
	// leaves unused
	_, _, err = u.Unpack(append([]byte{0x80, 0, 0, 0x3F, 0xFF}, make([]byte, 40)...))
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
}

func TestParseExtradata(t *testing.T) {
	extra := make([]byte, ExtradataSize)
	binary.LittleEndian.PutUint32(extra[18:], 0x1|9<<7|0x1000|0x4000)
	w := bitstream.NewWriter(bitstream.MSBFirst)
	for ft := 0; ft < frameTypes; ft++ {
		w.WriteInt(ft/3, 3)
	}
	copy(extra[22:], w.Bytes(0))

	cfg, err := ParseExtradata(extra)
	require.NoError(t, err)
	assert.True(t, cfg.Postfilter)
	assert.Equal(t, 9, cfg.DCLevel)
	assert.Equal(t, ModeLSP16|ModeAltMean, cfg.Mode)
	assert.Equal(t, DefaultStreamConfig(cfg.Mode).tree, cfg.tree)

	_, err = ParseExtradata(extra[:40])
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)

	bad := append([]byte(nil), extra...)
	binary.LittleEndian.PutUint32(bad[18:], 12<<2)
	_, err = ParseExtradata(bad)
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)

	// every frame type on code 0 overflows the tree
	bad = append([]byte(nil), extra...)
	clear(bad[22:])
	_, err = ParseExtradata(bad)
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
}

func TestDecodeDeterministic(t *testing.T) {
	for _, mode := range testModes {
		t.Run(ModeName(mode), func(t *testing.T) {
			r := rand.New(rand.NewPCG(4, uint64(mode)))
			stream := unpackStream(t, r, DefaultStreamConfig(mode), 12)

			d := NewDecoder(celp.DefaultConfig())
			a, reps := decodeStream(t, d, stream)
			for i, rep := range reps {
				f := stream[i/framesPerSuper][i%framesPerSuper]
				assert.Equal(t, mode, rep.Mode)
				assert.Equal(t, f.Pitch[0] == 0, rep.ComfortNoise)
			}
			for _, v := range a {
				require.False(t, math.IsNaN(float64(v)))
			}
			d.Reset()
			b, _ := decodeStream(t, d, stream)
			assert.Equal(t, a, b)
			c, _ := decodeStream(t, NewDecoder(celp.DefaultConfig()), stream)
			assert.Equal(t, a, c)
		})
	}
}

func TestEveryFrameType(t *testing.T) {
	for ft := 0; ft < frameTypes; ft++ {
		cfg := DefaultStreamConfig(0)
		cfg.tree[0], cfg.tree[ft] = int8(ft), 0
		r := rand.New(rand.NewPCG(5, uint64(ft)))
		u := NewUnpacker(cfg)
		d := NewDecoder(celp.DefaultConfig())
		for i := 0; i < 4; i++ {
			frames, _, err := u.Unpack(randomSuperframe(t, r, u, true))
			require.NoError(t, err)
			require.Equal(t, ft, frames[0].Pitch[0])
			require.Len(t, frames[0].Subframes, frameDescs[ft].blocks)
			_, _ = decodeStream(t, d, [][]*types.FrameParameters{frames})
		}
	}
}

func TestModeSwitch(t *testing.T) {
	r := rand.New(rand.NewPCG(6, 6))
	d := NewDecoder(celp.DefaultConfig())
	assert.Equal(t, 10, d.Profile().Order)
	decodeStream(t, d, unpackStream(t, r, DefaultStreamConfig(ModeLSP16), 2))
	assert.Equal(t, 16, d.Profile().Order)
	decodeStream(t, d, unpackStream(t, r, DefaultStreamConfig(ModeAltMean), 2))
	assert.Equal(t, 10, d.Profile().Order)
}

func TestResidualNeedsHead(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	frames := unpackStream(t, r, DefaultStreamConfig(ModeResidual), 1)[0]
	require.Empty(t, frames[1].LSP)

	pcm := make([]float32, frameLen)
	_, err := NewDecoder(celp.DefaultConfig()).DecodeFrame(frames[1], pcm)
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)

	// once the superframe is used up a continuation is rejected again
	d := NewDecoder(celp.DefaultConfig())
	for _, p := range frames {
		_, err := d.DecodeFrame(p, pcm)
		require.NoError(t, err)
	}
	_, err = d.DecodeFrame(frames[1], pcm)
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
}

func TestStabilize(t *testing.T) {
	r := rand.New(rand.NewPCG(8, 8))
	for n := 0; n < 100; n++ {
		lsp := make([]float64, 16)
		for i := range lsp {
			lsp[i] = r.Float64()*4 - 0.5
		}
		stabilize(lsp)
		assertStableLSP(t, lsp)
	}

	// values clustered at the top used to leave the sorted maximum past
	// the upper bound
	lsp := []float64{3.3, 3.45, 3.2, 3.4, 3.0, 3.1, 3.35, 3.25, 3.15, 3.05}
	stabilize(lsp)
	assertStableLSP(t, lsp)
}

func assertStableLSP(t *testing.T, lsp []float64) {
	t.Helper()
	require.True(t, sort.Float64sAreSorted(lsp), "%v", lsp)
	assert.GreaterOrEqual(t, lsp[0], minLSP)
	assert.LessOrEqual(t, lsp[len(lsp)-1], maxLSP)
	for i := 1; i < len(lsp); i++ {
		assert.GreaterOrEqual(t, lsp[i]-lsp[i-1], lspSpacing-1e-12, "spacing at %d", i)
	}
}

func TestDecodedLSPsStable(t *testing.T) {
	r := rand.New(rand.NewPCG(12, 12))
	for _, mode := range testModes {
		n := order(mode)
		for trial := 0; trial < 200; trial++ {
			var idx []int
			for _, b := range lspFieldBits(mode) {
				idx = append(idx, r.IntN(1<<b))
			}
			if mode&ModeResidual == 0 {
				out := make([]float64, n)
				decodeIndependent(out, mode, idx)
				assertStableLSP(t, out)
				continue
			}
			prev := make([]float64, n)
			for i := range prev {
				prev[i] = r.Float64() * maxLSP
			}
			stabilize(prev)
			var out [framesPerSuper][maxOrder]float64
			decodeResidual(&out, mode, prev, idx)
			for f := range out {
				assertStableLSP(t, out[f][:n])
			}
		}
	}
}

func TestAWSet2(t *testing.T) {
	var s celp.SparseVector
	a := awState{}
	require.True(t, a.set2(&s, 0, 5, true, 40))
	require.Equal(t, 1, s.N)
	assert.Equal(t, 5, s.X[0])
	assert.Equal(t, -1.0, s.Y[0])
	assert.Equal(t, 5, a.nextOff)

	// windows every 20 samples, 24 wide, leave no free position
	s.Reset()
	a = awState{pulseRange: 24, nPulses: [2]int{4, 4}}
	assert.False(t, a.set2(&s, 0, 0, false, 20))
	assert.Zero(t, s.N)
}

func TestNoiseOffsetInRange(t *testing.T) {
	for frame := 0; frame < 0xFFFF; frame += 7 {
		for block := 0; block < 2; block++ {
			off := noiseOffset(frame, block, awBlock)
			require.GreaterOrEqual(t, off, 0)
			require.Less(t, off+awBlock, len(stdCodebook)+1)
		}
	}
}

func TestInvalidFrames(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 9))
	frames := unpackStream(t, r, DefaultStreamConfig(0), 1)[0]
	pcm := make([]float32, frameLen)
	decode := func(p *types.FrameParameters) error {
		_, err := NewDecoder(celp.DefaultConfig()).DecodeFrame(p, pcm)
		return err
	}

	p := *frames[0]
	p.Pitch = []int{frameTypes, 0, 0}
	assert.ErrorIs(t, decode(&p), celp.ErrInvalidParameter)

	p = *frames[0]
	p.Pitch = nil
	assert.ErrorIs(t, decode(&p), celp.ErrInvalidParameter)

	p = *frames[0]
	p.Mode = modeCount
	assert.ErrorIs(t, decode(&p), celp.ErrInvalidParameter)

	p = *frames[0]
	p.LSP = []int{1 << 8, 0, 0, 0}
	assert.ErrorIs(t, decode(&p), celp.ErrInvalidParameter)

	p = *frames[0]
	p.Subframes = nil
	assert.ErrorIs(t, decode(&p), celp.ErrInvalidParameter)

	p = *frames[0]
	p.Type = types.FrameSID
	assert.ErrorIs(t, decode(&p), celp.ErrUnsupportedMode)

	_, err := NewDecoder(celp.DefaultConfig()).DecodeFrame(frames[0], make([]float32, frameLen-1))
	assert.ErrorIs(t, err, celp.ErrInvalidParameter)
}

func TestErasureRunMutes(t *testing.T) {
	r := rand.New(rand.NewPCG(10, 10))
	stream := unpackStream(t, r, DefaultStreamConfig(0), 2)
	d := NewDecoder(celp.DefaultConfig())
	decodeStream(t, d, stream[:1])

	pcm := make([]float32, frameLen)
	var rep celp.Report
	var err error
	prev := math.Inf(1)
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

	_, reps := decodeStream(t, d, stream[1:])
	assert.False(t, reps[0].Concealed)
}

func TestPostfilterAndHighpass(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 11))
	stream := unpackStream(t, r, DefaultStreamConfig(0), 4)

	cfg := celp.DefaultConfig()
	cfg.Postfilter, cfg.Highpass = false, false
	plain, _ := decodeStream(t, NewDecoder(cfg), stream)
	cfg.Postfilter = true
	post, _ := decodeStream(t, NewDecoder(cfg), stream)
	cfg.Postfilter, cfg.Highpass = false, true
	hp, _ := decodeStream(t, NewDecoder(cfg), stream)
	assert.NotEqual(t, plain, post)
	assert.NotEqual(t, plain, hp)
}

func TestKernelsAgree(t *testing.T) {
	r := rand.New(rand.NewPCG(12, 12))
	stream := unpackStream(t, r, DefaultStreamConfig(0), 4)
	stream = append(stream, []*types.FrameParameters{nil, nil, nil})

	var outs [][]float32
	for _, name := range []string{"portable", "order10"} {
		k, ok := celp.KernelByName(name)
		require.True(t, ok)
		cfg := celp.DefaultConfig()
		cfg.Kernel = k
		pcm, _ := decodeStream(t, NewDecoder(cfg), stream)
		outs = append(outs, pcm)
	}
	require.Len(t, outs[1], len(outs[0]))
	for i := range outs[0] {
		require.InDelta(t, outs[0][i], outs[1][i], 1e-3, "sample %d", i)
	}
}

func pcmEnergy(pcm []float32) float64 {
	var e float64
	for _, v := range pcm {
		e += float64(v) * float64(v)
	}
	return e
}
