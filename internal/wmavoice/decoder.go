package wmavoice

import (
	"fmt"
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/plc"
	"github.com/thesyncim/gocelp/internal/types"
)

var _ celp.FrameDecoder = (*Decoder)(nil)

const (
	concealLSPDecay = 0.9
	concealMaxACB   = 0.9
	noPending       = framesPerSuper
)

// Decoder decodes one WMA Voice channel, one 160-sample frame per call.
type Decoder struct {
	cfg      celp.Config
	kernel   celp.SynthesisKernel
	plc      *plc.State
	outLevel plc.EnergyCap
	exc      *celp.History[float64]
	post     *postfilter
	dc       celp.Biquad

	mode       int
	pitch      pitchState
	aw         awState
	pending    [framesPerSuper][maxOrder]float64 // residual coded LSPs of the superframe
	pendingIdx int
	prevLSP    [maxOrder]float64

	gainPredErr [6]float64
	silenceGain float64
	lastACBGain float64
	lastFCBGain float64
	frameCount  int

	fcb    celp.SparseVector
	pulses [frameLen]float64
	synth  [maxOrder + frameLen]float64 // order samples of memory, then the frame
	pcm    [frameLen]float64
}

// NewDecoder returns a decoder for 10 LSP streams; the first frame of
// another mode switches it.
func NewDecoder(cfg celp.Config) *Decoder {
	k := cfg.KernelOrDefault()
	d := &Decoder{
		cfg:    cfg,
		kernel: k,
		exc:    celp.NewHistory[float64](profile16.HistoryLen(), frameLen),
		post:   newPostfilter(k),
		dc:     dcFilter,
	}
	d.Reset()
	return d
}

// Profile returns the profile of the current mode.
func (d *Decoder) Profile() *celp.Profile {
	p, _ := ProfileFor(d.mode)
	return p
}

// Reset returns the decoder to its initial state, keeping the mode.
func (d *Decoder) Reset() {
	d.plc = plc.NewState(plc.DefaultFadePerFrame, 0)
	d.outLevel.Reset()
	d.exc.Reset()
	d.post.reset()
	d.dc.Reset()
	d.pitch = newPitchState()
	d.aw = awState{}
	d.pendingIdx = noPending
	n := order(d.mode)
	d.prevLSP = [maxOrder]float64{}
	for i := 0; i < n; i++ {
		d.prevLSP[i] = math.Pi * float64(i+1) / float64(n+1)
	}
	d.gainPredErr = [6]float64{}
	d.silenceGain = 0
	d.lastACBGain = 0
	d.lastFCBGain = 0
	d.frameCount = 0
	d.synth = [maxOrder + frameLen]float64{}
}

// setMode switches to mode. A new LP order restarts the decoder; any
// change drops the LSPs pending from a residual coded superframe.
func (d *Decoder) setMode(mode int) {
	if mode == d.mode {
		return
	}
	restart := order(mode) != order(d.mode)
	d.mode = mode
	if restart {
		d.Reset()
	}
	d.pendingIdx = noPending
}

// validate checks p against the decoder's pitch history, which decides
// the width of the AW pulse fields.
func (d *Decoder) validate(p *types.FrameParameters) error {
	if err := celp.CheckIndex("mode", p.Mode, modeCount); err != nil {
		return err
	}
	if len(p.Pitch) < 1 {
		return fmt.Errorf("%w: missing frame type", celp.ErrInvalidParameter)
	}
	if err := celp.CheckIndex("frame type", p.Pitch[0], frameTypes); err != nil {
		return err
	}
	head, err := checkLSP(p.Mode, p.LSP)
	if err != nil {
		return err
	}
	if p.Mode&ModeResidual != 0 && !head && (p.Mode != d.mode || d.pendingIdx >= noPending) {
		return fmt.Errorf("%w: residual LSP frame without a superframe head", celp.ErrInvalidParameter)
	}

	desc := &frameDescs[p.Pitch[0]]
	if err := celp.CheckShape(p, 0, 0, desc.blocks); err != nil {
		return err
	}

	ps := d.pitch
	if order(p.Mode) != order(d.mode) {
		ps = newPitchState()
	}
	var pitches [maxBlocks]int
	if desc.acb == acbAsymmetric {
		if len(p.Pitch) < 2 {
			return fmt.Errorf("%w: missing frame pitch", celp.ErrInvalidParameter)
		}
		if err := celp.CheckIndex("frame pitch", p.Pitch[1], 1<<framePitchBits); err != nil {
			return err
		}
		_, pitches = ps.framePitch(desc, p.Pitch[1])
	}
	var aw awState
	switch desc.fcb {
	case fcbSilence:
		if len(p.Energy) < 1 {
			return fmt.Errorf("%w: missing comfort noise gain", celp.ErrInvalidParameter)
		}
		if err := celp.CheckIndex("silence gain", p.Energy[0], len(gainSilence)); err != nil {
			return err
		}
	case fcbAWPulses:
		if len(p.Pitch) < 3 {
			return fmt.Errorf("%w: missing AW position", celp.ErrInvalidParameter)
		}
		if err := celp.CheckIndex("AW position", p.Pitch[2], len(awStartOffset)); err != nil {
			return err
		}
		aw.parse(p.Pitch[2], [2]int{pitches[0], pitches[1]})
	}

	for n := 0; n < desc.blocks; n++ {
		if err := checkBlock(desc, &aw, n, &p.Subframes[n]); err != nil {
			return fmt.Errorf("block %d: %w", n, err)
		}
	}
	return nil
}

func checkBlock(desc *frameDesc, aw *awState, n int, sf *types.SubframeParameters) error {
	need := func(gains, pulses int) error {
		if len(sf.GainIndex) < gains || len(sf.Pulses) < pulses {
			return fmt.Errorf("%w: %d gains and %d pulses, want %d and %d",
				celp.ErrInvalidParameter, len(sf.GainIndex), len(sf.Pulses), gains, pulses)
		}
		return nil
	}
	switch desc.fcb {
	case fcbSilence:
		return nil
	case fcbHardcoded:
		if err := need(1, 1); err != nil {
			return err
		}
		if err := celp.CheckIndex("codebook offset", sf.Pulses[0], 256); err != nil {
			return err
		}
		return celp.CheckIndex("gain", sf.GainIndex[0], len(gainUniversal))
	}

	if desc.acb == acbHamming {
		if err := celp.CheckIndex("block pitch", sf.PitchIndex, 1<<blockPitchBitsAt(n)); err != nil {
			return err
		}
	}
	if desc.fcb == fcbAWPulses {
		if err := need(1, 2); err != nil {
			return err
		}
		if err := celp.CheckIndex("AW pulses", sf.Pulses[0], 1<<aw.set1Bits(n)); err != nil {
			return err
		}
		if err := celp.CheckIndex("AW position", sf.Pulses[1], 1<<aw.set2Bits(n)); err != nil {
			return err
		}
		if err := celp.CheckIndex("AW sign", sf.Signs, 2); err != nil {
			return err
		}
	} else {
		if err := need(1, excPulseCount(desc)); err != nil {
			return err
		}
		for i := 0; i < excPulseCount(desc); i++ {
			if err := celp.CheckIndex("pulse", sf.Pulses[i], 1<<desc.pulseBits()); err != nil {
				return err
			}
		}
		if err := celp.CheckIndex("pulse signs", sf.Signs, 1<<5); err != nil {
			return err
		}
	}
	return celp.CheckIndex("gain", sf.GainIndex[0], len(gainACB))
}

// DecodeFrame decodes one 160-sample frame into out.
func (d *Decoder) DecodeFrame(p *types.FrameParameters, out []float32) (celp.Report, error) {
	if len(out) < frameLen {
		return celp.Report{}, fmt.Errorf("%w: output holds %d samples, want %d", celp.ErrInvalidParameter, len(out), frameLen)
	}
	erased := celp.Erased(p) || p.Type == types.FrameUntransmitted
	if !erased {
		if p.Type == types.FrameSID {
			return celp.Report{}, fmt.Errorf("%w: WMA Voice has no SID frames", celp.ErrUnsupportedMode)
		}
		if err := d.validate(p); err != nil {
			return celp.Report{}, err
		}
		d.setMode(p.Mode)
	}

	rep := celp.Report{Mode: d.mode}
	if erased {
		d.plc.RecordLoss()
		rep.Concealed = true
		d.conceal()
	} else {
		d.plc.Reset()
		rep.ComfortNoise = frameDescs[p.Pitch[0]].fcb == fcbSilence
		d.decode(p)
	}

	if erased && d.plc.IsExhausted() {
		rep.Muted = true
		clear(out[:frameLen])
	} else {
		celp.ScaleToFloat32(out[:frameLen], d.pcm[:], 1)
	}
	if erased {
		d.outLevel.Limit(out[:frameLen])
	} else {
		d.outLevel.Observe(out[:frameLen])
	}
	return rep, nil
}

// frameLSP returns the LSPs of the next frame of a residual coded
// superframe, or nil when none are pending.
func (d *Decoder) frameLSP() []float64 {
	if d.pendingIdx >= noPending {
		return nil
	}
	lsp := d.pending[d.pendingIdx][:order(d.mode)]
	d.pendingIdx++
	return lsp
}

func (d *Decoder) decode(p *types.FrameParameters) {
	n := order(d.mode)
	desc := &frameDescs[p.Pitch[0]]

	var cur [maxOrder]float64
	if d.mode&ModeResidual == 0 {
		decodeIndependent(cur[:n], d.mode, p.LSP)
	} else {
		if len(p.LSP) > 0 {
			decodeResidual(&d.pending, d.mode, d.prevLSP[:n], p.LSP)
			d.pendingIdx = 0
		}
		copy(cur[:n], d.frameLSP())
	}

	var framePitch int
	var pitches [maxBlocks]int
	if desc.acb == acbAsymmetric {
		framePitch, pitches = d.pitch.framePitch(desc, p.Pitch[1])
	}
	switch desc.fcb {
	case fcbSilence:
		d.silenceGain = gainSilence[p.Energy[0]]
	case fcbAWPulses:
		d.aw.parse(p.Pitch[2], [2]int{pitches[0], pitches[1]})
	}

	w := d.exc.Window(frameLen)
	base := d.exc.Lookback()
	bl := desc.blockLen()
	lastBlock := 0
	for b := 0; b < desc.blocks; b++ {
		sf := &p.Subframes[b]
		pos := base + b*bl
		switch desc.acb {
		case acbNone:
			d.hardcoded(w[pos:pos+bl], desc, b, sf)
		case acbHamming:
			sh2 := blockPitch(b, sf.PitchIndex, &lastBlock)
			pitches[b] = sh2 >> 2
			d.pulseBlock(w, pos, bl, b, sh2, desc, sf)
		case acbAsymmetric:
			d.pulseBlock(w, pos, bl, b, pitches[b]<<2, desc, sf)
		}
		d.synthesizeBlock(w[pos:pos+bl], cur[:n], b, desc.blocks)
	}

	d.finishFrame(cur[:n], desc.fcb, pitches[0])
	d.pitch.endFrame(desc, framePitch, &pitches)
}

// hardcoded fills a block from the hardcoded codebook: comfort noise at
// a pseudo-random offset, or a coded offset and gain.
func (d *Decoder) hardcoded(out []float64, desc *frameDesc, block int, sf *types.SubframeParameters) {
	var r int
	var gain float64
	if desc.fcb == fcbSilence {
		r = noiseOffset(d.frameCount, block, len(out))
		gain = d.silenceGain
	} else {
		r = sf.Pulses[0]
		gain = gainUniversal[sf.GainIndex[0]]
	}
	d.gainPredErr = [6]float64{}
	for i := range out {
		out[i] = stdCodebook[r+i] * gain
	}
	d.lastACBGain, d.lastFCBGain = 0, gain
}

// pulseBlock builds the excitation of one block of a pulse frame type
// into w[pos:pos+bl]: the adaptive codebook at pitch sh2/4 plus the fixed
// pulses, weighted by the jointly coded gains.
func (d *Decoder) pulseBlock(w []float64, pos, bl, block, sh2 int, desc *frameDesc, sf *types.SubframeParameters) {
	lag := sh2 >> 2
	d.fcb.Reset()
	d.fcb.PitchLag = lag
	d.fcb.PitchFac = 1

	if desc.fcb == fcbAWPulses {
		d.aw.set1(&d.fcb, block, sf.Pulses[0], lag)
		if !d.aw.set2(&d.fcb, block, sf.Pulses[1], sf.Signs&1 != 0, lag) {
			r := noiseOffset(d.frameCount, block, bl)
			for i := 0; i < bl; i++ {
				w[pos+i] = stdCodebook[r+i] * d.silenceGain
			}
			return
		}
	} else {
		excPulses(&d.fcb, desc, sf.Pulses, sf.Signs)
	}
	pulses := d.pulses[:bl]
	clear(pulses)
	d.fcb.Materialize(pulses, 1)

	idx := sf.GainIndex[0]
	fcbGain := math.Exp(celp.Dot(d.gainPredErr[:], gainPredCoeffs[:]) - gainPredOffset + gainFCB[idx])
	acbGain := gainACB[idx]
	predErr := min(max(gainFCB[idx], predErrMin), predErrMax)
	weight := 8 >> desc.logBlocks
	copy(d.gainPredErr[weight:], d.gainPredErr[:len(d.gainPredErr)-weight])
	for i := 0; i < weight; i++ {
		d.gainPredErr[i] = predErr
	}

	if desc.acb == acbAsymmetric {
		d.asymmetricACB(w, pos, bl, block)
	} else if frac := sh2 & 3; frac != 0 {
		celp.Interpolate(w, pos, pos-lag, ipol2, ipol2Res, frac, ipol2Taps, bl)
	} else {
		for i := 0; i < bl; i++ {
			w[pos+i] = w[pos+i-lag]
		}
	}

	exc := w[pos : pos+bl]
	celp.WeightedVectorSum(exc, exc, pulses, acbGain, fcbGain)
	d.lastACBGain, d.lastFCBGain = acbGain, fcbGain
}

// asymmetricACB builds the adaptive codebook of a block whose pitch moves
// linearly from the previous frame's pitch, in runs of samples sharing
// one integer lag and filter phase.
func (d *Decoder) asymmetricACB(w []float64, pos, bl, block int) {
	diff := d.pitch.diffSh16
	for n, run := 0, 0; n < bl; n += run {
		pitchSh16 := d.pitch.last<<16 + diff*(block*bl+n)
		pitch := (pitchSh16 + 0x6FFF) >> 16
		idxSh16 := (pitch<<16-pitchSh16)*8 + 0x58000
		run = bl - n
		if diff != 0 {
			next := (idxSh16 + 0x10000) &^ 0xFFFF
			if diff > 0 {
				next = idxSh16 &^ 0xFFFF
			}
			run = min(max((idxSh16-next)/diff/8, 1), bl-n)
		}
		celp.Interpolate(w, pos+n, pos+n-pitch, ipol1, ipol1Res, idxSh16>>16, ipol1Taps, run)
	}
}

// synthesizeBlock runs the synthesis filter over one block with the LSPs
// interpolated at the block centre.
func (d *Decoder) synthesizeBlock(exc, cur []float64, block, blocks int) {
	n := len(cur)
	bl := len(exc)
	fac := (float64(block) + 0.5) / float64(blocks)
	var lsp [maxOrder]float64
	var lpc [maxOrder]float64
	celp.InterpolateLSP(lsp[:n], d.prevLSP[:n], cur, fac)
	lspToLPC(lpc[:n], lsp[:n])
	start := block * bl
	d.kernel.Synthesize(d.synth[start:start+n+bl], lpc[:n], exc, bl)
}

// finishFrame runs the output stages and moves every history forward.
func (d *Decoder) finishFrame(cur []float64, fcb fcbType, pitch int) {
	n := len(cur)
	if d.cfg.Postfilter {
		var lsp [maxOrder]float64
		var lpc [maxOrder]float64
		celp.WeightedSum(lsp[:n], d.prevLSP[:n], cur, 0.5, 0.5)
		lspToLPC(lpc[:n], lsp[:n])
		d.post.process(d.pcm[:awBlock], d.synth[:n+awBlock], lpc[:n], fcb, pitch)
		lspToLPC(lpc[:n], cur)
		d.post.process(d.pcm[awBlock:], d.synth[awBlock:n+frameLen], lpc[:n], fcb, pitch)
	} else {
		copy(d.pcm[:], d.synth[n:n+frameLen])
	}
	if d.cfg.Highpass {
		d.dc.Process(d.pcm[:], d.pcm[:])
	}

	copy(d.synth[:n], d.synth[frameLen:frameLen+n])
	copy(d.prevLSP[:n], cur)
	d.exc.Advance(frameLen)
	d.frameCount++
	if d.frameCount >= 0xFFFF {
		d.frameCount -= 0xFFFF
	}
}

// conceal synthesizes an erased frame: the LSPs drift towards the mean,
// the last pitch period repeats with a decaying gain and hardcoded noise
// at the last fixed gain fills in.
func (d *Decoder) conceal() {
	n := order(d.mode)
	var cur [maxOrder]float64
	if lsp := d.frameLSP(); lsp != nil {
		copy(cur[:n], lsp)
	} else {
		copy(cur[:n], d.prevLSP[:n])
		plc.DecayLSF(cur[:n], meanLSF(d.mode), concealLSPDecay)
		stabilize(cur[:n])
	}

	fade := d.plc.FadeFactor()
	w := d.exc.Window(frameLen)
	base := d.exc.Lookback()
	lag := d.pitch.last
	if lag >= minPitch {
		g := min(d.lastACBGain, concealMaxACB) * fade
		for i := 0; i < frameLen; i++ {
			w[base+i] = w[base+i-lag] * g
		}
	} else {
		clear(w[base : base+frameLen])
	}
	r := noiseOffset(d.frameCount, 0, frameLen)
	noise := d.lastFCBGain * fade
	for i := 0; i < frameLen; i++ {
		w[base+i] += stdCodebook[r+i] * noise
	}

	for b := 0; b < 2; b++ {
		d.synthesizeBlock(w[base+b*awBlock:base+(b+1)*awBlock], cur[:n], b, 2)
	}
	d.finishFrame(cur[:n], fcbSilence, max(lag, minPitch))
}
