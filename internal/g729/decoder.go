package g729

import (
	"fmt"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/fixed"
	"github.com/thesyncim/gocelp/internal/plc"
	"github.com/thesyncim/gocelp/internal/types"
)

var _ celp.FrameDecoder = (*Decoder)(nil)

// excLookback covers the longest lag plus the interpolation support.
const excLookback = celp.PitchDelayMax + interpLen

// Decoder decodes one G.729 channel. The mode may change from frame to
// frame.
type Decoder struct {
	cfg      celp.Config
	kernel   celp.SynthesisKernel
	plc      *plc.State
	outLevel plc.EnergyCap
	exc      *celp.History[int16]

	lsf  lsfState
	post postfilter
	hpf  highpass

	mode         int
	prevLag      int // integer lag of the previous subframe
	pastGainPit  [6]int16
	pastGainCode [2]int16
	quantEnergy  [maPredOrder]int16
	wasPeriodic  bool

	onset         int
	voiceDecision int

	synMem [lpcOrder]int16
	pcm    [frameLen]int16
}

// NewDecoder returns a decoder in its initial state.
func NewDecoder(cfg celp.Config) *Decoder {
	d := &Decoder{
		cfg:    cfg,
		kernel: cfg.KernelOrDefault(),
		exc:    celp.NewHistory[int16](excLookback, frameLen),
	}
	d.Reset()
	return d
}

// Profile returns the G.729 profile.
func (d *Decoder) Profile() *celp.Profile { return Profile }

// Reset returns the decoder to its initial state.
func (d *Decoder) Reset() {
	d.plc = plc.NewState(plc.DefaultFadePerFrame, Profile.MuteAfter)
	d.plc.Rand().Seed(randSeed)
	d.outLevel.Reset()
	d.exc.Reset()
	d.lsf.reset()
	d.post.reset()
	d.hpf.reset()
	d.mode = Mode8k
	d.prevLag = celp.PitchDelayMin
	d.pastGainPit = [6]int16{}
	d.pastGainCode = [2]int16{}
	for i := range d.quantEnergy {
		d.quantEnergy[i] = energyInit
	}
	d.wasPeriodic = false
	d.onset = 0
	d.voiceDecision = decisionNoise
	d.synMem = [lpcOrder]int16{}
}

// validate checks every index of p against the bit allocation of its
// mode.
func validate(p *types.FrameParameters) error {
	if err := celp.CheckIndex("mode", p.Mode, len(formats)); err != nil {
		return err
	}
	f := &formats[p.Mode]
	if err := celp.CheckShape(p, 4, 0, subframes); err != nil {
		return err
	}
	if err := celp.CheckGains(p, subframes, 2, 1); err != nil {
		return err
	}
	for i, n := range [4]int{2, 128, 32, 32} {
		if err := celp.CheckIndex("LSF", p.LSP[i], n); err != nil {
			return err
		}
	}
	for i := 0; i < subframes; i++ {
		sf := &p.Subframes[i]
		checks := []struct {
			what string
			v    int
			bits int
		}{
			{"pitch", sf.PitchIndex, f.pitchBits[i]},
			{"gain stage 1", sf.GainIndex[0], f.gain1Bits},
			{"gain stage 2", sf.GainIndex[1], f.gain2Bits},
			{"pulse code", sf.Pulses[0], f.pulseBits},
			{"pulse signs", sf.Signs, f.signBits},
		}
		for _, c := range checks {
			if err := celp.CheckIndex(c.what, c.v, 1<<c.bits); err != nil {
				return fmt.Errorf("subframe %d: %w", i, err)
			}
		}
	}
	return nil
}

// DecodeFrame decodes one 80 sample frame into out. A frame with
// ParityError set keeps the previous lag in its first subframe; an
// untransmitted frame is concealed.
func (d *Decoder) DecodeFrame(p *types.FrameParameters, out []float32) (celp.Report, error) {
	if len(out) < frameLen {
		return celp.Report{}, fmt.Errorf("%w: output holds %d samples, want %d", celp.ErrInvalidParameter, len(out), frameLen)
	}
	erased := celp.Erased(p) || p.Type == types.FrameUntransmitted
	if !erased {
		if p.Type == types.FrameSID {
			return celp.Report{}, fmt.Errorf("%w: G.729 Annex B SID frames", celp.ErrUnsupportedMode)
		}
		if err := validate(p); err != nil {
			return celp.Report{}, err
		}
		d.mode = p.Mode
		d.plc.Reset()
	} else {
		d.plc.RecordLoss()
	}
	rep := celp.Report{Mode: d.mode, Concealed: erased}

	if erased {
		d.lsf.restore()
	} else {
		d.lsf.decode(p.LSP)
	}
	var lp [subframes][lpcOrder + 1]int16
	d.lsf.filters(&lp)

	window := d.exc.Window(frameLen)
	var lags [subframes]int
	periodic := false
	for i := 0; i < subframes; i++ {
		var sf *types.SubframeParameters
		if !erased {
			sf = &p.Subframes[i]
		}
		lags[i] = d.subframeLag(sf, i, !erased && p.ParityError)
		retried, voiced := d.decodeSubframe(window, i, sf, lags, lp[i][:])
		if retried {
			rep.OverflowRetries++
		}
		periodic = voiced
	}
	d.wasPeriodic = periodic
	d.exc.Advance(frameLen)

	if erased && d.plc.IsExhausted() {
		rep.Muted = true
		clear(out[:frameLen])
	} else {
		celp.ToFloat32(out[:frameLen], d.pcm[:])
	}
	if erased {
		d.outLevel.Limit(out[:frameLen])
	} else {
		d.outLevel.Observe(out[:frameLen])
	}
	return rep, nil
}

// subframeLag returns the pitch delay of subframe i in 1/3 sample units.
// Erased frames and first subframes failing the parity check reuse the
// previous integer lag.
func (d *Decoder) subframeLag(sf *types.SubframeParameters, i int, parityError bool) int {
	switch {
	case sf == nil:
		return 3 * d.prevLag
	case i == 0:
		if parityError {
			return 3 * d.prevLag
		}
		return celp.Decode8BitFirstDelay3(sf.PitchIndex)
	}
	lo := min(max(d.prevLag-5, celp.PitchDelayMin), celp.PitchDelayMax-9)
	if d.mode == Mode6k4 {
		return celp.Decode4BitSecondDelay3(sf.PitchIndex, lo)
	}
	return celp.Decode5Or6BitSecondDelay3(sf.PitchIndex, lo)
}

// fixedVector builds the algebraic codebook vector (Q13).
func (d *Decoder) fixedVector(fc []int16, code, signs int) {
	f := &formats[d.mode]
	tab1, tab2 := track13, track4
	if d.mode == Mode6k4 {
		tab1, tab2 = track1Gray, track2Gray
	}
	// the codes were bounded by the format, so every position is valid
	_ = celp.PulsesQ13(fc, tab1, tab2, code, signs, f.pulseCount, f.pulseFields)
}

// decodeSubframe reconstructs the excitation of subframe i in window,
// synthesizes and post-processes it into d.pcm. It reports whether the
// synthesis had to be repeated after an overflow and the voicing found
// by the postfilter.
func (d *Decoder) decodeSubframe(window []int16, i int, sf *types.SubframeParameters, lags [subframes]int, lp []int16) (bool, bool) {
	f := &formats[d.mode]
	erased := sf == nil
	delay3 := lags[i]
	lag := (delay3 + 1) / 3
	if lag > celp.PitchDelayMax {
		lag = celp.PitchDelayMax
	}

	code, signs := 0, 0
	if erased {
		r := d.plc.Rand()
		code = int(uint16(r.Next())) & (1<<f.pulseBits - 1)
		signs = int(uint16(r.Next()))
	} else {
		code, signs = sf.Pulses[0], sf.Signs
	}
	var fc [subframeLen]int16
	d.fixedVector(fc[:], code, signs)
	beta := min(max(d.pastGainPit[0], sharpMin), sharpMax)
	celp.PitchSharpenQ14(fc[:], lag, beta)

	copy(d.pastGainPit[1:], d.pastGainPit[:5])
	d.pastGainCode[1] = d.pastGainCode[0]

	var corr int32
	if erased {
		d.pastGainPit[0] = int16((29491 * int32(d.pastGainPit[0])) >> 15) // 0.9
		d.pastGainCode[0] = int16((2007 * int32(d.pastGainCode[0])) >> 11) // 0.98
	} else {
		g1, g2 := gain1st8k[:], gain2nd8k[:]
		if d.mode == Mode6k4 {
			g1, g2 = gain1st6k4[:], gain2nd6k4[:]
		}
		a, b := g1[sf.GainIndex[0]], g2[sf.GainIndex[1]]
		d.pastGainPit[0] = a[0] + b[0]
		corr = int32(a[1]) + int32(b[1])
		if d.mode == Mode6k4 {
			// the 6.4 kbit/s tables reach zero; keep the log defined
			corr = max(corr, 1024)
		}
		d.pastGainCode[0] = celp.DecodeGainCodeQ(corr, fc[:], meanEnergyQ10, d.quantEnergy[:], energyPred)
	}
	celp.UpdatePastGainQ(d.quantEnergy[:], corr, erased)

	base := excLookback + i*subframeLen
	celp.InterpolateQ15(window, base, base-delay3/3, interpFilter, 6, (delay3%3)<<1, interpLen-1, subframeLen)

	gp, gc := int32(d.pastGainPit[0]), int32(d.pastGainCode[0])
	if erased {
		// conceal a voiced frame from the pitch alone, an unvoiced one
		// from the codebook alone
		if d.wasPeriodic {
			gc = 0
		} else {
			gp = 0
		}
	}
	exc := window[base : base+subframeLen]
	celp.WeightedVectorSumQ(exc, exc, fc[:], gp, gc, 1<<13, 14)

	var synth [lpcOrder + subframeLen]int16
	copy(synth[:], d.synMem[:])
	retried := d.kernel.SynthesizeQ12(synth[:], lp[1:], exc, subframeLen, true, 0, 0x800)
	if retried {
		for j := range window {
			window[j] >>= 2
		}
	}

	if d.mode == Mode6k4 {
		d.onset = onsetDecision(d.onset, d.pastGainCode)
		d.voiceDecision = voiceDecision(d.onset, d.voiceDecision, d.pastGainPit)
		var dispersed [subframeLen]int16
		dispersedExcitation(dispersed[:], exc, fc[:], d.voiceDecision, d.pastGainCode[0])
		d.kernel.SynthesizeQ12(synth[:], lp[1:], dispersed[:], subframeLen, false, 0, 0x800)
	} else {
		d.kernel.SynthesizeQ12(synth[:], lp[1:], exc, subframeLen, false, 0, 0x800)
	}
	copy(d.synMem[:], synth[subframeLen:])

	speech := synth[lpcOrder:]
	before := absSum(speech)
	voiced := d.post.process(lp, min((lags[0]+1)/3, celp.PitchDelayMax), speech, d.cfg.Postfilter)
	if d.cfg.Postfilter {
		d.post.gain = adaptiveGainControl(before, absSum(speech), speech, d.post.gain)
	}

	if erased {
		d.prevLag = min(d.prevLag+1, celp.PitchDelayMax)
	} else {
		d.prevLag = lag
	}

	pcm := d.pcm[i*subframeLen : (i+1)*subframeLen]
	if d.cfg.Highpass {
		d.hpf.process(pcm, speech)
	} else {
		copy(pcm, speech)
	}
	return retried, voiced
}

func absSum(v []int16) int32 {
	var s int32
	for _, x := range v {
		s += fixed.Abs32(int32(x))
	}
	return s
}
