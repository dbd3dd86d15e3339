package g7231

import (
	"fmt"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/fixed"
	"github.com/thesyncim/gocelp/internal/plc"
	"github.com/thesyncim/gocelp/internal/types"
)

// frame is a validated parameter set.
type frame struct {
	typ      types.FrameType
	rate     int
	lspIndex [lspBands]int
	pitchLag [2]int
	sf       [subframes]subframe
	sidAmp   int
}

var _ celp.FrameDecoder = (*Decoder)(nil)

// Decoder decodes one G.723.1 channel.
type Decoder struct {
	cfg      celp.Config
	kernel   celp.SynthesisKernel
	plc      *plc.State
	outLevel plc.EnergyCap
	exc      *celp.History[int16]

	prevLSP  [lpcOrder]int16
	sidLSP   [lpcOrder]int16
	synthMem [lpcOrder]int16
	formant  formantState

	rate     int
	pitchLag [2]int
	sf       [subframes]subframe
	pastType types.FrameType

	interpIndex int
	interpGain  int32
	sidGain     int32
	curGain     int32
	cngRand     plc.Rand

	scaled [frameLen + pitchMax]int16
	audio  [lpcOrder + frameLen]int16
	pcm    [frameLen]int16
}

// NewDecoder returns a decoder in its initial state.
func NewDecoder(cfg celp.Config) *Decoder {
	d := &Decoder{
		cfg:    cfg,
		kernel: cfg.KernelOrDefault(),
		exc:    celp.NewHistory[int16](pitchMax, frameLen),
	}
	d.Reset()
	return d
}

// Profile returns the G.723.1 profile.
func (d *Decoder) Profile() *celp.Profile { return Profile }

// Reset returns the decoder to its initial state.
func (d *Decoder) Reset() {
	d.plc = plc.NewState(plc.DefaultFadePerFrame, Profile.MuteAfter)
	d.outLevel.Reset()
	d.exc.Reset()
	d.prevLSP = dcLSP
	d.sidLSP = dcLSP
	d.synthMem = [lpcOrder]int16{}
	d.formant.reset()
	d.rate = Rate6300
	d.pitchLag = [2]int{}
	d.sf = [subframes]subframe{}
	d.pastType = types.FrameSID
	d.interpIndex = 0
	d.interpGain = 0
	d.sidGain = 0
	d.curGain = 0
	d.cngRand.Seed(cngSeed)
}

// validate checks p and converts it into a frame without touching the
// decoder state.
func validate(p *types.FrameParameters) (*frame, error) {
	f := &frame{typ: p.Type}
	switch p.Type {
	case types.FrameUntransmitted:
		return f, nil
	case types.FrameSID, types.FrameSpeech:
	default:
		return nil, fmt.Errorf("%w: frame type %d", celp.ErrUnsupportedMode, p.Type)
	}

	if len(p.LSP) < lspBands {
		return nil, fmt.Errorf("%w: %d LSP indices, want %d", celp.ErrInvalidParameter, len(p.LSP), lspBands)
	}
	for i := range f.lspIndex {
		if err := celp.CheckIndex("LSP", p.LSP[i], 256); err != nil {
			return nil, err
		}
		f.lspIndex[i] = p.LSP[i]
	}

	if p.Type == types.FrameSID {
		if len(p.Energy) < 1 {
			return nil, fmt.Errorf("%w: SID frame without gain", celp.ErrInvalidParameter)
		}
		if err := celp.CheckIndex("SID gain", p.Energy[0], 64); err != nil {
			return nil, err
		}
		f.sidAmp = p.Energy[0]
		return f, nil
	}

	if err := celp.CheckIndex("rate", p.Mode, 2); err != nil {
		return nil, err
	}
	f.rate = p.Mode
	if err := celp.CheckShape(p, lspBands, 2, subframes); err != nil {
		return nil, err
	}
	if err := celp.CheckGains(p, subframes, 1, 1); err != nil {
		return nil, err
	}
	for i := range f.pitchLag {
		if err := celp.CheckIndex("pitch", p.Pitch[i], maxLagCode+1); err != nil {
			return nil, err
		}
		f.pitchLag[i] = p.Pitch[i] + pitchMin
	}

	for i := range f.sf {
		in := &p.Subframes[i]
		sf := &f.sf[i]
		lag := f.pitchLag[i>>1]

		if err := celp.CheckIndex("lag offset", in.PitchIndex, 4); err != nil {
			return nil, err
		}
		gains := 170
		if usesGain85(f.rate, lag) {
			gains = 85
			sf.dirac = in.Dirac
		}
		if err := celp.CheckIndex("adaptive gain", in.GainIndex[0], gains); err != nil {
			return nil, err
		}
		if err := celp.CheckIndex("amplitude", in.Amplitude, gainLevels); err != nil {
			return nil, err
		}
		if err := celp.CheckIndex("grid", in.Grid, gridSize); err != nil {
			return nil, err
		}
		sf.adCBLag = in.PitchIndex
		sf.adCBGain = in.GainIndex[0]
		sf.ampIndex = in.Amplitude
		sf.grid = in.Grid
		sf.pulsePos = in.Pulses[0]
		sf.pulseSign = in.Signs

		if f.rate == Rate6300 {
			if sf.pulsePos < 0 {
				return nil, fmt.Errorf("%w: subframe %d: negative pulse code", celp.ErrInvalidParameter, i)
			}
			if err := celp.CheckIndex("pulse signs", sf.pulseSign, 1<<pulses[i]); err != nil {
				return nil, err
			}
			continue
		}
		if err := celp.CheckIndex("pulse code", sf.pulsePos, 1<<12); err != nil {
			return nil, err
		}
		if err := celp.CheckIndex("pulse signs", sf.pulseSign, 1<<4); err != nil {
			return nil, err
		}
		if !acbPulsesValid(sf.pulsePos, sf.grid) {
			return nil, fmt.Errorf("%w: subframe %d: pulse outside subframe", celp.ErrInvalidParameter, i)
		}
	}
	return f, nil
}

// DecodeFrame decodes one 240 sample frame into out.
func (d *Decoder) DecodeFrame(p *types.FrameParameters, out []float32) (celp.Report, error) {
	if len(out) < frameLen {
		return celp.Report{}, fmt.Errorf("%w: output holds %d samples, want %d", celp.ErrInvalidParameter, len(out), frameLen)
	}

	bad := celp.Erased(p)
	typ := types.FrameSpeech
	var f *frame
	if !bad {
		var err error
		if f, err = validate(p); err != nil {
			return celp.Report{}, err
		}
		typ = f.typ
	} else if d.pastType != types.FrameSpeech {
		typ = types.FrameUntransmitted
	}

	rep := celp.Report{Concealed: bad}
	var lpc [subframes][lpcOrder]int16
	muted := false

	if typ == types.FrameSpeech {
		var index [lspBands]int
		if bad {
			d.plc.RecordLoss()
		} else {
			d.plc.Reset()
			d.rate = f.rate
			d.pitchLag = f.pitchLag
			d.sf = f.sf
			index = f.lspIndex
		}

		var cur [lpcOrder]int16
		inverseQuant(&cur, &d.prevLSP, index, bad)
		lspInterpolate(&lpc, &cur, &d.prevLSP)
		d.prevLSP = cur

		window := d.exc.Window(frameLen)
		if bad {
			d.interpGain = (d.interpGain*3 + 2) >> 2
			muted = d.plc.IsMuted()
		}
		switch {
		case !bad:
			d.decodeActive(window)
			d.exc.Advance(frameLen)
		case muted:
			d.mute()
		default:
			d.conceal(window)
			d.exc.Advance(frameLen)
		}
		d.cngRand.Seed(cngSeed)
	} else {
		if typ == types.FrameSID {
			d.sidGain = sidGainToLSPIndex(f.sidAmp)
			inverseQuant(&d.sidLSP, &d.prevLSP, f.lspIndex, false)
		} else if d.pastType == types.FrameSpeech {
			d.sidGain = estimateSIDGain(d.sidGain, d.curGain)
		}
		if d.pastType == types.FrameSpeech {
			d.curGain = d.sidGain
		} else {
			d.curGain = (d.curGain*7 + d.sidGain) >> 3
		}

		window := d.exc.Window(frameLen)
		d.generateNoise(window)
		copy(d.audio[lpcOrder:], window[pitchMax:])
		d.exc.Advance(frameLen)

		lspInterpolate(&lpc, &d.sidLSP, &d.prevLSP)
		d.prevLSP = d.sidLSP
		rep.ComfortNoise = true
	}
	d.pastType = typ
	rep.Mode = d.rate

	if muted {
		rep.Muted = true
		clear(out[:frameLen])
		return rep, nil
	}

	copy(d.audio[:lpcOrder], d.synthMem[:])
	for j := 0; j < subframes; j++ {
		seg := d.audio[j*subframeLen:]
		d.kernel.SynthesizeQ12(seg, lpc[j][:], seg[lpcOrder:], subframeLen, false, 1, 1<<12)
	}
	copy(d.synthMem[:], d.audio[frameLen:])

	if d.cfg.Postfilter {
		d.formant.process(&lpc, d.audio[:], d.pcm[:])
	} else {
		for i := range d.pcm {
			d.pcm[i] = fixed.Sat16(int32(d.audio[lpcOrder+i]) << 1)
		}
	}
	celp.ToFloat32(out[:frameLen], d.pcm[:])
	if bad && typ == types.FrameSpeech {
		d.outLevel.Limit(out[:frameLen])
	} else {
		d.outLevel.Observe(out[:frameLen])
	}
	return rep, nil
}

// decodeActive builds the excitation of a good frame in window and leaves
// the synthesis input in d.audio.
func (d *Decoder) decodeActive(window []int16) {
	exc := window[pitchMax : pitchMax+frameLen]
	d.interpGain = int32(fixedCBGain[(d.sf[2].ampIndex+d.sf[3].ampIndex)>>1])

	var acb [subframeLen]int16
	for i := 0; i < subframes; i++ {
		v := exc[i*subframeLen : (i+1)*subframeLen]
		lag := d.pitchLag[i>>1]
		genFCB(v, &d.sf[i], d.rate, lag, i)
		genACB(acb[:], window[i*subframeLen:], lag, &d.sf[i], d.rate)
		for j := range v {
			fc := fixed.Sat16(int32(v[j]) * 2)
			v[j] = fixed.Sat16(int32(fc) + int32(acb[j]))
		}
	}

	d.interpIndex, d.sidGain, d.curGain = compInterpIndex(d.scaled[:], window, d.pitchLag[1])

	if !d.cfg.Postfilter {
		copy(d.audio[lpcOrder:], exc)
		return
	}
	var ppf [subframes]ppfParam
	for j := range ppf {
		ppf[j] = compPPFCoeff(d.scaled[:], pitchMax+j*subframeLen, d.pitchLag[j>>1], d.rate)
	}
	for j, pp := range ppf {
		s := pitchMax + j*subframeLen
		celp.WeightedVectorSumQ(d.audio[lpcOrder+j*subframeLen:lpcOrder+(j+1)*subframeLen],
			window[s:], window[s+pp.index:], pp.scGain, pp.optGain, 1<<14, 15)
	}
}

// conceal regenerates an erased frame from the last good excitation:
// a repeated pitch period when the frame was voiced, noise otherwise.
func (d *Decoder) conceal(window []int16) {
	cur := d.audio[lpcOrder:]
	if d.interpIndex != 0 {
		plc.RepeatPeriodQ(cur, window[:pitchMax], d.interpIndex)
	} else {
		plc.NoiseQ(cur, d.plc.Rand(), d.interpGain)
	}
	copy(window[pitchMax:], cur)
}

// mute silences the channel: every excitation and filter memory is
// cleared so the output stays at zero.
func (d *Decoder) mute() {
	d.exc.Reset()
	clear(d.audio[:])
	d.synthMem = [lpcOrder]int16{}
	d.formant.firMem = [lpcOrder]int16{}
	d.formant.iirMem = [lpcOrder]int32{}
}
