package amrnb

import (
	"fmt"
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/plc"
	"github.com/thesyncim/gocelp/internal/types"
)

// subframe is the validated excitation parameter set of one subframe.
type subframe struct {
	lag    celp.Lag // Frac in 1/6 steps
	gain   []int
	joint  int // Mode475 joint gain index
	pulses []int
	signs  int
}

// frame is a validated parameter set.
type frame struct {
	mode int
	lsf  []int
	sf   [subframes]subframe
}

var _ celp.FrameDecoder = (*Decoder)(nil)

// Decoder decodes one AMR-NB channel.
type Decoder struct {
	cfg      celp.Config
	kernel   celp.SynthesisKernel
	plc      *plc.State
	outLevel plc.EnergyCap
	exc      *celp.History[float64]

	lsf lsfState
	lsp [subframes][lpcOrder]float64
	lpc [subframes][lpcOrder]float64

	mode     int
	pitchLag int
	beta     float64 // pitch sharpening factor, bounded by sharpMax
	gains    gainHistory
	pred     *celp.EnergyPredictor
	smooth   smoother
	disp     celp.PhaseDispersion
	post     *celp.FormantPostfilter
	hp       celp.Biquad

	sparse   celp.SparseVector
	synth    [lpcOrder + subframeLen]float64 // filter memory, then output
	pitchVec [subframeLen]float64
	fixedVec [subframeLen]float64
	spare    [subframeLen]float64
	excBuf   [subframeLen]float64
	speech   [frameLen]float64
}

// NewDecoder returns a decoder in its initial state.
func NewDecoder(cfg celp.Config) *Decoder {
	k := cfg.KernelOrDefault()
	d := &Decoder{
		cfg:    cfg,
		kernel: k,
		exc:    celp.NewHistory[float64](Profile.HistoryLen(), subframeLen),
		pred:   celp.NewEnergyPredictor(energyPredFac[:], energyMean[Mode122], minEnergy),
		post:   celp.NewFormantPostfilter(lpcOrder, subframeLen, tiltGammaT, tiltResponse, agcAlpha, k),
	}
	d.Reset()
	return d
}

// Profile returns the AMR-NB profile.
func (d *Decoder) Profile() *celp.Profile { return Profile }

// Reset returns the decoder to its initial state.
func (d *Decoder) Reset() {
	d.plc = plc.NewState(plc.DefaultFadePerFrame, Profile.MuteAfter)
	d.outLevel.Reset()
	d.exc.Reset()
	d.lsf.reset()
	d.mode = Mode122
	d.pitchLag = 0
	d.beta = 0
	d.gains = gainHistory{}
	d.pred.Reset(minEnergy)
	d.smooth.reset()
	d.disp = newPhaseDispersion()
	d.post.Reset()
	d.hp = celp.Biquad{Zero: highpassZeros, Pole: highpassPoles, Gain: highpassGain}
	d.synth = [lpcOrder + subframeLen]float64{}
}

// pitchIndexBound returns the number of pitch codes of a subframe.
func pitchIndexBound(mode, sub int) int {
	absolute := sub == 0 || (sub == 2 && mode != Mode475 && mode != Mode515)
	switch {
	case mode == Mode122 && (sub == 0 || sub == 2):
		return 512
	case mode == Mode122:
		return 64
	case absolute:
		return 256
	case mode <= Mode67:
		return 16
	case mode == Mode795:
		return 64
	default:
		return 32
	}
}

// decodeLag decodes a pitch index into a lag with the fraction in 1/6
// steps.
func decodeLag(mode, index, prev, sub int) celp.Lag {
	if mode == Mode122 {
		return celp.DecodePitchLag6(index, prev, sub, pitchMin, celp.PitchDelayMax)
	}
	res := 6
	switch {
	case mode <= Mode67:
		res = 4
	case mode == Mode795:
		res = 5
	}
	l := celp.DecodePitchLag(index, prev, sub, mode != Mode475 && mode != Mode515, res)
	l.Frac <<= 1
	return l
}

// validate checks p and converts it into a frame without touching the
// decoder state.
func (d *Decoder) validate(p *types.FrameParameters) (*frame, error) {
	switch p.Type {
	case types.FrameSpeech:
	case types.FrameSID:
		return nil, fmt.Errorf("%w: AMR-NB comfort noise", celp.ErrUnsupportedMode)
	default:
		return nil, fmt.Errorf("%w: frame type %d", celp.ErrUnsupportedMode, p.Type)
	}
	if err := celp.CheckIndex("mode", p.Mode, modeCount); err != nil {
		return nil, err
	}
	f := &frame{mode: p.Mode}

	sizes := lsfSizes(f.mode)
	if err := celp.CheckShape(p, len(sizes), 0, subframes); err != nil {
		return nil, err
	}
	for i, n := range sizes {
		if err := celp.CheckIndex("LSF", p.LSP[i], n); err != nil {
			return nil, err
		}
	}
	f.lsf = p.LSP[:len(sizes)]

	pitchBound, fixedBound := gainIndexBound(f.mode)
	gains := 1
	switch {
	case f.mode == Mode475:
		gains = 0
	case fixedBound > 0:
		gains = 2
	}
	if err := celp.CheckGains(p, subframes, gains, 1); err != nil {
		return nil, err
	}

	prev := d.pitchLag
	for i := range f.sf {
		in := &p.Subframes[i]
		sf := &f.sf[i]

		if err := celp.CheckIndex("pitch", in.PitchIndex, pitchIndexBound(f.mode, i)); err != nil {
			return nil, err
		}
		sf.lag = decodeLag(f.mode, in.PitchIndex, prev, i)
		if err := celp.ValidateLag(sf.lag.Int, Profile.PitchMin, Profile.PitchMax); err != nil {
			return nil, fmt.Errorf("subframe %d: %w", i, err)
		}
		prev = sf.lag.Int

		switch {
		case f.mode == Mode475:
			j := &p.Subframes[i&2]
			if len(j.GainIndex) < 1 {
				return nil, fmt.Errorf("%w: subframe %d: missing joint gain index", celp.ErrInvalidParameter, i&2)
			}
			if err := celp.CheckIndex("gain", j.GainIndex[0], pitchBound); err != nil {
				return nil, err
			}
			sf.joint = j.GainIndex[0]
		default:
			if err := celp.CheckIndex("pitch gain", in.GainIndex[0], pitchBound); err != nil {
				return nil, err
			}
			if fixedBound > 0 {
				if err := celp.CheckIndex("fixed gain", in.GainIndex[1], fixedBound); err != nil {
					return nil, err
				}
			}
			sf.gain = in.GainIndex
		}

		if err := checkFixed(f.mode, in.Pulses, in.Signs); err != nil {
			return nil, fmt.Errorf("subframe %d: %w", i, err)
		}
		sf.pulses = in.Pulses
		sf.signs = in.Signs
	}
	return f, nil
}

// concealFrame builds the excitation parameters of an erased frame: the
// last lag held and random pulses in the last mode's layout.
func (d *Decoder) concealFrame() *frame {
	f := &frame{mode: d.mode}
	for i := range f.sf {
		f.sf[i].lag = celp.Lag{Int: d.pitchLag}
		f.sf[i].pulses, f.sf[i].signs = randomFixed(d.mode, d.plc.Rand())
	}
	return f
}

// DecodeFrame decodes one 160 sample frame into out.
func (d *Decoder) DecodeFrame(p *types.FrameParameters, out []float32) (celp.Report, error) {
	if len(out) < frameLen {
		return celp.Report{}, fmt.Errorf("%w: output holds %d samples, want %d", celp.ErrInvalidParameter, len(out), frameLen)
	}

	bad := celp.Erased(p) || p.Type == types.FrameUntransmitted
	var f *frame
	if !bad {
		var err error
		if f, err = d.validate(p); err != nil {
			return celp.Report{}, err
		}
	}

	rep := celp.Report{Concealed: bad}
	if bad {
		if d.pitchLag == 0 {
			d.pitchLag = celp.PitchDelayMin
		}
		d.plc.RecordLoss()
		f = d.concealFrame()
		d.lsf.conceal(d.mode, &d.lsp)
	} else {
		d.plc.Reset()
		d.mode = f.mode
		if f.mode == Mode122 {
			d.lsf.decode5(f.lsf, &d.lsp)
		} else {
			d.lsf.decode3(f.mode, f.lsf, &d.lsp)
		}
	}
	rep.Mode = d.mode
	d.pred.Mean = energyMean[d.mode]

	for i := range d.lsp {
		celp.LSP2LPC(d.lsp[i][:], d.lpc[i][:])
	}
	for i := range f.sf {
		rep.OverflowRetries += d.decodeSubframe(f, i, bad)
	}
	d.lsf.prevLSP = d.lsp[3]

	if d.cfg.Highpass {
		d.hp.Process(d.speech[:], d.speech[:])
	}
	d.lsf.updateAverage()

	if bad && d.plc.IsExhausted() {
		rep.Muted = true
		clear(out[:frameLen])
	} else {
		celp.ScaleToFloat32(out[:frameLen], d.speech[:], sampleScale)
	}
	if bad {
		d.outLevel.Limit(out[:frameLen])
	} else {
		d.outLevel.Observe(out[:frameLen])
	}
	return rep, nil
}

// decodeSubframe runs the excitation, synthesis and postfilter of one
// subframe and returns the number of overflow retries.
func (d *Decoder) decodeSubframe(f *frame, sub int, bad bool) int {
	sf := &f.sf[sub]
	mode := f.mode
	w := d.exc.Window(subframeLen)
	pos := d.exc.Lookback()

	// adaptive codebook
	d.pitchLag = sf.lag.Int
	lagInt, frac := sf.lag.Int, sf.lag.Frac
	if frac > 0 {
		lagInt++
	} else {
		frac += interpPrec
	}
	celp.Interpolate(w, pos, pos+1-lagInt, sinc60, interpPrec, frac, interpTaps, subframeLen)
	copy(d.pitchVec[:], w[pos:pos+subframeLen])

	// fixed codebook and gains; the pitch gain feeds sharpening before
	// the fixed gain is predicted
	decodeFixed(&d.sparse, mode, sub, sf.pulses, sf.signs)
	var factor float64
	if bad {
		d.gains.concealGains(d.plc.LostCount())
	} else {
		d.gains.pitch[4], factor = decodeGains(mode, sub, sf.gain, sf.joint)
	}

	if mode == Mode122 {
		d.beta = min(d.gains.pitch[4], 1)
	}
	d.sparse.PitchLag = d.pitchLag
	d.sparse.PitchFac = d.beta
	// Mode475 quantizes the gains of two subframes jointly
	if mode != Mode475 || sub&1 != 0 {
		d.beta = min(max(d.gains.pitch[4], 0), sharpMax)
	}

	clear(d.fixedVec[:])
	d.sparse.Materialize(d.fixedVec[:], 1)
	if bad {
		d.pred.Erase(erasureEnergyOffset, minEnergy)
	} else {
		d.gains.fixed[4] = d.pred.FixedGain(factor, celp.Dot(d.fixedVec[:], d.fixedVec[:])/subframeLen)
	}

	// excitation feedback uses the unsmoothed gains, stored without
	// fractional bits
	cur := w[pos : pos+subframeLen]
	for i := range cur {
		cur[i] *= d.gains.pitch[4]
	}
	d.sparse.Materialize(cur, d.gains.fixed[4])
	for i := range cur {
		cur[i] = math.Trunc(cur[i])
	}

	g := d.smooth.smooth(&d.gains, d.lsf.lsfQ[sub][:], d.lsf.lsfAvg[:], mode)
	fv := d.antiSparseness(mode, g)

	lpc := d.lpc[sub][:]
	retries := 0
	if d.synthesize(mode, lpc, g, fv, false) {
		d.synthesize(mode, lpc, g, fv, true)
		retries++
	}

	speech := d.speech[sub*subframeLen : (sub+1)*subframeLen]
	if d.cfg.Postfilter {
		gn, gd := gammaN, gammaD
		if mode == Mode122 || mode == Mode102 {
			gn, gd = gammaN122, gammaD122
		}
		d.post.Process(speech, d.synth[lpcOrder:], lpc, gn, gd)
	} else {
		copy(speech, d.synth[lpcOrder:])
	}

	d.exc.Advance(subframeLen)
	d.gains.shift()
	copy(d.synth[:lpcOrder], d.synth[subframeLen:])
	return retries
}

// antiSparseness returns the fixed vector synthesis should use, smoothed
// by one of the phase dispersion filters in the lower modes.
func (d *Decoder) antiSparseness(mode int, fixedGain float64) []float64 {
	nr := d.disp.Decide(d.gains.newestFirst(), fixedGain)
	if mode == Mode74 || mode >= Mode102 || nr >= 2 {
		return d.fixedVec[:]
	}
	filters := &irFilters
	if mode == Mode795 {
		filters = &irFilters795
	}
	celp.ApplyIRFilter(d.spare[:], &d.sparse, filters[nr][:])
	return d.spare[:]
}

// synthesize builds the excitation and runs the LP synthesis filter over
// one subframe. It reports whether any output sample exceeds the 16-bit
// range. On a retry the pitch vector is scaled down by 4 and the pitch
// emphasis is skipped.
func (d *Decoder) synthesize(mode int, lpc []float64, fixedGain float64, fv []float64, overflow bool) bool {
	if overflow {
		for i := range d.pitchVec {
			d.pitchVec[i] *= 0.25
		}
	}
	pg := d.gains.pitch[4]
	exc := d.excBuf[:]
	celp.WeightedVectorSum(exc, d.pitchVec[:], fv, pg, fixedGain)

	if pg > 0.5 && !overflow {
		energy := celp.Dot(exc, exc)
		var fac float64
		if mode == Mode122 {
			fac = pg * 0.25 * min(pg, 1)
		} else {
			fac = pg * 0.5 * min(pg, sharpMax)
		}
		for i := range exc {
			exc[i] += fac * d.pitchVec[i]
		}
		celp.ScaleToEnergy(exc, exc, energy)
	}

	d.kernel.Synthesize(d.synth[:], lpc, exc, subframeLen)
	return celp.ExceedsBound(d.synth[lpcOrder:], sampleBound)
}
