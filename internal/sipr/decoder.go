package sipr

import (
	"fmt"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/plc"
	"github.com/thesyncim/gocelp/internal/types"
)

var _ celp.FrameDecoder = (*Decoder)(nil)

const (
	maxFrame    = maxSubs * subframeLen
	energyInit  = -14.0
	lowGainEdge = 0.8
)

// Decoder decodes one SIPR channel. The mode may change from frame to
// frame; a change between the wideband and a narrowband mode restarts the
// decoder since the two run at different sample rates.
type Decoder struct {
	cfg      celp.Config
	kernel   celp.SynthesisKernel
	plc      *plc.State
	outLevel plc.EnergyCap
	exc      *celp.History[float64]

	mode     int
	narrow   narrowLSF
	wide     wideLSF
	energy   *celp.EnergyPredictor
	energy16 *celp.EnergyPredictor

	prevLag       int
	pastPitchGain float64
	lastFactor    float64
	gainMem       float64

	synthMem [lpcOrder16]float64
	refMem   [lpcOrder]float64 // synthesis of the unfiltered excitation
	agc      float64
	post     narrowPostfilter
	post16   widePostfilter
	hp       celp.Biquad

	speech [maxFrame]float64
	ref    [maxFrame]float64
	pcm    [maxFrame]float64
}

// NewDecoder returns a decoder that starts in Mode16k.
func NewDecoder(cfg celp.Config) *Decoder {
	k := cfg.KernelOrDefault()
	d := &Decoder{
		cfg:      cfg,
		kernel:   k,
		exc:      celp.NewHistory[float64](profiles[Mode16k].HistoryLen(), maxFrame),
		energy:   celp.NewEnergyPredictor(gainPred[:], meanEnergy, energyInit),
		energy16: celp.NewEnergyPredictor(gainPred16[:], meanEnergy16, energyInit),
		post:     narrowPostfilter{kernel: k},
		post16:   widePostfilter{kernel: k},
		hp:       highpass,
	}
	d.Reset()
	return d
}

// Profile returns the profile of the current mode.
func (d *Decoder) Profile() *celp.Profile { return profiles[d.mode] }

// Reset returns the decoder to its initial state, keeping the mode.
func (d *Decoder) Reset() {
	d.plc = plc.NewState(plc.DefaultFadePerFrame, 0)
	d.outLevel.Reset()
	d.exc.Reset()
	d.narrow.reset()
	d.wide.reset()
	d.energy.Reset(energyInit)
	d.energy16.Reset(energyInit)
	d.prevLag = celp.PitchDelayMin
	if d.mode == Mode16k {
		d.prevLag = pitchMin16
	}
	d.pastPitchGain = 0
	d.lastFactor = 1
	d.gainMem = 0
	d.synthMem = [lpcOrder16]float64{}
	d.refMem = [lpcOrder]float64{}
	d.agc = 1
	d.post.reset()
	d.post16.reset()
	d.hp.Reset()
}

// validate checks the shape and index ranges of p.
func validate(p *types.FrameParameters) error {
	if err := celp.CheckIndex("mode", p.Mode, modeCount); err != nil {
		return err
	}
	m := &modes[p.Mode]
	lsp := m.lsfBits
	if m.predictorBits > 0 {
		lsp = append([]int{m.predictorBits}, lsp...)
	}
	gains := 1
	if m.pitchGainBits > 0 {
		gains = 2
	}
	if err := celp.CheckShape(p, len(lsp), 0, m.subframes); err != nil {
		return err
	}
	if err := celp.CheckGains(p, m.subframes, gains, len(m.pulseBits)); err != nil {
		return err
	}
	for i, bits := range lsp {
		if err := celp.CheckIndex("LSF", p.LSP[i], 1<<bits); err != nil {
			return err
		}
	}
	for i := 0; i < m.subframes; i++ {
		sf := &p.Subframes[i]
		if err := celp.CheckIndex("pitch", sf.PitchIndex, 1<<m.pitchBits[i]); err != nil {
			return fmt.Errorf("subframe %d: %w", i, err)
		}
		gainBits := []int{m.gainBits}
		if gains == 2 {
			gainBits = []int{m.pitchGainBits, m.gainBits}
		}
		for j, bits := range gainBits {
			if err := celp.CheckIndex("gain", sf.GainIndex[j], 1<<bits); err != nil {
				return fmt.Errorf("subframe %d: %w", i, err)
			}
		}
		for j, bits := range m.pulseBits {
			if err := celp.CheckIndex("pulse", sf.Pulses[j], 1<<bits); err != nil {
				return fmt.Errorf("subframe %d: %w", i, err)
			}
		}
	}
	return nil
}

// DecodeFrame decodes one frame of the frame's mode into out, which must
// hold that mode's frame size. Erased frames continue the current mode.
func (d *Decoder) DecodeFrame(p *types.FrameParameters, out []float32) (celp.Report, error) {
	erased := celp.Erased(p) || p.Type == types.FrameUntransmitted
	mode := d.mode
	if !erased {
		if err := validate(p); err != nil {
			return celp.Report{}, err
		}
		mode = p.Mode
	}
	n := profiles[mode].FrameSize
	if len(out) < n {
		return celp.Report{}, fmt.Errorf("%w: output holds %d samples, want %d", celp.ErrInvalidParameter, len(out), n)
	}
	if (mode == Mode16k) != (d.mode == Mode16k) {
		d.mode = mode
		d.Reset()
	}
	d.mode = mode

	rep := celp.Report{Mode: mode}
	if erased {
		d.plc.RecordLoss()
		rep.Concealed = true
	} else {
		d.plc.Reset()
	}
	if mode == Mode16k {
		d.decodeWide(p, erased)
	} else {
		d.decodeNarrow(p, erased)
	}

	if erased && d.plc.IsExhausted() {
		rep.Muted = true
		clear(out[:n])
	} else {
		celp.ScaleToFloat32(out[:n], d.pcm[:n], 1)
	}
	if erased {
		d.outLevel.Limit(out[:n])
	} else {
		d.outLevel.Observe(out[:n])
	}
	return rep, nil
}

// concealGains returns the pitch gain and fixed gain factor of an erased
// subframe.
func (d *Decoder) concealGains() (float64, float64) {
	return min(d.pastPitchGain, 0.9) * 0.9, d.lastFactor * d.plc.FadeFactor()
}

// randomPulses draws pulse codes of the given widths.
func (d *Decoder) randomPulses(bits []int) []int {
	r := d.plc.Rand()
	pulses := make([]int, len(bits))
	for i, b := range bits {
		pulses[i] = r.Intn(1 << b)
	}
	return pulses
}

func (d *Decoder) synthesize(out, mem, lpc, exc []float64) {
	order := len(lpc)
	n := len(exc)
	var buf [lpcOrder16 + subframeLen16]float64
	copy(buf[:], mem[:order])
	d.kernel.Synthesize(buf[:order+n], lpc, exc, n)
	copy(mem[:order], buf[n:n+order])
	copy(out, buf[order:order+n])
}

// decodeNarrow decodes one 8.5, 6.5 or 5.0 kbit/s frame into d.pcm.
func (d *Decoder) decodeNarrow(p *types.FrameParameters, erased bool) {
	m := &modes[d.mode]
	frameLen := m.subframes * subframeLen
	var isp [lpcOrder]float64
	if erased {
		isp = d.narrow.conceal()
	} else {
		isp = d.narrow.decode(p.LSP)
	}
	var lpc [maxSubs][lpcOrder]float64
	d.narrow.interpolate(lpc[:m.subframes], isp)

	postfilter := d.cfg.Postfilter && d.mode == Mode5k0
	window := d.exc.Window(frameLen)
	base := d.exc.Lookback()
	var s celp.SparseVector
	var ir, fv, shaped [subframeLen]float64
	t0First := 0
	for i := 0; i < m.subframes; i++ {
		pos := base + i*subframeLen
		lag := celp.Lag{Int: d.prevLag}
		var pulses []int
		var pitchGain, factor float64
		if erased {
			pulses = d.randomPulses(m.pulseBits)
			pitchGain, factor = d.concealGains()
		} else {
			sf := &p.Subframes[i]
			lag = celp.DecodePitchLag(sf.PitchIndex, t0First, i, m.thirdAsAbsolute, 6)
			pulses = sf.Pulses
			g := gainCodebook[sf.GainIndex[0]]
			pitchGain, factor = g[0], g[1]
			d.lastFactor = factor
		}
		if i == 0 || (i == 2 && m.thirdAsAbsolute) {
			t0First = lag.Int
		}
		delay3 := 3*lag.Int + lag.Frac
		celp.Interpolate(window, pos, pos-delay3/3, interpFilter, interpRes, (delay3%3)<<1, interpTaps, subframeLen)

		decodeNarrow(&s, d.mode, pulses, d.pastPitchGain < lowGainEdge)
		evalIR(d.kernel, ir[:], lpc[i][:], lag.Int, m.sharp)
		convolveSparse(fv[:], &s, ir[:])
		avg := (0.01 + celp.Dot(fv[:], fv[:])) / subframeLen
		gainCode := d.energy.FixedGain(factor, avg)
		d.pastPitchGain = pitchGain

		exc := window[pos : pos+subframeLen]
		celp.WeightedVectorSum(exc, exc, fv[:], pitchGain, gainCode)

		// lower the fixed contribution of the synthesized signal while
		// the pitch gain is weak
		pg := min(0.5*pitchGain*pitchGain, 0.4)
		d.gainMem = min(0.7*d.gainMem+0.3*pg, pg)
		gc := gainCode * d.gainMem
		for j := range shaped {
			shaped[j] = exc[j] - gc*fv[j]
		}

		sub := d.speech[i*subframeLen : (i+1)*subframeLen]
		if postfilter {
			d.post.process(shaped[:], lpc[i][:])
			d.synthesize(d.ref[i*subframeLen:], d.refMem[:], lpc[i][:], exc)
		}
		d.synthesize(sub, d.synthMem[:], lpc[i][:], shaped[:])
		d.prevLag = lag.Int
	}
	d.exc.Advance(frameLen)

	if postfilter {
		for i := 0; i < m.subframes; i++ {
			sub := d.speech[i*subframeLen : (i+1)*subframeLen]
			ref := d.ref[i*subframeLen : (i+1)*subframeLen]
			celp.AdaptiveGainControl(sub, sub, celp.Dot(ref, ref), agcAlpha, &d.agc)
		}
	}
	if d.cfg.Highpass {
		d.hp.Process(d.pcm[:frameLen], d.speech[:frameLen])
	} else {
		copy(d.pcm[:], d.speech[:frameLen])
	}
}

// delay3First decodes the absolute wideband lag in 1/3 sample units.
func delay3First(index int) int {
	if index < 390 {
		return index + 88
	}
	return 3*index - 690
}

// delay3Second decodes the differential wideband lag. The top two codes
// repeat the previous integer lag.
func delay3Second(index, prevLag int) int {
	if index < 62 {
		lo := min(max(prevLag-10, pitchMin16), pitchMax16-19)
		return 3*lo + index - 2
	}
	return 3 * prevLag
}

// decodeWide decodes one 16 kbit/s frame into d.pcm.
func (d *Decoder) decodeWide(p *types.FrameParameters, erased bool) {
	m := &modes[Mode16k]
	const frameLen = subframes16 * subframeLen16
	if erased {
		d.wide.conceal()
	} else {
		d.wide.decode(p.LSP[0], p.LSP[1:])
	}
	var lpc [subframes16][lpcOrder16]float64
	d.wide.filters(&lpc)

	window := d.exc.Window(frameLen)
	base := d.exc.Lookback()
	var s celp.SparseVector
	var fv [subframeLen16]float64
	for i := 0; i < subframes16; i++ {
		pos := base + i*subframeLen16
		delay3 := 3 * d.prevLag
		var pulses []int
		var pitchGain, factor float64
		if erased {
			pulses = d.randomPulses(m.pulseBits)
			pitchGain, factor = d.concealGains()
		} else {
			sf := &p.Subframes[i]
			if i == 0 {
				delay3 = delay3First(sf.PitchIndex)
			} else {
				delay3 = delay3Second(sf.PitchIndex, d.prevLag)
			}
			pulses = sf.Pulses
			pitchGain = pitchGains16[sf.GainIndex[0]]
			factor = fixedGains16[sf.GainIndex[1]]
			d.lastFactor = factor
		}
		lag := (delay3 + 1) / 3
		celp.Interpolate(window, pos, pos-delay3/3, interpFilter, interpRes, (delay3%3)<<1, interpTaps, subframeLen16)

		// in-range codes cannot fail
		_ = celp.Decode10Pulses35Bits(&s, pulses, wideTrack[:], 5, 4)
		if lag < subframeLen16 {
			s.PitchLag = lag
			s.PitchFac = min(d.pastPitchGain, profiles[Mode16k].SharpMax)
		}
		clear(fv[:])
		s.Materialize(fv[:], 1)
		gainCode := d.energy16.FixedGain(factor, 0.01+celp.Dot(fv[:], fv[:]))
		d.pastPitchGain = pitchGain

		exc := window[pos : pos+subframeLen16]
		celp.WeightedVectorSum(exc, exc, fv[:], pitchGain, gainCode)
		d.synthesize(d.speech[i*subframeLen16:], d.synthMem[:], lpc[i][:], exc)
		d.prevLag = lag
	}
	d.exc.Advance(frameLen)

	if d.cfg.Postfilter {
		d.post16.process(d.pcm[:frameLen], d.speech[:frameLen], lpc[1][:])
	} else {
		copy(d.pcm[:], d.speech[:frameLen])
	}
}
