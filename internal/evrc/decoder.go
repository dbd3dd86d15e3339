package evrc

import (
	"fmt"
	"math"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/plc"
	"github.com/thesyncim/gocelp/internal/types"
)

var _ celp.FrameDecoder = (*Decoder)(nil)

const excLookback = maxDelay + interpLen + 1 + lpcOrder

// Decoder decodes one EVRC channel.
type Decoder struct {
	cfg      celp.Config
	kernel   celp.SynthesisKernel
	plc      *plc.State
	outLevel plc.EnergyCap
	exc      *celp.History[float64]
	post     *postfilter

	rate         int // rate of the frame being decoded
	lastGoodRate int
	lspf         [lpcOrder]float64
	prevLSPF     [lpcOrder]float64
	delay        float64
	prevDelay    float64
	avgACBGain   float64
	avgFCBGain   float64
	fadeScale    float64
	prevEnergy   int
	prevErased   bool
	synthMem     [lpcOrder]float64

	speech [frameLen]float64
	post32 [frameLen]float64
}

// NewDecoder returns a decoder in its initial state.
func NewDecoder(cfg celp.Config) *Decoder {
	k := cfg.KernelOrDefault()
	d := &Decoder{
		cfg:    cfg,
		kernel: k,
		exc:    celp.NewHistory[float64](excLookback, frameLen),
		post:   newPostfilter(k),
	}
	d.Reset()
	return d
}

// Profile returns the EVRC profile.
func (d *Decoder) Profile() *celp.Profile { return Profile }

// Reset returns the decoder to its initial state.
func (d *Decoder) Reset() {
	d.plc = plc.NewState(plc.DefaultFadePerFrame, Profile.MuteAfter)
	d.outLevel.Reset()
	d.exc.Reset()
	d.post.reset()
	d.rate = RateFull
	d.lastGoodRate = RateFull
	for i := range d.prevLSPF {
		d.prevLSPF[i] = float64(i+1) * 0.048
	}
	d.lspf = d.prevLSPF
	d.delay = minDelay
	d.prevDelay = minDelay
	d.avgACBGain = 0
	d.avgFCBGain = 0
	d.fadeScale = 1
	d.prevEnergy = 0
	d.prevErased = false
	d.synthMem = [lpcOrder]float64{}
}

// validate checks the index ranges of p. It does not check LSP ordering,
// which decides between decoding and concealment.
func validate(p *types.FrameParameters) error {
	if err := celp.CheckIndex("rate", p.Mode, rateCount); err != nil {
		return err
	}
	rate := p.Mode
	splits := lspSplits[rate]
	if len(p.LSP) < len(splits) {
		return fmt.Errorf("%w: %d LSP indices, want %d", celp.ErrInvalidParameter, len(p.LSP), len(splits))
	}
	for i, sp := range splits {
		if err := celp.CheckIndex("LSP", p.LSP[i], sp.size); err != nil {
			return err
		}
	}
	if rate == RateEighth {
		if len(p.Energy) < 1 {
			return fmt.Errorf("%w: eighth rate frame without energy", celp.ErrInvalidParameter)
		}
		return celp.CheckIndex("energy", p.Energy[0], len(energyQuant))
	}

	pitch, pulses, fcbGains := 1, 1, len(fcbGainsHalf)
	if rate == RateFull {
		pitch, pulses, fcbGains = 2, 4, len(fcbGainsFull)
	}
	if err := celp.CheckShape(p, len(splits), pitch, subframes); err != nil {
		return err
	}
	if err := celp.CheckGains(p, subframes, 2, pulses); err != nil {
		return err
	}
	if err := celp.CheckIndex("delay", p.Pitch[0], maxDelay-minDelay+1); err != nil {
		return err
	}
	if rate == RateFull {
		if err := celp.CheckIndex("delta delay", p.Pitch[1], 32); err != nil {
			return err
		}
		if diff := p.Pitch[1]; diff != 0 {
			prev := p.Pitch[0] + minDelay - diff + 16
			if prev < minDelay || prev > maxDelay {
				return fmt.Errorf("%w: previous delay %d out of range", celp.ErrInvalidParameter, prev)
			}
		}
	}
	bounds := []int{1 << 10}
	if rate == RateFull {
		bounds = []int{1 << 8, 1 << 8, 1 << 8, 1 << 11}
	}
	for i := 0; i < subframes; i++ {
		sf := &p.Subframes[i]
		if err := celp.CheckIndex("adaptive gain", sf.GainIndex[0], len(acbGains)); err != nil {
			return err
		}
		if err := celp.CheckIndex("fixed gain", sf.GainIndex[1], fcbGains); err != nil {
			return err
		}
		for j, b := range bounds {
			if err := celp.CheckIndex("pulse code", sf.Pulses[j], b); err != nil {
				return err
			}
		}
		if err := checkPulses(rate, i, sf.Pulses); err != nil {
			return err
		}
	}
	return nil
}

// DecodeFrame decodes one 160 sample frame into out. Frames whose LSPs
// are not ordered are concealed like erasures.
func (d *Decoder) DecodeFrame(p *types.FrameParameters, out []float32) (celp.Report, error) {
	if len(out) < frameLen {
		return celp.Report{}, fmt.Errorf("%w: output holds %d samples, want %d", celp.ErrInvalidParameter, len(out), frameLen)
	}
	erased := celp.Erased(p) || p.Type == types.FrameUntransmitted
	if !erased {
		if err := validate(p); err != nil {
			return celp.Report{}, err
		}
		var lspf [lpcOrder]float64
		if decodeLSP(lspf[:], p.Mode, p.LSP) {
			d.lspf = lspf
		} else {
			erased = true
		}
	}

	var rep celp.Report
	if erased {
		d.plc.RecordLoss()
		d.conceal()
		rep.Concealed = true
	} else {
		d.plc.Reset()
		d.decode(p)
		d.lastGoodRate = d.rate
	}
	d.prevErased = erased
	d.prevLSPF = d.lspf
	rep.Mode = d.rate
	rep.ComfortNoise = d.rate == RateEighth

	if erased && d.plc.IsExhausted() {
		rep.Muted = true
		clear(out[:frameLen])
	} else {
		src := d.speech[:]
		if d.cfg.Postfilter {
			src = d.post32[:]
		}
		celp.ScaleToFloat32(out[:frameLen], src, sampleScale)
	}
	if erased {
		d.outLevel.Limit(out[:frameLen])
	} else {
		d.outLevel.Observe(out[:frameLen])
	}
	return rep, nil
}

// decode runs a validated good frame.
func (d *Decoder) decode(p *types.FrameParameters) {
	d.rate = p.Mode
	window := d.exc.Window(frameLen)
	if d.rate == RateEighth {
		d.prevEnergy = p.Energy[0]
		var amp [subframes]float64
		for i := range amp {
			amp[i] = math.Pow(10, energyQuant[p.Energy[0]][i])
		}
		d.noiseFrame(window, amp)
		d.exc.Advance(frameLen)
		return
	}

	d.delay = float64(p.Pitch[0] + minDelay)
	if d.rate == RateFull && p.Pitch[1] != 0 && math.Abs(d.delay-d.prevDelay) > 15 {
		// the frame carries the delay the previous frame should have had
		d.prevDelay = d.delay - float64(p.Pitch[1]) + 16
	} else if math.Abs(d.delay-d.prevDelay) > 15 {
		d.prevDelay = d.delay
	}

	d.avgACBGain, d.avgFCBGain = 0, 0
	var fcb [maxSubLen]float64
	var lpc [lpcOrder]float64
	for i := 0; i < subframes; i++ {
		sf := &p.Subframes[i]
		n := subframeSizes[i]
		pos := excLookback + subframeStart(i)
		delay := interpolateDelay(d.delay, d.prevDelay, i)
		lag := int(math.Round((delay[0] + delay[1]) / 2))

		pitchGain := acbGains[sf.GainIndex[0]]
		gains := fcbGainsHalf[:]
		if d.rate == RateFull {
			gains = fcbGainsFull[:]
		}
		fcbGain := gains[sf.GainIndex[1]]
		d.fadeScale = math.Min(d.fadeScale+0.2, 1)

		acbContour(window, pos, n, delay, pitchGain)
		fcbVector(fcb[:n], d.rate, sf.Pulses, pitchGain, lag)
		for j := 0; j < n; j++ {
			window[pos+j] += fcbGain * fcb[j]
		}
		d.avgACBGain += pitchGain / subframes
		d.avgFCBGain += fcbGain / subframes

		subframeLPC(lpc[:], d.lspf[:], d.prevLSPF[:], i)
		d.synthesize(window[pos:pos+n], lpc[:], i, lag)
	}
	d.prevDelay = d.delay
	d.exc.Advance(frameLen)
}

// conceal synthesizes an erased frame from the previous parameters.
func (d *Decoder) conceal() {
	concealLSP(d.lspf[:], d.prevLSPF[:], d.lastGoodRate)
	if d.prevErased {
		d.avgACBGain *= 0.75
	}
	d.rate = RateFull
	if d.lastGoodRate == RateEighth {
		d.rate = RateEighth
	}

	window := d.exc.Window(frameLen)
	if d.rate == RateEighth {
		sum := 0.0
		for _, e := range energyQuant[d.prevEnergy] {
			sum += e
		}
		a := math.Pow(10, sum/subframes) * d.plc.FadeFactor()
		d.noiseFrame(window, [subframes]float64{a, a, a})
		d.exc.Advance(frameLen)
		return
	}

	if math.Abs(d.delay-d.prevDelay) > 15 {
		d.prevDelay = d.delay
	}
	r := d.plc.Rand()
	var lpc [lpcOrder]float64
	for i := 0; i < subframes; i++ {
		n := subframeSizes[i]
		pos := excLookback + subframeStart(i)
		delay := interpolateDelay(d.delay, d.prevDelay, i)
		lag := int(math.Round((delay[0] + delay[1]) / 2))

		acbContour(window, pos, n, delay, d.avgACBGain)
		for j := 0; j < n; j++ {
			window[pos+j] *= d.fadeScale
		}
		d.fadeScale = math.Max(d.fadeScale-0.05, 0)
		if d.avgACBGain < 0.4 {
			// unvoiced: replace the missing codebook contribution by noise
			f := 0.1 * d.avgFCBGain * d.plc.FadeFactor()
			for j := 0; j < n; j++ {
				window[pos+j] += f * r.Float()
			}
		}

		subframeLPC(lpc[:], d.lspf[:], d.prevLSPF[:], i)
		d.synthesize(window[pos:pos+n], lpc[:], i, lag)
	}
	d.prevDelay = d.delay
	d.exc.Advance(frameLen)
}

// noiseFrame fills the frame excitation with noise of the given
// amplitude per subframe and synthesizes it.
func (d *Decoder) noiseFrame(window []float64, amp [subframes]float64) {
	r := d.plc.Rand()
	var lpc [lpcOrder]float64
	for i := 0; i < subframes; i++ {
		n := subframeSizes[i]
		pos := excLookback + subframeStart(i)
		for j := 0; j < n; j++ {
			window[pos+j] = amp[i] * r.Float()
		}
		subframeLPC(lpc[:], d.lspf[:], d.prevLSPF[:], i)
		d.synthesize(window[pos:pos+n], lpc[:], i, minDelay)
	}
}

// synthesize runs the LP synthesis of one subframe and the postfilter.
func (d *Decoder) synthesize(exc, lpc []float64, i, lag int) {
	n := len(exc)
	var buf [lpcOrder + maxSubLen]float64
	copy(buf[:], d.synthMem[:])
	d.kernel.Synthesize(buf[:], lpc, exc, n)
	copy(d.synthMem[:], buf[n:n+lpcOrder])

	s := subframeStart(i)
	speech := d.speech[s : s+n]
	copy(speech, buf[lpcOrder:lpcOrder+n])
	if d.cfg.Postfilter {
		d.post.process(d.post32[s:s+n], speech, lpc, lag, d.rate)
	}
}
