// decoder.go implements the public Decoder API.

package gocelp

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/thesyncim/gocelp/internal/amrnb"
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/evrc"
	"github.com/thesyncim/gocelp/internal/g7231"
	"github.com/thesyncim/gocelp/internal/g729"
	"github.com/thesyncim/gocelp/internal/sipr"
	"github.com/thesyncim/gocelp/internal/types"
	"github.com/thesyncim/gocelp/internal/wmavoice"
	"github.com/thesyncim/gocelp/rtpframe"
)

// MaxChannels is the largest channel count a Decoder accepts.
const MaxChannels = 8

// Decoder decodes CELP frames of one codec into PCM samples.
//
// Every channel has its own independent decoder state. A Decoder is NOT
// safe for concurrent use; each goroutine should create its own.
type Decoder struct {
	codec    Codec
	channels []celp.FrameDecoder
	lastMode []int
	opts     options
	log      logrus.FieldLogger
	maxFrame int
	scratch  []float32
	pcm32    []float32 // DecodeInt16 staging
}

// NewDecoder creates a decoder for codec with channels independent
// channel states.
func NewDecoder(codec Codec, channels int, opts ...Option) (*Decoder, error) {
	if !codec.Valid() {
		return nil, ErrInvalidCodec
	}
	if channels < 1 || channels > MaxChannels {
		return nil, ErrInvalidChannels
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.kernel != "" {
		k, ok := celp.KernelByName(o.kernel)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, o.kernel)
		}
		o.cfg.Kernel = k
	}
	log := o.logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	d := &Decoder{
		codec:    codec,
		opts:     o,
		log:      log.WithField("codec", codec.String()),
		maxFrame: maxFrameSize(codec),
	}
	d.scratch = make([]float32, d.maxFrame)
	d.pcm32 = make([]float32, d.maxFrame)
	for ch := 0; ch < channels; ch++ {
		d.channels = append(d.channels, newFrameDecoder(codec, o.cfg))
		d.lastMode = append(d.lastMode, -1)
	}
	return d, nil
}

func newFrameDecoder(codec Codec, cfg celp.Config) celp.FrameDecoder {
	switch codec {
	case CodecAMRNB:
		return amrnb.NewDecoder(cfg)
	case CodecG7231:
		return g7231.NewDecoder(cfg)
	case CodecG729:
		return g729.NewDecoder(cfg)
	case CodecEVRC:
		return evrc.NewDecoder(cfg)
	case CodecSIPR:
		return sipr.NewDecoder(cfg)
	default:
		return wmavoice.NewDecoder(cfg)
	}
}

// modeCount returns the number of modes of codec.
func modeCount(codec Codec) int {
	switch codec {
	case CodecAMRNB:
		return amrnb.Mode122 + 1
	case CodecG7231:
		return g7231.Rate5300 + 1
	case CodecG729:
		return g729.Mode6k4 + 1
	case CodecEVRC:
		return evrc.RateEighth + 1
	case CodecSIPR:
		return sipr.Mode5k0 + 1
	case CodecWMAVoice:
		return (wmavoice.ModeLSP16 | wmavoice.ModeResidual | wmavoice.ModeAltInterp | wmavoice.ModeAltMean) + 1
	}
	return 0
}

// ProfileFor returns the parameter profile of codec in mode.
func ProfileFor(codec Codec, mode int) (*CodecProfile, error) {
	if !codec.Valid() {
		return nil, ErrInvalidCodec
	}
	if err := celp.CheckIndex("mode", mode, modeCount(codec)); err != nil {
		return nil, err
	}
	switch codec {
	case CodecAMRNB:
		return amrnb.Profile, nil
	case CodecG7231:
		return g7231.Profile, nil
	case CodecG729:
		return g729.Profile, nil
	case CodecEVRC:
		return evrc.Profile, nil
	case CodecSIPR:
		return sipr.ProfileFor(mode)
	default:
		return wmavoice.ProfileFor(mode)
	}
}

func maxFrameSize(codec Codec) int {
	n := 0
	for mode := 0; mode < modeCount(codec); mode++ {
		if p, err := ProfileFor(codec, mode); err == nil {
			n = max(n, p.FrameSize)
		}
	}
	return n
}

// Decode decodes one frame of channel 0 into pcm and returns the number
// of samples written. A nil p, or one with BadFrame set, conceals a lost
// frame.
func (d *Decoder) Decode(p *FrameParameters, pcm []float32) (int, error) {
	return d.DecodeChannel(0, p, pcm)
}

// DecodeChannel decodes one frame of channel ch into pcm and returns the
// number of samples written. On error the channel state is unchanged.
func (d *Decoder) DecodeChannel(ch int, p *FrameParameters, pcm []float32) (int, error) {
	if ch < 0 || ch >= len(d.channels) {
		return 0, ErrInvalidChannels
	}
	fd := d.channels[ch]
	if len(pcm) < d.frameSizeFor(fd, p) {
		return 0, ErrBufferTooSmall
	}

	rep, err := fd.DecodeFrame(p, d.scratch)
	if err != nil {
		d.opts.metrics.Error(d.codec.String(), err)
		entry := d.log.WithError(err).WithField("channel", ch)
		if errors.Is(err, ErrUnsupportedMode) {
			entry.Warn("Unsupported frame type")
		} else {
			entry.Debug("Frame rejected")
		}
		return 0, err
	}
	d.opts.metrics.Frame(d.codec.String(), rep)
	d.logReport(ch, rep)

	n := fd.Profile().FrameSize
	copy(pcm, d.scratch[:n])
	return n, nil
}

// frameSizeFor returns the samples decoding p will produce: the frame
// size of p's mode, or of the current mode for erasures.
func (d *Decoder) frameSizeFor(fd celp.FrameDecoder, p *FrameParameters) int {
	if !celp.Erased(p) && p.Type == types.FrameSpeech {
		if prof, err := ProfileFor(d.codec, p.Mode); err == nil {
			return prof.FrameSize
		}
	}
	return fd.Profile().FrameSize
}

func (d *Decoder) logReport(ch int, rep celp.Report) {
	if d.lastMode[ch] >= 0 && rep.Mode != d.lastMode[ch] {
		d.log.WithFields(logrus.Fields{
			"channel": ch,
			"from":    d.lastMode[ch],
			"to":      rep.Mode,
		}).Debug("Mode switch")
	}
	d.lastMode[ch] = rep.Mode
	if rep.Concealed {
		d.log.WithFields(logrus.Fields{
			"channel": ch,
			"muted":   rep.Muted,
		}).Debug("Frame concealed")
	}
	if rep.OverflowRetries > 0 {
		d.log.WithFields(logrus.Fields{
			"channel": ch,
			"retries": rep.OverflowRetries,
		}).Debug("Synthesis overflow")
	}
}

// DecodeInt16 decodes one frame of channel 0 into int16 samples.
func (d *Decoder) DecodeInt16(p *FrameParameters, pcm []int16) (int, error) {
	if len(pcm) < d.frameSizeFor(d.channels[0], p) {
		return 0, ErrBufferTooSmall
	}
	n, err := d.Decode(p, d.pcm32)
	if err != nil {
		return 0, err
	}
	return Float32ToInt16(pcm[:n], d.pcm32[:n]), nil
}

// DecodePacket decodes every frame of a packed payload into pcm for
// channel 0 and returns the samples written. G.723.1 and G.729 payloads
// may carry several frames; EVRC payloads carry one. A nil payload
// conceals one lost frame. Other codecs return ErrUnsupportedMode.
func (d *Decoder) DecodePacket(data []byte, pcm []float32) (int, error) {
	if data == nil {
		return d.Decode(nil, pcm)
	}
	frames, err := rtpframe.Split(d.codec, data)
	if err != nil {
		d.opts.metrics.Error(d.codec.String(), err)
		return 0, err
	}
	if len(pcm) < len(frames)*d.FrameSize() {
		return 0, ErrBufferTooSmall
	}
	total := 0
	for _, p := range frames {
		n, err := d.Decode(p, pcm[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Codec returns the decoder's codec.
func (d *Decoder) Codec() Codec { return d.codec }

// FrameSize returns the samples per frame of the current mode of channel 0.
func (d *Decoder) FrameSize() int { return d.channels[0].Profile().FrameSize }

// SampleRate returns the output sample rate of the current mode of
// channel 0 in Hz.
func (d *Decoder) SampleRate() int { return d.channels[0].Profile().SampleRate }

// Channels returns the number of channels.
func (d *Decoder) Channels() int { return len(d.channels) }

// Reset returns every channel to its initial state.
func (d *Decoder) Reset() {
	for ch, fd := range d.channels {
		fd.Reset()
		d.lastMode[ch] = -1
	}
}
