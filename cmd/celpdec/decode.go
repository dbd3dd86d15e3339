package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"

	"github.com/thesyncim/gocelp"
	"github.com/thesyncim/gocelp/rtpframe"
)

// decodeStats summarizes one run.
type decodeStats struct {
	Records    int
	Skipped    int // foreign payload type or SSRC beyond the channel count
	Rejected   int // frames the decoder refused, replaced by concealment
	Samples    int // per channel
	SampleRate int
	Streams    []rtpframe.Stats
}

// frameDecoder is the part of *gocelp.Decoder a session drives.
type frameDecoder interface {
	DecodePacket(data []byte, pcm []float32) (int, error)
	DecodeChannel(ch int, p *gocelp.FrameParameters, pcm []float32) (int, error)
	Codec() gocelp.Codec
	Channels() int
	FrameSize() int
	SampleRate() int
}

// session decodes one input into per-channel PCM.
type session struct {
	job  *Job
	dec  frameDecoder
	log  logrus.FieldLogger
	pcm  [][]float32
	buf  []float32
	ssrc map[uint32]int
	deps []*rtpframe.Depacketizer

	stats decodeStats
}

func newSession(job *Job, dec frameDecoder, log logrus.FieldLogger) *session {
	return &session{
		job:  job,
		dec:  dec,
		log:  log,
		pcm:  make([][]float32, dec.Channels()),
		buf:  make([]float32, 16*dec.FrameSize()),
		ssrc: make(map[uint32]int),
	}
}

// run decodes every record of r.
func (s *session) run(r io.Reader) error {
	rr := newRecordReader(r)
	for {
		rec, err := rr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		s.stats.Records++
		if s.job.InputKind == inputRaw {
			err = s.raw(rec)
		} else {
			err = s.packet(rec)
		}
		if err != nil {
			return err
		}
	}
	for _, d := range s.deps {
		s.stats.Streams = append(s.stats.Streams, d.Stats())
	}
	s.stats.SampleRate = s.dec.SampleRate()
	return nil
}

func (s *session) raw(rec []byte) error {
	if len(rec) == 0 {
		rec = nil
	}
	// every frame takes at least one payload byte
	if need := (len(rec) + 1) * s.dec.FrameSize(); len(s.buf) < need {
		s.buf = make([]float32, need)
	}
	n, err := s.dec.DecodePacket(rec, s.buf)
	// frames decoded before a failure already advanced the decoder
	s.pcm[0] = append(s.pcm[0], s.buf[:n]...)
	if err != nil {
		if !recoverable(err) {
			return err
		}
		s.stats.Rejected++
		s.log.WithError(err).WithField("record", s.stats.Records).Warn("Payload rejected, concealing")
		return s.conceal(0)
	}
	return nil
}

func (s *session) packet(rec []byte) error {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(rec); err != nil {
		s.stats.Skipped++
		s.log.WithError(err).WithField("record", s.stats.Records).Warn("Not an RTP packet")
		return nil
	}
	if s.job.PayloadType >= 0 && int(pkt.PayloadType) != s.job.PayloadType {
		s.stats.Skipped++
		return nil
	}
	ch, ok := s.ssrc[pkt.SSRC]
	if !ok {
		if len(s.deps) == s.dec.Channels() {
			s.stats.Skipped++
			s.log.WithField("ssrc", pkt.SSRC).Debug("No channel left for stream")
			return nil
		}
		dep, err := rtpframe.New(s.dec.Codec())
		if err != nil {
			return err
		}
		ch = len(s.deps)
		s.ssrc[pkt.SSRC] = ch
		s.deps = append(s.deps, dep)
		s.log.WithFields(logrus.Fields{"ssrc": pkt.SSRC, "channel": ch}).Info("New stream")
	}

	frames, err := s.deps[ch].Push(&pkt)
	if err != nil {
		if !recoverable(err) {
			return err
		}
		s.stats.Rejected++
		s.log.WithError(err).WithField("seq", pkt.SequenceNumber).Warn("Payload rejected, concealing")
		return s.conceal(ch)
	}
	for _, f := range frames {
		n, err := s.dec.DecodeChannel(ch, f.Params, s.buf)
		if err != nil {
			if !recoverable(err) {
				return err
			}
			s.stats.Rejected++
			if err := s.conceal(ch); err != nil {
				return err
			}
			continue
		}
		s.pcm[ch] = append(s.pcm[ch], s.buf[:n]...)
	}
	return nil
}

func (s *session) conceal(ch int) error {
	n, err := s.dec.DecodeChannel(ch, nil, s.buf)
	if err != nil {
		return err
	}
	s.pcm[ch] = append(s.pcm[ch], s.buf[:n]...)
	return nil
}

// recoverable reports whether err concerns one payload rather than the run.
func recoverable(err error) bool {
	return errors.Is(err, gocelp.ErrShortPacket) ||
		errors.Is(err, gocelp.ErrInvalidParameter) ||
		errors.Is(err, gocelp.ErrUnsupportedMode)
}

// interleave returns the channels as interleaved int16, padding short
// channels with silence.
func (s *session) interleave() []int16 {
	n := 0
	for _, c := range s.pcm {
		n = max(n, len(c))
	}
	s.stats.Samples = n
	out := make([]int16, n*len(s.pcm))
	tmp := make([]int16, n)
	for ch, c := range s.pcm {
		clear(tmp)
		gocelp.Float32ToInt16(tmp, c)
		for i, v := range tmp {
			out[i*len(s.pcm)+ch] = v
		}
	}
	return out
}

func (st decodeStats) String() string {
	return fmt.Sprintf("%d records, %d skipped, %d rejected, %d samples per channel at %d Hz",
		st.Records, st.Skipped, st.Rejected, st.Samples, st.SampleRate)
}
