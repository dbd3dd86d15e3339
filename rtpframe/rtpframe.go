// Package rtpframe turns RTP packets carrying CELP payloads into decoder
// frames, replacing lost packets with erasures.
//
// Supported payload formats: G.729 and G.729 Annex D (RFC 3551, frames
// concatenated, an optional trailing Annex B SID), G.723.1 (RFC 3551,
// frames concatenated) and EVRC in the header-free format of RFC 3558,
// one frame per packet.
package rtpframe

import (
	"fmt"

	"github.com/pion/rtp"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/evrc"
	"github.com/thesyncim/gocelp/internal/g7231"
	"github.com/thesyncim/gocelp/internal/g729"
	"github.com/thesyncim/gocelp/internal/types"
)

// MaxGap is the largest sequence gap filled with erasures. A larger jump
// restarts the stream.
const MaxGap = 500

// g729SIDBytes is the size of a G.729 Annex B SID frame.
const g729SIDBytes = 2

// Frame is one codec frame of a packet, or an erasure.
type Frame struct {
	// Params is nil for a frame lost in transit.
	Params *types.FrameParameters
	// Timestamp is the RTP timestamp of the first sample of the frame.
	Timestamp uint32
}

// Stats counts what the depacketizer has seen.
type Stats struct {
	Packets int // packets accepted
	Frames  int // frames emitted, erasures included
	Lost    int // sequence numbers never received
	Late    int // packets dropped as duplicate or out of order
	Resyncs int // gaps above MaxGap
}

type splitFunc func(payload []byte) ([]*types.FrameParameters, error)

// Depacketizer tracks one RTP stream. It is not safe for concurrent use.
type Depacketizer struct {
	codec        types.Codec
	split        splitFunc
	frameSamples uint32

	started bool
	nextSeq uint16
	perPkt  int
	stats   Stats
}

type payloadFormat struct {
	split        splitFunc
	frameSamples uint32
}

var formats = map[types.Codec]payloadFormat{
	types.CodecG729:  {splitG729, 80},
	types.CodecG7231: {splitG7231, 240},
	types.CodecEVRC:  {splitEVRC, 160},
}

// Split parses one payload of codec into its frames.
func Split(codec types.Codec, payload []byte) ([]*types.FrameParameters, error) {
	f, ok := formats[codec]
	if !ok {
		return nil, fmt.Errorf("%w: no RTP payload format for %s", celp.ErrUnsupportedMode, codec)
	}
	return f.split(payload)
}

// New returns a depacketizer for codec.
func New(codec types.Codec) (*Depacketizer, error) {
	f, ok := formats[codec]
	if !ok {
		return nil, fmt.Errorf("%w: no RTP payload format for %s", celp.ErrUnsupportedMode, codec)
	}
	return &Depacketizer{codec: codec, split: f.split, frameSamples: f.frameSamples}, nil
}

// Codec returns the codec the depacketizer splits.
func (d *Depacketizer) Codec() types.Codec { return d.codec }

// Stats returns the counters so far.
func (d *Depacketizer) Stats() Stats { return d.stats }

// Reset forgets the stream position; counters are kept.
func (d *Depacketizer) Reset() {
	d.started = false
	d.perPkt = 0
}

// Unmarshal parses raw as an RTP packet and pushes it.
func (d *Depacketizer) Unmarshal(raw []byte) ([]Frame, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", celp.ErrShortPacket, err)
	}
	return d.Push(&pkt)
}

// Push returns the frames of pkt, preceded by one erasure per sequence
// number missing since the previous packet. Duplicate and late packets
// yield no frames. A payload that does not parse is an error and leaves
// the stream position unchanged.
func (d *Depacketizer) Push(pkt *rtp.Packet) ([]Frame, error) {
	lost := 0
	if d.started {
		gap := pkt.SequenceNumber - d.nextSeq
		switch {
		case gap >= 0x8000:
			d.stats.Late++
			return nil, nil
		case gap > MaxGap:
			d.stats.Resyncs++
		default:
			lost = int(gap)
		}
	}

	params, err := d.split(pkt.Payload)
	if err != nil {
		return nil, err
	}

	// a lost packet is assumed to carry as many frames as the last one
	per := max(d.perPkt, 1)
	frames := make([]Frame, 0, lost*per+len(params))
	ts := pkt.Timestamp - uint32(lost*per)*d.frameSamples
	for i := 0; i < lost*per; i++ {
		frames = append(frames, Frame{Timestamp: ts})
		ts += d.frameSamples
	}
	for _, p := range params {
		frames = append(frames, Frame{Params: p, Timestamp: ts})
		ts += d.frameSamples
	}

	d.started = true
	d.nextSeq = pkt.SequenceNumber + 1
	d.perPkt = len(params)
	d.stats.Packets++
	d.stats.Lost += lost
	d.stats.Frames += len(frames)
	return frames, nil
}

func splitG729(payload []byte) ([]*types.FrameParameters, error) {
	var sid bool
	if n := len(payload); n%g729.FrameBytes(g729.Mode8k) == g729SIDBytes && n%g729.FrameBytes(g729.Mode6k4) != 0 {
		payload, sid = payload[:n-g729SIDBytes], true
	}
	var out []*types.FrameParameters
	if len(payload) > 0 {
		mode, err := g729.ModeForPayload(len(payload))
		if err != nil {
			return nil, err
		}
		size := g729.FrameBytes(mode)
		for off := 0; off < len(payload); off += size {
			p, err := g729.Unpack(payload[off:], mode)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	if sid {
		// comfort noise is not generated; the update marks a DTX gap
		out = append(out, &types.FrameParameters{Type: types.FrameUntransmitted})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty G.729 payload", celp.ErrShortPacket)
	}
	return out, nil
}

func splitG7231(payload []byte) ([]*types.FrameParameters, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty G.723.1 payload", celp.ErrShortPacket)
	}
	var out []*types.FrameParameters
	for len(payload) > 0 {
		p, n, err := g7231.Unpack(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		payload = payload[n:]
	}
	return out, nil
}

func splitEVRC(payload []byte) ([]*types.FrameParameters, error) {
	p, err := evrc.Unpack(payload)
	if err != nil {
		return nil, err
	}
	return []*types.FrameParameters{p}, nil
}
