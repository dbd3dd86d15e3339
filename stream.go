// stream.go implements a streaming io.Reader over decoded frames.

package gocelp

import (
	"encoding/binary"
	"io"
	"math"
)

// Streaming API
//
// Reader decodes frames pulled from a FrameSource or payloads pulled from
// a PacketSource and serves the PCM as bytes:
//
//	dec, err := gocelp.NewDecoder(gocelp.CodecG729, 1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reader := gocelp.NewPacketReader(dec, source, gocelp.FormatInt16LE)
//	io.Copy(wavBody, reader)
//
// Only channel 0 is decoded.

// SampleFormat specifies the PCM sample format for streaming.
type SampleFormat int

const (
	// FormatFloat32LE is 32-bit float, little-endian (4 bytes per sample).
	FormatFloat32LE SampleFormat = iota
	// FormatInt16LE is 16-bit signed integer, little-endian (2 bytes per sample).
	FormatInt16LE
)

// BytesPerSample returns the number of bytes per sample for the format.
func (f SampleFormat) BytesPerSample() int {
	if f == FormatInt16LE {
		return 2
	}
	return 4
}

// FrameSource provides unpacked frames for streaming decode.
type FrameSource interface {
	// NextFrame returns the next frame, nil for a lost one, or io.EOF
	// when the stream ends.
	NextFrame() (*FrameParameters, error)
}

// PacketSource provides packed payloads for streaming decode.
type PacketSource interface {
	// NextPacket returns the next payload, nil for a lost one, or io.EOF
	// when the stream ends.
	NextPacket() ([]byte, error)
}

// Reader decodes a stream, implementing io.Reader.
type Reader struct {
	dec    *Decoder
	next   func(pcm []float32) (int, error)
	format SampleFormat

	pcmBuf  []float32 // decoded samples of the current frame or packet
	byteBuf []byte    // PCM as bytes
	offset  int       // read position in byteBuf

	eof bool
}

// NewReader returns a Reader decoding frames from src.
func NewReader(dec *Decoder, src FrameSource, format SampleFormat) *Reader {
	r := &Reader{dec: dec, format: format}
	r.next = func(pcm []float32) (int, error) {
		p, err := src.NextFrame()
		if err != nil {
			return 0, err
		}
		return dec.Decode(p, pcm)
	}
	return r
}

// NewPacketReader returns a Reader decoding payloads from src with
// Decoder.DecodePacket.
func NewPacketReader(dec *Decoder, src PacketSource, format SampleFormat) *Reader {
	r := &Reader{dec: dec, format: format}
	r.next = func(pcm []float32) (int, error) {
		pkt, err := src.NextPacket()
		if err != nil {
			return 0, err
		}
		return dec.DecodePacket(pkt, pcm)
	}
	return r
}

// Read implements io.Reader, reading decoded PCM bytes.
func (r *Reader) Read(p []byte) (int, error) {
	for r.offset >= len(r.byteBuf) {
		if r.eof {
			return 0, io.EOF
		}
		if cap(r.pcmBuf) == 0 {
			// large enough for the biggest multi-frame payload
			r.pcmBuf = make([]float32, 16*r.dec.maxFrame)
		}
		n, err := r.next(r.pcmBuf[:cap(r.pcmBuf)])
		if err == io.EOF {
			r.eof = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		r.byteBuf = r.pcmToBytes(r.byteBuf[:0], r.pcmBuf[:n])
		r.offset = 0
	}

	n := copy(p, r.byteBuf[r.offset:])
	r.offset += n
	return n, nil
}

// pcmToBytes appends samples to buf in the reader's format.
func (r *Reader) pcmToBytes(buf []byte, samples []float32) []byte {
	if r.format == FormatInt16LE {
		for _, s := range samples {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(float32ToInt16(s)))
		}
		return buf
	}
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(s))
	}
	return buf
}

// SampleRate returns the sample rate in Hz.
func (r *Reader) SampleRate() int {
	return r.dec.SampleRate()
}

// Reset clears buffers and decoder state for a new stream.
func (r *Reader) Reset() {
	r.dec.Reset()
	r.byteBuf = r.byteBuf[:0]
	r.offset = 0
	r.eof = false
}
