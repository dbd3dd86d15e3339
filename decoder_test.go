package gocelp

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/thesyncim/gocelp/rtpframe"
)

var allCodecs = []Codec{CodecAMRNB, CodecG7231, CodecG729, CodecEVRC, CodecSIPR, CodecWMAVoice}

func TestNewDecoder_ValidParams(t *testing.T) {
	tests := []struct {
		codec      Codec
		channels   int
		sampleRate int
		frameSize  int
	}{
		{CodecAMRNB, 1, 8000, 160},
		{CodecG7231, 2, 8000, 240},
		{CodecG729, 1, 8000, 80},
		{CodecEVRC, 1, 8000, 160},
		{CodecSIPR, 1, 16000, 0},
		{CodecWMAVoice, 3, 8000, 160},
	}

	for _, tt := range tests {
		t.Run(tt.codec.String(), func(t *testing.T) {
			dec, err := NewDecoder(tt.codec, tt.channels)
			if err != nil {
				t.Fatalf("NewDecoder(%v, %d) unexpected error: %v", tt.codec, tt.channels, err)
			}
			if dec.SampleRate() != tt.sampleRate {
				t.Errorf("SampleRate() = %d, want %d", dec.SampleRate(), tt.sampleRate)
			}
			if dec.Channels() != tt.channels {
				t.Errorf("Channels() = %d, want %d", dec.Channels(), tt.channels)
			}
			if tt.frameSize != 0 && dec.FrameSize() != tt.frameSize {
				t.Errorf("FrameSize() = %d, want %d", dec.FrameSize(), tt.frameSize)
			}
			if dec.Codec() != tt.codec {
				t.Errorf("Codec() = %v, want %v", dec.Codec(), tt.codec)
			}
		})
	}
}

func TestNewDecoder_InvalidParams(t *testing.T) {
	if _, err := NewDecoder(Codec(99), 1); err != ErrInvalidCodec {
		t.Errorf("NewDecoder(99, 1) error = %v, want ErrInvalidCodec", err)
	}
	for _, ch := range []int{0, -1, MaxChannels + 1} {
		if _, err := NewDecoder(CodecG729, ch); err != ErrInvalidChannels {
			t.Errorf("NewDecoder(g729, %d) error = %v, want ErrInvalidChannels", ch, err)
		}
	}
	if _, err := NewDecoder(CodecG729, 1, WithKernel("avx9000")); !errors.Is(err, ErrUnknownKernel) {
		t.Errorf("WithKernel(avx9000) error = %v, want ErrUnknownKernel", err)
	}
}

func TestProfileFor(t *testing.T) {
	modes := map[Codec]int{
		CodecAMRNB:    8,
		CodecG7231:    2,
		CodecG729:     2,
		CodecEVRC:     3,
		CodecSIPR:     4,
		CodecWMAVoice: 16,
	}
	for codec, n := range modes {
		for mode := 0; mode < n; mode++ {
			p, err := ProfileFor(codec, mode)
			if err != nil {
				t.Fatalf("ProfileFor(%v, %d) unexpected error: %v", codec, mode, err)
			}
			if err := p.Validate(); err != nil {
				t.Errorf("ProfileFor(%v, %d) invalid: %v", codec, mode, err)
			}
		}
		if _, err := ProfileFor(codec, n); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("ProfileFor(%v, %d) error = %v, want ErrInvalidParameter", codec, n, err)
		}
	}
	if _, err := ProfileFor(Codec(42), 0); err != ErrInvalidCodec {
		t.Errorf("ProfileFor(42, 0) error = %v, want ErrInvalidCodec", err)
	}
}

func TestDecode_LossIsConcealed(t *testing.T) {
	for _, codec := range allCodecs {
		t.Run(codec.String(), func(t *testing.T) {
			dec, err := NewDecoder(codec, 1)
			if err != nil {
				t.Fatal(err)
			}
			pcm := make([]float32, 1024)
			for i := 0; i < 5; i++ {
				n, err := dec.Decode(nil, pcm)
				if err != nil {
					t.Fatalf("Decode(nil) frame %d: %v", i, err)
				}
				if n != dec.FrameSize() {
					t.Fatalf("Decode(nil) = %d samples, want %d", n, dec.FrameSize())
				}
			}
		})
	}
}

func TestDecode_BufferTooSmall(t *testing.T) {
	dec, _ := NewDecoder(CodecG7231, 1)
	if _, err := dec.Decode(nil, make([]float32, 239)); err != ErrBufferTooSmall {
		t.Errorf("Decode into 239 samples error = %v, want ErrBufferTooSmall", err)
	}
	if _, err := dec.DecodeInt16(nil, make([]int16, 100)); err != ErrBufferTooSmall {
		t.Errorf("DecodeInt16 into 100 samples error = %v, want ErrBufferTooSmall", err)
	}
}

func TestDecodeChannel_Independent(t *testing.T) {
	stereo, _ := NewDecoder(CodecG729, 2)
	mono, _ := NewDecoder(CodecG729, 1)
	pcm := make([]float32, 80)

	payload := bytes.Repeat([]byte{0x5A}, 10)
	if _, err := stereo.DecodePacket(payload, pcm); err != nil {
		t.Fatal(err)
	}

	// channel 1 never saw the packet, so it must match a fresh decoder
	want := make([]float32, 80)
	if _, err := mono.Decode(nil, want); err != nil {
		t.Fatal(err)
	}
	if _, err := stereo.DecodeChannel(1, nil, pcm); err != nil {
		t.Fatal(err)
	}
	for i := range pcm {
		if pcm[i] != want[i] {
			t.Fatalf("sample %d: got %v, want %v", i, pcm[i], want[i])
		}
	}

	if _, err := stereo.DecodeChannel(2, nil, pcm); err != ErrInvalidChannels {
		t.Errorf("DecodeChannel(2) error = %v, want ErrInvalidChannels", err)
	}
}

func TestDecodePacket(t *testing.T) {
	dec, _ := NewDecoder(CodecG729, 1)
	pcm := make([]float32, 480)

	n, err := dec.DecodePacket(bytes.Repeat([]byte{0x5A}, 30), pcm)
	if err != nil || n != 240 {
		t.Fatalf("DecodePacket(30 bytes) = %d, %v; want 240, nil", n, err)
	}
	n, err = dec.DecodePacket(nil, pcm)
	if err != nil || n != 80 {
		t.Fatalf("DecodePacket(nil) = %d, %v; want 80, nil", n, err)
	}
	if _, err := dec.DecodePacket(make([]byte, 7), pcm); !errors.Is(err, ErrShortPacket) {
		t.Errorf("DecodePacket(7 bytes) error = %v, want ErrShortPacket", err)
	}
	if _, err := dec.DecodePacket(make([]byte, 100), pcm[:100]); err != ErrBufferTooSmall {
		t.Errorf("DecodePacket(100 bytes) error = %v, want ErrBufferTooSmall", err)
	}

	amr, _ := NewDecoder(CodecAMRNB, 1)
	if _, err := amr.DecodePacket([]byte{1, 2, 3}, pcm); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("AMR DecodePacket error = %v, want ErrUnsupportedMode", err)
	}
}

func TestDecodeInt16_MatchesFloat(t *testing.T) {
	frames, err := rtpframe.Split(CodecG7231, make([]byte, 24))
	if err != nil {
		t.Fatal(err)
	}
	f, _ := NewDecoder(CodecG7231, 1)
	i, _ := NewDecoder(CodecG7231, 1)

	pcmF := make([]float32, 240)
	if _, err := f.Decode(frames[0], pcmF); err != nil {
		t.Fatal(err)
	}
	got := make([]int16, 240)
	n, err := i.DecodeInt16(frames[0], got)
	if err != nil || n != 240 {
		t.Fatalf("DecodeInt16 = %d, %v; want 240, nil", n, err)
	}

	want := make([]int16, 240)
	Float32ToInt16(want, pcmF)
	for k := range want {
		if got[k] != want[k] {
			t.Fatalf("sample %d: got %d, want %d", k, got[k], want[k])
		}
	}
}

func TestDecodeInt16_NoExtraAllocs(t *testing.T) {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = 0x6D
	}
	frames, err := rtpframe.Split(CodecG729, payload)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := NewDecoder(CodecG729, 1)
	i, _ := NewDecoder(CodecG729, 1)
	pcmF := make([]float32, 80)
	pcmI := make([]int16, 80)
	// settle the mode so no switch is logged while counting
	f.Decode(frames[0], pcmF)
	i.DecodeInt16(frames[0], pcmI)

	floatAllocs := testing.AllocsPerRun(50, func() {
		f.Decode(frames[1], pcmF)
	})
	intAllocs := testing.AllocsPerRun(50, func() {
		i.DecodeInt16(frames[1], pcmI)
	})
	if intAllocs > floatAllocs {
		t.Errorf("DecodeInt16 allocates %.0f times per frame, Decode %.0f", intAllocs, floatAllocs)
	}

	if _, err := i.DecodeInt16(frames[1], make([]int16, 79)); err != ErrBufferTooSmall {
		t.Errorf("DecodeInt16 into 79 samples error = %v, want ErrBufferTooSmall", err)
	}
}

func TestFloat32ToInt16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{0.5, 16384},
		{-1, -32768},
		{1, 32767},
		{2, 32767},
		{-2, -32768},
		{1.5 / 32768, 2},
		{2.5 / 32768, 2},
	}
	for _, tt := range tests {
		if got := float32ToInt16(tt.in); got != tt.want {
			t.Errorf("float32ToInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestReset(t *testing.T) {
	dec, _ := NewDecoder(CodecG729, 1)
	payload := bytes.Repeat([]byte{0x6D}, 20)
	a := make([]float32, 160)
	b := make([]float32, 160)
	if _, err := dec.DecodePacket(payload, a); err != nil {
		t.Fatal(err)
	}
	dec.Reset()
	if _, err := dec.DecodePacket(payload, b); err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs after Reset: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestWithMetrics(t *testing.T) {
	m := NewMetrics()
	dec, _ := NewDecoder(CodecG729, 1, WithMetrics(m))
	pcm := make([]float32, 80)
	for i := 0; i < 3; i++ {
		if _, err := dec.Decode(nil, pcm); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = dec.Decode(&FrameParameters{Mode: 7}, pcm)

	for _, name := range []string{"gocelp_frames_decoded_total", "gocelp_frames_concealed_total", "gocelp_decode_errors_total"} {
		n, err := testutil.GatherAndCount(m.Registry(), name)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("%s has %d series, want 1", name, n)
		}
	}
}

func TestWithLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	dec, _ := NewDecoder(CodecAMRNB, 1, WithLogger(logger))
	pcm := make([]float32, 160)
	if _, err := dec.Decode(nil, pcm); err != nil {
		t.Fatal(err)
	}
	if _, err := dec.Decode(&FrameParameters{Type: FrameSID}, pcm); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("SID frame error = %v, want ErrUnsupportedMode", err)
	}

	var msgs []string
	for _, e := range hook.AllEntries() {
		msgs = append(msgs, fmt.Sprintf("%s/%s/%v", e.Level, e.Message, e.Data["codec"]))
	}
	want := []string{"debug/Frame concealed/amrnb", "warning/Unsupported frame type/amrnb"}
	if fmt.Sprint(msgs) != fmt.Sprint(want) {
		t.Errorf("log entries = %v, want %v", msgs, want)
	}
}

func TestKernelsAgree(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A, 0x13}, 25)
	var outs [][]float32
	for _, name := range []string{"portable", "order10"} {
		dec, err := NewDecoder(CodecG729, 1, WithKernel(name))
		if err != nil {
			t.Fatal(err)
		}
		pcm := make([]float32, 400)
		if _, err := dec.DecodePacket(payload, pcm); err != nil {
			t.Fatal(err)
		}
		outs = append(outs, pcm)
	}
	for i := range outs[0] {
		if math.Abs(float64(outs[0][i]-outs[1][i])) > 1e-4 {
			t.Fatalf("sample %d: portable %v, order10 %v", i, outs[0][i], outs[1][i])
		}
	}
}

func TestParseCodec(t *testing.T) {
	for _, c := range allCodecs {
		got, err := ParseCodec(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCodec(%q) = %v, %v; want %v", c.String(), got, err, c)
		}
	}
	if _, err := ParseCodec("opus"); err != ErrInvalidCodec {
		t.Errorf("ParseCodec(opus) error = %v, want ErrInvalidCodec", err)
	}
}
