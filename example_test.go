package gocelp_test

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/thesyncim/gocelp"
)

func ExampleNewDecoder() {
	dec, err := gocelp.NewDecoder(gocelp.CodecG729, 1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Decoder: %s, %dHz, %d samples per frame\n", dec.Codec(), dec.SampleRate(), dec.FrameSize())
	// Output: Decoder: g729, 8000Hz, 80 samples per frame
}

func ExampleDecoder_DecodePacket() {
	dec, err := gocelp.NewDecoder(gocelp.CodecG729, 1)
	if err != nil {
		log.Fatal(err)
	}

	// two 10-byte G.729 frames in one RTP payload
	payload := bytes.Repeat([]byte{0x5A}, 20)
	pcm := make([]float32, 160)
	n, err := dec.DecodePacket(payload, pcm)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("decoded", n, "samples")

	// a lost packet is concealed
	n, err = dec.DecodePacket(nil, pcm)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("concealed", n, "samples")
	// Output:
	// decoded 160 samples
	// concealed 80 samples
}

func ExampleProfileFor() {
	p, err := gocelp.ProfileFor(gocelp.CodecG7231, 0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("G.723.1: %d Hz, %d subframes of %d samples\n", p.SampleRate, p.Subframes, p.SubframeSize)
	// Output: G.723.1: 8000 Hz, 4 subframes of 60 samples
}

type packets [][]byte

func (p *packets) NextPacket() ([]byte, error) {
	if len(*p) == 0 {
		return nil, io.EOF
	}
	pkt := (*p)[0]
	*p = (*p)[1:]
	return pkt, nil
}

func ExampleNewPacketReader() {
	dec, err := gocelp.NewDecoder(gocelp.CodecG7231, 1)
	if err != nil {
		log.Fatal(err)
	}
	src := &packets{make([]byte, 24), nil, make([]byte, 24)}
	pcm, err := io.ReadAll(gocelp.NewPacketReader(dec, src, gocelp.FormatInt16LE))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(len(pcm), "bytes of 16-bit PCM")
	// Output: 1440 bytes of 16-bit PCM
}
