// Package gocelp implements a family of CELP speech decoders in pure Go.
//
// Supported codecs: AMR-NB, G.723.1, G.729 with Annex D, EVRC, SIPR and
// WMA Voice. They share one toolkit of LSP conversion, pitch and
// interpolation, sparse fixed codebooks, gain prediction, LP synthesis,
// postfiltering and erasure concealment.
//
// # Frames
//
// A Decoder consumes FrameParameters, the already unpacked codebook
// indices of one frame. The meaning of each field is fixed per codec and
// documented on its package. A nil frame, or one with BadFrame set, is a
// lost frame and is concealed. For G.723.1, G.729 and EVRC, DecodePacket
// accepts packed payloads directly.
//
// # Output
//
// Samples are float32 in [-1, 1) at the codec's sample rate, 8 kHz except
// for the SIPR 16 kbit/s mode. DecodeInt16 converts with rounding to even
// and saturation.
//
// # Bit exactness
//
// Trained vector quantizer tables that are not derivable from closed
// forms are generated from fixed seeds, so output is deterministic but
// does not match the conformance vectors of the standards.
package gocelp
