// Package metrics exposes decoder counters to Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thesyncim/gocelp/internal/celp"
)

// Recorder counts decoded frames per codec. A nil *Recorder records
// nothing, so decoders can hold one unconditionally.
type Recorder struct {
	registry  *prometheus.Registry
	decoded   *prometheus.CounterVec
	concealed *prometheus.CounterVec
	retries   *prometheus.CounterVec
	errors    *prometheus.CounterVec
}

// NewRecorder returns a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		decoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gocelp_frames_decoded_total",
			Help: "Frames decoded, including concealed ones.",
		}, []string{"codec"}),
		concealed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gocelp_frames_concealed_total",
			Help: "Frames synthesized by erasure concealment.",
		}, []string{"codec"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gocelp_overflow_retries_total",
			Help: "Synthesis passes repeated after an overflow.",
		}, []string{"codec"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gocelp_decode_errors_total",
			Help: "Frames rejected by the decoder.",
		}, []string{"codec", "kind"}),
	}
	r.registry.MustRegister(r.decoded, r.concealed, r.retries, r.errors)
	return r
}

// Registry returns the registry holding the counters, for serving.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Frame records one decoded frame.
func (r *Recorder) Frame(codec string, rep celp.Report) {
	if r == nil {
		return
	}
	r.decoded.WithLabelValues(codec).Inc()
	if rep.Concealed {
		r.concealed.WithLabelValues(codec).Inc()
	}
	if rep.OverflowRetries > 0 {
		r.retries.WithLabelValues(codec).Add(float64(rep.OverflowRetries))
	}
}

// Error records one rejected frame, labelled by ErrorKind.
func (r *Recorder) Error(codec string, err error) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(codec, ErrorKind(err)).Inc()
}

// ErrorKind names the class of a decode error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, celp.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, celp.ErrUnsupportedMode):
		return "unsupported_mode"
	case errors.Is(err, celp.ErrShortPacket):
		return "short_packet"
	default:
		return "other"
	}
}
