package gocelp

import (
	"github.com/sirupsen/logrus"

	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/metrics"
)

// Metrics counts decoded, concealed and rejected frames per codec. One
// Metrics can be shared by many decoders; serve Registry() with promhttp.
type Metrics = metrics.Recorder

// NewMetrics returns a Metrics with its own Prometheus registry.
func NewMetrics() *Metrics { return metrics.NewRecorder() }

// Option configures a Decoder.
type Option func(*options)

type options struct {
	cfg     celp.Config
	kernel  string
	logger  logrus.FieldLogger
	metrics *Metrics
}

func defaultOptions() options {
	return options{cfg: celp.DefaultConfig()}
}

// WithPostfilter enables or disables the adaptive postfilter. It is on by
// default.
func WithPostfilter(on bool) Option {
	return func(o *options) { o.cfg.Postfilter = on }
}

// WithHighpass enables or disables the codec's output high-pass filter.
// It is on by default.
func WithHighpass(on bool) Option {
	return func(o *options) { o.cfg.Highpass = on }
}

// WithKernel selects the LP synthesis kernel by name: "portable" or
// "order10". By default the fastest kernel for the CPU is used.
func WithKernel(name string) Option {
	return func(o *options) { o.kernel = name }
}

// WithLogger sets the logger for concealment, overflow and mode switch
// events. Without one the decoder logs nothing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records every decoded frame in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}
