// Command celpdec decodes a captured CELP stream to a WAV file.
//
// Usage:
//
//	celpdec -config job.yaml
//	celpdec -codec g729 -in call.rtp -out call.wav
//
// A job file sets the same fields as the flags; flags given on the command
// line override it:
//
//	codec: g729
//	channels: 2            # one channel per SSRC, in order of appearance
//	input: call.rtp
//	input_kind: rtp        # or raw
//	payload_type: 18       # -1 accepts any
//	output: call.wav
//	postfilter: true
//	log_level: debug
//	metrics_listen: :9100  # serve /metrics while decoding
package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/thesyncim/gocelp"
)

func main() {
	configPath := flag.String("config", "", "YAML job file")
	codec := flag.String("codec", "", "Codec: amrnb, g723.1, g729, evrc, sipr or wmavoice")
	channels := flag.Int("channels", 1, "Number of RTP streams to decode, one WAV channel each")
	input := flag.String("in", "", "Input capture file")
	kind := flag.String("input-kind", inputRTP, "Input kind: rtp or raw")
	pt := flag.Int("pt", -1, "RTP payload type to accept (-1 for any)")
	output := flag.String("out", "decoded.wav", "Output WAV file (16-bit PCM)")
	postfilter := flag.Bool("postfilter", true, "Enable the postfilter")
	kernel := flag.String("kernel", "", "Synthesis kernel (portable or order10)")
	logLevel := flag.String("log-level", "info", "Log level")
	metricsAddr := flag.String("metrics", "", "Listen address for the Prometheus /metrics endpoint")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	job := defaultJob()
	if *configPath != "" {
		var err error
		if job, err = loadJob(*configPath); err != nil {
			log.WithError(err).Fatal("Cannot load job")
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "codec":
			job.Codec = *codec
		case "channels":
			job.Channels = *channels
		case "in":
			job.Input = *input
		case "input-kind":
			job.InputKind = *kind
		case "pt":
			job.PayloadType = *pt
		case "out":
			job.Output = *output
		case "postfilter":
			job.Postfilter = postfilter
		case "kernel":
			job.Kernel = *kernel
		case "log-level":
			job.LogLevel = *logLevel
		case "metrics":
			job.Metrics = *metricsAddr
		}
	})

	stats, err := run(&job, log)
	if err != nil {
		log.WithError(err).Fatal("Decode failed")
	}
	log.WithFields(logrus.Fields{
		"output":  job.Output,
		"streams": len(stats.Streams),
	}).Info(stats.String())
	for i, st := range stats.Streams {
		log.WithFields(logrus.Fields{
			"channel": i,
			"packets": st.Packets,
			"frames":  st.Frames,
			"lost":    st.Lost,
			"late":    st.Late,
			"resyncs": st.Resyncs,
		}).Info("Stream summary")
	}
}

// run executes job, logging to log.
func run(job *Job, log *logrus.Logger) (decodeStats, error) {
	codec, level, err := job.validate()
	if err != nil {
		return decodeStats{}, err
	}
	log.SetLevel(level)

	metrics := gocelp.NewMetrics()
	if job.Metrics != "" {
		ln, err := net.Listen("tcp", job.Metrics)
		if err != nil {
			return decodeStats{}, fmt.Errorf("metrics listener: %w", err)
		}
		defer ln.Close()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
		go func() {
			if err := http.Serve(ln, mux); err != nil && !errors.Is(err, net.ErrClosed) {
				log.WithError(err).Warn("Metrics server stopped")
			}
		}()
		log.WithField("addr", ln.Addr().String()).Info("Serving metrics")
	}

	entry := log.WithField("job", job.Input)
	dec, err := gocelp.NewDecoder(codec, job.Channels, job.options(entry, metrics)...)
	if err != nil {
		return decodeStats{}, err
	}

	in, err := os.Open(job.Input)
	if err != nil {
		return decodeStats{}, err
	}
	defer in.Close()

	s := newSession(job, dec, entry)
	if err := s.run(in); err != nil {
		return s.stats, err
	}
	pcm := s.interleave()

	out, err := os.Create(job.Output)
	if err != nil {
		return s.stats, err
	}
	if err := writeWAV(out, pcm, s.stats.SampleRate, dec.Channels()); err != nil {
		_ = out.Close()
		return s.stats, fmt.Errorf("write wav: %w", err)
	}
	return s.stats, out.Close()
}
