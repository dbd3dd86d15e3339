package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/thesyncim/gocelp"
)

// Input kinds.
const (
	inputRTP = "rtp" // RTP packets, each preceded by a 16-bit big-endian length
	inputRaw = "raw" // codec payloads with the same framing; length 0 is a lost packet
)

// Job describes one decode run.
type Job struct {
	Codec       string `yaml:"codec"`
	Channels    int    `yaml:"channels"`
	Input       string `yaml:"input"`
	InputKind   string `yaml:"input_kind"`
	PayloadType int    `yaml:"payload_type"` // -1 accepts any
	Output      string `yaml:"output"`
	Postfilter  *bool  `yaml:"postfilter"`
	Kernel      string `yaml:"kernel"`
	LogLevel    string `yaml:"log_level"`
	Metrics     string `yaml:"metrics_listen"`
}

func defaultJob() Job {
	return Job{
		Channels:    1,
		InputKind:   inputRTP,
		PayloadType: -1,
		Output:      "decoded.wav",
		LogLevel:    "info",
	}
}

// loadJob reads a YAML job file over the defaults.
func loadJob(path string) (Job, error) {
	job := defaultJob()
	data, err := os.ReadFile(path)
	if err != nil {
		return job, err
	}
	if err := yaml.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("parse %s: %w", path, err)
	}
	return job, nil
}

// validate checks the job and resolves its codec and log level.
func (j *Job) validate() (gocelp.Codec, logrus.Level, error) {
	codec, err := gocelp.ParseCodec(j.Codec)
	if err != nil {
		return 0, 0, fmt.Errorf("codec %q: %w", j.Codec, err)
	}
	level, err := logrus.ParseLevel(j.LogLevel)
	if err != nil {
		return 0, 0, err
	}
	switch {
	case j.Input == "":
		return 0, 0, fmt.Errorf("no input file")
	case j.InputKind != inputRTP && j.InputKind != inputRaw:
		return 0, 0, fmt.Errorf("input kind %q: want %s or %s", j.InputKind, inputRTP, inputRaw)
	case j.PayloadType < -1 || j.PayloadType > 127:
		return 0, 0, fmt.Errorf("payload type %d out of range", j.PayloadType)
	case j.Channels < 1 || j.Channels > gocelp.MaxChannels:
		return 0, 0, fmt.Errorf("%w: %d", gocelp.ErrInvalidChannels, j.Channels)
	case j.InputKind == inputRaw && j.Channels != 1:
		return 0, 0, fmt.Errorf("raw input carries one channel, got %d", j.Channels)
	}
	return codec, level, nil
}

func (j *Job) options(log logrus.FieldLogger, m *gocelp.Metrics) []gocelp.Option {
	opts := []gocelp.Option{gocelp.WithLogger(log), gocelp.WithMetrics(m)}
	if j.Postfilter != nil {
		opts = append(opts, gocelp.WithPostfilter(*j.Postfilter))
	}
	if j.Kernel != "" {
		opts = append(opts, gocelp.WithKernel(j.Kernel))
	}
	return opts
}
