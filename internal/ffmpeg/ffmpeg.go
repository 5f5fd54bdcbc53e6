// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package ffmpeg

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/ZSC714725/transcodequeue/internal/ffmpeg/parse"
	"github.com/ZSC714725/transcodequeue/internal/logger"
	"github.com/ZSC714725/transcodequeue/internal/metrics"
	"github.com/ZSC714725/transcodequeue/internal/process"
)

// FFmpeg creates encoder processes and their output parsers
type FFmpeg interface {
	Binary() string
	Options() []string
	New(config ProcessConfig) (process.Process, error)
	NewParser(log logger.Logger) parse.Parser
	ValidateInput(address string) bool
	ValidateOutput(address string) bool
}

// ProcessConfig for creating a process
type ProcessConfig struct {
	Command       []string
	Parser        process.Parser
	Logger        logger.Logger
	OnStart       func(pid int)
	OnStateChange func(from, to string)
}

// Config for FFmpeg
type Config struct {
	Binary          string
	Options         []string // global options placed before the inputs
	MaxLogLines     int
	KillTimeout     time.Duration
	ValidatorInput  Validator
	ValidatorOutput Validator
}

type ffmpeg struct {
	binary       string
	options      []string
	validatorIn  Validator
	validatorOut Validator
	logLines     int
	killTimeout  time.Duration
}

// New resolves the binary through PATH and creates FFmpeg
func New(config Config) (FFmpeg, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary: %w", err)
	}

	f := &ffmpeg{
		binary:      binary,
		options:     config.Options,
		logLines:    config.MaxLogLines,
		killTimeout: config.KillTimeout,
	}

	if f.logLines <= 0 {
		f.logLines = 100
	}
	if f.killTimeout <= 0 {
		f.killTimeout = 5 * time.Second
	}

	if config.ValidatorInput != nil {
		f.validatorIn = config.ValidatorInput
	} else {
		f.validatorIn, _ = NewValidator(nil, nil)
	}
	if config.ValidatorOutput != nil {
		f.validatorOut = config.ValidatorOutput
	} else {
		f.validatorOut, _ = NewValidator(nil, nil)
	}

	return f, nil
}

func (f *ffmpeg) Binary() string {
	return f.binary
}

func (f *ffmpeg) Options() []string {
	return append([]string(nil), f.options...)
}

func (f *ffmpeg) New(config ProcessConfig) (process.Process, error) {
	return process.New(process.Config{
		Binary:        f.binary,
		Args:          config.Command,
		Parser:        config.Parser,
		Sampler:       process.NewSysSampler(),
		KillTimeout:   f.killTimeout,
		Logger:        wrapLogger(config.Logger),
		OnStart:       config.OnStart,
		OnStateChange: config.OnStateChange,
	})
}

func (f *ffmpeg) NewParser(log logger.Logger) parse.Parser {
	if log == nil {
		log = logger.Nop()
	}
	return parse.New(parse.Config{
		LogLines: f.logLines,
		OnWarning: func(line string, err error) {
			metrics.ParseWarnings.Inc()
			log.Warn("skipping progress line %q: %v", line, err)
		},
	})
}

func (f *ffmpeg) ValidateInput(address string) bool {
	return f.validatorIn.IsValid(address)
}

func (f *ffmpeg) ValidateOutput(address string) bool {
	return f.validatorOut.IsValid(address)
}

func wrapLogger(l logger.Logger) *loggerWrapper {
	return &loggerWrapper{logger: l, prefix: "ffmpeg: "}
}

type loggerWrapper struct {
	logger logger.Logger
	prefix string
}

func (w *loggerWrapper) Info(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Info(w.prefix+format, args...)
	}
}

func (w *loggerWrapper) Error(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Error(w.prefix+format, args...)
	}
}

func (w *loggerWrapper) Debug(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Debug(w.prefix+format, args...)
	}
}
