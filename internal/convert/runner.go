// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package convert

import (
	"github.com/ZSC714725/transcodequeue/internal/encoder"
	"github.com/ZSC714725/transcodequeue/internal/ffmpeg"
	"github.com/ZSC714725/transcodequeue/internal/ffmpeg/parse"
	"github.com/ZSC714725/transcodequeue/internal/logger"
	"github.com/ZSC714725/transcodequeue/internal/process"
)

const defaultTailLines = 5

// JobRunner drives one admitted job to a terminal status
type JobRunner interface {
	Run(j *Job)
}

// Runner runs jobs as FFmpeg processes
type Runner struct {
	ffmpeg    ffmpeg.FFmpeg
	catalog   *encoder.Catalog
	logger    logger.Logger
	tailLines int
}

// NewRunner creates a Runner. A nil catalog uses the default profiles.
func NewRunner(ff ffmpeg.FFmpeg, catalog *encoder.Catalog, log logger.Logger) *Runner {
	if catalog == nil {
		catalog = encoder.NewCatalog(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		ffmpeg:    ff,
		catalog:   catalog,
		logger:    logger.Component(log, "runner"),
		tailLines: defaultTailLines,
	}
}

// Command builds the FFmpeg arguments for j. The input always follows -i,
// overwriting is always forced and the output is always last.
func (r *Runner) Command(j *Job) []string {
	profile := r.catalog.Lookup(j.Encoder)

	var cmd []string
	cmd = append(cmd, r.ffmpeg.Options()...)
	cmd = append(cmd, "-i", j.Input, "-y")
	cmd = append(cmd, profile.OutputOptions()...)
	cmd = append(cmd, j.Output)
	return cmd
}

// Run spawns the encoder for j and blocks until it exited. j must have
// been admitted; a job still waiting is admitted here.
func (r *Runner) Run(j *Job) {
	log := r.logger.With("job", j.ID)

	if j.Status() == StatusWaiting && !j.admit() {
		return
	}
	if j.isCancelled() {
		j.finish(StatusCancelled, -1, ErrCancelled)
		return
	}

	parser := r.ffmpeg.NewParser(log)
	lines := &lineHandler{job: j, parser: parser, logger: log}

	args := r.Command(j)
	proc, err := r.ffmpeg.New(ffmpeg.ProcessConfig{
		Command: args,
		Parser:  lines,
		Logger:  log,
		OnStart: func(pid int) {
			log.Info("started pid %d: %s %v", pid, r.ffmpeg.Binary(), args)
		},
	})
	if err != nil {
		j.finish(StatusFailed, -1, &SpawnError{Binary: r.ffmpeg.Binary(), Err: err})
		return
	}

	if !j.attach(proc, parser) {
		j.finish(StatusCancelled, -1, ErrCancelled)
		return
	}

	exit := proc.Run()

	switch {
	case !exit.Started && exit.Err != nil:
		err := &SpawnError{Binary: r.ffmpeg.Binary(), Err: exit.Err}
		log.Error("%v", err)
		j.finish(StatusFailed, -1, err)
	case j.isCancelled():
		log.Info("cancelled (%s, code %d)", exit.State, exit.Code)
		j.finish(StatusCancelled, exit.Code, ErrCancelled)
	case exit.Err == nil && exit.Code == 0:
		log.Info("completed %s", j.Output)
		j.finish(StatusCompleted, 0, nil)
	default:
		err := &ExitError{Code: exit.Code, Tail: parser.Tail(r.tailLines), Err: exit.Err}
		log.Error("%v", err)
		j.finish(StatusFailed, exit.Code, err)
	}
}

// lineHandler feeds every output line to the FFmpeg parser and publishes
// the resulting progress on the job.
type lineHandler struct {
	job    *Job
	parser parse.Parser
	logger logger.Logger
}

func (h *lineHandler) Parse(line string) {
	h.logger.Debug("%s", line)
	h.parser.Parse(line)
	h.job.observe(h.parser.Progress())
}

func (h *lineHandler) Log() []process.Line {
	return h.parser.Log()
}
