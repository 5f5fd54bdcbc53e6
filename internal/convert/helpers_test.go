// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package convert

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/ZSC714725/transcodequeue/internal/ffmpeg"
	"github.com/ZSC714725/transcodequeue/internal/ffmpeg/parse"
	"github.com/ZSC714725/transcodequeue/internal/logger"
	"github.com/ZSC714725/transcodequeue/internal/process"

	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script impersonating ffmpeg
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("encoder scripts need /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newScriptRunner(t *testing.T, script string) *Runner {
	t.Helper()
	ff, err := ffmpeg.New(ffmpeg.Config{Binary: script, KillTimeout: 2 * time.Second})
	require.NoError(t, err)
	return NewRunner(ff, nil, logger.Nop())
}

func waitDone(t *testing.T, j *Job) {
	t.Helper()
	select {
	case <-j.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("job %s still %s", j.ID, j.Status())
	}
}

// fakeProc stands in for an encoder process: it runs until released with
// an exit code or killed.
type fakeProc struct {
	release chan int
	killed  chan struct{}
	once    sync.Once
}

func newFakeProc() *fakeProc {
	return &fakeProc{release: make(chan int, 1), killed: make(chan struct{})}
}

func (p *fakeProc) Run() process.Exit {
	select {
	case code := <-p.release:
		return process.Exit{State: "finished", Code: code, Started: true}
	case <-p.killed:
		return process.Exit{State: "killed", Code: -1, Started: true}
	}
}

func (p *fakeProc) Kill() error {
	p.once.Do(func() { close(p.killed) })
	return nil
}

func (p *fakeProc) State() string            { return "running" }
func (p *fakeProc) Pid() int                 { return 0 }
func (p *fakeProc) Usage() (float64, uint64) { return 0, 0 }

// fakeRunner runs jobs on fakeProcs keyed by input path and records
// admission order and concurrency.
type fakeRunner struct {
	mu        sync.Mutex
	procs     map[string]*fakeProc
	started   []string
	active    int
	maxActive int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{procs: make(map[string]*fakeProc)}
}

func (r *fakeRunner) proc(input string) *fakeProc {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[input]
	if !ok {
		p = newFakeProc()
		r.procs[input] = p
	}
	return p
}

func (r *fakeRunner) finish(input string, code int) {
	r.proc(input).release <- code
}

func (r *fakeRunner) Run(j *Job) {
	p := r.proc(j.Input)
	if !j.attach(p, nil) {
		j.finish(StatusCancelled, -1, ErrCancelled)
		return
	}

	r.mu.Lock()
	r.started = append(r.started, j.Input)
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	r.mu.Unlock()

	j.observe(parse.Progress{Duration: 10, Time: 5, Ratio: 0.5})
	exit := p.Run()

	r.mu.Lock()
	r.active--
	r.mu.Unlock()

	switch {
	case j.isCancelled():
		j.finish(StatusCancelled, exit.Code, ErrCancelled)
	case exit.Code == 0:
		j.finish(StatusCompleted, 0, nil)
	default:
		j.finish(StatusFailed, exit.Code, &ExitError{Code: exit.Code})
	}
}

func (r *fakeRunner) startedOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

func (r *fakeRunner) peak() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxActive
}
