// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package convert

import (
	"fmt"
	"sync"
	"time"

	"github.com/ZSC714725/transcodequeue/internal/ffmpeg/parse"
	"github.com/ZSC714725/transcodequeue/internal/process"

	"github.com/lithammer/shortuuid/v4"
)

const maxRunningRatio = 0.999

// Job is one requested conversion. Input, Output and Encoder never change;
// everything else is read through Snapshot.
type Job struct {
	ID        string
	Input     string
	Output    string
	Encoder   string
	CreatedAt time.Time

	seq uint64

	lock       sync.RWMutex
	status     Status
	message    string
	progress   parse.Progress
	exitCode   int
	err        error
	startedAt  time.Time
	finishedAt time.Time
	cancelled  bool
	proc       process.Process
	parser     parse.Parser
	done       chan struct{}
}

// Snapshot is a consistent copy of a job's observable state
type Snapshot struct {
	ID         string         `json:"id"`
	Input      string         `json:"input"`
	Output     string         `json:"output"`
	Encoder    string         `json:"encoder"`
	Status     Status         `json:"status"`
	Message    string         `json:"message"`
	Progress   float64        `json:"progress"`
	Detail     parse.Progress `json:"detail"`
	ExitCode   int            `json:"exit_code"`
	Error      string         `json:"error,omitempty"`
	Pid        int            `json:"pid,omitempty"`
	CPU        float64        `json:"cpu_usage"`
	Memory     uint64         `json:"memory_bytes"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  time.Time      `json:"started_at,omitempty"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}

func newJob(input, output, encoder string) *Job {
	return &Job{
		ID:        shortuuid.New(),
		Input:     input,
		Output:    output,
		Encoder:   encoder,
		CreatedAt: time.Now(),
		status:    StatusWaiting,
		message:   StatusWaiting.message(),
		exitCode:  -1,
		done:      make(chan struct{}),
	}
}

// Status returns the current status
func (j *Job) Status() Status {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.status
}

// Progress returns the progress ratio in [0,1]
func (j *Job) Progress() float64 {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.progress.Ratio
}

// Err returns the failure cause of a Failed job
func (j *Job) Err() error {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.err
}

// Done is closed once the job reached a terminal status
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Snapshot returns status and progress as one consistent value
func (j *Job) Snapshot() Snapshot {
	j.lock.RLock()
	s := Snapshot{
		ID:         j.ID,
		Input:      j.Input,
		Output:     j.Output,
		Encoder:    j.Encoder,
		Status:     j.status,
		Message:    j.message,
		Progress:   j.progress.Ratio,
		Detail:     j.progress,
		ExitCode:   j.exitCode,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	proc := j.proc
	j.lock.RUnlock()

	// sampling may be slow, keep it outside the lock
	if proc != nil {
		s.Pid = proc.Pid()
		s.CPU, s.Memory = proc.Usage()
	}
	return s
}

// Log returns the encoder output kept for this job
func (j *Job) Log() []process.Line {
	j.lock.RLock()
	parser := j.parser
	j.lock.RUnlock()
	if parser == nil {
		return nil
	}
	return parser.Log()
}

// Kill requests cancellation. A running encoder is interrupted, a job not
// yet started never spawns one. Killing a finished job does nothing.
func (j *Job) Kill() {
	j.lock.Lock()
	if j.status.IsTerminal() {
		j.lock.Unlock()
		return
	}
	j.cancelled = true
	proc := j.proc
	j.lock.Unlock()

	if proc != nil {
		proc.Kill()
	}
}

func (j *Job) isCancelled() bool {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.cancelled
}

// setStatus must be called with j.lock held
func (j *Job) setStatus(to Status) error {
	if j.status == to {
		return nil
	}
	if !validTransition(j.status, to) {
		return fmt.Errorf("can't change job %s from %s to %s", j.ID, j.status, to)
	}
	j.status = to
	j.message = to.message()
	if to.IsTerminal() {
		j.finishedAt = time.Now()
		j.proc = nil
		close(j.done)
	}
	return nil
}

// admit moves a waiting job to Starting. A job cancelled while it waited is
// moved to Cancelled instead and admit returns false.
func (j *Job) admit() bool {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.status != StatusWaiting {
		return false
	}
	if j.cancelled {
		j.err = ErrCancelled
		j.setStatus(StatusCancelled)
		return false
	}
	j.startedAt = time.Now()
	return j.setStatus(StatusStarting) == nil
}

// cancelWaiting moves a job that was never admitted straight to Cancelled
func (j *Job) cancelWaiting() bool {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.status != StatusWaiting {
		return false
	}
	j.cancelled = true
	j.err = ErrCancelled
	return j.setStatus(StatusCancelled) == nil
}

// attach hands the process to the job unless the job was cancelled first
func (j *Job) attach(proc process.Process, parser parse.Parser) bool {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.parser = parser
	if j.cancelled || j.status.IsTerminal() {
		return false
	}
	j.proc = proc
	return true
}

// observe applies parsed progress; the first output line marks the job Running
func (j *Job) observe(p parse.Progress) {
	j.lock.Lock()
	defer j.lock.Unlock()

	if j.status == StatusStarting {
		j.setStatus(StatusRunning)
	}
	if j.status != StatusRunning {
		return
	}
	ratio := j.progress.Ratio
	j.progress = p
	if p.Ratio < ratio {
		j.progress.Ratio = ratio
	}
	// 1 is reserved for Completed
	if j.progress.Ratio > maxRunningRatio {
		j.progress.Ratio = maxRunningRatio
	}
}

// finish records the terminal status reported by the runner
func (j *Job) finish(to Status, exitCode int, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()

	if j.status.IsTerminal() {
		return
	}
	if to == StatusCompleted {
		if j.status == StatusStarting {
			j.setStatus(StatusRunning)
		}
		j.progress.Ratio = 1
	}
	j.exitCode = exitCode
	j.err = err
	j.setStatus(to)
	if err != nil && to == StatusFailed {
		j.message = err.Error()
	}
}
