// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列
//
// Package process wraps exec.Cmd for a single FFmpeg invocation.

package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
	"unicode/utf8"
)

// ErrAlreadyRun is returned in Exit.Err when Run is called twice
var ErrAlreadyRun = errors.New("process already run")

const maxLineSize = 1024 * 1024

// Process represents a single run of a binary whose stdout and stderr are
// merged into one stream and fed line by line into a Parser.
type Process interface {
	// Run starts the process and blocks until its output is drained and it exited.
	Run() Exit
	// Kill interrupts the process group and escalates to SIGKILL after the
	// kill timeout. Safe to call before Run, during Run and after exit.
	Kill() error
	State() string
	Pid() int
	Usage() (cpu float64, memory uint64)
}

// Config for a process
type Config struct {
	Binary        string
	Args          []string
	Parser        Parser
	Sampler       Sampler
	KillTimeout   time.Duration
	OnStart       func(pid int)
	OnStateChange func(from, to string)
	Logger        Logger
}

// Exit describes how a process ended
type Exit struct {
	State   string
	Code    int
	Started bool
	Err     error
}

// Killed reports whether the process ended because Kill was called
func (e Exit) Killed() bool {
	return e.State == stateKilled.String()
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateIdle      stateType = "idle"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFinished  stateType = "finished"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning || s == stateFinishing
}

type process struct {
	binary      string
	args        []string
	parser      Parser
	sampler     Sampler
	logger      Logger
	killTimeout time.Duration

	state struct {
		state stateType
		time  time.Time
		lock  sync.Mutex
	}
	ctl struct {
		cmd       *exec.Cmd
		pid       int
		ran       bool
		killed    bool
		killTimer *time.Timer
		lock      sync.Mutex
	}
	callbacks struct {
		onStart       func(pid int)
		onStateChange func(from, to string)
	}
}

// New creates a new process
func New(config Config) (Process, error) {
	p := &process{
		binary:      config.Binary,
		args:        config.Args,
		parser:      config.Parser,
		sampler:     config.Sampler,
		logger:      config.Logger,
		killTimeout: config.KillTimeout,
	}

	if len(p.binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}
	if p.parser == nil {
		p.parser = &nullParser{}
	}
	if p.sampler == nil {
		p.sampler = NewNullSampler()
	}
	if p.logger == nil {
		p.logger = &nopLogger{}
	}

	p.state.state = stateIdle
	p.state.time = time.Now()
	p.callbacks.onStart = config.OnStart
	p.callbacks.onStateChange = config.OnStateChange

	return p, nil
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	prevState := p.state.state
	failed := false

	switch p.state.state {
	case stateIdle:
		if state == stateStarting || state == stateKilled {
			p.state.state = state
		} else {
			failed = true
		}
	case stateStarting:
		switch state {
		case stateRunning, stateFinishing, stateFailed:
			p.state.state = state
		default:
			failed = true
		}
	case stateRunning:
		switch state {
		case stateFinishing, stateFinished, stateFailed, stateKilled:
			p.state.state = state
		default:
			failed = true
		}
	case stateFinishing:
		switch state {
		case stateFinished, stateFailed, stateKilled:
			p.state.state = state
		default:
			failed = true
		}
	case stateFinished, stateFailed, stateKilled:
		failed = true
	default:
		return fmt.Errorf("unhandled state: %s", p.state.state)
	}

	if failed {
		return fmt.Errorf("can't change from %s to %s", p.state.state, state)
	}

	p.state.time = time.Now()
	if p.callbacks.onStateChange != nil {
		p.callbacks.onStateChange(prevState.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) State() string {
	return p.getState().String()
}

func (p *process) Pid() int {
	p.ctl.lock.Lock()
	defer p.ctl.lock.Unlock()
	return p.ctl.pid
}

func (p *process) Usage() (float64, uint64) {
	return p.sampler.Current()
}

func (p *process) Run() Exit {
	p.ctl.lock.Lock()
	if p.ctl.ran {
		p.ctl.lock.Unlock()
		return Exit{State: p.State(), Code: -1, Err: ErrAlreadyRun}
	}
	p.ctl.ran = true

	if p.ctl.killed {
		p.ctl.lock.Unlock()
		p.setState(stateKilled)
		return Exit{State: stateKilled.String(), Code: -1}
	}

	p.setState(stateStarting)

	cmd := exec.Command(p.binary, p.args...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err == nil {
		// stderr 合并到 stdout
		cmd.Stderr = cmd.Stdout
		err = cmd.Start()
	}
	if err != nil {
		p.ctl.lock.Unlock()
		p.setState(stateFailed)
		p.logger.Error("start %s: %v", p.binary, err)
		return Exit{State: stateFailed.String(), Code: -1, Err: err}
	}

	p.ctl.cmd = cmd
	p.ctl.pid = cmd.Process.Pid
	pid := p.ctl.pid
	p.ctl.lock.Unlock()

	if err := p.sampler.Start(pid); err != nil {
		p.logger.Debug("sampler for pid %d: %v", pid, err)
	}

	p.setState(stateRunning)

	if p.callbacks.onStart != nil {
		p.callbacks.onStart(pid)
	}

	p.reader(stdout)
	return p.waiter(cmd)
}

func (p *process) Kill() error {
	p.ctl.lock.Lock()
	defer p.ctl.lock.Unlock()

	if p.ctl.killed {
		return nil
	}
	p.ctl.killed = true

	// not started yet: Run observes the flag and never spawns
	if p.ctl.cmd == nil {
		return nil
	}
	if !p.getState().IsRunning() {
		return nil
	}

	p.setState(stateFinishing)

	cmd := p.ctl.cmd
	err := interruptGroup(cmd)
	if err != nil {
		err = killGroup(cmd)
	} else if p.killTimeout > 0 {
		p.ctl.killTimer = time.AfterFunc(p.killTimeout, func() {
			if err := killGroup(cmd); err != nil {
				p.logger.Error("kill pid %d: %v", cmd.Process.Pid, err)
			}
		})
	}

	if err != nil {
		p.logger.Error("signal pid %d: %v", cmd.Process.Pid, err)
	}
	return err
}

func (p *process) reader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLine)

	for scanner.Scan() {
		p.parser.Parse(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		p.logger.Error("reading output: %v", err)
		// keep draining so the process never blocks on a full pipe
		io.Copy(io.Discard, r)
	}
}

func (p *process) waiter(cmd *exec.Cmd) Exit {
	err := cmd.Wait()

	p.ctl.lock.Lock()
	killed := p.ctl.killed
	if p.ctl.killTimer != nil {
		p.ctl.killTimer.Stop()
		p.ctl.killTimer = nil
	}
	p.ctl.lock.Unlock()

	p.sampler.Stop()

	exit := Exit{Started: true, Code: 0}
	state := stateFinished
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exit.Code = exitErr.ExitCode()
			if exit.Code < 0 || killed {
				state = stateKilled
			} else {
				state = stateFailed
			}
		} else {
			exit.Code = -1
			exit.Err = err
			state = stateFailed
		}
	}

	p.setState(state)
	exit.State = state.String()
	return exit
}

// scanLine splits on both \n and \r; FFmpeg rewrites its progress line with \r.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nullParser struct{}

func (p *nullParser) Parse(line string) {}
func (p *nullParser) Log() []Line       { return nil }

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
