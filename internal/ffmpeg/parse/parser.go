// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package parse

import (
	"container/ring"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/transcodequeue/internal/process"
)

// Progress holds FFmpeg progress info parsed from its output
type Progress struct {
	Duration float64 `json:"duration_seconds"`
	Time     float64 `json:"time_seconds"`
	Ratio    float64 `json:"ratio"`
	Frame    uint64  `json:"frame"`
	Size     uint64  `json:"size_bytes"`
	Speed    float64 `json:"speed"`
}

// Parser implements process.Parser and tracks conversion progress
type Parser interface {
	process.Parser
	Progress() Progress
	Lines() uint64
	Tail(n int) []string
}

// Config for the parser
type Config struct {
	LogLines int
	// OnWarning is called for matched tokens whose timestamp is malformed
	OnWarning func(line string, err error)
}

type parser struct {
	re struct {
		duration *regexp.Regexp
		time     *regexp.Regexp
		frame    *regexp.Regexp
		size     *regexp.Regexp
		speed    *regexp.Regexp
	}

	log       *ring.Ring
	logLines  int
	lines     uint64
	onWarning func(line string, err error)

	progress Progress
	lock     sync.RWMutex
}

// New creates a Parser
func New(config Config) Parser {
	p := &parser{
		logLines:  config.LogLines,
		onWarning: config.OnWarning,
	}
	if p.logLines <= 0 {
		p.logLines = 100
	}
	p.re.duration = regexp.MustCompile(`Duration:\s*([0-9:.]+)`)
	p.re.time = regexp.MustCompile(`time=\s*([0-9:.]+)`)
	p.re.frame = regexp.MustCompile(`frame=\s*([0-9]+)`)
	p.re.size = regexp.MustCompile(`size=\s*([0-9]+)kB`)
	p.re.speed = regexp.MustCompile(`speed=\s*([0-9\.]+)x`)

	p.log = ring.New(p.logLines)
	return p
}

func (p *parser) Parse(line string) {
	now := time.Now()

	p.lock.Lock()
	defer p.lock.Unlock()

	p.log.Value = process.Line{Timestamp: now, Data: line}
	p.log = p.log.Next()
	p.lines++

	if strings.Contains(line, "Duration:") && p.progress.Duration == 0 {
		if m := p.re.duration.FindStringSubmatch(line); m != nil {
			if sec, err := ParseSeconds(m[1]); err != nil {
				p.warn(line, err)
			} else {
				p.progress.Duration = sec
			}
		}
	}

	if !strings.Contains(line, "time=") {
		return
	}

	if m := p.re.time.FindStringSubmatch(line); m != nil {
		done, err := ParseSeconds(m[1])
		if err != nil {
			p.warn(line, err)
		} else {
			p.progress.Time = done
			// 时长未知时不计算进度
			if p.progress.Duration > 0 {
				ratio := done / p.progress.Duration
				if ratio > 1 {
					ratio = 1
				}
				if ratio > p.progress.Ratio {
					p.progress.Ratio = ratio
				}
			}
		}
	}
	if m := p.re.frame.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.progress.Frame = x
		}
	}
	if m := p.re.size.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.progress.Size = x * 1024
		}
	}
	if m := p.re.speed.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.progress.Speed = x
		}
	}
}

// warn must be called with p.lock held
func (p *parser) warn(line string, err error) {
	if p.onWarning != nil {
		p.onWarning(line, err)
	}
}

func (p *parser) Log() []process.Line {
	var out []process.Line
	p.lock.RLock()
	p.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(process.Line))
		}
	})
	p.lock.RUnlock()
	return out
}

// Tail returns the last n logged lines
func (p *parser) Tail(n int) []string {
	lines := p.Log()
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Data
	}
	return out
}

func (p *parser) Lines() uint64 {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.lines
}

func (p *parser) Progress() Progress {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.progress
}
