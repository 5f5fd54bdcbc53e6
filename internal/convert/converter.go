// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package convert

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ZSC714725/transcodequeue/internal/logger"
	"github.com/ZSC714725/transcodequeue/internal/metrics"
)

const defaultHistory = 100

// Converter is a bounded-concurrency conversion queue. Jobs are admitted in
// submission order and at most Capacity of them run at the same time.
type Converter interface {
	// Submit enqueues a conversion and never blocks or fails.
	Submit(input, output, encoder string) *Job
	Get(id string) (*Job, error)
	List() []*Job
	Cancel(id string) error
	// CancelAll drops the queue and kills every running job.
	CancelAll()
	// Shutdown is CancelAll plus refusing to run anything submitted later.
	Shutdown()
	// Wait blocks until all dispatched jobs have returned.
	Wait(ctx context.Context) error
	Stats() Stats
}

// Stats is a snapshot of the queue
type Stats struct {
	Capacity  int `json:"capacity"`
	Waiting   int `json:"waiting"`
	InFlight  int `json:"in_flight"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Config for a Converter
type Config struct {
	Capacity int
	History  int // finished jobs kept for Get/List
	Runner   JobRunner
	Logger   logger.Logger
}

type converter struct {
	capacity int
	runner   JobRunner
	logger   logger.Logger

	mu       sync.Mutex
	seq      uint64
	waiting  []*Job
	inFlight map[string]*Job
	history  []*Job
	keep     int
	jobs     map[string]*Job
	finished map[Status]int
	closed   bool

	wg sync.WaitGroup
}

// New creates a Converter
func New(config Config) (Converter, error) {
	if config.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if config.Runner == nil {
		return nil, fmt.Errorf("no job runner given")
	}
	c := &converter{
		capacity: config.Capacity,
		runner:   config.Runner,
		logger:   logger.Component(config.Logger, "converter"),
		inFlight: make(map[string]*Job),
		keep:     config.History,
		jobs:     make(map[string]*Job),
		finished: make(map[Status]int),
	}
	if c.keep <= 0 {
		c.keep = defaultHistory
	}
	metrics.SetQueue(0, 0)
	return c, nil
}

func (c *converter) Submit(input, output, encoder string) *Job {
	j := newJob(input, output, encoder)
	metrics.JobsSubmitted.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	j.seq = c.seq
	c.jobs[j.ID] = j

	if c.closed {
		j.cancelWaiting()
		c.retire(j)
		c.logger.Info("job %s submitted after shutdown, cancelled", j.ID)
		return j
	}

	c.waiting = append(c.waiting, j)
	c.logger.Info("job %s queued: %s -> %s (%s)", j.ID, input, output, encoder)
	c.admit()
	return j
}

// admit must be called with c.mu held
func (c *converter) admit() {
	for len(c.inFlight) < c.capacity && len(c.waiting) > 0 {
		j := c.waiting[0]
		c.waiting[0] = nil
		c.waiting = c.waiting[1:]

		if !j.admit() {
			c.retire(j)
			continue
		}

		c.inFlight[j.ID] = j
		c.wg.Add(1)
		go c.run(j)
	}
	metrics.SetQueue(len(c.waiting), len(c.inFlight))
}

func (c *converter) run(j *Job) {
	defer c.wg.Done()
	c.runner.Run(j)
	c.complete(j)
}

// complete is the runner's completion callback
func (c *converter) complete(j *Job) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, j.ID)
	c.retire(j)
	c.admit()
}

// retire must be called with c.mu held, for jobs in a terminal status
func (c *converter) retire(j *Job) {
	s := j.Snapshot()
	c.finished[s.Status]++

	var elapsed float64
	if !s.StartedAt.IsZero() {
		elapsed = s.FinishedAt.Sub(s.StartedAt).Seconds()
	}
	metrics.ObserveFinished(s.Status.String(), elapsed)
	c.logger.Info("job %s %s", j.ID, s.Status)

	c.history = append(c.history, j)
	if over := len(c.history) - c.keep; over > 0 {
		for _, old := range c.history[:over] {
			delete(c.jobs, old.ID)
		}
		c.history = append([]*Job(nil), c.history[over:]...)
	}
}

func (c *converter) Get(id string) (*Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, ok := c.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// List returns waiting jobs in queue order, then running jobs, then
// finished jobs, each group ordered by submission.
func (c *converter) List() []*Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Job, 0, len(c.jobs))
	out = append(out, c.waiting...)

	running := make([]*Job, 0, len(c.inFlight))
	for _, j := range c.inFlight {
		running = append(running, j)
	}
	sort.Slice(running, func(a, b int) bool { return running[a].seq < running[b].seq })
	out = append(out, running...)

	finished := append([]*Job(nil), c.history...)
	sort.Slice(finished, func(a, b int) bool { return finished[a].seq < finished[b].seq })
	return append(out, finished...)
}

func (c *converter) Cancel(id string) error {
	c.mu.Lock()
	j, ok := c.jobs[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	for i, w := range c.waiting {
		if w == j {
			c.waiting = append(c.waiting[:i], c.waiting[i+1:]...)
			j.cancelWaiting()
			c.retire(j)
			metrics.SetQueue(len(c.waiting), len(c.inFlight))
			c.mu.Unlock()
			return nil
		}
	}
	c.mu.Unlock()

	// in flight or already finished; Kill is a no-op for the latter
	j.Kill()
	return nil
}

func (c *converter) CancelAll() {
	c.cancelAll(false)
}

func (c *converter) Shutdown() {
	c.cancelAll(true)
}

func (c *converter) cancelAll(closing bool) {
	c.mu.Lock()
	if closing {
		c.closed = true
	}
	waiting := c.waiting
	c.waiting = nil
	for _, j := range waiting {
		j.cancelWaiting()
		c.retire(j)
	}
	running := make([]*Job, 0, len(c.inFlight))
	for _, j := range c.inFlight {
		running = append(running, j)
	}
	metrics.SetQueue(0, len(c.inFlight))
	c.mu.Unlock()

	c.logger.Info("cancelling %d waiting and %d running jobs", len(waiting), len(running))

	// exit is observed by each runner, nothing here waits for it
	for _, j := range running {
		j.Kill()
	}
}

func (c *converter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *converter) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Capacity:  c.capacity,
		Waiting:   len(c.waiting),
		InFlight:  len(c.inFlight),
		Completed: c.finished[StatusCompleted],
		Failed:    c.finished[StatusFailed],
		Cancelled: c.finished[StatusCancelled],
	}
}
