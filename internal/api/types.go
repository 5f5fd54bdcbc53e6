// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package api

// JobRequest for POST /jobs
type JobRequest struct {
	Input   string `json:"input" binding:"required"`
	Output  string `json:"output"`
	Encoder string `json:"encoder" binding:"required"`
}

// Job represents a conversion in API responses
type Job struct {
	ID         string    `json:"id"`
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	Encoder    string    `json:"encoder"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Progress   float64   `json:"progress"`
	ExitCode   int       `json:"exit_code"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  int64     `json:"created_at"`
	StartedAt  int64     `json:"started_at,omitempty"`
	FinishedAt int64     `json:"finished_at,omitempty"`
	State      *JobState `json:"state,omitempty"`
}

// JobState holds live encoder details
type JobState struct {
	Pid      int       `json:"pid"`
	Runtime  int64     `json:"runtime_seconds"`
	LastLog  string    `json:"last_logline"`
	Progress *Progress `json:"progress"`
	Memory   uint64    `json:"memory_bytes"`
	CPU      float64   `json:"cpu_usage"`
}

// Progress from FFmpeg parser
type Progress struct {
	Duration float64 `json:"duration_seconds"`
	Time     float64 `json:"time_seconds"`
	Frame    uint64  `json:"frame"`
	Size     uint64  `json:"size_bytes"`
	Speed    float64 `json:"speed"`
}

// JobReport for logs
type JobReport struct {
	ID  string      `json:"id"`
	Log [][2]string `json:"log"`
}

// CommandRequest for PUT /jobs/:id/command
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
