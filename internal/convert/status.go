// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package convert

// Status of a job
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string { return string(s) }

// IsTerminal reports whether s is absorbing
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsActive reports whether a job in status s owns (or is about to own) a process
func (s Status) IsActive() bool {
	return s == StatusStarting || s == StatusRunning
}

func (s Status) message() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "converting"
	case StatusCompleted:
		return "done"
	case StatusCancelled:
		return "cancelled"
	default:
		return string(s)
	}
}

func validTransition(from, to Status) bool {
	switch from {
	case StatusWaiting:
		return to == StatusStarting || to == StatusCancelled
	case StatusStarting:
		return to == StatusRunning || to == StatusFailed || to == StatusCancelled
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	default:
		return false
	}
}
