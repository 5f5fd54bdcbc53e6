// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package convert

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("job not found")
	ErrCancelled       = errors.New("job cancelled")
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
)

// SpawnError means the encoder could not be started at all
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError means the encoder ran and reported failure
type ExitError struct {
	Code int
	Tail []string // last output lines
	Err  error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("encoder exited with code %d", e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Tail) > 0 {
		msg += ": " + strings.Join(e.Tail, " | ")
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
