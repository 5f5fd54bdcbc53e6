// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package parse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseError is returned for timestamps that can't be converted to seconds
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid timestamp %q", e.Value)
	}
	return fmt.Sprintf("invalid timestamp %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseSeconds converts an FFmpeg timestamp of the form H:MM:SS.ms into
// seconds. Blank fields count as zero, e.g. ":05:00.0" is 300.
func ParseSeconds(value string) (float64, error) {
	parts := strings.Split(value, ":")
	if len(parts) < 3 {
		return 0, &ParseError{Value: value, Err: fmt.Errorf("want 3 fields, got %d", len(parts))}
	}

	var sec float64
	if s := strings.TrimSpace(parts[2]); s != "" {
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, &ParseError{Value: value, Err: err}
		}
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, &ParseError{Value: value, Err: fmt.Errorf("seconds out of range")}
		}
		sec = x
	}
	if m := strings.TrimSpace(parts[1]); m != "" {
		x, err := strconv.Atoi(m)
		if err != nil || x < 0 {
			return 0, &ParseError{Value: value, Err: err}
		}
		sec += float64(x * 60)
	}
	if h := strings.TrimSpace(parts[0]); h != "" {
		x, err := strconv.Atoi(h)
		if err != nil || x < 0 {
			return 0, &ParseError{Value: value, Err: err}
		}
		sec += float64(x * 3600)
	}

	return sec, nil
}
