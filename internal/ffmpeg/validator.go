// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package ffmpeg

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmptyAddress = errors.New("empty address")
	ErrBlocked      = errors.New("address matches a block expression")
	ErrNotAllowed   = errors.New("address matches no allow expression")
)

// Validator decides whether a path may be handed to FFmpeg as input or output
type Validator interface {
	IsValid(text string) bool
	Validate(text string) error
}

type validator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator compiles allow and block expressions. Empty expressions are
// ignored; with no allow expressions every non-blocked address passes.
func NewValidator(allow, block []string) (Validator, error) {
	v := &validator{}

	var err error
	if v.allow, err = compileAll("allow", allow); err != nil {
		return nil, err
	}
	if v.block, err = compileAll("block", block); err != nil {
		return nil, err
	}
	return v, nil
}

func compileAll(kind string, exps []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, exp := range exps {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (v *validator) IsValid(text string) bool {
	return v.Validate(text) == nil
}

func (v *validator) Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyAddress
	}
	for _, e := range v.block {
		if e.MatchString(text) {
			return fmt.Errorf("%w: %s", ErrBlocked, e.String())
		}
	}
	if len(v.allow) == 0 {
		return nil
	}
	for _, e := range v.allow {
		if e.MatchString(text) {
			return nil
		}
	}
	return ErrNotAllowed
}
