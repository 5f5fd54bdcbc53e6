// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

//go:build !unix

package process

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// Windows has no SIGINT for child processes, so interrupt is a hard kill.
func interruptGroup(cmd *exec.Cmd) error {
	return killGroup(cmd)
}

func killGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
