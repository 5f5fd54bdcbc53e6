// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveFinished(t *testing.T) {
	before := testutil.ToFloat64(JobsFinished.WithLabelValues("failed"))

	ObserveFinished("failed", 2.5)
	ObserveFinished("failed", 0)

	assert.Equal(t, before+2, testutil.ToFloat64(JobsFinished.WithLabelValues("failed")))
	// jobs that never started are not timed
	assert.Equal(t, 1, testutil.CollectAndCount(JobDuration))
}

func TestSetQueue(t *testing.T) {
	SetQueue(3, 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(JobsWaiting))
	assert.Equal(t, 2.0, testutil.ToFloat64(JobsInFlight))
}
