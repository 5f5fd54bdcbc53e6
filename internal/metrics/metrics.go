// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts every accepted conversion request
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcodequeue_jobs_submitted_total",
		Help: "Total conversion jobs submitted",
	})

	// JobsFinished counts jobs reaching a terminal status
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcodequeue_jobs_finished_total",
		Help: "Total conversion jobs finished, by terminal status",
	}, []string{"status"})

	JobsWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcodequeue_jobs_waiting",
		Help: "Jobs queued and not yet admitted",
	})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcodequeue_jobs_in_flight",
		Help: "Jobs admitted and currently running",
	})

	// JobDuration tracks wall time from admission to termination
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcodequeue_job_duration_seconds",
		Help:    "Duration of admitted conversion jobs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2.0, 14), // 0.5s to ~68min
	}, []string{"status"})

	ParseWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcodequeue_parse_warnings_total",
		Help: "Encoder output lines with malformed timestamps",
	})
)

// ObserveFinished records a job reaching a terminal status
func ObserveFinished(status string, seconds float64) {
	JobsFinished.WithLabelValues(status).Inc()
	if seconds > 0 {
		JobDuration.WithLabelValues(status).Observe(seconds)
	}
}

// SetQueue publishes the scheduler's queue sizes
func SetQueue(waiting, inFlight int) {
	JobsWaiting.Set(float64(waiting))
	JobsInFlight.Set(float64(inFlight))
}
