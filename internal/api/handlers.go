// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ZSC714725/transcodequeue/internal/convert"
	"github.com/ZSC714725/transcodequeue/internal/encoder"
	"github.com/ZSC714725/transcodequeue/internal/ffmpeg"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler holds dependencies
type Handler struct {
	converter convert.Converter
	ffmpeg    ffmpeg.FFmpeg
	catalog   *encoder.Catalog
}

// NewHandler creates API handler
func NewHandler(conv convert.Converter, ff ffmpeg.FFmpeg, catalog *encoder.Catalog) *Handler {
	return &Handler{converter: conv, ffmpeg: ff, catalog: catalog}
}

// Register mounts all routes below group
func (h *Handler) Register(group *gin.RouterGroup) {
	group.GET("/profiles", h.Profiles)
	group.GET("/stats", h.Stats)
	group.GET("/metrics", gin.WrapH(promhttp.Handler()))

	group.GET("/jobs", h.ListJobs)
	group.POST("/jobs", h.AddJob)
	group.DELETE("/jobs", h.CancelAll)
	group.GET("/jobs/:id", h.GetJob)
	group.GET("/jobs/:id/report", h.GetReport)
	group.PUT("/jobs/:id/command", h.Command)
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// AddJob POST /api/v1/jobs
func (h *Handler) AddJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	if req.Output == "" {
		profile := h.catalog.Lookup(req.Encoder)
		req.Output = encoder.OutputPath(req.Input, profile.Extension)
	}

	if !h.ffmpeg.ValidateInput(req.Input) {
		errResp(c, http.StatusBadRequest, "Invalid address", "input: "+req.Input)
		return
	}
	if !h.ffmpeg.ValidateOutput(req.Output) {
		errResp(c, http.StatusBadRequest, "Invalid address", "output: "+req.Output)
		return
	}

	j := h.converter.Submit(req.Input, req.Output, req.Encoder)
	c.JSON(http.StatusOK, jobToAPI(j.Snapshot(), "", false))
}

// ListJobs GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	status := c.DefaultQuery("status", "")
	idStr := c.DefaultQuery("id", "")
	filter := c.DefaultQuery("filter", "")

	var ids map[string]bool
	if idStr != "" {
		ids = make(map[string]bool)
		for _, id := range strings.FieldsFunc(idStr, func(r rune) bool { return r == ',' }) {
			ids[strings.TrimSpace(id)] = true
		}
	}

	jobs := h.converter.List()
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if ids != nil && !ids[j.ID] {
			continue
		}
		s := j.Snapshot()
		if status != "" && string(s.Status) != status {
			continue
		}
		out = append(out, jobToAPI(s, lastLine(j), strings.Contains(filter, "state")))
	}

	c.JSON(http.StatusOK, out)
}

// GetJob GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	j, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, jobToAPI(j.Snapshot(), lastLine(j), true))
}

// GetReport GET /api/v1/jobs/:id/report
func (h *Handler) GetReport(c *gin.Context) {
	j, ok := h.lookup(c)
	if !ok {
		return
	}

	lines := j.Log()
	report := JobReport{ID: j.ID, Log: make([][2]string, len(lines))}
	for i, line := range lines {
		report.Log[i] = [2]string{
			line.Timestamp.Format("2006-01-02 15:04:05.000"),
			line.Data,
		}
	}

	c.JSON(http.StatusOK, report)
}

// Command PUT /api/v1/jobs/:id/command
func (h *Handler) Command(c *gin.Context) {
	id := c.Param("id")

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	switch req.Command {
	case "cancel":
		if err := h.converter.Cancel(id); err != nil {
			if errors.Is(err, convert.ErrNotFound) {
				errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
				return
			}
			errResp(c, http.StatusBadRequest, "Command failed", err.Error())
			return
		}
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: cancel")
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// CancelAll DELETE /api/v1/jobs
func (h *Handler) CancelAll(c *gin.Context) {
	h.converter.CancelAll()
	c.JSON(http.StatusOK, "OK")
}

// Profiles GET /api/v1/profiles
func (h *Handler) Profiles(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.List())
}

// Stats GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.converter.Stats())
}

func (h *Handler) lookup(c *gin.Context) (*convert.Job, bool) {
	j, err := h.converter.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return nil, false
	}
	return j, true
}

func lastLine(j *convert.Job) string {
	lines := j.Log()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1].Data
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func jobToAPI(s convert.Snapshot, last string, withState bool) Job {
	job := Job{
		ID:         s.ID,
		Input:      s.Input,
		Output:     s.Output,
		Encoder:    s.Encoder,
		Status:     s.Status.String(),
		Message:    s.Message,
		Progress:   s.Progress,
		ExitCode:   s.ExitCode,
		Error:      s.Error,
		CreatedAt:  unix(s.CreatedAt),
		StartedAt:  unix(s.StartedAt),
		FinishedAt: unix(s.FinishedAt),
	}
	if !withState {
		return job
	}

	job.State = &JobState{
		Pid:     s.Pid,
		LastLog: last,
		Memory:  s.Memory,
		CPU:     s.CPU,
		Progress: &Progress{
			Duration: s.Detail.Duration,
			Time:     s.Detail.Time,
			Frame:    s.Detail.Frame,
			Size:     s.Detail.Size,
			Speed:    s.Detail.Speed,
		},
	}
	switch {
	case s.StartedAt.IsZero():
	case s.FinishedAt.IsZero():
		job.State.Runtime = int64(time.Since(s.StartedAt).Seconds())
	default:
		job.State.Runtime = int64(s.FinishedAt.Sub(s.StartedAt).Seconds())
	}
	return job
}
