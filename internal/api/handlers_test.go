// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ZSC714725/transcodequeue/internal/convert"
	"github.com/ZSC714725/transcodequeue/internal/encoder"
	"github.com/ZSC714725/transcodequeue/internal/ffmpeg"
	"github.com/ZSC714725/transcodequeue/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blocks until "<output>.go" exists, then exits with 0
const gateScript = `#!/bin/sh
for a; do out=$a; done
echo "  Duration: 00:00:10.00, start: 0.000000, bitrate: 800 kb/s" >&2
echo "frame=  10 fps=0.0 q=28.0 size=       1kB time=00:00:05.00 bitrate= 1.0kbits/s speed=1x" >&2
while [ ! -e "$out.go" ]; do sleep 0.02; done
exit 0
`

type testServer struct {
	router    *gin.Engine
	converter convert.Converter
}

func newTestServer(t *testing.T, capacity int) *testServer {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("encoder scripts need /bin/sh")
	}
	gin.SetMode(gin.TestMode)

	script := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(script, []byte(gateScript), 0o755))

	in, err := ffmpeg.NewValidator([]string{"^/media/"}, nil)
	require.NoError(t, err)
	out, err := ffmpeg.NewValidator(nil, []string{`\.exe$`})
	require.NoError(t, err)

	ff, err := ffmpeg.New(ffmpeg.Config{
		Binary:          script,
		KillTimeout:     time.Second,
		ValidatorInput:  in,
		ValidatorOutput: out,
	})
	require.NoError(t, err)

	catalog := encoder.NewCatalog(nil)
	conv, err := convert.New(convert.Config{
		Capacity: capacity,
		Runner:   convert.NewRunner(ff, catalog, logger.Nop()),
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		conv.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		conv.Wait(ctx)
	})

	r := gin.New()
	NewHandler(conv, ff, catalog).Register(r.Group("/api/v1"))
	return &testServer{router: r, converter: conv}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func release(t *testing.T, output string) {
	t.Helper()
	require.NoError(t, os.WriteFile(output+".go", nil, 0o644))
}

func TestAddJob(t *testing.T) {
	s := newTestServer(t, 1)
	dir := t.TempDir()

	w := s.do(t, http.MethodPost, "/api/v1/jobs", JobRequest{
		Input:   "/media/movie.mkv",
		Output:  filepath.Join(dir, "movie.mp4"),
		Encoder: "x264",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	job := decode[Job](t, w)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "/media/movie.mkv", job.Input)
	assert.Contains(t, []string{"starting", "running"}, job.Status)

	w = s.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[Job](t, w)
	assert.Equal(t, job.ID, got.ID)
	require.NotNil(t, got.State)

	release(t, job.Output)
	require.Eventually(t, func() bool {
		got := decode[Job](t, s.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, nil))
		return got.Status == "completed" && got.Progress == 1
	}, 10*time.Second, 20*time.Millisecond)

	w = s.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[JobReport](t, w)
	require.NotEmpty(t, report.Log)
	assert.Contains(t, report.Log[0][1], "Duration")
}

func TestAddJobDerivesOutput(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do(t, http.MethodPost, "/api/v1/jobs", JobRequest{Input: "/media/clip.mov", Encoder: "DivX"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/media/clip-converted.avi", decode[Job](t, w).Output)
}

func TestAddJobRejects(t *testing.T) {
	s := newTestServer(t, 1)

	cases := map[string]interface{}{
		"bad json":      "not an object",
		"no input":      JobRequest{Encoder: "x264"},
		"no encoder":    JobRequest{Input: "/media/a.mkv"},
		"input denied":  JobRequest{Input: "/etc/passwd", Encoder: "x264"},
		"output denied": JobRequest{Input: "/media/a.mkv", Output: "/tmp/a.exe", Encoder: "x264"},
	}
	for name, body := range cases {
		w := s.do(t, http.MethodPost, "/api/v1/jobs", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Equal(t, http.StatusBadRequest, decode[ErrorResponse](t, w).Code, name)
	}
	assert.Equal(t, convert.Stats{Capacity: 1}, s.converter.Stats())
}

func TestListAndCancel(t *testing.T) {
	s := newTestServer(t, 1)
	dir := t.TempDir()

	var ids []string
	for _, name := range []string{"a", "b"} {
		w := s.do(t, http.MethodPost, "/api/v1/jobs", JobRequest{
			Input:   "/media/" + name + ".mkv",
			Output:  filepath.Join(dir, name+".mp4"),
			Encoder: "x264",
		})
		require.Equal(t, http.StatusOK, w.Code)
		ids = append(ids, decode[Job](t, w).ID)
	}

	jobs := decode[[]Job](t, s.do(t, http.MethodGet, "/api/v1/jobs", nil))
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[1], jobs[0].ID, "waiting job listed first")
	assert.Nil(t, jobs[0].State)

	waiting := decode[[]Job](t, s.do(t, http.MethodGet, "/api/v1/jobs?status=waiting", nil))
	require.Len(t, waiting, 1)
	assert.Equal(t, ids[1], waiting[0].ID)

	byID := decode[[]Job](t, s.do(t, http.MethodGet, "/api/v1/jobs?id="+ids[0]+"&filter=state", nil))
	require.Len(t, byID, 1)
	assert.NotNil(t, byID[0].State)

	w := s.do(t, http.MethodPut, "/api/v1/jobs/"+ids[1]+"/command", CommandRequest{Command: "cancel"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decode[Job](t, s.do(t, http.MethodGet, "/api/v1/jobs/"+ids[1], nil)).Status)

	w = s.do(t, http.MethodPut, "/api/v1/jobs/"+ids[0]+"/command", CommandRequest{Command: "pause"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/jobs/nope/command", CommandRequest{Command: "cancel"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Eventually(t, func() bool {
		return s.converter.Stats().Cancelled == 2
	}, 10*time.Second, 20*time.Millisecond)

	stats := decode[convert.Stats](t, s.do(t, http.MethodGet, "/api/v1/stats", nil))
	assert.Equal(t, 1, stats.Capacity)
	assert.Equal(t, 2, stats.Cancelled)
	assert.Zero(t, stats.InFlight)
}

func TestGetUnknownJob(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do(t, http.MethodGet, "/api/v1/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Unknown job ID", decode[ErrorResponse](t, w).Message)

	w = s.do(t, http.MethodGet, "/api/v1/jobs/missing/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfilesAndMetrics(t *testing.T) {
	s := newTestServer(t, 1)

	profiles := decode[[]encoder.Profile](t, s.do(t, http.MethodGet, "/api/v1/profiles", nil))
	require.Len(t, profiles, 2)
	assert.Equal(t, "libx264", profiles[0].Codec)

	s.do(t, http.MethodPost, "/api/v1/jobs", JobRequest{Input: "/media/x.mkv", Output: filepath.Join(t.TempDir(), "x.mp4"), Encoder: "x264"})

	w := s.do(t, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "transcodequeue_jobs_submitted_total"))
	assert.True(t, strings.Contains(body, "transcodequeue_jobs_in_flight"))
}
