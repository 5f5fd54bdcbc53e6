// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package encoder

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileOutputOptions(t *testing.T) {
	p := Profile{Codec: "libx264", AudioCodec: "aac", Preset: "fast"}
	assert.Equal(t,
		[]string{"-strict", "-2", "-c:v", "libx264", "-c:a", "aac", "-preset", "fast"},
		p.OutputOptions())

	p = Profile{Codec: "libxvid", Options: []string{"-qscale:v", "3"}}
	assert.Equal(t,
		[]string{"-strict", "-2", "-c:v", "libxvid", "-qscale:v", "3"},
		p.OutputOptions(), "no audio codec leaves audio to the container")
}

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog(nil)
	require.Len(t, c.List(), 2)

	p := c.Lookup("x264")
	assert.Equal(t, "libx264", p.Codec)
	assert.Equal(t, "mp4", p.Extension)

	p = c.Lookup("libxvid")
	assert.Equal(t, "DivX", p.Name)

	p = c.Lookup("libx265")
	assert.Equal(t, "libx265", p.Codec)
	assert.Equal(t, "aac", p.AudioCodec)

	_, ok := c.Find("libx265")
	assert.False(t, ok)
}

func TestCatalogReplaceSkipsInvalid(t *testing.T) {
	c := NewCatalog([]Profile{{Name: "broken"}, {Codec: "libvpx", Extension: "webm"}})

	list := c.List()
	require.Len(t, list, 1)
	assert.Equal(t, "libvpx", list[0].Name)
}

func TestOutputPath(t *testing.T) {
	in := filepath.Join("videos", "holiday.mov")
	assert.Equal(t, filepath.Join("videos", "holiday-converted.mp4"), OutputPath(in, "mp4"))
	assert.Equal(t, filepath.Join("videos", "holiday-converted.mov"), OutputPath(in, ""))
	assert.Equal(t, filepath.Join("videos", "a.b-converted.avi"), OutputPath(filepath.Join("videos", "a.b.mkv"), ".avi"))
}
