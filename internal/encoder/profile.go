// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package encoder

import (
	"path/filepath"
	"strings"
	"sync"
)

// Profile describes how one encoder choice maps onto FFmpeg output options
type Profile struct {
	Name       string   `yaml:"name" json:"name"`
	Codec      string   `yaml:"codec" json:"codec"`
	Extension  string   `yaml:"extension" json:"extension"`
	AudioCodec string   `yaml:"audio_codec" json:"audio_codec"` // empty: container default
	Preset     string   `yaml:"preset" json:"preset"`
	Options    []string `yaml:"options" json:"options"`
}

// OutputOptions returns the options placed between the input and the output path
func (p Profile) OutputOptions() []string {
	opts := []string{"-strict", "-2", "-c:v", p.Codec}
	if p.AudioCodec != "" {
		opts = append(opts, "-c:a", p.AudioCodec)
	}
	if p.Preset != "" {
		opts = append(opts, "-preset", p.Preset)
	}
	return append(opts, p.Options...)
}

// Defaults returns the built-in profiles
func Defaults() []Profile {
	return []Profile{
		{Name: "x264", Codec: "libx264", Extension: "mp4", AudioCodec: "aac", Preset: "fast"},
		{Name: "DivX", Codec: "libxvid", Extension: "avi", AudioCodec: "aac", Preset: "fast"},
	}
}

// Catalog resolves encoder identifiers to profiles
type Catalog struct {
	profiles []Profile
	fallback Profile
	lock     sync.RWMutex
}

// NewCatalog creates a catalog. An empty list uses Defaults.
func NewCatalog(profiles []Profile) *Catalog {
	c := &Catalog{}
	c.Replace(profiles)
	return c
}

// Replace swaps the catalog's profiles
func (c *Catalog) Replace(profiles []Profile) {
	var valid []Profile
	for _, p := range profiles {
		if strings.TrimSpace(p.Codec) == "" {
			continue
		}
		if p.Name == "" {
			p.Name = p.Codec
		}
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		valid = Defaults()
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.profiles = valid
	c.fallback = valid[0]
}

// List returns a copy of all profiles
func (c *Catalog) List() []Profile {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return append([]Profile(nil), c.profiles...)
}

// Find looks a profile up by display name (case-insensitive) or codec
func (c *Catalog) Find(id string) (Profile, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	for _, p := range c.profiles {
		if strings.EqualFold(p.Name, id) || p.Codec == id {
			return p, true
		}
	}
	return Profile{}, false
}

// Lookup always returns a profile: unknown ids get the first profile's
// audio and preset settings with id as the video codec.
func (c *Catalog) Lookup(id string) Profile {
	if p, ok := c.Find(id); ok {
		return p
	}
	c.lock.RLock()
	p := c.fallback
	c.lock.RUnlock()
	p.Name = id
	p.Codec = id
	p.Options = nil
	return p
}

// OutputPath derives "<stem>-converted.<ext>" next to input
func OutputPath(input, ext string) string {
	dir := filepath.Dir(input)
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(base), ".")
	}
	name := stem + "-converted"
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(dir, name)
}
