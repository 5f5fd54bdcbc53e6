// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/ZSC714725/transcodequeue/internal/encoder"

	"gopkg.in/yaml.v3"
)

const (
	defaultBind        = ":8080"
	defaultFFmpeg      = "ffmpeg"
	defaultLogLines    = 100
	defaultKillTimeout = 5
	defaultHistory     = 100
	defaultLogLevel    = "info"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	FFmpeg    FFmpegConfig      `yaml:"ffmpeg"`
	Converter ConverterConfig   `yaml:"converter"`
	Log       LogConfig         `yaml:"log"`
	Profiles  []encoder.Profile `yaml:"profiles"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path               string       `yaml:"path"`
	Options            []string     `yaml:"options"`
	LogLines           int          `yaml:"log_lines"`
	KillTimeoutSeconds int          `yaml:"kill_timeout_seconds"`
	Access             AccessConfig `yaml:"access"`
}

// AccessConfig 输入输出地址的正则白名单/黑名单
type AccessConfig struct {
	Input  AccessRules `yaml:"input"`
	Output AccessRules `yaml:"output"`
}

// AccessRules lists regular expressions
type AccessRules struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

// ConverterConfig 转码队列配置
type ConverterConfig struct {
	// Capacity 0 表示 CPU 数的一半
	Capacity int `yaml:"capacity"`
	History  int `yaml:"history"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.fill()
	return cfg
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Converter.Capacity < 0 {
		return nil, fmt.Errorf("converter.capacity must not be negative, got %d", cfg.Converter.Capacity)
	}

	cfg.fill()
	return cfg, nil
}

// fill 填充空值
func (c *Config) fill() {
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = defaultFFmpeg
	}
	if c.FFmpeg.LogLines <= 0 {
		c.FFmpeg.LogLines = defaultLogLines
	}
	if c.FFmpeg.KillTimeoutSeconds <= 0 {
		c.FFmpeg.KillTimeoutSeconds = defaultKillTimeout
	}
	if c.Converter.History <= 0 {
		c.Converter.History = defaultHistory
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

// Capacity returns the configured number of parallel conversions,
// defaulting to half the CPUs and never less than one.
func (c *Config) Capacity() int {
	if c.Converter.Capacity > 0 {
		return c.Converter.Capacity
	}
	return DefaultCapacity(runtime.NumCPU())
}

// DefaultCapacity is half of cpus, at least 1
func DefaultCapacity(cpus int) int {
	if n := cpus / 2; n > 1 {
		return n
	}
	return 1
}

// KillTimeout is the grace period between SIGINT and SIGKILL
func (c *Config) KillTimeout() time.Duration {
	return time.Duration(c.FFmpeg.KillTimeoutSeconds) * time.Second
}
