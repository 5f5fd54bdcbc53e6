// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	With(key, value string) Logger
}

// Config for the root logger
type Config struct {
	Level   string    // "debug", "info", ...; falls back to LOG_LEVEL, then info
	Output  io.Writer // defaults to os.Stdout
	Service string
}

type zeroLogger struct {
	z zerolog.Logger
}

// New creates a zerolog backed logger
func New(cfg Config) Logger {
	level := zerolog.InfoLevel
	name := cfg.Level
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	if name != "" {
		if parsed, err := zerolog.ParseLevel(name); err == nil {
			level = parsed
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339

	w := cfg.Output
	if w == nil {
		w = os.Stdout
	}
	service := cfg.Service
	if service == "" {
		service = "transcodequeue"
	}

	z := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()
	return &zeroLogger{z: z}
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return &zeroLogger{z: zerolog.Nop()}
}

// Component returns a child logger tagged with a component name
func Component(l Logger, name string) Logger {
	if l == nil {
		return Nop()
	}
	return l.With("component", name)
}

func (l *zeroLogger) Info(format string, args ...interface{}) {
	l.z.Info().Msgf(format, args...)
}

func (l *zeroLogger) Warn(format string, args ...interface{}) {
	l.z.Warn().Msgf(format, args...)
}

func (l *zeroLogger) Error(format string, args ...interface{}) {
	l.z.Error().Msgf(format, args...)
}

func (l *zeroLogger) Debug(format string, args ...interface{}) {
	l.z.Debug().Msgf(format, args...)
}

func (l *zeroLogger) With(key, value string) Logger {
	return &zeroLogger{z: l.z.With().Str(key, value).Logger()}
}
