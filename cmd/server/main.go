// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// TranscodeQueue - FFmpeg 并发转码队列

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZSC714725/transcodequeue/internal/api"
	"github.com/ZSC714725/transcodequeue/internal/config"
	"github.com/ZSC714725/transcodequeue/internal/convert"
	"github.com/ZSC714725/transcodequeue/internal/encoder"
	"github.com/ZSC714725/transcodequeue/internal/ffmpeg"
	"github.com/ZSC714725/transcodequeue/internal/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	capacity := flag.Int("capacity", 0, "Parallel conversions (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}

	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}
	if *capacity > 0 {
		cfg.Converter.Capacity = *capacity
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := logger.New(logger.Config{Level: cfg.Log.Level, Service: "transcodequeue"})

	if err := run(cfg, logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	validatorIn, err := ffmpeg.NewValidator(cfg.FFmpeg.Access.Input.Allow, cfg.FFmpeg.Access.Input.Block)
	if err != nil {
		return err
	}
	validatorOut, err := ffmpeg.NewValidator(cfg.FFmpeg.Access.Output.Allow, cfg.FFmpeg.Access.Output.Block)
	if err != nil {
		return err
	}

	ff, err := ffmpeg.New(ffmpeg.Config{
		Binary:          cfg.FFmpeg.Path,
		Options:         cfg.FFmpeg.Options,
		MaxLogLines:     cfg.FFmpeg.LogLines,
		KillTimeout:     cfg.KillTimeout(),
		ValidatorInput:  validatorIn,
		ValidatorOutput: validatorOut,
	})
	if err != nil {
		return err
	}

	catalog := encoder.NewCatalog(cfg.Profiles)
	conv, err := convert.New(convert.Config{
		Capacity: cfg.Capacity(),
		History:  cfg.Converter.History,
		Runner:   convert.NewRunner(ff, catalog, log),
		Logger:   log,
	})
	if err != nil {
		return err
	}

	r := gin.New()
	r.Use(gin.Recovery(), cors.Default())
	api.NewHandler(conv, ff, catalog).Register(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("TranscodeQueue listening on %s (ffmpeg %s, capacity %d)", srv.Addr, ff.Binary(), cfg.Capacity())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		// 先停止转码，再关闭 HTTP 服务
		conv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := conv.Wait(shutdownCtx); err != nil {
			log.Warn("encoders still running after %s: %v", shutdownTimeout, err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
