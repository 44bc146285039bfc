package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"

	"spaceleap/pkg/config"
	"spaceleap/pkg/spaceleap"
)

// setupLogging routes builder logs to a rotating file when one is configured
// and to stderr otherwise. The returned closer flushes the file.
func setupLogging(cfg *config.Config) io.Closer {
	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)
	if cfg.Log.File != "" {
		fmt.Printf("Sending log messages to: %s\n", cfg.Log.File)
		l := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSize, // megabytes
			MaxAge:     cfg.Log.MaxAge,  // days
			MaxBackups: cfg.Log.MaxBackups,
		}
		w, closer = l, l
	}

	spaceleap.SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closer
}
