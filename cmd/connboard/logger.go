package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/connboard/internal/config"
	"github.com/hylla/connboard/internal/platform"
)

// runtimeLogger writes command events to the console and, in dev mode, to a daily
// logfmt file.
type runtimeLogger struct {
	console *charmLog.Logger
	file    *charmLog.Logger
	closer  io.Closer
	devLog  string
	muted   bool
}

// newRuntimeLogger builds the console sink and, when dev mode and dev_file are both
// on, the file sink named by paths.
func newRuntimeLogger(stderr io.Writer, devMode bool, cfg config.LoggingConfig, paths platform.Paths, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if now == nil {
		now = time.Now
	}

	logger := &runtimeLogger{console: newSink(stderr, level, paths.AppName, charmLog.TextFormatter)}
	if !devMode || !cfg.DevFile.Enabled {
		return logger, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working dir: %w", err)
	}
	logger.devLog = paths.DevLogFile(cfg.DevFile.Dir, cwd, now().UTC())
	if err := os.MkdirAll(filepath.Dir(logger.devLog), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	f, err := os.OpenFile(logger.devLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}
	logger.file = newSink(f, level, paths.AppName, charmLog.LogfmtFormatter)
	logger.closer = f
	return logger, nil
}

func newSink(w io.Writer, level charmLog.Level, prefix string, formatter charmLog.Formatter) *charmLog.Logger {
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	})
}

// Console is the sink handed to components that log on their own.
func (l *runtimeLogger) Console() *charmLog.Logger {
	if l == nil || l.console == nil {
		return charmLog.New(io.Discard)
	}
	return l.console
}

// DevLogPath is empty unless a dev file is open.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Mute stops console output; the dev file keeps receiving events.
func (l *runtimeLogger) Mute() {
	if l != nil {
		l.muted = true
	}
}

func (l *runtimeLogger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *runtimeLogger) log(level charmLog.Level, msg string, keyvals ...any) {
	if l == nil {
		return
	}
	if !l.muted && l.console != nil {
		l.console.Log(level, msg, keyvals...)
	}
	if l.file != nil {
		l.file.Log(level, msg, keyvals...)
	}
}

func (l *runtimeLogger) Debug(msg string, keyvals ...any) { l.log(charmLog.DebugLevel, msg, keyvals...) }
func (l *runtimeLogger) Info(msg string, keyvals ...any) { l.log(charmLog.InfoLevel, msg, keyvals...) }
func (l *runtimeLogger) Warn(msg string, keyvals ...any) { l.log(charmLog.WarnLevel, msg, keyvals...) }
func (l *runtimeLogger) Error(msg string, keyvals ...any) { l.log(charmLog.ErrorLevel, msg, keyvals...) }
