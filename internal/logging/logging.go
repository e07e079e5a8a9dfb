// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the application-wide zap logger.
//
// The TUI owns stdout/stderr, so log output goes to a file under the
// application data directory. Best-effort subsystems (persistence, the
// fire-and-forget session calls) log their failures here and never
// surface them to the user.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// nop is the fallback until Init succeeds, so callers never nil-check.
var logger = zap.NewNop()

// Init opens the log file under dir and installs the global logger.
// A failure to open the file leaves the no-op logger in place; logging
// is best-effort by design.
func Init(dir string, debug bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, "premiumchat.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(f),
		level,
	)

	logger = zap.New(core)
	return nil
}

// L returns the current logger.
func L() *zap.Logger {
	return logger
}

// Sync flushes buffered log entries. Safe to call on the no-op logger.
func Sync() {
	_ = logger.Sync()
}
