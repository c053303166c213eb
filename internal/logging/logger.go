// Package logging builds the zap logger shared by the CLI and services.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/molluscomics/seqfetch/internal/platform"
)

// LogFilePermissions is the mode of a newly created log file
const LogFilePermissions = 0o644

// Options controls logger construction
type Options struct {
	// Verbose lowers the console level to debug.
	Verbose bool
	// Console receives human-readable output; nil means os.Stderr.
	Console io.Writer
}

// New returns a console logger. The returned cleanup syncs it.
func New(opts Options) (*zap.Logger, func(), error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.TimeKey = ""
	consoleCfg.CallerKey = ""
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(zapcore.AddSync(console)), level)

	logger := zap.New(core)
	return logger, func() { _ = logger.Sync() }, nil
}

// WithFile tees logger into a JSON file core at debug level, appending to
// path. The returned cleanup syncs the logger and closes the file.
func WithFile(logger *zap.Logger, path string) (*zap.Logger, func(), error) {
	if err := platform.CreateDirectoryIfNotExists(filepath.Dir(path)); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, LogFilePermissions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fileCfg := zap.NewProductionEncoderConfig()
	fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), zapcore.DebugLevel)

	teed := logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
	cleanup := func() {
		_ = teed.Sync()
		_ = f.Close()
	}
	return teed, cleanup, nil
}
