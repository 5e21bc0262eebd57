// Package logging builds the process zap logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared across packages.
const (
	FieldRunID   = "run_id"
	FieldChannel = "channel_id"
	FieldTitle   = "title"
	FieldPhase   = "phase"
)

// Options describes logger construction parameters.
type Options struct {
	Verbosity int    // count of -v flags
	Format    string // "console" (default) or "json"
	Output    io.Writer
}

// LevelFromVerbosity maps the -v count to a level: none or one -v is info,
// two or more is debug.
func LevelFromVerbosity(v int) zapcore.Level {
	if v >= 2 {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// New constructs the logger. Output defaults to stderr so stdout stays free for
// command output such as channel tables.
func New(opts Options) (*zap.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if isTerminal(out) {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encCfg.EncodeName = zapcore.FullNameEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), LevelFromVerbosity(opts.Verbosity))
	return zap.New(Redact(core), zap.AddCaller()), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
