// Package logging builds the process logger: a zap core exposed as a
// logr.Logger, the way controller-runtime wires it.
package logging

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Development switches to a human friendly console encoder with
	// caller information and stack traces on warnings.
	Development bool

	// Verbosity enables logr V(n) levels up to n. Zero logs Info and Error only.
	Verbosity int

	// JSON selects the JSON encoder. Ignored when Development is set.
	JSON bool

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New returns a logr.Logger backed by zap.
func New(opts Options) logr.Logger {
	return zapr.NewLogger(newZap(opts))
}

func newZap(opts Options) *zap.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	var encCfg zapcore.EncoderConfig
	if opts.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var enc zapcore.Encoder
	if opts.JSON && !opts.Development {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	// logr V(n) maps to zap level -n.
	level := zap.NewAtomicLevelAt(zapcore.Level(-clampVerbosity(opts.Verbosity)))
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)

	zopts := []zap.Option{zap.ErrorOutput(zapcore.AddSync(w))}
	if opts.Development {
		zopts = append(zopts, zap.Development(), zap.AddCaller(), zap.AddStacktrace(zapcore.WarnLevel))
	}
	return zap.New(core, zopts...)
}

func clampVerbosity(v int) int {
	if v < 0 {
		return 0
	}
	// zap levels are int8
	if v > 127 {
		return 127
	}
	return v
}
