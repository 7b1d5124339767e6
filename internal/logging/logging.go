package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide zap logger. Glance is a terminal
// application: the default sink is a file (so structured logs never
// race with the rendered UI on stdout/stderr), with level controlled by
// verbose.
func New(logPath string, verbose bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "json"
	if logPath != "" {
		cfg.OutputPaths = []string{logPath}
		cfg.ErrorOutputPaths = []string{logPath}
	} else {
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// AsLogr adapts a zap.Logger to the logr.Logger interface so components
// written against the logr abstraction (e.g. library code imported from
// the wider ecosystem) can share Glance's sink and level.
func AsLogr(z *zap.Logger) logr.Logger {
	return zapr.NewLogger(z)
}

// Log emits a structured event at the given level using the Fields
// builder, the shape every component in this module uses to talk to the
// logger instead of building zap.Field slices by hand at each call site.
func Log(logger *zap.Logger, level zapcore.Level, msg string, fields Fields) {
	if ce := logger.Check(level, msg); ce != nil {
		ce.Write(fields.ToZap()...)
	}
}

func Info(logger *zap.Logger, msg string, fields Fields)  { Log(logger, zapcore.InfoLevel, msg, fields) }
func Warn(logger *zap.Logger, msg string, fields Fields)  { Log(logger, zapcore.WarnLevel, msg, fields) }
func Debug(logger *zap.Logger, msg string, fields Fields) { Log(logger, zapcore.DebugLevel, msg, fields) }
func Error(logger *zap.Logger, msg string, fields Fields) { Log(logger, zapcore.ErrorLevel, msg, fields) }
