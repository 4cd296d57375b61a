package main

import (
	"github.com/jensneuse/abstractlogger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) (abstractlogger.Logger, func(), error) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, errors.Wrapf(err, "log level %q", level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, errors.Wrap(err, "build logger")
	}
	sync := func() { _ = logger.Sync() }
	return abstractlogger.NewZapLogger(logger, abstractLevel(zl)), sync, nil
}

func abstractLevel(l zapcore.Level) abstractlogger.Level {
	switch {
	case l <= zapcore.DebugLevel:
		return abstractlogger.DebugLevel
	case l == zapcore.InfoLevel:
		return abstractlogger.InfoLevel
	case l == zapcore.WarnLevel:
		return abstractlogger.WarnLevel
	}
	return abstractlogger.ErrorLevel
}
