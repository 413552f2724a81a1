// Package logging implements C14: the structured logger every worker
// component logs through. Grounded on the pack's pingcap-style usage of
// go.uber.org/zap (e.g. ti-chi-bot-tiflow/cdc/redo/manager.go logs
// through a *zap.Logger with structured zap.Field arguments rather than
// printf) plus lumberjack-backed file rotation, the same combination
// pingcap/log wires internally and that this expansion promotes to a
// direct dependency (SPEC_FULL.md §4.10).
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"synchdb/internal/model"
)

// Config controls where and at what level a connector's logger writes.
type Config struct {
	// FilePath is the rotated log file's path. Empty disables file output.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Level is the minimum level written to both sinks.
	Level zapcore.Level
}

// DefaultConfig mirrors lumberjack's own documented defaults, scaled
// down for a per-connector log (the teacher's smf has no long-running
// process to rotate logs for, so these are new rather than inherited).
func DefaultConfig() Config {
	return Config{
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
		Compress:   true,
		Level:      zapcore.InfoLevel,
	}
}

// New builds a *zap.Logger for one connector with {connector, dialect}
// fields pre-bound via With, per SPEC_FULL.md §4.10 ("threaded explicitly
// through every component constructor ... fields pre-bound").
func New(cfg Config, connectorName string, dialect model.SourceDialect) *zap.Logger {
	cores := []zapcore.Core{consoleCore(cfg)}
	if cfg.FilePath != "" {
		cores = append(cores, fileCore(cfg))
	}
	logger := zap.New(zapcore.NewTee(cores...))
	return logger.With(
		zap.String("connector", connectorName),
		zap.String("dialect", string(dialect)),
	)
}

func consoleCore(cfg Config) zapcore.Core {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(zapcore.AddSync(os.Stdout)), cfg.Level)
}

func fileCore(cfg Config) zapcore.Core {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	writer := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(writer), cfg.Level)
}

// LevelFor maps one of the §7 error-taxonomy kinds to its zap level, per
// SPEC_FULL.md §4.10's table.
type TaxonomyKind int

const (
	KindMalformedEnvelope TaxonomyKind = iota
	KindUnknownDDLKind
	KindUnknownColumnNonFatal
	KindSchemaResolutionFailure
	KindFatalForEvent
	KindRuleFileMalformed
)

func LevelFor(kind TaxonomyKind) zapcore.Level {
	switch kind {
	case KindMalformedEnvelope, KindUnknownDDLKind, KindUnknownColumnNonFatal:
		return zapcore.WarnLevel
	case KindSchemaResolutionFailure, KindFatalForEvent:
		return zapcore.ErrorLevel
	case KindRuleFileMalformed:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Log writes one event at the level its taxonomy kind maps to. Fatal
// entries still go through zap.Logger.Fatal, which calls os.Exit after
// writing — matching §7's "process exits before the worker loop starts."
func Log(logger *zap.Logger, kind TaxonomyKind, msg string, fields ...zap.Field) {
	switch LevelFor(kind) {
	case zapcore.WarnLevel:
		logger.Warn(msg, fields...)
	case zapcore.ErrorLevel:
		logger.Error(msg, fields...)
	case zapcore.FatalLevel:
		logger.Fatal(msg, fields...)
	default:
		logger.Info(msg, fields...)
	}
}
