package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"synchdb/internal/model"
)

func TestNewBindsConnectorAndDialectFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "connector.log")

	logger := New(cfg, "mysql1", model.DialectMySQL)
	assert.NotNil(t, logger)

	// Logging should not panic and should write through both cores.
	logger.Info("test message")
}

func TestLevelForMapsTaxonomyKinds(t *testing.T) {
	cases := []struct {
		kind TaxonomyKind
		want zapcore.Level
	}{
		{KindMalformedEnvelope, zapcore.WarnLevel},
		{KindUnknownDDLKind, zapcore.WarnLevel},
		{KindUnknownColumnNonFatal, zapcore.WarnLevel},
		{KindSchemaResolutionFailure, zapcore.ErrorLevel},
		{KindFatalForEvent, zapcore.ErrorLevel},
		{KindRuleFileMalformed, zapcore.FatalLevel},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, LevelFor(c.kind))
	}
}

func TestDefaultConfigUsesInfoLevel(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.True(t, cfg.Compress)
}

func TestNewWithoutFilePathOnlyUsesConsoleCore(t *testing.T) {
	cfg := DefaultConfig()
	logger := New(cfg, "mysql1", model.DialectMySQL)
	assert.NotNil(t, logger)
}
