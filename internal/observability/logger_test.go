// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kvasirlabs/gatewright/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Tests in this package mutate global logger state and must not run in
// parallel.

func configFor(level, format string) config.LoggerConfig {
	return config.LoggerConfig{
		Level:       level,
		Format:      format,
		ServiceName: "gatewright",
	}
}

func initTestLogger(t *testing.T, level, format string) (*zap.Logger, *bytes.Buffer) {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &bytes.Buffer{}
	Initialize(configFor(level, format), zapcore.AddSync(buf))
	return GetLogger(), buf
}

func TestInitialize_JSONOutputCarriesFields(t *testing.T) {
	logger, buf := initTestLogger(t, "info", "json")

	logger.Info("install committed", zap.String("root", "/tmp/demo"), zap.Int("written", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "install committed", entry["msg"])
	assert.Equal(t, "/tmp/demo", entry["root"])
	assert.EqualValues(t, 3, entry["written"])
	assert.Equal(t, "gatewright", entry["logger"])
}

func TestInitialize_LevelFiltering(t *testing.T) {
	logger, buf := initTestLogger(t, "warn", "json")

	logger.Info("should be dropped")
	logger.Warn("should be kept")

	out := buf.String()
	assert.NotContains(t, out, "should be dropped")
	assert.Contains(t, out, "should be kept")
}

func TestInitialize_InvalidLevelFallsBackToInfo(t *testing.T) {
	logger, buf := initTestLogger(t, "shouting", "json")

	logger.Debug("debug suppressed at info")
	logger.Info("info visible")

	out := buf.String()
	assert.NotContains(t, out, "debug suppressed at info")
	assert.Contains(t, out, "info visible")
}

func TestInitialize_ConsoleFormatIsSingleLine(t *testing.T) {
	logger, buf := initTestLogger(t, "info", "console")

	logger.Named("installer").Info("wrote artifact")

	out := strings.TrimRight(buf.String(), "\n")
	assert.NotContains(t, out, "\n", "console entries are single-line")
	assert.Contains(t, out, "gatewright.installer.")
	assert.Contains(t, out, "wrote artifact")
}

func TestInitialize_OnlyFirstCallWins(t *testing.T) {
	_, buf := initTestLogger(t, "info", "json")

	second := &bytes.Buffer{}
	Initialize(configFor("debug", "json"), zapcore.AddSync(second))

	GetLogger().Info("routed to first writer")
	assert.Contains(t, buf.String(), "routed to first writer")
	assert.Empty(t, second.String())
}

func TestGetLogger_FallbackBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
}

func TestSync_NoopWithoutLogger(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	// Must not panic or print when nothing was initialized.
	Sync()
}
