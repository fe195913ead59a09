// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/robot-order-cli/internal/config"
)

func TestInitialize(t *testing.T) {
	t.Run("console logger colorizes levels", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "robot-order",
			Colors:      config.ColorConfig{Info: "green"},
		}, zapcore.AddSync(&buf))

		GetLogger().Named("runner").Info("Order submitted.", zap.String("order", "7"))
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, colorGreen, "info level should be colorized green")
		assert.Contains(t, output, colorReset)
		assert.Contains(t, output, "robot-order.runner.")
		assert.Contains(t, output, "Order submitted.")
		assert.Contains(t, output, `"order": "7"`)
	})

	t.Run("json logger emits parseable entries", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "json-test"}, zapcore.AddSync(&buf))
		GetLogger().Warn("Banner visible.", zap.Int("attempt", 2))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "json-test", entry["logger"])
		assert.Equal(t, "Banner visible.", entry["msg"])
		assert.EqualValues(t, 2, entry["attempt"])
	})

	t.Run("level filtering and invalid level fallback", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{Level: "not-a-level", Format: "json"}, zapcore.AddSync(&buf))
		logger := GetLogger()
		logger.Debug("hidden")
		logger.Info("shown")
		Sync()

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("only the first initialization wins", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		var first, second bytes.Buffer

		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&first))
		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&second))
		GetLogger().Info("once")
		Sync()

		assert.Contains(t, first.String(), "once")
		assert.Empty(t, second.String())
	})
}

func TestNewLogger_WritesRotatingFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "robot-order.log")
	var console bytes.Buffer

	logger := NewLogger(config.LoggerConfig{
		Level:      "info",
		Format:     "console",
		LogFile:    logFile,
		MaxSize:    1,
		MaxBackups: 1,
	}, zapcore.AddSync(&console))
	logger.Info("Archive created.", zap.String("path", "output/receipts.zip"))
	_ = logger.Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry), "file sink is always JSON")
	assert.Equal(t, "Archive created.", entry["msg"])
	assert.Equal(t, "output/receipts.zip", entry["path"])
	assert.Contains(t, console.String(), "Archive created.")
}

func TestGetLogger_FallbackBeforeInit(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Info("fallback works") })
}
