package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chainstack-provider/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := newLogger(config.LoggerConfig{Level: "warn", Encoding: "json"}, &buf)
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("Provider throttled", zap.String("service", "ChainstackProvider"))
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "Provider throttled", entry["msg"])
	assert.Equal(t, "ChainstackProvider", entry["service"])
	assert.Contains(t, entry, "timestamp")
	assert.Contains(t, entry, "caller")
}

func TestNewLogger_Console(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := newLogger(config.LoggerConfig{Level: "debug", Encoding: "console"}, &buf)
	require.NoError(t, err)

	log.Debug("probe finished")
	assert.Contains(t, buf.String(), "probe finished")
	assert.Contains(t, buf.String(), "debug")
}

func TestNewLogger_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(config.LoggerConfig{Level: "loud", Encoding: "json"})
	require.Error(t, err)

	_, err = NewLogger(config.LoggerConfig{Level: "info", Encoding: "xml"})
	require.Error(t, err)
}
