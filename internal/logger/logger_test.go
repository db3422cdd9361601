package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.DebugLevel, logger.ParseLevel("debug"))
	assert.Equal(t, logger.InfoLevel, logger.ParseLevel("INFO"))
	assert.Equal(t, logger.WarnLevel, logger.ParseLevel("warning"))
	assert.Equal(t, logger.ErrorLevel, logger.ParseLevel("error"))
	assert.Equal(t, logger.WarnLevel, logger.ParseLevel("bogus"))
}

func TestComponentLogger(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)
	t.Cleanup(func() { logger.SetLogLevel(logger.WarnLevel) })

	var buf bytes.Buffer
	log := logger.New(&buf).With("detector")
	log.Info().Str("sensor", "Temperature").Msg("range checked")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "detector", entry["component"])
	assert.Equal(t, "Temperature", entry["sensor"])
	assert.Equal(t, "range checked", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestErrorWithCode(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)
	t.Cleanup(func() { logger.SetLogLevel(logger.WarnLevel) })

	var buf bytes.Buffer
	err := errors.New().WithData(errors.ErrInvalidPolicy, "drop-sideways")
	logger.New(&buf).ErrorWithCode(err).Msg("config rejected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "invalid_policy", entry["error_code"])
	assert.Equal(t, "Invalid overflow policy: drop-sideways", entry["error_message"])
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.Nop().With("x").Error().Msg("ignored")
	})
}
