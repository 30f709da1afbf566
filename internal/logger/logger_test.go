package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "debug")

	logger.Component("history").Info().Str("page", "/home").Msg("snapshot saved")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "history", line["component"])
	assert.Equal(t, "/home", line["page"])
	assert.Equal(t, "snapshot saved", line["message"])
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "info")

	err := errors.New().New(errors.ErrOpenStorage)
	logger.ErrorWithCode(err).Msg("startup failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "open_storage_failed", line["error_code"])
	assert.Equal(t, "Failed to open storage", line["error_message"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "warning")

	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
