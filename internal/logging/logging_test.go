package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLevel(t *testing.T) {
	var out bytes.Buffer
	logger, err := New(&out, "warn", FormatJSON)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("option", "SO_BUSY_POLL").Msg("shown")
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"option":"SO_BUSY_POLL"`)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestNewConsole(t *testing.T) {
	var out bytes.Buffer
	logger, err := New(&out, "", FormatConsole)
	require.NoError(t, err)
	logger.Info().Msg("hello")
	assert.Contains(t, out.String(), "hello")
	assert.NotContains(t, out.String(), `{"level"`)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, "loud", FormatJSON)
	assert.Error(t, err)
	_, err = New(nil, "info", Format("xml"))
	assert.Error(t, err)
}
