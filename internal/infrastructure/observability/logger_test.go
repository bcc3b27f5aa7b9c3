package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{" Debug ", zerolog.DebugLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestInitLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("warn", LogFormatJSON, &buf)

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestComponentAndInstanceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("info", LogFormatJSON, &buf)
	logger = WithInstance(logger, "event-manager", "node-1")
	logger = Component(logger, "dispatcher")

	logger.Info().Msg("tick")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dispatcher", line["component"])
	assert.Equal(t, "event-manager", line["service"])
	assert.Equal(t, "node-1", line["instance_id"])
	assert.Equal(t, "tick", line["message"])
	assert.Contains(t, line, "time")
	assert.Contains(t, line, "caller")
}

func TestInitLogger_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("info", LogFormatConsole, &buf)

	logger.Info().Int64("event_id", 7).Msg("Event transitioned")

	out := buf.String()
	assert.Contains(t, out, "Event transitioned")
	assert.Contains(t, out, "event_id=7")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
