package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoggerType(t *testing.T) {
	for in, want := range map[string]LoggerType{"": ConsoleLogger, "console": ConsoleLogger, "JSON": JSONLogger} {
		got, err := ParseLoggerType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLoggerType("xml")
	assert.Error(t, err)
}

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{LogLevel: zerolog.InfoLevel, Type: JSONLogger, Out: &buf})
	t.Cleanup(func() { Init(Options{LogLevel: zerolog.Disabled, Out: &bytes.Buffer{}}) })

	Raffle.Debug().Msg("hidden")
	Raffle.Info().Uint64("pool", 300).Msg("round settled")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "raffle", entry["component"])
	assert.Equal(t, "round settled", entry["message"])
	assert.Equal(t, float64(300), entry["pool"])
}

func TestInitConsole(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{LogLevel: zerolog.DebugLevel, Type: ConsoleLogger, Out: &buf})
	t.Cleanup(func() { Init(Options{LogLevel: zerolog.Disabled, Out: &bytes.Buffer{}}) })

	Keeper.Debug().Msg("tick")
	assert.Contains(t, buf.String(), `message: "tick"`)
	assert.Contains(t, buf.String(), `"component": "keeper"`)
}
