package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	require.Equal(t, zerolog.WarnLevel, ParseLevel(" WARNING "))
	require.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestValidLevel(t *testing.T) {
	require.True(t, ValidLevel("info"))
	require.False(t, ValidLevel("trace"))
}

func TestWithComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", &buf)
	t.Cleanup(func() { InitWithWriter("info", &bytes.Buffer{}) })

	WithComponent("ipc").Info().Msg("connected")

	require.Contains(t, buf.String(), `"component":"ipc"`)
	require.Contains(t, buf.String(), `"message":"connected"`)
}

func TestInitFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", &buf)
	t.Cleanup(func() { InitWithWriter("info", &bytes.Buffer{}) })

	WithComponent("dimmer").Info().Msg("hidden")
	WithComponent("dimmer").Warn().Msg("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}
