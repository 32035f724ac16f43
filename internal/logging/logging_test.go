package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Setup("warn", "json", &buf)
	l.Info().Msg("hidden")
	l.Warn().Str("source", "a.csv").Msg("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "a.csv", entry["source"])
	assert.Equal(t, "visible", entry["message"])
}

func TestSetupText(t *testing.T) {
	var buf bytes.Buffer
	l := Setup("info", "text", &buf)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), Setup("debug", "json", &buf))
	FromContext(ctx).Debug().Msg("from ctx")
	assert.Contains(t, buf.String(), "from ctx")

	// A bare context yields a usable no-op logger.
	FromContext(context.Background()).Info().Msg("dropped")
}
