// Package logging configures zerolog for the CLI and HTTP server.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds a logger writing to w (stderr when nil).
// format is "json" or "text"; level is debug|info|warn|error, defaulting to info.
func Setup(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if strings.EqualFold(format, "text") || format == "" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: !isTerminal(w)}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown names yield info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

// FromContext returns the logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
