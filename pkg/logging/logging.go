// Package logging wires zerolog the way the teacher repo does: a
// console-pretty writer during development, rotated JSON files in
// production via lumberjack, and a context-scoped helper for attaching
// request/job-scoped fields.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey struct{}

// New builds the root logger. When logFile is empty, output goes to a
// console writer on stderr; otherwise it rotates through lumberjack.
func New(logFile string, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
	} else if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// WithLogger attaches a logger to ctx so downstream calls can pull a
// request/job-scoped logger without threading it through every signature.
func WithLogger(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger attached via WithLogger, falling back to
// the global zerolog logger when none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return log
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
