// Package logger wraps zerolog for long-running components (the outbox
// relay, cleanup workers) that take a logger as a dependency instead of
// using the global one.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

type Config struct {
	Level      Level
	TimeFormat string
	// Output defaults to stdout.
	Output io.Writer
	// Console switches from JSON lines to zerolog's human-readable writer.
	Console bool
}

// Logger exposes the underlying zerolog.Logger as ZL for callers that need
// the full event API.
type Logger struct {
	ZL zerolog.Logger
}

func NewLogger(cfg *Config) *Logger {
	c := Config{Level: InfoLevel, TimeFormat: time.RFC3339, Output: os.Stdout}
	if cfg != nil {
		c.Level = cfg.Level
		c.Console = cfg.Console
		if cfg.TimeFormat != "" {
			c.TimeFormat = cfg.TimeFormat
		}
		if cfg.Output != nil {
			c.Output = cfg.Output
		}
	}

	out := c.Output
	if c.Console {
		out = zerolog.ConsoleWriter{Out: c.Output, TimeFormat: c.TimeFormat}
	}
	zl := zerolog.New(out).Level(c.Level).With().Timestamp().Logger()
	return &Logger{ZL: zl}
}

// FromSettings builds a logger from the level name and console flag found in
// configuration files.
func FromSettings(level string, console bool) *Logger {
	return NewLogger(&Config{Level: ParseLevel(level), Console: console})
}

func Nop() *Logger {
	return &Logger{ZL: zerolog.Nop()}
}

// ParseLevel falls back to info for unknown or empty names.
func ParseLevel(name string) Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return InfoLevel
	}
	return lvl
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(fields ...interface{}) *Logger {
	return &Logger{ZL: l.ZL.With().Fields(fields).Logger()}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.ZL.Debug().Fields(fields).Msg(msg)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.ZL.Info().Fields(fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.ZL.Warn().Fields(fields).Msg(msg)
}

func (l *Logger) Error(err error, msg string, fields ...interface{}) {
	l.ZL.Error().Err(err).Fields(fields).Msg(msg)
}
