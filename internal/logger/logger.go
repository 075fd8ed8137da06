// Package logger provides structured logging using zerolog, sent to the
// systemd journal when it is available.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/rs/zerolog"
)

const Identifier = "bluetooth-notify"

type Config struct {
	Level  string `json:"level"`
	Debug  bool   `json:"debug"`
	Output string `json:"output"` // "journal", "stdout", "stderr" or "console"
}

func DefaultConfig() *Config {
	return &Config{Level: "info", Output: "journal"}
}

// New builds a logger from config. An unknown level is an error; an
// unavailable journal silently falls back to stdout.
func New(config *Config) (zerolog.Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level := zerolog.InfoLevel
	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(output(config.Output)).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

func output(name string) io.Writer {
	switch name {
	case "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	case "console":
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	}
	if !journal.Enabled() {
		return os.Stdout
	}
	return newJournalWriter(Identifier, os.Stdout, journal.Send)
}

// WithComponent tags every record from l with a component field.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}
