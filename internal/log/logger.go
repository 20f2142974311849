// Package log is the process-wide structured logger. Diagnostic output goes
// to stderr; the durable audit trail of deletions lives in package oplog.
package log

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var Logger zerolog.Logger

func init() {
	Logger = newLogger(consoleWriter(os.Stderr), zerolog.WarnLevel)
	log.Logger = Logger
}

func consoleWriter(out *os.File) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd()),
	}
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("app", "reclaim").
		Logger()
}

// Info logs an info message.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error logs an error message.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Warn logs a warning message.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Debug logs a debug message.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	SetLevel(zerolog.DebugLevel)
}

// SetVerbose switches the logger to info level.
func SetVerbose() {
	SetLevel(zerolog.InfoLevel)
}

// SetLevel changes the minimum level that is written.
func SetLevel(level zerolog.Level) {
	Logger = Logger.Level(level)
	log.Logger = Logger
}

// SetOutput redirects the logger to w as JSON lines, keeping the current level.
// Tests use it to capture output.
func SetOutput(w io.Writer) {
	Logger = newLogger(w, Logger.GetLevel())
	log.Logger = Logger
}

// ParseLevel maps a config string to a zerolog level, defaulting to warn.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.WarnLevel
	}
	return level
}
