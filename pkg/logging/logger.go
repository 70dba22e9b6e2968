// Package logging provides structured logging for crosswalk using zerolog.
// Console output is used when stderr is a terminal and JSON otherwise, so a
// linkage run piped into a file produces machine-readable audit lines.
//
// Example usage:
//
//	log := logging.Default()
//	log.Info().Str("batch", "clinic_2024").Int("rows", 812).Msg("Batch attached")
//
//	ctx := logging.WithBatch(context.Background(), "clinic_2024")
//	logging.FromContext(ctx).Debug().Msg("Applying criteria battery")
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// defaultLogger is configured from the environment at startup.
var defaultLogger = NewLoggerFromConfig(ConfigFromEnv())

// Default returns the default global logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault sets the default global logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// New creates a new logger with the given writer.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(zerolog.GlobalLevel()).
		With().
		Timestamp().
		Logger()
}

// Debug starts a new debug level log event.
func Debug() *zerolog.Event {
	return defaultLogger.Debug()
}

// Info starts a new info level log event.
func Info() *zerolog.Event {
	return defaultLogger.Info()
}

// Warn starts a new warning level log event.
func Warn() *zerolog.Event {
	return defaultLogger.Warn()
}

// Error starts a new error level log event.
func Error() *zerolog.Event {
	return defaultLogger.Error()
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// envOr looks up CROSSWALK_<key> first and then the bare key.
func envOr(key, fallback string) string {
	if v := os.Getenv("CROSSWALK_" + key); v != "" {
		return v
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
