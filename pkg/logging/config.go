package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/crosswalk/pkg/constants"
)

// Config holds logger configuration options
type Config struct {
	// Level is the minimum log level to output
	Level string

	// Format is json, console or auto (console on a terminal)
	Format string

	// Output is stderr, stdout, discard, or a file path that is appended to
	Output string

	// TimeFormat is kitchen, rfc3339, rfc3339nano, stamp, unix or a Go layout
	TimeFormat string

	// NoColor disables color output in console mode
	NoColor bool

	// AddCaller includes file:line in log output
	AddCaller bool

	// Fields are attached to every entry, e.g. a site or operator name
	Fields map[string]any
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "auto",
		Output:     "stderr",
		TimeFormat: "kitchen",
		NoColor:    os.Getenv("NO_COLOR") != "",
		Fields:     make(map[string]any),
	}
}

// ConfigFromEnv builds a Config from CROSSWALK_LOG_* variables, falling back
// to the unprefixed LOG_* names. DEBUG=1 stands in for LOG_LEVEL=debug.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.Level = envOr("LOG_LEVEL", cfg.Level)
	if envOr("LOG_LEVEL", "") == "" && os.Getenv("DEBUG") != "" {
		cfg.Level = "debug"
	}
	cfg.Format = envOr("LOG_FORMAT", cfg.Format)
	cfg.Output = envOr("LOG_OUTPUT", cfg.Output)
	cfg.TimeFormat = envOr("LOG_TIME_FORMAT", cfg.TimeFormat)
	cfg.AddCaller = envOr("LOG_CALLER", "") == "true"
	for _, pair := range strings.Split(envOr("LOG_FIELDS", ""), ",") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			cfg.Fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return cfg
}

// NewLoggerFromConfig creates a new logger from configuration. It also sets
// the zerolog global level.
func NewLoggerFromConfig(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(writerFor(cfg)).Level(level).With().Timestamp()
	if cfg.AddCaller || level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	if len(cfg.Fields) > 0 {
		ctx = ctx.Fields(cfg.Fields)
	}
	return ctx.Logger()
}

// Configure replaces the default logger with one built from cfg.
func Configure(cfg *Config) {
	SetDefault(NewLoggerFromConfig(cfg))
}

func writerFor(cfg *Config) io.Writer {
	var out io.Writer = os.Stderr
	terminal := stderrIsTerminal()
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
	case "stdout":
		out, terminal = os.Stdout, false
	case "discard", "none":
		return io.Discard
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
		if err == nil {
			out, terminal = file, false
		}
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
	case "", "auto":
		if !terminal {
			return out
		}
	default:
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: parseTimeFormat(cfg.TimeFormat),
		NoColor:    cfg.NoColor,
	}
}

// parseLevel accepts zerolog level names plus warning and off. Unknown
// names fall back to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "warning":
		return zerolog.WarnLevel
	case "off", "none":
		return zerolog.Disabled
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

var timeFormats = map[string]string{
	"kitchen":     time.Kitchen,
	"rfc3339":     time.RFC3339,
	"rfc3339nano": time.RFC3339Nano,
	"stamp":       time.Stamp,
	"unix":        "",
	"epoch":       "",
}

func parseTimeFormat(format string) string {
	if layout, ok := timeFormats[strings.ToLower(format)]; ok {
		return layout
	}
	if strings.Contains(format, "2006") || strings.Contains(format, "15:04") {
		return format
	}
	return time.Kitchen
}
