// Package app provides the application context and dependency management
// for the crosswalk CLI. It centralizes configuration, logging and the
// construction of linkage clients.
package app

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/crosswalk"
	"github.com/agentstation/crosswalk/cmd/application"
	"github.com/agentstation/crosswalk/internal/prompt"
	"github.com/agentstation/crosswalk/pkg/conflict"
	"github.com/agentstation/crosswalk/pkg/errors"
)

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)

// App represents the crosswalk application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	out io.Writer

	// Prompter (lazy-initialized, shared so scripted answers are consumed once)
	mu       sync.Mutex
	prompter conflict.Prompter
	prompted bool
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		out:     os.Stdout,
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, err
		}
		app.config = config
	}

	if app.logger == nil {
		logger := NewLogger(app.config)
		app.logger = &logger
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Out is where command results are written.
func (a *App) Out() io.Writer {
	return a.out
}

// Prompter returns the scripted answers when configured, the terminal when
// stdin and stdout are terminals, and nil otherwise.
func (a *App) Prompter() (conflict.Prompter, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.prompted {
		return a.prompter, nil
	}

	switch {
	case a.config.Answers != "":
		f, err := os.Open(a.config.Answers)
		if err != nil {
			return nil, errors.WrapIO("open", a.config.Answers, err)
		}
		defer func() { _ = f.Close() }()
		s, err := prompt.ReadScript(f)
		if err != nil {
			return nil, err
		}
		a.prompter = s
	case a.config.NoPrompt:
		a.prompter = nil
	default:
		if p := prompt.Default(); p != nil {
			a.prompter = p
		}
	}
	a.prompted = true
	return a.prompter, nil
}

// Client returns a linkage client configured from the application config.
func (a *App) Client(opts ...crosswalk.Option) (crosswalk.Client, error) {
	p, err := a.Prompter()
	if err != nil {
		return nil, err
	}
	base := []crosswalk.Option{
		crosswalk.WithLogger(a.logger),
		crosswalk.WithDryRun(a.config.DryRun),
	}
	if a.config.UIDColumn != "" {
		base = append(base, crosswalk.WithUIDColumn(a.config.UIDColumn))
	}
	if p != nil {
		base = append(base, crosswalk.WithPrompter(p))
	}
	return crosswalk.New(append(base, opts...)...)
}

// Shutdown performs graceful shutdown of the application.
func (a *App) Shutdown(_ context.Context) error {
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithOutput sets where command results are written.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}
