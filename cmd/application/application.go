// Package application provides the application interface for crosswalk
// commands.
//
// Commands accept an Application rather than the concrete App so they can be
// tested with a Mock:
//
//	mock := &application.Mock{
//	    ClientFunc: func(opts ...crosswalk.Option) (crosswalk.Client, error) {
//	        return crosswalk.New(opts...)
//	    },
//	}
//	cmd := link.NewCommand(mock)
package application

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/agentstation/crosswalk"
	"github.com/agentstation/crosswalk/pkg/conflict"
)

// Application provides what commands need from the application.
type Application interface {
	// Client returns a linkage client configured from the application
	// config. Options are applied after the configured ones.
	Client(opts ...crosswalk.Option) (crosswalk.Client, error)

	// Prompter returns who answers manual conflict decisions, or nil when
	// nobody can.
	Prompter() (conflict.Prompter, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml, csv).
	OutputFormat() string

	// Out is where command results are written.
	Out() io.Writer

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}

// Mock is an Application for tests. Nil funcs fall back to zero values.
type Mock struct {
	ClientFunc   func(opts ...crosswalk.Option) (crosswalk.Client, error)
	PrompterFunc func() conflict.Prompter
	LoggerFunc   func() *zerolog.Logger
	Format       string
	Writer       io.Writer
	VersionInfo  string
}

var _ Application = (*Mock)(nil)

// Client implements Application.
func (m *Mock) Client(opts ...crosswalk.Option) (crosswalk.Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc(opts...)
	}
	base := []crosswalk.Option{crosswalk.WithLogger(m.Logger())}
	if m.PrompterFunc != nil {
		base = append(base, crosswalk.WithPrompter(m.PrompterFunc()))
	}
	return crosswalk.New(append(base, opts...)...)
}

// Prompter implements Application.
func (m *Mock) Prompter() (conflict.Prompter, error) {
	if m.PrompterFunc != nil {
		return m.PrompterFunc(), nil
	}
	return nil, nil
}

// Logger implements Application.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat implements Application.
func (m *Mock) OutputFormat() string { return m.Format }

// Out implements Application.
func (m *Mock) Out() io.Writer {
	if m.Writer != nil {
		return m.Writer
	}
	return io.Discard
}

// Version implements Application.
func (m *Mock) Version() string { return m.VersionInfo }

// Commit implements Application.
func (m *Mock) Commit() string { return "" }

// Date implements Application.
func (m *Mock) Date() string { return "" }

// BuiltBy implements Application.
func (m *Mock) BuiltBy() string { return "" }
