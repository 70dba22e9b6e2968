package crosswalk

import (
	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/agentstation/crosswalk/pkg/conflict"
	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/errors"
)

// Option is a function that configures a Client.
type Option func(*options) error

type options struct {
	logger    *zerolog.Logger
	prompter  conflict.Prompter
	uidColumn string
	dryRun    bool
	clock     func() utc.Time
}

func defaults() *options {
	return &options{
		uidColumn: constants.DefaultUIDColumn,
		clock:     utc.Now,
	}
}

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithLogger routes engine logs to logger instead of the default logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithPrompter configures who answers Manual conflict decisions. Without one
// the resolver applies the fallback policy.
func WithPrompter(p conflict.Prompter) Option {
	return func(o *options) error {
		o.prompter = p
		return nil
	}
}

// WithUIDColumn names the Entity ID column of seeded tables and profiles.
func WithUIDColumn(name string) Option {
	return func(o *options) error {
		if name == "" {
			return errors.NewValidationError("uid_column", name, "must not be empty")
		}
		o.uidColumn = name
		return nil
	}
}

// WithDryRun runs every stage but writes no files.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}

// WithClock replaces utc.Now for run timestamps.
func WithClock(now func() utc.Time) Option {
	return func(o *options) error {
		if now == nil {
			return errors.NewValidationError("clock", nil, "must not be nil")
		}
		o.clock = now
		return nil
	}
}
