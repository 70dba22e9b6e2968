// Package crosswalk links independently sourced batches of records into one
// canonical reference table with dense, stable Entity IDs.
//
// A Client runs the stages of the engine against delimited files: it resolves
// conflicts inside a fresh batch, seeds or loads the canonical table, replays
// a battery of merge criteria, folds the batch in, and writes the canonical
// table, the crosswalk, a profile and a merge report.
//
// Example usage:
//
//	cw, err := crosswalk.New(crosswalk.WithPrompter(prompt.Default()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cw.OnFolded(func(r reference.FoldReport) {
//	    log.Printf("folded %s: %d new entities", r.Batch, r.Minted)
//	})
//
//	p, err := plan.Load("plans/2019-roster.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := cw.Link(ctx, p)
package crosswalk

import (
	"context"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/agentstation/crosswalk/pkg/aggregate"
	"github.com/agentstation/crosswalk/pkg/conflict"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/plan"
	"github.com/agentstation/crosswalk/pkg/reference"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Client runs linkage stages.
type Client interface {
	// Resolve assigns provisional IDs within one batch
	Resolve(ctx context.Context, t *table.Table, opts conflict.Options) (*conflict.Result, error)

	// Seed builds a canonical table from a first batch
	Seed(ctx context.Context, t *table.Table, idCol string) (*reference.State, error)

	// Link runs a plan end to end
	Link(ctx context.Context, p *plan.Plan) (*Result, error)

	// Profile collapses a canonical table to one row per entity
	Profile(ctx context.Context, canonical *table.Table, specs ...aggregate.Spec) (*table.Table, error)

	// Consolidate merges entities in a canonical table file
	Consolidate(ctx context.Context, path string, idCols []string, pairs []reference.Pair) (map[int64]int64, error)

	// Hooks provides access to event callback registration
	Hooks
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options
	hooks   *hooks
}

// New creates a new Client with the given options.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}
	return &client{options: o, hooks: newHooks()}, nil
}

// ctx attaches the configured logger.
func (c *client) ctx(ctx context.Context) context.Context {
	if c.options.logger != nil {
		return logging.WithLogger(ctx, c.options.logger)
	}
	return ctx
}

func (c *client) logger(ctx context.Context) *zerolog.Logger {
	return logging.FromContext(c.ctx(ctx))
}

func (c *client) now() utc.Time {
	return c.options.clock()
}

// Resolve runs the conflict resolver. The configured prompter answers Manual
// decisions unless opts carries its own.
func (c *client) Resolve(ctx context.Context, t *table.Table, opts conflict.Options) (*conflict.Result, error) {
	if opts.Prompter == nil {
		opts.Prompter = c.options.prompter
	}
	res, err := conflict.Resolve(c.ctx(ctx), t, opts)
	if err != nil {
		return nil, err
	}
	c.hooks.triggerResolved(res.Report)
	return res, nil
}

// Seed mints one Entity ID per distinct idCol value.
func (c *client) Seed(ctx context.Context, t *table.Table, idCol string) (*reference.State, error) {
	return reference.Seed(c.ctx(ctx), t, idCol, c.options.uidColumn)
}

// Profile aggregates canonical rows by Entity ID.
func (c *client) Profile(ctx context.Context, canonical *table.Table, specs ...aggregate.Spec) (*table.Table, error) {
	return aggregate.Aggregate(c.ctx(ctx), canonical, c.options.uidColumn, specs...)
}
