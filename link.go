package crosswalk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentstation/crosswalk/internal/report"
	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/plan"
	"github.com/agentstation/crosswalk/pkg/reference"
	"github.com/agentstation/crosswalk/pkg/table"
	"github.com/agentstation/crosswalk/pkg/tableio"
)

// Result is what a Link run produced.
type Result struct {
	// State is the final engine state.
	State *reference.State
	// Batch is the batch as linked, with its ID column.
	Batch *table.Table
	// Crosswalk maps every batch row to its Entity ID.
	Crosswalk *table.Table
	// Profile holds one row per entity when the plan asks for one.
	Profile *table.Table
	// Seeded is set when the run created the canonical table.
	Seeded bool
	// Run summarizes the run for reports.
	Run report.Run
}

// Link runs p: it reads the batch, resolves its conflicts when p has a
// conflict section, seeds the canonical table or links the batch against
// it, and writes every output p names. The canonical table is locked for the
// whole run.
func (c *client) Link(ctx context.Context, p *plan.Plan) (*Result, error) {
	started := c.now()
	ctx = logging.WithBatch(c.ctx(ctx), p.BatchName())
	ctx = logging.WithRunID(ctx, p.BatchName()+"-"+started.Time.Format("20060102T150405"))
	logger := logging.FromContext(ctx)
	res := &Result{Run: report.Run{Batch: p.BatchName(), Plan: p.Source, Started: started}}

	if !c.options.dryRun {
		if err := os.MkdirAll(filepath.Dir(p.Canonical), constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", filepath.Dir(p.Canonical), err)
		}
		lock, err := tableio.Acquire(p.Canonical)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn().Err(err).Msg("Failed to release canonical lock")
			}
		}()
	}

	batch, err := c.readBatch(ctx, p, res)
	if err != nil {
		return nil, err
	}
	res.Batch = batch

	canonical, err := tableio.ReadFile(p.Canonical, tableio.Options{})
	switch {
	case errors.IsNotFound(err):
		err = c.seedRun(ctx, p, res)
	case err != nil:
		return nil, err
	default:
		err = c.linkRun(ctx, p, canonical, res)
	}
	if err != nil {
		return nil, err
	}

	if len(p.Profile) > 0 {
		specs, err := p.ProfileSpecs()
		if err != nil {
			return nil, err
		}
		ctx := logging.WithStage(ctx, "profile")
		if res.Profile, err = aggregateProfile(ctx, res.State, specs); err != nil {
			return nil, err
		}
	}

	res.Run.Entities = entityCount(res.State)
	if err := c.writeOutputs(ctx, p, res); err != nil {
		return nil, err
	}
	res.Run.Finished = c.now()
	logger.Info().
		Bool("seeded", res.Seeded).
		Int("entities", res.Run.Entities).
		Dur("elapsed", res.Run.Finished.Time.Sub(res.Run.Started.Time)).
		Msg("Run complete")
	return res, nil
}

// readBatch reads the batch file and assigns its ID column.
func (c *client) readBatch(ctx context.Context, p *plan.Plan, res *Result) (*table.Table, error) {
	batch, err := tableio.ReadFile(p.Batch.Path, p.ReadOptions())
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().
		Str("path", p.Batch.Path).
		Int("rows", batch.Len()).
		Msg("Batch read")

	if p.Conflict == nil {
		if err := batch.Require("batch", p.Batch.IDColumn); err != nil {
			return nil, err
		}
		return batch, nil
	}
	opts, err := p.ConflictOptions(nil)
	if err != nil {
		return nil, err
	}
	resolved, err := c.Resolve(logging.WithStage(ctx, "resolve"), batch, opts)
	if err != nil {
		return nil, err
	}
	res.Run.Conflict = &resolved.Report
	return resolved.Table, nil
}

// seedRun starts the canonical table from the batch.
func (c *client) seedRun(ctx context.Context, p *plan.Plan, res *Result) error {
	ctx = logging.WithStage(ctx, "seed")
	s, err := reference.Seed(ctx, res.Batch, p.Batch.IDColumn, p.UIDColumn)
	if err != nil {
		return err
	}
	res.State = s
	res.Seeded = true
	res.Crosswalk = s.Canonical()
	return nil
}

// linkRun attaches the batch to the stored canonical table, replays the
// criteria and folds the batch in.
func (c *client) linkRun(ctx context.Context, p *plan.Plan, canonical *table.Table, res *Result) error {
	s, err := reference.Load(canonical, p.UIDColumn, p.IDColumns...)
	if err != nil {
		return fmt.Errorf("load canonical %s: %w", p.Canonical, err)
	}

	if pairs := p.Pairs(); len(pairs) > 0 {
		var mapping map[int64]int64
		s, mapping, err = reference.Consolidate(logging.WithStage(ctx, "consolidate"), s, pairs)
		if err != nil {
			return err
		}
		c.hooks.triggerConsolidated(mapping)
	}

	b, err := p.ReferenceBatch(res.Batch)
	if err != nil {
		return err
	}
	criteria, err := p.BuildCriteria()
	if err != nil {
		return err
	}

	if s, err = reference.Attach(logging.WithStage(ctx, "attach"), s, b); err != nil {
		return err
	}
	if s, err = reference.LoopMerge(logging.WithStage(ctx, "merge"), s, criteria...); err != nil {
		return err
	}
	res.Run.Loop = s.LoopReport()
	c.hooks.triggerMerged(s.LoopReport())

	if err := ctx.Err(); err != nil {
		return err
	}
	s, err = reference.FoldIn(logging.WithStage(ctx, "fold"), s, reference.FoldOptions{KeepUnmerged: p.KeepUnmerged()})
	if err != nil {
		return err
	}
	res.Run.Fold = s.FoldReport()
	c.hooks.triggerFolded(s.FoldReport())

	res.State = s
	res.Crosswalk, err = reference.Crosswalk(s)
	return err
}

func entityCount(s *reference.State) int {
	if s == nil {
		return 0
	}
	return int(s.Canonical().MaxID(s.UIDColumn()))
}
