package crosswalk

import (
	"context"
	"os"

	"github.com/agentstation/crosswalk/internal/report"
	"github.com/agentstation/crosswalk/pkg/aggregate"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/plan"
	"github.com/agentstation/crosswalk/pkg/reference"
	"github.com/agentstation/crosswalk/pkg/table"
	"github.com/agentstation/crosswalk/pkg/tableio"
)

func aggregateProfile(ctx context.Context, s *reference.State, specs []aggregate.Spec) (*table.Table, error) {
	return aggregate.Aggregate(ctx, s.Canonical(), s.UIDColumn(), specs...)
}

// writeOutputs persists the canonical table and every output the plan names.
// The canonical table is written last so a failed run leaves it untouched.
func (c *client) writeOutputs(ctx context.Context, p *plan.Plan, res *Result) error {
	logger := logging.FromContext(ctx)
	if c.options.dryRun {
		logger.Info().Msg("Dry run, no files written")
		return nil
	}

	files := []struct {
		path string
		t    *table.Table
	}{
		{p.Output.Crosswalk, res.Crosswalk},
		{p.Output.Profile, res.Profile},
	}
	for _, f := range files {
		if f.path == "" || f.t == nil {
			continue
		}
		if err := tableio.WriteFile(f.path, f.t); err != nil {
			return err
		}
		res.Run.Outputs = append(res.Run.Outputs, f.path)
		logger.Info().Str("path", f.path).Int("rows", f.t.Len()).Msg("Table written")
	}

	if err := tableio.WriteFile(p.Canonical, res.State.Canonical()); err != nil {
		return err
	}
	res.Run.Outputs = append(res.Run.Outputs, p.Canonical)
	logger.Info().
		Str("path", p.Canonical).
		Int("rows", res.State.Canonical().Len()).
		Msg("Canonical table written")

	if path := p.ReportPath(); path != "" {
		run := res.Run
		run.Finished = c.now()
		if err := report.WriteFile(path, run); err != nil {
			return err
		}
		logger.Info().Str("path", path).Msg("Report written")
	}
	return nil
}

// Consolidate merges the entities named by pairs in the canonical table at
// path and rewrites it with dense IDs. It returns the old to new ID mapping.
func (c *client) Consolidate(ctx context.Context, path string, idCols []string, pairs []reference.Pair) (map[int64]int64, error) {
	ctx = logging.WithStage(c.ctx(ctx), "consolidate")
	if len(pairs) == 0 {
		return nil, errors.NewValidationError("pairs", nil, "nothing to consolidate")
	}

	if !c.options.dryRun {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapIO("read", path, errors.ErrNotFound)
			}
			return nil, errors.WrapIO("stat", path, err)
		}
		lock, err := tableio.Acquire(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = lock.Release() }()
	}

	canonical, err := tableio.ReadFile(path, tableio.Options{})
	if err != nil {
		return nil, err
	}
	s, err := reference.Load(canonical, c.options.uidColumn, idCols...)
	if err != nil {
		return nil, err
	}
	s, mapping, err := reference.Consolidate(ctx, s, pairs)
	if err != nil {
		return nil, err
	}
	if !c.options.dryRun {
		if err := tableio.WriteFile(path, s.Canonical()); err != nil {
			return nil, err
		}
	}
	c.hooks.triggerConsolidated(mapping)
	return mapping, nil
}
