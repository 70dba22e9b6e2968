// Package conflict assigns provisional identities within one freshly ingested
// batch.
//
// Rows sharing the identity columns are one identity unless they disagree on
// a conflict column, in which case the group is bisected on that column.
// Groups that cannot be decided automatically are settled by a Policy.
package conflict

import (
	"context"
	"fmt"

	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Policy decides how deferred groups are settled.
type Policy string

// Policies.
const (
	// Distinct gives every row combination of a deferred group its own ID.
	Distinct Policy = constants.PolicyDistinct
	// Same collapses a deferred group into one ID.
	Same Policy = constants.PolicySame
	// Manual asks a Prompter.
	Manual Policy = constants.PolicyManual
)

// ParsePolicy validates a policy name. Empty selects Distinct.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return Distinct, nil
	case Distinct, Same, Manual:
		return Policy(s), nil
	}
	return "", errors.NewValidationError("policy", s, "must be one of distinct, same, manual")
}

// Options configures Resolve.
type Options struct {
	// IdentityColumns define who a row is. Required.
	IdentityColumns []string
	// ConflictColumns split identity groups that disagree on them.
	ConflictColumns []string
	// IDColumn receives the assigned ID. Defaults to constants.DefaultConflictIDColumn.
	IDColumn string
	// Policy settles deferred groups. Defaults to Distinct.
	Policy Policy
	// FallbackPolicy replaces Manual when no Prompter is available.
	FallbackPolicy Policy
	// Prompter answers Manual decisions.
	Prompter Prompter
	// NullsConflict treats null as an ordinary value that can disagree
	// with a non-null one. By default nulls never conflict.
	NullsConflict bool
}

func (o Options) withDefaults() Options {
	if o.IDColumn == "" {
		o.IDColumn = constants.DefaultConflictIDColumn
	}
	if o.Policy == "" {
		o.Policy = Distinct
	}
	if o.FallbackPolicy == "" || o.FallbackPolicy == Manual {
		o.FallbackPolicy = Distinct
	}
	return o
}

// Result is the batch with IDs assigned and the resolution report.
type Result struct {
	Table  *table.Table
	Report Report
}

// Resolve assigns an ID to every row of t.
func Resolve(ctx context.Context, t *table.Table, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	logger := logging.FromContext(ctx)

	if len(opts.IdentityColumns) == 0 {
		return nil, errors.NewValidationError("identity_columns", nil, "at least one identity column is required")
	}
	if t.Has(opts.IDColumn) {
		return nil, errors.NewValidationError("id_column", opts.IDColumn, "batch already has column "+opts.IDColumn)
	}
	keys := append(append([]string(nil), opts.IdentityColumns...), opts.ConflictColumns...)
	if err := t.Require("batch", keys...); err != nil {
		return nil, err
	}

	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	if policy == Manual && opts.Prompter == nil {
		logger.Warn().
			Str("fallback", string(opts.FallbackPolicy)).
			Msg("No prompter available for manual conflict resolution, using fallback policy")
		policy = opts.FallbackPolicy
	}

	combos, err := t.Distinct(keys...)
	if err != nil {
		return nil, err
	}
	unique, dup, err := combos.Partition(opts.IdentityColumns...)
	if err != nil {
		return nil, err
	}

	rep := Report{Rows: t.Len(), Combinations: combos.Len(), ConflictingRows: dup.Len()}
	m := &minter{ids: make(map[string]int64)}

	for i := 0; i < unique.Len(); i++ {
		m.assign(unique.RowKey(i, keys...))
	}

	groups, err := dup.GroupIndices(opts.IdentityColumns...)
	if err != nil {
		return nil, err
	}
	b := bisector{t: dup, nullsConflict: opts.NullsConflict}
	var deferred [][]int
	for _, g := range groups {
		for _, l := range b.split(g.Rows, opts.ConflictColumns) {
			if !l.resolved {
				deferred = append(deferred, l.rows)
				continue
			}
			rep.AutoResolved++
			id := m.next()
			for _, i := range l.rows {
				m.set(dup.RowKey(i, keys...), id)
			}
		}
	}
	rep.Deferred = len(deferred)

	for n, rows := range deferred {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := settle(ctx, policy, opts.Prompter, dup, keys, rows, n+1, len(deferred), m); err != nil {
			return nil, err
		}
	}

	ids := make([]any, combos.Len())
	for i := range ids {
		id, ok := m.ids[combos.RowKey(i, keys...)]
		if !ok {
			return nil, errors.NewInvariantError("null_id", fmt.Sprintf("combination %d received no id", i))
		}
		ids[i] = id
	}
	idTable, err := combos.WithValues(opts.IDColumn, ids)
	if err != nil {
		return nil, err
	}
	out, err := t.LeftJoin(idTable, keys...)
	if err != nil {
		return nil, err
	}
	if out.Len() != t.Len() {
		return nil, errors.NewInvariantError("row_count", fmt.Sprintf("id join produced %d rows from %d", out.Len(), t.Len()))
	}
	if err := out.CheckDense(opts.IDColumn); err != nil {
		return nil, err
	}
	rep.TotalIDs = int(m.last)

	logger.Info().
		Int("rows", rep.Rows).
		Int("combinations", rep.Combinations).
		Int("conflicting_rows", rep.ConflictingRows).
		Int("auto_resolved", rep.AutoResolved).
		Int("deferred", rep.Deferred).
		Int("ids", rep.TotalIDs).
		Str("policy", string(policy)).
		Msg("Conflicts resolved")

	return &Result{Table: out, Report: rep}, nil
}

// minter hands out dense IDs in call order.
type minter struct {
	ids  map[string]int64
	last int64
}

func (m *minter) next() int64 {
	m.last++
	return m.last
}

func (m *minter) set(key string, id int64) {
	m.ids[key] = id
}

func (m *minter) assign(key string) {
	m.set(key, m.next())
}
