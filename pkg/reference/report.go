package reference

import (
	"fmt"
	"strings"

	"github.com/agentstation/crosswalk/pkg/criterion"
)

// CriterionReport summarizes one criterion of a merge battery.
type CriterionReport struct {
	Criterion    string
	Pairs        int
	RefMatched   int
	SupMatched   int
	RefEntities  int
	SupEntities  int
	RefRemaining int
	SupRemaining int
	Tuples       []criterion.TupleCount
}

// RefPercent is the share of reference entities this criterion matched.
func (r CriterionReport) RefPercent() float64 { return percent(r.RefMatched, r.RefEntities) }

// SupPercent is the share of batch entities this criterion matched.
func (r CriterionReport) SupPercent() float64 { return percent(r.SupMatched, r.SupEntities) }

// LoopReport summarizes a whole merge battery.
type LoopReport struct {
	Batch       string
	RefEntities int
	SupEntities int
	Pairs       int
	RefMatched  int
	SupMatched  int
	Criteria    []CriterionReport
}

// RefPercent is the share of reference entities matched by any criterion.
func (r *LoopReport) RefPercent() float64 { return percent(r.RefMatched, r.RefEntities) }

// SupPercent is the share of batch entities matched by any criterion.
func (r *LoopReport) SupPercent() float64 { return percent(r.SupMatched, r.SupEntities) }

func (r *LoopReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "batch %s: %d pairs, reference %.1f%% of %d, batch %.1f%% of %d\n",
		r.Batch, r.Pairs, r.RefPercent(), r.RefEntities, r.SupPercent(), r.SupEntities)
	for _, c := range r.Criteria {
		fmt.Fprintf(&b, "  %s: %d pairs (reference %.1f%%, batch %.1f%%)\n",
			c.Criterion, c.Pairs, c.RefPercent(), c.SupPercent())
	}
	return b.String()
}

// FoldReport summarizes a fold-in.
type FoldReport struct {
	Batch       string
	Matched     int
	Minted      int
	FirstMinted int64
	LastMinted  int64
	Appended    int
}

func (r *FoldReport) String() string {
	if r.Minted == 0 {
		return fmt.Sprintf("batch %s: %d matched, no new entities, %d rows appended", r.Batch, r.Matched, r.Appended)
	}
	return fmt.Sprintf("batch %s: %d matched, %d new entities (%d-%d), %d rows appended",
		r.Batch, r.Matched, r.Minted, r.FirstMinted, r.LastMinted, r.Appended)
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return 100 * float64(n) / float64(of)
}
