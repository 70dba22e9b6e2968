// Package report renders what a linkage run did, as console tables and as a
// markdown document kept next to the crosswalk.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/agentstation/utc"
	md "github.com/nao1215/markdown"

	"github.com/agentstation/crosswalk/internal/output"
	"github.com/agentstation/crosswalk/pkg/conflict"
	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/reference"
)

// Run collects the reports of one linkage run. Nil sections are left out.
type Run struct {
	Batch    string
	Plan     string
	Started  utc.Time
	Finished utc.Time
	Conflict *conflict.Report
	Loop     *reference.LoopReport
	Fold     *reference.FoldReport
	Entities int
	Outputs  []string
}

// Criteria lays out the per-criterion match rates of a merge battery, with a
// closing total row.
func Criteria(l *reference.LoopReport) output.Data {
	d := output.Data{
		Headers: []string{"Criterion", "Pairs", "Reference", "Batch", "Reference Left", "Batch Left"},
		ColumnAlignment: []output.Align{
			output.AlignLeft, output.AlignRight, output.AlignRight,
			output.AlignRight, output.AlignRight, output.AlignRight,
		},
	}
	for _, c := range l.Criteria {
		d.Rows = append(d.Rows, []string{
			c.Criterion,
			fmt.Sprint(c.Pairs),
			pct(c.RefPercent()),
			pct(c.SupPercent()),
			fmt.Sprint(c.RefRemaining),
			fmt.Sprint(c.SupRemaining),
		})
	}
	d.Rows = append(d.Rows, []string{
		"total",
		fmt.Sprint(l.Pairs),
		pct(l.RefPercent()),
		pct(l.SupPercent()),
		fmt.Sprint(l.RefEntities - l.RefMatched),
		fmt.Sprint(l.SupEntities - l.SupMatched),
	})
	return d
}

// Tuples lays out how many pairs each tuple of each criterion produced.
func Tuples(l *reference.LoopReport) output.Data {
	d := output.Data{
		Headers:         []string{"Criterion", "Tuple", "Pairs"},
		ColumnAlignment: []output.Align{output.AlignLeft, output.AlignLeft, output.AlignRight},
	}
	for _, c := range l.Criteria {
		for _, tc := range c.Tuples {
			d.Rows = append(d.Rows, []string{c.Criterion, tc.Label, fmt.Sprint(tc.Pairs)})
		}
	}
	return d
}

// Summary lays out the headline numbers of a run as property rows.
func Summary(r Run) output.Data {
	d := output.Data{Headers: []string{"Property", "Value"}}
	add := func(k string, v any) { d.Rows = append(d.Rows, []string{k, fmt.Sprint(v)}) }

	add("Batch", r.Batch)
	if r.Conflict != nil {
		add("Batch rows", r.Conflict.Rows)
		add("Conflicts resolved automatically", r.Conflict.AutoResolved)
		add("Conflicts deferred", r.Conflict.Deferred)
		add("Batch ids", r.Conflict.TotalIDs)
	}
	if r.Loop != nil {
		add("Pairs", r.Loop.Pairs)
		add("Reference matched", pct(r.Loop.RefPercent()))
		add("Batch matched", pct(r.Loop.SupPercent()))
	}
	if r.Fold != nil {
		add("New entities", r.Fold.Minted)
		add("Rows appended", r.Fold.Appended)
	}
	if r.Entities > 0 {
		add("Entities", r.Entities)
	}
	if !r.Finished.IsZero() && !r.Started.IsZero() {
		add("Duration", r.Finished.Time.Sub(r.Started.Time).Round(time.Millisecond))
	}
	return d
}

// Markdown writes the run as a markdown document.
func Markdown(w io.Writer, r Run) error {
	doc := md.NewMarkdown(w)
	doc.H1(fmt.Sprintf("Linkage report: %s", r.Batch))
	if r.Plan != "" {
		doc.PlainText(fmt.Sprintf("Plan %s", md.Code(r.Plan))).LF()
	}
	if !r.Finished.IsZero() {
		doc.PlainText(fmt.Sprintf("Finished %s", r.Finished.Time.Format(time.RFC3339))).LF()
	}

	doc.H2("Summary")
	doc.Table(tableSet(Summary(r)))

	if r.Conflict != nil {
		doc.H2("Conflict resolution")
		doc.BulletList(
			fmt.Sprintf("%d rows in %d distinct combinations", r.Conflict.Rows, r.Conflict.Combinations),
			fmt.Sprintf("%d combinations share identity columns", r.Conflict.ConflictingRows),
			fmt.Sprintf("%d groups resolved automatically", r.Conflict.AutoResolved),
			fmt.Sprintf("%d groups deferred to policy", r.Conflict.Deferred),
			fmt.Sprintf("%d ids assigned", r.Conflict.TotalIDs),
		)
	}

	if r.Loop != nil {
		doc.H2("Merge")
		doc.PlainText(fmt.Sprintf("%s pairs linking %s of %d reference entities and %s of %d batch entities.",
			md.Bold(fmt.Sprint(r.Loop.Pairs)),
			pct(r.Loop.RefPercent()), r.Loop.RefEntities,
			pct(r.Loop.SupPercent()), r.Loop.SupEntities)).LF()
		if len(r.Loop.Criteria) > 0 {
			doc.H3("Criteria")
			doc.Table(tableSet(Criteria(r.Loop)))
			if tuples := Tuples(r.Loop); len(tuples.Rows) > 0 {
				doc.H3("Tuples")
				doc.Table(tableSet(tuples))
			}
		}
	}

	if r.Fold != nil {
		doc.H2("Fold-in")
		doc.PlainText(r.Fold.String()).LF()
	}

	if len(r.Outputs) > 0 {
		doc.H2("Outputs")
		items := make([]string, len(r.Outputs))
		for i, o := range r.Outputs {
			items[i] = md.Code(o)
		}
		doc.BulletList(items...)
	}
	return doc.Build()
}

// WriteFile writes the markdown report to path, creating its directory.
func WriteFile(path string, r Run) error {
	var buf bytes.Buffer
	if err := Markdown(&buf, r); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

func tableSet(d output.Data) md.TableSet {
	return md.TableSet{Header: d.Headers, Rows: d.Rows}
}

func pct(f float64) string {
	return fmt.Sprintf("%.1f%%", f)
}
