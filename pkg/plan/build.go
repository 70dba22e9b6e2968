package plan

import (
	"fmt"
	"strings"

	"github.com/agentstation/crosswalk/pkg/aggregate"
	"github.com/agentstation/crosswalk/pkg/conflict"
	"github.com/agentstation/crosswalk/pkg/criterion"
	"github.com/agentstation/crosswalk/pkg/dataset"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/reference"
	"github.com/agentstation/crosswalk/pkg/table"
)

// DerivationSpec is a derivation in YAML form. Kind selects which fields apply.
type DerivationSpec struct {
	Kind      string `yaml:"kind"`
	Side      string `yaml:"side,omitempty"`
	Column    string `yaml:"column,omitempty"`
	To        string `yaml:"to,omitempty"`
	Length    int    `yaml:"length,omitempty"`
	Part      int    `yaml:"part,omitempty"`
	Year      int    `yaml:"year,omitempty"`
	Age       string `yaml:"age,omitempty"`
	BirthYear string `yaml:"birth_year,omitempty"`
}

// Build turns d into a dataset.Derivation.
func (d DerivationSpec) Build() (dataset.Derivation, error) {
	side, err := dataset.ParseSide(d.Side)
	if err != nil {
		return nil, err
	}
	need := func(fields ...string) error {
		for i := 0; i+1 < len(fields); i += 2 {
			if fields[i+1] == "" {
				return errors.NewValidationError(fields[i], nil, d.Kind+" derivation needs "+fields[i])
			}
		}
		return nil
	}

	switch strings.ToLower(d.Kind) {
	case "truncate_name":
		if d.Length <= 0 {
			return nil, errors.NewValidationError("length", d.Length, "truncate_name needs a positive length")
		}
		return dataset.TruncateName{Side: side, Column: d.Column, To: d.To, Length: d.Length}, need("column", d.Column, "to", d.To)
	case "age_from_birth_year":
		return dataset.AgeFromBirthYear{Side: side, BirthYear: d.BirthYear, Age: d.Age, Year: d.Year},
			need("birth_year", d.BirthYear, "age", d.Age)
	case "birth_year_from_age":
		return dataset.BirthYearFromAge{Side: side, Age: d.Age, BirthYear: d.BirthYear, Year: d.Year},
			need("birth_year", d.BirthYear, "age", d.Age)
	case "copy_column":
		return dataset.CopyColumn{Side: side, From: d.Column, To: d.To}, need("column", d.Column, "to", d.To)
	case "fold_accents":
		return dataset.FoldAccents{Side: side, Column: d.Column, To: d.To}, need("column", d.Column, "to", d.To)
	case "hyphen_part":
		return dataset.HyphenPart{Side: side, Column: d.Column, To: d.To, Part: d.Part}, need("column", d.Column, "to", d.To)
	}
	return nil, errors.NewValidationError("kind", d.Kind, "unknown derivation")
}

// Derivations builds the batch derivations, in order.
func (p *Plan) Derivations() ([]dataset.Derivation, error) {
	out := make([]dataset.Derivation, 0, len(p.Batch.Derivations))
	for i, spec := range p.Batch.Derivations {
		d, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("derivation %d: %w", i+1, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// ReferenceBatch assembles the reference batch for t, the table read from
// Batch.Path.
func (p *Plan) ReferenceBatch(t *table.Table) (reference.Batch, error) {
	derivs, err := p.Derivations()
	if err != nil {
		return reference.Batch{}, err
	}
	shape := func(s ShapeSpec) dataset.Options {
		return dataset.Options{
			MergeableColumn: s.MergeableColumn,
			WideStubs:       s.WideStubs,
			Derivations:     derivs,
			AlwaysNull:      s.AlwaysNull,
			Fill:            s.Fill,
		}
	}
	return reference.Batch{
		Name:     p.BatchName(),
		IDColumn: p.Batch.IDColumn,
		Table:    t,
		OneToOne: p.Batch.OneToOne,
		Ref:      shape(p.Batch.Reference),
		Sup:      shape(p.Batch.Supplemental),
	}, nil
}

// AttributeSpec is a logical attribute and its acceptable columns. An empty
// or null choice makes the attribute optional.
type AttributeSpec struct {
	Name    string   `yaml:"name"`
	Choices []string `yaml:"choices"`
}

// CriterionSpec is a criterion in YAML form.
type CriterionSpec struct {
	Name            string                `yaml:"name"`
	Attributes      []AttributeSpec       `yaml:"attributes,omitempty"`
	Custom          [][]string            `yaml:"custom,omitempty"`
	Query           *criterion.FilterSpec `yaml:"query,omitempty"`
	RefFilter       *criterion.FilterSpec `yaml:"ref_filter,omitempty"`
	SupFilter       *criterion.FilterSpec `yaml:"sup_filter,omitempty"`
	PostFilter      string                `yaml:"post_filter,omitempty"`
	RetainRef       bool                  `yaml:"retain_ref,omitempty"`
	RetainSup       bool                  `yaml:"retain_sup,omitempty"`
	AllowDuplicates bool                  `yaml:"allow_duplicates,omitempty"`
	MaxTuples       int                   `yaml:"max_tuples,omitempty"`
}

// Build turns s into a criterion.
func (s CriterionSpec) Build() (criterion.Criterion, error) {
	if s.Name == "" {
		return criterion.Criterion{}, errors.NewValidationError("name", nil, "criterion needs a name")
	}
	if len(s.Attributes) == 0 && len(s.Custom) == 0 {
		return criterion.Criterion{}, errors.NewValidationError("attributes", s.Name, "criterion needs attributes or custom tuples")
	}
	c := criterion.Criterion{
		Name:            s.Name,
		Custom:          s.Custom,
		RetainRef:       s.RetainRef,
		RetainSup:       s.RetainSup,
		AllowDuplicates: s.AllowDuplicates,
		MaxTuples:       s.MaxTuples,
	}
	for _, a := range s.Attributes {
		if len(a.Choices) == 0 {
			return criterion.Criterion{}, errors.NewValidationError("choices", a.Name, "attribute needs at least one choice")
		}
		c.Attributes = append(c.Attributes, criterion.Attribute{Name: a.Name, Choices: a.Choices})
	}
	var err error
	if c.Query, err = buildFilter(s.Query); err != nil {
		return criterion.Criterion{}, err
	}
	if c.RefFilter, err = buildFilter(s.RefFilter); err != nil {
		return criterion.Criterion{}, err
	}
	if c.SupFilter, err = buildFilter(s.SupFilter); err != nil {
		return criterion.Criterion{}, err
	}
	if c.PostFilter, err = criterion.PostFilterByName(s.PostFilter); err != nil {
		return criterion.Criterion{}, err
	}
	return c, nil
}

func buildFilter(s *criterion.FilterSpec) (criterion.Filter, error) {
	if s == nil {
		return nil, nil
	}
	return s.Build()
}

// BuildCriteria builds the criteria battery, in order.
func (p *Plan) BuildCriteria() ([]criterion.Criterion, error) {
	seen := map[string]bool{}
	out := make([]criterion.Criterion, 0, len(p.Criteria))
	for _, spec := range p.Criteria {
		c, err := spec.Build()
		if err != nil {
			return nil, err
		}
		if seen[c.Name] {
			return nil, errors.NewValidationError("name", c.Name, "duplicate criterion name")
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out, nil
}

// AggregateSpec is one profile column in YAML form.
type AggregateSpec struct {
	Column   string `yaml:"column,omitempty"`
	As       string `yaml:"as,omitempty"`
	Strategy string `yaml:"strategy"`
	OrderBy  string `yaml:"order_by,omitempty"`
	Earliest bool   `yaml:"earliest,omitempty"`
	On       string `yaml:"on,omitempty"`
}

// Build turns s into an aggregate.Spec.
func (s AggregateSpec) Build() (aggregate.Spec, error) {
	spec := aggregate.Spec{Column: s.Column, As: s.As}
	switch strings.ToLower(s.Strategy) {
	case "mode":
		spec.Strategy = aggregate.Mode{}
	case "max":
		spec.Strategy = aggregate.Max{}
	case "current":
		if s.OrderBy == "" {
			return spec, errors.NewValidationError("order_by", s.Column, "current needs order_by")
		}
		spec.Strategy = aggregate.Current{OrderBy: s.OrderBy, Earliest: s.Earliest}
	case "merge_on":
		if s.On == "" {
			return spec, errors.NewValidationError("on", s.Column, "merge_on needs on")
		}
		spec.Strategy = aggregate.MergeOn{On: s.On}
	case "count":
		spec.Strategy = aggregate.Count{}
	case "count_distinct":
		spec.Strategy = aggregate.CountDistinct{}
	default:
		return spec, errors.NewValidationError("strategy", s.Strategy, "unknown aggregation strategy")
	}
	return spec, nil
}

// ProfileSpecs builds the profile aggregation list.
func (p *Plan) ProfileSpecs() ([]aggregate.Spec, error) {
	out := make([]aggregate.Spec, 0, len(p.Profile))
	for _, s := range p.Profile {
		spec, err := s.Build()
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// ConflictSpec configures conflict resolution of the batch before linking.
// The resolver writes the batch ID column.
type ConflictSpec struct {
	Identity       []string `yaml:"identity"`
	Conflict       []string `yaml:"conflict,omitempty"`
	Policy         string   `yaml:"policy,omitempty"`
	FallbackPolicy string   `yaml:"fallback_policy,omitempty"`
	NullsConflict  bool     `yaml:"nulls_conflict,omitempty"`
}

// ConflictOptions builds resolver options. prompter may be nil.
func (p *Plan) ConflictOptions(prompter conflict.Prompter) (conflict.Options, error) {
	if p.Conflict == nil {
		return conflict.Options{}, errors.NewValidationError("conflict", nil, "plan has no conflict section")
	}
	c := p.Conflict
	if len(c.Identity) == 0 {
		return conflict.Options{}, errors.NewValidationError("conflict.identity", nil, "identity columns are required")
	}
	policy, err := conflict.ParsePolicy(c.Policy)
	if err != nil {
		return conflict.Options{}, err
	}
	fallback, err := conflict.ParsePolicy(c.FallbackPolicy)
	if err != nil {
		return conflict.Options{}, err
	}
	return conflict.Options{
		IdentityColumns: c.Identity,
		ConflictColumns: c.Conflict,
		IDColumn:        p.Batch.IDColumn,
		Policy:          policy,
		FallbackPolicy:  fallback,
		Prompter:        prompter,
		NullsConflict:   c.NullsConflict,
	}, nil
}

// Pairs returns the consolidation whitelist.
func (p *Plan) Pairs() []reference.Pair {
	out := make([]reference.Pair, len(p.Consolidate))
	for i, pair := range p.Consolidate {
		out[i] = reference.Pair{A: pair[0], B: pair[1]}
	}
	return out
}
