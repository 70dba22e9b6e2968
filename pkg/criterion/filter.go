package criterion

import (
	"fmt"
	"strings"

	"github.com/agentstation/crosswalk/internal/matcher"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Filter selects the rows a criterion may consider.
type Filter interface {
	Match(r table.Row) bool
}

// IsNull matches rows where Column is null.
type IsNull struct{ Column string }

// NotNull matches rows where Column has a value.
type NotNull struct{ Column string }

// Eq matches rows where Column equals Value.
type Eq struct {
	Column string
	Value  any
}

// Ne matches rows where Column differs from Value; null differs from any value.
type Ne struct {
	Column string
	Value  any
}

// In matches rows where Column equals one of Values.
type In struct {
	Column string
	Values []any
}

// Gt matches rows where Column is non-null and greater than Value.
type Gt struct {
	Column string
	Value  any
}

// Lt matches rows where Column is non-null and less than Value.
type Lt struct {
	Column string
	Value  any
}

// Like matches rows whose Column, formatted as text, matches a glob or
// regex pattern. Build one with NewLike.
type Like struct {
	Column  string
	matcher *matcher.Matcher
}

// NewLike compiles pattern. kind is "glob", "regex" or "" to detect it.
func NewLike(column, pattern, kind string, caseInsensitive bool) (Like, error) {
	pt, err := matcher.ParsePatternType(kind)
	if err != nil {
		return Like{}, errors.NewValidationError("pattern_type", kind, err.Error())
	}
	m, err := matcher.New(pt, pattern, matcher.Options{CaseInsensitive: caseInsensitive})
	if err != nil {
		return Like{}, errors.NewValidationError("pattern", pattern, err.Error())
	}
	return Like{Column: column, matcher: m}, nil
}

// All matches when every filter matches.
type All []Filter

// Any matches when at least one filter matches.
type Any []Filter

// Not inverts a filter.
type Not struct{ Filter Filter }

func (f IsNull) Match(r table.Row) bool  { return table.IsNull(r.Get(f.Column)) }
func (f NotNull) Match(r table.Row) bool { return !table.IsNull(r.Get(f.Column)) }
func (f Eq) Match(r table.Row) bool {
	v := r.Get(f.Column)
	return !table.IsNull(v) && table.Equal(v, table.Normalize(f.Value))
}
func (f Ne) Match(r table.Row) bool { return !table.Equal(r.Get(f.Column), table.Normalize(f.Value)) }
func (f In) Match(r table.Row) bool {
	v := r.Get(f.Column)
	if table.IsNull(v) {
		return false
	}
	for _, want := range f.Values {
		if table.Equal(v, table.Normalize(want)) {
			return true
		}
	}
	return false
}
func (f Gt) Match(r table.Row) bool {
	v := r.Get(f.Column)
	return !table.IsNull(v) && table.Compare(v, table.Normalize(f.Value)) > 0
}
func (f Lt) Match(r table.Row) bool {
	v := r.Get(f.Column)
	return !table.IsNull(v) && table.Compare(v, table.Normalize(f.Value)) < 0
}
func (f Like) Match(r table.Row) bool {
	v := r.Get(f.Column)
	return !table.IsNull(v) && f.matcher != nil && f.matcher.Match(table.Format(v))
}
func (f All) Match(r table.Row) bool {
	for _, sub := range f {
		if !sub.Match(r) {
			return false
		}
	}
	return true
}
func (f Any) Match(r table.Row) bool {
	for _, sub := range f {
		if sub.Match(r) {
			return true
		}
	}
	return false
}
func (f Not) Match(r table.Row) bool { return !f.Filter.Match(r) }

// columns lists every column a filter reads.
func columns(f Filter) []string {
	switch f := f.(type) {
	case IsNull:
		return []string{f.Column}
	case NotNull:
		return []string{f.Column}
	case Eq:
		return []string{f.Column}
	case Ne:
		return []string{f.Column}
	case In:
		return []string{f.Column}
	case Gt:
		return []string{f.Column}
	case Lt:
		return []string{f.Column}
	case Like:
		return []string{f.Column}
	case All:
		var out []string
		for _, sub := range f {
			out = append(out, columns(sub)...)
		}
		return out
	case Any:
		var out []string
		for _, sub := range f {
			out = append(out, columns(sub)...)
		}
		return out
	case Not:
		return columns(f.Filter)
	}
	return nil
}

// FilterSpec is the declarative form of a Filter as written in a run plan.
type FilterSpec struct {
	Op      string       `yaml:"op" json:"op"`
	Column  string       `yaml:"column,omitempty" json:"column,omitempty"`
	Value   any          `yaml:"value,omitempty" json:"value,omitempty"`
	Values  []any        `yaml:"values,omitempty" json:"values,omitempty"`
	Filters []FilterSpec `yaml:"filters,omitempty" json:"filters,omitempty"`
	// Pattern, PatternType and IgnoreCase configure the match operation.
	Pattern     string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	PatternType string `yaml:"pattern_type,omitempty" json:"pattern_type,omitempty"`
	IgnoreCase  bool   `yaml:"ignore_case,omitempty" json:"ignore_case,omitempty"`
}

// Build turns a spec into a Filter.
func (s FilterSpec) Build() (Filter, error) {
	op := strings.ToLower(s.Op)
	switch op {
	case "all", "any", "not":
		subs := make([]Filter, 0, len(s.Filters))
		for _, fs := range s.Filters {
			f, err := fs.Build()
			if err != nil {
				return nil, err
			}
			subs = append(subs, f)
		}
		switch op {
		case "all":
			return All(subs), nil
		case "any":
			return Any(subs), nil
		default:
			if len(subs) != 1 {
				return nil, errors.NewValidationError("filters", len(subs), "not takes exactly one filter")
			}
			return Not{Filter: subs[0]}, nil
		}
	}

	if s.Column == "" {
		return nil, errors.NewValidationError("column", nil, fmt.Sprintf("%s filter needs a column", s.Op))
	}
	switch op {
	case "null", "is_null":
		return IsNull{Column: s.Column}, nil
	case "not_null":
		return NotNull{Column: s.Column}, nil
	case "eq":
		return Eq{Column: s.Column, Value: s.Value}, nil
	case "ne":
		return Ne{Column: s.Column, Value: s.Value}, nil
	case "in":
		return In{Column: s.Column, Values: s.Values}, nil
	case "gt":
		return Gt{Column: s.Column, Value: s.Value}, nil
	case "lt":
		return Lt{Column: s.Column, Value: s.Value}, nil
	case "match", "like":
		return NewLike(s.Column, s.Pattern, s.PatternType, s.IgnoreCase)
	}
	return nil, errors.NewValidationError("op", s.Op, "unknown filter operation")
}
