package dataset

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/agentstation/crosswalk/pkg/table"
)

// Derivation is one of TruncateName, AgeFromBirthYear, BirthYearFromAge,
// CopyColumn, FoldAccents or HyphenPart. A derivation with an empty Side
// applies to both sides.
type Derivation interface {
	name() string
	side() Side
	inputs() []string
}

// TruncateName writes the first Length runes of Column into To.
type TruncateName struct {
	Side   Side
	Column string
	To     string
	Length int
}

// AgeFromBirthYear writes Year minus BirthYear into Age. Year is the year the
// batch was observed, which differs per side.
type AgeFromBirthYear struct {
	Side      Side
	BirthYear string
	Age       string
	Year      int
}

// BirthYearFromAge writes Year minus Age into BirthYear.
type BirthYearFromAge struct {
	Side      Side
	Age       string
	BirthYear string
	Year      int
}

// CopyColumn duplicates From into To.
type CopyColumn struct {
	Side Side
	From string
	To   string
}

// FoldAccents writes Column with diacritics removed into To.
type FoldAccents struct {
	Side   Side
	Column string
	To     string
}

// HyphenPart writes one part of a hyphenated value into To. Part 0 is the
// first piece and -1 the last; values without a hyphen are copied unchanged.
type HyphenPart struct {
	Side   Side
	Column string
	To     string
	Part   int
}

func (d TruncateName) name() string     { return "truncate_name" }
func (d AgeFromBirthYear) name() string { return "age_from_birth_year" }
func (d BirthYearFromAge) name() string { return "birth_year_from_age" }
func (d CopyColumn) name() string       { return "copy_column" }
func (d FoldAccents) name() string      { return "fold_accents" }
func (d HyphenPart) name() string       { return "hyphen_part" }

func (d TruncateName) side() Side     { return d.Side }
func (d AgeFromBirthYear) side() Side { return d.Side }
func (d BirthYearFromAge) side() Side { return d.Side }
func (d CopyColumn) side() Side       { return d.Side }
func (d FoldAccents) side() Side      { return d.Side }
func (d HyphenPart) side() Side       { return d.Side }

func (d TruncateName) inputs() []string     { return []string{d.Column} }
func (d AgeFromBirthYear) inputs() []string { return []string{d.BirthYear} }
func (d BirthYearFromAge) inputs() []string { return []string{d.Age} }
func (d CopyColumn) inputs() []string       { return []string{d.From} }
func (d FoldAccents) inputs() []string      { return []string{d.Column} }
func (d HyphenPart) inputs() []string       { return []string{d.Column} }

// Output returns the column a derivation writes.
func Output(d Derivation) string {
	switch d := d.(type) {
	case TruncateName:
		return d.To
	case AgeFromBirthYear:
		return d.Age
	case BirthYearFromAge:
		return d.BirthYear
	case CopyColumn:
		return d.To
	case FoldAccents:
		return d.To
	case HyphenPart:
		return d.To
	}
	return ""
}

func apply(t *table.Table, d Derivation) *table.Table {
	switch d := d.(type) {
	case TruncateName:
		return t.WithColumn(d.To, func(r table.Row) any {
			return mapString(r.Get(d.Column), func(s string) string {
				rs := []rune(s)
				if d.Length > 0 && len(rs) > d.Length {
					return string(rs[:d.Length])
				}
				return s
			})
		})
	case AgeFromBirthYear:
		return t.WithColumn(d.Age, func(r table.Row) any {
			return yearDiff(d.Year, r.Get(d.BirthYear))
		})
	case BirthYearFromAge:
		return t.WithColumn(d.BirthYear, func(r table.Row) any {
			return yearDiff(d.Year, r.Get(d.Age))
		})
	case CopyColumn:
		return t.WithColumn(d.To, func(r table.Row) any { return r.Get(d.From) })
	case FoldAccents:
		return t.WithColumn(d.To, func(r table.Row) any {
			return mapString(r.Get(d.Column), foldAccents)
		})
	case HyphenPart:
		return t.WithColumn(d.To, func(r table.Row) any {
			return mapString(r.Get(d.Column), func(s string) string {
				parts := strings.Split(s, "-")
				if len(parts) == 1 {
					return s
				}
				p := d.Part
				if p < 0 {
					p += len(parts)
				}
				if p < 0 || p >= len(parts) {
					return s
				}
				return strings.TrimSpace(parts[p])
			})
		})
	}
	return t
}

// mapString applies fn to string cells; null stays null and other cells pass through.
func mapString(v any, fn func(string) string) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	out := fn(s)
	if out == "" {
		return nil
	}
	return out
}

func yearDiff(year int, v any) any {
	n, ok := table.AsInt(v)
	if !ok {
		return nil
	}
	return int64(year) - n
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
