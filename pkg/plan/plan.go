// Package plan decodes a YAML run plan: which batch to link against which
// canonical table, how to shape both sides, which criteria to replay and
// where to write the results.
package plan

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/tableio"
)

// Plan is one ingestion run.
type Plan struct {
	// Canonical is the canonical table path. It is created by seeding when absent.
	Canonical string `yaml:"canonical"`
	// UIDColumn names the Entity ID column.
	UIDColumn string `yaml:"uid_column,omitempty"`
	// IDColumns lists intra-batch ID columns already in the canonical table.
	IDColumns []string `yaml:"id_columns,omitempty"`

	Batch       BatchSpec       `yaml:"batch"`
	Conflict    *ConflictSpec   `yaml:"conflict,omitempty"`
	Criteria    []CriterionSpec `yaml:"criteria,omitempty"`
	Profile     []AggregateSpec `yaml:"profile,omitempty"`
	Consolidate [][]int64       `yaml:"consolidate,omitempty"`
	Output      OutputSpec      `yaml:"output,omitempty"`

	// Source is the file the plan was loaded from.
	Source string `yaml:"-"`
}

// BatchSpec describes the batch being ingested.
type BatchSpec struct {
	Name         string           `yaml:"name"`
	Path         string           `yaml:"path"`
	IDColumn     string           `yaml:"id_column"`
	Encoding     string           `yaml:"encoding,omitempty"`
	Strings      []string         `yaml:"strings,omitempty"`
	NullValues   []string         `yaml:"null_values,omitempty"`
	OneToOne     bool             `yaml:"one_to_one,omitempty"`
	KeepUnmerged *bool            `yaml:"keep_unmerged,omitempty"`
	Reference    ShapeSpec        `yaml:"reference,omitempty"`
	Supplemental ShapeSpec        `yaml:"supplemental,omitempty"`
	Derivations  []DerivationSpec `yaml:"derivations,omitempty"`
}

// ShapeSpec shapes one side of a merge.
type ShapeSpec struct {
	MergeableColumn string   `yaml:"mergeable_column,omitempty"`
	WideStubs       []string `yaml:"wide_stubs,omitempty"`
	AlwaysNull      []string `yaml:"always_null,omitempty"`
	Fill            []string `yaml:"fill,omitempty"`
}

// OutputSpec names the files a run writes. Empty paths are skipped.
type OutputSpec struct {
	Crosswalk string `yaml:"crosswalk,omitempty"`
	Profile   string `yaml:"profile,omitempty"`
	Report    string `yaml:"report,omitempty"`
}

// Load reads and validates the plan at path. Relative paths inside the plan
// are resolved against the plan's directory.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError("read", path, errors.ErrNotFound)
		}
		return nil, errors.WrapIO("read", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.File = path
		}
		return nil, err
	}
	p.resolve(filepath.Dir(path))
	p.Source = path
	return p, nil
}

// Parse decodes and validates a plan.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.UnmarshalWithOptions(data, &p, yaml.DisallowUnknownField()); err != nil {
		return nil, errors.WrapParse("yaml", "", err)
	}
	if p.UIDColumn == "" {
		p.UIDColumn = constants.DefaultUIDColumn
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that the plan can be run.
func (p *Plan) Validate() error {
	if p.Canonical == "" {
		return errors.NewValidationError("canonical", nil, "canonical table path is required")
	}
	if p.Batch.Path == "" {
		return errors.NewValidationError("batch.path", nil, "batch path is required")
	}
	if p.Batch.IDColumn == "" {
		return errors.NewValidationError("batch.id_column", nil, "batch id column is required")
	}
	if p.Batch.IDColumn == p.UIDColumn {
		return errors.NewValidationError("batch.id_column", p.Batch.IDColumn, "must differ from uid_column")
	}
	if _, err := tableio.LookupEncoding(p.Batch.Encoding); err != nil {
		return err
	}
	if _, err := p.Derivations(); err != nil {
		return err
	}
	if _, err := p.BuildCriteria(); err != nil {
		return err
	}
	if _, err := p.ProfileSpecs(); err != nil {
		return err
	}
	if p.Conflict != nil {
		if _, err := p.ConflictOptions(nil); err != nil {
			return err
		}
	}
	for _, pair := range p.Consolidate {
		if len(pair) != 2 {
			return errors.NewValidationError("consolidate", pair, "each entry must be a pair of entity ids")
		}
	}
	return nil
}

func (p *Plan) resolve(dir string) {
	abs := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(dir, path)
	}
	p.Canonical = abs(p.Canonical)
	p.Batch.Path = abs(p.Batch.Path)
	p.Output.Crosswalk = abs(p.Output.Crosswalk)
	p.Output.Profile = abs(p.Output.Profile)
	p.Output.Report = abs(p.Output.Report)
}

// BatchName is the batch name, defaulting to its ID column.
func (p *Plan) BatchName() string {
	if p.Batch.Name != "" {
		return p.Batch.Name
	}
	return p.Batch.IDColumn
}

// KeepUnmerged reports whether unmatched batch rows become new entities.
// It defaults to true.
func (p *Plan) KeepUnmerged() bool {
	return p.Batch.KeepUnmerged == nil || *p.Batch.KeepUnmerged
}

// ReadOptions returns how to read the batch file.
func (p *Plan) ReadOptions() tableio.Options {
	return tableio.Options{Encoding: p.Batch.Encoding, Strings: p.Batch.Strings, NullValues: p.Batch.NullValues}
}

// ReportPath is the markdown report path, defaulting to one next to the crosswalk.
func (p *Plan) ReportPath() string {
	if p.Output.Report != "" || p.Output.Crosswalk == "" {
		return p.Output.Report
	}
	return p.Output.Crosswalk + constants.ReportSuffix
}
