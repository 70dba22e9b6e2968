package criterion

import (
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/table"
)

// PostInput is what a PostFilter sees after all tuples ran.
type PostInput struct {
	// Ref and Sup are the pools as they were when the criterion started.
	Ref, Sup     *table.Table
	RefID, SupID string
	// Pairs has columns RefID, SupID and matched_on.
	Pairs *table.Table
}

// PostFilter reshapes or filters the pairs a criterion produced.
type PostFilter func(in PostInput) (*table.Table, error)

// OneToOne keeps only pairs whose reference and supplemental IDs each occur once.
func OneToOne(in PostInput) (*table.Table, error) {
	pairs, err := UniqueRef(in)
	if err != nil {
		return nil, err
	}
	in.Pairs = pairs
	return UniqueSup(in)
}

// UniqueRef drops pairs whose reference ID was matched more than once.
func UniqueRef(in PostInput) (*table.Table, error) {
	unique, _, err := in.Pairs.Partition(in.RefID)
	return unique, err
}

// UniqueSup drops pairs whose supplemental ID was matched more than once.
func UniqueSup(in PostInput) (*table.Table, error) {
	unique, _, err := in.Pairs.Partition(in.SupID)
	return unique, err
}

var postFilters = map[string]PostFilter{
	"one_to_one": OneToOne,
	"unique_ref": UniqueRef,
	"unique_sup": UniqueSup,
}

// PostFilterByName resolves a named post-filter. Empty returns nil.
func PostFilterByName(name string) (PostFilter, error) {
	if name == "" {
		return nil, nil
	}
	f, ok := postFilters[name]
	if !ok {
		return nil, errors.NewValidationError("post_filter", name, "unknown post filter")
	}
	return f, nil
}
