package logging_test

import (
	"context"
	"testing"

	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/stretchr/testify/assert"
)

func TestContextFields(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	ctx = logging.WithRunID(ctx, "run-42")
	ctx = logging.WithBatch(ctx, "clinic_2024")
	ctx = logging.WithStage(ctx, "merged")
	ctx = logging.WithCriterion(ctx, "exact_name_dob")

	logging.FromContext(ctx).Info().Msg("criterion applied")

	assert.Equal(t, "run-42", logging.RunID(ctx))
	assert.True(t, tl.ContainsAll(
		`"run_id":"run-42"`,
		`"batch":"clinic_2024"`,
		`"stage":"merged"`,
		`"criterion":"exact_name_dob"`,
		"criterion applied",
	))
	assert.Equal(t, 1, tl.Count())
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Equal(t, logging.Default(), logging.FromContext(context.Background()))
	//nolint:staticcheck // nil context is tolerated
	assert.Equal(t, logging.Default(), logging.Ctx(nil))
	assert.Equal(t, "", logging.RunID(context.Background()))
}

func TestWithFields(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)
	ctx = logging.WithFields(ctx, map[string]any{"rows": 12, "side": "ref"})

	logging.Ctx(ctx).Debug().Msg("pool filtered")
	assert.True(t, tl.ContainsAll(`"rows":12`, `"side":"ref"`))
}
