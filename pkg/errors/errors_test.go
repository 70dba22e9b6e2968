package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/crosswalk/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestInvariantError(t *testing.T) {
	t.Run("with ids", func(t *testing.T) {
		err := pkgerrors.NewInvariantError("dense_ids", "max id 5 exceeds 4 distinct ids", "5")
		assert.Contains(t, err.Error(), "dense_ids")
		assert.Contains(t, err.Error(), "ids: 5")
		assert.True(t, errors.Is(err, pkgerrors.ErrInvariant))
		assert.True(t, pkgerrors.IsInvariant(err))
	})

	t.Run("ids are summarized", func(t *testing.T) {
		ids := make([]string, 15)
		for i := range ids {
			ids[i] = fmt.Sprint(i)
		}
		err := pkgerrors.NewInvariantError("duplicate_link", "ids linked twice", ids...)
		assert.Contains(t, err.Error(), "5 more")
		assert.NotContains(t, err.Error(), "14")
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("fold in: %w", pkgerrors.NewInvariantError("row_count", "3 != 4"))
		var inv *pkgerrors.InvariantError
		require.True(t, errors.As(err, &inv))
		assert.Equal(t, "row_count", inv.Check)
	})
}

func TestConflictError(t *testing.T) {
	base := errors.New("prompt closed")
	err := &pkgerrors.ConflictError{Identity: "Bob|Jones", Rows: 3, Message: "null-vs-value conflict", Err: base}

	assert.Contains(t, err.Error(), "Bob|Jones")
	assert.Contains(t, err.Error(), "3 rows")
	assert.True(t, pkgerrors.IsUnresolved(err))
	assert.Equal(t, base, errors.Unwrap(err))
}

func TestSchemaError(t *testing.T) {
	err := pkgerrors.NewSchemaError("supplemental", "dob", "gender")
	assert.Equal(t, "supplemental is missing columns: dob, gender", err.Error())
	assert.True(t, pkgerrors.IsSchemaDrift(err))

	bare := pkgerrors.NewSchemaError("", "x")
	assert.Equal(t, "missing columns: x", bare.Error())
}

func TestStageError(t *testing.T) {
	err := &pkgerrors.StageError{Operation: "fold in", Have: "seeded", Want: []string{"merged"}}
	assert.Equal(t, "fold in requires stage merged, have seeded", err.Error())
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidStage))
	assert.False(t, pkgerrors.IsInvariant(err))
}

func TestMergeError(t *testing.T) {
	t.Run("criterion scoped", func(t *testing.T) {
		err := pkgerrors.NewMergeError("exact", "supplemental", []string{"s1", "s2"})
		assert.Contains(t, err.Error(), "criterion exact")
		assert.Contains(t, err.Error(), "supplemental")
		assert.True(t, pkgerrors.IsInvariant(err))
	})

	t.Run("loop scoped", func(t *testing.T) {
		err := pkgerrors.NewMergeError("", "reference", []string{"7"})
		assert.Contains(t, err.Error(), "loop merge")
	})
}

func TestValidationError(t *testing.T) {
	err := pkgerrors.NewValidationError("policy", "sometimes", "unknown policy")
	assert.Contains(t, err.Error(), "policy")
	assert.True(t, pkgerrors.IsValidationError(err))

	assert.Nil(t, pkgerrors.WrapValidation("x", nil))
	wrapped := pkgerrors.WrapValidation("x", errors.New("bad"))
	assert.True(t, pkgerrors.IsValidationError(wrapped))
}

func TestIOError(t *testing.T) {
	baseErr := errors.New("disk full")
	err := pkgerrors.NewIOError("write", "/data/canonical.csv", baseErr)
	assert.Contains(t, err.Error(), "write")
	assert.Contains(t, err.Error(), "/data/canonical.csv")
	assert.Equal(t, baseErr, err.Unwrap())

	assert.Nil(t, pkgerrors.WrapIO("read", "x", nil))
	wrapped := pkgerrors.WrapIO("lock", "/data/canonical.csv.lock", pkgerrors.ErrLocked)
	assert.True(t, errors.Is(wrapped, pkgerrors.ErrLocked))
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name string
		err  *pkgerrors.ParseError
		want string
	}{
		{
			name: "file and line",
			err:  &pkgerrors.ParseError{Format: "csv", File: "batch.csv", Line: 10, Message: "wrong number of fields"},
			want: "parse error in csv at batch.csv:10: wrong number of fields",
		},
		{
			name: "file only",
			err:  &pkgerrors.ParseError{Format: "yaml", File: "plan.yaml", Message: "invalid indentation"},
			want: "parse error in yaml file plan.yaml: invalid indentation",
		},
		{
			name: "format only",
			err:  &pkgerrors.ParseError{Format: "csv", Message: "empty header"},
			want: "csv parse error: empty header",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}

	baseErr := errors.New("EOF")
	wrapped := pkgerrors.WrapParse("csv", "data.csv", baseErr)
	parseErr, ok := wrapped.(*pkgerrors.ParseError)
	require.True(t, ok)
	assert.Equal(t, "data.csv", parseErr.File)
	assert.Equal(t, baseErr, parseErr.Unwrap())
}

func TestConfigError(t *testing.T) {
	base := errors.New("no such key")
	err := pkgerrors.NewConfigError("plan", "missing criteria", base)
	assert.Equal(t, "configuration error in plan: missing criteria", err.Error())
	assert.Equal(t, base, err.Unwrap())
}

func TestAborted(t *testing.T) {
	err := fmt.Errorf("resolve: %w", pkgerrors.ErrAborted)
	assert.True(t, pkgerrors.IsAborted(err))
	assert.False(t, pkgerrors.IsUnresolved(err))
}
