package prompt

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/crosswalk/pkg/conflict"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/table"
)

func group() conflict.Group {
	return conflict.Group{
		Number: 2,
		Total:  5,
		Rows: table.MustNew([]string{"first_name", "last_name", "birth_year"},
			[]any{"BOB", "JONES", 1970},
			[]any{"BOB", "JONES", 1971},
			[]any{"BOB", "JONES", nil},
		),
	}
}

func typeText(m *model, s string) *model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(*model)
}

func press(m *model, k tea.KeyType) (*model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(*model), cmd
}

func TestModelAnswers(t *testing.T) {
	tests := []struct {
		answer string
		want   conflict.Decision
	}{
		{"same", conflict.Decision{Action: conflict.ActionSame}},
		{"d", conflict.Decision{Action: conflict.ActionDistinct}},
		{"1,1,2", conflict.Decision{Action: conflict.ActionLabels, Labels: []int{1, 1, 2}}},
		{"quit", conflict.Decision{Action: conflict.ActionQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			m := typeText(newModel(group()), tt.answer)
			m, cmd := press(m, tea.KeyEnter)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.True(t, m.done)
			assert.Equal(t, tt.want, m.decision)
			assert.Empty(t, m.View())
		})
	}
}

func TestModelRejectsBadAnswer(t *testing.T) {
	m := typeText(newModel(group()), "1,2")
	m, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.False(t, m.done)
	assert.Contains(t, m.problem, "expected 3 labels")
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "expected 3 labels")

	m = typeText(m, "s")
	m, _ = press(m, tea.KeyEnter)
	assert.True(t, m.done)
	assert.Equal(t, conflict.ActionSame, m.decision.Action)
}

func TestModelEscapeQuits(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		m, cmd := press(newModel(group()), k)
		require.NotNil(t, cmd)
		assert.True(t, m.done)
		assert.Equal(t, conflict.ActionQuit, m.decision.Action)
	}
}

func TestModelView(t *testing.T) {
	view := newModel(group()).View()
	assert.Contains(t, view, "Conflict 2 of 5")
	assert.Contains(t, view, "first_name")
	assert.Contains(t, view, "1971")
	assert.Equal(t, 1, strings.Count(view, "1970"))
}

func TestRenderRowsCapsLongGroups(t *testing.T) {
	var rows [][]any
	for i := 0; i < 60; i++ {
		rows = append(rows, []any{i})
	}
	out := renderRows(table.MustNew([]string{"n"}, rows...))
	assert.Contains(t, out, "... and 10 more rows")
	assert.NotContains(t, out, "\n55")
}

func TestScripted(t *testing.T) {
	s, err := ReadScript(strings.NewReader("# group 1\nsame\n\n  1,2,2 \ndistinct\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Remaining())

	ctx := context.Background()
	d, err := s.Prompt(ctx, group())
	require.NoError(t, err)
	assert.Equal(t, conflict.ActionSame, d.Action)

	d, err = s.Prompt(ctx, group())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, d.Labels)

	_, err = s.Prompt(ctx, group())
	require.NoError(t, err)

	_, err = s.Prompt(ctx, group())
	assert.ErrorIs(t, err, errors.ErrUnresolved)

	_, err = NewScripted("1,2").Prompt(ctx, group())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestScriptedDrivesResolver(t *testing.T) {
	batch := table.MustNew([]string{"first_name", "last_name", "birth_year"},
		[]any{"BOB", "JONES", 1970},
		[]any{"BOB", "JONES", nil},
		[]any{"BOB", "JONES", 1971},
	)
	res, err := conflict.Resolve(context.Background(), batch, conflict.Options{
		IdentityColumns: []string{"first_name", "last_name"},
		ConflictColumns: []string{"birth_year"},
		Policy:          conflict.Manual,
		Prompter:        NewScripted("same"),
	})
	require.NoError(t, err)
	ids := res.Table.Column("conflict_id")
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
}
