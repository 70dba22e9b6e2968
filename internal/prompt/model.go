package prompt

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentstation/crosswalk/pkg/conflict"
	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// model asks about one deferred group.
type model struct {
	group    conflict.Group
	input    textinput.Model
	decision conflict.Decision
	done     bool
	problem  string
}

func newModel(g conflict.Group) *model {
	in := textinput.New()
	in.Placeholder = "same, distinct, quit or labels like 1,1,2"
	in.Prompt = "> "
	in.CharLimit = 4 * (g.Rows.Len() + 8)
	in.Focus()
	return &model{group: g, input: in}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.decision = conflict.Decision{Action: conflict.ActionQuit}
			m.done = true
			return m, tea.Quit
		case tea.KeyEnter:
			d, err := conflict.ParseAnswer(m.input.Value(), m.group.Rows.Len())
			if err != nil {
				m.problem = err.Error()
				m.input.Reset()
				return m, nil
			}
			m.decision = d
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Conflict %d of %d", m.group.Number, m.group.Total)))
	b.WriteString("\n\n")
	b.WriteString(renderRows(m.group.Rows))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("Are these rows one person? Answer same, distinct, quit, or one label per row."))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	if m.problem != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.problem))
	}
	b.WriteString("\n")
	return b.String()
}

// renderRows lays a group out as aligned columns with a row label in front.
func renderRows(t *table.Table) string {
	cols := append([]string{"#"}, t.Columns()...)
	n := t.Len()
	shown := n
	if shown > constants.MaxPromptRows {
		shown = constants.MaxPromptRows
	}

	cells := make([][]string, shown)
	widths := make([]int, len(cols))
	for j, c := range cols {
		widths[j] = lipgloss.Width(c)
	}
	for i := 0; i < shown; i++ {
		row := make([]string, len(cols))
		row[0] = fmt.Sprint(i + 1)
		for j, c := range t.Columns() {
			row[j+1] = table.Format(t.Value(i, c))
		}
		for j, cell := range row {
			if w := lipgloss.Width(cell); w > widths[j] {
				widths[j] = w
			}
		}
		cells[i] = row
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-lipgloss.Width(s))
	}
	var b strings.Builder
	for j, c := range cols {
		if j > 0 {
			b.WriteString("  ")
		}
		b.WriteString(headerStyle.Render(pad(c, widths[j])))
	}
	b.WriteString("\n")
	for _, row := range cells {
		for j, cell := range row {
			if j > 0 {
				b.WriteString("  ")
			}
			if j == 0 {
				b.WriteString(labelStyle.Render(pad(cell, widths[j])))
				continue
			}
			b.WriteString(pad(cell, widths[j]))
		}
		b.WriteString("\n")
	}
	if shown < n {
		b.WriteString(hintStyle.Render(fmt.Sprintf("... and %d more rows", n-shown)))
		b.WriteString("\n")
	}
	return b.String()
}
