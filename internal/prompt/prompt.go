// Package prompt asks an operator to settle conflict groups the resolver
// could not decide on its own.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/agentstation/crosswalk/pkg/conflict"
	"github.com/agentstation/crosswalk/pkg/errors"
)

// Terminal prompts interactively on a terminal.
type Terminal struct {
	in  io.Reader
	out io.Writer
}

// NewTerminal returns a prompter reading keys from in and drawing on out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// Prompt implements conflict.Prompter.
func (t *Terminal) Prompt(ctx context.Context, g conflict.Group) (conflict.Decision, error) {
	p := tea.NewProgram(newModel(g), tea.WithInput(t.in), tea.WithOutput(t.out), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return conflict.Decision{}, ctx.Err()
		}
		return conflict.Decision{}, fmt.Errorf("prompt: %w", err)
	}
	m, ok := final.(*model)
	if !ok || !m.done {
		return conflict.Decision{Action: conflict.ActionQuit}, nil
	}
	return m.decision, nil
}

// Interactive reports whether both stdin and stdout are terminals.
func Interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Default returns a terminal prompter on stdin and stdout, or nil when they
// are not both terminals so the resolver falls back to its fallback policy.
func Default() conflict.Prompter {
	if !Interactive() {
		return nil
	}
	return NewTerminal(os.Stdin, os.Stdout)
}

// Scripted answers groups from a list of prepared answers, one per group, in
// the same forms an operator would type. It lets a manual run be replayed.
type Scripted struct {
	answers []string
	next    int
}

// NewScripted returns a prompter that answers with answers, in order.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

// ReadScript reads one answer per non-empty line. Lines starting with # are
// comments.
func ReadScript(r io.Reader) (*Scripted, error) {
	var answers []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		answers = append(answers, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapIO("read", "answers", err)
	}
	return NewScripted(answers...), nil
}

// Prompt implements conflict.Prompter. Running out of answers is an error.
func (s *Scripted) Prompt(_ context.Context, g conflict.Group) (conflict.Decision, error) {
	if s.next >= len(s.answers) {
		return conflict.Decision{}, fmt.Errorf("%w: no scripted answer for conflict %d of %d", errors.ErrUnresolved, g.Number, g.Total)
	}
	answer := s.answers[s.next]
	s.next++
	d, err := conflict.ParseAnswer(answer, g.Rows.Len())
	if err != nil {
		return conflict.Decision{}, fmt.Errorf("scripted answer %d: %w", s.next, err)
	}
	return d, nil
}

// Remaining counts unused answers.
func (s *Scripted) Remaining() int {
	return len(s.answers) - s.next
}
