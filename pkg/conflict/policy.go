package conflict

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Group is one deferred identity group shown to an operator.
type Group struct {
	// Number is the 1-based position of this group among Total deferred groups.
	Number int
	Total  int
	// Rows holds the group's distinct identity and conflict combinations.
	Rows *table.Table
}

// Action is the kind of operator answer.
type Action int

// Actions.
const (
	ActionSame Action = iota + 1
	ActionDistinct
	ActionLabels
	ActionQuit
)

// Decision is an operator answer for one Group.
type Decision struct {
	Action Action
	// Labels assigns each row a label when Action is ActionLabels; rows with
	// equal labels share an ID.
	Labels []int
}

// Prompter asks an operator to settle a deferred group.
type Prompter interface {
	Prompt(ctx context.Context, g Group) (Decision, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, g Group) (Decision, error)

// Prompt implements Prompter.
func (f PrompterFunc) Prompt(ctx context.Context, g Group) (Decision, error) {
	return f(ctx, g)
}

// ParseAnswer reads an operator answer for a group of n rows: "same",
// "distinct", "quit", or a comma-separated label per row such as "1,1,2".
func ParseAnswer(s string, n int) (Decision, error) {
	answer := strings.ToLower(strings.TrimSpace(s))
	switch answer {
	case "same", "s":
		return Decision{Action: ActionSame}, nil
	case "distinct", "d":
		return Decision{Action: ActionDistinct}, nil
	case "quit", "q", "exit":
		return Decision{Action: ActionQuit}, nil
	case "":
		return Decision{}, errors.NewValidationError("answer", s, "empty answer")
	}

	fields := strings.Split(answer, ",")
	if len(fields) != n {
		return Decision{}, errors.NewValidationError("answer", s,
			fmt.Sprintf("expected %d labels, got %d", n, len(fields)))
	}
	labels := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || v < 0 {
			return Decision{}, errors.NewValidationError("answer", s,
				fmt.Sprintf("label %q is not a non-negative integer", f))
		}
		labels[i] = v
	}
	return Decision{Action: ActionLabels, Labels: labels}, nil
}

func settle(ctx context.Context, policy Policy, p Prompter, t *table.Table, keys []string, rows []int, number, total int, m *minter) error {
	switch policy {
	case Same:
		id := m.next()
		for _, i := range rows {
			m.set(t.RowKey(i, keys...), id)
		}
		return nil
	case Distinct:
		for _, i := range rows {
			m.assign(t.RowKey(i, keys...))
		}
		return nil
	}

	group, err := t.Take(rows).Select(keys...)
	if err != nil {
		return err
	}
	d, err := p.Prompt(ctx, Group{Number: number, Total: total, Rows: group})
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Debug().
		Int("group", number).
		Int("rows", len(rows)).
		Int("action", int(d.Action)).
		Msg("Operator decision")

	switch d.Action {
	case ActionSame:
		return settle(ctx, Same, nil, t, keys, rows, number, total, m)
	case ActionDistinct:
		return settle(ctx, Distinct, nil, t, keys, rows, number, total, m)
	case ActionQuit:
		return errors.ErrAborted
	case ActionLabels:
		if len(d.Labels) != len(rows) {
			return &errors.ConflictError{
				Rows:    len(rows),
				Message: fmt.Sprintf("got %d labels", len(d.Labels)),
			}
		}
		byLabel := map[int]int64{}
		for k, i := range rows {
			id, ok := byLabel[d.Labels[k]]
			if !ok {
				id = m.next()
				byLabel[d.Labels[k]] = id
			}
			m.set(t.RowKey(i, keys...), id)
		}
		return nil
	}
	return &errors.ConflictError{Rows: len(rows), Message: "prompter returned no decision"}
}
