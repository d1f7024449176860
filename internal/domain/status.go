package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Status is the column a task lives in.
type Status string

// Board columns.
const (
	StatusTodo     Status = "todo"
	StatusProgress Status = "progress"
	StatusDone     Status = "done"
)

// ColumnOrder is the fixed left-to-right order of board columns. Flattened task
// lists always concatenate columns in this order.
var ColumnOrder = []Status{StatusTodo, StatusProgress, StatusDone}

// Valid reports whether s is one of the board columns.
func (s Status) Valid() bool {
	return slices.Contains(ColumnOrder, s)
}

// Label returns the default human-readable column title.
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	default:
		return string(s)
	}
}

// ColumnIndex returns the position of s in ColumnOrder, or -1.
func (s Status) ColumnIndex() int {
	return slices.Index(ColumnOrder, s)
}

// ParseStatus accepts canonical values and common spellings like "To Do" or "in-progress".
func ParseStatus(raw string) (Status, error) {
	switch normalizeStatusToken(raw) {
	case "to-do", "todo":
		return StatusTodo, nil
	case "in-progress", "progress", "doing":
		return StatusProgress, nil
	case "done", "complete", "completed":
		return StatusDone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

func normalizeStatusToken(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	var b strings.Builder
	lastDash := false
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
