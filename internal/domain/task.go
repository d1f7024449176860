package domain

import (
	"strings"
	"time"
)

// Task is one card on an initiative board. Tasks carry no order field: a task's
// position is its index in the flattened task list.
type Task struct {
	ID           string    `json:"id"`
	InitiativeID string    `json:"initiativeId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	AssigneeID   string    `json:"assigneeId,omitempty"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

type TaskInput struct {
	ID           string
	InitiativeID string
	Title        string
	Description  string
	AssigneeID   string
	Status       Status
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.InitiativeID = strings.TrimSpace(in.InitiativeID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AssigneeID = strings.TrimSpace(in.AssigneeID)

	if in.ID == "" || in.InitiativeID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	if !in.Status.Valid() {
		return Task{}, ErrInvalidStatus
	}

	return Task{
		ID:           in.ID,
		InitiativeID: in.InitiativeID,
		Title:        in.Title,
		Description:  in.Description,
		AssigneeID:   in.AssigneeID,
		Status:       in.Status,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

// Validate checks the fields a persisted ordering depends on.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.InitiativeID) == "" {
		return ErrInvalidID
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// CloneTasks returns a shallow copy of tasks so callers can replace lists wholesale.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}
