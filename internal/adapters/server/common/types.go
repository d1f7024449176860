// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/evanschultz/initboard/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing initiatives or tasks.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a bulk update built from a stale task list.
var ErrConflict = errors.New("conflict")

// ErrForbidden reports a caller without edit rights on a board.
var ErrForbidden = errors.New("forbidden")

// BoardService is the board surface shared by HTTP and MCP transports.
type BoardService interface {
	ListInitiatives(context.Context) ([]domain.Initiative, error)
	Board(context.Context, string) (Board, error)
	ListTasks(context.Context, string) ([]domain.Task, error)
	BulkUpdateTasks(context.Context, string, []domain.Task) error
	MoveTask(context.Context, MoveTaskRequest) (Board, error)
	ListTeamMembers(context.Context, string) ([]domain.TeamMember, error)
	Access(context.Context, string, string) (domain.Access, error)
}

// Board is one initiative's tasks grouped into columns.
type Board struct {
	Initiative domain.Initiative `json:"initiative"`
	Columns    []Column          `json:"columns"`
}

// Column is one status column of a board.
type Column struct {
	Status domain.Status `json:"status"`
	Label  string        `json:"label"`
	Tasks  []domain.Task `json:"tasks"`
}

// MoveTaskRequest moves one task to index within a column.
type MoveTaskRequest struct {
	InitiativeID string `json:"initiativeId"`
	TaskID       string `json:"taskId"`
	Status       string `json:"status"`
	Index        int    `json:"index"`
	// UserID, when set, must have edit rights on the initiative.
	UserID string `json:"userId,omitempty"`
}

// BulkUpdateRequest is the body of a full ordered task list update.
type BulkUpdateRequest struct {
	Tasks []domain.Task `json:"tasks"`
}
