package app

import (
	"context"
	"time"

	"github.com/evanschultz/initboard/internal/domain"
)

// Repository persists initiatives, members, and ordered task lists.
type Repository interface {
	CreateInitiative(context.Context, domain.Initiative) error
	GetInitiative(context.Context, string) (domain.Initiative, error)
	ListInitiatives(context.Context) ([]domain.Initiative, error)

	UpsertTeamMember(context.Context, domain.TeamMember) error
	ListTeamMembers(context.Context, string) ([]domain.TeamMember, error)

	// CreateTask appends a task to the end of its column.
	CreateTask(context.Context, domain.Task) error
	// ListTasks returns one initiative's tasks in board order.
	ListTasks(context.Context, string) ([]domain.Task, error)
	// ReplaceTaskOrder stores status and position for every task of an initiative.
	// The list must hold exactly the initiative's stored tasks.
	ReplaceTaskOrder(context.Context, string, []domain.Task, time.Time) error
}

// ChangeNotifier fans out task-list changes to live boards.
type ChangeNotifier interface {
	NotifyTasksChanged(initiativeID string)
}
