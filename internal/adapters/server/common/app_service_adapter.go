package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/initboard/internal/app"
	"github.com/evanschultz/initboard/internal/board"
	"github.com/evanschultz/initboard/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListInitiatives lists initiatives.
func (a *AppServiceAdapter) ListInitiatives(ctx context.Context) ([]domain.Initiative, error) {
	initiatives, err := a.service.ListInitiatives(ctx)
	if err != nil {
		return nil, mapAppError("list initiatives", err)
	}
	return initiatives, nil
}

// Board returns one initiative's tasks grouped by column.
func (a *AppServiceAdapter) Board(ctx context.Context, initiativeID string) (Board, error) {
	initiativeID = strings.TrimSpace(initiativeID)
	if initiativeID == "" {
		return Board{}, fmt.Errorf("board: initiative_id is required: %w", ErrInvalidRequest)
	}
	initiative, err := a.service.GetInitiative(ctx, initiativeID)
	if err != nil {
		return Board{}, mapAppError("board", err)
	}
	tasks, err := a.service.ListTasks(ctx, initiativeID)
	if err != nil {
		return Board{}, mapAppError("board", err)
	}
	return BuildBoard(initiative, tasks), nil
}

// ListTasks returns the flattened ordered task list.
func (a *AppServiceAdapter) ListTasks(ctx context.Context, initiativeID string) ([]domain.Task, error) {
	if _, err := a.service.GetInitiative(ctx, initiativeID); err != nil {
		return nil, mapAppError("list tasks", err)
	}
	tasks, err := a.service.ListTasks(ctx, initiativeID)
	if err != nil {
		return nil, mapAppError("list tasks", err)
	}
	return tasks, nil
}

// BulkUpdateTasks persists a full ordered task list.
func (a *AppServiceAdapter) BulkUpdateTasks(ctx context.Context, initiativeID string, tasks []domain.Task) error {
	if err := a.service.BulkUpdateTasks(ctx, initiativeID, tasks); err != nil {
		return mapAppError("bulk update tasks", err)
	}
	return nil
}

// MoveTask reorders one task server-side and returns the updated board.
func (a *AppServiceAdapter) MoveTask(ctx context.Context, req MoveTaskRequest) (Board, error) {
	req.InitiativeID = strings.TrimSpace(req.InitiativeID)
	req.TaskID = strings.TrimSpace(req.TaskID)
	if req.InitiativeID == "" || req.TaskID == "" {
		return Board{}, fmt.Errorf("move task: initiative_id and task_id are required: %w", ErrInvalidRequest)
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return Board{}, fmt.Errorf("move task: %w", errors.Join(ErrInvalidRequest, err))
	}
	if userID := strings.TrimSpace(req.UserID); userID != "" {
		access, err := a.service.Access(ctx, req.InitiativeID, userID)
		if err != nil {
			return Board{}, mapAppError("move task", err)
		}
		if !access.CanEdit() {
			return Board{}, fmt.Errorf("move task: user %q cannot edit this board: %w", userID, ErrForbidden)
		}
	}
	if _, err := a.service.MoveTask(ctx, req.InitiativeID, req.TaskID, status, req.Index); err != nil {
		return Board{}, mapAppError("move task", err)
	}
	return a.Board(ctx, req.InitiativeID)
}

// ListTeamMembers lists an initiative's members.
func (a *AppServiceAdapter) ListTeamMembers(ctx context.Context, initiativeID string) ([]domain.TeamMember, error) {
	if _, err := a.service.GetInitiative(ctx, initiativeID); err != nil {
		return nil, mapAppError("list team members", err)
	}
	members, err := a.service.ListTeamMembers(ctx, initiativeID)
	if err != nil {
		return nil, mapAppError("list team members", err)
	}
	return members, nil
}

// Access resolves edit rights for userID.
func (a *AppServiceAdapter) Access(ctx context.Context, initiativeID, userID string) (domain.Access, error) {
	access, err := a.service.Access(ctx, initiativeID, userID)
	if err != nil {
		return domain.Access{}, mapAppError("access", err)
	}
	return access, nil
}

// BuildBoard groups tasks into the fixed column order.
func BuildBoard(initiative domain.Initiative, tasks []domain.Task) Board {
	cols := board.Partition(tasks)
	out := Board{Initiative: initiative, Columns: make([]Column, 0, len(domain.ColumnOrder))}
	for _, status := range domain.ColumnOrder {
		out.Columns = append(out.Columns, Column{
			Status: status,
			Label:  status.Label(),
			Tasks:  cols[status],
		})
	}
	return out
}

// mapAppError maps app and domain errors into transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrConflict):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidStatus):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
