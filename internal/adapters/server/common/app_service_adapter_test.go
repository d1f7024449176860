package common

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/evanschultz/initboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/initboard/internal/app"
	"github.com/evanschultz/initboard/internal/domain"
)

// newAdapterFixture builds an adapter over an in-memory sqlite board with three tasks.
func newAdapterFixture(t *testing.T) (*AppServiceAdapter, domain.Initiative, []domain.Task) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, func() time.Time { return time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC) }, app.ServiceConfig{})

	ctx := context.Background()
	initiative, err := svc.EnsureDefaultInitiative(ctx, "owner-1")
	if err != nil {
		t.Fatalf("EnsureDefaultInitiative() error = %v", err)
	}
	for _, in := range []app.CreateTaskInput{
		{Title: "T1", Status: domain.StatusTodo},
		{Title: "T2", Status: domain.StatusTodo},
		{Title: "T3", Status: domain.StatusProgress},
	} {
		in.InitiativeID = initiative.ID
		if _, err := svc.CreateTask(ctx, in); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}
	tasks, err := svc.ListTasks(ctx, initiative.ID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	return NewAppServiceAdapter(svc), initiative, tasks
}

func columnTitles(c Column) []string {
	out := make([]string, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestAppServiceAdapterBoard(t *testing.T) {
	adapter, initiative, _ := newAdapterFixture(t)
	b, err := adapter.Board(context.Background(), initiative.ID)
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	if len(b.Columns) != 3 || b.Columns[1].Label != "In Progress" {
		t.Fatalf("unexpected columns %#v", b.Columns)
	}
	if got := columnTitles(b.Columns[0]); !slices.Equal(got, []string{"T1", "T2"}) {
		t.Fatalf("unexpected To Do column %v", got)
	}
	if _, err := adapter.Board(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := adapter.Board(context.Background(), " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestAppServiceAdapterMoveTask(t *testing.T) {
	adapter, initiative, tasks := newAdapterFixture(t)
	b, err := adapter.MoveTask(context.Background(), MoveTaskRequest{
		InitiativeID: initiative.ID,
		TaskID:       tasks[0].ID,
		Status:       "In Progress",
		Index:        0,
		UserID:       "owner-1",
	})
	if err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if got := columnTitles(b.Columns[1]); !slices.Equal(got, []string{"T1", "T3"}) {
		t.Fatalf("unexpected In Progress column %v", got)
	}

	_, err = adapter.MoveTask(context.Background(), MoveTaskRequest{InitiativeID: initiative.ID, TaskID: tasks[0].ID, Status: "blocked"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	_, err = adapter.MoveTask(context.Background(), MoveTaskRequest{InitiativeID: initiative.ID, TaskID: tasks[0].ID, Status: "done", UserID: "stranger"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	_, err = adapter.MoveTask(context.Background(), MoveTaskRequest{InitiativeID: initiative.ID, TaskID: "ghost", Status: "done"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppServiceAdapterBulkUpdateConflict(t *testing.T) {
	adapter, initiative, tasks := newAdapterFixture(t)
	err := adapter.BulkUpdateTasks(context.Background(), initiative.ID, tasks[:2])
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	err = adapter.BulkUpdateTasks(context.Background(), initiative.ID, []domain.Task{tasks[2], tasks[0], tasks[1]})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
