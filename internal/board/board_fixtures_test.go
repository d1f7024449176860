package board

import (
	"context"
	"slices"
	"sync"

	"github.com/evanschultz/initboard/internal/domain"
)

func task(id string, status domain.Status) domain.Task {
	return domain.Task{ID: id, InitiativeID: "init-1", Title: id, Status: status}
}

// sampleBoard is To Do=[T1,T2], In Progress=[T3], Done=[].
func sampleBoard() []domain.Task {
	return []domain.Task{
		task("T1", domain.StatusTodo),
		task("T2", domain.StatusTodo),
		task("T3", domain.StatusProgress),
	}
}

func taskIDs(tasks []domain.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func equalTasks(a, b []domain.Task) bool {
	return slices.Equal(a, b)
}

// fakePersister records bulk updates and returns err.
type fakePersister struct {
	mu    sync.Mutex
	err   error
	calls [][]domain.Task
	block chan struct{}
}

func (f *fakePersister) BulkUpdateTasks(ctx context.Context, tasks []domain.Task) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tasks)
	return f.err
}

func (f *fakePersister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// noticeRecorder captures notices.
type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) levels() []NoticeLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NoticeLevel, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Level)
	}
	return out
}

// stackRects lays out ids top to bottom with a fixed card height.
func stackRects(ids []string, height float64) RectLookup {
	rects := make(map[string]Rect, len(ids))
	for i, id := range ids {
		rects[id] = Rect{Top: float64(i) * height, Height: height}
	}
	return func(id string) (Rect, bool) {
		r, ok := rects[id]
		return r, ok
	}
}
