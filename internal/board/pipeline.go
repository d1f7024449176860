package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/initboard/internal/domain"
)

// Persister saves a full ordered task list. Implementations replace status and
// order for every task in the list.
type Persister interface {
	BulkUpdateTasks(ctx context.Context, tasks []domain.Task) error
}

// PersistFunc adapts a function to Persister.
type PersistFunc func(ctx context.Context, tasks []domain.Task) error

// BulkUpdateTasks calls f.
func (f PersistFunc) BulkUpdateTasks(ctx context.Context, tasks []domain.Task) error {
	return f(ctx, tasks)
}

// NoticeLevel classifies user-facing notices.
type NoticeLevel string

// NoticeLevel values.
const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient user-facing message about a move.
type Notice struct {
	Level   NoticeLevel
	Message string
	TaskID  string
	Err     error
}

// Notifier receives move notices.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f.
func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

// Notice messages.
const (
	msgMoved       = "Task moved"
	msgMoveFailed  = "Could not move task"
	msgSaveFailed  = "Could not save task order"
	msgNoPersister = "task persister is not configured"
)

// Pipeline applies a reorder optimistically and persists it, rolling back to the
// pre-drag list on failure.
type Pipeline struct {
	store        *Store
	persister    Persister
	notifier     Notifier
	onDataChange func()
	logger       *log.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithNotifier sets the notice sink.
func WithNotifier(n Notifier) PipelineOption {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

// WithDataChange sets the callback invoked once after each successful save.
func WithDataChange(fn func()) PipelineOption {
	return func(p *Pipeline) {
		p.onDataChange = fn
	}
}

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(logger *log.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline constructs a commit pipeline over store.
func NewPipeline(store *Store, persister Persister, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:     store,
		persister: persister,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Commit reorders previous and applies the result to the store. The returned Flight
// persists it. When the reorder fails the store is reset to previous, an error notice
// is raised, and nothing is persisted.
func (p *Pipeline) Commit(previous []domain.Task, movedTaskID string, target domain.Status, targetIndex int) (*Flight, error) {
	next, err := Reorder(previous, movedTaskID, target, targetIndex)
	if err != nil {
		p.store.replace(previous)
		p.logger.Error("reorder rejected", "task_id", movedTaskID, "status", target, "index", targetIndex, "err", err)
		p.notify(Notice{Level: NoticeError, Message: msgMoveFailed, TaskID: movedTaskID, Err: err})
		return nil, err
	}

	p.store.beginFlight(next)
	p.logger.Debug("optimistic move applied", "task_id", movedTaskID, "status", target, "index", targetIndex)
	return &Flight{
		pipeline: p,
		taskID:   movedTaskID,
		previous: domain.CloneTasks(previous),
		tasks:    next,
		done:     make(chan struct{}),
	}, nil
}

// Move reorders the store's current list and persists it in one call.
func (p *Pipeline) Move(ctx context.Context, movedTaskID string, target domain.Status, targetIndex int) error {
	flight, err := p.Commit(p.store.Tasks(), movedTaskID, target, targetIndex)
	if err != nil {
		return err
	}
	return flight.Persist(ctx)
}

func (p *Pipeline) settle(ctx context.Context, f *Flight) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	if p.persister == nil {
		err = errors.New(msgNoPersister)
	} else {
		err = p.persister.BulkUpdateTasks(ctx, domain.CloneTasks(f.tasks))
	}
	if err != nil {
		p.store.endFlight(true, f.previous)
		p.logger.Error("persist task order failed", "task_id", f.taskID, "err", err)
		p.notify(Notice{Level: NoticeError, Message: msgSaveFailed, TaskID: f.taskID, Err: err})
		return fmt.Errorf("persist task order: %w", err)
	}

	p.store.endFlight(false, nil)
	p.logger.Info("task order saved", "task_id", f.taskID, "tasks", len(f.tasks))
	p.notify(Notice{Level: NoticeSuccess, Message: msgMoved, TaskID: f.taskID})
	if p.onDataChange != nil {
		p.onDataChange()
	}
	return nil
}

func (p *Pipeline) notify(n Notice) {
	if p.notifier != nil {
		p.notifier.Notify(n)
	}
}

// Flight is one optimistic move awaiting persistence.
type Flight struct {
	pipeline *Pipeline
	taskID   string
	previous []domain.Task
	tasks    []domain.Task

	once sync.Once
	err  error
	done chan struct{}
}

// TaskID returns the moved task id.
func (f *Flight) TaskID() string {
	return f.taskID
}

// Tasks returns the optimistic list being persisted.
func (f *Flight) Tasks() []domain.Task {
	return domain.CloneTasks(f.tasks)
}

// Previous returns the pre-drag snapshot restored on failure.
func (f *Flight) Previous() []domain.Task {
	return domain.CloneTasks(f.previous)
}

// Persist saves the optimistic list and settles the store. It runs at most once;
// later calls return the first result.
func (f *Flight) Persist(ctx context.Context) error {
	f.once.Do(func() {
		f.err = f.pipeline.settle(ctx, f)
		close(f.done)
	})
	return f.err
}

// Done is closed once Persist has settled.
func (f *Flight) Done() <-chan struct{} {
	return f.done
}
