package board

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/initboard/internal/domain"
)

// State is a drag session state.
type State int

// Drag session states.
const (
	StateIdle State = iota
	StateDragging
	StateDropPending
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateDropPending:
		return "drop_pending"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Placeholder is the column and sibling index a drop would land on.
type Placeholder struct {
	Status domain.Status
	Index  int
}

// Committer applies a move. *Pipeline satisfies it.
type Committer interface {
	Commit(previous []domain.Task, movedTaskID string, target domain.Status, targetIndex int) (*Flight, error)
}

// DropOutcome describes what a drop did.
type DropOutcome int

// DropOutcome values.
const (
	// DropIgnored means no drag was active.
	DropIgnored DropOutcome = iota
	// DropAborted means no placeholder was ever established.
	DropAborted
	// DropNoop means the task was dropped back into its own slot.
	DropNoop
	// DropCommitted means a move was applied and Flight awaits persistence.
	DropCommitted
	// DropFailed means the move was rejected before persistence.
	DropFailed
)

// DropResult reports the result of Controller.Drop.
type DropResult struct {
	Outcome     DropOutcome
	TaskID      string
	Placeholder Placeholder
	Flight      *Flight
	Err         error
}

// Controller tracks one drag gesture at a time. It is driven from a single UI
// goroutine and is not safe for concurrent use.
type Controller struct {
	store        *Store
	committer    Committer
	access       domain.Access
	logger       *log.Logger
	onTransition func(from, to State)

	state          State
	draggedID      string
	placeholder    Placeholder
	hasPlaceholder bool
	dropped        bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithAccess sets the initial edit permissions.
func WithAccess(access domain.Access) ControllerOption {
	return func(c *Controller) {
		c.access = access
	}
}

// WithTransitionHook registers fn to observe every state change.
func WithTransitionHook(fn func(from, to State)) ControllerOption {
	return func(c *Controller) {
		c.onTransition = fn
	}
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger *log.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController constructs an idle drag controller. Dragging stays disabled until
// access allows editing.
func NewController(store *Store, committer Committer, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:     store,
		committer: committer,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAccess updates edit permissions.
func (c *Controller) SetAccess(access domain.Access) {
	c.access = access
}

// Access returns the current edit permissions.
func (c *Controller) Access() domain.Access {
	return c.access
}

// State returns the current session state.
func (c *Controller) State() State {
	return c.state
}

// Active reports whether a drag is in progress.
func (c *Controller) Active() bool {
	return c.state == StateDragging
}

// DraggedTaskID returns the task being dragged, or "".
func (c *Controller) DraggedTaskID() string {
	return c.draggedID
}

// Placeholder returns the current drop target.
func (c *Controller) Placeholder() (Placeholder, bool) {
	return c.placeholder, c.hasPlaceholder
}

// Start begins dragging taskID.
func (c *Controller) Start(taskID string) error {
	if !c.access.CanEdit() {
		return ErrDragDisabled
	}
	if c.state != StateIdle {
		return ErrDragActive
	}
	if _, ok := c.store.Task(taskID); !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	c.draggedID = taskID
	c.placeholder = Placeholder{}
	c.hasPlaceholder = false
	c.dropped = false
	c.transition(StateDragging)
	return nil
}

// Over recomputes the placeholder for a pointer at pointerY over the status column.
// changed is false when the placeholder is unchanged or no drag is active.
func (c *Controller) Over(status domain.Status, pointerY float64, lookup RectLookup) (placeholder Placeholder, changed bool) {
	if c.state != StateDragging || !status.Valid() {
		return c.placeholder, false
	}
	next := Placeholder{
		Status: status,
		Index:  ResolveInsertionIndex(c.store.ColumnIDs(status), c.draggedID, pointerY, lookup),
	}
	if c.hasPlaceholder && c.placeholder == next {
		return c.placeholder, false
	}
	c.placeholder = next
	c.hasPlaceholder = true
	return next, true
}

// Drop finishes the drag at the last placeholder. The session is back to idle when
// Drop returns; persistence of a committed move continues through the Flight.
func (c *Controller) Drop() DropResult {
	if c.state != StateDragging {
		return DropResult{Outcome: DropIgnored}
	}
	c.dropped = true
	c.transition(StateDropPending)

	taskID, placeholder, has := c.draggedID, c.placeholder, c.hasPlaceholder
	defer c.reset()

	result := DropResult{TaskID: taskID, Placeholder: placeholder}
	if !has {
		result.Outcome = DropAborted
		c.logger.Debug("drop without placeholder", "task_id", taskID)
		return result
	}

	previous := c.store.Tasks()
	if status, index, ok := Locate(previous, taskID); ok && status == placeholder.Status && index == placeholder.Index {
		result.Outcome = DropNoop
		return result
	}

	flight, err := c.committer.Commit(previous, taskID, placeholder.Status, placeholder.Index)
	if err != nil {
		result.Outcome = DropFailed
		result.Err = err
		return result
	}
	result.Outcome = DropCommitted
	result.Flight = flight
	return result
}

// End handles drag-end. A drag that ends without a drop is cancelled and leaves the
// working list untouched. End reports whether it cancelled a drag.
func (c *Controller) End() bool {
	if c.state != StateDragging || c.dropped {
		return false
	}
	c.transition(StateCancelled)
	c.logger.Debug("drag cancelled", "task_id", c.draggedID)
	c.reset()
	return true
}

func (c *Controller) reset() {
	c.draggedID = ""
	c.placeholder = Placeholder{}
	c.hasPlaceholder = false
	c.transition(StateIdle)
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}
