package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/initboard/internal/board"
	"github.com/evanschultz/initboard/internal/domain"
)

// defaultInitiativeName names the initiative created on first run.
const defaultInitiativeName = "Inbox"

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultInitiativeName string
	Notifier              ChangeNotifier
	Logger                *log.Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service coordinates board reads and ordered bulk updates.
type Service struct {
	repo        Repository
	idGen       IDGenerator
	clock       Clock
	defaultName string
	notifier    ChangeNotifier
	logger      *log.Logger
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	name := strings.TrimSpace(cfg.DefaultInitiativeName)
	if name == "" {
		name = defaultInitiativeName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{
		repo:        repo,
		idGen:       idGen,
		clock:       clock,
		defaultName: name,
		notifier:    cfg.Notifier,
		logger:      logger,
	}
}

// SetNotifier replaces the change notifier.
func (s *Service) SetNotifier(n ChangeNotifier) {
	s.notifier = n
}

// EnsureDefaultInitiative returns the first initiative, creating one owned by ownerID
// when none exist.
func (s *Service) EnsureDefaultInitiative(ctx context.Context, ownerID string) (domain.Initiative, error) {
	initiatives, err := s.repo.ListInitiatives(ctx)
	if err != nil {
		return domain.Initiative{}, err
	}
	if len(initiatives) > 0 {
		return initiatives[0], nil
	}
	return s.CreateInitiative(ctx, s.defaultName, ownerID)
}

// CreateInitiative creates an initiative.
func (s *Service) CreateInitiative(ctx context.Context, name, ownerID string) (domain.Initiative, error) {
	initiative, err := domain.NewInitiative(s.idGen(), name, ownerID, s.clock())
	if err != nil {
		return domain.Initiative{}, err
	}
	if err := s.repo.CreateInitiative(ctx, initiative); err != nil {
		return domain.Initiative{}, err
	}
	return initiative, nil
}

// GetInitiative returns one initiative.
func (s *Service) GetInitiative(ctx context.Context, initiativeID string) (domain.Initiative, error) {
	return s.repo.GetInitiative(ctx, strings.TrimSpace(initiativeID))
}

// ListInitiatives lists initiatives.
func (s *Service) ListInitiatives(ctx context.Context) ([]domain.Initiative, error) {
	return s.repo.ListInitiatives(ctx)
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	InitiativeID string
	Title        string
	Description  string
	AssigneeID   string
	Status       domain.Status
}

// CreateTask appends a task to the end of its column.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	if _, err := s.repo.GetInitiative(ctx, in.InitiativeID); err != nil {
		return domain.Task{}, err
	}
	task, err := domain.NewTask(domain.TaskInput{
		ID:           s.idGen(),
		InitiativeID: in.InitiativeID,
		Title:        in.Title,
		Description:  in.Description,
		AssigneeID:   in.AssigneeID,
		Status:       in.Status,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	s.notifyChanged(task.InitiativeID)
	return task, nil
}

// ListTasks returns an initiative's tasks in board order.
func (s *Service) ListTasks(ctx context.Context, initiativeID string) ([]domain.Task, error) {
	initiativeID = strings.TrimSpace(initiativeID)
	if initiativeID == "" {
		return nil, fmt.Errorf("%w: initiative id is required", ErrInvalidRequest)
	}
	return s.repo.ListTasks(ctx, initiativeID)
}

// BulkUpdateTasks persists the full ordered task list of one initiative. Order is the
// array position; statuses are taken from each task.
func (s *Service) BulkUpdateTasks(ctx context.Context, initiativeID string, tasks []domain.Task) error {
	initiativeID = strings.TrimSpace(initiativeID)
	if err := validateBulkOrder(initiativeID, tasks); err != nil {
		return err
	}
	if _, err := s.repo.GetInitiative(ctx, initiativeID); err != nil {
		return err
	}
	if err := s.repo.ReplaceTaskOrder(ctx, initiativeID, tasks, s.clock()); err != nil {
		s.logger.Warn("bulk task update rejected", "initiative_id", initiativeID, "tasks", len(tasks), "err", err)
		return err
	}
	s.logger.Debug("bulk task update stored", "initiative_id", initiativeID, "tasks", len(tasks))
	s.notifyChanged(initiativeID)
	return nil
}

// MoveTask reorders one task on the stored board and persists the full list.
func (s *Service) MoveTask(ctx context.Context, initiativeID, taskID string, status domain.Status, index int) ([]domain.Task, error) {
	current, err := s.ListTasks(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	next, err := board.Reorder(current, strings.TrimSpace(taskID), status, index)
	if err != nil {
		if errors.Is(err, board.ErrTaskNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := s.BulkUpdateTasks(ctx, initiativeID, next); err != nil {
		return nil, err
	}
	return next, nil
}

// AddTeamMemberInput holds input values for add team member operations.
type AddTeamMemberInput struct {
	ID           string
	InitiativeID string
	Name         string
	AvatarURL    string
}

// AddTeamMember adds or updates a team member. An empty ID gets a generated one.
func (s *Service) AddTeamMember(ctx context.Context, in AddTeamMemberInput) (domain.TeamMember, error) {
	if _, err := s.repo.GetInitiative(ctx, in.InitiativeID); err != nil {
		return domain.TeamMember{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = s.idGen()
	}
	member, err := domain.NewTeamMember(id, in.InitiativeID, in.Name, in.AvatarURL)
	if err != nil {
		return domain.TeamMember{}, err
	}
	if err := s.repo.UpsertTeamMember(ctx, member); err != nil {
		return domain.TeamMember{}, err
	}
	return member, nil
}

// ListTeamMembers lists an initiative's members.
func (s *Service) ListTeamMembers(ctx context.Context, initiativeID string) ([]domain.TeamMember, error) {
	return s.repo.ListTeamMembers(ctx, strings.TrimSpace(initiativeID))
}

// Access resolves what userID may do on an initiative's board.
func (s *Service) Access(ctx context.Context, initiativeID, userID string) (domain.Access, error) {
	userID = strings.TrimSpace(userID)
	initiative, err := s.repo.GetInitiative(ctx, strings.TrimSpace(initiativeID))
	if err != nil {
		return domain.Access{}, err
	}
	if userID == "" {
		return domain.Access{}, nil
	}
	access := domain.Access{IsOwner: initiative.OwnerID == userID}
	members, err := s.repo.ListTeamMembers(ctx, initiative.ID)
	if err != nil {
		return domain.Access{}, err
	}
	for _, m := range members {
		if m.ID == userID {
			access.IsTeamMember = true
			break
		}
	}
	return access, nil
}

func (s *Service) notifyChanged(initiativeID string) {
	if s.notifier != nil {
		s.notifier.NotifyTasksChanged(initiativeID)
	}
}

// validateBulkOrder checks a flattened list before it reaches storage: one
// initiative, known statuses, unique ids, columns concatenated in board order.
func validateBulkOrder(initiativeID string, tasks []domain.Task) error {
	if initiativeID == "" {
		return fmt.Errorf("%w: initiative id is required", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(tasks))
	lastColumn := 0
	for i, task := range tasks {
		if err := task.Validate(); err != nil {
			return fmt.Errorf("%w: task %d: %v", ErrInvalidRequest, i, err)
		}
		if task.InitiativeID != initiativeID {
			return fmt.Errorf("%w: task %q belongs to initiative %q", ErrInvalidRequest, task.ID, task.InitiativeID)
		}
		if _, dup := seen[task.ID]; dup {
			return fmt.Errorf("%w: duplicate task %q", ErrInvalidRequest, task.ID)
		}
		seen[task.ID] = struct{}{}
		column := task.Status.ColumnIndex()
		if column < lastColumn {
			return fmt.Errorf("%w: task %q breaks column order", ErrInvalidRequest, task.ID)
		}
		lastColumn = column
	}
	return nil
}
