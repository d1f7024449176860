package board

import (
	"sync"

	"github.com/evanschultz/initboard/internal/domain"
)

// Store holds the working task list a board renders from. The list is only ever
// replaced wholesale. Upstream lists that arrive while a commit is in flight are held
// back and applied once the last in-flight commit settles.
type Store struct {
	mu         sync.RWMutex
	tasks      []domain.Task
	version    uint64
	inFlight   int
	pending    []domain.Task
	hasPending bool
}

// NewStore constructs a store seeded with initial.
func NewStore(initial []domain.Task) *Store {
	return &Store{tasks: domain.CloneTasks(initial)}
}

// Tasks returns a copy of the working list.
func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneTasks(s.tasks)
}

// Columns returns the working list partitioned by status.
func (s *Store) Columns() Columns {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Partition(s.tasks)
}

// ColumnIDs returns the task ids of one column in order.
func (s *Store) ColumnIDs(status domain.Status) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0)
	for _, task := range s.tasks {
		if task.Status == status {
			ids = append(ids, task.ID)
		}
	}
	return ids
}

// Task returns one task from the working list.
func (s *Store) Task(taskID string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, task := range s.tasks {
		if task.ID == taskID {
			return task, true
		}
	}
	return domain.Task{}, false
}

// Version increments on every replacement.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// InFlight reports whether any commit is awaiting persistence.
func (s *Store) InFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// Sync applies a fresh upstream list. While a commit is in flight the list is
// deferred and Sync returns false; the latest deferred list wins.
func (s *Store) Sync(fresh []domain.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight > 0 {
		s.pending = domain.CloneTasks(fresh)
		s.hasPending = true
		return false
	}
	s.replaceLocked(fresh)
	return true
}

func (s *Store) replace(tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(tasks)
}

func (s *Store) replaceLocked(tasks []domain.Task) {
	s.tasks = domain.CloneTasks(tasks)
	s.version++
}

// beginFlight swaps in the optimistic list and marks a commit in flight.
func (s *Store) beginFlight(optimistic []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
	s.replaceLocked(optimistic)
}

// endFlight settles one commit, restoring previous when restore is set. A deferred
// upstream list is applied once nothing else is in flight.
func (s *Store) endFlight(restore bool, previous []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if restore {
		s.replaceLocked(previous)
	}
	if s.inFlight > 0 {
		s.inFlight--
	}
	if s.inFlight == 0 && s.hasPending {
		s.replaceLocked(s.pending)
		s.pending = nil
		s.hasPending = false
	}
}
