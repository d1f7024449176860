// Package board implements the ordering model, drag session, and optimistic commit
// pipeline behind the three-column initiative board.
package board

import (
	"fmt"

	"github.com/evanschultz/initboard/internal/domain"
)

// Columns holds tasks partitioned by status, each bucket in board order.
type Columns map[domain.Status][]domain.Task

// Partition buckets tasks by status while preserving relative order. Tasks with a
// status outside domain.ColumnOrder are dropped.
func Partition(tasks []domain.Task) Columns {
	cols := make(Columns, len(domain.ColumnOrder))
	for _, status := range domain.ColumnOrder {
		cols[status] = []domain.Task{}
	}
	for _, task := range tasks {
		if _, ok := cols[task.Status]; !ok {
			continue
		}
		cols[task.Status] = append(cols[task.Status], task)
	}
	return cols
}

// Flatten concatenates columns in domain.ColumnOrder.
func (c Columns) Flatten() []domain.Task {
	out := make([]domain.Task, 0, c.Len())
	for _, status := range domain.ColumnOrder {
		out = append(out, c[status]...)
	}
	return out
}

// Len returns the number of tasks across all columns.
func (c Columns) Len() int {
	n := 0
	for _, status := range domain.ColumnOrder {
		n += len(c[status])
	}
	return n
}

// IDs returns the task ids of one column in order.
func (c Columns) IDs(status domain.Status) []string {
	tasks := c[status]
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

// Locate returns the column and in-column index of taskID.
func Locate(tasks []domain.Task, taskID string) (domain.Status, int, bool) {
	counts := map[domain.Status]int{}
	for _, task := range tasks {
		if task.ID == taskID {
			return task.Status, counts[task.Status], true
		}
		counts[task.Status]++
	}
	return "", 0, false
}

// Reorder moves one task to targetIndex within the target column and returns a new
// flattened list. The index is clamped to the target column's length with the moved
// task excluded. The input slice is never modified.
func Reorder(tasks []domain.Task, movedTaskID string, target domain.Status, targetIndex int) ([]domain.Task, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, target)
	}

	rest := make([]domain.Task, 0, len(tasks))
	var moved domain.Task
	found := false
	for _, task := range tasks {
		if !found && task.ID == movedTaskID {
			moved = task
			found = true
			continue
		}
		rest = append(rest, task)
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, movedTaskID)
	}

	cols := Partition(rest)
	moved.Status = target

	bucket := cols[target]
	idx := min(max(targetIndex, 0), len(bucket))
	spliced := make([]domain.Task, 0, len(bucket)+1)
	spliced = append(spliced, bucket[:idx]...)
	spliced = append(spliced, moved)
	spliced = append(spliced, bucket[idx:]...)
	cols[target] = spliced

	out := cols.Flatten()
	if err := VerifyPermutation(tasks, out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyPermutation reports ErrInconsistentOrder unless candidate holds exactly the
// task ids of original.
func VerifyPermutation(original, candidate []domain.Task) error {
	if len(original) != len(candidate) {
		return fmt.Errorf("%w: expected %d tasks, got %d", ErrInconsistentOrder, len(original), len(candidate))
	}
	seen := make(map[string]int, len(original))
	for _, task := range original {
		seen[task.ID]++
	}
	for _, task := range candidate {
		if seen[task.ID] == 0 {
			return fmt.Errorf("%w: unexpected task %q", ErrInconsistentOrder, task.ID)
		}
		seen[task.ID]--
	}
	return nil
}
