package board

import "errors"

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInconsistentOrder = errors.New("inconsistent task order")
	ErrDragDisabled      = errors.New("drag disabled")
	ErrDragActive        = errors.New("drag already active")
)
