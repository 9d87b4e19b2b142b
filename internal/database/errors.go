package database

import "errors"

var (
	// ErrTaskNotFound is returned when no matching cleaning task exists.
	ErrTaskNotFound = errors.New("cleaning task not found")

	// ErrTeamNotFound is returned when no matching team exists.
	ErrTeamNotFound = errors.New("team not found")

	// ErrDuplicateActiveTask is returned when an insert would violate the
	// one-active-auto-task-per-booking invariant. Callers treat it as
	// "task already exists" and fall through to the update comparison.
	ErrDuplicateActiveTask = errors.New("active task already exists for booking")

	// ErrTaskConflict is returned when a guarded update matched no row
	// because the task has progressed past a reschedulable status.
	ErrTaskConflict = errors.New("task status does not allow this change")
)
