package model

// TaskStatus represents the status of a fetch or compression task
type TaskStatus string

const (
	// TaskStatusPending means the task is planned but not started
	TaskStatusPending TaskStatus = "Pending"

	// TaskStatusRunning means the external command is executing
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusSkipped means the command was only printed (dry-run)
	TaskStatusSkipped TaskStatus = "Skipped"

	// TaskStatusStopped means the task was interrupted
	TaskStatusStopped TaskStatus = "Stopped"

	// TaskStatusCompleted means the command exited with status 0
	TaskStatusCompleted TaskStatus = "Completed"

	// TaskStatusError means the command failed or could not be started
	TaskStatusError TaskStatus = "Error"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive returns true if the task is in an active state
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusRunning
}

// IsFinished returns true if the task reached a terminal state
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusStopped ||
		ts == TaskStatusError || ts == TaskStatusSkipped
}

// IsFailure returns true for terminal states that should fail the fetch
func (ts TaskStatus) IsFailure() bool {
	return ts == TaskStatusError || ts == TaskStatusStopped
}
