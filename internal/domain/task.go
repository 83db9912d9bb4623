package domain

// TaskStatus is the lifecycle state of a session's background
// enrichment task.
type TaskStatus string

const (
	TaskIdle       TaskStatus = "idle"
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskComplete   TaskStatus = "complete"
	TaskError      TaskStatus = "error"
)

// Terminal reports whether no further transition can occur.
// Idle counts as terminal: there is no running task to wait on.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskComplete, TaskError, TaskIdle, "":
		return true
	}
	return false
}
