package models

import "time"

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
	TaskFailed   TaskStatus = "failed"
)

// Task is a unit of work decomposed from an engagement objective.
//
// A task may transition pending -> running -> {complete, failed}, never
// backwards except through crash recovery, which re-marks an orphaned
// running task pending.
type Task struct {
	ID           string     `json:"id"`
	Description  string     `json:"description"`
	Type         string     `json:"type"`
	Dependencies []string   `json:"dependencies,omitempty"`
	Priority     int        `json:"priority"`
	Status       TaskStatus `json:"status"`
	Assignee     string     `json:"assignee,omitempty"`
	Result       string     `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskComplete || t.Status == TaskFailed
}

// Clone returns a deep copy of the task safe for the caller to mutate.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Dependencies != nil {
		c.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}
