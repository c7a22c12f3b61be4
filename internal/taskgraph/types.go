package taskgraph

import (
	"time"
)

// Status represents a task's lifecycle state.
type Status string

const (
	// StatusPending means the task has not been started.
	StatusPending Status = "pending"

	// StatusInProgress means an agent is working on the task.
	StatusInProgress Status = "in_progress"

	// StatusCompleted means the task is done.
	StatusCompleted Status = "completed"

	// StatusDeleted is accepted by Update as a deletion verb. It is
	// never stored: the task record is removed instead.
	StatusDeleted Status = "deleted"
)

// ValidStatuses returns the statuses Update accepts.
func ValidStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusDeleted}
}

// Task is one persisted task record. Dependencies is authoritative for
// cycle detection and the completion gate; Blocks is the maintained
// reverse edge list.
type Task struct {
	// ID is auto-incremented per team and never reused
	ID int `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Status Status `json:"status"`

	// Owner is the owning agent's name, empty when unassigned
	Owner string `json:"owner,omitempty"`

	// Dependencies lists task ids this task is blocked by
	Dependencies []int `json:"dependencies"`

	// Blocks lists task ids that depend on this one
	Blocks []int `json:"blocks"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt and UpdatedAt are RFC 3339 timestamps
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// DependsOn reports whether id is a direct dependency.
func (t *Task) DependsOn(id int) bool {
	for _, d := range t.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}

// Update carries a partial task update. Nil fields are left unchanged.
type Update struct {
	Title        *string
	Description  *string
	Status       *Status
	Owner        *string
	Dependencies *[]int
	Metadata     map[string]any
}

// nowISO returns the current time in RFC 3339 format.
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
