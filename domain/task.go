package domain

import "time"

// TaskStatus enumerates the persisted lifecycle states of a task.
type TaskStatus string

const (
	StatusActive    TaskStatus = "ACTIVE"
	StatusCompleted TaskStatus = "COMPLETED"
	StatusFailed    TaskStatus = "FAILED"
)

// Task represents an accepted commitment under a deadline.
type Task struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Title             string     `json:"title"`
	Status            TaskStatus `json:"status"`
	EstimateMinutes   int        `json:"estimate_minutes"`
	Weight            int        `json:"weight"`
	CreatedAt         time.Time  `json:"created_at"`
	DeadlineAt        time.Time  `json:"deadline_at"`
	ExtensionUsed     bool       `json:"extension_used"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
	SelfReport        string     `json:"self_report,omitempty"`
	CompletionComment string     `json:"ai_completion_comment,omitempty"`
}

func (t *Task) IsActive() bool {
	return t != nil && t.Status == StatusActive
}

// IsTerminal reports whether the task reached a final state. Terminal tasks
// never transition again.
func (t *Task) IsTerminal() bool {
	return t != nil && (t.Status == StatusCompleted || t.Status == StatusFailed)
}

// OverdueAt reports whether the deadline has passed at the given instant.
func (t *Task) OverdueAt(now time.Time) bool {
	return t != nil && now.After(t.DeadlineAt)
}

// RemainingAt returns the seconds left before the deadline, floored at zero.
func (t *Task) RemainingAt(now time.Time) int64 {
	if t == nil {
		return 0
	}
	remaining := int64(t.DeadlineAt.Sub(now) / time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}
