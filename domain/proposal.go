package domain

import "time"

// Proposal is a transient estimate awaiting acceptance. It is never
// persisted; acceptance turns it into an ACTIVE task, otherwise it is
// simply discarded.
type Proposal struct {
	Title           string    `json:"title"`
	EstimateMinutes int       `json:"estimate_minutes"`
	DeadlineAt      time.Time `json:"deadline_at"`
	Weight          int       `json:"weight"`
	Comment         string    `json:"ai_comment,omitempty"`
}
