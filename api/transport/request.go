package transport

type ProposeRequest struct {
	Text string `json:"text"`
}

// AcceptRequest mirrors the proposal the client received from propose.
type AcceptRequest struct {
	Title           string `json:"title"`
	EstimateMinutes int    `json:"estimate_minutes"`
	DeadlineAt      string `json:"deadline_at"`
	Weight          int    `json:"weight"`
	AiComment       string `json:"ai_comment"`
}

type ExtendRequest struct {
	TaskID       string `json:"task_id"`
	ExtraMinutes int    `json:"extra_minutes"`
}

type CompleteRequest struct {
	TaskID      string `json:"task_id"`
	SelfReport  string `json:"self_report"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type WithdrawRequest struct {
	TaskID string `json:"task_id"`
}
