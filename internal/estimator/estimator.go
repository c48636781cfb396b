package estimator

import (
	"context"

	"github.com/obeyhq/backend/domain"
)

// Result is the estimator's verdict on a proposed task. The engine treats
// every field as untrusted input and clamps it before building a proposal.
type Result struct {
	// Valid is false when the text does not read as a task at all.
	Valid bool `json:"valid"`
	// EstimateMinutes is the effort estimate.
	EstimateMinutes int `json:"estimate_minutes"`
	// GraceMinutes is extra deadline slack granted on top of the estimate.
	GraceMinutes int `json:"grace_minutes"`
	// Weight is an informational 1..5 heaviness score.
	Weight int `json:"weight"`
	// Comment is persona commentary for the proposal.
	Comment string `json:"comment"`
}

// Estimator produces effort estimates and persona commentary. Any error or
// timeout from an implementation is resolved by the engine with the
// deterministic rule-based fallback, never surfaced to the caller.
type Estimator interface {
	Estimate(ctx context.Context, text string, rank int) (*Result, error)
	CompletionComment(ctx context.Context, task *domain.Task, report string, rank int) (string, error)
}
