package estimator

import (
	"context"
	"strings"

	"github.com/obeyhq/backend/domain"
)

const (
	// fallbackFloorMinutes is the minimum estimate the rule path hands out.
	fallbackFloorMinutes = 360
	fallbackComment      = "Task analyzed. Execute."
	fallbackCompletion   = "Task completion confirmed."
)

// RuleBased is the deterministic local estimator. It never fails, so the
// critical path stays available when the remote collaborator is down.
type RuleBased struct{}

// NewRuleBased returns the rule-based estimator.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

var _ Estimator = (*RuleBased)(nil)

func (RuleBased) Estimate(ctx context.Context, text string, rank int) (*Result, error) {
	weight := classifyWeight(text)
	minutes := weight * 100
	if minutes < fallbackFloorMinutes {
		minutes = fallbackFloorMinutes
	}
	return &Result{
		Valid:           true,
		EstimateMinutes: minutes,
		GraceMinutes:    0,
		Weight:          weight,
		Comment:         fallbackComment,
	}, nil
}

func (RuleBased) CompletionComment(ctx context.Context, task *domain.Task, report string, rank int) (string, error) {
	return fallbackCompletion, nil
}

// classifyWeight scores the description from 1 (tiny) to 5 (heavy) by word
// count.
func classifyWeight(text string) int {
	words := len(strings.Fields(text))
	switch {
	case words < 5:
		return 1
	case words < 12:
		return 2
	case words < 25:
		return 3
	case words < 40:
		return 4
	default:
		return 5
	}
}
