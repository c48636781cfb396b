package estimator

import (
	"context"
	"testing"

	"github.com/obeyhq/backend/domain"
)

func TestRuleBasedEstimate(t *testing.T) {
	cases := []struct {
		name        string
		text        string
		wantWeight  int
		wantMinutes int
	}{
		{"tiny", "fix typo", 1, 360},
		{"small", "write the weekly status report today", 2, 360},
		{"medium", "draft the migration plan for the billing service covering rollout rollback and the data backfill", 3, 360},
		{"large", "design and document the new ingestion pipeline including the schema the retry policy the dead letter handling the metrics the alerting the runbook and a capacity estimate for next quarter too", 4, 400},
	}

	r := NewRuleBased()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := r.Estimate(context.Background(), tc.text, 1)
			if err != nil {
				t.Fatalf("estimate: %v", err)
			}
			if !result.Valid {
				t.Fatal("rule path never rejects")
			}
			if result.Weight != tc.wantWeight {
				t.Errorf("weight = %d, want %d", result.Weight, tc.wantWeight)
			}
			if result.EstimateMinutes != tc.wantMinutes {
				t.Errorf("minutes = %d, want %d", result.EstimateMinutes, tc.wantMinutes)
			}
			if result.GraceMinutes != 0 {
				t.Errorf("grace = %d, want 0", result.GraceMinutes)
			}
		})
	}
}

func TestRuleBasedDeterministic(t *testing.T) {
	r := NewRuleBased()
	first, err := r.Estimate(context.Background(), "write the report", 3)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	second, err := r.Estimate(context.Background(), "write the report", 3)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if *first != *second {
		t.Errorf("same input produced different results: %+v vs %+v", first, second)
	}
}

func TestRuleBasedCompletionComment(t *testing.T) {
	r := NewRuleBased()
	comment, err := r.CompletionComment(context.Background(), &domain.Task{Title: "write the report"}, "done", 2)
	if err != nil {
		t.Fatalf("completion comment: %v", err)
	}
	if comment == "" {
		t.Error("empty completion comment")
	}
}
