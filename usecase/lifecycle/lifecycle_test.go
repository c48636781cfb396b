package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/obeyhq/backend/domain"
	"github.com/obeyhq/backend/internal/estimator"
	"github.com/obeyhq/backend/pkg/clock"
	"github.com/obeyhq/backend/repository/memory"
)

type stubEstimator struct {
	estimate func(ctx context.Context, text string, rank int) (*estimator.Result, error)
	comment  func(ctx context.Context, task *domain.Task, report string, rank int) (string, error)
}

func (s *stubEstimator) Estimate(ctx context.Context, text string, rank int) (*estimator.Result, error) {
	if s.estimate == nil {
		return &estimator.Result{Valid: true, EstimateMinutes: 360, Weight: 3}, nil
	}
	return s.estimate(ctx, text, rank)
}

func (s *stubEstimator) CompletionComment(ctx context.Context, task *domain.Task, report string, rank int) (string, error) {
	if s.comment == nil {
		return "well done", nil
	}
	return s.comment(ctx, task, report, rank)
}

type env struct {
	svc   *Service
	store *memory.Store
	clk   *clock.Fixed
	est   *stubEstimator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	est := &stubEstimator{}
	return &env{
		svc:   New(store, est, clk, time.Second, nil),
		store: store,
		clk:   clk,
		est:   est,
	}
}

func (e *env) proposal(estimateMinutes int, deadlineIn time.Duration) *domain.Proposal {
	return &domain.Proposal{
		Title:           "write the quarterly report",
		EstimateMinutes: estimateMinutes,
		DeadlineAt:      e.clk.Now().Add(deadlineIn),
		Weight:          3,
	}
}

func (e *env) mustAccept(t *testing.T, userID string, p *domain.Proposal) *domain.Task {
	t.Helper()
	task, err := e.svc.Accept(context.Background(), userID, p)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return task
}

func (e *env) points(t *testing.T, userID string) int {
	t.Helper()
	profile, err := e.store.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	return profile.Points
}

func TestProposeRejectsShortText(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Propose(context.Background(), "u", "  x ")
	if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestProposeRejectsInvalidTask(t *testing.T) {
	e := newEnv(t)
	e.est.estimate = func(ctx context.Context, text string, rank int) (*estimator.Result, error) {
		return &estimator.Result{Valid: false}, nil
	}
	_, err := e.svc.Propose(context.Background(), "u", "aaaaaaa")
	if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestProposeFallsBackOnEstimatorError(t *testing.T) {
	e := newEnv(t)
	e.est.estimate = func(ctx context.Context, text string, rank int) (*estimator.Result, error) {
		return nil, errors.New("collaborator down")
	}

	proposal, err := e.svc.Propose(context.Background(), "u", "write the report")
	if err != nil {
		t.Fatalf("propose must not fail when the estimator is down: %v", err)
	}
	if proposal.EstimateMinutes != 360 {
		t.Errorf("fallback estimate = %d minutes, want 360", proposal.EstimateMinutes)
	}
	want := e.clk.Now().Add(360 * time.Minute)
	if !proposal.DeadlineAt.Equal(want) {
		t.Errorf("fallback deadline = %v, want %v", proposal.DeadlineAt, want)
	}
}

func TestProposeClampsEstimatorOutput(t *testing.T) {
	e := newEnv(t)
	e.est.estimate = func(ctx context.Context, text string, rank int) (*estimator.Result, error) {
		return &estimator.Result{
			Valid:           true,
			EstimateMinutes: 1_000_000,
			GraceMinutes:    1_000_000,
			Weight:          99,
		}, nil
	}

	proposal, err := e.svc.Propose(context.Background(), "u", "boil the ocean")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if proposal.EstimateMinutes != 1440 {
		t.Errorf("estimate clamped to %d, want 1440", proposal.EstimateMinutes)
	}
	if proposal.Weight != 5 {
		t.Errorf("weight clamped to %d, want 5", proposal.Weight)
	}
	want := e.clk.Now().Add(2 * 1440 * time.Minute)
	if !proposal.DeadlineAt.Equal(want) {
		t.Errorf("deadline = %v, want %v", proposal.DeadlineAt, want)
	}
}

func TestAcceptCreatesActiveTask(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))

	if task.ID == "" {
		t.Error("accepted task has no id")
	}
	if task.Status != domain.StatusActive {
		t.Errorf("status = %s, want ACTIVE", task.Status)
	}
	if task.ExtensionUsed {
		t.Error("extension_used must start false")
	}
	if !task.CreatedAt.Equal(e.clk.Now()) {
		t.Errorf("created_at = %v, want %v", task.CreatedAt, e.clk.Now())
	}
}

func TestAcceptCapacityLimit(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))
	}

	_, err := e.svc.Accept(context.Background(), "u", e.proposal(360, 2*time.Hour))
	if !domain.IsDomainError(err, domain.ErrCodeCapacity) {
		t.Fatalf("want capacity error, got %v", err)
	}

	active, err := e.svc.CurrentTasks(context.Background(), "u")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if len(active) != 3 {
		t.Errorf("active tasks = %d, want 3", len(active))
	}
}

func TestAcceptCapacityUnderConcurrency(t *testing.T) {
	e := newEnv(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.svc.Accept(context.Background(), "u", e.proposal(360, 2*time.Hour))
		}()
	}
	wg.Wait()

	active, err := e.svc.CurrentTasks(context.Background(), "u")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if len(active) != 3 {
		t.Errorf("active tasks after concurrent accepts = %d, want 3", len(active))
	}
}

func TestAcceptIsolatedPerUser(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		e.mustAccept(t, "alice", e.proposal(360, 2*time.Hour))
	}
	// Bob's capacity is untouched by Alice's tasks.
	e.mustAccept(t, "bob", e.proposal(360, 2*time.Hour))
}

func TestCompleteAwardsPoints(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))

	e.clk.Advance(time.Hour) // one hour remains

	completed, err := e.svc.Complete(context.Background(), "u", task.ID, "done, shipped it", nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", completed.Status)
	}
	if completed.CompletedAt == nil || !completed.CompletedAt.Equal(e.clk.Now()) {
		t.Errorf("completed_at = %v, want %v", completed.CompletedAt, e.clk.Now())
	}
	if completed.SelfReport != "done, shipped it" {
		t.Errorf("self_report = %q", completed.SelfReport)
	}
	// base 1 (6h estimate) + bonus 1 (1h remaining) on top of 10.
	if got := e.points(t, "u"); got != 12 {
		t.Errorf("points = %d, want 12", got)
	}
}

func TestCompleteWithExplicitTimestamp(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))

	at := e.clk.Now().Add(30 * time.Minute)
	completed, err := e.svc.Complete(context.Background(), "u", task.ID, "finished early", &at)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !completed.CompletedAt.Equal(at) {
		t.Errorf("completed_at = %v, want %v", completed.CompletedAt, at)
	}
	// 90 minutes remaining pays a single bonus hour.
	if got := e.points(t, "u"); got != 12 {
		t.Errorf("points = %d, want 12", got)
	}
}

func TestCompleteRejectsShortReport(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))

	_, err := e.svc.Complete(context.Background(), "u", task.ID, "ok", nil)
	if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("want validation error, got %v", err)
	}
	if got := e.points(t, "u"); got != 10 {
		t.Errorf("points changed on rejected complete: %d", got)
	}
}

func TestCompleteUnknownTask(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Complete(context.Background(), "u", "no-such-id", "did the thing", nil)
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestCompleteCommentFallsBack(t *testing.T) {
	e := newEnv(t)
	e.est.comment = func(ctx context.Context, task *domain.Task, report string, rank int) (string, error) {
		return "", errors.New("collaborator down")
	}
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))

	completed, err := e.svc.Complete(context.Background(), "u", task.ID, "all wrapped up", nil)
	if err != nil {
		t.Fatalf("complete must not fail on commentary trouble: %v", err)
	}
	if completed.CompletionComment == "" {
		t.Error("expected a placeholder completion comment")
	}
}

func TestWithdrawAppliesPenalty(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))

	failed, err := e.svc.Withdraw(context.Background(), "u", task.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if failed.Status != domain.StatusFailed {
		t.Errorf("status = %s, want FAILED", failed.Status)
	}
	if failed.FailedAt == nil {
		t.Error("failed_at not set")
	}
	// penalty 3 × base 1 on top of 10.
	if got := e.points(t, "u"); got != 7 {
		t.Errorf("points = %d, want 7", got)
	}

	// Terminal tasks are not addressable.
	if _, err := e.svc.Withdraw(context.Background(), "u", task.ID); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("want not found on second withdraw, got %v", err)
	}
}

func TestExtendOnlyOnce(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))
	originalDeadline := task.DeadlineAt

	extended, err := e.svc.Extend(context.Background(), "u", task.ID, 60)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !extended.DeadlineAt.Equal(originalDeadline.Add(time.Hour)) {
		t.Errorf("deadline = %v, want %v", extended.DeadlineAt, originalDeadline.Add(time.Hour))
	}
	if !extended.ExtensionUsed {
		t.Error("extension_used not set")
	}

	_, err = e.svc.Extend(context.Background(), "u", task.ID, 60)
	if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("second extension must be rejected, got %v", err)
	}
}

func TestExtendRangeValidation(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))

	for _, minutes := range []int{0, 4, 1441, -10} {
		if _, err := e.svc.Extend(context.Background(), "u", task.ID, minutes); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
			t.Errorf("extend by %d: want validation error, got %v", minutes, err)
		}
	}
}

func TestOverdueSweepFailsTasks(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, time.Hour))

	e.clk.Advance(2 * time.Hour)

	active, err := e.svc.CurrentTasks(context.Background(), "u")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active after sweep = %d, want 0", len(active))
	}
	if got := e.points(t, "u"); got != 7 {
		t.Errorf("points after sweep = %d, want 7", got)
	}

	recent, err := e.store.Recent(context.Background(), "u", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != task.ID || recent[0].Status != domain.StatusFailed {
		t.Errorf("swept task not recorded as FAILED: %+v", recent)
	}
}

func TestOverdueSweepIdempotent(t *testing.T) {
	e := newEnv(t)
	e.mustAccept(t, "u", e.proposal(360, time.Hour))
	e.clk.Advance(2 * time.Hour)

	first, err := e.svc.CurrentTasks(context.Background(), "u")
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	pointsAfterFirst := e.points(t, "u")

	second, err := e.svc.CurrentTasks(context.Background(), "u")
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(first) != len(second) {
		t.Errorf("active set changed between sweeps: %d vs %d", len(first), len(second))
	}
	if got := e.points(t, "u"); got != pointsAfterFirst {
		t.Errorf("second sweep changed points: %d vs %d", got, pointsAfterFirst)
	}
}

func TestLockoutBlocksAccept(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))
	if _, err := e.svc.Withdraw(context.Background(), "u", task.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// 7 points is rank 1 with a failed task on record: game over.

	_, err := e.svc.Accept(context.Background(), "u", e.proposal(360, 2*time.Hour))
	if !domain.IsDomainError(err, domain.ErrCodeLockedOut) {
		t.Fatalf("want lockout, got %v", err)
	}

	status, err := e.svc.GetStatus(context.Background(), "u")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.GameOver {
		t.Error("game_over flag not set")
	}
}

func TestLockoutLiftsAboveRankOne(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))
	if _, err := e.svc.Withdraw(context.Background(), "u", task.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	// Points climbing back to rank 2 lifts the lockout despite the
	// failure in history.
	if err := e.store.Save(context.Background(), &domain.Profile{UserID: "u", Points: 15}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))
}

func TestLockoutClearedByReset(t *testing.T) {
	e := newEnv(t)
	task := e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))
	if _, err := e.svc.Withdraw(context.Background(), "u", task.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if err := e.svc.Reset(context.Background(), "u"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	status, err := e.svc.GetStatus(context.Background(), "u")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Profile.Points != domain.StartingPoints {
		t.Errorf("points after reset = %d, want %d", status.Profile.Points, domain.StartingPoints)
	}
	if status.GameOver {
		t.Error("game_over still set after reset")
	}
	if len(status.ActiveTasks) != 0 || len(status.RecentTasks) != 0 {
		t.Errorf("tasks survived reset: %d active, %d recent",
			len(status.ActiveTasks), len(status.RecentTasks))
	}

	e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))
}

func TestStatusFields(t *testing.T) {
	e := newEnv(t)
	e.mustAccept(t, "u", e.proposal(360, 2*time.Hour))

	status, err := e.svc.GetStatus(context.Background(), "u")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Rank != 2 {
		t.Errorf("rank = %d, want 2", status.Rank)
	}
	if status.NextThreshold != 20 {
		t.Errorf("next_threshold = %d, want 20", status.NextThreshold)
	}
	if len(status.ActiveTasks) != 1 || len(status.RecentTasks) != 1 {
		t.Errorf("active=%d recent=%d, want 1/1", len(status.ActiveTasks), len(status.RecentTasks))
	}
	if status.GameOver {
		t.Error("fresh user flagged game over")
	}
}

func TestStatusSweepsBeforeRead(t *testing.T) {
	e := newEnv(t)
	e.mustAccept(t, "u", e.proposal(360, time.Hour))
	e.clk.Advance(2 * time.Hour)

	status, err := e.svc.GetStatus(context.Background(), "u")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(status.ActiveTasks) != 0 {
		t.Error("stale ACTIVE task observed past its deadline")
	}
	if !status.GameOver {
		t.Error("sweep result not reflected in game_over")
	}
}

func TestAcceptCountsSweptState(t *testing.T) {
	e := newEnv(t)
	// High enough that one failure cannot drop the user to rank 1.
	if err := e.store.Save(context.Background(), &domain.Profile{UserID: "u", Points: 30}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	e.mustAccept(t, "u", e.proposal(360, time.Hour))
	e.mustAccept(t, "u", e.proposal(360, 3*time.Hour))
	e.mustAccept(t, "u", e.proposal(360, 3*time.Hour))

	_, err := e.svc.Accept(context.Background(), "u", e.proposal(360, 3*time.Hour))
	if !domain.IsDomainError(err, domain.ErrCodeCapacity) {
		t.Fatalf("want capacity error while full, got %v", err)
	}

	e.clk.Advance(2 * time.Hour)

	// The first task is now overdue. Accept sweeps it, so its slot is free
	// and the new task fits.
	e.mustAccept(t, "u", e.proposal(360, 3*time.Hour))

	active, err := e.svc.CurrentTasks(context.Background(), "u")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if len(active) != 3 {
		t.Errorf("active = %d, want 3", len(active))
	}
	if got := e.points(t, "u"); got != 27 {
		t.Errorf("points = %d, want 27 after the swept failure", got)
	}
}

func TestAcceptSweepTriggersLockout(t *testing.T) {
	e := newEnv(t)
	e.mustAccept(t, "u", e.proposal(360, time.Hour))
	e.clk.Advance(2 * time.Hour)

	// No read happened since the deadline passed; the failure only
	// materializes through the sweep inside accept itself.
	_, err := e.svc.Accept(context.Background(), "u", e.proposal(360, 2*time.Hour))
	if !domain.IsDomainError(err, domain.ErrCodeLockedOut) {
		t.Fatalf("want lockout, got %v", err)
	}
	if got := e.points(t, "u"); got != 7 {
		t.Errorf("points = %d, want 7 after the swept failure", got)
	}
}

func TestSweepAll(t *testing.T) {
	e := newEnv(t)
	e.mustAccept(t, "alice", e.proposal(360, time.Hour))
	e.mustAccept(t, "bob", e.proposal(360, 3*time.Hour))
	e.clk.Advance(2 * time.Hour)

	if err := e.svc.SweepAll(context.Background()); err != nil {
		t.Fatalf("sweep all: %v", err)
	}
	if got := e.points(t, "alice"); got != 7 {
		t.Errorf("alice points = %d, want 7", got)
	}
	if got := e.points(t, "bob"); got != 10 {
		t.Errorf("bob points = %d, want 10", got)
	}
}
