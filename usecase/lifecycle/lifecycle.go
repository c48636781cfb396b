package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/obeyhq/backend/domain"
	"github.com/obeyhq/backend/internal/estimator"
	"github.com/obeyhq/backend/pkg/clock"
	"github.com/obeyhq/backend/repository"
)

const (
	maxActiveTasks = 3
	recentLimit    = 10

	minProposalChars = 3
	minReportChars   = 3

	minExtensionMinutes = 5
	maxExtensionMinutes = 1440

	// Estimator output is untrusted; estimates are clamped to this range.
	minEstimateMinutes = 30
	maxEstimateMinutes = 1440
	maxGraceMinutes    = 1440
)

// Service orchestrates the task lifecycle: proposal, acceptance, extension,
// completion, withdrawal, the overdue sweep, and the purge. It is the only
// place with branching policy; scoring math lives in domain, storage behind
// the repository contract.
//
// Operations for one user are serialized through a per-user mutex so the
// capacity and lockout checks can never race with a concurrent accept.
type Service struct {
	profiles repository.ProfileRepository
	tasks    repository.TaskRepository
	purger   repository.Purger
	est      estimator.Estimator
	fallback *estimator.RuleBased
	clk      clock.Clock
	logger   *zap.Logger

	estimateTimeout time.Duration
	locks           userLocks
}

// New wires the service. A nil estimator degrades to the rule-based one.
func New(store repository.Store, est estimator.Estimator, clk clock.Clock, estimateTimeout time.Duration, logger *zap.Logger) *Service {
	fallback := estimator.NewRuleBased()
	if est == nil {
		est = fallback
	}
	if clk == nil {
		clk = clock.System()
	}
	if estimateTimeout <= 0 {
		estimateTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		profiles:        store,
		tasks:           store,
		purger:          store,
		est:             est,
		fallback:        fallback,
		clk:             clk,
		logger:          logger,
		estimateTimeout: estimateTimeout,
	}
}

// Status is the full game state a client renders.
type Status struct {
	Profile       domain.Profile `json:"profile"`
	Rank          int            `json:"rank"`
	ActiveTasks   []domain.Task  `json:"active_tasks"`
	RecentTasks   []domain.Task  `json:"recent_tasks"`
	NextThreshold int            `json:"next_threshold"`
	GameOver      bool           `json:"game_over"`
}

// Propose asks the estimator for effort and commentary and returns a
// transient proposal. Nothing is persisted; the estimator's numbers are
// clamped before use.
func (s *Service) Propose(ctx context.Context, userID, text string) (*domain.Proposal, error) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minProposalChars {
		return nil, domain.NewError(domain.ErrCodeInvalid, "task description too short")
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "reading profile", err)
	}

	result := s.estimate(ctx, text, profile.Rank())
	if !result.Valid {
		return nil, domain.NewError(domain.ErrCodeInvalid, "the text does not read as a task")
	}

	minutes := clampInt(result.EstimateMinutes, minEstimateMinutes, maxEstimateMinutes)
	grace := clampInt(result.GraceMinutes, 0, maxGraceMinutes)
	now := s.clk.Now()

	return &domain.Proposal{
		Title:           text,
		EstimateMinutes: minutes,
		DeadlineAt:      now.Add(time.Duration(minutes+grace) * time.Minute),
		Weight:          clampInt(result.Weight, 1, 5),
		Comment:         result.Comment,
	}, nil
}

// Accept turns a proposal into an ACTIVE task. Capacity and lockout are
// checked against swept state inside the user's critical section.
func (s *Service) Accept(ctx context.Context, userID string, proposal *domain.Proposal) (*domain.Task, error) {
	if proposal == nil || strings.TrimSpace(proposal.Title) == "" || proposal.EstimateMinutes <= 0 {
		return nil, domain.ErrInvalidPayload
	}
	if proposal.DeadlineAt.IsZero() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "proposal has no deadline")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	now := s.clk.Now()
	if !proposal.DeadlineAt.After(now) {
		return nil, domain.NewError(domain.ErrCodeInvalid, "proposal deadline already passed")
	}

	active, err := s.sweep(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(active) >= maxActiveTasks {
		return nil, domain.ErrCapacityExceeded
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "reading profile", err)
	}
	anyFailed, err := s.tasks.AnyFailed(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "checking failure history", err)
	}
	if anyFailed && profile.Rank() == 1 {
		return nil, domain.ErrLockedOut
	}

	weight := proposal.Weight
	if weight <= 0 {
		weight = 1
	}
	task := &domain.Task{
		ID:                uuid.NewString(),
		UserID:            userID,
		Title:             strings.TrimSpace(proposal.Title),
		Status:            domain.StatusActive,
		EstimateMinutes:   proposal.EstimateMinutes,
		Weight:            weight,
		CreatedAt:         now,
		DeadlineAt:        proposal.DeadlineAt,
		ExtensionUsed:     false,
		CompletionComment: proposal.Comment,
	}

	created, err := s.tasks.Insert(ctx, task)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "inserting task", err)
	}
	s.logger.Info("task accepted",
		zap.String("user_id", userID),
		zap.String("task_id", created.ID),
		zap.Int("estimate_minutes", created.EstimateMinutes))
	return created, nil
}

// Extend pushes the deadline once per task by 5 to 1440 minutes.
func (s *Service) Extend(ctx context.Context, userID, taskID string, extraMinutes int) (*domain.Task, error) {
	if extraMinutes < minExtensionMinutes || extraMinutes > maxExtensionMinutes {
		return nil, domain.NewError(domain.ErrCodeInvalid, "extension minutes must be between 5 and 1440")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	task, err := s.findActive(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.ExtensionUsed {
		return nil, domain.ErrExtensionUsed
	}

	task.DeadlineAt = task.DeadlineAt.Add(time.Duration(extraMinutes) * time.Minute)
	task.ExtensionUsed = true
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "updating task", err)
	}
	return task, nil
}

// Complete finishes an ACTIVE task, awards points for estimate and remaining
// time, and attaches best-effort persona commentary. The task transition is
// written before the score, always.
func (s *Service) Complete(ctx context.Context, userID, taskID, selfReport string, completedAt *time.Time) (*domain.Task, error) {
	report := strings.TrimSpace(selfReport)
	if len([]rune(report)) < minReportChars {
		return nil, domain.NewError(domain.ErrCodeInvalid, "self report too short")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	task, err := s.findActive(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	if completedAt != nil {
		now = *completedAt
	}
	remaining := task.RemainingAt(now)

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "reading profile", err)
	}

	// Commentary is gathered before any write so a slow collaborator can
	// never leave the task half-transitioned.
	task.Status = domain.StatusCompleted
	task.CompletedAt = &now
	task.SelfReport = report
	task.CompletionComment = s.completionComment(ctx, task, report, profile.Rank())

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "updating task", err)
	}

	updated := domain.ApplySuccess(*profile, *task, remaining)
	if err := s.profiles.Save(ctx, &updated); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "writing score after task transition", err)
	}

	s.logger.Info("task completed",
		zap.String("user_id", userID),
		zap.String("task_id", task.ID),
		zap.Int64("remaining_seconds", remaining),
		zap.Int("points", updated.Points))
	return task, nil
}

// Withdraw fails an ACTIVE task on explicit request and applies the penalty.
func (s *Service) Withdraw(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	task, err := s.findActive(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.failTask(ctx, task, s.clk.Now()); err != nil {
		return nil, err
	}
	return task, nil
}

// CurrentTasks sweeps and returns the user's ACTIVE tasks. A task past its
// deadline is never observable as ACTIVE.
func (s *Service) CurrentTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	unlock := s.locks.lock(userID)
	defer unlock()
	return s.sweep(ctx, userID)
}

// GetStatus sweeps and assembles the full game state.
func (s *Service) GetStatus(ctx context.Context, userID string) (*Status, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	active, err := s.sweep(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "reading profile", err)
	}
	recent, err := s.tasks.Recent(ctx, userID, recentLimit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "reading recent tasks", err)
	}
	anyFailed, err := s.tasks.AnyFailed(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "checking failure history", err)
	}

	return &Status{
		Profile:       *profile,
		Rank:          profile.Rank(),
		ActiveTasks:   active,
		RecentTasks:   recent,
		NextThreshold: domain.NextThreshold(profile.Points),
		GameOver:      profile.Rank() == 1 && anyFailed,
	}, nil
}

// Reset purges every task and restores the profile to the starting score.
func (s *Service) Reset(ctx context.Context, userID string) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	if err := s.purger.Purge(ctx, userID); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "purging user data", err)
	}
	s.logger.Info("user data purged", zap.String("user_id", userID))
	return nil
}

// SweepAll runs the overdue sweep for every user holding ACTIVE tasks. The
// inline sweep on read paths is the correctness mechanism; this only bounds
// staleness for users who never read.
func (s *Service) SweepAll(ctx context.Context) error {
	users, err := s.tasks.UsersWithActive(ctx)
	if err != nil {
		return err
	}
	for _, userID := range users {
		unlock := s.locks.lock(userID)
		_, err := s.sweep(ctx, userID)
		unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// sweep force-fails overdue tasks and returns the remaining ACTIVE set.
// Idempotent: a second run with no time passing changes nothing. Callers
// must hold the user's lock.
func (s *Service) sweep(ctx context.Context, userID string) ([]domain.Task, error) {
	active, err := s.tasks.GetActive(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "reading active tasks", err)
	}

	now := s.clk.Now()
	still := make([]domain.Task, 0, len(active))
	for i := range active {
		task := &active[i]
		if !task.OverdueAt(now) {
			still = append(still, *task)
			continue
		}
		if err := s.failTask(ctx, task, now); err != nil {
			return nil, err
		}
		s.logger.Info("task failed by overdue sweep",
			zap.String("user_id", userID),
			zap.String("task_id", task.ID),
			zap.Time("deadline_at", task.DeadlineAt))
	}
	return still, nil
}

// failTask writes the FAILED transition first, then the penalty, the single
// authoritative ordering shared by withdrawal and the sweep.
func (s *Service) failTask(ctx context.Context, task *domain.Task, now time.Time) error {
	task.Status = domain.StatusFailed
	task.FailedAt = &now
	if err := s.tasks.Update(ctx, task); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "updating task", err)
	}

	profile, err := s.profiles.Get(ctx, task.UserID)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "reading profile", err)
	}
	updated := domain.ApplyFailure(*profile, *task)
	if err := s.profiles.Save(ctx, &updated); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "writing score after task transition", err)
	}
	return nil
}

// findActive resolves a task id against the user's ACTIVE set. Terminal
// tasks are not addressable, so they surface as not found.
func (s *Service) findActive(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	active, err := s.tasks.GetActive(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "reading active tasks", err)
	}
	for i := range active {
		if active[i].ID == taskID {
			return &active[i], nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

// estimate calls the configured estimator under a timeout. Any failure
// degrades to the deterministic rule-based estimate so the critical path
// never depends on the collaborator.
func (s *Service) estimate(ctx context.Context, text string, rank int) *estimator.Result {
	estCtx, cancel := context.WithTimeout(ctx, s.estimateTimeout)
	defer cancel()

	result, err := s.est.Estimate(estCtx, text, rank)
	if err == nil && result != nil {
		return result
	}
	s.logger.Warn("estimator unavailable, using rule-based fallback", zap.Error(err))
	result, _ = s.fallback.Estimate(ctx, text, rank)
	return result
}

// completionComment is best-effort; a collaborator failure yields the
// neutral placeholder.
func (s *Service) completionComment(ctx context.Context, task *domain.Task, report string, rank int) string {
	estCtx, cancel := context.WithTimeout(ctx, s.estimateTimeout)
	defer cancel()

	comment, err := s.est.CompletionComment(estCtx, task, report, rank)
	if err != nil || strings.TrimSpace(comment) == "" {
		if err != nil {
			s.logger.Warn("completion comment generation failed", zap.Error(err))
		}
		fallback, _ := s.fallback.CompletionComment(ctx, task, report, rank)
		return fallback
	}
	return comment
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
