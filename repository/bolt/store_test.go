package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/obeyhq/backend/domain"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obey.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func seedTask(t *testing.T, s *Store, userID string, status domain.TaskStatus, createdAt time.Time) *domain.Task {
	t.Helper()
	task, err := s.Insert(context.Background(), &domain.Task{
		UserID:          userID,
		Title:           "seeded task",
		Status:          status,
		EstimateMinutes: 360,
		Weight:          1,
		CreatedAt:       createdAt,
		DeadlineAt:      createdAt.Add(6 * time.Hour),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return task
}

func TestProfileRoundTrip(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	p, err := s.Get(ctx, "u")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Points != domain.StartingPoints {
		t.Errorf("default points = %d, want %d", p.Points, domain.StartingPoints)
	}

	p.Points = 55
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := s.Get(ctx, "u")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.Points != 55 {
		t.Errorf("saved points lost: got %d", again.Points)
	}
}

func TestTasksSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obey.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	created := seedTask(t, s, "u", domain.StatusActive, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	active, err := s.GetActive(context.Background(), "u")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if len(active) != 1 || active[0].ID != created.ID {
		t.Fatalf("task did not survive reopen: %+v", active)
	}
}

func TestGetActiveFiltersByStatusAndUser(t *testing.T) {
	s, _ := openStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	older := seedTask(t, s, "u", domain.StatusActive, base)
	newer := seedTask(t, s, "u", domain.StatusActive, base.Add(time.Hour))
	seedTask(t, s, "u", domain.StatusCompleted, base.Add(2*time.Hour))
	seedTask(t, s, "other", domain.StatusActive, base)

	active, err := s.GetActive(context.Background(), "u")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}
	if active[0].ID != newer.ID || active[1].ID != older.ID {
		t.Errorf("not ordered newest first: %s, %s", active[0].ID, active[1].ID)
	}
}

func TestUpdateTransitions(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	task := seedTask(t, s, "u", domain.StatusActive, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	now := task.CreatedAt.Add(time.Hour)
	task.Status = domain.StatusFailed
	task.FailedAt = &now
	if err := s.Update(ctx, task); err != nil {
		t.Fatalf("update: %v", err)
	}

	failed, err := s.AnyFailed(ctx, "u")
	if err != nil || !failed {
		t.Fatalf("AnyFailed = %v, %v; want true, nil", failed, err)
	}

	if err := s.Update(ctx, &domain.Task{ID: "missing", UserID: "u"}); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("want not found for unknown task, got %v", err)
	}
}

func TestRecentLimit(t *testing.T) {
	s, _ := openStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		seedTask(t, s, "u", domain.StatusCompleted, base.Add(time.Duration(i)*time.Minute))
	}

	recent, err := s.Recent(context.Background(), "u", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 10 {
		t.Fatalf("recent = %d, want 10", len(recent))
	}
}

func TestUsersWithActive(t *testing.T) {
	s, _ := openStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedTask(t, s, "bob", domain.StatusActive, base)
	seedTask(t, s, "alice", domain.StatusActive, base)
	seedTask(t, s, "carol", domain.StatusFailed, base)

	users, err := s.UsersWithActive(context.Background())
	if err != nil {
		t.Fatalf("users with active: %v", err)
	}
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Errorf("users = %v, want [alice bob]", users)
	}
}

func TestPurgeResetsUser(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedTask(t, s, "u", domain.StatusActive, base)
	seedTask(t, s, "u", domain.StatusFailed, base)
	seedTask(t, s, "other", domain.StatusActive, base)
	if err := s.Save(ctx, &domain.Profile{UserID: "u", Points: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.Purge(ctx, "u"); err != nil {
		t.Fatalf("purge: %v", err)
	}

	p, err := s.Get(ctx, "u")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Points != domain.StartingPoints {
		t.Errorf("points after purge = %d, want %d", p.Points, domain.StartingPoints)
	}
	recent, err := s.Recent(ctx, "u", 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("tasks survived purge: %d", len(recent))
	}

	otherActive, err := s.GetActive(ctx, "other")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if len(otherActive) != 1 {
		t.Errorf("purge leaked into another user: %d active", len(otherActive))
	}
}
