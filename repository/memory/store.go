package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/obeyhq/backend/domain"
	"github.com/obeyhq/backend/repository"
)

// Store keeps profiles and tasks in process memory. It satisfies the same
// contract as the durable backends so the engine behaves identically on
// either.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
	tasks    map[string]domain.Task
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		profiles: make(map[string]domain.Profile),
		tasks:    make(map[string]domain.Task),
	}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[userID]; ok {
		copied := p
		return &copied, nil
	}
	p := *domain.NewProfile(userID)
	s.profiles[userID] = p
	copied := p
	return &copied, nil
}

func (s *Store) Save(ctx context.Context, profile *domain.Profile) error {
	if profile == nil || profile.UserID == "" {
		return domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = *profile
	return nil
}

func (s *Store) GetActive(ctx context.Context, userID string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []domain.Task
	for _, t := range s.tasks {
		if t.UserID == userID && t.Status == domain.StatusActive {
			active = append(active, t)
		}
	}
	sortByCreatedDesc(active)
	return active, nil
}

func (s *Store) Insert(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	copied := *task
	return &copied, nil
}

func (s *Store) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.Task
	for _, t := range s.tasks {
		if t.UserID == userID {
			all = append(all, t)
		}
	}
	sortByCreatedDesc(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) AnyFailed(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.UserID == userID && t.Status == domain.StatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UsersWithActive(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var users []string
	for _, t := range s.tasks {
		if t.Status != domain.StatusActive {
			continue
		}
		if _, ok := seen[t.UserID]; ok {
			continue
		}
		seen[t.UserID] = struct{}{}
		users = append(users, t.UserID)
	}
	sort.Strings(users)
	return users, nil
}

func (s *Store) Purge(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		if t.UserID == userID {
			delete(s.tasks, id)
		}
	}
	s.profiles[userID] = *domain.NewProfile(userID)
	return nil
}

func sortByCreatedDesc(tasks []domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}
