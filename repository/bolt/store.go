package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/obeyhq/backend/domain"
	"github.com/obeyhq/backend/repository"
)

var (
	bucketProfiles = []byte("profiles")
	bucketTasks    = []byte("tasks")
)

// Store persists profiles and tasks in a local BoltDB file. Tasks are keyed
// by "<user_id>/<task_id>" so a user's records form one contiguous key range.
type Store struct {
	db *bolt.DB
}

// Open initializes the BoltDB file and ensures both buckets exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketProfiles); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketTasks)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	var profile *domain.Profile
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		if raw := b.Get([]byte(userID)); raw != nil {
			var p domain.Profile
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			profile = &p
			return nil
		}
		profile = domain.NewProfile(userID)
		return putJSON(b, []byte(userID), profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Store) Save(ctx context.Context, profile *domain.Profile) error {
	if profile == nil || profile.UserID == "" {
		return domain.ErrInvalidPayload
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketProfiles), []byte(profile.UserID), profile)
	})
}

func (s *Store) GetActive(ctx context.Context, userID string) ([]domain.Task, error) {
	tasks, err := s.userTasks(userID)
	if err != nil {
		return nil, err
	}
	active := tasks[:0]
	for _, t := range tasks {
		if t.Status == domain.StatusActive {
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
	err := s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketTasks), taskKey(task.UserID, task.ID), task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Store) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		key := taskKey(task.UserID, task.ID)
		if b.Get(key) == nil {
			return domain.ErrTaskNotFound
		}
		return putJSON(b, key, task)
	})
}

func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	tasks, err := s.userTasks(userID)
	if err != nil {
		return nil, err
	}
	sortByCreatedDesc(tasks)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (s *Store) AnyFailed(ctx context.Context, userID string) (bool, error) {
	tasks, err := s.userTasks(userID)
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if t.Status == domain.StatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UsersWithActive(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(k, v []byte) error {
			var t domain.Task
			if err := json.Unmarshal(v, &t); err != nil {
				return nil
			}
			if t.Status == domain.StatusActive {
				seen[t.UserID] = struct{}{}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

// Purge runs inside a single Bolt update transaction, so the task deletion
// and the profile reset commit together or not at all.
func (s *Store) Purge(ctx context.Context, userID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		tasks := tx.Bucket(bucketTasks)
		c := tasks.Cursor()
		prefix := taskPrefix(userID)
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return putJSON(tx.Bucket(bucketProfiles), []byte(userID), domain.NewProfile(userID))
	})
}

func (s *Store) userTasks(userID string) ([]domain.Task, error) {
	var tasks []domain.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTasks).Cursor()
		prefix := taskPrefix(userID)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var t domain.Task
			if err := json.Unmarshal(v, &t); err != nil {
				continue
			}
			tasks = append(tasks, t)
		}
		return nil
	})
	return tasks, err
}

func putJSON(b *bolt.Bucket, key []byte, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, payload)
}

func taskKey(userID, taskID string) []byte {
	return []byte(userID + "/" + taskID)
}

func taskPrefix(userID string) []byte {
	return []byte(userID + "/")
}

func sortByCreatedDesc(tasks []domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}
