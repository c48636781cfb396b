package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/obeyhq/backend/domain"
)

const taskColumns = `id, user_id, title, status, estimate_minutes, weight,
	created_at, deadline_at, extension_used, completed_at, failed_at,
	self_report, completion_comment`

func (s *Store) GetActive(ctx context.Context, userID string) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE user_id = $1 AND status = $2
	ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, userID, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *Store) Insert(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tasks (id, user_id, title, status, estimate_minutes, weight,
		created_at, deadline_at, extension_used, completion_comment)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.pool.Exec(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Status,
		task.EstimateMinutes,
		task.Weight,
		task.CreatedAt,
		task.DeadlineAt,
		task.ExtensionUsed,
		nullString(task.CompletionComment),
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Store) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $2,
		status = $3,
		estimate_minutes = $4,
		weight = $5,
		deadline_at = $6,
		extension_used = $7,
		completed_at = $8,
		failed_at = $9,
		self_report = $10,
		completion_comment = $11,
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		task.ID,
		task.Title,
		task.Status,
		task.EstimateMinutes,
		task.Weight,
		task.DeadlineAt,
		task.ExtensionUsed,
		nullTimePtr(task.CompletedAt),
		nullTimePtr(task.FailedAt),
		nullString(task.SelfReport),
		nullString(task.CompletionComment),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *Store) AnyFailed(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM tasks WHERE user_id = $1 AND status = $2)`
	var exists bool
	if err := s.pool.QueryRow(ctx, query, userID, domain.StatusFailed).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) UsersWithActive(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT user_id FROM tasks WHERE status = $1`
	rows, err := s.pool.Query(ctx, query, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		completedAt *time.Time
		failedAt    *time.Time
		selfReport  *string
		comment     *string
	)

	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Status,
		&task.EstimateMinutes,
		&task.Weight,
		&task.CreatedAt,
		&task.DeadlineAt,
		&task.ExtensionUsed,
		&completedAt,
		&failedAt,
		&selfReport,
		&comment,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.CompletedAt = completedAt
	task.FailedAt = failedAt
	if selfReport != nil {
		task.SelfReport = *selfReport
	}
	if comment != nil {
		task.CompletionComment = *comment
	}
	return &task, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 10
	}
	return limit
}
