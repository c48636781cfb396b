package repository

import (
	"context"

	"github.com/obeyhq/backend/domain"
)

type TaskRepository interface {
	// GetActive returns every task of the user still in ACTIVE status.
	GetActive(ctx context.Context, userID string) ([]domain.Task, error)
	// Insert stores a new task and confirms its id.
	Insert(ctx context.Context, task *domain.Task) (*domain.Task, error)
	// Update replaces the stored task by id.
	Update(ctx context.Context, task *domain.Task) error
	// Recent returns up to limit tasks of the user, newest created first.
	Recent(ctx context.Context, userID string, limit int) ([]domain.Task, error)
	// AnyFailed reports whether the user has any FAILED task in history.
	AnyFailed(ctx context.Context, userID string) (bool, error)
	// UsersWithActive lists user ids that currently hold ACTIVE tasks.
	UsersWithActive(ctx context.Context) ([]string, error)
}
