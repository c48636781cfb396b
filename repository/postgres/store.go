package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obeyhq/backend/domain"
	"github.com/obeyhq/backend/repository"
)

// Store is the Postgres-backed implementation of the persistence contract.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store on top of the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ repository.Store = (*Store)(nil)

// Purge deletes every task of the user and resets the profile inside one
// transaction, so a partial purge can never be observed.
func (s *Store) Purge(ctx context.Context, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE user_id = $1`, userID); err != nil {
		return err
	}
	const resetQuery = `
	INSERT INTO profiles (user_id, points)
	VALUES ($1, $2)
	ON CONFLICT (user_id) DO UPDATE
	SET points = EXCLUDED.points,
		updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, resetQuery, userID, domain.StartingPoints); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
