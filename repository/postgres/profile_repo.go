package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/obeyhq/backend/domain"
)

func (s *Store) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	const upsert = `
	INSERT INTO profiles (user_id, points)
	VALUES ($1, $2)
	ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, upsert, userID, domain.StartingPoints); err != nil {
		return nil, err
	}

	const query = `SELECT user_id, points FROM profiles WHERE user_id = $1`
	row := s.pool.QueryRow(ctx, query, userID)

	var profile domain.Profile
	if err := row.Scan(&profile.UserID, &profile.Points); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (s *Store) Save(ctx context.Context, profile *domain.Profile) error {
	if profile == nil || profile.UserID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO profiles (user_id, points)
	VALUES ($1, $2)
	ON CONFLICT (user_id) DO UPDATE
	SET points = EXCLUDED.points,
		updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query, profile.UserID, profile.Points)
	return err
}
