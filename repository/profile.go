package repository

import (
	"context"

	"github.com/obeyhq/backend/domain"
)

type ProfileRepository interface {
	// Get returns the user's profile, creating it at the default starting
	// score when the user has never been seen before.
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Save(ctx context.Context, profile *domain.Profile) error
}
