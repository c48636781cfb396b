package repository

import "context"

// Purger removes every task of a user and resets the profile to the
// starting score. The purge is all-or-nothing: on error the prior state
// must be unchanged.
type Purger interface {
	Purge(ctx context.Context, userID string) error
}

// Store bundles the full persistence contract a backend must satisfy.
type Store interface {
	ProfileRepository
	TaskRepository
	Purger
}
