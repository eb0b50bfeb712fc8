// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProfileRepository provides CRUD access for household profiles.
type ProfileRepository interface {
	// Create inserts a new profile. ID and CreatedAt must be filled by the caller.
	Create(ctx context.Context, p *model.Profile) error
	// CreateFirst inserts p only while no profile exists. The emptiness check
	// and the insert are atomic; false means the household is already set up.
	CreateFirst(ctx context.Context, p *model.Profile) (bool, error)
	// GetByID loads a profile by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	// List returns all profiles in creation order.
	List(ctx context.Context) ([]model.Profile, error)
	// Count returns the number of profiles.
	Count(ctx context.Context) (int, error)
	// Update applies a partial update.
	Update(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) error
	// DeleteCascade removes the profile with its history and watchlist in one
	// transaction. It refuses to remove the last admin and reports false when
	// the profile does not exist.
	DeleteCascade(ctx context.Context, id uuid.UUID) (bool, error)
	// Ping checks storage availability.
	Ping(ctx context.Context) error
}
