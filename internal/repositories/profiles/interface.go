// Package profiles persists entry-grouping profiles.
package profiles

import (
	"context"

	"github.com/vibevault/vibevault/internal/models"
)

// Repository provides access to the profiles table.
type Repository interface {
	// Create inserts a profile. A duplicate name fails with
	// common.ErrConflict.
	Create(ctx context.Context, name, createdAt string) (int64, error)

	// GetByID returns a profile or common.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.Profile, error)

	// GetAll lists profiles with their live entry counts, id order.
	GetAll(ctx context.Context) ([]models.Profile, error)

	// Rename changes a profile's name. Duplicate name fails with
	// common.ErrConflict, missing id with common.ErrNotFound.
	Rename(ctx context.Context, id int64, name string) error

	// Delete removes an empty, non-last profile. Guards fail with
	// common.ErrProfileNotEmpty / common.ErrLastProfile.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of profiles.
	Count(ctx context.Context) (int64, error)
}
