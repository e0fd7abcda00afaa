// Package users persists the singleton device account.
package users

import (
	"context"

	"github.com/vibevault/vibevault/internal/models"
)

// Repository provides access to the users table.
type Repository interface {
	// Register inserts the user. Fails with common.ErrAlreadyRegistered
	// if any user row already exists.
	Register(ctx context.Context, u *models.User) error

	// Get returns the user by username or common.ErrNotFound.
	Get(ctx context.Context, username string) (*models.User, error)

	// First returns the device's user row regardless of username, or
	// common.ErrNotFound.
	First(ctx context.Context) (*models.User, error)

	// IsRegistered reports whether a user row exists.
	IsRegistered(ctx context.Context) (bool, error)
}
