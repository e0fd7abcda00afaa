// Package synclog persists the history of sync sessions.
package synclog

import (
	"context"

	"github.com/vibevault/vibevault/internal/models"
)

// Repository provides access to the sync_log table.
type Repository interface {
	// Append inserts a log row.
	Append(ctx context.Context, e *models.SyncLogEntry) error

	// GetRecent lists the most recent rows, newest first.
	GetRecent(ctx context.Context, limit int) ([]models.SyncLogEntry, error)
}
