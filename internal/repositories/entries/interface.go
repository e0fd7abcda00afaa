// Package entries persists vault entries, including the tombstones and
// per-row versions the sync protocol depends on.
package entries

import (
	"context"

	"github.com/vibevault/vibevault/internal/models"
)

// Repository provides access to the vault_entries table.
type Repository interface {
	// Save inserts a new row with sync_version = 1. EntryUUID, Label,
	// DataBlob, Nonce, ProfileID and timestamps must be set by the
	// caller. Returns the surrogate id.
	Save(ctx context.Context, e *models.Entry) (int64, error)

	// Update replaces ciphertext and label, refreshes updated_at and
	// increments sync_version. Tombstones cannot be updated.
	Update(ctx context.Context, id int64, dataBlob, nonce []byte, label, updatedAt string) error

	// SoftDelete sets deleted_at, refreshes updated_at and increments
	// sync_version. Deleting a tombstone is common.ErrNotFound.
	SoftDelete(ctx context.Context, id int64, deletedAt string) error

	// GetByID returns any row (tombstone or live) or common.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.Entry, error)

	// GetByUUID returns any row by its sync identity or common.ErrNotFound.
	GetByUUID(ctx context.Context, entryUUID string) (*models.Entry, error)

	// GetActive lists non-deleted entries for a profile.
	GetActive(ctx context.Context, profileID int64) ([]models.Entry, error)

	// GetAllSince lists every row of the profile, tombstones included,
	// whose sync_version is strictly greater than since.
	GetAllSince(ctx context.Context, profileID, since int64) ([]models.Entry, error)

	// UpsertByUUID writes a merge winner verbatim: sync_version and
	// updated_at come from the caller and are not bumped.
	UpsertByUUID(ctx context.Context, e *models.Entry) error

	// PruneTombstones hard-deletes tombstones whose deleted_at is
	// before cutoff. Returns the number of rows removed.
	PruneTombstones(ctx context.Context, cutoff string) (int64, error)
}
