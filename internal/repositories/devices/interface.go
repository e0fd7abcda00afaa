// Package devices persists peers this device has paired with.
package devices

import (
	"context"

	"github.com/vibevault/vibevault/internal/models"
)

// Repository provides access to the paired_devices table.
type Repository interface {
	// Upsert records a pairing. Re-pairing the same device_id refreshes
	// name, public key, shared secret and paired_at.
	Upsert(ctx context.Context, d *models.PairedDevice) error

	// GetByDeviceID returns a peer or common.ErrNotFound.
	GetByDeviceID(ctx context.Context, deviceID string) (*models.PairedDevice, error)

	// GetAll lists peers, most recently paired first.
	GetAll(ctx context.Context) ([]models.PairedDevice, error)

	// UpdateLastSync stamps last_sync_at for a peer.
	UpdateLastSync(ctx context.Context, deviceID, at string) error

	// Delete forgets a peer.
	Delete(ctx context.Context, deviceID string) error
}
