package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/dbx"
	"github.com/vibevault/vibevault/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, d *models.PairedDevice) error {
	query := `INSERT INTO paired_devices
		(device_id, device_name, public_key, shared_secret, paired_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			device_name = excluded.device_name,
			public_key = excluded.public_key,
			shared_secret = excluded.shared_secret,
			paired_at = excluded.paired_at`
	_, err := r.db.ExecContext(ctx, query,
		d.DeviceID, d.DeviceName, d.PublicKey, d.SharedSecret, d.PairedAt)
	if err != nil {
		return &common.StoreError{Op: "upsert device", Err: err}
	}
	return nil
}

func (r *SQLiteRepository) GetByDeviceID(ctx context.Context, deviceID string) (*models.PairedDevice, error) {
	d := &models.PairedDevice{}
	var lastSync sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, device_id, device_name, public_key, shared_secret, paired_at, last_sync_at
		 FROM paired_devices WHERE device_id = ?`, deviceID).
		Scan(&d.ID, &d.DeviceID, &d.DeviceName, &d.PublicKey, &d.SharedSecret, &d.PairedAt, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan device: %w", err)
	}
	if lastSync.Valid {
		d.LastSyncAt = &lastSync.String
	}
	return d, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.PairedDevice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, device_name, public_key, shared_secret, paired_at, last_sync_at
		 FROM paired_devices ORDER BY paired_at DESC`)
	if err != nil {
		return nil, &common.StoreError{Op: "list devices", Err: err}
	}
	defer rows.Close()

	var result []models.PairedDevice
	for rows.Next() {
		var d models.PairedDevice
		var lastSync sql.NullString
		if err := rows.Scan(&d.ID, &d.DeviceID, &d.DeviceName, &d.PublicKey,
			&d.SharedSecret, &d.PairedAt, &lastSync); err != nil {
			return nil, err
		}
		if lastSync.Valid {
			d.LastSyncAt = &lastSync.String
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) UpdateLastSync(ctx context.Context, deviceID, at string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE paired_devices SET last_sync_at = ? WHERE device_id = ?`, at, deviceID)
	if err != nil {
		return &common.StoreError{Op: "update last sync", Err: err}
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return &common.StoreError{Op: "update last sync", Err: err}
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, deviceID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM paired_devices WHERE device_id = ?`, deviceID)
	if err != nil {
		return &common.StoreError{Op: "delete device", Err: err}
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return &common.StoreError{Op: "delete device", Err: err}
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}
