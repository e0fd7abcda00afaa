package devices

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE paired_devices (
  id INTEGER PRIMARY KEY,
  device_id TEXT NOT NULL UNIQUE,
  device_name TEXT NOT NULL,
  public_key BLOB NOT NULL,
  shared_secret BLOB NOT NULL,
  paired_at TEXT NOT NULL,
  last_sync_at TEXT
);
`)
	require.NoError(t, err)

	return db
}

func testDevice(id string) *models.PairedDevice {
	return &models.PairedDevice{
		DeviceID:     id,
		DeviceName:   "Phone",
		PublicKey:    []byte{0x02, 0x01},
		SharedSecret: []byte{0xaa},
		PairedAt:     "2026-01-01T00:00:00Z",
	}
}

func TestUpsert_RefreshesOnRePair(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, testDevice("dev-1")))

	d2 := testDevice("dev-1")
	d2.DeviceName = "New Phone"
	d2.PairedAt = "2026-02-01T00:00:00Z"
	require.NoError(t, r.Upsert(ctx, d2))

	got, err := r.GetByDeviceID(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "New Phone", got.DeviceName)
	assert.Equal(t, "2026-02-01T00:00:00Z", got.PairedAt)
	assert.Nil(t, got.LastSyncAt)

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateLastSync(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, testDevice("dev-1")))
	require.NoError(t, r.UpdateLastSync(ctx, "dev-1", "2026-03-01T00:00:00Z"))

	got, err := r.GetByDeviceID(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastSyncAt)
	assert.Equal(t, "2026-03-01T00:00:00Z", *got.LastSyncAt)

	assert.ErrorIs(t, r.UpdateLastSync(ctx, "nope", "2026-03-01T00:00:00Z"), common.ErrNotFound)
}

func TestDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, testDevice("dev-1")))
	require.NoError(t, r.Delete(ctx, "dev-1"))

	_, err := r.GetByDeviceID(ctx, "dev-1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, r.Delete(ctx, "dev-1"), common.ErrNotFound)
}
