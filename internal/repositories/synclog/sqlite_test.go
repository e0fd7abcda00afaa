package synclog

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
CREATE TABLE sync_log (
  id INTEGER PRIMARY KEY,
  device_id TEXT NOT NULL,
  direction TEXT NOT NULL,
  entries_sent INTEGER NOT NULL DEFAULT 0,
  entries_received INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  started_at TEXT NOT NULL,
  completed_at TEXT,
  error_message TEXT
);
`)
	require.NoError(t, err)

	return db
}

func TestAppendAndGetRecent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	completed := "2026-01-01T00:01:00Z"
	require.NoError(t, r.Append(ctx, &models.SyncLogEntry{
		DeviceID:    "dev-1",
		Direction:   models.DirectionPush,
		EntriesSent: 3,
		Status:      models.StatusSuccess,
		StartedAt:   "2026-01-01T00:00:00Z",
		CompletedAt: &completed,
	}))

	msg := "chunk 3 failed crc"
	require.NoError(t, r.Append(ctx, &models.SyncLogEntry{
		DeviceID:     "dev-1",
		Direction:    models.DirectionPull,
		Status:       models.StatusFailed,
		StartedAt:    "2026-01-02T00:00:00Z",
		ErrorMessage: &msg,
	}))

	got, err := r.GetRecent(ctx, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// newest first
	assert.Equal(t, models.StatusFailed, got[0].Status)
	require.NotNil(t, got[0].ErrorMessage)
	assert.Equal(t, msg, *got[0].ErrorMessage)
	assert.Nil(t, got[0].CompletedAt)

	assert.Equal(t, models.StatusSuccess, got[1].Status)
	require.NotNil(t, got[1].CompletedAt)
	assert.Equal(t, completed, *got[1].CompletedAt)
}

func TestGetRecent_Limit(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		require.NoError(t, r.Append(ctx, &models.SyncLogEntry{
			DeviceID:  "dev-1",
			Direction: models.DirectionPush,
			Status:    models.StatusSuccess,
			StartedAt: fmt.Sprintf("2026-01-01T00:00:%02dZ", i),
		}))
	}

	got, err := r.GetRecent(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, got, 50)
}
