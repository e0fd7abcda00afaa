package entries

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
CREATE TABLE vault_entries (
  id INTEGER PRIMARY KEY,
  entry_uuid TEXT,
  label TEXT NOT NULL,
  data_blob BLOB NOT NULL,
  nonce BLOB NOT NULL,
  profile_id INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT '',
  deleted_at TEXT,
  sync_version INTEGER NOT NULL DEFAULT 1
);
CREATE UNIQUE INDEX idx_vault_entry_uuid ON vault_entries (entry_uuid);
`)
	require.NoError(t, err)

	return db
}

func testEntry(uuid string) *models.Entry {
	return &models.Entry{
		EntryUUID: uuid,
		Label:     "github.com",
		DataBlob:  []byte{0xde, 0xad},
		Nonce:     []byte{0x01, 0x02},
		ProfileID: 1,
		CreatedAt: "2026-01-02T03:04:05Z",
		UpdatedAt: "2026-01-02T03:04:05Z",
	}
}

func TestSave_StartsAtVersionOne(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	id, err := r.Save(ctx, testEntry("u1"))
	require.NoError(t, err)
	require.NotZero(t, id)

	e, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.SyncVersion)
	assert.Equal(t, "u1", e.EntryUUID)
	assert.False(t, e.IsTombstone())
}

func TestUpdate_BumpsVersionAndTimestamp(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	id, err := r.Save(ctx, testEntry("u1"))
	require.NoError(t, err)

	require.NoError(t, r.Update(ctx, id, []byte{0xbe, 0xef}, []byte{0x03}, "gitlab.com", "2026-01-03T00:00:00Z"))

	e, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.SyncVersion)
	assert.Equal(t, "gitlab.com", e.Label)
	assert.Equal(t, "2026-01-03T00:00:00Z", e.UpdatedAt)
	assert.Equal(t, []byte{0xbe, 0xef}, e.DataBlob)
}

func TestSoftDelete_TombstoneKeepsIdentity(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	id, err := r.Save(ctx, testEntry("u1"))
	require.NoError(t, err)

	require.NoError(t, r.SoftDelete(ctx, id, "2026-01-04T00:00:00Z"))

	e, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, e.IsTombstone())
	assert.Equal(t, int64(2), e.SyncVersion)
	assert.Equal(t, "u1", e.EntryUUID)

	// deleting a tombstone again is NotFound
	err = r.SoftDelete(ctx, id, "2026-01-05T00:00:00Z")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// updating a tombstone is NotFound
	err = r.Update(ctx, id, []byte{1}, []byte{2}, "x", "2026-01-05T00:00:00Z")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetActive_ExcludesTombstones(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	idA, err := r.Save(ctx, testEntry("a"))
	require.NoError(t, err)
	_, err = r.Save(ctx, testEntry("b"))
	require.NoError(t, err)
	require.NoError(t, r.SoftDelete(ctx, idA, "2026-01-04T00:00:00Z"))

	got, err := r.GetActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].EntryUUID)
}

func TestGetAllSince_IncludesTombstones(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	idA, err := r.Save(ctx, testEntry("a"))
	require.NoError(t, err)
	_, err = r.Save(ctx, testEntry("b"))
	require.NoError(t, err)
	require.NoError(t, r.SoftDelete(ctx, idA, "2026-01-04T00:00:00Z"))

	all, err := r.GetAllSince(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// only the tombstone has version > 1
	newer, err := r.GetAllSince(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, "a", newer[0].EntryUUID)
	assert.True(t, newer[0].IsTombstone())
}

func TestUpsertByUUID_InsertAndOverwriteVerbatim(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	inbound := testEntry("remote")
	inbound.SyncVersion = 7
	inbound.UpdatedAt = "2026-02-01T00:00:00Z"
	require.NoError(t, r.UpsertByUUID(ctx, inbound))

	e, err := r.GetByUUID(ctx, "remote")
	require.NoError(t, err)
	assert.Equal(t, int64(7), e.SyncVersion, "version stored verbatim, not bumped")
	assert.Equal(t, "2026-02-01T00:00:00Z", e.UpdatedAt)

	deleted := "2026-02-02T00:00:00Z"
	inbound.SyncVersion = 8
	inbound.DeletedAt = &deleted
	require.NoError(t, r.UpsertByUUID(ctx, inbound))

	e, err = r.GetByUUID(ctx, "remote")
	require.NoError(t, err)
	assert.Equal(t, int64(8), e.SyncVersion)
	assert.True(t, e.IsTombstone())
}

func TestPruneTombstones(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	idOld, err := r.Save(ctx, testEntry("old"))
	require.NoError(t, err)
	idNew, err := r.Save(ctx, testEntry("new"))
	require.NoError(t, err)
	require.NoError(t, r.SoftDelete(ctx, idOld, "2025-01-01T00:00:00Z"))
	require.NoError(t, r.SoftDelete(ctx, idNew, "2026-06-01T00:00:00Z"))

	n, err := r.PruneTombstones(ctx, "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = r.GetByUUID(ctx, "old")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = r.GetByUUID(ctx, "new")
	assert.NoError(t, err)
}
