package auth

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/logging"
	"github.com/vibevault/vibevault/internal/repositories/entries"
	"github.com/vibevault/vibevault/internal/repositories/users"

	_ "modernc.org/sqlite"
)

func setupService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE users (
  username TEXT PRIMARY KEY,
  password_hash TEXT NOT NULL,
  auth_salt BLOB NOT NULL,
  encryption_salt BLOB NOT NULL
);
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
`)
	require.NoError(t, err)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sessions := NewSessionManager(10 * time.Minute)
	svc := NewService(users.NewSQLiteRepository(db), entries.NewSQLiteRepository(db), sessions, logger)
	return svc, db
}

func TestRegisterAndUnlock(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	ok, err := svc.IsRegistered(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Register(ctx, "alice", []byte("correct horse battery staple")))

	ok, err = svc.IsRegistered(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	token, err := svc.Unlock(ctx, "alice", []byte("correct horse battery staple"))
	require.NoError(t, err)
	require.NotEmpty(t, token)

	key, err := svc.Sessions().Key(token)
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	var ve *common.ValidationError
	err := svc.Register(ctx, "", []byte("pw"))
	assert.True(t, errors.As(err, &ve))

	err = svc.Register(ctx, "alice", nil)
	assert.True(t, errors.As(err, &ve))
}

func TestRegister_OnlyOnce(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", []byte("pw")))
	err := svc.Register(ctx, "bob", []byte("pw"))
	assert.ErrorIs(t, err, common.ErrAlreadyRegistered)
}

func TestUnlock_InvalidCredentials(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", []byte("pw")))

	_, err := svc.Unlock(ctx, "alice", []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = svc.Unlock(ctx, "nobody", []byte("pw"))
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestUnlock_RateLimited(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", []byte("pw")))

	now := time.Unix(0, 0)
	svc.limiter.now = func() time.Time { return now }

	for i := 0; i < failureThreshold; i++ {
		_, err := svc.Unlock(ctx, "alice", []byte("wrong"))
		assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	}

	// sixth attempt fails fast, even with the right password
	_, err := svc.Unlock(ctx, "alice", []byte("pw"))
	var tma *common.TooManyAttemptsError
	require.True(t, errors.As(err, &tma))
	assert.GreaterOrEqual(t, tma.RetryAfter, 29*time.Second)

	// after the cooldown, the correct password unlocks and resets
	now = now.Add(31 * time.Second)
	token, err := svc.Unlock(ctx, "alice", []byte("pw"))
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = svc.Unlock(ctx, "alice", []byte("pw"))
	assert.NoError(t, err, "counter reset after success")
}

func TestUnlock_PrunesOldTombstones(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", []byte("pw")))

	_, err := db.Exec(`INSERT INTO vault_entries (entry_uuid, label, data_blob, nonce, created_at, updated_at, deleted_at) VALUES
		('old', 'x', x'01', x'02', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z'),
		('live', 'y', x'01', x'02', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z', NULL)`)
	require.NoError(t, err)

	_, err = svc.Unlock(ctx, "alice", []byte("pw"))
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM vault_entries`).Scan(&n))
	assert.Equal(t, 1, n, "ancient tombstone pruned at unlock")
}

func TestLockAndTouch(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", []byte("pw")))
	token, err := svc.Unlock(ctx, "alice", []byte("pw"))
	require.NoError(t, err)

	require.NoError(t, svc.TouchActivity(token))

	svc.Lock(token)
	assert.ErrorIs(t, svc.TouchActivity(token), common.ErrSessionExpired)
}
